// Package server exposes the orchestrator's run state over HTTP for
// external inspection: health snapshot, tracked processes, controller
// statistics, and Prometheus metrics.
package server

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dpistack/dpistack/internal/health"
	"github.com/dpistack/dpistack/internal/metrics"
	"github.com/dpistack/dpistack/internal/pktlog"
	"github.com/dpistack/dpistack/internal/proc"
)

// StateSource is the orchestration state the endpoints serve.
type StateSource interface {
	RunID() string
	Running() bool
	Health() health.Snapshot
	Processes() []proc.Status
	Stats(ctx context.Context) (pktlog.Stats, error)
}

// Router provides embeddable HTTP handlers over a StateSource.
// Endpoints:
//
//	GET {basePath}/health      current component snapshot
//	GET {basePath}/processes   tracked external processes
//	GET {basePath}/stats       controller aggregate statistics
//	GET {basePath}/metrics     Prometheus metrics
type Router struct {
	src      StateSource
	basePath string
}

// NewRouter constructs a Router with a configurable basePath
// ("/abc" results in /abc/health etc.).
func NewRouter(src StateSource, basePath string) *Router {
	return &Router{src: src, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server/mux.
func (r *Router) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/health", r.handleHealth)
	group.GET("/processes", r.handleProcesses)
	group.GET("/stats", r.handleStats)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

func (r *Router) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"run_id":  r.src.RunID(),
		"running": r.src.Running(),
		"health":  r.src.Health(),
	})
}

func (r *Router) handleProcesses(c *gin.Context) {
	c.JSON(http.StatusOK, r.src.Processes())
}

func (r *Router) handleStats(c *gin.Context) {
	stats, err := r.src.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// New starts a standalone HTTP server on addr serving the router. The
// caller shuts it down via http.Server.Shutdown.
func New(addr, basePath string, src StateSource) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	r := NewRouter(src, basePath)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = srv.Serve(ln) }()
	return srv, nil
}

func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" || bp == "/" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	return strings.TrimSuffix(bp, "/")
}
