// dpistack-api is the data-serving process the orchestrator spawns: a REST
// layer over the packet store for dashboards. Served packets replay with a
// fixed offset behind wall-clock time so a dashboard sees a steady stream.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/dpistack/dpistack/internal/config"
	"github.com/dpistack/dpistack/internal/health"
	"github.com/dpistack/dpistack/internal/pktlog"
	"github.com/dpistack/dpistack/internal/pktlog/factory"
)

type apiFlags struct {
	Host       string
	Port       int
	Driver     string
	DB         string
	HealthFile string
	Offset     time.Duration
}

func main() {
	var f apiFlags
	root := &cobra.Command{
		Use:          "dpistack-api",
		Short:        "REST API over recorded packet data",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f)
		},
	}
	root.Flags().StringVar(&f.Host, "host", "0.0.0.0", "listen host")
	root.Flags().IntVar(&f.Port, "port", 5000, "listen port")
	root.Flags().StringVar(&f.Driver, "driver", "sqlite", "packet store driver")
	root.Flags().StringVar(&f.DB, "db", "logs/packets.db", "packet store DSN or path")
	root.Flags().StringVar(&f.HealthFile, "health-file", "logs/health_status.json", "health snapshot path")
	root.Flags().DurationVar(&f.Offset, "offset", 360*time.Second, "replay offset behind current time")

	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// packetView is the wire shape dashboards consume; action is derived from
// the security flags.
type packetView struct {
	pktlog.Packet
	Action string `json:"action"`
}

func viewOf(p pktlog.Packet) packetView {
	action := "forwarded"
	if p.Suspect || p.Malformed {
		action = "dropped"
	}
	return packetView{Packet: p, Action: action}
}

type api struct {
	store  pktlog.Store
	file   string
	offset time.Duration
}

func run(ctx context.Context, f apiFlags) error {
	store, err := factory.New(config.Database{Driver: f.Driver, DSN: f.DB})
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	a := &api{store: store, file: f.HealthFile, offset: f.Offset}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.GET("/api/packets/recent", a.handleRecent)
	e.GET("/api/packets/range", a.handleRange)
	e.GET("/api/stats", a.handleStats)
	e.GET("/api/health", a.handleHealth)

	addr := fmt.Sprintf("%s:%d", f.Host, f.Port)
	errCh := make(chan error, 1)
	go func() { errCh <- e.Start(addr) }()
	slog.Info("data-serving API listening", "addr", addr)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-sigCtx.Done():
	}
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return e.Shutdown(shCtx)
}

// handleRecent serves a window of packets around now minus the replay
// offset, mirroring what live dashboards poll.
func (a *api) handleRecent(c echo.Context) error {
	limit := intQuery(c, "limit", 100)
	target := time.Now().Add(-a.offset)
	from := target.Add(-7 * time.Second)
	to := target.Add(8 * time.Second)
	packets, err := a.store.Range(c.Request().Context(), from, to, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, views(packets))
}

func (a *api) handleRange(c echo.Context) error {
	from, err1 := time.Parse(time.RFC3339, c.QueryParam("start"))
	to, err2 := time.Parse(time.RFC3339, c.QueryParam("end"))
	if err1 != nil || err2 != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "start and end must be RFC3339 timestamps")
	}
	limit := intQuery(c, "limit", 1000)
	packets, err := a.store.Range(c.Request().Context(), from, to, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, views(packets))
}

func (a *api) handleStats(c echo.Context) error {
	stats, err := a.store.Aggregate(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}

func (a *api) handleHealth(c echo.Context) error {
	snap, err := health.Read(a.file)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "no health snapshot available")
	}
	return c.JSON(http.StatusOK, snap)
}

func views(packets []pktlog.Packet) []packetView {
	out := make([]packetView, 0, len(packets))
	for _, p := range packets {
		out = append(out, viewOf(p))
	}
	return out
}

func intQuery(c echo.Context, name string, def int) int {
	v := c.QueryParam(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
