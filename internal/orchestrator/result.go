package orchestrator

// Level classifies a startup action's outcome. Only Fatal stops the
// sequence; Degraded marks a partial success whose failed sub-step was
// logged and skipped.
type Level int

const (
	Ok Level = iota
	Degraded
	Fatal
)

// Result is the outcome of one sequenced startup action.
type Result struct {
	Level Level
	Err   error
}

// OK reports full success.
func OK() Result { return Result{Level: Ok} }

// Degrade reports partial success; err names the non-critical sub-step that
// failed.
func Degrade(err error) Result { return Result{Level: Degraded, Err: err} }

// Fail aborts the remaining sequence.
func Fail(err error) Result { return Result{Level: Fatal, Err: err} }
