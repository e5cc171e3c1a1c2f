package pipeline

// Stages of a run, in execution order.
const (
	StagePrepare = "prepare"
	StageEncode  = "encode"
	StageSolve   = "solve"
	StageDecode  = "decode"
	StageWrite   = "write"
)

// StageError tags a failure with the stage it happened in. The component
// error stays reachable through errors.Is and errors.As.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }
