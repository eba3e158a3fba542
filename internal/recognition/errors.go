package recognition

import (
	"errors"
	"fmt"
)

var (
	ErrNilEngine = errors.New("recognition engine is nil")
)

// Stage identifies the step of session start-up that failed.
type Stage int

const (
	StageAcquireRecognizer Stage = iota + 1
	StageCreateContext
	StageBindAudio
	StageLoadGrammar
	StageActivate
)

func (s Stage) String() string {
	switch s {
	case StageAcquireRecognizer:
		return "AcquireRecognizer"
	case StageCreateContext:
		return "CreateContext"
	case StageBindAudio:
		return "BindAudio"
	case StageLoadGrammar:
		return "LoadGrammar"
	case StageActivate:
		return "Activate"
	default:
		return "Unknown"
	}
}

// EngineError is returned by Start when a stage fails. All partial state is already released.
type EngineError struct {
	Stage Stage
	Code  int
	Err   error
}

func newEngineError(stage Stage, err error) *EngineError {
	e := &EngineError{Stage: stage, Err: err}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		e.Code = coder.Code()
	}
	return e
}

func (e *EngineError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s failed (code: 0x%08x): %v", e.Stage, uint32(e.Code), e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}
