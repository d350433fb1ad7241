package ai

import (
	"errors"
	"fmt"
)

// ErrGeneration is matched by every *GenerationError.
var ErrGeneration = errors.New("generation failed")

// GenerationError reports a failed run. The run it refers to has already
// been marked failed with Err's message.
type GenerationError struct {
	RunID  string
	Action string
	Step   string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("%s: %v", e.Action, e.Err)
	}
	return fmt.Sprintf("%s step %s: %v", e.Action, e.Step, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }
