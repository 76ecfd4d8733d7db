package queue

import (
	"errors"
	"fmt"
)

// Kind is the action requested by a legacy sweep command. Values match the
// wire format sent by the backend.
type Kind string

const (
	KindRun    Kind = "run"
	KindResume Kind = "resume"
	KindStop   Kind = "stop"
	KindExit   Kind = "exit"
)

// ParseKind validates a wire command type.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindRun, KindResume, KindStop, KindExit:
		return k, nil
	}
	return "", fmt.Errorf("unknown command type %q", s)
}

// Promotable reports whether runs of this kind are handed to the dispatcher.
func (k Kind) Promotable() bool {
	return k == KindRun || k == KindResume
}

// RunRecord is one legacy-protocol run command.
type RunRecord struct {
	Kind   Kind
	ID     string
	Config map[string]any
}

// ErrInvalidRecord is returned when a record is missing its run id.
var ErrInvalidRecord = errors.New("run record has no id")
