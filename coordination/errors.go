package coordination

import "fmt"

// Kind tags an Error for cross-language-style transport, mirroring the
// exception hierarchy the coordination client was ported from.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindConnection    Kind = "connection"
	KindDuplicate     Kind = "duplicate_publish"
	KindPublish       Kind = "publish"
	KindAcknowledge   Kind = "acknowledge"
	KindPresence      Kind = "presence"
	KindCoordination  Kind = "coordination"
	KindSwarm         Kind = "swarm"
)

// Error is the single error type returned by this package. Not-found
// conditions are never represented as an Error; see the doc comments on
// Store.GetMessage and Store.Acknowledge for the false/nil convention.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, coordination.KindX) style checks against a
// bare Kind value wrapped as an *Error with no message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind Kind, message string, err error, details map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Details: details, Err: err}
}

func wrapf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}
