package titration

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownFlask        = errors.New("unknown flask")
	ErrUnknownGlass        = errors.New("unknown glass type")
	ErrDegenerateTitration = errors.New("degenerate titration")
	ErrMalformedRecord     = errors.New("malformed record")
	ErrMissingHeader       = errors.New("missing standardization header")
)

// RecordError identifies the input line that stopped a parse or reduction.
type RecordError struct {
	Source string
	Line   int
	Text   string
	Err    error
}

func (e *RecordError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s:%d: %v (%q)", e.Source, e.Line, e.Err, e.Text)
	}
	return fmt.Sprintf("line %d: %v (%q)", e.Line, e.Err, e.Text)
}

func (e *RecordError) Unwrap() error { return e.Err }
