package elk

import (
	"fmt"

	"github.com/bramadityaw/elk/ast"
	"github.com/bramadityaw/elk/runtime"
)

// Diagnostic is a formatted engine failure: the error kind, the human
// message, and the source position of the last-visited expression.
type Diagnostic struct {
	Kind     runtime.ErrorKind
	Message  string
	Position ast.Position
}

func (d *Diagnostic) Error() string {
	if d.Position.Line == 0 {
		return fmt.Sprintf("%s: %s", d.Kind, d.Message)
	}
	return fmt.Sprintf("%d:%d: %s: %s", d.Position.Line, d.Position.Column, d.Kind, d.Message)
}
