package hclmanifest

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
)

// DiagnosticsError wraps HCL diagnostics for clearer error propagation.
type DiagnosticsError struct {
	Operation string
	Path      string
	Diags     hcl.Diagnostics
}

func (e *DiagnosticsError) Error() string {
	return fmt.Sprintf("HCL %s error processing %q: %s", e.Operation, e.Path, e.Diags.Error())
}

// hasFatalErrors reports whether diags contain anything above a warning.
func hasFatalErrors(diags hcl.Diagnostics) bool {
	for _, d := range diags {
		if d.Severity == hcl.DiagError {
			return true
		}
	}
	return false
}
