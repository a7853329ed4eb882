// File: api/schemas/results.go
package schemas

// ErrorKind is the machine-readable classification attached to a failure.
// Exactly one kind accompanies every failed step or run.
type ErrorKind string

const (
	ErrorTimeout           ErrorKind = "timeout"
	ErrorConnectionRefused ErrorKind = "connection_refused"
	ErrorDNS               ErrorKind = "dns_error"
	ErrorSSL               ErrorKind = "ssl_error"
	ErrorConnectionTimeout ErrorKind = "connection_timeout"
	ErrorNoInternet        ErrorKind = "no_internet"
	ErrorNavigation        ErrorKind = "navigation_error"
	// ErrorBrowser is a generic automation-layer failure that matched no more
	// specific pattern.
	ErrorBrowser ErrorKind = "browser_error"
	ErrorUnknown ErrorKind = "unknown_error"
)

// StepResult captures the outcome of one executed step. Results are appended
// to the run log in execution order and never mutated afterwards.
type StepResult struct {
	Name           string               `json:"name"`
	Action         Action               `json:"action"`
	Success        bool                 `json:"success"`
	Error          string               `json:"error,omitempty"`
	ErrorType      ErrorKind            `json:"error_type,omitempty"`
	ScreenshotPath string               `json:"screenshot_path,omitempty"`
	Diagnostics    *DiagnosticsSnapshot `json:"diagnostics,omitempty"`
}

// RunResult is the aggregate outcome of a whole step sequence. It is the
// single JSON document the CLI emits on stdout.
type RunResult struct {
	Success     bool                 `json:"success"`
	Steps       []StepResult         `json:"steps"`
	Message     string               `json:"message,omitempty"`
	Error       string               `json:"error,omitempty"`
	ErrorType   ErrorKind            `json:"error_type,omitempty"`
	Diagnostics *DiagnosticsSnapshot `json:"diagnostics,omitempty"`
}
