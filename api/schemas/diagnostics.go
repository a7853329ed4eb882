// File: api/schemas/diagnostics.go
package schemas

// ConsoleEntry is a single console message of error or warning severity.
type ConsoleEntry struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Location string `json:"location,omitempty"`
}

// FailedRequest describes a network request that failed at the transport
// level. HTTP error statuses are not failures in this sense; they are
// recorded as ResponseError instead.
type FailedRequest struct {
	URL          string `json:"url"`
	Method       string `json:"method"`
	Failure      string `json:"failure"`
	ResourceType string `json:"resource_type"`
}

// ResponseError records an HTTP response with status >= 400.
type ResponseError struct {
	URL        string `json:"url"`
	Status     int64  `json:"status"`
	StatusText string `json:"status_text"`
}

// DiagnosticsSnapshot is a point-in-time copy of everything the diagnostics
// collector has accumulated since its last clear.
type DiagnosticsSnapshot struct {
	ConsoleErrors  []ConsoleEntry  `json:"console_errors"`
	FailedRequests []FailedRequest `json:"failed_requests"`
	ResponseErrors []ResponseError `json:"response_errors"`
	PageErrors     []string        `json:"page_errors"`
}

// Empty reports whether the snapshot carries no entries at all.
func (d *DiagnosticsSnapshot) Empty() bool {
	if d == nil {
		return true
	}
	return len(d.ConsoleErrors) == 0 &&
		len(d.FailedRequests) == 0 &&
		len(d.ResponseErrors) == 0 &&
		len(d.PageErrors) == 0
}
