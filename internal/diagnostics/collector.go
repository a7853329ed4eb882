// File: internal/diagnostics/collector.go

// Package diagnostics accumulates the asynchronous signals a page emits
// (console messages, in-page exceptions, transport-level request failures,
// HTTP error responses) so that a step failure can be explained with more
// than a single error string.
package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stagecheck/api/schemas"
)

// requestMeta remembers enough about an in-flight request to describe it if
// it later fails at the transport level.
type requestMeta struct {
	url          string
	method       string
	resourceType string
}

// Collector passively records page signals delivered by CDP events. Events
// arrive on chromedp's listener goroutine while the interpreter is blocked in
// a step, so every mutation and read goes through the mutex.
//
// Entries accumulate without bound between Clear calls; the interpreter
// clears at the start of each navigation so diagnostics are scoped to "since
// last navigation", not "since process start".
type Collector struct {
	logger *zap.Logger

	mu             sync.RWMutex
	consoleErrors  []schemas.ConsoleEntry
	failedRequests []schemas.FailedRequest
	responseErrors []schemas.ResponseError
	pageErrors     []string

	// In-flight request tracking, used for the networkidle navigation wait.
	inflight map[network.RequestID]requestMeta
}

// NewCollector creates an unattached collector.
func NewCollector(logger *zap.Logger) *Collector {
	return &Collector{
		logger:   logger.Named("diagnostics"),
		inflight: make(map[network.RequestID]requestMeta),
	}
}

// Attach subscribes the collector to a chromedp target context and enables
// the CDP domains that produce its events. Call once per page.
func (c *Collector) Attach(ctx context.Context) error {
	chromedp.ListenTarget(ctx, c.handle)

	if err := chromedp.Run(ctx,
		network.Enable(),
		runtime.Enable(),
		log.Enable(),
	); err != nil {
		return fmt.Errorf("failed to enable CDP event domains: %w", err)
	}

	c.logger.Debug("Diagnostics collector attached.")
	return nil
}

// handle dispatches a single CDP event. It runs on the listener goroutine.
func (c *Collector) handle(ev interface{}) {
	switch e := ev.(type) {
	case *runtime.EventConsoleAPICalled:
		c.handleConsoleAPICalled(e)
	case *log.EventEntryAdded:
		c.handleLogEntryAdded(e)
	case *runtime.EventExceptionThrown:
		c.handleExceptionThrown(e)
	case *network.EventRequestWillBeSent:
		c.handleRequestWillBeSent(e)
	case *network.EventResponseReceived:
		c.handleResponseReceived(e)
	case *network.EventLoadingFinished:
		c.handleLoadingFinished(e)
	case *network.EventLoadingFailed:
		c.handleLoadingFailed(e)
	}
}

// -- Console and runtime events --

func (c *Collector) handleConsoleAPICalled(e *runtime.EventConsoleAPICalled) {
	// Only error and warning severities matter for diagnostics; log/info/
	// debug chatter is ignored.
	if e.Type != runtime.APITypeError && e.Type != runtime.APITypeWarning {
		return
	}

	var textBuilder strings.Builder
	for i, arg := range e.Args {
		if i > 0 {
			textBuilder.WriteString(" ")
		}
		var val interface{}
		if arg.Value != nil && json.Unmarshal(arg.Value, &val) == nil {
			textBuilder.WriteString(fmt.Sprintf("%v", val))
		} else if arg.Description != "" {
			textBuilder.WriteString(arg.Description)
		} else {
			textBuilder.WriteString(fmt.Sprintf("[%s]", arg.Type))
		}
	}

	entry := schemas.ConsoleEntry{
		Type: string(e.Type),
		Text: textBuilder.String(),
	}
	if e.StackTrace != nil && len(e.StackTrace.CallFrames) > 0 {
		frame := e.StackTrace.CallFrames[0]
		entry.Location = fmt.Sprintf("%s:%d", frame.URL, frame.LineNumber)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.consoleErrors = append(c.consoleErrors, entry)
}

func (c *Collector) handleLogEntryAdded(e *log.EventEntryAdded) {
	if e.Entry == nil {
		return
	}
	// Browser-originated log entries (mixed content, CSP, deprecations) come
	// through the Log domain rather than the console API.
	if e.Entry.Level != log.LevelError && e.Entry.Level != log.LevelWarning {
		return
	}

	entry := schemas.ConsoleEntry{
		Type: string(e.Entry.Level),
		Text: e.Entry.Text,
	}
	if e.Entry.URL != "" {
		entry.Location = fmt.Sprintf("%s:%d", e.Entry.URL, e.Entry.LineNumber)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.consoleErrors = append(c.consoleErrors, entry)
}

func (c *Collector) handleExceptionThrown(e *runtime.EventExceptionThrown) {
	if e.ExceptionDetails == nil {
		return
	}
	// The description usually carries the most useful info, including the
	// stack trace.
	text := e.ExceptionDetails.Text
	if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
		text = e.ExceptionDetails.Exception.Description
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pageErrors = append(c.pageErrors, text)
}

// -- Network events --

func (c *Collector) handleRequestWillBeSent(e *network.EventRequestWillBeSent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A redirect reuses the request ID; the previous leg is no longer in
	// flight on its own.
	c.inflight[e.RequestID] = requestMeta{
		url:          e.Request.URL,
		method:       e.Request.Method,
		resourceType: string(e.Type),
	}
}

func (c *Collector) handleResponseReceived(e *network.EventResponseReceived) {
	if e.Response == nil || e.Response.Status < 400 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.responseErrors = append(c.responseErrors, schemas.ResponseError{
		URL:        e.Response.URL,
		Status:     e.Response.Status,
		StatusText: e.Response.StatusText,
	})
}

func (c *Collector) handleLoadingFinished(e *network.EventLoadingFinished) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, e.RequestID)
}

func (c *Collector) handleLoadingFailed(e *network.EventLoadingFailed) {
	c.mu.Lock()
	defer c.mu.Unlock()

	meta := c.inflight[e.RequestID]
	delete(c.inflight, e.RequestID)

	failed := schemas.FailedRequest{
		URL:          meta.url,
		Method:       meta.method,
		Failure:      e.ErrorText,
		ResourceType: meta.resourceType,
	}
	if failed.ResourceType == "" {
		failed.ResourceType = string(e.Type)
	}
	c.failedRequests = append(c.failedRequests, failed)
}

// -- Accessors --

// HasErrors reports whether any signal stream has recorded an entry since the
// last Clear.
func (c *Collector) HasErrors() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.consoleErrors) > 0 ||
		len(c.failedRequests) > 0 ||
		len(c.responseErrors) > 0 ||
		len(c.pageErrors) > 0
}

// Summary returns a snapshot copy of all four streams. The collector keeps
// accumulating; the snapshot does not.
func (c *Collector) Summary() *schemas.DiagnosticsSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := &schemas.DiagnosticsSnapshot{
		ConsoleErrors:  make([]schemas.ConsoleEntry, len(c.consoleErrors)),
		FailedRequests: make([]schemas.FailedRequest, len(c.failedRequests)),
		ResponseErrors: make([]schemas.ResponseError, len(c.responseErrors)),
		PageErrors:     make([]string, len(c.pageErrors)),
	}
	copy(snap.ConsoleErrors, c.consoleErrors)
	copy(snap.FailedRequests, c.failedRequests)
	copy(snap.ResponseErrors, c.responseErrors)
	copy(snap.PageErrors, c.pageErrors)
	return snap
}

// Clear empties all four streams. In-flight request tracking is deliberately
// untouched; requests started before a navigation may still complete after
// it.
func (c *Collector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consoleErrors = nil
	c.failedRequests = nil
	c.responseErrors = nil
	c.pageErrors = nil
}

// WaitNetworkIdle polls until no request has been in flight for quietPeriod,
// or the context ends. Used for wait_until=networkidle navigations.
func (c *Collector) WaitNetworkIdle(ctx context.Context, quietPeriod time.Duration) error {
	ticker := time.NewTicker(quietPeriod / 2)
	defer ticker.Stop()

	lastActivity := time.Now()
	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("WaitNetworkIdle aborted.", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
			c.mu.RLock()
			inflightCount := len(c.inflight)
			c.mu.RUnlock()

			if inflightCount > 0 {
				lastActivity = time.Now()
			} else if time.Since(lastActivity) >= quietPeriod {
				return nil
			}
		}
	}
}
