// File: internal/runner/runner.go

// Package runner is the step interpreter: it walks a declarative step
// sequence against a live page, fails fast on the first broken step, and
// leaves behind a run log with classified errors and forensic artifacts.
package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/stagecheck/api/schemas"
	"github.com/xkilldash9x/stagecheck/internal/browser"
	"github.com/xkilldash9x/stagecheck/internal/classify"
	"github.com/xkilldash9x/stagecheck/internal/config"
	"github.com/xkilldash9x/stagecheck/internal/diagnostics"
	"github.com/xkilldash9x/stagecheck/internal/screenshot"
	"github.com/xkilldash9x/stagecheck/internal/selector"
)

// defaultTypeDelay is the pause between key events for "type" steps that do
// not specify their own delay, in milliseconds.
const defaultTypeDelay = 50

// Runner executes step sequences on one page.
type Runner struct {
	logger    *zap.Logger
	page      browser.Page
	collector *diagnostics.Collector
	shots     *screenshot.Service
	cfg       *config.Config
}

// New wires a runner to a page, its diagnostics collector, and a screenshot
// service.
func New(page browser.Page, collector *diagnostics.Collector, shots *screenshot.Service, cfg *config.Config, logger *zap.Logger) *Runner {
	return &Runner{
		logger:    logger.Named("runner"),
		page:      page,
		collector: collector,
		shots:     shots,
		cfg:       cfg,
	}
}

// Run executes steps in order and stops at the first failure. The returned
// result always carries one StepResult per executed step; any diagnostics
// still pending when the run ends are attached so they are never silently
// dropped.
func (r *Runner) Run(ctx context.Context, steps []schemas.Step) *schemas.RunResult {
	result := &schemas.RunResult{Success: true, Steps: []schemas.StepResult{}}

	for i, step := range steps {
		name := step.DisplayName(i)
		r.logger.Info("Executing step.",
			zap.String("step", name), zap.String("action", string(step.Action)))

		switch step.Action {
		case schemas.ActionNavigate:
			if !r.navigate(ctx, step, name, result) {
				return r.finalize(result)
			}
			continue

		case schemas.ActionScreenshot:
			path, err := r.capture(ctx, step, name)
			if err != nil {
				r.failStep(ctx, result, step, name, err)
				return r.finalize(result)
			}
			result.Steps = append(result.Steps, schemas.StepResult{
				Name: name, Action: step.Action, Success: true, ScreenshotPath: path,
			})
			continue

		default:
			if err := r.execute(ctx, step); err != nil {
				r.failStep(ctx, result, step, name, err)
				return r.finalize(result)
			}
		}

		result.Steps = append(result.Steps, schemas.StepResult{
			Name: name, Action: step.Action, Success: true,
		})
	}

	return r.finalize(result)
}

// RunInitial is the no-step-file mode: navigate to url, take one screenshot,
// report.
func (r *Runner) RunInitial(ctx context.Context, url string) *schemas.RunResult {
	result := &schemas.RunResult{Success: true, Steps: []schemas.StepResult{}}

	step := schemas.Step{
		Name:   "Initial navigation",
		Action: schemas.ActionNavigate,
		Params: map[string]any{"url": url},
	}
	if !r.navigate(ctx, step, step.Name, result) {
		return r.finalize(result)
	}

	if _, err := r.shots.Capture(ctx, r.page, "initial_page", false); err != nil {
		r.failStep(ctx, result, step, "Initial screenshot", err)
		return r.finalize(result)
	}

	result.Message = "Page loaded successfully"
	return r.finalize(result)
}

// finalize attaches any diagnostics collected after the last failure (or
// during a clean run) so asynchronous page errors are never lost.
func (r *Runner) finalize(result *schemas.RunResult) *schemas.RunResult {
	if result.Diagnostics == nil && r.collector.HasErrors() {
		result.Diagnostics = r.collector.Summary()
	}
	return result
}

// navigate handles a navigation step. Diagnostics are cleared first so the
// snapshot attached to any failure is scoped to this navigation. Returns
// false when the run must stop.
func (r *Runner) navigate(ctx context.Context, step schemas.Step, name string, result *schemas.RunResult) bool {
	r.collector.Clear()

	url := step.ParamString("url", "")
	if url == "" {
		r.failStep(ctx, result, step, name, fmt.Errorf("navigate step %q is missing the url parameter", name))
		return false
	}
	waitUntil := browser.WaitUntil(step.ParamString("wait_until", r.cfg.Network.WaitUntil))

	resp, err := r.page.Navigate(ctx, url, waitUntil)
	if err != nil {
		f := classify.Navigation(err, url)

		label := "ERROR_navigation_error"
		switch f.Kind {
		case schemas.ErrorTimeout:
			label = "ERROR_navigation_timeout"
		case schemas.ErrorUnknown:
			label = "FAILURE_" + name
		}
		shot := r.shots.CaptureError(ctx, r.page, label)

		r.recordFailure(result, step, name, f, shot)
		return false
	}

	var msg string
	switch {
	case resp == nil:
		msg = "No response received (page may have been redirected or blocked)"
	case resp.Status >= 400:
		msg = fmt.Sprintf("HTTP %d: %s", resp.Status, resp.StatusText)
	}
	if msg != "" {
		r.recordFailure(result, step, name,
			classify.Failure{Kind: schemas.ErrorNavigation, Message: msg}, "")
		return false
	}

	stepResult := schemas.StepResult{Name: name, Action: step.Action, Success: true}
	if r.collector.HasErrors() {
		stepResult.Diagnostics = r.collector.Summary()
	}
	result.Steps = append(result.Steps, stepResult)
	return true
}

// capture handles a screenshot step and returns the artifact path.
func (r *Runner) capture(ctx context.Context, step schemas.Step, name string) (string, error) {
	label := step.ParamString("name", name)
	fullPage := step.ParamBool("full_page", false)

	sel := step.ParamString("selector", "")
	if sel == "" {
		return r.shots.Capture(ctx, r.page, label, fullPage)
	}

	loc, err := selector.Parse(sel)
	if err != nil {
		return "", err
	}
	buf, err := r.page.ElementScreenshot(ctx, loc)
	if err != nil {
		return "", err
	}
	return r.shots.Store(label, buf)
}

// execute dispatches one non-navigation, non-screenshot step.
func (r *Runner) execute(ctx context.Context, step schemas.Step) error {
	switch step.Action {
	case schemas.ActionClick:
		loc, err := r.stepLocator(step)
		if err != nil {
			return err
		}
		opts, err := clickOptions(step)
		if err != nil {
			return err
		}
		return r.page.Click(ctx, loc, opts)

	case schemas.ActionFill:
		loc, err := r.stepLocator(step)
		if err != nil {
			return err
		}
		return r.page.Fill(ctx, loc, step.ParamString("value", ""))

	case schemas.ActionType:
		loc, err := r.stepLocator(step)
		if err != nil {
			return err
		}
		delay := time.Duration(step.ParamFloat("delay", defaultTypeDelay)) * time.Millisecond
		return r.page.Type(ctx, loc, step.ParamString("text", ""), delay)

	case schemas.ActionSelect:
		loc, err := r.stepLocator(step)
		if err != nil {
			return err
		}
		return r.page.SelectOption(ctx, loc, step.ParamString("value", ""))

	case schemas.ActionCheck:
		loc, err := r.stepLocator(step)
		if err != nil {
			return err
		}
		return r.page.Check(ctx, loc)

	case schemas.ActionUncheck:
		loc, err := r.stepLocator(step)
		if err != nil {
			return err
		}
		return r.page.Uncheck(ctx, loc)

	case schemas.ActionHover:
		loc, err := r.stepLocator(step)
		if err != nil {
			return err
		}
		return r.page.Hover(ctx, loc)

	case schemas.ActionWait:
		loc, err := r.stepLocator(step)
		if err != nil {
			return err
		}
		state := browser.ElementState(step.ParamString("state", string(browser.StateVisible)))
		return r.page.WaitFor(ctx, loc, state)

	case schemas.ActionPause:
		seconds := step.ParamFloat("seconds", 1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(seconds * float64(time.Second))):
			return nil
		}

	default:
		return fmt.Errorf("unknown action: %s", step.Action)
	}
}

// clickOptions reads the optional click options object. An option the page
// cannot honor fails the step; a click must never be silently downgraded.
func clickOptions(step schemas.Step) (browser.ClickOptions, error) {
	raw, present := step.Params["options"]
	if !present {
		return browser.ClickOptions{}, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return browser.ClickOptions{}, fmt.Errorf("click options must be an object")
	}

	var opts browser.ClickOptions
	for key, val := range obj {
		switch key {
		case "button":
			b, ok := val.(string)
			if !ok {
				return browser.ClickOptions{}, fmt.Errorf("click option button must be a string")
			}
			switch b {
			case "left", "right", "middle":
				opts.Button = b
			default:
				return browser.ClickOptions{}, fmt.Errorf("unknown mouse button %q", b)
			}
		case "click_count":
			var n float64
			switch v := val.(type) {
			case float64:
				n = v
			case int:
				n = float64(v)
			default:
				return browser.ClickOptions{}, fmt.Errorf("click option click_count must be a number")
			}
			if n < 1 {
				return browser.ClickOptions{}, fmt.Errorf("click option click_count must be at least 1")
			}
			opts.Count = int(n)
		default:
			return browser.ClickOptions{}, fmt.Errorf("unsupported click option %q", key)
		}
	}
	return opts, nil
}

// stepLocator parses the step's selector parameter.
func (r *Runner) stepLocator(step schemas.Step) (selector.Locator, error) {
	sel := step.ParamString("selector", "")
	if sel == "" {
		return selector.Locator{}, fmt.Errorf("%s step is missing the selector parameter", step.Action)
	}
	return selector.Parse(sel)
}

// failStep classifies err, captures a best-effort error screenshot, and marks
// the run failed. The screenshot label encodes the failure class so the
// artifact directory reads as a timeline.
func (r *Runner) failStep(ctx context.Context, result *schemas.RunResult, step schemas.Step, name string, err error) {
	f := classify.Action(err)

	var label string
	switch f.Kind {
	case schemas.ErrorTimeout:
		label = "TIMEOUT_" + name
	case schemas.ErrorUnknown:
		label = "FAILURE_" + name
	default:
		label = "ERROR_" + name
	}
	shot := r.shots.CaptureError(ctx, r.page, label)

	r.recordFailure(result, step, name, f, shot)
}

// recordFailure writes a classified failure into both the step log and the
// run-level summary, with the diagnostics collected so far.
func (r *Runner) recordFailure(result *schemas.RunResult, step schemas.Step, name string, f classify.Failure, shot string) {
	r.logger.Warn("Step failed.",
		zap.String("step", name),
		zap.String("error_type", string(f.Kind)),
		zap.String("error", f.Message))

	diag := r.collector.Summary()
	result.Success = false
	result.Error = name + ": " + f.Message
	result.ErrorType = f.Kind
	result.Diagnostics = diag
	result.Steps = append(result.Steps, schemas.StepResult{
		Name:           name,
		Action:         step.Action,
		Success:        false,
		Error:          f.Message,
		ErrorType:      f.Kind,
		ScreenshotPath: shot,
	})
}
