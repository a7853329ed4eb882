// File: internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stagecheck/internal/config"
	"github.com/xkilldash9x/stagecheck/internal/diagnostics"
	"github.com/xkilldash9x/stagecheck/internal/selector"
)

// Session is one Chrome tab driven over CDP. It implements Page. All its
// operations are bounded by the configured action or navigation timeout, and
// every failure that originates here is wrapped as an AutomationError.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *config.Config
	logger *zap.Logger

	collector *diagnostics.Collector
	onClose   func()
	closeOnce sync.Once
}

// compile-time check that Session satisfies Page.
var _ Page = (*Session)(nil)

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Diagnostics exposes the collector attached to this tab.
func (s *Session) Diagnostics() *diagnostics.Collector { return s.collector }

// start launches the tab, applies the viewport, and attaches the diagnostics
// collector. Called once by the manager.
func (s *Session) start(ctx context.Context) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	vp := s.cfg.Browser.Viewport
	if err := chromedp.Run(runCtx,
		emulation.SetDeviceMetricsOverride(int64(vp.Width), int64(vp.Height), 1, false),
	); err != nil {
		return fmt.Errorf("failed to apply viewport: %w", err)
	}

	// The listener must outlive start, so it attaches to the tab context.
	if err := s.collector.Attach(s.ctx); err != nil {
		return err
	}
	return nil
}

// Close tears down the tab. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.logger.Debug("Closing session.", zap.String("session_id", s.id))
		s.cancel()
		if s.onClose != nil {
			s.onClose()
		}
	})
}

// CombineContext derives a context that is canceled when either input is.
// The combined context carries ctx1's values, which is what routes chromedp
// actions to the right target.
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(ctx1)

	go func() {
		select {
		case <-ctx2.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}

// run executes chromedp actions under the session lifetime, the caller's
// context, and the configured action timeout, wrapping any failure as an
// automation error for op.
func (s *Session) run(ctx context.Context, op string, actions ...chromedp.Action) error {
	opCtx, opCancel := CombineContext(s.ctx, ctx)
	defer opCancel()

	timeout := s.cfg.Network.ActionTimeout
	actCtx, actCancel := context.WithTimeout(opCtx, timeout)
	defer actCancel()

	if err := chromedp.Run(actCtx, actions...); err != nil {
		if actCtx.Err() == context.DeadlineExceeded {
			return wrapAutomation(op, fmt.Errorf("timed out after %s: %w", timeout, context.DeadlineExceeded))
		}
		return wrapAutomation(op, err)
	}
	return nil
}

// queryTarget lowers a locator to the chromedp query string and engine.
func queryTarget(loc selector.Locator) (string, chromedp.QueryOption) {
	q, kind := loc.Query()
	if kind == selector.QueryXPath {
		return q, chromedp.BySearch
	}
	return q, chromedp.ByQuery
}

// -- Navigation --

// Navigate loads url and waits behind the requested barrier. A nil result
// with nil error means the browser produced no main-document response.
func (s *Session) Navigate(ctx context.Context, url string, waitUntil WaitUntil) (*NavigationResult, error) {
	s.logger.Debug("Navigating.", zap.String("url", url), zap.String("wait_until", string(waitUntil)))

	opCtx, opCancel := CombineContext(s.ctx, ctx)
	defer opCancel()

	navTimeout := s.cfg.Network.NavigationTimeout
	navCtx, navCancel := context.WithTimeout(opCtx, navTimeout)
	defer navCancel()

	// RunResponse resolves once the navigation commits and the load event
	// fires, and hands back the main-document response.
	resp, err := chromedp.RunResponse(navCtx, chromedp.Navigate(url))
	if err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return nil, wrapAutomation("navigate",
				fmt.Errorf("navigation timed out after %s: %w", navTimeout, context.DeadlineExceeded))
		}
		return nil, wrapAutomation("navigate", err)
	}

	if waitUntil == WaitNetworkIdle {
		if err := s.collector.WaitNetworkIdle(navCtx, s.cfg.Network.IdleQuietPeriod); err != nil {
			return nil, wrapAutomation("navigate", err)
		}
	}

	if resp == nil {
		return nil, nil
	}
	return &NavigationResult{Status: resp.Status, StatusText: resp.StatusText}, nil
}

// -- Element interaction --

// Click scrolls the element into view, waits for it to be visible, then
// clicks it. Non-default options route through a raw mouse event on the
// element's node, since the plain click helper only does single left clicks.
func (s *Session) Click(ctx context.Context, loc selector.Locator, opts ClickOptions) error {
	s.logger.Debug("Clicking element.",
		zap.String("selector", loc.Raw()), zap.String("button", opts.Button), zap.Int("count", opts.Count))

	q, by := queryTarget(loc)

	var mouse []chromedp.MouseOption
	if opts.Button != "" && opts.Button != "left" {
		mouse = append(mouse, chromedp.Button(opts.Button))
	}
	if opts.Count > 1 {
		mouse = append(mouse, chromedp.ClickCount(opts.Count))
	}

	click := chromedp.Click(q, by)
	if len(mouse) > 0 {
		click = chromedp.QueryAfter(q, func(ctx context.Context, execCtx runtime.ExecutionContextID, nodes ...*cdp.Node) error {
			if len(nodes) == 0 {
				return ErrElementNotFound
			}
			return chromedp.MouseClickNode(nodes[0], mouse...).Do(ctx)
		}, by)
	}

	return s.run(ctx, "click", chromedp.Tasks{
		chromedp.ScrollIntoView(q, by),
		chromedp.WaitVisible(q, by),
		click,
	})
}

// elementResult is the shape every element-script evaluation returns.
type elementResult struct {
	Found   bool `json:"found"`
	Matched bool `json:"matched"`
	Visible bool `json:"visible"`
}

// elementJS builds an IIFE that resolves the locator to its first match,
// binds it to `el`, and runs body. body must return an object with at least
// {found: true}.
func elementJS(loc selector.Locator, body string) string {
	q, kind := loc.Query()
	var lookup string
	if kind == selector.QueryXPath {
		lookup = fmt.Sprintf(
			`document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue`,
			strconv.Quote(q))
	} else {
		lookup = fmt.Sprintf(`document.querySelector(%s)`, strconv.Quote(q))
	}
	return fmt.Sprintf(`(() => {
	const el = %s;
	if (!el) { return { found: false }; }
	%s
})()`, lookup, body)
}

// Fill sets the element's value in one shot and fires the input and change
// events frameworks listen for.
func (s *Session) Fill(ctx context.Context, loc selector.Locator, value string) error {
	s.logger.Debug("Filling element.", zap.String("selector", loc.Raw()), zap.Int("value_length", len(value)))

	q, by := queryTarget(loc)
	script := elementJS(loc, fmt.Sprintf(`
	el.focus();
	el.value = %s;
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	return { found: true };`, strconv.Quote(value)))

	var res elementResult
	if err := s.run(ctx, "fill", chromedp.Tasks{
		chromedp.ScrollIntoView(q, by),
		chromedp.WaitVisible(q, by),
		chromedp.Evaluate(script, &res),
	}); err != nil {
		return err
	}
	if !res.Found {
		return wrapAutomation("fill", fmt.Errorf("%w: %s", ErrElementNotFound, loc.Raw()))
	}
	return nil
}

// Type focuses the element and sends individual key events, pausing delay
// between them. A zero delay degenerates to a plain SendKeys.
func (s *Session) Type(ctx context.Context, loc selector.Locator, text string, delay time.Duration) error {
	s.logger.Debug("Typing into element.",
		zap.String("selector", loc.Raw()), zap.Int("text_length", len(text)), zap.Duration("delay", delay))

	q, by := queryTarget(loc)
	if delay <= 0 {
		return s.run(ctx, "type", chromedp.Tasks{
			chromedp.ScrollIntoView(q, by),
			chromedp.WaitVisible(q, by),
			chromedp.SendKeys(q, text, by),
		})
	}

	return s.run(ctx, "type", chromedp.Tasks{
		chromedp.ScrollIntoView(q, by),
		chromedp.WaitVisible(q, by),
		chromedp.Focus(q, by),
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, r := range text {
				if err := chromedp.KeyEvent(string(r)).Do(ctx); err != nil {
					return err
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}
			return nil
		}),
	})
}

// SelectOption selects the option whose value equals value.
func (s *Session) SelectOption(ctx context.Context, loc selector.Locator, value string) error {
	s.logger.Debug("Selecting option.", zap.String("selector", loc.Raw()), zap.String("value", value))

	q, by := queryTarget(loc)
	script := elementJS(loc, fmt.Sprintf(`
	el.value = %[1]s;
	if (el.value !== %[1]s) { return { found: true, matched: false }; }
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	return { found: true, matched: true };`, strconv.Quote(value)))

	var res elementResult
	if err := s.run(ctx, "select", chromedp.Tasks{
		chromedp.ScrollIntoView(q, by),
		chromedp.WaitVisible(q, by),
		chromedp.Evaluate(script, &res),
	}); err != nil {
		return err
	}
	if !res.Found {
		return wrapAutomation("select", fmt.Errorf("%w: %s", ErrElementNotFound, loc.Raw()))
	}
	if !res.Matched {
		return wrapAutomation("select", fmt.Errorf("no option with value %q in %s", value, loc.Raw()))
	}
	return nil
}

// setChecked drives Check and Uncheck. Dispatches events only when the state
// actually flips.
func (s *Session) setChecked(ctx context.Context, op string, loc selector.Locator, checked bool) error {
	q, by := queryTarget(loc)
	script := elementJS(loc, fmt.Sprintf(`
	if (el.checked !== %[1]t) {
		el.checked = %[1]t;
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
	}
	return { found: true };`, checked))

	var res elementResult
	if err := s.run(ctx, op, chromedp.Tasks{
		chromedp.ScrollIntoView(q, by),
		chromedp.WaitVisible(q, by),
		chromedp.Evaluate(script, &res),
	}); err != nil {
		return err
	}
	if !res.Found {
		return wrapAutomation(op, fmt.Errorf("%w: %s", ErrElementNotFound, loc.Raw()))
	}
	return nil
}

// Check sets a checkbox or radio to checked.
func (s *Session) Check(ctx context.Context, loc selector.Locator) error {
	s.logger.Debug("Checking element.", zap.String("selector", loc.Raw()))
	return s.setChecked(ctx, "check", loc, true)
}

// Uncheck clears a checkbox.
func (s *Session) Uncheck(ctx context.Context, loc selector.Locator) error {
	s.logger.Debug("Unchecking element.", zap.String("selector", loc.Raw()))
	return s.setChecked(ctx, "uncheck", loc, false)
}

// Hover moves the mouse to the element's center. A real mouse-move event is
// dispatched so CSS :hover rules and mouseover handlers both fire.
func (s *Session) Hover(ctx context.Context, loc selector.Locator) error {
	s.logger.Debug("Hovering element.", zap.String("selector", loc.Raw()))

	q, by := queryTarget(loc)
	return s.run(ctx, "hover", chromedp.Tasks{
		chromedp.ScrollIntoView(q, by),
		chromedp.WaitVisible(q, by),
		chromedp.QueryAfter(q, func(ctx context.Context, execCtx runtime.ExecutionContextID, nodes ...*cdp.Node) error {
			if len(nodes) == 0 {
				return ErrElementNotFound
			}
			box, err := dom.GetBoxModel().WithNodeID(nodes[0].NodeID).Do(ctx)
			if err != nil {
				return err
			}
			content := box.Content
			if len(content) < 8 {
				return fmt.Errorf("element has no layout box: %s", loc.Raw())
			}
			x := (content[0] + content[4]) / 2
			y := (content[1] + content[5]) / 2
			return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
		}, by),
	})
}

// WaitFor blocks until the element reaches the requested state.
func (s *Session) WaitFor(ctx context.Context, loc selector.Locator, state ElementState) error {
	s.logger.Debug("Waiting for element state.",
		zap.String("selector", loc.Raw()), zap.String("state", string(state)))

	q, by := queryTarget(loc)
	var action chromedp.Action
	switch state {
	case StateVisible:
		action = chromedp.WaitVisible(q, by)
	case StateHidden:
		action = chromedp.WaitNotVisible(q, by)
	case StateAttached:
		action = chromedp.WaitReady(q, by)
	case StateDetached:
		action = chromedp.WaitNotPresent(q, by)
	default:
		return wrapAutomation("wait", fmt.Errorf("unknown element state %q", state))
	}
	return s.run(ctx, "wait", action)
}

// -- Reads --

// Text returns the element's visible text content.
func (s *Session) Text(ctx context.Context, loc selector.Locator) (string, error) {
	q, by := queryTarget(loc)
	var text string
	if err := s.run(ctx, "text", chromedp.Text(q, &text, by)); err != nil {
		return "", err
	}
	return text, nil
}

// Attribute returns the named attribute. A present element with a missing
// attribute yields an empty string, not an error.
func (s *Session) Attribute(ctx context.Context, loc selector.Locator, name string) (string, error) {
	q, by := queryTarget(loc)
	var (
		value string
		ok    bool
	)
	if err := s.run(ctx, "attribute", chromedp.AttributeValue(q, name, &value, &ok, by)); err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return value, nil
}

// IsVisible reports whether the element exists and is rendered. A missing
// element is simply not visible; it is not an error.
func (s *Session) IsVisible(ctx context.Context, loc selector.Locator) (bool, error) {
	script := elementJS(loc, `
	const st = window.getComputedStyle(el);
	const visible = st.visibility !== 'hidden' && st.display !== 'none' && el.getClientRects().length > 0;
	return { found: true, visible: visible };`)

	var res elementResult
	if err := s.run(ctx, "visible", chromedp.Evaluate(script, &res)); err != nil {
		return false, err
	}
	return res.Found && res.Visible, nil
}

// -- Screenshots --

// Screenshot captures the viewport, or the entire page when fullPage is set.
func (s *Session) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	var buf []byte
	var action chromedp.Action
	if fullPage {
		action = chromedp.FullScreenshot(&buf, 90)
	} else {
		action = chromedp.CaptureScreenshot(&buf)
	}
	if err := s.run(ctx, "screenshot", action); err != nil {
		return nil, err
	}
	return buf, nil
}

// ElementScreenshot captures just the element's bounding box.
func (s *Session) ElementScreenshot(ctx context.Context, loc selector.Locator) ([]byte, error) {
	q, by := queryTarget(loc)
	var buf []byte
	if err := s.run(ctx, "screenshot", chromedp.Tasks{
		chromedp.ScrollIntoView(q, by),
		chromedp.WaitVisible(q, by),
		chromedp.Screenshot(q, &buf, by),
	}); err != nil {
		return nil, err
	}
	return buf, nil
}
