// File: internal/browser/interface.go
package browser

import (
	"context"
	"time"

	"github.com/xkilldash9x/stagecheck/internal/selector"
)

// WaitUntil selects the barrier a navigation waits behind before the step is
// considered complete.
type WaitUntil string

const (
	WaitLoad             WaitUntil = "load"
	WaitDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitNetworkIdle      WaitUntil = "networkidle"
)

// NavigationResult carries the main-document response of a navigation. A nil
// result (with nil error) means the browser produced no response at all, e.g.
// an about:blank or same-document navigation.
type NavigationResult struct {
	Status     int64
	StatusText string
}

// ClickOptions refine a click. The zero value is a single left click.
type ClickOptions struct {
	// Button is "left", "right", or "middle". Empty means left.
	Button string
	// Count is the click count; values below 2 mean a single click.
	Count int
}

// ElementState is the condition WaitFor blocks on.
type ElementState string

const (
	StateVisible  ElementState = "visible"
	StateHidden   ElementState = "hidden"
	StateAttached ElementState = "attached"
	StateDetached ElementState = "detached"
)

// Page is the capability the step interpreter and the screenshot service
// consume. The production implementation is Session (a Chrome tab over CDP);
// tests substitute fakes.
type Page interface {
	Navigate(ctx context.Context, url string, waitUntil WaitUntil) (*NavigationResult, error)

	Click(ctx context.Context, loc selector.Locator, opts ClickOptions) error
	Fill(ctx context.Context, loc selector.Locator, value string) error
	Type(ctx context.Context, loc selector.Locator, text string, delay time.Duration) error
	SelectOption(ctx context.Context, loc selector.Locator, value string) error
	Check(ctx context.Context, loc selector.Locator) error
	Uncheck(ctx context.Context, loc selector.Locator) error
	Hover(ctx context.Context, loc selector.Locator) error
	WaitFor(ctx context.Context, loc selector.Locator, state ElementState) error

	Text(ctx context.Context, loc selector.Locator) (string, error)
	Attribute(ctx context.Context, loc selector.Locator, name string) (string, error)
	IsVisible(ctx context.Context, loc selector.Locator) (bool, error)

	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	ElementScreenshot(ctx context.Context, loc selector.Locator) ([]byte, error)
}
