package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/stagecheck/internal/selector"
)

func TestCombineContext(t *testing.T) {
	t.Run("cancels when the primary is canceled", func(t *testing.T) {
		ctx1, cancel1 := context.WithCancel(context.Background())
		combined, cancel := CombineContext(ctx1, context.Background())
		defer cancel()

		cancel1()
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context did not observe primary cancellation")
		}
	})

	t.Run("cancels when the secondary is canceled", func(t *testing.T) {
		ctx2, cancel2 := context.WithCancel(context.Background())
		combined, cancel := CombineContext(context.Background(), ctx2)
		defer cancel()

		cancel2()
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context did not observe secondary cancellation")
		}
	})

	t.Run("carries the primary's values", func(t *testing.T) {
		type key struct{}
		ctx1 := context.WithValue(context.Background(), key{}, "target")
		combined, cancel := CombineContext(ctx1, context.Background())
		defer cancel()

		assert.Equal(t, "target", combined.Value(key{}))
	})
}

func TestAutomationError(t *testing.T) {
	base := errors.New("boom")
	err := wrapAutomation("click", base)

	require.Error(t, err)
	assert.True(t, IsAutomation(err))
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "click")

	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, wrapAutomation("click", nil))
	})

	t.Run("plain errors are not automation errors", func(t *testing.T) {
		assert.False(t, IsAutomation(errors.New("boom")))
	})

	t.Run("wrapped automation errors are still detected", func(t *testing.T) {
		wrapped := fmt.Errorf("outer: %w", wrapAutomation("fill", base))
		assert.True(t, IsAutomation(wrapped))
	})

	t.Run("deadline survives the wrap", func(t *testing.T) {
		err := wrapAutomation("navigate", fmt.Errorf("timed out: %w", context.DeadlineExceeded))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestQueryTarget(t *testing.T) {
	t.Run("css locators use the query engine", func(t *testing.T) {
		loc, err := selector.Parse("#login")
		require.NoError(t, err)
		q, _ := queryTarget(loc)
		assert.Equal(t, "#login", q)
	})

	t.Run("tagged locators lower to xpath", func(t *testing.T) {
		loc, err := selector.Parse("text:Sign in")
		require.NoError(t, err)
		q, _ := queryTarget(loc)
		assert.Contains(t, q, "//*")
		assert.Contains(t, q, "Sign in")
	})
}

func TestElementJS(t *testing.T) {
	t.Run("css lookup uses querySelector", func(t *testing.T) {
		loc, err := selector.Parse("#btn")
		require.NoError(t, err)
		script := elementJS(loc, "return { found: true };")
		assert.Contains(t, script, `document.querySelector("#btn")`)
		assert.Contains(t, script, "if (!el) { return { found: false }; }")
	})

	t.Run("xpath lookup uses document.evaluate", func(t *testing.T) {
		loc, err := selector.Parse("testid:submit")
		require.NoError(t, err)
		script := elementJS(loc, "return { found: true };")
		assert.Contains(t, script, "document.evaluate(")
		assert.Contains(t, script, "FIRST_ORDERED_NODE_TYPE")
	})

	t.Run("quotes in the query survive embedding", func(t *testing.T) {
		loc, err := selector.Parse(`input[name="user"]`)
		require.NoError(t, err)
		script := elementJS(loc, "return { found: true };")
		assert.Contains(t, script, `\"user\"`)
	})
}
