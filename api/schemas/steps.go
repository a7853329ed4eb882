// File: api/schemas/steps.go
package schemas

import "fmt"

// Action identifies a single kind of step the interpreter can execute.
// The set is closed; anything else in a step file is a configuration error.
type Action string

const (
	ActionNavigate   Action = "navigate"
	ActionClick      Action = "click"
	ActionFill       Action = "fill"
	ActionType       Action = "type"
	ActionSelect     Action = "select"
	ActionCheck      Action = "check"
	ActionUncheck    Action = "uncheck"
	ActionHover      Action = "hover"
	ActionWait       Action = "wait"
	ActionScreenshot Action = "screenshot"
	ActionPause      Action = "pause"
)

// knownActions is the authoritative list used for validation.
var knownActions = map[Action]struct{}{
	ActionNavigate:   {},
	ActionClick:      {},
	ActionFill:       {},
	ActionType:       {},
	ActionSelect:     {},
	ActionCheck:      {},
	ActionUncheck:    {},
	ActionHover:      {},
	ActionWait:       {},
	ActionScreenshot: {},
	ActionPause:      {},
}

// Known reports whether the action is part of the supported set.
func (a Action) Known() bool {
	_, ok := knownActions[a]
	return ok
}

// Step is one declarative entry in a test sequence. Steps are read once from
// the step file and never mutated by the interpreter.
type Step struct {
	Name   string         `json:"name,omitempty"`
	Action Action         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// DisplayName returns the step name, falling back to "Step N" (1-based) when
// the step file did not provide one.
func (s Step) DisplayName(index int) string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("Step %d", index+1)
}

// ParamString fetches a string parameter, returning def when absent or not a
// string.
func (s Step) ParamString(key, def string) string {
	if v, ok := s.Params[key].(string); ok {
		return v
	}
	return def
}

// ParamBool fetches a boolean parameter with a default.
func (s Step) ParamBool(key string, def bool) bool {
	if v, ok := s.Params[key].(bool); ok {
		return v
	}
	return def
}

// ParamFloat fetches a numeric parameter with a default. JSON numbers decode
// as float64, but step files written by hand sometimes carry integers typed
// through other tooling, so int forms are accepted too.
func (s Step) ParamFloat(key string, def float64) float64 {
	switch v := s.Params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}
