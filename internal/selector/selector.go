// File: internal/selector/selector.go

// Package selector turns tagged selector strings (role:, text:, label:,
// placeholder:, testid:, xpath:, css:, or a bare CSS expression) into a
// locate strategy the browser session can execute. Parsing is pure: no page
// is touched until the session runs the resulting query.
package selector

import (
	"fmt"
	"sort"
	"strings"
)

// Kind enumerates the closed set of locate strategies.
type Kind int

const (
	KindCSS Kind = iota
	KindXPath
	KindText
	KindLabel
	KindPlaceholder
	KindTestID
	KindRole
)

func (k Kind) String() string {
	switch k {
	case KindCSS:
		return "css"
	case KindXPath:
		return "xpath"
	case KindText:
		return "text"
	case KindLabel:
		return "label"
	case KindPlaceholder:
		return "placeholder"
	case KindTestID:
		return "testid"
	case KindRole:
		return "role"
	}
	return "unknown"
}

// QueryKind tells the session which query engine the lowered expression
// targets.
type QueryKind int

const (
	QueryCSS QueryKind = iota
	QueryXPath
)

// Locator is a resolved, lazy reference to one or more page elements.
type Locator struct {
	Kind  Kind
	Value string

	// Role selectors only.
	Role        string
	RoleOptions map[string]string

	raw string
}

// Raw returns the original selector string, useful for error messages.
func (l Locator) Raw() string { return l.raw }

// Parse dispatches on the selector prefix. Prefixes are disjoint, so the
// first match wins and the remainder is taken verbatim (it may itself
// contain colons). A string with no recognized prefix is a CSS selector.
func Parse(s string) (Locator, error) {
	switch {
	case strings.HasPrefix(s, "role:"):
		return parseRole(s)
	case strings.HasPrefix(s, "text:"):
		return Locator{Kind: KindText, Value: s[len("text:"):], raw: s}, nil
	case strings.HasPrefix(s, "label:"):
		return Locator{Kind: KindLabel, Value: s[len("label:"):], raw: s}, nil
	case strings.HasPrefix(s, "placeholder:"):
		return Locator{Kind: KindPlaceholder, Value: s[len("placeholder:"):], raw: s}, nil
	case strings.HasPrefix(s, "testid:"):
		return Locator{Kind: KindTestID, Value: s[len("testid:"):], raw: s}, nil
	case strings.HasPrefix(s, "xpath:"):
		return Locator{Kind: KindXPath, Value: s[len("xpath:"):], raw: s}, nil
	case strings.HasPrefix(s, "css:"):
		return Locator{Kind: KindCSS, Value: s[len("css:"):], raw: s}, nil
	default:
		return Locator{Kind: KindCSS, Value: s, raw: s}, nil
	}
}

// parseRole handles role:<role>[k1=v1,k2=v2,...]. The bracket suffix is
// optional; malformed options are a caller error, not silently ignored.
func parseRole(s string) (Locator, error) {
	body := s[len("role:"):]

	idx := strings.Index(body, "[")
	if idx < 0 {
		role := strings.TrimSpace(body)
		if role == "" {
			return Locator{}, fmt.Errorf("role selector %q has no role name", s)
		}
		return Locator{Kind: KindRole, Role: role, raw: s}, nil
	}

	role := strings.TrimSpace(body[:idx])
	if role == "" {
		return Locator{}, fmt.Errorf("role selector %q has no role name", s)
	}

	attrs := strings.TrimRight(body[idx+1:], "]")
	options := make(map[string]string)
	for _, attr := range strings.Split(attrs, ",") {
		key, val, ok := strings.Cut(attr, "=")
		if !ok {
			return Locator{}, fmt.Errorf("role selector %q: option %q is missing '='", s, attr)
		}
		key = strings.Trim(strings.TrimSpace(key), `'"`)
		val = strings.Trim(strings.TrimSpace(val), `'"`)
		if key == "" || val == "" {
			return Locator{}, fmt.Errorf("role selector %q: option %q has an empty key or value", s, attr)
		}
		options[key] = val
	}

	return Locator{Kind: KindRole, Role: role, RoleOptions: options, raw: s}, nil
}

// Query lowers the locator to an expression the browser can evaluate. CSS
// strategies pass through untouched; everything else becomes XPath. Lowering
// is deterministic for a given locator.
func (l Locator) Query() (string, QueryKind) {
	switch l.Kind {
	case KindCSS:
		return l.Value, QueryCSS
	case KindXPath:
		return l.Value, QueryXPath
	case KindText:
		return fmt.Sprintf(`//*[text()[contains(normalize-space(.), %s)]]`, xpathLiteral(l.Value)), QueryXPath
	case KindLabel:
		lit := xpathLiteral(l.Value)
		return fmt.Sprintf(
			`//*[@id = //label[contains(normalize-space(.), %[1]s)]/@for] | //label[contains(normalize-space(.), %[1]s)]//input | //*[@aria-label=%[1]s]`,
			lit), QueryXPath
	case KindPlaceholder:
		return fmt.Sprintf(`//*[@placeholder=%s]`, xpathLiteral(l.Value)), QueryXPath
	case KindTestID:
		return fmt.Sprintf(`//*[@data-testid=%s]`, xpathLiteral(l.Value)), QueryXPath
	case KindRole:
		return l.roleXPath(), QueryXPath
	}
	return l.Value, QueryCSS
}

// implicitRoleTags maps ARIA roles to the HTML elements that carry them
// implicitly, so role:button also finds plain <button> elements.
var implicitRoleTags = map[string][]string{
	"button":     {"button"},
	"link":       {"a"},
	"textbox":    {"input", "textarea"},
	"checkbox":   {"input"},
	"radio":      {"input"},
	"combobox":   {"select"},
	"heading":    {"h1", "h2", "h3", "h4", "h5", "h6"},
	"list":       {"ul", "ol"},
	"listitem":   {"li"},
	"img":        {"img"},
	"navigation": {"nav"},
	"main":       {"main"},
	"form":       {"form"},
	"table":      {"table"},
}

func (l Locator) roleXPath() string {
	preds := []string{fmt.Sprintf("@role=%s", xpathLiteral(l.Role))}
	for _, tag := range implicitRoleTags[l.Role] {
		preds = append(preds, "self::"+tag)
	}
	expr := fmt.Sprintf("//*[%s]", strings.Join(preds, " or "))

	// Options refine the match. "name" follows the accessible-name idea
	// (aria-label or visible text); any other key matches aria-<key>.
	keys := make([]string, 0, len(l.RoleOptions))
	for k := range l.RoleOptions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		lit := xpathLiteral(l.RoleOptions[k])
		if k == "name" {
			expr += fmt.Sprintf(`[@aria-label=%[1]s or contains(normalize-space(.), %[1]s)]`, lit)
		} else {
			expr += fmt.Sprintf(`[@aria-%s=%s]`, k, lit)
		}
	}
	return expr
}

// xpathLiteral quotes an arbitrary string as an XPath 1.0 string literal.
// XPath has no escape syntax, so strings containing both quote characters
// fall back to concat().
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	var parts []string
	for _, piece := range strings.Split(s, `"`) {
		if piece != "" {
			parts = append(parts, `"`+piece+`"`)
		}
		parts = append(parts, `'"'`)
	}
	parts = parts[:len(parts)-1] // Drop the trailing quote piece.
	return "concat(" + strings.Join(parts, ", ") + ")"
}
