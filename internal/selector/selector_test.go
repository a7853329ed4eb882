package selector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_PrefixDispatch(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKind Kind
		wantVal  string
	}{
		{"text strips exactly the prefix", "text:Welcome", KindText, "Welcome"},
		{"text remainder may contain colons", "text:Note: read this", KindText, "Note: read this"},
		{"label", "label:Email", KindLabel, "Email"},
		{"placeholder", "placeholder:Enter name", KindPlaceholder, "Enter name"},
		{"testid", "testid:submit-btn", KindTestID, "submit-btn"},
		{"xpath passes through unmodified", "xpath://div[@id='x']", KindXPath, "//div[@id='x']"},
		{"css passes through unmodified", "css:.btn", KindCSS, ".btn"},
		{"bare string defaults to css", "#login > button", KindCSS, "#login > button"},
		{"empty string defaults to css", "", KindCSS, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, loc.Kind)
			assert.Equal(t, tt.wantVal, loc.Value)
			assert.Equal(t, tt.input, loc.Raw())
		})
	}
}

func TestParse_Role(t *testing.T) {
	t.Run("with options", func(t *testing.T) {
		loc, err := Parse("role:button[name=Submit]")
		require.NoError(t, err)
		assert.Equal(t, KindRole, loc.Kind)
		assert.Equal(t, "button", loc.Role)
		assert.Equal(t, map[string]string{"name": "Submit"}, loc.RoleOptions)
	})

	t.Run("without brackets", func(t *testing.T) {
		loc, err := Parse("role:link")
		require.NoError(t, err)
		assert.Equal(t, "link", loc.Role)
		assert.Empty(t, loc.RoleOptions)
	})

	t.Run("multiple options with quotes and spaces", func(t *testing.T) {
		loc, err := Parse(`role:textbox[name="Full name", checked=true]`)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"name": "Full name", "checked": "true"}, loc.RoleOptions)
	})

	t.Run("quoted keys are trimmed like quoted values", func(t *testing.T) {
		loc, err := Parse(`role:button['name'=Submit]`)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"name": "Submit"}, loc.RoleOptions)

		loc, err = Parse(`role:button[ "name" = "Go" ]`)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"name": "Go"}, loc.RoleOptions)
	})

	t.Run("option missing equals is an error", func(t *testing.T) {
		_, err := Parse("role:button[name]")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing '='")
	})

	t.Run("empty value is an error", func(t *testing.T) {
		_, err := Parse("role:button[name=]")
		require.Error(t, err)
	})

	t.Run("empty role is an error", func(t *testing.T) {
		_, err := Parse("role:")
		require.Error(t, err)
		_, err = Parse("role:[name=x]")
		require.Error(t, err)
	})
}

func TestParse_Deterministic(t *testing.T) {
	// Resolution is pure: the same string always yields the same locator and
	// the same lowered query.
	for _, s := range []string{"text:Hi", "role:button[name=Go]", "css:#a", "div.row"} {
		a, errA := Parse(s)
		b, errB := Parse(s)
		require.NoError(t, errA)
		require.NoError(t, errB)
		qa, ka := a.Query()
		qb, kb := b.Query()
		assert.Equal(t, qa, qb)
		assert.Equal(t, ka, kb)
	}
}

func TestQuery_Lowering(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantKind  QueryKind
		wantQuery string
	}{
		{"css stays css", "css:.btn", QueryCSS, ".btn"},
		{"default stays css", "#id", QueryCSS, "#id"},
		{"xpath stays xpath", "xpath://a", QueryXPath, "//a"},
		{"text lowers to xpath", "text:Welcome", QueryXPath,
			`//*[text()[contains(normalize-space(.), "Welcome")]]`},
		{"placeholder lowers to attribute match", "placeholder:Enter name", QueryXPath,
			`//*[@placeholder="Enter name"]`},
		{"testid lowers to data-testid", "testid:submit-btn", QueryXPath,
			`//*[@data-testid="submit-btn"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := Parse(tt.input)
			require.NoError(t, err)
			q, k := loc.Query()
			assert.Equal(t, tt.wantKind, k)
			assert.Equal(t, tt.wantQuery, q)
		})
	}
}

func TestQuery_Role(t *testing.T) {
	loc, err := Parse("role:button[name=Submit]")
	require.NoError(t, err)
	q, k := loc.Query()
	assert.Equal(t, QueryXPath, k)
	assert.Contains(t, q, `@role="button"`)
	assert.Contains(t, q, "self::button")
	assert.Contains(t, q, `@aria-label="Submit"`)

	// Non-name options become aria attributes.
	loc, err = Parse("role:checkbox[checked=true]")
	require.NoError(t, err)
	q, _ = loc.Query()
	assert.Contains(t, q, `@aria-checked="true"`)
}

func TestQuery_Label(t *testing.T) {
	loc, err := Parse("label:Email")
	require.NoError(t, err)
	q, k := loc.Query()
	assert.Equal(t, QueryXPath, k)
	// The label strategy matches for/id association, nested inputs, and
	// aria-label in one union expression.
	assert.Contains(t, q, `//label[contains(normalize-space(.), "Email")]/@for`)
	assert.Contains(t, q, `@aria-label="Email"`)
}

func TestXPathLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", `"plain"`},
		{`has "quotes"`, `'has "quotes"'`},
		{"it's", `"it's"`},
		{`both "and" it's`, `concat("both ", '"', "and", '"', " it's")`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, xpathLiteral(tt.in), "input %q", tt.in)
	}
}

func TestXPathLiteral_NeverPanics(t *testing.T) {
	for _, s := range []string{"", `"`, `""`, `'`, `'"'"`, strings.Repeat(`"'`, 50)} {
		assert.NotPanics(t, func() { _ = xpathLiteral(s) }, "input %q", s)
	}
}
