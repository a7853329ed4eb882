//go:build go1.18
// +build go1.18

package selector

import (
	"strings"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
)

// FuzzParse throws arbitrary selector strings at the parser. Parsing must
// never panic, and any locator it does produce must lower to a non-panicking
// query.
func FuzzParse(f *testing.F) {
	f.Add([]byte("role:button[name=Submit]"))
	f.Add([]byte("text:Welcome"))
	f.Add([]byte(`css:a[href="x"]`))
	f.Add([]byte("role:button[name]"))

	f.Fuzz(func(t *testing.T, data []byte) {
		c := fuzz.NewConsumer(data)
		s, err := c.GetString()
		if err != nil {
			return
		}

		loc, err := Parse(s)
		if err != nil {
			// Only role selectors have a rejectable grammar.
			if !strings.HasPrefix(s, "role:") {
				t.Fatalf("non-role selector %q rejected: %v", s, err)
			}
			return
		}
		_, _ = loc.Query()
	})
}
