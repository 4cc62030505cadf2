// Package expand substitutes {{ name }} placeholders in template files.
//
// Output is source text, not markup: values are inserted verbatim with no
// escaping. Placeholders naming keys absent from the context are left
// untouched so that files using the same brace syntax for other tools
// survive a render.
package expand

import (
	"regexp"

	"github.com/lherron/stencil/internal/manifest"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.-]*)\s*\}\}`)

// Render expands every known placeholder in raw.
func Render(raw []byte, ctx manifest.Context) []byte {
	if len(ctx) == 0 {
		return raw
	}
	return placeholder.ReplaceAllFunc(raw, func(match []byte) []byte {
		name := string(placeholder.FindSubmatch(match)[1])
		v, ok := ctx[name]
		if !ok {
			return match
		}
		return []byte(manifest.Format(v))
	})
}

// String is Render for string content.
func String(raw string, ctx manifest.Context) string {
	return string(Render([]byte(raw), ctx))
}
