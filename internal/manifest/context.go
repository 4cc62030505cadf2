package manifest

import (
	"maps"
	"slices"
	"strconv"
	"time"
)

// Built-in context keys populated for every project.
const (
	KeyProjectName  = "projectName"
	KeyTemplateName = "templateName"
	KeyYear         = "year"
)

// Context maps prompt names (and built-ins) to scalar answers: string,
// bool or float64 once decoded from JSON.
type Context map[string]any

// Builtins returns the context entries every project starts with.
func Builtins(projectName, templateName string, now time.Time) Context {
	return Context{
		KeyProjectName:  projectName,
		KeyTemplateName: templateName,
		KeyYear:         float64(now.Year()),
	}
}

// Clone returns an independent copy.
func (c Context) Clone() Context {
	if c == nil {
		return nil
	}
	return maps.Clone(c)
}

// Merge returns a copy of c with other's entries applied on top.
func (c Context) Merge(other Context) Context {
	out := make(Context, len(c)+len(other))
	maps.Copy(out, c)
	maps.Copy(out, other)
	return out
}

// Keys returns the context keys in sorted order.
func (c Context) Keys() []string {
	return slices.Sorted(maps.Keys(c))
}

// Has reports whether key is present.
func (c Context) Has(key string) bool {
	_, ok := c[key]
	return ok
}

// Selector returns the value of key in the form used to select files: the
// string itself, or "true"/"false" for booleans. Other types do not select.
func (c Context) Selector(key string) (string, bool) {
	switch v := c[key].(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	}
	return "", false
}

// Format renders a value for placeholder substitution.
func Format(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	}
	return ""
}
