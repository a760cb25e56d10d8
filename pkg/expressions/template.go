package expressions

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// placeholder matches {{ expression }}.
var placeholder = regexp.MustCompile(`\{\{\s*(.+?)\s*\}\}`)

// Template interpolates {{ expression }} placeholders with JMESPath results.
type Template struct {
	evaluator *Evaluator
	escape    func(string) string
}

func NewTemplate(evaluator *Evaluator) *Template {
	return &Template{evaluator: evaluator}
}

// NewURLTemplate returns a template whose substituted values are escaped as
// URL path segments.
func NewURLTemplate(evaluator *Evaluator) *Template {
	return &Template{evaluator: evaluator, escape: url.PathEscape}
}

// Render substitutes every placeholder in text. The first failing expression
// is returned as the error.
func (t *Template) Render(text string, data any) (string, error) {
	var firstErr error

	out := placeholder.ReplaceAllStringFunc(text, func(match string) string {
		expression := strings.TrimSpace(placeholder.FindStringSubmatch(match)[1])
		value, err := t.evaluator.EvaluateString(expression, data)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to render %q: %w", expression, err)
			}
			return match
		}
		if t.escape != nil {
			return t.escape(value)
		}
		return value
	})

	return out, firstErr
}

// HasTemplates reports whether s contains a placeholder.
func HasTemplates(s string) bool {
	return placeholder.MatchString(s)
}
