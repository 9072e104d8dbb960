package features

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/wozniakbe/minimal-x/internal/dom"
)

// Theme variable names.
const (
	BackgroundVar = "--minimalx-background"
	AccentVar     = "--minimalx-accent"
)

// ExtractThemeColors reads the host page's background and accent colours and
// returns them as custom properties. Colours that are missing or unparsable
// are left out.
func ExtractThemeColors(doc *dom.Document) map[string]string {
	vars := make(map[string]string, 2)

	if body := doc.Body(); body != nil {
		if c, ok := parseColor(dom.StyleProperty(body, "background-color")); ok {
			vars[BackgroundVar] = c.Hex()
		}
	}
	if btn, err := doc.QuerySelector(ComposeButtonSelector); err == nil && btn != nil {
		if c, ok := parseColor(dom.StyleProperty(btn, "background-color")); ok {
			vars[AccentVar] = c.Hex()
		}
	}
	return vars
}

// RootRule renders vars as a :root rule, or "" when there are none.
func RootRule(vars map[string]string) string {
	if len(vars) == 0 {
		return ""
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(":root {\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %s: %s;\n", name, vars[name])
	}
	b.WriteString("}")
	return b.String()
}

// parseColor accepts #rgb, #rrggbb, rgb() and rgba() notations.
func parseColor(s string) (colorful.Color, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return colorful.Color{}, false
	}
	if strings.HasPrefix(s, "#") {
		if len(s) == 4 {
			s = "#" + strings.Repeat(s[1:2], 2) + strings.Repeat(s[2:3], 2) + strings.Repeat(s[3:4], 2)
		}
		c, err := colorful.Hex(s)
		return c, err == nil
	}

	var inner string
	switch {
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		inner = s[len("rgba(") : len(s)-1]
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		inner = s[len("rgb(") : len(s)-1]
	default:
		return colorful.Color{}, false
	}
	parts := strings.Split(inner, ",")
	if len(parts) < 3 {
		return colorful.Color{}, false
	}
	var rgb [3]float64
	for i := 0; i < 3; i++ {
		var v float64
		if _, err := fmt.Sscanf(strings.TrimSpace(parts[i]), "%g", &v); err != nil || v < 0 || v > 255 {
			return colorful.Color{}, false
		}
		rgb[i] = v / 255
	}
	return colorful.Color{R: rgb[0], G: rgb[1], B: rgb[2]}, true
}
