package dom

import (
	"log/slog"
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
)

// StyleProperty returns the inline style value of prop on n, or "".
func StyleProperty(n *html.Node, prop string) string {
	decls, _ := declarations(n)
	for _, decl := range decls {
		if decl.Property == prop {
			return decl.Value
		}
	}
	return ""
}

// SetStyleProperty sets prop in n's inline style attribute, keeping the order
// of the other declarations. A style attribute that cannot be parsed is kept
// as written and the declaration is appended to it.
func (d *Document) SetStyleProperty(n *html.Node, prop, val string) {
	decls, ok := declarations(n)
	if !ok {
		raw, _ := Attribute(n, "style")
		d.SetAttribute(n, "style", terminated(raw)+" "+serialize([]*css.Declaration{{Property: prop, Value: val}}))
		return
	}
	found := false
	for _, decl := range decls {
		if decl.Property == prop {
			decl.Value = val
			decl.Important = false
			found = true
		}
	}
	if !found {
		decls = append(decls, &css.Declaration{Property: prop, Value: val})
	}
	d.SetAttribute(n, "style", serialize(decls))
}

// RemoveStyleProperty drops prop from n's inline style. An unparsable style
// attribute is left alone.
func (d *Document) RemoveStyleProperty(n *html.Node, prop string) {
	decls, ok := declarations(n)
	if !ok {
		return
	}
	kept := decls[:0]
	for _, decl := range decls {
		if decl.Property != prop {
			kept = append(kept, decl)
		}
	}
	if len(kept) == 0 {
		d.RemoveAttribute(n, "style")
		return
	}
	d.SetAttribute(n, "style", serialize(kept))
}

// declarations parses n's style attribute. ok is false only when the
// attribute is present but malformed.
func declarations(n *html.Node) (decls []*css.Declaration, ok bool) {
	raw, present := Attribute(n, "style")
	if !present || strings.TrimSpace(raw) == "" {
		return nil, true
	}
	// douceur only closes a declaration on ';' or '}'.
	decls, err := parser.ParseDeclarations(terminated(raw))
	if err != nil {
		slog.Warn("keeping unparsable inline style", "style", raw, "error", err)
		return nil, false
	}
	return decls, true
}

func terminated(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasSuffix(raw, ";") {
		return raw
	}
	return raw + ";"
}

func serialize(decls []*css.Declaration) string {
	var b strings.Builder
	for i, decl := range decls {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(decl.Property)
		b.WriteString(": ")
		b.WriteString(decl.Value)
		if decl.Important {
			b.WriteString(" !important")
		}
		b.WriteByte(';')
	}
	return b.String()
}
