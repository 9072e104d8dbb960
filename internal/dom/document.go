/*
Package dom holds the page the engine works on: an HTML tree parsed with
golang.org/x/net/html, queried with CSS selectors, and observed through
mutation records the way a browser MutationObserver reports them.

A Document is not safe for concurrent use. All access is expected to happen
on the page loop (package loop).
*/
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// OwnedAttr marks nodes the engine inserted itself.
const OwnedAttr = "data-minimalx-owned"

// IsOwned reports whether n, or an ancestor, carries OwnedAttr.
func IsOwned(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if _, ok := Attribute(p, OwnedAttr); ok {
			return true
		}
	}
	return false
}

// Document is a parsed HTML page.
type Document struct {
	root      *html.Node
	observers []*Observer
	selectors map[string]cascadia.Selector
}

// Parse reads an HTML page.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	return &Document{root: root, selectors: make(map[string]cascadia.Selector)}, nil
}

// ParseString is Parse for in-memory markup.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// DocumentElement returns the <html> element.
func (d *Document) DocumentElement() *html.Node {
	return findElement(d.root, atom.Html)
}

// Head returns the <head> element.
func (d *Document) Head() *html.Node {
	return findElement(d.root, atom.Head)
}

// Body returns the <body> element.
func (d *Document) Body() *html.Node {
	return findElement(d.root, atom.Body)
}

// QuerySelectorAll returns every element matching sel, in document order.
// Elements are resolved against the live tree on every call.
func (d *Document) QuerySelectorAll(sel string) ([]*html.Node, error) {
	s, err := d.compile(sel)
	if err != nil {
		return nil, err
	}
	return s.MatchAll(d.root), nil
}

// QuerySelector returns the first element matching sel, or nil.
func (d *Document) QuerySelector(sel string) (*html.Node, error) {
	s, err := d.compile(sel)
	if err != nil {
		return nil, err
	}
	return s.MatchFirst(d.root), nil
}

// Matches reports whether n, or any element below it, matches sel.
func (d *Document) Matches(n *html.Node, sel string) (bool, error) {
	s, err := d.compile(sel)
	if err != nil {
		return false, err
	}
	return s.MatchFirst(n) != nil, nil
}

func (d *Document) compile(sel string) (cascadia.Selector, error) {
	if s, ok := d.selectors[sel]; ok {
		return s, nil
	}
	s, err := cascadia.Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("compiling selector %q: %w", sel, err)
	}
	d.selectors[sel] = s
	return s, nil
}

// CreateElement returns a detached element.
func CreateElement(tag string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
}

// ParseFragment parses markup in the context of parent.
func ParseFragment(markup string, parent *html.Node) ([]*html.Node, error) {
	nodes, err := html.ParseFragment(strings.NewReader(markup), parent)
	if err != nil {
		return nil, fmt.Errorf("parsing fragment: %w", err)
	}
	return nodes, nil
}

// AppendChild attaches child as the last child of parent, detaching it from
// any previous parent first. Both moves are reported to observers.
func (d *Document) AppendChild(parent, child *html.Node) {
	if child.Parent != nil {
		d.RemoveChild(child.Parent, child)
	}
	parent.AppendChild(child)
	d.queue(MutationRecord{Type: ChildList, Target: parent, AddedNodes: []*html.Node{child}})
}

// RemoveChild detaches child from parent.
func (d *Document) RemoveChild(parent, child *html.Node) {
	if child.Parent != parent {
		return
	}
	parent.RemoveChild(child)
	d.queue(MutationRecord{Type: ChildList, Target: parent, RemovedNodes: []*html.Node{child}})
}

// SetText replaces all children of n with a single text node.
func (d *Document) SetText(n *html.Node, text string) {
	var removed []*html.Node
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		removed = append(removed, c)
		c = next
	}
	added := &html.Node{Type: html.TextNode, Data: text}
	n.AppendChild(added)
	d.queue(MutationRecord{Type: ChildList, Target: n, AddedNodes: []*html.Node{added}, RemovedNodes: removed})
}

// Text returns the concatenated text below n.
func Text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// Attribute returns the value of key on n.
func Attribute(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttribute sets key on n. Setting the current value again changes nothing
// and produces no record.
func (d *Document) SetAttribute(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			if a.Val == val {
				return
			}
			n.Attr[i].Val = val
			d.queue(MutationRecord{Type: Attributes, Target: n, AttributeName: key, OldValue: a.Val})
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	d.queue(MutationRecord{Type: Attributes, Target: n, AttributeName: key})
}

// RemoveAttribute deletes key from n if present.
func (d *Document) RemoveAttribute(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			d.queue(MutationRecord{Type: Attributes, Target: n, AttributeName: key, OldValue: a.Val})
			return
		}
	}
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// String renders the document, returning "" on error.
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// Contains reports whether n is ancestor or equal to other.
func Contains(n, other *html.Node) bool {
	for p := other; p != nil; p = p.Parent {
		if p == n {
			return true
		}
	}
	return false
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
