// Package dom provides small helpers over golang.org/x/net/html node trees:
// lookup, element construction, clearing and serialization.
package dom

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseDocument parses a full HTML page. The html parser never fails on
// malformed markup; errors only come from the reader.
func ParseDocument(page string) (*html.Node, error) {
	return html.Parse(strings.NewReader(page))
}

// ParseFragment parses markup as the content of a <div>, the way assigning
// innerHTML would. Unparseable input yields an empty container.
func ParseFragment(fragment string) *html.Node {
	container := Element(atom.Div)
	nodes, err := html.ParseFragment(strings.NewReader(fragment), container)
	if err != nil {
		return container
	}
	for _, n := range nodes {
		container.AppendChild(n)
	}
	return container
}

// Element creates an element with attributes given as key/value pairs.
func Element(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

// ForeignElement creates an element in a foreign namespace such as "svg".
func ForeignElement(namespace, tag string, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, Namespace: namespace, Data: tag}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

// Text creates a text node.
func Text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// Append adds children to parent in order and returns parent.
func Append(parent *html.Node, children ...*html.Node) *html.Node {
	for _, c := range children {
		parent.AppendChild(c)
	}
	return parent
}

// Clear detaches every child of n.
func Clear(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

// Attr returns the value of key on n, or "" when absent.
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// SetAttr sets key to val on n, replacing an existing value.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// HasClass reports whether n carries the given class.
func HasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(Attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// ToggleClass adds or removes class on n.
func ToggleClass(n *html.Node, class string, on bool) {
	var kept []string
	for _, c := range strings.Fields(Attr(n, "class")) {
		if c != class {
			kept = append(kept, c)
		}
	}
	if on {
		kept = append(kept, class)
	}
	if len(kept) == 0 {
		removeAttr(n, "class")
		return
	}
	SetAttr(n, "class", strings.Join(kept, " "))
}

func removeAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// Walk visits n and its descendants in document order until fn returns false.
func Walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !Walk(c, fn) {
			return false
		}
	}
	return true
}

// FindAll returns the element descendants of root (excluding root) that
// match, in document order.
func FindAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		Walk(c, func(n *html.Node) bool {
			if n.Type == html.ElementNode && match(n) {
				out = append(out, n)
			}
			return true
		})
	}
	return out
}

// First returns the first element descendant of root that matches, or nil.
func First(root *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	for c := root.FirstChild; c != nil && found == nil; c = c.NextSibling {
		Walk(c, func(n *html.Node) bool {
			if n.Type == html.ElementNode && match(n) {
				found = n
				return false
			}
			return true
		})
	}
	return found
}

// ByID finds the element with the given id attribute.
func ByID(root *html.Node, id string) *html.Node {
	return First(root, func(n *html.Node) bool { return Attr(n, "id") == id })
}

// IsTag matches HTML elements by atom.
func IsTag(a atom.Atom) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.DataAtom == a && n.Namespace == "" }
}

// TextContent concatenates the text of n and its descendants.
func TextContent(n *html.Node) string {
	var b strings.Builder
	Walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}

// Render serializes n and its subtree.
func Render(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

// InnerHTML serializes the children of n.
func InnerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return buf.String()
		}
	}
	return buf.String()
}
