// Package listing parses the server-rendered directory fragment into an
// ordered snapshot of entries.
package listing

import (
	"strings"

	"github.com/gobwas/glob"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/rillToMe/CrypShare/internal/classify"
	"github.com/rillToMe/CrypShare/internal/dom"
)

// FileEntry is one listing item. Kind is derived from Href and Name when the
// entry is built and never changes.
type FileEntry struct {
	Href string
	Name string
	Kind classify.Kind
	Meta string
}

// NewEntry builds an entry, trimming the name and meta and classifying it.
func NewEntry(href, name, meta string) FileEntry {
	name = strings.TrimSpace(name)
	return FileEntry{
		Href: href,
		Name: name,
		Kind: classify.Classify(href, name),
		Meta: strings.TrimSpace(meta),
	}
}

// Snapshot is the ordered result of one fetch cycle.
type Snapshot []FileEntry

// Count returns the number of entries of each kind.
func (s Snapshot) Count() map[classify.Kind]int {
	counts := make(map[classify.Kind]int, len(classify.Kinds))
	for _, k := range classify.Kinds {
		counts[k] = 0
	}
	for _, e := range s {
		counts[e.Kind]++
	}
	return counts
}

// Parse extracts one entry per <li> that contains a link, in document order.
// Items without a link are skipped; malformed or empty input gives an empty
// snapshot.
func Parse(fragment string) Snapshot {
	root := dom.ParseFragment(fragment)

	snap := Snapshot{}
	for _, li := range dom.FindAll(root, dom.IsTag(atom.Li)) {
		a := dom.First(li, dom.IsTag(atom.A))
		if a == nil {
			continue
		}
		var meta string
		if m := metaElement(li); m != nil {
			meta = dom.TextContent(m)
		}
		snap = append(snap, NewEntry(dom.Attr(a, "href"), dom.TextContent(a), meta))
	}
	return snap
}

// Fragment writes snap back out in the upstream listing markup, one <li>
// per entry with the meta text in a <span>. Parse(Fragment(s)) yields s.
func Fragment(snap Snapshot) string {
	ul := dom.Element(atom.Ul)
	for _, e := range snap {
		li := dom.Element(atom.Li)
		dom.Append(li, dom.Append(dom.Element(atom.A, "href", e.Href), dom.Text(e.Name)))
		if e.Meta != "" {
			dom.Append(li, dom.Text(" "), dom.Append(dom.Element(atom.Span), dom.Text(e.Meta)))
		}
		dom.Append(ul, li)
	}
	return dom.Render(ul)
}

// metaElement returns the item's secondary text: the first <span>, or the
// first element with class "meta" as written by the grid view.
func metaElement(li *html.Node) *html.Node {
	if span := dom.First(li, dom.IsTag(atom.Span)); span != nil {
		return span
	}
	return dom.First(li, func(n *html.Node) bool { return dom.HasClass(n, "meta") })
}

// Filter drops entries whose name matches any of the compiled patterns.
type Filter struct {
	patterns []glob.Glob
}

// NewFilter compiles shell-style patterns such as "*.tmp" or ".*".
func NewFilter(patterns []string) (*Filter, error) {
	f := &Filter{}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, err
		}
		f.patterns = append(f.patterns, g)
	}
	return f, nil
}

// Apply returns the entries that match no pattern, keeping their order.
func (f *Filter) Apply(s Snapshot) Snapshot {
	if f == nil || len(f.patterns) == 0 {
		return s
	}
	out := make(Snapshot, 0, len(s))
	for _, e := range s {
		if !f.excluded(e.Name) {
			out = append(out, e)
		}
	}
	return out
}

func (f *Filter) excluded(name string) bool {
	for _, g := range f.patterns {
		if g.Match(name) {
			return true
		}
	}
	return false
}
