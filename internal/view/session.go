package view

import (
	"errors"

	"golang.org/x/net/html"

	"github.com/rillToMe/CrypShare/internal/dom"
	"github.com/rillToMe/CrypShare/internal/listing"
)

// ErrNoTargets is returned when a page has no rendering surface.
var ErrNoTargets = errors.New("page has no rendering targets")

// Target is one rendering surface of the page.
type Target interface {
	Name() string
	// Embedded returns the listing markup already present in the target.
	Embedded() string
	Project(listing.Snapshot)
}

// Session holds the page and whichever targets it contains. Targets are
// discovered once, when the session is created.
type Session struct {
	page      *html.Node
	filter    *listing.Filter
	sectioned *Sectioned
	grid      *Grid
	targets   []Target
	tabs      []*html.Node
}

// NewSession discovers the targets and tab elements of page.
func NewSession(page *html.Node, opts Options, filter *listing.Filter) *Session {
	s := &Session{page: page, filter: filter}
	if sec := NewSectioned(page, opts); sec != nil {
		s.sectioned = sec
		s.targets = append(s.targets, sec)
	}
	if grid := NewGrid(page, opts); grid != nil {
		s.grid = grid
		s.targets = append(s.targets, grid)
	}
	s.tabs = findTabs(page)
	return s
}

// HasTargets reports whether any rendering surface exists.
func (s *Session) HasTargets() bool {
	return len(s.targets) > 0
}

// Targets returns the discovered targets, sectioned first.
func (s *Session) Targets() []Target {
	return s.targets
}

// Sectioned returns the sectioned target, or nil when the page has none.
func (s *Session) Sectioned() *Sectioned {
	return s.sectioned
}

// Grid returns the grid target, or nil when the page has none.
func (s *Session) Grid() *Grid {
	return s.grid
}

// Page returns the document the session renders into.
func (s *Session) Page() *html.Node {
	return s.page
}

// Project filters snap and renders it into every target. It returns the
// snapshot that was rendered.
func (s *Session) Project(snap listing.Snapshot) listing.Snapshot {
	snap = s.filter.Apply(snap)
	for _, t := range s.targets {
		t.Project(snap)
	}
	return snap
}

// ProjectFragment parses a raw listing fragment and projects it.
func (s *Session) ProjectFragment(fragment string) listing.Snapshot {
	return s.Project(listing.Parse(fragment))
}

// ColdStart renders every target from the markup already embedded in it,
// without any network fetch. It returns the snapshot of the first target.
// The sectioned target reads all three of its lists, so entries first
// rendered under videos or others survive the rebuild.
func (s *Session) ColdStart() listing.Snapshot {
	var first listing.Snapshot
	for i, t := range s.targets {
		snap := s.filter.Apply(listing.Parse(t.Embedded()))
		t.Project(snap)
		if i == 0 {
			first = snap
		}
	}
	return first
}

// MarkActiveTab sets class "active" on the tab whose data-target equals
// section and clears it on the others.
func (s *Session) MarkActiveTab(section string) {
	for _, tab := range s.tabs {
		dom.ToggleClass(tab, "active", dom.Attr(tab, "data-target") == section)
	}
}

// Render serializes the whole page.
func (s *Session) Render() string {
	return dom.Render(s.page)
}

// findTabs returns elements with class "tab" inside an element with class
// "tabs".
func findTabs(page *html.Node) []*html.Node {
	var tabs []*html.Node
	for _, bar := range dom.FindAll(page, func(n *html.Node) bool { return dom.HasClass(n, "tabs") }) {
		for _, tab := range dom.FindAll(bar, func(n *html.Node) bool { return dom.HasClass(n, "tab") }) {
			if !containsNode(tabs, tab) {
				tabs = append(tabs, tab)
			}
		}
	}
	return tabs
}

func containsNode(nodes []*html.Node, n *html.Node) bool {
	for _, c := range nodes {
		if c == n {
			return true
		}
	}
	return false
}
