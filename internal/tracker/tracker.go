// Package tracker keeps a tab indicator in sync with the section that is
// most visible, the URL fragment and tab clicks.
package tracker

import (
	"strings"
	"sync"
)

// Intersection is one visibility observation of a section.
type Intersection struct {
	Section      string
	Intersecting bool
	Ratio        float64
}

// Navigator is the host's scrolling and URL-fragment surface.
type Navigator interface {
	// Fragment returns the current URL fragment without the leading '#'.
	Fragment() string
	// ReplaceFragment rewrites the fragment without adding a history entry.
	ReplaceFragment(fragment string)
	ScrollIntoView(section string)
}

// Observer is the optional viewport-intersection capability. Observe
// registers the sections and delivers batches of observations to fn.
type Observer interface {
	Observe(sections []string, fn func([]Intersection)) error
}

// Tracker marks exactly one section as active.
type Tracker struct {
	mu       sync.Mutex
	sections []string
	index    map[string]int
	active   string
	nav      Navigator
	observer Observer
	observed bool
	onChange []func(string)
}

// New creates a tracker for sections in registration order. observer may be
// nil; the tracker then reacts to clicks and fragment changes only.
func New(sections []string, nav Navigator, observer Observer) *Tracker {
	t := &Tracker{
		nav:      nav,
		observer: observer,
		index:    make(map[string]int, len(sections)),
	}
	for _, s := range sections {
		if _, dup := t.index[s]; dup {
			continue
		}
		t.index[s] = len(t.sections)
		t.sections = append(t.sections, s)
	}
	return t
}

// OnChange registers fn to run whenever the active section changes.
func (t *Tracker) OnChange(fn func(section string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = append(t.onChange, fn)
}

// Start seeds the active section and, when an observer is available,
// subscribes to visibility observations. It reports whether visibility
// tracking is active; false means click and fragment activation only.
func (t *Tracker) Start() bool {
	t.Seed()
	if t.observer == nil {
		return false
	}
	if err := t.observer.Observe(t.Sections(), t.Observe); err != nil {
		return false
	}
	t.mu.Lock()
	t.observed = true
	t.mu.Unlock()
	return true
}

// Observing reports whether visibility observations are being received.
func (t *Tracker) Observing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.observed
}

// Sections returns the registered section names.
func (t *Tracker) Sections() []string {
	out := make([]string, len(t.sections))
	copy(out, t.sections)
	return out
}

// Active returns the active section, or "" when no sections exist.
func (t *Tracker) Active() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Seed activates the section named by the URL fragment, or the first
// section when the fragment names none.
func (t *Tracker) Seed() {
	if name, ok := t.fromFragment(); ok {
		t.activate(name)
		return
	}
	if len(t.sections) > 0 {
		t.activate(t.sections[0])
	}
}

// FragmentChanged activates the section named by the new fragment, if any.
func (t *Tracker) FragmentChanged() {
	if name, ok := t.fromFragment(); ok {
		t.activate(name)
	}
}

// Click scrolls to a section, rewrites the fragment in place and activates
// it. Unknown names are ignored and reported as false.
func (t *Tracker) Click(name string) bool {
	if _, ok := t.index[name]; !ok {
		return false
	}
	if t.nav != nil {
		t.nav.ScrollIntoView(name)
		t.nav.ReplaceFragment(name)
	}
	t.activate(name)
	return true
}

// Observe activates the intersecting section with the largest visible
// ratio. Ties go to the section registered first. Batches with nothing
// intersecting leave the active section unchanged.
func (t *Tracker) Observe(entries []Intersection) {
	best, bestIdx := "", -1
	var bestRatio float64
	for _, e := range entries {
		if !e.Intersecting {
			continue
		}
		idx, ok := t.index[e.Section]
		if !ok {
			continue
		}
		if bestIdx < 0 || e.Ratio > bestRatio || (e.Ratio == bestRatio && idx < bestIdx) {
			best, bestIdx, bestRatio = e.Section, idx, e.Ratio
		}
	}
	if bestIdx >= 0 {
		t.activate(best)
	}
}

func (t *Tracker) fromFragment() (string, bool) {
	if t.nav == nil {
		return "", false
	}
	name := strings.TrimPrefix(t.nav.Fragment(), "#")
	_, ok := t.index[name]
	return name, ok
}

func (t *Tracker) activate(name string) {
	t.mu.Lock()
	if t.active == name {
		t.mu.Unlock()
		return
	}
	t.active = name
	callbacks := append([]func(string){}, t.onChange...)
	t.mu.Unlock()

	for _, fn := range callbacks {
		fn(name)
	}
}

// Location is an in-memory Navigator for hosts without a browser, such as
// the mirror process.
type Location struct {
	mu       sync.Mutex
	fragment string
	scrolled string
}

// NewLocation starts at the given fragment.
func NewLocation(fragment string) *Location {
	return &Location{fragment: strings.TrimPrefix(fragment, "#")}
}

func (l *Location) Fragment() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fragment
}

func (l *Location) ReplaceFragment(fragment string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fragment = strings.TrimPrefix(fragment, "#")
}

func (l *Location) ScrollIntoView(section string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scrolled = section
}

// Scrolled returns the last section scrolled into view.
func (l *Location) Scrolled() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scrolled
}
