package view

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/rillToMe/CrypShare/internal/classify"
	"github.com/rillToMe/CrypShare/internal/dom"
	"github.com/rillToMe/CrypShare/internal/listing"
)

// GridID is the id of the grid view container.
const GridID = "fileList"

// Grid is the card view: one flat ul.grid-list, one card per entry, in
// entry order.
type Grid struct {
	Container *html.Node
	opts      Options
}

// NewGrid binds the grid container found in page, or returns nil.
func NewGrid(page *html.Node, opts Options) *Grid {
	container := dom.ByID(page, GridID)
	if container == nil {
		return nil
	}
	return &Grid{Container: container, opts: opts.withDefaults()}
}

// Name identifies the target in logs.
func (g *Grid) Name() string { return "grid" }

// Embedded returns the markup currently inside the container.
func (g *Grid) Embedded() string {
	return dom.InnerHTML(g.Container)
}

// Project replaces the container content with a fresh card list.
func (g *Grid) Project(snap listing.Snapshot) {
	ul := dom.Element(atom.Ul, "class", "grid-list")
	for _, e := range snap {
		ul.AppendChild(g.card(e))
	}
	dom.Clear(g.Container)
	g.Container.AppendChild(ul)
}

func (g *Grid) card(e listing.FileEntry) *html.Node {
	box := dom.Element(atom.Div, "class", "media-box")
	if e.Kind.IsMedia() {
		box.AppendChild(g.opts.preview(e))
	} else {
		box.AppendChild(dom.Append(dom.Element(atom.Div, "class", "preview-icon"),
			g.opts.icon(classify.IconFor(e.Kind))))
	}

	chip := dom.Append(dom.Element(atom.A, "class", "file-chip", "href", e.Href),
		g.opts.icon(classify.IconFor(e.Kind)),
		dom.Text(" "+e.Name),
	)

	card := dom.Append(dom.Element(atom.Li, "class", "file-card"), box, chip)
	if meta := CleanMeta(e.Meta); meta != "" {
		card.AppendChild(dom.Append(dom.Element(atom.Div, "class", "meta"), dom.Text(meta)))
	}
	return card
}
