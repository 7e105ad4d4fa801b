package view

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/rillToMe/CrypShare/internal/classify"
	"github.com/rillToMe/CrypShare/internal/dom"
	"github.com/rillToMe/CrypShare/internal/listing"
)

// Section names, in tab order.
const (
	SectionImages = "images"
	SectionVideos = "videos"
	SectionOthers = "others"
)

// Sections lists the sectioned view's anchors in registration order.
var Sections = []string{SectionImages, SectionVideos, SectionOthers}

// Sectioned is the legacy three-list view. Media entries get a preview block
// above their link; everything else is a plain iconified link under others.
type Sectioned struct {
	Images *html.Node
	Videos *html.Node
	Others *html.Node
	opts   Options
}

// NewSectioned binds the three lists found in page. It returns nil unless
// all of them exist.
func NewSectioned(page *html.Node, opts Options) *Sectioned {
	s := &Sectioned{
		Images: dom.ByID(page, SectionImages),
		Videos: dom.ByID(page, SectionVideos),
		Others: dom.ByID(page, SectionOthers),
		opts:   opts.withDefaults(),
	}
	if s.Images == nil || s.Videos == nil || s.Others == nil {
		return nil
	}
	return s
}

// Name identifies the target in logs.
func (s *Sectioned) Name() string { return "sectioned" }

// Embedded returns the markup currently inside the three lists.
func (s *Sectioned) Embedded() string {
	return dom.InnerHTML(s.Images) + dom.InnerHTML(s.Videos) + dom.InnerHTML(s.Others)
}

// Anchor returns the list bound to a section name.
func (s *Sectioned) Anchor(section string) *html.Node {
	switch section {
	case SectionImages:
		return s.Images
	case SectionVideos:
		return s.Videos
	case SectionOthers:
		return s.Others
	}
	return nil
}

// Project replaces the content of all three lists.
func (s *Sectioned) Project(snap listing.Snapshot) {
	dom.Clear(s.Images)
	dom.Clear(s.Videos)
	dom.Clear(s.Others)

	for _, e := range snap {
		link := dom.Append(dom.Element(atom.A, "href", e.Href),
			s.opts.icon(classify.IconFor(e.Kind)),
			dom.Text(e.Name),
		)

		li := dom.Element(atom.Li)
		switch e.Kind {
		case classify.Image, classify.Video:
			box := dom.Append(dom.Element(atom.Div, "class", "media-box"), s.opts.preview(e))
			row := dom.Append(dom.Element(atom.Div, "class", "link-row"), link)
			dom.Append(li, box, row)
			if e.Kind == classify.Image {
				s.Images.AppendChild(li)
			} else {
				s.Videos.AppendChild(li)
			}
		default:
			s.Others.AppendChild(dom.Append(li, link))
		}
	}
}
