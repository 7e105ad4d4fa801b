// Package view projects listing snapshots into the rendering targets of a
// page: the sectioned view (#images, #videos, #others) and the grid view
// (#fileList). Every projection clears its target and rebuilds it.
package view

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/rillToMe/CrypShare/internal/classify"
	"github.com/rillToMe/CrypShare/internal/dom"
	"github.com/rillToMe/CrypShare/internal/listing"
)

// Options control the markup shared by both projections.
type Options struct {
	UploadsBase string
	Icons       classify.Catalog
}

func (o Options) withDefaults() Options {
	if o.UploadsBase == "" {
		o.UploadsBase = classify.DefaultUploadsBase
	}
	if o.Icons == nil {
		o.Icons = classify.DefaultCatalog
	}
	return o
}

// icon builds <svg class="file-ico"><use href="#ico-..."></use></svg>.
func (o Options) icon(icon classify.Icon) *html.Node {
	ref := o.Icons.Ref(icon)
	use := dom.ForeignElement("svg", "use", "href", ref)
	use.Attr = append(use.Attr, html.Attribute{Namespace: "xlink", Key: "href", Val: ref})
	return dom.Append(dom.ForeignElement("svg", "svg", "class", "file-ico"), use)
}

// preview builds the inline <img> or <video> for a media entry.
func (o Options) preview(e listing.FileEntry) *html.Node {
	src := classify.PreviewURL(o.UploadsBase, e.Name)
	if e.Kind == classify.Video {
		return dom.Element(atom.Video, "controls", "", "preload", "metadata", "src", src)
	}
	return dom.Element(atom.Img, "src", src, "alt", e.Name)
}

// metaSeparators are leading separators stripped from meta text: the
// mis-decoded em dash some servers emit, then the em dash itself.
var metaSeparators = []string{"â€”", "—"}

// CleanMeta strips one leading separator and the whitespace after it.
func CleanMeta(meta string) string {
	meta = strings.TrimSpace(meta)
	for _, sep := range metaSeparators {
		if strings.HasPrefix(meta, sep) {
			return strings.TrimLeftFunc(meta[len(sep):], unicode.IsSpace)
		}
	}
	return meta
}
