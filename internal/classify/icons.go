package classify

import (
	"strings"
)

// Icon is a symbolic icon identifier resolved against an external sprite.
type Icon string

const (
	IconFolder  Icon = "folder"
	IconImage   Icon = "image"
	IconVideo   Icon = "video"
	IconArchive Icon = "archive"
	IconFile    Icon = "generic-file"
)

// IconFor selects the icon for a kind: folder > image > video > archive >
// generic file.
func IconFor(k Kind) Icon {
	switch k {
	case Folder:
		return IconFolder
	case Image:
		return IconImage
	case Video:
		return IconVideo
	case Archive:
		return IconArchive
	default:
		return IconFile
	}
}

// Catalog resolves icon identifiers to sprite references.
type Catalog map[Icon]string

// DefaultCatalog matches the sprite shipped with the files page.
var DefaultCatalog = Catalog{
	IconFolder:  "#ico-folder",
	IconImage:   "#ico-image",
	IconVideo:   "#ico-video",
	IconArchive: "#ico-zip",
	IconFile:    "#ico-file",
}

// Ref returns the sprite reference for an icon, falling back to the
// generic file entry and then to "#ico-" + identifier.
func (c Catalog) Ref(icon Icon) string {
	if ref, ok := c[icon]; ok {
		return ref
	}
	if ref, ok := c[IconFile]; ok {
		return ref
	}
	return "#ico-" + string(icon)
}

// DefaultUploadsBase is where previewable assets are served.
const DefaultUploadsBase = "/uploads/"

// PreviewURL addresses a previewable asset by its display name.
func PreviewURL(base, name string) string {
	if base == "" {
		base = DefaultUploadsBase
	}
	return base + EncodeURIComponent(strings.TrimSpace(name))
}

// EncodeURIComponent escapes s the way browsers escape a URI component:
// everything except A-Z a-z 0-9 - _ . ! ~ * ' ( ) is percent-encoded as UTF-8.
func EncodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreservedComponent(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func unreservedComponent(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
