// Package classify maps listing entries to file kinds, icons and preview
// URLs.
package classify

import (
	"net/url"
	"path"
	"slices"
	"strings"
)

// Kind is the semantic file kind of a listing entry.
type Kind int

const (
	Other Kind = iota
	Folder
	Image
	Video
	Archive
)

// Kinds lists every kind in classification precedence order, Other last.
var Kinds = []Kind{Folder, Image, Video, Archive, Other}

func (k Kind) String() string {
	switch k {
	case Folder:
		return "folder"
	case Image:
		return "image"
	case Video:
		return "video"
	case Archive:
		return "archive"
	default:
		return "other"
	}
}

// IsMedia reports whether entries of this kind get an inline preview.
func (k Kind) IsMedia() bool {
	return k == Image || k == Video
}

// folderSegment marks hrefs that download a whole folder as an archive.
const folderSegment = "/download_folder/"

var (
	imageExtensions   = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".svg"}
	videoExtensions   = []string{".mp4", ".webm", ".mov", ".mkv", ".avi"}
	archiveExtensions = []string{".zip", ".rar", ".7z"}
)

// Classify returns the kind of an entry. Folder indicators on the href beat
// every extension rule. Otherwise a known extension on the display name
// decides, and the href path is consulted only when the name has none.
func Classify(href, name string) Kind {
	lowHref := strings.ToLower(href)
	if IsFolderHref(lowHref) {
		return Folder
	}
	if k := extensionKind(strings.ToLower(strings.TrimSpace(name))); k != Other {
		return k
	}
	return extensionKind(hrefPath(lowHref))
}

// IsFolderHref reports whether href points at a folder.
func IsFolderHref(href string) bool {
	href = strings.ToLower(href)
	return strings.HasSuffix(href, "/") || strings.Contains(href, folderSegment)
}

// hrefPath strips query and fragment and decodes escapes so that
// "/download_file/a%20b.PNG?x=1" yields "/download_file/a b.png".
func hrefPath(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	return href
}

func extensionKind(p string) Kind {
	ext := path.Ext(p)
	switch {
	case ext == "":
		return Other
	case slices.Contains(imageExtensions, ext):
		return Image
	case slices.Contains(videoExtensions, ext):
		return Video
	case slices.Contains(archiveExtensions, ext):
		return Archive
	}
	return Other
}
