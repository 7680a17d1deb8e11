package crawler

import (
	"io"
	"iter"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Kind classifies where a reference was found.
type Kind int

const (
	// KindRoot is the root document itself.
	KindRoot Kind = iota

	// KindStylesheet is the href of a <link rel="stylesheet"> element.
	KindStylesheet

	// KindScript is the src of a <script> element.
	KindScript

	// KindImage is the src of an <img> element.
	KindImage

	// KindNested is a url() or @import reference inside a stylesheet.
	KindNested
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindStylesheet:
		return "stylesheet"
	case KindScript:
		return "script"
	case KindImage:
		return "image"
	case KindNested:
		return "nested"
	default:
		return "unknown"
	}
}

// Options selects which asset kinds are mirrored.
// The zero value mirrors stylesheets, scripts and images.
type Options struct {
	// SkipCSS disables stylesheets and, with them, all CSS recursion.
	SkipCSS bool

	// SkipJS disables scripts.
	SkipJS bool

	// SkipImages disables <img> elements. Images referenced from CSS are
	// still mirrored when stylesheets are.
	SkipImages bool
}

// DefaultOptions returns options with every asset kind enabled.
func DefaultOptions() Options {
	return Options{}
}

// IncludesAny reports whether at least one asset kind is enabled.
func (o Options) IncludesAny() bool {
	return !o.SkipCSS || !o.SkipJS || !o.SkipImages
}

// selector returns the CSS selector matching every enabled element, or ""
// when nothing is enabled.
func (o Options) selector() string {
	parts := make([]string, 0, 3)
	if !o.SkipCSS {
		parts = append(parts, `link[rel="stylesheet"]`)
	}
	if !o.SkipJS {
		parts = append(parts, "script")
	}
	if !o.SkipImages {
		parts = append(parts, "img")
	}
	return strings.Join(parts, ", ")
}

// Asset is a reference extracted from an HTML document.
type Asset struct {
	// Reference is the raw attribute value. It is empty when the element
	// has no such attribute (for example an inline <script>).
	Reference string

	// Kind is the element kind the reference came from.
	Kind Kind
}

// Parser extracts asset references from a parsed HTML document.
// A Parser is read-only after construction and safe for concurrent use.
type Parser struct {
	doc *goquery.Document
}

// ParseHTML parses an HTML document.
// The input is expected to be UTF-8; see the charset handling in Spider for
// documents declared in other encodings.
func ParseHTML(r io.Reader) (*Parser, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	return &Parser{doc: doc}, nil
}

// Assets returns the stylesheet, script and image references of the
// document, in document order, restricted to the kinds enabled by opts.
// The sequence is lazy and may be ranged over any number of times.
func (p *Parser) Assets(opts Options) iter.Seq[Asset] {
	sel := opts.selector()
	return func(yield func(Asset) bool) {
		if sel == "" {
			return
		}
		p.doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			asset, ok := assetOf(s)
			if !ok {
				return true
			}
			return yield(asset)
		})
	}
}

// ExtractAssets parses html and returns its asset references.
func ExtractAssets(html io.Reader, opts Options) (iter.Seq[Asset], error) {
	p, err := ParseHTML(html)
	if err != nil {
		return nil, err
	}
	return p.Assets(opts), nil
}

// assetOf maps a matched element to its asset.
func assetOf(s *goquery.Selection) (Asset, bool) {
	switch goquery.NodeName(s) {
	case "link":
		href, _ := s.Attr("href")
		return Asset{Reference: href, Kind: KindStylesheet}, true
	case "script":
		src, _ := s.Attr("src")
		return Asset{Reference: src, Kind: KindScript}, true
	case "img":
		src, _ := s.Attr("src")
		return Asset{Reference: src, Kind: KindImage}, true
	default:
		return Asset{}, false
	}
}
