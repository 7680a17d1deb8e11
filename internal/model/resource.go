package model

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
)

// ResourceKind classifies a mirrored file by its extension.
type ResourceKind string

const (
	// KindDocument is the root HTML document.
	KindDocument ResourceKind = "document"
	// KindStylesheet is a CSS file.
	KindStylesheet ResourceKind = "stylesheet"
	// KindScript is a JavaScript file.
	KindScript ResourceKind = "script"
	// KindImage is a raster or vector image.
	KindImage ResourceKind = "image"
	// KindFont is a web font.
	KindFont ResourceKind = "font"
	// KindOther is anything else.
	KindOther ResourceKind = "other"
)

// AllKinds lists the kinds in display order.
var AllKinds = []ResourceKind{KindDocument, KindStylesheet, KindScript, KindImage, KindFont, KindOther}

var kindByExtension = map[string]ResourceKind{
	".html":  KindDocument,
	".htm":   KindDocument,
	".css":   KindStylesheet,
	".js":    KindScript,
	".mjs":   KindScript,
	".png":   KindImage,
	".jpg":   KindImage,
	".jpeg":  KindImage,
	".gif":   KindImage,
	".webp":  KindImage,
	".avif":  KindImage,
	".svg":   KindImage,
	".ico":   KindImage,
	".bmp":   KindImage,
	".tif":   KindImage,
	".tiff":  KindImage,
	".heic":  KindImage,
	".woff":  KindFont,
	".woff2": KindFont,
	".ttf":   KindFont,
	".otf":   KindFont,
	".eot":   KindFont,
}

// KindOfPath guesses the kind of a mirrored file from its relative path.
func KindOfPath(p string) ResourceKind {
	if kind, ok := kindByExtension[strings.ToLower(path.Ext(p))]; ok {
		return kind
	}
	return KindOther
}

// Resource is one file handed to the sink.
type Resource struct {
	// Path is the site-relative path, e.g. "css/style.css".
	Path string `json:"path"`

	// Kind is guessed from the path extension.
	Kind ResourceKind `json:"kind"`

	// Size is the payload size in bytes.
	Size int64 `json:"size"`

	// SHA256 is the hex encoded hash of the payload. It is used to detect
	// changes between runs.
	SHA256 string `json:"sha256"`

	// Emissions counts how many times the path was emitted during the run.
	// It exceeds one when several references resolve to the same file.
	Emissions int `json:"emissions"`
}

// NewResource builds a Resource for content emitted under p.
func NewResource(p string, content []byte) Resource {
	return Resource{
		Path:      p,
		Kind:      KindOfPath(p),
		Size:      int64(len(content)),
		SHA256:    ComputeHash(content),
		Emissions: 1,
	}
}

// ComputeHash returns the hex encoded SHA-256 of data.
func ComputeHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
