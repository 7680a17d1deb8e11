package metadata

import (
	"log/slog"
	"path"
	"regexp"

	exif "github.com/dsoprea/go-exif/v3"

	"github.com/nao1215/onepage/internal/model"
)

// DefaultMaxImageSize is the largest image inspected (5MB).
const DefaultMaxImageSize = 5 * 1024 * 1024

// exifFormats matches file names of formats that can carry EXIF.
var exifFormats = regexp.MustCompile(`(?i)\.(jpe?g|tiff?|heic|webp)$`)

// findingByTag maps EXIF tag names to finding types.
var findingByTag = map[string]string{
	"GPSLatitude":        model.FindingGPS,
	"GPSLongitude":       model.FindingGPS,
	"GPSLatitudeRef":     model.FindingGPS,
	"GPSLongitudeRef":    model.FindingGPS,
	"GPSAltitude":        model.FindingGPS,
	"SerialNumber":       model.FindingSerial,
	"CameraSerialNumber": model.FindingSerial,
	"BodySerialNumber":   model.FindingSerial,
	"LensSerialNumber":   model.FindingSerial,
	"Artist":             model.FindingOwner,
	"Author":             model.FindingOwner,
	"XPAuthor":           model.FindingOwner,
	"Copyright":          model.FindingOwner,
	"CameraOwnerName":    model.FindingOwner,
	"Make":               model.FindingCamera,
	"Model":              model.FindingCamera,
	"Software":           model.FindingSoftware,
	"ProcessingSoftware": model.FindingSoftware,
	"HostComputer":       model.FindingSoftware,
	"DateTimeOriginal":   model.FindingDateTime,
	"DateTimeDigitized":  model.FindingDateTime,
	"DateTime":           model.FindingDateTime,
}

// EXIFInspector extracts privacy-relevant EXIF tags from images.
// It is safe for concurrent use.
type EXIFInspector struct {
	logger       *slog.Logger
	maxImageSize int
}

// Option configures an EXIFInspector.
type Option func(*EXIFInspector)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(i *EXIFInspector) {
		i.logger = logger
	}
}

// WithMaxImageSize sets the largest image that is inspected.
// Larger images are ignored.
func WithMaxImageSize(n int) Option {
	return func(i *EXIFInspector) {
		i.maxImageSize = n
	}
}

// NewEXIFInspector creates an EXIFInspector.
func NewEXIFInspector(opts ...Option) *EXIFInspector {
	i := &EXIFInspector{
		logger:       slog.Default(),
		maxImageSize: DefaultMaxImageSize,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Inspect returns the findings for the image stored at the relative path p.
// Files that cannot carry EXIF, oversized files and files without EXIF
// yield no findings.
func (i *EXIFInspector) Inspect(p string, content []byte) []model.Finding {
	if !exifFormats.MatchString(path.Base(p)) {
		return nil
	}
	if len(content) == 0 || len(content) > i.maxImageSize {
		return nil
	}

	raw, err := exif.SearchAndExtractExif(content)
	if err != nil || raw == nil {
		return nil
	}

	entries, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		i.logger.Debug("failed to parse exif", "path", p, "error", err)
		return nil
	}

	var findings []model.Finding
	for _, entry := range entries {
		findingType, ok := findingByTag[entry.TagName]
		if !ok || entry.Formatted == "" {
			continue
		}
		findings = append(findings, model.NewFinding(findingType, entry.TagName+": "+entry.Formatted, p))
	}
	if len(findings) > 0 {
		i.logger.Debug("exif metadata found", "path", p, "findings", len(findings))
	}
	return findings
}
