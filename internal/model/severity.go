package model

// Severity represents how much a finding may reveal about the site owner.
type Severity int

const (
	// SeverityInfo indicates metadata with no direct privacy impact.
	SeverityInfo Severity = iota

	// SeverityLow indicates metadata useful for correlation only.
	SeverityLow

	// SeverityMedium indicates metadata that narrows down a device or person.
	SeverityMedium

	// SeverityHigh indicates metadata that identifies a location or person.
	SeverityHigh
)

// String returns the upper-case name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// Finding types.
const (
	FindingGPS      = "exif_gps"
	FindingSerial   = "exif_serial"
	FindingOwner    = "exif_owner"
	FindingCamera   = "exif_camera"
	FindingSoftware = "exif_software"
	FindingDateTime = "exif_datetime"

	FindingPrivateKey  = "content_private_key"
	FindingSecret      = "content_secret"
	FindingEmail       = "content_email"
	FindingAnalyticsID = "content_analytics_id"
)

// FindingInfo describes a finding type.
type FindingInfo struct {
	Severity       Severity
	Title          string
	Impact         string
	Recommendation string
}

var findingInfoMapping = map[string]FindingInfo{
	FindingGPS: {
		Severity:       SeverityHigh,
		Title:          "GPS coordinates in image",
		Impact:         "The mirrored image carries the location where it was taken.",
		Recommendation: "Strip EXIF data (e.g. exiftool -all=) before publishing the mirror.",
	},
	FindingSerial: {
		Severity:       SeverityMedium,
		Title:          "Camera serial number in image",
		Impact:         "A device serial number links every photo taken with the same camera.",
		Recommendation: "Strip EXIF data before publishing the mirror.",
	},
	FindingOwner: {
		Severity:       SeverityMedium,
		Title:          "Author or owner name in image",
		Impact:         "The image names the photographer or the owner of the camera.",
		Recommendation: "Strip EXIF data before publishing the mirror.",
	},
	FindingCamera: {
		Severity:       SeverityLow,
		Title:          "Camera model in image",
		Impact:         "The camera make and model can be used to correlate images.",
		Recommendation: "Strip EXIF data if the images should not be attributable.",
	},
	FindingSoftware: {
		Severity:       SeverityInfo,
		Title:          "Editing software in image",
		Impact:         "The software used to produce the image is disclosed.",
		Recommendation: "No action required.",
	},
	FindingDateTime: {
		Severity:       SeverityInfo,
		Title:          "Capture time in image",
		Impact:         "The time the image was taken is disclosed.",
		Recommendation: "No action required.",
	},
	FindingPrivateKey: {
		Severity:       SeverityHigh,
		Title:          "Private key in mirrored file",
		Impact:         "Anyone with the mirror can impersonate the service or decrypt its traffic.",
		Recommendation: "Do not publish the mirror. Tell the site operator to rotate the key.",
	},
	FindingSecret: {
		Severity:       SeverityHigh,
		Title:          "API credential in mirrored file",
		Impact:         "The credential grants access to a third-party account of the site operator.",
		Recommendation: "Remove the credential from the mirror before sharing it.",
	},
	FindingEmail: {
		Severity:       SeverityMedium,
		Title:          "Email address in mirrored file",
		Impact:         "An email address can identify the site operator.",
		Recommendation: "Review whether the address should be part of the mirror.",
	},
	FindingAnalyticsID: {
		Severity:       SeverityLow,
		Title:          "Analytics ID in mirrored file",
		Impact:         "Tracking IDs link the page to other sites run by the same operator.",
		Recommendation: "Remove tracking snippets if the mirror should not be correlated.",
	},
}

// GetSeverity returns the severity of a finding type, SeverityInfo if unknown.
func GetSeverity(findingType string) Severity {
	return findingInfoMapping[findingType].Severity
}

// GetFindingInfo returns the description of a finding type.
func GetFindingInfo(findingType string) FindingInfo {
	if info, ok := findingInfoMapping[findingType]; ok {
		return info
	}
	return FindingInfo{Severity: SeverityInfo, Title: findingType}
}

// Finding is privacy-relevant metadata discovered in a mirrored file.
type Finding struct {
	// Type is one of the Finding* constants.
	Type string `json:"type"`

	// Severity is the risk level.
	Severity Severity `json:"severity"`

	// SeverityText is Severity.String(), kept for JSON consumers.
	SeverityText string `json:"severity_text"`

	// Title is a short description of the finding.
	Title string `json:"title"`

	// Impact explains why the finding matters.
	Impact string `json:"impact,omitempty"`

	// Recommendation explains how to address it.
	Recommendation string `json:"recommendation,omitempty"`

	// Value is the metadata value, e.g. "35.6812, 139.7671".
	Value string `json:"value"`

	// Location is the relative path of the file.
	Location string `json:"location"`
}

// NewFinding creates a finding of the given type with its description filled in.
func NewFinding(findingType, value, location string) Finding {
	info := GetFindingInfo(findingType)
	return Finding{
		Type:           findingType,
		Severity:       info.Severity,
		SeverityText:   info.Severity.String(),
		Title:          info.Title,
		Impact:         info.Impact,
		Recommendation: info.Recommendation,
		Value:          value,
		Location:       location,
	}
}
