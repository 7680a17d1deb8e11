// Package metadata inspects mirrored files for content that may identify
// the site owner.
//
// EXIFInspector reads GPS coordinates, camera serial numbers, author names
// and similar EXIF tags from images. ContentInspector scans HTML, CSS and
// JavaScript for private keys, API credentials, email addresses and
// tracking IDs. Chain combines both.
//
// Inspection works on bytes the crawler has already fetched; it never
// issues network requests of its own.
package metadata
