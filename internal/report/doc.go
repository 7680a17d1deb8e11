// Package report renders mirror results for people and tools.
//
// This package contains writers for different output formats:
//   - SimpleWriter: plain text for terminal display
//   - JSONWriter: structured JSON for tool integration
//   - MarkdownWriter: Markdown with a mermaid chart for sharing
//
// Report data lives in the model package; writers only format it.
// Writers implement the Writer interface and can be combined with
// MultiWriter to produce several formats from one run.
package report
