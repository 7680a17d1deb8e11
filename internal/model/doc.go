// Package model defines the data structures shared by the mirror pipeline,
// the history database and the report writers.
//
// This package contains the following main types:
//   - MirrorReport: the result of mirroring one root URL
//   - Resource: one file handed to the sink
//   - Failure: one asset that could not be mirrored
//   - Finding: privacy-relevant metadata discovered in a mirrored file
//
// All types serialize to JSON for report output and database storage.
package model
