// Package pipeline runs a mirror of one root URL as a sequence of steps
// and mirrors several root URLs concurrently.
//
// A target goes through three steps: the target check (URL and .onion
// validation), the mirror step (crawl into the file or simulate sink and
// the report recorder) and the save step (history database). Each step
// receives the report being built and may add to it.
//
// BatchProcessor runs one pipeline per target with bounded concurrency
// using errgroup.
package pipeline
