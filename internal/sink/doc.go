// Package sink provides the crawler.Sink implementations used by onepage.
//
//   - FileSink writes every resource below an output directory.
//   - SimulateSink only logs what would have been written (-s).
//   - Recorder collects a model.MirrorReport from emissions, failures and
//     crawl statistics, and inspects images for metadata.
//   - Multi passes every emission to several sinks.
//
// Every sink is safe for concurrent use, as crawler.Sink requires.
package sink
