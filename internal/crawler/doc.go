// Package crawler mirrors a single web page together with the same-origin
// static assets it references.
//
// # Architecture
//
// The package is built around the Spider type, which drives one crawl:
//
//   - Resolve / SameOrigin / RelativePath: URL resolution and origin scoping
//   - Fetcher / HTTPFetcher: a single HTTP GET with status validation
//   - Parser: extraction of stylesheet, script and image references from HTML
//   - ExtractCSSRefs: extraction of url() and @import references from CSS
//   - Spider: the orchestrator that fans out fetches and recurses into CSS
//
// Every fetched resource is handed to a Sink under its site-relative path.
// The root document is always emitted first as "index.html".
//
// # Concurrency
//
// Each fan-out level (the assets of the root page, and the references of
// every fetched stylesheet) runs as its own errgroup. Sibling fetches do
// not wait for one another. An optional global limit caps the number of
// in-flight fetches across all levels; the limit is held only for the
// duration of a fetch, never while a level waits for its children.
//
// # Errors
//
// Only an invalid root URL or a failed root fetch fails a crawl. Empty,
// inline (data:) and cross-origin references are skipped silently. Any
// other failure below the root is logged, passed to the FailureHandler and
// isolated from its siblings.
//
// # Usage
//
//	spider := crawler.NewSpider(crawler.NewHTTPFetcher(http.DefaultClient))
//	err := spider.Crawl(ctx, "https://example.com/", crawler.Options{}, sink)
package crawler
