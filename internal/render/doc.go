// Package render fetches documents through headless Chrome so that pages
// building their markup with JavaScript can be mirrored.
//
// A Renderer satisfies crawler.Fetcher. It is meant for the root document
// only: the serialized DOM replaces the served HTML, while stylesheets,
// scripts and images are still fetched over plain HTTP.
package render
