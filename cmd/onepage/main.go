// Package main provides the entry point for the onepage CLI.
//
// onepage mirrors a single web page: the HTML document and the same-origin
// stylesheets, scripts and images it references, including everything the
// stylesheets pull in through url() and @import.
//
// Usage:
//
//	onepage mirror https://example.com/
//	onepage mirror -o ./out -j https://example.com/
//	onepage history https://example.com/
//
// See --help for all available options.
package main

func main() {
	Execute()
}
