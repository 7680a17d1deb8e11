// Package tor provides the HTTP transports onepage mirrors through.
//
// A Client routes connections through a SOCKS5 proxy, normally a Tor
// daemon. EmbeddedTor starts a private Tor daemon with tornago when no
// external one is available. HeaderTransport adds per-site cookies and
// headers to every request regardless of how the connection is made.
//
// Roots on .onion hosts are only mirrored through Tor; ValidateOnionHost
// rejects malformed and deprecated v2 addresses before any request is sent.
package tor
