// Package config provides the configuration of onepage: command line
// options with their defaults and validation, the per-site YAML file
// (.onepage) and the XDG directories used for history and caches.
package config
