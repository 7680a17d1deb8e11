package config

import "maps"

// SiteConfig holds settings for a single host.
type SiteConfig struct {
	// Cookie is sent with every request to the site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are additional HTTP headers sent with every request to the site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// UserAgent overrides the global User-Agent for the site.
	UserAgent string `yaml:"userAgent,omitempty"`

	// JS, CSS and Images switch asset kinds on or off for the site.
	// Nil leaves the command line setting in effect.
	JS     *bool `yaml:"js,omitempty"`
	CSS    *bool `yaml:"css,omitempty"`
	Images *bool `yaml:"images,omitempty"`

	// Render fetches the root document through headless Chrome.
	Render *bool `yaml:"render,omitempty"`
}

// File represents the structure of the .onepage configuration file.
type File struct {
	// Sites maps hosts to their configuration. Keys are the URL host,
	// including a non-default port (e.g. "example.com" or "localhost:8080").
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host, merged over the defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	site, ok := cf.Sites[host]
	if !ok {
		return result
	}

	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if site.UserAgent != "" {
		result.UserAgent = site.UserAgent
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	if site.JS != nil {
		result.JS = site.JS
	}
	if site.CSS != nil {
		result.CSS = site.CSS
	}
	if site.Images != nil {
		result.Images = site.Images
	}
	if site.Render != nil {
		result.Render = site.Render
	}
	return result
}

// Resolve applies the site settings to the command line switches and
// returns the effective skip flags and render setting.
func (s SiteConfig) Resolve(skipJS, skipCSS, skipImages, render bool) (bool, bool, bool, bool) {
	if s.JS != nil {
		skipJS = !*s.JS
	}
	if s.CSS != nil {
		skipCSS = !*s.CSS
	}
	if s.Images != nil {
		skipImages = !*s.Images
	}
	if s.Render != nil {
		render = *s.Render
	}
	return skipJS, skipCSS, skipImages, render
}
