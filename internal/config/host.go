package config

// HostConfig holds per-host settings applied to image requests.
// Hotlink-protected hosts typically check the Referer header and
// sometimes a session cookie; configuring them here lets the
// downloader fetch what a browser on the original page could.
type HostConfig struct {
	// Referer is sent as the Referer header for requests to this host.
	// Usually the page URL the images were originally embedded in.
	Referer string `yaml:"referer,omitempty"`

	// Headers are additional HTTP headers for requests to this host.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Cookie is an HTTP cookie header value for this host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// DelayMillis overrides the global per-host request interval in
	// milliseconds. Zero means use the global delay.
	DelayMillis int `yaml:"delayMillis,omitempty"`
}

// Defaults holds file-level defaults applied before flags.
type Defaults struct {
	// Prefix is the destination prefix used when --prefix is omitted.
	Prefix string `yaml:"prefix,omitempty"`

	// ImagesDir overrides the default images directory.
	ImagesDir string `yaml:"imagesDir,omitempty"`

	// Suffix overrides the default output filename suffix.
	Suffix string `yaml:"suffix,omitempty"`

	// UserAgent overrides the default User-Agent header.
	UserAgent string `yaml:"userAgent,omitempty"`

	// DelayMillis overrides the default per-host request interval.
	DelayMillis int `yaml:"delayMillis,omitempty"`
}

// File represents the structure of the .mdimg configuration file.
type File struct {
	// Defaults contains file-level defaults applied to all runs
	// unless overridden by CLI flags.
	Defaults Defaults `yaml:"defaults,omitempty"`

	// Hosts maps hostnames to their request settings.
	// Keys are bare hostnames (e.g. "img.example.com").
	Hosts map[string]HostConfig `yaml:"hosts,omitempty"`
}

// GetHostConfig returns the settings for a specific hostname.
// Unknown hosts get the zero value, which applies no extra headers.
func (cf *File) GetHostConfig(host string) HostConfig {
	if cf == nil || cf.Hosts == nil {
		return HostConfig{}
	}
	return cf.Hosts[host]
}
