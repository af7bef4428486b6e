package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// DefaultWebsite is the name used when no named website was selected.
const DefaultWebsite = "default"

// Site holds the credentials for one WooCommerce store.
type Site struct {
	SiteURL         string `json:"SITE_URL"`
	ConsumerKey     string `json:"CONSUMER_KEY"`
	ConsumerSecret  string `json:"CONSUMER_SECRET"`
	APIVersion      string `json:"API_VERSION"`
	QueryStringAuth bool   `json:"QUERY_STRING_AUTH"`
}

// File mirrors config.json. Top-level site fields are used when no websites are declared.
type File struct {
	Site
	Websites       map[string]Site `json:"websites"`
	DefaultWebsite string          `json:"default_website"`
}

// Names returns the configured website names in sorted order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Websites))
	for name := range f.Websites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConfigError reports missing or malformed configuration.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %v", e.Msg, e.Err)
	}
	return "config: " + e.Msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// UnknownWebsiteError is returned when a requested website is not configured.
type UnknownWebsiteError struct {
	Name      string
	Available []string
}

func (e *UnknownWebsiteError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("website %q not found in config (no websites configured)", e.Name)
	}
	return fmt.Sprintf("website %q not found in config (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// LoadFile reads a JSON5 config file. A missing file yields an empty File so
// that resolution falls back to the environment.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &File{}, nil
	}
	if err != nil {
		return nil, &ConfigError{Msg: "read " + path, Err: err}
	}

	var f File
	if err := json5.Unmarshal(data, &f); err != nil {
		return nil, &ConfigError{Msg: "parse " + path, Err: err}
	}
	return &f, nil
}

// EnvSite reads SITE_URL, CONSUMER_KEY and CONSUMER_SECRET from the environment.
func EnvSite() Site {
	site := Site{}
	site.SiteURL, _ = EnvString("SITE_URL")
	site.ConsumerKey, _ = EnvString("CONSUMER_KEY")
	site.ConsumerSecret, _ = EnvString("CONSUMER_SECRET")
	site.APIVersion, _ = EnvString("API_VERSION")
	return site
}

// ResolveSite picks the site for website (or the configured default), fills
// empty fields from fallback and validates the result. It returns the site and
// the effective website name.
func ResolveSite(f *File, website string, fallback Site) (Site, string, error) {
	if f == nil {
		f = &File{}
	}

	var (
		site Site
		name string
	)
	switch {
	case website != "":
		s, ok := f.Websites[website]
		switch {
		case ok:
			site, name = s, website
		case website == DefaultWebsite:
			site, name = f.Site, DefaultWebsite
		default:
			return Site{}, "", &UnknownWebsiteError{Name: website, Available: f.Names()}
		}
	case website == "" && f.DefaultWebsite != "":
		s, ok := f.Websites[f.DefaultWebsite]
		if !ok {
			return Site{}, "", &UnknownWebsiteError{Name: f.DefaultWebsite, Available: f.Names()}
		}
		site, name = s, f.DefaultWebsite
	default:
		site, name = f.Site, DefaultWebsite
	}

	if err := mergo.Merge(&site, fallback); err != nil {
		return Site{}, "", &ConfigError{Msg: "merge environment fallback", Err: err}
	}
	if site.APIVersion == "" {
		site.APIVersion = "v3"
	}

	if err := site.Validate(); err != nil {
		return Site{}, "", err
	}
	return site, name, nil
}

// Validate checks that the credentials are complete and the URL is usable.
func (s Site) Validate() error {
	var missing []string
	if s.ConsumerKey == "" {
		missing = append(missing, "CONSUMER_KEY")
	}
	if s.ConsumerSecret == "" {
		missing = append(missing, "CONSUMER_SECRET")
	}
	if s.SiteURL == "" {
		missing = append(missing, "SITE_URL")
	}
	if len(missing) > 0 {
		return &ConfigError{Msg: "missing required configuration: " + strings.Join(missing, ", ")}
	}

	parsed, err := url.Parse(s.SiteURL)
	if err != nil {
		return &ConfigError{Msg: "invalid SITE_URL", Err: err}
	}
	if parsed.Host == "" {
		return &ConfigError{Msg: "SITE_URL must include a host"}
	}
	return nil
}
