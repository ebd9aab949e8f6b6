// Package config provides the connector configuration: credential material,
// the form id list, sync tuning knobs, and the durable store the OAuth
// refresh flow writes new token pairs back into.
package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/formtap/pkg/errors"
)

const (
	// DefaultResponsesPageSize is the page size for submission endpoints.
	DefaultResponsesPageSize = 1000
	// DefaultFormsPageSize is the page size for the form-list endpoint.
	DefaultFormsPageSize = 200
	// DefaultRequestTimeout applies when the config leaves the timeout
	// empty, zero, or unset.
	DefaultRequestTimeout = 300 * time.Second
)

// Config holds the connector configuration. PageSize and RequestTimeout stay
// untyped because upstream configs carry them as numbers or numeric strings
// interchangeably; Resolve* validates them.
type Config struct {
	Token        string `json:"token" mapstructure:"token"`
	ClientID     string `json:"client_id" mapstructure:"client_id"`
	ClientSecret string `json:"client_secret" mapstructure:"client_secret"`
	RefreshToken string `json:"refresh_token" mapstructure:"refresh_token"`

	// Forms is a comma-separated list of form ids; empty means all forms
	// the account can see.
	Forms     string `json:"forms" mapstructure:"forms"`
	StartDate string `json:"start_date" mapstructure:"start_date"`

	PageSize       interface{} `json:"page_size" mapstructure:"page_size"`
	RequestTimeout interface{} `json:"request_timeout" mapstructure:"request_timeout"`

	FetchUncompletedForms bool `json:"fetch_uncompleted_forms" mapstructure:"fetch_uncompleted_forms"`
}

// FormIDs splits the configured form list into trimmed ids. An empty config
// entry yields an empty slice, meaning "sync every form the API returns".
func (c *Config) FormIDs() []string {
	if strings.TrimSpace(c.Forms) == "" {
		return nil
	}
	parts := strings.Split(c.Forms, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if id := strings.TrimSpace(p); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// ResolvePageSizes validates the configured page size and returns the
// response page size plus the form-list page size. The form-list page size
// never exceeds the general page size. An unparsable or non-positive page
// size is a fatal configuration error.
func (c *Config) ResolvePageSizes() (pageSize, formPageSize int, err error) {
	pageSize = DefaultResponsesPageSize
	formPageSize = DefaultFormsPageSize

	if c.PageSize == nil {
		return pageSize, formPageSize, nil
	}

	n, ok := toPositiveInt(c.PageSize)
	if !ok {
		return 0, 0, errors.New(errors.ErrorTypeConfig,
			"the entered page size is invalid, it should be a valid integer")
	}

	pageSize = n
	if pageSize < formPageSize {
		formPageSize = pageSize
	}
	return pageSize, formPageSize, nil
}

// ResolveRequestTimeout returns the configured request timeout, falling back
// to DefaultRequestTimeout when the value is missing, empty, or zero.
func (c *Config) ResolveRequestTimeout() time.Duration {
	switch v := c.RequestTimeout.(type) {
	case nil:
		return DefaultRequestTimeout
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || f == 0 {
			return DefaultRequestTimeout
		}
		return time.Duration(f * float64(time.Second))
	case float64:
		if v == 0 {
			return DefaultRequestTimeout
		}
		return time.Duration(v * float64(time.Second))
	case int:
		if v == 0 {
			return DefaultRequestTimeout
		}
		return time.Duration(v) * time.Second
	default:
		return DefaultRequestTimeout
	}
}

// toPositiveInt accepts the numeric shapes a JSON config can carry and
// reports whether the value is a usable positive integer.
func toPositiveInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		if n > 0 {
			return n, true
		}
	case int64:
		if n > 0 {
			return int(n), true
		}
	case float64:
		if int(n) > 0 {
			return int(n), true
		}
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err == nil && int(f) > 0 {
			return int(f), true
		}
	}
	return 0, false
}
