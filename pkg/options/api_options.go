package options

import (
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*APIOptions)(nil)

// APIOptions configures the REST client of the mission backend.
type APIOptions struct {
	// URL is the backend base URL, e.g. http://localhost:8000.
	URL string `json:"url" mapstructure:"url"`

	// Timeout bounds a single request. Zero leaves it to the transport.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewAPIOptions creates an APIOptions with default values.
func NewAPIOptions() *APIOptions {
	return &APIOptions{
		URL: "http://localhost:8000",
	}
}

func (o *APIOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if err := ValidateURL(o.URL, "http", "https"); err != nil {
		errors = append(errors, err)
	}

	return errors
}

func (o *APIOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.URL, "api.url", o.URL, "Base URL of the mission backend REST API.")
	fs.DurationVar(&o.Timeout, "api.timeout", o.Timeout, "Per-request timeout for REST calls (0 relies on transport defaults).")
}
