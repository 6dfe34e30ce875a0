package options

import (
	"github.com/spf13/pflag"
)

var _ IOptions = (*MetricsOptions)(nil)

// MetricsOptions configures the metrics and health endpoint.
type MetricsOptions struct {
	// Addr is the listen address. Empty disables the endpoint.
	Addr string `json:"addr" mapstructure:"addr"`
}

func NewMetricsOptions() *MetricsOptions {
	return &MetricsOptions{}
}

func (o *MetricsOptions) Enabled() bool {
	return o != nil && o.Addr != ""
}

func (o *MetricsOptions) Validate() []error {
	if !o.Enabled() {
		return nil
	}

	errors := []error{}
	if err := ValidateAddress(o.Addr); err != nil {
		errors = append(errors, err)
	}
	return errors
}

func (o *MetricsOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Addr, "metrics.addr", o.Addr, "Address serving /metrics, /healthz and /readyz (empty disables).")
}
