package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

var _ IOptions = (*ReportOptions)(nil)

// ReportOptions configures where and how mission reports are exported.
type ReportOptions struct {
	// Dir receives the rendered files.
	Dir string `json:"dir" mapstructure:"dir"`

	// Formats lists the formats written per export: md, html or json.
	Formats []string `json:"formats" mapstructure:"formats"`
}

func NewReportOptions() *ReportOptions {
	return &ReportOptions{
		Dir:     ".",
		Formats: []string{"md"},
	}
}

func (o *ReportOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}
	if o.Dir == "" {
		errors = append(errors, fmt.Errorf("--report.dir must not be empty"))
	}
	if len(o.Formats) == 0 {
		errors = append(errors, fmt.Errorf("--report.formats needs at least one format"))
	}
	return errors
}

func (o *ReportOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Dir, "report.dir", o.Dir, "Directory exported mission reports are written to.")
	fs.StringSliceVar(&o.Formats, "report.formats", o.Formats, "Report formats to export (md, html, json).")
}
