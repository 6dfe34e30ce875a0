package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/roverops/missionctl/internal/report"
	"github.com/roverops/missionctl/pkg/app"
	"github.com/roverops/missionctl/pkg/log"
	"github.com/roverops/missionctl/pkg/options"
)

// Options holds every option of roverctl.
type Options struct {
	APIOptions     *options.APIOptions     `json:"api" mapstructure:"api"`
	StreamOptions  *options.StreamOptions  `json:"stream" mapstructure:"stream"`
	MqttOptions    *options.MqttOptions    `json:"mqtt" mapstructure:"mqtt"`
	S3Options      *options.S3Options      `json:"s3" mapstructure:"s3"`
	ReportOptions  *options.ReportOptions  `json:"report" mapstructure:"report"`
	MetricsOptions *options.MetricsOptions `json:"metrics" mapstructure:"metrics"`
	Log            *log.Options            `json:"log" mapstructure:"log"`

	// Formats is ReportOptions.Formats, parsed by Complete.
	Formats []report.Format `json:"-" mapstructure:"-"`
}

var _ app.NamedFlagSetOptions = (*Options)(nil)

func NewOptions() *Options {
	return &Options{
		APIOptions:     options.NewAPIOptions(),
		StreamOptions:  options.NewStreamOptions(),
		MqttOptions:    options.NewMqttOptions(),
		S3Options:      options.NewS3Options(),
		ReportOptions:  options.NewReportOptions(),
		MetricsOptions: options.NewMetricsOptions(),
		Log:            log.NewOptions(),
	}
}

func (o *Options) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.APIOptions.AddFlags(fss.FlagSet("api"))
	o.StreamOptions.AddFlags(fss.FlagSet("stream"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.S3Options.AddFlags(fss.FlagSet("s3"))
	o.ReportOptions.AddFlags(fss.FlagSet("report"))
	o.MetricsOptions.AddFlags(fss.FlagSet("metrics"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *Options) Complete() error {
	o.Formats = o.Formats[:0]
	for _, s := range o.ReportOptions.Formats {
		f, err := report.ParseFormat(s)
		if err != nil {
			return err
		}
		o.Formats = append(o.Formats, f)
	}
	return nil
}

func (o *Options) Validate() error {
	errs := []error{}
	errs = append(errs, o.APIOptions.Validate()...)
	errs = append(errs, o.StreamOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.S3Options.Validate()...)
	errs = append(errs, o.ReportOptions.Validate()...)
	errs = append(errs, o.MetricsOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}
