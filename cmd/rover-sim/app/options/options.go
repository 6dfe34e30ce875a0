package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/roverops/missionctl/pkg/app"
	"github.com/roverops/missionctl/pkg/log"
	"github.com/roverops/missionctl/pkg/options"
)

// SimOptions holds every option of rover-sim.
type SimOptions struct {
	HttpOptions      *options.HttpOptions      `json:"http" mapstructure:"http"`
	SimulatorOptions *options.SimulatorOptions `json:"sim" mapstructure:"sim"`
	MetricsOptions   *options.MetricsOptions   `json:"metrics" mapstructure:"metrics"`
	Log              *log.Options              `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*SimOptions)(nil)

func NewSimOptions() *SimOptions {
	return &SimOptions{
		HttpOptions:      options.NewHttpOptions(),
		SimulatorOptions: options.NewSimulatorOptions(),
		MetricsOptions:   options.NewMetricsOptions(),
		Log:              log.NewOptions(),
	}
}

func (o *SimOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.SimulatorOptions.AddFlags(fss.FlagSet("simulator"))
	o.MetricsOptions.AddFlags(fss.FlagSet("metrics"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *SimOptions) Complete() error {
	return nil
}

func (o *SimOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.SimulatorOptions.Validate()...)
	errs = append(errs, o.MetricsOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}
