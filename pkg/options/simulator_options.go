package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*SimulatorOptions)(nil)

// SimulatorOptions tunes the local mission simulator.
type SimulatorOptions struct {
	// StepInterval is the pause between two scripted mission events.
	StepInterval time.Duration `json:"step-interval" mapstructure:"step-interval"`

	// Seed makes random targets and obstacles reproducible. Zero uses the clock.
	Seed int64 `json:"seed" mapstructure:"seed"`

	// Obstacles is the number of obstacles scattered on the grid.
	Obstacles int `json:"obstacles" mapstructure:"obstacles"`
}

func NewSimulatorOptions() *SimulatorOptions {
	return &SimulatorOptions{
		StepInterval: 600 * time.Millisecond,
		Obstacles:    6,
	}
}

func (o *SimulatorOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}
	if o.StepInterval <= 0 {
		errors = append(errors, fmt.Errorf("--sim.step-interval must be positive"))
	}
	if o.Obstacles < 0 {
		errors = append(errors, fmt.Errorf("--sim.obstacles must not be negative"))
	}
	return errors
}

func (o *SimulatorOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.DurationVar(&o.StepInterval, "sim.step-interval", o.StepInterval, "Pause between scripted mission events.")
	fs.Int64Var(&o.Seed, "sim.seed", o.Seed, "Random seed for targets and obstacles (0 uses the clock).")
	fs.IntVar(&o.Obstacles, "sim.obstacles", o.Obstacles, "Number of obstacles placed on the grid.")
}
