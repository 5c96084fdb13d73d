package registry

import (
	"github.jpl.nasa.gov/bdube/stepsh/sim"
	"github.jpl.nasa.gov/bdube/stepsh/tmc"
)

// TMC5160Setup holds the args for one tmc.New call.
type TMC5160Setup struct {
	// Name is the operator-facing device name, e.g. motor1
	Name string `yaml:"name" koanf:"name"`

	// Addr holds the network or filesystem address of the controller,
	// e.g. 192.168.100.123:2006 for a device behind a serial bridge, or
	// /dev/ttyACM0 for a local serial port
	Addr string `yaml:"addr" koanf:"addr"`

	// Serial determines if the connection is a local serial port (true)
	// or TCP (false)
	Serial bool `yaml:"serial" koanf:"serial"`
}

// SimSetup holds the args for one sim.NewMotor call.
type SimSetup struct {
	// Name is the operator-facing device name
	Name string `yaml:"name" koanf:"name"`

	// StepsPerSec is the simulated step rate
	StepsPerSec uint32 `yaml:"stepsPerSec" koanf:"stepsPerSec"`
}

// Config holds the initialization parameters for the device set, populated
// from the yaml config file.
type Config struct {
	// HTTP is an optional listen address; when set, every device is also
	// exposed over HTTP under /<name>/
	HTTP string `yaml:"http" koanf:"http"`

	// TMC5160s is a list of setup parameters that automap to TMC5160
	// controllers
	TMC5160s []TMC5160Setup `yaml:"tmc5160s" koanf:"tmc5160s"`

	// Sims is a list of setup parameters that automap to simulated motors
	Sims []SimSetup `yaml:"sims" koanf:"sims"`
}

// BuildRegistry constructs the drivers described by the config and
// registers them by name.
func (c Config) BuildRegistry() (*Registry, error) {
	r := New()
	for _, setup := range c.TMC5160s {
		if err := r.Add(setup.Name, tmc.New(setup.Addr, setup.Serial)); err != nil {
			return nil, err
		}
	}
	for _, setup := range c.Sims {
		if err := r.Add(setup.Name, sim.NewMotor(setup.StepsPerSec)); err != nil {
			return nil, err
		}
	}
	return r, nil
}
