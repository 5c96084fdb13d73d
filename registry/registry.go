/*Package registry maps operator-facing device names to stepper motor
drivers.  The contents are fixed after construction; lookups are pure and
performed on every command, so the shell never caches a stale handle.
*/
package registry

import (
	"fmt"
	"sort"

	"github.jpl.nasa.gov/bdube/stepsh/stepper"
)

// Registry is a name -> driver mapping.  Create Registries with New.
type Registry struct {
	devices map[string]stepper.Stepper
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{devices: map[string]stepper.Stepper{}}
}

// Add registers dev under name.  Duplicate names are an error; two devices
// aliasing one name would make command dispatch ambiguous.
func (r *Registry) Add(name string, dev stepper.Stepper) error {
	if _, ok := r.devices[name]; ok {
		return fmt.Errorf("device name %s already registered", name)
	}
	r.devices[name] = dev
	return nil
}

// Lookup returns the device registered under name.
func (r *Registry) Lookup(name string) (stepper.Stepper, error) {
	dev, ok := r.devices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", stepper.ErrDeviceNotFound, name)
	}
	return dev, nil
}

// Names returns the registered device names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.devices))
	for name := range r.devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
