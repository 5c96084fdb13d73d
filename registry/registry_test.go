package registry_test

import (
	"errors"
	"testing"

	"github.jpl.nasa.gov/bdube/stepsh/registry"
	"github.jpl.nasa.gov/bdube/stepsh/sim"
	"github.jpl.nasa.gov/bdube/stepsh/stepper"
)

func TestLookupUnknownDevice(t *testing.T) {
	r := registry.New()
	_, err := r.Lookup("ghost")
	if !errors.Is(err, stepper.ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestAddAndLookup(t *testing.T) {
	r := registry.New()
	m := sim.NewMotor(1000)
	if err := r.Add("motorA", m); err != nil {
		t.Fatalf("add: %v", err)
	}
	dev, err := r.Lookup("motorA")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if dev != stepper.Stepper(m) {
		t.Error("expected lookup to return the registered device")
	}
}

func TestDuplicateNameRejected(t *testing.T) {
	r := registry.New()
	if err := r.Add("motorA", sim.NewMotor(1000)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := r.Add("motorA", sim.NewMotor(1000)); err == nil {
		t.Error("expected duplicate name to be rejected")
	}
}

func TestNamesSorted(t *testing.T) {
	r := registry.New()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Add(name, sim.NewMotor(1000)); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	names := r.Names()
	expected := []string{"alpha", "mid", "zeta"}
	for i := range expected {
		if names[i] != expected[i] {
			t.Errorf("expected %v got %v", expected, names)
			break
		}
	}
}

func TestBuildRegistryFromConfig(t *testing.T) {
	c := registry.Config{
		Sims: []registry.SimSetup{
			{Name: "simA", StepsPerSec: 1000},
			{Name: "simB", StepsPerSec: 2000},
		},
	}
	r, err := c.BuildRegistry()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, name := range []string{"simA", "simB"} {
		if _, err := r.Lookup(name); err != nil {
			t.Errorf("expected %s registered: %v", name, err)
		}
	}
}
