package shell

import (
	"errors"
	"fmt"
	"strconv"

	"github.jpl.nasa.gov/bdube/stepsh/stepper"
)

// ErrInvalidArgument is generated when a command argument is malformed or
// out of range.  It is detected before any hardware call.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrUnknownCommand is generated when the command name is not in the
// command set.
var ErrUnknownCommand = errors.New("unknown command")

// Descriptor describes one shell command: its name, argument shape, and
// whether its completion is reported asynchronously.  The command set is
// fixed at process start and never mutated.
type Descriptor struct {
	Name    string
	MinArgs int
	Help    string
	Async   bool
}

// Descriptors is the fixed command set.
var Descriptors = []Descriptor{
	{Name: "enable", MinArgs: 2, Help: "<device> <on|off>"},
	{Name: "move", MinArgs: 2, Help: "<device> <micro_steps>", Async: true},
	{Name: "set_max_velocity", MinArgs: 2, Help: "<device> <velocity>"},
	{Name: "set_micro_step_res", MinArgs: 2, Help: "<device> <resolution>"},
	{Name: "set_actual_position", MinArgs: 2, Help: "<device> <position>"},
	{Name: "set_target_position", MinArgs: 2, Help: "<device> <position>", Async: true},
	{Name: "enable_constant_velocity_mode", MinArgs: 3, Help: "<device> <direction> <velocity>"},
	{Name: "info", MinArgs: 1, Help: "<device>"},
}

func descriptor(name string) (Descriptor, bool) {
	for _, d := range Descriptors {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// command is the closed set of parsed operator commands.  Each kind carries
// its typed arguments; execution switches exhaustively over the concrete
// types.
type command interface {
	device() string
}

type enableCmd struct {
	dev string
	on  bool
}

type moveCmd struct {
	dev   string
	steps int32
}

type setMaxVelocityCmd struct {
	dev      string
	velocity uint32
}

type setMicroStepResCmd struct {
	dev string
	res stepper.MicroStepRes
}

type setActualPositionCmd struct {
	dev string
	pos int32
}

type setTargetPositionCmd struct {
	dev string
	pos int32
}

type constantVelocityCmd struct {
	dev      string
	dir      stepper.Direction
	velocity uint32
}

type infoCmd struct {
	dev string
}

func (c enableCmd) device() string            { return c.dev }
func (c moveCmd) device() string              { return c.dev }
func (c setMaxVelocityCmd) device() string    { return c.dev }
func (c setMicroStepResCmd) device() string   { return c.dev }
func (c setActualPositionCmd) device() string { return c.dev }
func (c setTargetPositionCmd) device() string { return c.dev }
func (c constantVelocityCmd) device() string  { return c.dev }
func (c infoCmd) device() string              { return c.dev }

// parseInt32 parses a signed 32-bit value; base is inferred from the prefix
// so hex and octal literals work like they do for strtol.
func parseInt32(s, what string) (int32, error) {
	v, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a 32-bit integer", ErrInvalidArgument, what, s)
	}
	return int32(v), nil
}

func parseUint32(s, what string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not an unsigned 32-bit integer", ErrInvalidArgument, what, s)
	}
	return uint32(v), nil
}

// parse converts a validated token list into a typed command.  name must be
// a member of Descriptors and args must satisfy its MinArgs.
func parse(name string, args []string) (command, error) {
	dev := args[0]
	switch name {
	case "enable":
		switch args[1] {
		case "on":
			return enableCmd{dev: dev, on: true}, nil
		case "off":
			return enableCmd{dev: dev, on: false}, nil
		default:
			return nil, fmt.Errorf("%w: enable value %q, want on or off", ErrInvalidArgument, args[1])
		}
	case "move":
		steps, err := parseInt32(args[1], "micro_steps")
		if err != nil {
			return nil, err
		}
		return moveCmd{dev: dev, steps: steps}, nil
	case "set_max_velocity":
		v, err := parseUint32(args[1], "velocity")
		if err != nil {
			return nil, err
		}
		return setMaxVelocityCmd{dev: dev, velocity: v}, nil
	case "set_micro_step_res":
		code, err := parseInt32(args[1], "resolution")
		if err != nil {
			return nil, err
		}
		res, err := stepper.ParseMicroStepRes(int(code))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		return setMicroStepResCmd{dev: dev, res: res}, nil
	case "set_actual_position":
		pos, err := parseInt32(args[1], "position")
		if err != nil {
			return nil, err
		}
		return setActualPositionCmd{dev: dev, pos: pos}, nil
	case "set_target_position":
		pos, err := parseInt32(args[1], "position")
		if err != nil {
			return nil, err
		}
		return setTargetPositionCmd{dev: dev, pos: pos}, nil
	case "enable_constant_velocity_mode":
		code, err := parseInt32(args[1], "direction")
		if err != nil {
			return nil, err
		}
		dir, err := stepper.ParseDirection(int(code))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		v, err := parseUint32(args[2], "velocity")
		if err != nil {
			return nil, err
		}
		return constantVelocityCmd{dev: dev, dir: dir, velocity: v}, nil
	case "info":
		return infoCmd{dev: dev}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
}
