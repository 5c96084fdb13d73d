/*Package stepper defines the capability interfaces stepper motor drivers
expose, along with the domain types shared by every driver.

The interfaces are deliberately small and single-concern; a controller
implements whichever subset its hardware supports, and consumers test for
the pieces they need with type assertions.  Stepper is the union of all of
them, the full capability set the shell and HTTP adapters work against.
*/
package stepper

import (
	"errors"
	"fmt"

	"github.jpl.nasa.gov/bdube/stepsh/notify"
)

// ErrDeviceNotFound is generated when a device name does not resolve to a
// registered stepper controller.
var ErrDeviceNotFound = errors.New("stepper device not found")

// Error is an integer error code from a stepper driver, passed through to
// the operator verbatim.  The values are driver-specific; by convention they
// follow negative errno, e.g. -5 for an I/O fault.
type Error int

// Common driver error codes.
const (
	// CodePerm is returned for operations on a disabled motor.
	CodePerm = Error(-1)

	// CodeIO is returned for communication faults with the controller.
	CodeIO = Error(-5)

	// CodeBusy is returned when the motor is already in motion and the
	// operation cannot be accepted.
	CodeBusy = Error(-16)

	// CodeInvalidParam is returned for values the controller rejects.
	CodeInvalidParam = Error(-22)
)

// Code returns the raw driver error code.
func (e Error) Code() int {
	return int(e)
}

func (e Error) Error() string {
	return fmt.Sprintf("driver error %d", int(e))
}

// Direction is the direction of rotation for constant-velocity motion.
type Direction int

const (
	// Negative rotates toward decreasing position.
	Negative Direction = iota

	// Positive rotates toward increasing position.
	Positive
)

func (d Direction) String() string {
	if d == Positive {
		return "positive"
	}
	return "negative"
}

// ParseDirection converts a direction code to a Direction.
func ParseDirection(code int) (Direction, error) {
	if code != 0 && code != 1 {
		return 0, fmt.Errorf("direction code %d, want 0 (negative) or 1 (positive)", code)
	}
	return Direction(code), nil
}

// MicroStepRes is a micro-step resolution: the number of micro-steps per
// full motor step.  Valid values are the powers of two from 1 to 256.
type MicroStepRes int

// The supported micro-step resolutions.
const (
	FullStep      MicroStepRes = 1
	HalfStep      MicroStepRes = 2
	QuarterStep   MicroStepRes = 4
	EighthStep    MicroStepRes = 8
	SixteenthStep MicroStepRes = 16
	Step32        MicroStepRes = 32
	Step64        MicroStepRes = 64
	Step128       MicroStepRes = 128
	Step256       MicroStepRes = 256
)

// Resolutions returns the valid micro-step resolution codes in ascending order.
func Resolutions() []int {
	return []int{1, 2, 4, 8, 16, 32, 64, 128, 256}
}

// ParseMicroStepRes converts a resolution code to a MicroStepRes.
func ParseMicroStepRes(code int) (MicroStepRes, error) {
	if code < 1 || code > 256 || code&(code-1) != 0 {
		return 0, fmt.Errorf("micro-step resolution %d, want a power of two in [1, 256]", code)
	}
	return MicroStepRes(code), nil
}

func (m MicroStepRes) String() string {
	return fmt.Sprintf("1/%d", int(m))
}

// Enabler describes a motor whose driver stage can be energized and released.
type Enabler interface {
	// Enable energizes (true) or releases (false) the motor
	Enable(bool) error
}

// Mover describes a motor that can move by a relative number of micro-steps.
type Mover interface {
	// Move moves the motor by steps micro-steps relative to the current
	// position.  The call returns when the driver accepts the operation,
	// not when motion completes.  If done is non-nil it fires when the
	// target is reached.
	Move(steps int32, done *notify.Signal) error
}

// Positioner describes a motor with a position register.
type Positioner interface {
	// SetActualPosition overwrites the driver's idea of the current position
	SetActualPosition(int32) error

	// GetActualPosition reads the current position in micro-steps
	GetActualPosition() (int32, error)

	// SetTargetPosition commands an absolute move.  Same asynchronous
	// contract as Mover.Move.
	SetTargetPosition(pos int32, done *notify.Signal) error
}

// Speeder describes a motor with a velocity limit.
type Speeder interface {
	// SetMaxVelocity sets the velocity ceiling in micro-steps per second
	SetMaxVelocity(uint32) error
}

// Resolutioner describes a motor with configurable micro-step resolution.
type Resolutioner interface {
	// SetMicroStepRes sets the micro-step resolution
	SetMicroStepRes(MicroStepRes) error

	// GetMicroStepRes reads the micro-step resolution
	GetMicroStepRes() (MicroStepRes, error)
}

// ConstantVelocityModer describes a motor that can free-run at a constant
// velocity instead of moving to a target.
type ConstantVelocityModer interface {
	// EnableConstantVelocityMode starts free-running in the given direction
	// at the given velocity
	EnableConstantVelocityMode(Direction, uint32) error
}

// MotionQuerier describes a motor that can report whether it is in motion.
type MotionQuerier interface {
	// IsMoving reports whether the motor is currently in motion
	IsMoving() (bool, error)
}

// Stepper is the full capability set for a stepper motor controller.
type Stepper interface {
	Enabler
	Mover
	Positioner
	Speeder
	Resolutioner
	ConstantVelocityModer
	MotionQuerier
}
