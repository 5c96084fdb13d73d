/*Package sim provides an in-memory stepper motor implementing the full
capability set.  It backs tests and dry runs of the shell when no hardware
is attached; motion is integrated step by step in a goroutine at a
configured rate, and the completion signal fires when the target is
reached, exactly like a real controller.
*/
package sim

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.jpl.nasa.gov/bdube/stepsh/notify"
	"github.jpl.nasa.gov/bdube/stepsh/stepper"
)

// Motor is a simulated stepper motor.  Create Motors with NewMotor.
type Motor struct {
	mu          sync.Mutex
	enabled     bool
	moving      bool
	pos         int32
	res         stepper.MicroStepRes
	maxVel      uint32
	stepsPerSec uint32
	stop        chan struct{}
}

// NewMotor returns a disabled motor that steps at stepsPerSec when moving.
func NewMotor(stepsPerSec uint32) *Motor {
	if stepsPerSec == 0 {
		stepsPerSec = 1000
	}
	return &Motor{
		res:         stepper.FullStep,
		maxVel:      stepsPerSec,
		stepsPerSec: stepsPerSec,
	}
}

// Enable energizes or releases the motor.  Releasing a moving motor is
// refused.
func (m *Motor) Enable(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !on && m.moving {
		return stepper.CodeBusy
	}
	m.enabled = on
	return nil
}

// Move moves the motor by steps micro-steps relative to the current
// position.
func (m *Motor) Move(steps int32, done *notify.Signal) error {
	m.mu.Lock()
	target := m.pos + steps
	m.mu.Unlock()
	return m.SetTargetPosition(target, done)
}

// SetTargetPosition commands an absolute move.  The call returns
// immediately; done (if non-nil) fires when the target is reached.
func (m *Motor) SetTargetPosition(pos int32, done *notify.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled {
		return stepper.CodePerm
	}
	if m.moving {
		return stepper.CodeBusy
	}
	m.moving = true
	m.stop = make(chan struct{})
	go m.run(pos, done, m.stop)
	return nil
}

// run integrates position toward target one step at a time.
func (m *Motor) run(target int32, done *notify.Signal, stop chan struct{}) {
	lim := rate.NewLimiter(rate.Limit(m.stepsPerSec), 1)
	ctx := context.Background()
	for {
		select {
		case <-stop:
			m.mu.Lock()
			m.moving = false
			m.mu.Unlock()
			return
		default:
		}
		if err := lim.Wait(ctx); err != nil {
			return
		}
		m.mu.Lock()
		if m.pos < target {
			m.pos++
		} else if m.pos > target {
			m.pos--
		}
		reached := m.pos == target
		if reached {
			m.moving = false
		}
		m.mu.Unlock()
		if reached {
			if done != nil {
				done.Fire(notify.StepsCompleted)
			}
			return
		}
	}
}

// freeRun steps indefinitely in one direction until stopped.
func (m *Motor) freeRun(dir stepper.Direction, v uint32, stop chan struct{}) {
	lim := rate.NewLimiter(rate.Limit(v), 1)
	ctx := context.Background()
	for {
		select {
		case <-stop:
			m.mu.Lock()
			m.moving = false
			m.mu.Unlock()
			return
		default:
		}
		if err := lim.Wait(ctx); err != nil {
			return
		}
		m.mu.Lock()
		if dir == stepper.Positive {
			m.pos++
		} else {
			m.pos--
		}
		m.mu.Unlock()
	}
}

// SetActualPosition overwrites the current position.  Refused while moving.
func (m *Motor) SetActualPosition(pos int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.moving {
		return stepper.CodeBusy
	}
	m.pos = pos
	return nil
}

// GetActualPosition reads the current position.
func (m *Motor) GetActualPosition() (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos, nil
}

// SetMaxVelocity sets the velocity ceiling.
func (m *Motor) SetMaxVelocity(v uint32) error {
	if v == 0 {
		return stepper.CodeInvalidParam
	}
	m.mu.Lock()
	m.maxVel = v
	m.mu.Unlock()
	return nil
}

// SetMicroStepRes sets the micro-step resolution.
func (m *Motor) SetMicroStepRes(res stepper.MicroStepRes) error {
	m.mu.Lock()
	m.res = res
	m.mu.Unlock()
	return nil
}

// GetMicroStepRes reads the micro-step resolution.
func (m *Motor) GetMicroStepRes() (stepper.MicroStepRes, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.res, nil
}

// EnableConstantVelocityMode free-runs the motor at velocity v; v of zero
// stops any motion in progress.
func (m *Motor) EnableConstantVelocityMode(dir stepper.Direction, v uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v == 0 {
		if m.moving && m.stop != nil {
			close(m.stop)
			m.stop = nil
		}
		return nil
	}
	if !m.enabled {
		return stepper.CodePerm
	}
	if m.moving {
		return stepper.CodeBusy
	}
	m.moving = true
	m.stop = make(chan struct{})
	go m.freeRun(dir, v, m.stop)
	return nil
}

// IsMoving reports whether the motor is in motion.
func (m *Motor) IsMoving() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.moving, nil
}
