package sim_test

import (
	"context"
	"testing"
	"time"

	"github.jpl.nasa.gov/bdube/stepsh/notify"
	"github.jpl.nasa.gov/bdube/stepsh/sim"
	"github.jpl.nasa.gov/bdube/stepsh/stepper"
)

const fastRate = 200000 // steps/sec, keeps motion tests in the millisecond range

func enabledMotor(t *testing.T) *sim.Motor {
	t.Helper()
	m := sim.NewMotor(fastRate)
	if err := m.Enable(true); err != nil {
		t.Fatalf("enable: %v", err)
	}
	return m
}

func waitFor(t *testing.T, sig *notify.Signal) int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := sig.Wait(ctx)
	if err != nil {
		t.Fatalf("completion never fired: %v", err)
	}
	return result
}

func TestMoveRequiresEnable(t *testing.T) {
	m := sim.NewMotor(fastRate)
	err := m.Move(10, nil)
	if err != stepper.CodePerm {
		t.Errorf("expected CodePerm moving a disabled motor, got %v", err)
	}
}

func TestMoveCompletesAndFires(t *testing.T) {
	m := enabledMotor(t)
	sig := notify.NewSignal()
	sig.Arm()
	if err := m.Move(250, sig); err != nil {
		t.Fatalf("move: %v", err)
	}
	if result := waitFor(t, sig); result != notify.StepsCompleted {
		t.Errorf("expected StepsCompleted got %d", result)
	}
	pos, err := m.GetActualPosition()
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if pos != 250 {
		t.Errorf("expected position 250 got %d", pos)
	}
}

func TestSetTargetPositionIsAbsolute(t *testing.T) {
	m := enabledMotor(t)
	if err := m.SetActualPosition(500); err != nil {
		t.Fatalf("set actual: %v", err)
	}
	sig := notify.NewSignal()
	sig.Arm()
	if err := m.SetTargetPosition(400, sig); err != nil {
		t.Fatalf("set target: %v", err)
	}
	waitFor(t, sig)
	pos, _ := m.GetActualPosition()
	if pos != 400 {
		t.Errorf("expected position 400 got %d", pos)
	}
}

func TestMoveWhileMovingIsBusy(t *testing.T) {
	m := enabledMotor(t)
	if err := m.Move(1000000, nil); err != nil {
		t.Fatalf("move: %v", err)
	}
	err := m.Move(1, nil)
	if err != stepper.CodeBusy {
		t.Errorf("expected CodeBusy for overlapping move, got %v", err)
	}
	// velocity zero stops the motion in progress
	if err := m.EnableConstantVelocityMode(stepper.Positive, 0); err != nil {
		t.Fatalf("stop: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		moving, _ := m.IsMoving()
		if !moving {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("motor never stopped")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestConstantVelocityModeMovesAndStops(t *testing.T) {
	m := enabledMotor(t)
	if err := m.EnableConstantVelocityMode(stepper.Negative, fastRate); err != nil {
		t.Fatalf("constant velocity: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := m.EnableConstantVelocityMode(stepper.Negative, 0); err != nil {
		t.Fatalf("stop: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		moving, _ := m.IsMoving()
		if !moving {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("motor never stopped")
		}
		time.Sleep(time.Millisecond)
	}
	pos, _ := m.GetActualPosition()
	if pos >= 0 {
		t.Errorf("expected negative position after negative free run, got %d", pos)
	}
}

func TestResolutionRoundTrip(t *testing.T) {
	m := enabledMotor(t)
	if err := m.SetMicroStepRes(stepper.SixteenthStep); err != nil {
		t.Fatalf("set res: %v", err)
	}
	res, err := m.GetMicroStepRes()
	if err != nil {
		t.Fatalf("get res: %v", err)
	}
	if res != stepper.SixteenthStep {
		t.Errorf("expected 1/16 got %v", res)
	}
}

func TestZeroVelocityRejected(t *testing.T) {
	m := enabledMotor(t)
	if err := m.SetMaxVelocity(0); err != stepper.CodeInvalidParam {
		t.Errorf("expected CodeInvalidParam got %v", err)
	}
}
