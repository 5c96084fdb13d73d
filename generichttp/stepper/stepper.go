// Package stepper exposes control of stepper motor drivers over HTTP
package stepper

import (
	"encoding/json"
	"net/http"

	"github.jpl.nasa.gov/bdube/stepsh/generichttp"
	"github.jpl.nasa.gov/bdube/stepsh/stepper"
)

// Enable energizes or releases the motor
func Enable(e stepper.Enabler) http.HandlerFunc {
	return generichttp.SetBool(e.Enable)
}

// Move commands a relative move in micro-steps.  The reply is sent when the
// driver accepts the operation, not when motion completes.
func Move(m stepper.Mover) http.HandlerFunc {
	return generichttp.SetInt(func(steps int) error {
		return m.Move(int32(steps), nil)
	})
}

// GetActualPosition reads the current position in micro-steps
func GetActualPosition(p stepper.Positioner) http.HandlerFunc {
	return generichttp.GetInt(func() (int, error) {
		pos, err := p.GetActualPosition()
		return int(pos), err
	})
}

// SetActualPosition overwrites the driver's idea of the current position
func SetActualPosition(p stepper.Positioner) http.HandlerFunc {
	return generichttp.SetInt(func(pos int) error {
		return p.SetActualPosition(int32(pos))
	})
}

// SetTargetPosition commands an absolute move.  Same asynchronous contract
// as Move.
func SetTargetPosition(p stepper.Positioner) http.HandlerFunc {
	return generichttp.SetInt(func(pos int) error {
		return p.SetTargetPosition(int32(pos), nil)
	})
}

// SetMaxVelocity sets the velocity ceiling in micro-steps per second
func SetMaxVelocity(s stepper.Speeder) http.HandlerFunc {
	return generichttp.SetInt(func(v int) error {
		if v < 0 {
			return stepper.CodeInvalidParam
		}
		return s.SetMaxVelocity(uint32(v))
	})
}

// GetMicroStepRes reads the micro-step resolution code
func GetMicroStepRes(r stepper.Resolutioner) http.HandlerFunc {
	return generichttp.GetInt(func() (int, error) {
		res, err := r.GetMicroStepRes()
		return int(res), err
	})
}

// SetMicroStepRes sets the micro-step resolution from a code
func SetMicroStepRes(r stepper.Resolutioner) http.HandlerFunc {
	return generichttp.SetInt(func(code int) error {
		res, err := stepper.ParseMicroStepRes(code)
		if err != nil {
			return err
		}
		return r.SetMicroStepRes(res)
	})
}

// ConstantVelocity is the JSON shape of a constant-velocity request
type ConstantVelocity struct {
	// Direction is 0 (negative) or 1 (positive)
	Direction int `json:"direction"`

	// Velocity is the free-run rate in micro-steps per second
	Velocity uint32 `json:"velocity"`
}

// EnableConstantVelocityMode starts free-running the motor
func EnableConstantVelocityMode(c stepper.ConstantVelocityModer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cv := ConstantVelocity{}
		err := json.NewDecoder(r.Body).Decode(&cv)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		dir, err := stepper.ParseDirection(cv.Direction)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		err = c.EnableConstantVelocityMode(dir, cv.Velocity)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// IsMoving queries whether the motor is in motion
func IsMoving(q stepper.MotionQuerier) http.HandlerFunc {
	return generichttp.GetBool(q.IsMoving)
}

// HTTPStepper wraps a stepper controller in an HTTP route table
type HTTPStepper struct {
	// Ctl is the underlying motor controller
	Ctl stepper.Enabler

	// RouteTable maps URLs to functions
	RouteTable generichttp.RouteTable
}

// NewHTTPStepper returns a new HTTP wrapper around an existing controller.
// Routes beyond enable are bound for whichever capabilities ctl implements.
func NewHTTPStepper(ctl stepper.Enabler) HTTPStepper {
	h := HTTPStepper{Ctl: ctl}
	rt := generichttp.RouteTable{
		generichttp.MethodPath{Method: http.MethodPost, Path: "/enable"}: Enable(ctl),
	}
	if mover, ok := interface{}(ctl).(stepper.Mover); ok {
		rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/move"}] = Move(mover)
	}
	if pos, ok := interface{}(ctl).(stepper.Positioner); ok {
		rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/pos"}] = GetActualPosition(pos)
		rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/pos"}] = SetActualPosition(pos)
		rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/target-pos"}] = SetTargetPosition(pos)
	}
	if spd, ok := interface{}(ctl).(stepper.Speeder); ok {
		rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/velocity"}] = SetMaxVelocity(spd)
	}
	if res, ok := interface{}(ctl).(stepper.Resolutioner); ok {
		rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/resolution"}] = GetMicroStepRes(res)
		rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/resolution"}] = SetMicroStepRes(res)
	}
	if cv, ok := interface{}(ctl).(stepper.ConstantVelocityModer); ok {
		rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/constant-velocity"}] = EnableConstantVelocityMode(cv)
	}
	if q, ok := interface{}(ctl).(stepper.MotionQuerier); ok {
		rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/moving"}] = IsMoving(q)
	}
	h.RouteTable = rt
	return h
}

// RT satisfies the generichttp.HTTPer interface
func (h HTTPStepper) RT() generichttp.RouteTable {
	return h.RouteTable
}
