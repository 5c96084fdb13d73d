/*Package tmc implements a stepper driver for Trinamic TMC5160 motion
controllers attached over the single-wire UART interface, directly or
through a TCP serial bridge.

The controller is register-driven: motion commands are writes to the ramp
generator registers and state queries are register reads.  Datagrams are
fixed length with a CRC8 trailer; replies carry the register payload back
with the same framing.  Completion of a positioning move is detected by
polling RAMP_STAT for the position-reached flag; the polling is paced with a
rate limiter so repeated shell commands do not saturate the link.
*/
package tmc

import (
	"context"
	"encoding/binary"
	"io"
	"log"
	"math/bits"
	"time"

	"github.com/snksoft/crc"
	"github.com/tarm/serial"
	"golang.org/x/time/rate"

	"github.jpl.nasa.gov/bdube/stepsh/comm"
	"github.jpl.nasa.gov/bdube/stepsh/notify"
	"github.jpl.nasa.gov/bdube/stepsh/stepper"
	"github.jpl.nasa.gov/bdube/stepsh/util"
)

// crcTable implements the CRC8 used by TMC UART datagrams (poly x^8+x^2+x+1)
var crcTable = crc.NewTable(&crc.Parameters{
	Width:      8,
	Polynomial: 0x07,
	Init:       0,
	ReflectIn:  false,
	ReflectOut: false,
	FinalXor:   0})

// crcHelper computes the one-byte CRC for a datagram body in one line
func crcHelper(buf []byte) byte {
	crcUint := crcTable.InitCrc()
	crcUint = crcTable.UpdateCrc(crcUint, buf)
	return crcTable.CRC8(crcUint)
}

// packWrite builds an 8-byte register write datagram.
func packWrite(slave, register byte, value uint32) []byte {
	buf := make([]byte, writeLen)
	buf[0] = syncByte
	buf[1] = slave
	buf[2] = register | writeFlag
	binary.BigEndian.PutUint32(buf[3:7], value)
	buf[7] = crcHelper(buf[:7])
	return buf
}

// packRead builds a 4-byte register read request datagram.
func packRead(slave, register byte) []byte {
	buf := make([]byte, readLen)
	buf[0] = syncByte
	buf[1] = slave
	buf[2] = register
	buf[3] = crcHelper(buf[:3])
	return buf
}

// unpackReply validates framing and CRC of an 8-byte read reply and returns
// the register payload.
func unpackReply(buf []byte, register byte) (uint32, error) {
	if len(buf) != replyLen {
		return 0, stepper.CodeIO
	}
	if buf[0] != syncByte || buf[1] != masterAddr || buf[2] != register {
		return 0, stepper.CodeIO
	}
	if crcHelper(buf[:7]) != buf[7] {
		return 0, stepper.CodeIO
	}
	return binary.BigEndian.Uint32(buf[3:7]), nil
}

// makeSerConf makes a new serial.Config with correct parity, baud, etc, set.
func makeSerConf(addr string) *serial.Config {
	return &serial.Config{
		Name:        addr,
		Baud:        115200,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: 1 * time.Second}
}

// TMC5160 represents a TMC5160 stepper motor controller.
type TMC5160 struct {
	pool    *comm.Pool
	limiter *rate.Limiter
	slave   byte
	fclk    uint32
}

// New returns a TMC5160 at the given address.  isSerial selects a local
// serial port over a TCP serial bridge.
func New(addr string, isSerial bool) *TMC5160 {
	maker := func() (io.ReadWriteCloser, error) {
		rd := comm.NewRemoteDevice(addr, isSerial, makeSerConf(addr))
		err := rd.Open()
		if err != nil {
			return nil, err
		}
		return &rd, nil
	}
	return NewFromPool(comm.NewPool(1, 30*time.Second, maker))
}

// NewFromPool returns a TMC5160 communicating over an existing pool; the
// pool's connections must satisfy comm.Txner.
func NewFromPool(pool *comm.Pool) *TMC5160 {
	return &TMC5160{
		pool: pool,
		// 20 Hz status polling keeps the UART mostly free for commands
		limiter: rate.NewLimiter(20, 1),
		slave:   0,
		fclk:    defaultFclk,
	}
}

// txn runs one datagram exchange through the pool.
func (t *TMC5160) txn(send []byte, reply int) ([]byte, error) {
	c, err := t.pool.Get()
	if err != nil {
		return nil, err
	}
	txner, ok := c.(comm.Txner)
	if !ok {
		t.pool.Destroy(c)
		return nil, stepper.CodeIO
	}
	buf, err := txner.Txn(send, reply)
	if err != nil {
		t.pool.Destroy(c)
		return nil, err
	}
	t.pool.Put(c)
	return buf, nil
}

func (t *TMC5160) writeRegister(register byte, value uint32) error {
	_, err := t.txn(packWrite(t.slave, register, value), 0)
	return err
}

func (t *TMC5160) readRegister(register byte) (uint32, error) {
	buf, err := t.txn(packRead(t.slave, register), replyLen)
	if err != nil {
		return 0, err
	}
	return unpackReply(buf, register)
}

// rmw reads a register, applies f, and writes the result back.
func (t *TMC5160) rmw(register byte, f func(uint32) uint32) error {
	v, err := t.readRegister(register)
	if err != nil {
		return err
	}
	return t.writeRegister(register, f(v))
}

// Enable energizes or releases the driver stage by setting or clearing the
// chopper off-time.
func (t *TMC5160) Enable(on bool) error {
	field := uint32(0)
	if on {
		field = toffOn
	}
	return t.rmw(regChopConf, func(v uint32) uint32 {
		return util.SetBits(v, toffLSB, toffWidth, field)
	})
}

// Move moves the motor by steps micro-steps relative to the current
// position.  The call returns once the target is written; if done is
// non-nil it fires when the controller reports the position reached.
func (t *TMC5160) Move(steps int32, done *notify.Signal) error {
	pos, err := t.GetActualPosition()
	if err != nil {
		return err
	}
	return t.SetTargetPosition(pos+steps, done)
}

// SetTargetPosition commands an absolute positioning move.  Same
// asynchronous contract as Move.
func (t *TMC5160) SetTargetPosition(pos int32, done *notify.Signal) error {
	err := t.writeRegister(regRampMode, rampModePositioning)
	if err != nil {
		return err
	}
	err = t.writeRegister(regXTarget, uint32(pos))
	if err != nil {
		return err
	}
	t.watch(done)
	return nil
}

// SetActualPosition overwrites the controller's current position register.
func (t *TMC5160) SetActualPosition(pos int32) error {
	return t.writeRegister(regXActual, uint32(pos))
}

// GetActualPosition reads the current position in micro-steps.
func (t *TMC5160) GetActualPosition() (int32, error) {
	v, err := t.readRegister(regXActual)
	return int32(v), err
}

// SetMaxVelocity sets the ramp generator's velocity ceiling in micro-steps
// per second.
func (t *TMC5160) SetMaxVelocity(v uint32) error {
	return t.writeRegister(regVMax, velocityToFclk(v, t.fclk))
}

// SetMicroStepRes sets the micro-step resolution.
func (t *TMC5160) SetMicroStepRes(res stepper.MicroStepRes) error {
	// MRES is encoded as 8 - log2(resolution): 0 => 1/256, 8 => full step
	field := uint32(8 - bits.TrailingZeros32(uint32(res)))
	return t.rmw(regChopConf, func(v uint32) uint32 {
		return util.SetBits(v, mresLSB, mresWidth, field)
	})
}

// GetMicroStepRes reads the micro-step resolution.
func (t *TMC5160) GetMicroStepRes() (stepper.MicroStepRes, error) {
	v, err := t.readRegister(regChopConf)
	if err != nil {
		return 0, err
	}
	field := util.GetBits(v, mresLSB, mresWidth)
	if field > 8 {
		return 0, stepper.CodeIO
	}
	return stepper.MicroStepRes(1 << (8 - field)), nil
}

// EnableConstantVelocityMode free-runs the motor at the given velocity.
func (t *TMC5160) EnableConstantVelocityMode(dir stepper.Direction, v uint32) error {
	mode := uint32(rampModeVelocityNeg)
	if dir == stepper.Positive {
		mode = rampModeVelocityPos
	}
	err := t.writeRegister(regRampMode, mode)
	if err != nil {
		return err
	}
	return t.writeRegister(regVMax, velocityToFclk(v, t.fclk))
}

// IsMoving reports whether the ramp generator is producing steps.
func (t *TMC5160) IsMoving() (bool, error) {
	v, err := t.readRegister(regRampStat)
	if err != nil {
		return false, err
	}
	return !util.GetBit(v, bitVZero), nil
}

// watch polls RAMP_STAT until position-reached sets, then fires done.  A
// read failure abandons the watch; the motion itself is unaffected, only
// its completion report is lost.
func (t *TMC5160) watch(done *notify.Signal) {
	if done == nil {
		return
	}
	go func() {
		ctx := context.Background()
		for {
			if err := t.limiter.Wait(ctx); err != nil {
				return
			}
			v, err := t.readRegister(regRampStat)
			if err != nil {
				log.Printf("Warning: completion watch abandoned: %v; completion will not be reported", err)
				return
			}
			if util.GetBit(v, bitPositionReached) {
				done.Fire(notify.StepsCompleted)
				return
			}
		}
	}()
}
