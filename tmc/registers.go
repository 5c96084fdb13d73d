package tmc

// Register addresses for the TMC5160 motion controller.
const (
	regGCONF     = 0x00
	regGSTAT     = 0x01
	regIFCNT     = 0x02
	regIOIN      = 0x04
	regRampMode  = 0x20
	regXActual   = 0x21
	regVActual   = 0x22
	regVStart    = 0x23
	regAMax      = 0x26
	regVMax      = 0x27
	regDMax      = 0x28
	regXTarget   = 0x2D
	regRampStat  = 0x35
	regChopConf  = 0x6C
	regDrvStatus = 0x6F
)

// Ramp mode values.
const (
	rampModePositioning = 0
	rampModeVelocityPos = 1
	rampModeVelocityNeg = 2
)

// RAMP_STAT bits of interest.
const (
	bitPositionReached = 9
	bitVZero           = 10
)

// CHOPCONF fields.
const (
	toffLSB   = 0
	toffWidth = 4
	toffOn    = 3 // recommended default slow-decay time

	mresLSB   = 24
	mresWidth = 4
)

// UART datagram framing.
const (
	syncByte   = 0x05
	masterAddr = 0xFF
	writeFlag  = 0x80

	writeLen = 8
	readLen  = 4
	replyLen = 8
)

// clockFreqShift converts velocities between Hz and the controller's
// 2^24/fclk internal representation.
const clockFreqShift = 24

// defaultFclk is the internal clock frequency in Hz.
const defaultFclk = 12000000

// velocityToFclk converts a velocity in micro-steps per second to internal
// clock units: v_internal = v_hz * 2^24 / fclk.
func velocityToFclk(hz, fclk uint32) uint32 {
	return uint32((uint64(hz) << clockFreqShift) / uint64(fclk))
}
