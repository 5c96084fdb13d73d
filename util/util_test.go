package util_test

import (
	"testing"

	"github.jpl.nasa.gov/bdube/stepsh/util"
)

func TestIntSliceToCSV(t *testing.T) {
	inp := []int{1, 2, 3}
	expected := "1,2,3"
	out := util.IntSliceToCSV(inp)
	if expected != out {
		t.Errorf("expected %s got %s", expected, out)
	}
}

func TestGetBit(t *testing.T) {
	var v uint32 = 1 << 9
	if !util.GetBit(v, 9) {
		t.Errorf("expected bit 9 of %032b to be set", v)
	}
	if util.GetBit(v, 8) {
		t.Errorf("expected bit 8 of %032b to be clear", v)
	}
}

func TestSetBitsReplacesField(t *testing.T) {
	// write a 4-bit field at bit 24 of a register with other bits set
	var v uint32 = 0xF00000FF
	out := util.SetBits(v, 24, 4, 0x8)
	if out != 0xF80000FF {
		t.Errorf("expected F80000FF got %08X", out)
	}
	if util.GetBits(out, 24, 4) != 0x8 {
		t.Errorf("expected field readback 8, got %d", util.GetBits(out, 24, 4))
	}
}

func TestGetBitsRoundTrip(t *testing.T) {
	var v uint32
	v = util.SetBits(v, 8, 4, 0xA)
	if got := util.GetBits(v, 8, 4); got != 0xA {
		t.Errorf("expected A got %X", got)
	}
}
