// Package util contains misc internal utilities.
package util

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// IntSliceToCSV convets a slice of ints to CSV formatted data.
// e.g., []int{1,2,3,4,5} => "1,2,3,4,5"
func IntSliceToCSV(is []int) string {
	s := make([]string, len(is))
	for i, v := range is {
		s[i] = strconv.Itoa(v)
	}

	return strings.Join(s, ",")
}

// GetBit returns the value of a given bit in a 32-bit register
func GetBit(v uint32, bitIndex uint) bool {
	return v&(1<<bitIndex) != 0
}

// SetBits replaces the width-bit field starting at lsb in v with field
func SetBits(v uint32, lsb, width uint, field uint32) uint32 {
	mask := uint32(1<<width-1) << lsb
	return (v &^ mask) | ((field << lsb) & mask)
}

// GetBits extracts the width-bit field starting at lsb from v
func GetBits(v uint32, lsb, width uint) uint32 {
	return (v >> lsb) & uint32(1<<width-1)
}

// TCPSetup opens a new TCP connection and sets a timeout on connect, read, and write
func TCPSetup(addr string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(timeout)
	conn.SetReadDeadline(deadline)
	conn.SetWriteDeadline(deadline)
	return conn, nil
}
