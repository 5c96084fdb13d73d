/*Package comm provides transport plumbing for stepper motor controllers.

Most controllers speak fixed-length binary datagrams over RS232/RS485 or a
TCP serial bridge; there is no terminator byte to split on, so the exchange
primitive here is a transaction: write a request, then read an exact number
of reply bytes.  A minimal usage looks like:

	rd := comm.NewRemoteDevice("/dev/ttyACM0", true, makeSerConf("/dev/ttyACM0"))
	err := rd.Open()
	if err != nil {
		return err
	}
	defer rd.Close()
	reply, err := rd.Txn(request, 8)

Drivers that interleave access from multiple front ends (shell and HTTP)
should hold connections in a Pool rather than a bare RemoteDevice.
*/
package comm

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"

	"github.jpl.nasa.gov/bdube/stepsh/util"
)

var (
	// ErrNoSerialConf is generated when a serial RemoteDevice is created
	// without a serial configuration
	ErrNoSerialConf = errors.New("device is serial but no serial config given")

	// ErrNotConnected is generated when Txn is called before Open
	ErrNotConnected = errors.New("conn is nil, not connected to remote")
)

// Txner exchanges one request for a fixed-length reply.
type Txner interface {
	Txn(send []byte, replyLen int) ([]byte, error)
}

// RemoteDevice is a connection to a motor controller over a serial port or
// a TCP serial bridge.
type RemoteDevice struct {
	Addr     string
	IsSerial bool
	Conn     io.ReadWriteCloser

	serCfg *serial.Config
}

// NewRemoteDevice creates a new RemoteDevice instance.  serCfg may be nil
// for TCP devices.
func NewRemoteDevice(addr string, isSerial bool, serCfg *serial.Config) RemoteDevice {
	return RemoteDevice{Addr: addr, IsSerial: isSerial, serCfg: serCfg}
}

// Open the connection, setting the Conn variable.  Retries with exponential
// backoff; serial bridges drop connections that are thrashed.
func (rd *RemoteDevice) Open() error {
	wasTimeout := false
	op := func() error {
		err := rd.open()
		if err != nil {
			errS := strings.ToLower(err.Error())
			if strings.Contains(errS, "refused") {
				return err
			}
			wasTimeout = true
			return nil
		}
		return nil
	}

	// backoff ceases on a timeout so we don't wait forever; check
	// wasTimeout separately
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock})
	if err == nil && !wasTimeout {
		return nil
	}
	if wasTimeout {
		return fmt.Errorf("connection timeout to %s", rd.Addr)
	}
	return err
}

func (rd *RemoteDevice) open() error {
	var (
		conn io.ReadWriteCloser
		err  error
	)
	if rd.IsSerial {
		if rd.serCfg == nil {
			return ErrNoSerialConf
		}
		conn, err = serial.OpenPort(rd.serCfg)
	} else {
		conn, err = util.TCPSetup(rd.Addr, 3*time.Second)
	}
	if err != nil {
		return err
	}
	rd.Conn = conn
	return nil
}

// Close the connection, nil-ing the Conn variable
func (rd *RemoteDevice) Close() error {
	if rd.Conn == nil {
		return nil
	}
	err := rd.Conn.Close()
	if err == nil {
		rd.Conn = nil
	}
	return err
}

// Read reads from the open connection, satisfying io.Reader so a
// RemoteDevice can live in a Pool.
func (rd *RemoteDevice) Read(p []byte) (int, error) {
	if rd.Conn == nil {
		return 0, ErrNotConnected
	}
	return rd.Conn.Read(p)
}

// Write writes to the open connection, satisfying io.Writer.
func (rd *RemoteDevice) Write(p []byte) (int, error) {
	if rd.Conn == nil {
		return 0, ErrNotConnected
	}
	return rd.Conn.Write(p)
}

// Txn writes send to the remote and reads back exactly replyLen bytes.
// replyLen of zero skips the read, for write-only datagrams.
func (rd *RemoteDevice) Txn(send []byte, replyLen int) ([]byte, error) {
	if rd.Conn == nil {
		return nil, ErrNotConnected
	}
	_, err := rd.Conn.Write(send)
	if err != nil {
		return nil, err
	}
	if replyLen == 0 {
		return nil, nil
	}
	buf := make([]byte, replyLen)
	_, err = io.ReadFull(rd.Conn, buf)
	if err != nil {
		return nil, err
	}
	return buf, nil
}
