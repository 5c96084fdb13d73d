package comm_test

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.jpl.nasa.gov/bdube/stepsh/comm"
)

// tcpEchoServer starts a loopback echo server and returns its address.
func tcpEchoServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("could not listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() { io.Copy(conn, conn) }()
		}
	}()
	return ln.Addr().String()
}

func TestTxnRoundTripsOverTCP(t *testing.T) {
	addr := tcpEchoServer(t)
	rd := comm.NewRemoteDevice(addr, false, nil)
	if err := rd.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rd.Close()

	send := []byte{0x05, 0x00, 0x21, 0x3F}
	reply, err := rd.Txn(send, len(send))
	if err != nil {
		t.Fatalf("txn: %v", err)
	}
	if !bytes.Equal(reply, send) {
		t.Errorf("expected echo %X got %X", send, reply)
	}
}

func TestTxnWriteOnlySkipsRead(t *testing.T) {
	addr := tcpEchoServer(t)
	rd := comm.NewRemoteDevice(addr, false, nil)
	if err := rd.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rd.Close()

	reply, err := rd.Txn([]byte{0xAA}, 0)
	if err != nil {
		t.Fatalf("txn: %v", err)
	}
	if reply != nil {
		t.Errorf("expected nil reply for write-only txn, got %X", reply)
	}
}

func TestTxnBeforeOpenErrors(t *testing.T) {
	rd := comm.NewRemoteDevice("127.0.0.1:1", false, nil)
	_, err := rd.Txn([]byte{1}, 1)
	if !errors.Is(err, comm.ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestSerialWithoutConfErrors(t *testing.T) {
	rd := comm.NewRemoteDevice("/dev/null", true, nil)
	err := rd.Open()
	if err == nil {
		t.Fatal("expected open of serial device without config to error")
	}
}

type fakeConn struct{ closed bool }

func (f *fakeConn) Read(p []byte) (int, error)  { return len(p), nil }
func (f *fakeConn) Write(p []byte) (int, error) { return len(p), nil }
func (f *fakeConn) Close() error                { f.closed = true; return nil }

func TestPoolReusesConnections(t *testing.T) {
	var made int32
	maker := func() (io.ReadWriteCloser, error) {
		atomic.AddInt32(&made, 1)
		return &fakeConn{}, nil
	}
	pool := comm.NewPool(1, time.Minute, maker)
	for i := 0; i < 3; i++ {
		c, err := pool.Get()
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		pool.Put(c)
	}
	if n := atomic.LoadInt32(&made); n != 1 {
		t.Errorf("expected 1 connection made, got %d", n)
	}
	if pool.Size() != 1 {
		t.Errorf("expected pool size 1, got %d", pool.Size())
	}
}

func TestPoolDestroyFreesSlot(t *testing.T) {
	maker := func() (io.ReadWriteCloser, error) { return &fakeConn{}, nil }
	pool := comm.NewPool(1, time.Minute, maker)
	c, err := pool.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	fc := c.(*fakeConn)
	pool.Destroy(c)
	if !fc.closed {
		t.Error("expected destroyed connection to be closed")
	}
	if pool.Active() != 0 {
		t.Errorf("expected 0 active after destroy, got %d", pool.Active())
	}
	// the freed slot must be usable again without blocking
	c2, err := pool.Get()
	if err != nil {
		t.Fatalf("get after destroy: %v", err)
	}
	pool.Put(c2)
}
