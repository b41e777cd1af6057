package transport

import (
	"bufio"
	"errors"
	"net"
	"time"

	"github.com/mcdev12/pathduel/go/internal/wire"
)

// tcpCarrier reads length-prefixed frames straight off a TCP stream.
type tcpCarrier struct {
	nc           net.Conn
	br           *bufio.Reader
	framer       *wire.Framer
	pollInterval time.Duration
	writeTimeout time.Duration
}

func newTCPCarrier(nc net.Conn, framer *wire.Framer, cfg Config) *tcpCarrier {
	return &tcpCarrier{
		nc:           nc,
		br:           bufio.NewReader(nc),
		framer:       framer,
		pollInterval: cfg.PollInterval,
		writeTimeout: cfg.WriteTimeout,
	}
}

// readFrame waits for the first byte of a frame in PollInterval slices so a
// stop request is noticed without the socket being closed.
func (c *tcpCarrier) readFrame(stop <-chan struct{}) ([]byte, error) {
	for {
		select {
		case <-stop:
			return nil, errStopped
		default:
		}

		if err := c.nc.SetReadDeadline(time.Now().Add(c.pollInterval)); err != nil {
			return nil, err
		}
		_, err := c.br.Peek(1)
		if err == nil {
			break
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			continue
		}
		return nil, err
	}

	// The rest of the frame is already on its way.
	if err := c.nc.SetReadDeadline(time.Time{}); err != nil {
		return nil, err
	}
	return c.framer.ReadFrame(c.br)
}

func (c *tcpCarrier) writeFrame(frame []byte) error {
	if err := c.nc.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return wire.WriteFrame(c.nc, frame)
}

func (c *tcpCarrier) remoteAddr() string {
	return c.nc.RemoteAddr().String()
}

func (c *tcpCarrier) close() error {
	return c.nc.Close()
}
