// Package mocks implements a mock APNS gateway for unit tests. Instead of a
// TLS socket, the mock connection buffers bytes in memory, honors read
// deadlines, and lets tests script error responses, feedback records, and
// write failures.
package mocks

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// Notification is one binary frame parsed from the bytes the tested code
// wrote to the gateway.
type Notification struct {
	Command     uint8
	Identifier  uint32
	Expiry      uint32
	Priority    uint8
	DeviceToken []byte
	Payload     []byte
}

func (n *Notification) String() string {
	token := strings.ToLower(hex.EncodeToString(n.DeviceToken))
	return fmt.Sprintf("command=%v; id=%v; expiry=%v; priority=%v; token=%v; payload=%v",
		n.Command, n.Identifier, n.Expiry, n.Priority, token, string(n.Payload))
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

// MockNetConn is an in-memory net.Conn. Reads block until the mock gateway
// queues data, the gateway side closes, or the read deadline passes.
type MockNetConn struct {
	mu sync.Mutex

	readBuf  bytes.Buffer // gateway -> client
	writeBuf bytes.Buffer // client -> gateway

	readDeadline time.Time
	clientClosed bool
	serverClosed bool

	failWrites    int
	failWriteWith error
}

var _ net.Conn = &MockNetConn{}

func NewMockNetConn() *MockNetConn {
	return &MockNetConn{}
}

func (c *MockNetConn) Read(b []byte) (int, error) {
	for {
		c.mu.Lock()
		if c.readBuf.Len() > 0 {
			n, _ := c.readBuf.Read(b)
			c.mu.Unlock()
			return n, nil
		}
		if c.clientClosed || c.serverClosed {
			c.mu.Unlock()
			return 0, io.EOF
		}
		deadline := c.readDeadline
		c.mu.Unlock()

		if !deadline.IsZero() && time.Now().After(deadline) {
			return 0, timeoutError{}
		}
		time.Sleep(time.Millisecond)
	}
}

func (c *MockNetConn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clientClosed {
		return 0, errors.New("use of closed connection")
	}
	if c.failWrites > 0 {
		c.failWrites--
		return 0, c.failWriteWith
	}
	return c.writeBuf.Write(b)
}

func (c *MockNetConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clientClosed = true
	return nil
}

func (c *MockNetConn) LocalAddr() net.Addr  { return nil }
func (c *MockNetConn) RemoteAddr() net.Addr { return nil }

func (c *MockNetConn) SetDeadline(t time.Time) error {
	return c.SetReadDeadline(t)
}

func (c *MockNetConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readDeadline = t
	return nil
}

func (c *MockNetConn) SetWriteDeadline(t time.Time) error {
	return nil
}

// QueueData makes raw bytes available to the next client read.
func (c *MockNetConn) QueueData(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readBuf.Write(data)
}

// QueueErrorResponse scripts a 6-byte error response for the given status
// code and notification identifier.
func (c *MockNetConn) QueueErrorResponse(command uint8, status uint8, identifier uint32) {
	buf := new(bytes.Buffer)
	buf.WriteByte(command)
	buf.WriteByte(status)
	binary.Write(buf, binary.BigEndian, identifier)
	c.QueueData(buf.Bytes())
}

// QueueFeedbackRecord scripts one feedback service record.
func (c *MockNetConn) QueueFeedbackRecord(timestamp uint32, token []byte) {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, timestamp)
	binary.Write(buf, binary.BigEndian, uint16(len(token)))
	buf.Write(token)
	c.QueueData(buf.Bytes())
}

// CloseServer simulates the gateway closing its end; client reads observe
// EOF once the buffered data is drained.
func (c *MockNetConn) CloseServer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serverClosed = true
}

// FailWrites makes the next n client writes fail with err.
func (c *MockNetConn) FailWrites(n int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failWrites = n
	c.failWriteWith = err
}

// WrittenBytes returns everything the client has written so far.
func (c *MockNetConn) WrittenBytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, c.writeBuf.Len())
	copy(out, c.writeBuf.Bytes())
	return out
}

// ReadNotifications parses every buffered v2 frame the client wrote.
func (c *MockNetConn) ReadNotifications() ([]*Notification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var notifs []*Notification
	reader := bytes.NewReader(c.writeBuf.Bytes())
	for reader.Len() > 0 {
		notif, err := readNotification(reader)
		if err != nil {
			return notifs, err
		}
		notifs = append(notifs, notif)
	}
	return notifs, nil
}

func readNotification(reader io.Reader) (*Notification, error) {
	notif := new(Notification)
	if err := binary.Read(reader, binary.BigEndian, &notif.Command); err != nil {
		return nil, err
	}
	if notif.Command != 2 {
		return nil, fmt.Errorf("expected push command 2, got %v", notif.Command)
	}

	var frameLen uint32
	if err := binary.Read(reader, binary.BigEndian, &frameLen); err != nil {
		return nil, err
	}

	frame := make([]byte, frameLen)
	if _, err := io.ReadFull(reader, frame); err != nil {
		return nil, err
	}

	items := bytes.NewReader(frame)
	for items.Len() > 0 {
		var itemID uint8
		var itemLen uint16
		if err := binary.Read(items, binary.BigEndian, &itemID); err != nil {
			return nil, err
		}
		if err := binary.Read(items, binary.BigEndian, &itemLen); err != nil {
			return nil, err
		}
		data := make([]byte, itemLen)
		if _, err := io.ReadFull(items, data); err != nil {
			return nil, err
		}

		switch itemID {
		case 1:
			notif.DeviceToken = data
		case 2:
			notif.Payload = data
		case 3:
			notif.Identifier = binary.BigEndian.Uint32(data)
		case 4:
			notif.Expiry = binary.BigEndian.Uint32(data)
		case 5:
			notif.Priority = data[0]
		default:
			return nil, fmt.Errorf("unknown frame item id %v", itemID)
		}
	}
	return notif, nil
}
