package apns

import (
	"bytes"
	"crypto/tls"
	"errors"
	"io/ioutil"
	"net"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	cache "github.com/uniqush/cache2"
	"github.com/uniqush/log"

	"github.com/pushfleet/pushfleet/apns/mocks"
	"github.com/pushfleet/pushfleet/push"
)

// mockGateway hands out a fresh in-memory connection for every dial, so
// tests observe reconnects as additional entries in conns. prepare scripts
// each connection before the client sees it.
type mockGateway struct {
	mu      sync.Mutex
	conns   []*mocks.MockNetConn
	prepare func(index int, conn *mocks.MockNetConn)
}

func (g *mockGateway) dial(addr string, conf *tls.Config) (net.Conn, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	conn := mocks.NewMockNetConn()
	if g.prepare != nil {
		g.prepare(len(g.conns), conn)
	}
	g.conns = append(g.conns, conn)
	return conn, nil
}

func (g *mockGateway) dialCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

func newTestClient(gw *mockGateway, logger log.Logger) *Client {
	if logger == nil {
		logger = log.NewLogger(ioutil.Discard, "", log.LOGLEVEL_SILENT)
	}
	config := NewConfig("unused.pem")
	// Keep the final blocking check short; the mock gateway never answers
	// a successful send.
	config.ErrorTimeout = 20 * time.Millisecond
	config.Logger = logger

	return &Client{
		config:  config,
		logger:  logger,
		tlsConf: &tls.Config{},
		expired: cache.NewSimple(expiredTokenCacheSize),
		newConn: func(addr string, conf *tls.Config, l log.Logger) *conn {
			c := newConn(addr, conf, l)
			c.dial = gw.dial
			return c
		},
	}
}

func TestSendGoldenWire(t *testing.T) {
	gw := &mockGateway{}
	client := newTestClient(gw, nil)

	tokens := []string{strings.Repeat("1", 64)}
	payload := &Payload{
		Alert: "sample",
		Extra: map[string]interface{}{"foo": "bar"},
	}

	resp, err := client.SendWithOptions(tokens, payload, &SendOptions{Expiration: 30})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(resp.Errors) != 0 {
		t.Fatalf("Expected clean send, got errors %v", resp.Errors)
	}

	expected := []byte("\x02\x00\x00\x00\x5e\x01\x00\x20" +
		strings.Repeat("\x11", 32) +
		"\x02\x00\x26" +
		`{"aps":{"alert":"sample"},"foo":"bar"}` +
		"\x03\x00\x04\x00\x00\x00\x00" +
		"\x04\x00\x04\x00\x00\x00\x1e" +
		"\x05\x00\x01\x0a")
	if written := gw.conns[0].WrittenBytes(); !bytes.Equal(written, expected) {
		t.Errorf("Expected wire bytes %v, got %v", expected, written)
	}
}

func TestSendBulkClean(t *testing.T) {
	gw := &mockGateway{}
	client := newTestClient(gw, nil)
	tokens := testTokens(3)

	resp, err := client.SendBulk(tokens, NewPayload("hello"))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !reflect.DeepEqual(resp.Successes, tokens) {
		t.Errorf("Expected all tokens successful, got %v", resp.Successes)
	}

	notifs, err := gw.conns[0].ReadNotifications()
	if err != nil {
		t.Fatalf("Could not parse written frames: %v", err)
	}
	if len(notifs) != 3 {
		t.Fatalf("Expected 3 frames, got %v", len(notifs))
	}
	for i, notif := range notifs {
		if notif.Identifier != uint32(i) {
			t.Errorf("Expected identifier %v, got %v", i, notif.Identifier)
		}
		if notif.Priority != HighPriority {
			t.Errorf("Expected priority %v, got %v", HighPriority, notif.Priority)
		}
		if got := string(notif.Payload); got != `{"aps":{"alert":"hello"}}` {
			t.Errorf("Unexpected payload %v", got)
		}
	}
}

func TestSendLowPriority(t *testing.T) {
	gw := &mockGateway{}
	client := newTestClient(gw, nil)

	_, err := client.SendWithOptions(testTokens(1), NewPayload("quiet"), &SendOptions{LowPriority: true})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	notifs, err := gw.conns[0].ReadNotifications()
	if err != nil || len(notifs) != 1 {
		t.Fatalf("Expected 1 frame, got %v (err %v)", len(notifs), err)
	}
	if notifs[0].Priority != LowPriority {
		t.Errorf("Expected priority %v, got %v", LowPriority, notifs[0].Priority)
	}
}

// TestSendResumesAfterError scripts a non-fatal error response for the
// second of five notifications. Sending must resume with the third on a
// fresh connection and report exactly one failure.
func TestSendResumesAfterError(t *testing.T) {
	gw := &mockGateway{
		prepare: func(index int, conn *mocks.MockNetConn) {
			if index == 0 {
				conn.QueueErrorResponse(8, 8, 1) // 8: invalid token
			}
		},
	}
	client := newTestClient(gw, nil)
	tokens := testTokens(5)

	resp, err := client.Send(tokens, NewPayload("hello"))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if expected := []string{tokens[1]}; !reflect.DeepEqual(resp.Failures, expected) {
		t.Errorf("Expected failures %v, got %v", expected, resp.Failures)
	}
	expected := []string{tokens[0], tokens[2], tokens[3], tokens[4]}
	if !reflect.DeepEqual(resp.Successes, expected) {
		t.Errorf("Expected successes %v, got %v", expected, resp.Successes)
	}

	serr, ok := resp.TokenErrors[tokens[1]].(*ServerError)
	if !ok {
		t.Fatalf("Expected ServerError for token 1, got %v", resp.TokenErrors[tokens[1]])
	}
	if serr.Code != 8 || serr.Description() != "Invalid token" || serr.Fatal() {
		t.Errorf("Unexpected server error %+v", serr)
	}

	// The error killed the first connection; the resume dials a second one
	// and replays identifiers 2..4 on it.
	if gw.dialCount() != 2 {
		t.Fatalf("Expected 2 connections, got %v", gw.dialCount())
	}
	notifs, err := gw.conns[1].ReadNotifications()
	if err != nil {
		t.Fatalf("Could not parse resumed frames: %v", err)
	}
	var ids []uint32
	for _, notif := range notifs {
		ids = append(ids, notif.Identifier)
	}
	if expected := []uint32{2, 3, 4}; !reflect.DeepEqual(ids, expected) {
		t.Errorf("Expected resumed identifiers %v, got %v", expected, ids)
	}
}

// TestSendFatalError scripts a fatal error response. Everything at or after
// the failed notification must be reported failed without another attempt.
func TestSendFatalError(t *testing.T) {
	gw := &mockGateway{
		prepare: func(index int, conn *mocks.MockNetConn) {
			if index == 0 {
				conn.QueueErrorResponse(8, 10, 3) // 10: shutdown
			}
		},
	}
	client := newTestClient(gw, nil)
	tokens := testTokens(10)

	resp, err := client.Send(tokens, NewPayload("hello"))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if !reflect.DeepEqual(resp.Successes, tokens[:3]) {
		t.Errorf("Expected successes %v, got %v", tokens[:3], resp.Successes)
	}
	if !reflect.DeepEqual(resp.Failures, tokens[3:]) {
		t.Errorf("Expected failures %v, got %v", tokens[3:], resp.Failures)
	}
	if len(resp.Errors) != 7 {
		t.Fatalf("Expected 7 errors, got %v", len(resp.Errors))
	}
	if _, ok := resp.Errors[0].(*ServerError); !ok {
		t.Errorf("Expected leading ServerError, got %v", resp.Errors[0])
	}
	for i, err := range resp.Errors[1:] {
		uerr, ok := err.(*UnsendableError)
		if !ok {
			t.Fatalf("Expected UnsendableError, got %v", err)
		}
		if expected := uint32(4 + i); uerr.Identifier != expected {
			t.Errorf("Expected unsendable identifier %v, got %v", expected, uerr.Identifier)
		}
	}

	// A fatal error aborts the stream; no resume connection is dialed.
	if gw.dialCount() != 1 {
		t.Errorf("Expected a single connection, got %v", gw.dialCount())
	}
}

// TestSendWriteRetriesExhausted fails every write on every connection. The
// notification in flight is reported timed out; the rest stay successful
// because they were never attempted nor poisoned.
func TestSendWriteRetriesExhausted(t *testing.T) {
	gw := &mockGateway{
		prepare: func(index int, conn *mocks.MockNetConn) {
			conn.FailWrites(1, errors.New("broken pipe"))
		},
	}
	client := newTestClient(gw, nil)
	tokens := testTokens(3)

	resp, err := client.SendWithOptions(tokens, NewPayload("hello"), &SendOptions{Retries: 3})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if expected := []string{tokens[0]}; !reflect.DeepEqual(resp.Failures, expected) {
		t.Errorf("Expected failures %v, got %v", expected, resp.Failures)
	}
	if len(resp.Errors) != 1 {
		t.Fatalf("Expected 1 error, got %v", resp.Errors)
	}
	terr, ok := resp.Errors[0].(*TimeoutError)
	if !ok {
		t.Fatalf("Expected TimeoutError, got %v", resp.Errors[0])
	}
	if terr.Identifier != 0 {
		t.Errorf("Expected timeout for identifier 0, got %v", terr.Identifier)
	}
	if gw.dialCount() != 3 {
		t.Errorf("Expected 3 connection attempts, got %v", gw.dialCount())
	}
}

func TestSendRecoversFromOneFailedWrite(t *testing.T) {
	gw := &mockGateway{
		prepare: func(index int, conn *mocks.MockNetConn) {
			if index == 0 {
				conn.FailWrites(1, errors.New("broken pipe"))
			}
		},
	}
	client := newTestClient(gw, nil)
	tokens := testTokens(2)

	resp, err := client.Send(tokens, NewPayload("hello"))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !reflect.DeepEqual(resp.Successes, tokens) {
		t.Errorf("Expected all tokens successful after retry, got %v", resp.Successes)
	}
	if gw.dialCount() != 2 {
		t.Errorf("Expected retry on a fresh connection, got %v dials", gw.dialCount())
	}
}

func TestSendRejectsInvalidTokens(t *testing.T) {
	gw := &mockGateway{}
	client := newTestClient(gw, nil)

	_, err := client.Send([]string{"not-a-token"}, NewPayload("hello"))
	terr, ok := err.(*push.InvalidTokenError)
	if !ok {
		t.Fatalf("Expected InvalidTokenError, got %v", err)
	}
	if !reflect.DeepEqual(terr.Tokens, []string{"not-a-token"}) {
		t.Errorf("Expected offending token named, got %v", terr.Tokens)
	}
	if gw.dialCount() != 0 {
		t.Errorf("Validation failure must not dial, got %v dials", gw.dialCount())
	}
}

func TestGetExpiredTokens(t *testing.T) {
	tokenA := bytes.Repeat([]byte{0xab}, DeviceTokenLength)
	tokenB := bytes.Repeat([]byte{0xcd}, DeviceTokenLength)

	gw := &mockGateway{
		prepare: func(index int, conn *mocks.MockNetConn) {
			conn.QueueFeedbackRecord(1404358249, tokenA)
			conn.QueueFeedbackRecord(1404358250, tokenB)
			conn.CloseServer()
		},
	}
	client := newTestClient(gw, nil)

	expired, err := client.GetExpiredTokens()
	if err != nil {
		t.Fatalf("GetExpiredTokens failed: %v", err)
	}
	expected := []ExpiredToken{
		{Token: strings.Repeat("ab", DeviceTokenLength), Timestamp: 1404358249},
		{Token: strings.Repeat("cd", DeviceTokenLength), Timestamp: 1404358250},
	}
	if !reflect.DeepEqual(expired, expected) {
		t.Errorf("Expected expired tokens %v, got %v", expected, expired)
	}

	for _, e := range expected {
		if client.expired.Get(e.Token) == nil {
			t.Errorf("Expected token %v remembered as expired", e.Token)
		}
	}
}

func TestGetExpiredTokensEmpty(t *testing.T) {
	gw := &mockGateway{
		prepare: func(index int, conn *mocks.MockNetConn) {
			conn.CloseServer()
		},
	}
	client := newTestClient(gw, nil)

	expired, err := client.GetExpiredTokens()
	if err != nil {
		t.Fatalf("GetExpiredTokens failed: %v", err)
	}
	if len(expired) != 0 {
		t.Errorf("Expected no expired tokens, got %v", expired)
	}
}

func TestSendWarnsAboutExpiredToken(t *testing.T) {
	token := bytes.Repeat([]byte{0xef}, DeviceTokenLength)
	gw := &mockGateway{
		prepare: func(index int, conn *mocks.MockNetConn) {
			if index == 0 {
				conn.QueueFeedbackRecord(1404358249, token)
			}
			conn.CloseServer()
		},
	}

	var logged bytes.Buffer
	client := newTestClient(gw, log.NewLogger(&logged, "", log.LOGLEVEL_WARN))

	if _, err := client.GetExpiredTokens(); err != nil {
		t.Fatalf("GetExpiredTokens failed: %v", err)
	}
	if _, err := client.Send([]string{strings.Repeat("ef", DeviceTokenLength)}, NewPayload("hi")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if !strings.Contains(logged.String(), "expired") {
		t.Errorf("Expected a warning about the expired token, log was %q", logged.String())
	}
}
