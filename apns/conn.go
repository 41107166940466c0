/*
 * Copyright 2016 The pushfleet authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package apns

// This file owns the TLS socket to one gateway endpoint. A conn belongs to a
// single bulk send (or feedback read) at a time; concurrent sends must use
// separate conns.

import (
	"crypto/tls"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net"
	"strings"
	"time"

	"github.com/uniqush/log"
	"golang.org/x/crypto/pkcs12"

	"github.com/pushfleet/pushfleet/push"
)

const (
	dialTimeout      = 30 * time.Second
	handshakeTimeout = 30 * time.Second
	readTimeout      = 10 * time.Second
	writeTimeout     = 10 * time.Second

	// errorPollWindow is the readability window used for the eager,
	// "zero timeout" error check performed after every batch write.
	errorPollWindow = 5 * time.Millisecond
)

var errNotConnected = errors.New("not connected")

// loadCertificate reads the client certificate presented to the gateway.
// PEM files must carry both the certificate and the key; .p12/.pfx bundles
// are decrypted with password.
func loadCertificate(filename, password string) (tls.Certificate, error) {
	data, err := ioutil.ReadFile(filename)
	if err != nil {
		return tls.Certificate{}, push.NewAuthErrorf("the certificate at %v is not readable: %v", filename, err)
	}

	if strings.HasSuffix(filename, ".p12") || strings.HasSuffix(filename, ".pfx") {
		key, x509Cert, err := pkcs12.Decode(data, password)
		if err != nil {
			return tls.Certificate{}, push.NewAuthErrorf("could not decode PKCS#12 certificate at %v: %v", filename, err)
		}
		return tls.Certificate{
			Certificate: [][]byte{x509Cert.Raw},
			PrivateKey:  key,
			Leaf:        x509Cert,
		}, nil
	}

	cert, err := tls.X509KeyPair(data, data)
	if err != nil {
		return tls.Certificate{}, push.NewAuthErrorf("could not load certificate at %v: %v", filename, err)
	}
	return cert, nil
}

// tlsConfig builds the handshake config for the given gateway host.
func (c *Config) tlsConfig() (*tls.Config, error) {
	cert, err := loadCertificate(c.Certificate, c.CertificatePassword)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates:       []tls.Certificate{cert},
		ServerName:         c.Host,
		InsecureSkipVerify: c.SkipVerify,
	}, nil
}

// dialTLS establishes the transport with an explicitly bounded handshake, so
// a stalled gateway cannot block a send call indefinitely before the first
// byte is written.
func dialTLS(addr string, conf *tls.Config) (net.Conn, error) {
	sock, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, err
	}
	tlsconn := tls.Client(sock, conf)
	tlsconn.SetDeadline(time.Now().Add(handshakeTimeout))
	if err := tlsconn.Handshake(); err != nil {
		tlsconn.Close()
		if err.Error() == "EOF" {
			err = fmt.Errorf("certificate is probably invalid/expired: %v", err)
		}
		return nil, err
	}
	tlsconn.SetDeadline(time.Time{})
	return tlsconn, nil
}

// conn is a persistent connection to one gateway endpoint.
type conn struct {
	addr   string
	conf   *tls.Config
	logger log.Logger

	// dial is replaced in tests to use an in-memory transport.
	dial func(addr string, conf *tls.Config) (net.Conn, error)

	sock net.Conn
}

func newConn(addr string, conf *tls.Config, logger log.Logger) *conn {
	return &conn{
		addr:   addr,
		conf:   conf,
		logger: logger,
		dial:   dialTLS,
	}
}

// Connect establishes the transport if not already connected. It is
// idempotent; a live socket is reused.
func (self *conn) Connect() error {
	if self.sock != nil {
		return nil
	}

	self.logger.Debugf("Establishing connection to %v", self.addr)
	sock, err := self.dial(self.addr, self.conf)
	if err != nil {
		return push.NewConnectionError(self.addr, err)
	}
	self.sock = sock
	self.logger.Debugf("Established connection to %v", self.addr)
	return nil
}

// Connected reports whether the transport is currently established.
func (self *conn) Connected() bool {
	return self.sock != nil
}

// Close releases the transport. Safe to call when already closed.
func (self *conn) Close() {
	if self.sock != nil {
		self.logger.Debugf("Closing connection to %v", self.addr)
		self.sock.Close()
		self.sock = nil
	}
}

// Read fills buf, blocking up to timeout. Returns io.EOF with n == 0 when
// the peer closed before any byte, io.ErrUnexpectedEOF on a short read.
func (self *conn) Read(buf []byte, timeout time.Duration) (int, error) {
	if self.sock == nil {
		return 0, push.NewConnectionError(self.addr, errNotConnected)
	}
	self.sock.SetReadDeadline(time.Now().Add(timeout))
	return io.ReadFull(self.sock, buf)
}

// Write writes all of data, bounded by timeout. On failure the connection is
// closed; the caller decides whether to reconnect and retry.
func (self *conn) Write(data []byte, timeout time.Duration) error {
	if self.sock == nil {
		return push.NewConnectionError(self.addr, errNotConnected)
	}
	self.sock.SetWriteDeadline(time.Now().Add(timeout))
	if _, err := self.sock.Write(data); err != nil {
		self.Close()
		return push.NewConnectionError(self.addr, err)
	}
	return nil
}

// CheckError polls for an error response. If nothing arrives within timeout
// the check passes; the protocol sends nothing on success, so silence is the
// expected outcome. A zero timeout degrades to a minimal poll window.
//
// When a response is present, the connection is closed (the gateway always
// closes after reporting an error) and the decoded ServerError is returned.
func (self *conn) CheckError(timeout time.Duration) error {
	if self.sock == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = errorPollWindow
	}

	var buf [errorResponseLength]byte
	self.sock.SetReadDeadline(time.Now().Add(timeout))
	if _, err := self.sock.Read(buf[:1]); err != nil {
		if isTimeout(err) {
			// No error response.
			return nil
		}
		self.logger.Debugf("Connection closed by peer while checking for errors: %v", err)
		self.Close()
		return nil
	}

	// The rest of the 6-byte response is already in flight.
	self.sock.SetReadDeadline(time.Now().Add(readTimeout))
	if _, err := io.ReadFull(self.sock, buf[1:]); err != nil {
		self.logger.Errorf("Could not read error response: %v", err)
		self.Close()
		return nil
	}

	if buf[0] != errorResponseCommand {
		self.logger.Errorf("Unexpected command byte %v in error response", buf[0])
		self.Close()
		return nil
	}

	status := buf[1]
	identifier := binary.BigEndian.Uint32(buf[2:6])

	self.logger.Debugf("Received error response with code=%v for identifier=%v", status, identifier)

	self.Close()
	return NewServerError(status, identifier)
}

func isTimeout(err error) bool {
	nerr, ok := err.(net.Error)
	return ok && nerr.Timeout()
}
