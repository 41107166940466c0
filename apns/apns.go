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

// Package apns is a client for version 2 of Apple's binary push protocol
// (over an encrypted TCP socket) and its feedback service.
//
// Bulk sending is optimized to eagerly check for error responses on a single
// goroutine. A non-blocking check runs after every batch write, and a final
// blocking check with a configurable timeout runs after the last one. This
// way no error is missed even when the gateway closes the socket right after
// reporting one, without a second goroutine reading concurrently.
//
// A send call always returns a Response associating any errors with the
// tokens that failed; only setup and validation failures surface as a
// returned error.
package apns

import (
	"crypto/tls"
	"fmt"
	"time"

	cache "github.com/uniqush/cache2"
	"github.com/uniqush/log"

	"github.com/pushfleet/pushfleet/push"
)

// expiredTokenCacheSize bounds the per-client memory spent remembering
// tokens the feedback service reported.
const expiredTokenCacheSize = 1024

// SendOptions overrides the config defaults for a single send call. The
// zero value of each field means "use the default".
type SendOptions struct {
	// Expiration is the absolute epoch time after which the gateway drops
	// undelivered notifications. Zero means now + ExpirationOffset.
	Expiration uint32

	// LowPriority sends with priority 5 instead of 10.
	LowPriority bool

	BatchSize        int
	ErrorTimeout     time.Duration
	MaxPayloadLength int
	Retries          int
}

// Client sends notifications through one gateway connection. A Client is
// not safe for concurrent sends; use one Client per in-flight bulk send.
type Client struct {
	config *Config
	logger log.Logger

	tlsConf *tls.Config
	conn    *conn

	// expired remembers tokens seen on the feedback stream so later sends
	// to them can be called out in the log.
	expired *cache.SimpleCache

	// newConn is replaced in tests.
	newConn func(addr string, conf *tls.Config, logger log.Logger) *conn
}

// NewClient builds a client for the given config. The certificate is loaded
// immediately so credential problems surface here rather than mid-send.
func NewClient(config *Config) (*Client, error) {
	logger := config.Logger
	if logger == nil {
		logger = push.NewLogger("[apns] ")
	}

	tlsConf, err := config.tlsConfig()
	if err != nil {
		return nil, err
	}

	return &Client{
		config:  config,
		logger:  logger,
		tlsConf: tlsConf,
		expired: cache.NewSimple(expiredTokenCacheSize),
		newConn: newConn,
	}, nil
}

// Close releases the gateway connection. The client remains usable; the
// next send reconnects.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// Send delivers payload to the given device tokens with default options and
// returns the per-token accounting. See SendWithOptions.
func (c *Client) Send(tokens []string, payload *Payload) (*Response, error) {
	return c.SendWithOptions(tokens, payload, nil)
}

// SendWithOptions delivers payload to the given device tokens.
//
// Validation and setup failures (invalid token format, oversized payload
// with no truncation policy, unusable certificate) return an error before
// any notification is attempted. Once sending starts, per-notification
// failures are collected into the Response instead of being raised, so a
// bulk send always returns a complete accounting.
func (c *Client) SendWithOptions(tokens []string, payload *Payload, opts *SendOptions) (*Response, error) {
	if opts == nil {
		opts = &SendOptions{}
	}
	if payload == nil {
		payload = &Payload{}
	}

	if err := validateTokens(tokens); err != nil {
		return nil, err
	}

	maxPayloadLength := opts.MaxPayloadLength
	if maxPayloadLength == 0 {
		maxPayloadLength = c.config.MaxPayloadLength
	}
	serialized, err := payload.Marshal(maxPayloadLength)
	if err != nil {
		return nil, err
	}

	expiration := opts.Expiration
	if expiration == 0 {
		expiration = uint32(time.Now().Unix()) + uint32(c.config.ExpirationOffset)
	}

	priority := HighPriority
	if opts.LowPriority {
		priority = LowPriority
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = c.config.BatchSize
	}
	errorTimeout := opts.ErrorTimeout
	if errorTimeout <= 0 {
		errorTimeout = c.config.ErrorTimeout
	}
	retries := opts.Retries
	if retries <= 0 {
		retries = c.config.Retries
	}

	for _, token := range tokens {
		if c.expired.Get(token) != nil {
			c.logger.Warnf("Sending to token %v which the feedback service reported expired", token)
		}
	}

	if c.conn == nil {
		c.conn = c.newConn(fmt.Sprintf("%v:%v", c.config.Host, c.config.Port), c.tlsConf, c.logger)
	}

	sender := &bulkSender{
		conn:         c.conn,
		logger:       c.logger,
		errorTimeout: errorTimeout,
		retries:      retries,
	}
	stream := newMessageStream(tokens, serialized, expiration, priority, batchSize)

	return sender.sendAll(stream), nil
}

// SendBulk is an alias of Send.
func (c *Client) SendBulk(tokens []string, payload *Payload) (*Response, error) {
	return c.Send(tokens, payload)
}

// GetExpiredTokens drains the feedback service and returns every device
// token it reports as no longer registered, with expiry timestamps. The
// feedback connection is opened and closed per call; the gateway sends its
// whole backlog and each record is reported only once by the service.
func (c *Client) GetExpiredTokens() ([]ExpiredToken, error) {
	c.logger.Debugf("Preparing to check for expired tokens")

	fc := c.newConn(fmt.Sprintf("%v:%v", c.config.FeedbackHost, c.config.FeedbackPort), c.feedbackTLSConfig(), c.logger)
	if err := fc.Connect(); err != nil {
		return nil, err
	}
	defer fc.Close()

	tokens, err := readFeedback(fc)
	if err != nil {
		return tokens, err
	}

	for _, expired := range tokens {
		c.expired.Set(expired.Token, expired.Timestamp)
	}

	c.logger.Debugf("Received %v expired tokens", len(tokens))
	return tokens, nil
}

// feedbackTLSConfig is the push handshake config with the server name of
// the feedback host.
func (c *Client) feedbackTLSConfig() *tls.Config {
	conf := c.tlsConf.Clone()
	conf.ServerName = c.config.FeedbackHost
	return conf
}
