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

// Package gcm is a client for Google's GCM/FCM HTTP protocol.
//
// Sending is optimized to address the maximum number of allowed recipients
// per request (1000). Each request is atomic: partial failures within a
// chunk are reported in the Response, never retried here. The structure
// mirrors the apns package with a much simpler transport, since HTTP gives
// synchronous, per-request results.
package gcm

import (
	"bytes"
	"crypto/tls"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/uniqush/log"

	"github.com/pushfleet/pushfleet/push"
)

// HTTPClient is a mockable interface for the parts of http.Client used by
// this package.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

var _ HTTPClient = &http.Client{}

// Client sends notifications through the GCM HTTP endpoint. Chunks are
// dispatched sequentially so aggregated results keep the recipient order
// deterministic.
type Client struct {
	config *Config
	logger log.Logger
	client HTTPClient
}

// NewClient builds a client for the given config. The API key is required;
// its absence surfaces here rather than mid-send.
func NewClient(config *Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, push.NewAuthError("missing API key")
	}

	logger := config.Logger
	if logger == nil {
		logger = push.NewLogger("[gcm] ")
	}

	tr := &http.Transport{
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: false},
		TLSHandshakeTimeout: time.Second * 5,
		MaxIdleConnsPerHost: 500,
	}
	return &Client{
		config: config,
		logger: logger,
		client: &http.Client{
			Transport: tr,
			Timeout:   time.Second * 10,
		},
	}, nil
}

// OverrideClient replaces the HTTP client. Used by tests.
func (c *Client) OverrideClient(client HTTPClient) {
	c.client = client
}

// Send delivers message to the given registration IDs, issuing one POST per
// chunk of at most MaxRecipients and aggregating every result. Transport
// failures mark the affected chunk's recipients failed rather than aborting
// the remaining chunks, so a bulk send always returns a complete accounting.
func (c *Client) Send(registrationIDs []string, message *Message) (*Response, error) {
	if message == nil {
		message = &Message{}
	}

	stream := newMessageStream(registrationIDs, message, c.config.MaxRecipients)
	c.logger.Debugf("Preparing to send %v notifications", stream.Len())

	response := &Response{}
	for !stream.EOF() {
		ids, body, err := stream.NextChunk()
		if err != nil {
			return nil, err
		}

		status, respBody, err := c.post(body)
		if err != nil {
			c.logger.Errorf("Could not send chunk of %v notifications: %v", len(ids), err)
			response.RegistrationIDs = append(response.RegistrationIDs, ids...)
			for _, id := range ids {
				response.Failures = append(response.Failures, id)
				response.Errors = append(response.Errors, push.NewConnectionError(c.config.URL, err))
			}
			continue
		}

		response.addChunk(ids, status, respBody, c.logger)
	}

	c.logger.Debugf("Sent %v notifications", stream.Len())
	if len(response.Failures) > 0 {
		c.logger.Debugf("Encountered %v errors while sending", len(response.Failures))
	}
	return response, nil
}

// post issues one send request and returns the status code and body.
func (c *Client) post(body []byte) (int, []byte, error) {
	req, err := http.NewRequest("POST", c.config.URL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "key="+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debugf("Sending notification batch containing %v bytes", len(body))

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}
