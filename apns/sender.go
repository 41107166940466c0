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

// This file drives the connection and the message stream together. Error
// checking is eager: the gateway reports failures asynchronously and may
// close the socket shortly after, so a check is performed after every batch
// write rather than once at the end. The final check blocks with a larger
// timeout because after the last write there is nothing left to trigger
// another check.

import (
	"time"

	"github.com/uniqush/log"
)

type bulkSender struct {
	conn         *conn
	logger       log.Logger
	errorTimeout time.Duration
	retries      int
}

// sendResult tags the outcome of one sending pass, replacing the
// raise-and-catch control flow such protocols invite with an explicit value
// consumed by the sendAll loop.
type sendResult struct {
	serverErr  *ServerError
	timeoutErr *TimeoutError
}

// sendAll writes the whole stream, resuming past server-reported failures
// until the stream is exhausted or a fatal error aborts it. It always
// produces a Response accounting for every token.
func (s *bulkSender) sendAll(stream *messageStream) *Response {
	s.logger.Debugf("Preparing to send %v notifications", stream.Len())

	var errs []NotificationError

	for {
		res := s.sendFrames(stream)

		if res.serverErr == nil && res.timeoutErr == nil && stream.EOF() {
			// The stream finished cleanly; one final blocking check so a
			// late error response is not missed.
			if err, ok := s.conn.CheckError(s.errorTimeout).(*ServerError); ok {
				res.serverErr = err
			}
		}

		if res.timeoutErr != nil {
			// Write retries exhausted. Only the in-flight notification is
			// reported failed; the caller owns the decision about the rest.
			errs = append(errs, res.timeoutErr)
			s.conn.Close()
			break
		}

		if res.serverErr != nil {
			err := res.serverErr
			errs = append(errs, err)
			stream.Seek(err.Identifier)

			if err.Fatal() {
				// Nothing at or after the failed notification can be sent on
				// this stream. Convert the remainder to synthetic failures.
				next := err.Identifier + 1
				for i := range stream.Peek() {
					errs = append(errs, &UnsendableError{Identifier: next + uint32(i)})
				}
				break
			}
		}

		if stream.EOF() {
			break
		}
	}

	s.logger.Debugf("Sent %v notifications", stream.Len())
	if len(errs) > 0 {
		s.logger.Debugf("Encountered %v errors while sending", len(errs))
	}

	return newResponse(stream.tokens, stream.payload, errs)
}

// sendFrames writes batches until the stream is exhausted or an error stops
// it, checking for an error response after every write. A failed write is
// retried against a fresh connection with the same batch; when the attempts
// are exhausted the in-flight identifier is reported as timed out.
func (s *bulkSender) sendFrames(stream *messageStream) sendResult {
	retries := s.retries
	if retries <= 0 {
		retries = 1
	}

	for !stream.EOF() {
		batch, identifier, err := stream.NextBatch()
		if err != nil {
			// Tokens are validated before any I/O; an encode failure here
			// means the stream was built from unvalidated input.
			s.logger.Errorf("Could not encode frame: %v", err)
			return sendResult{timeoutErr: &TimeoutError{Identifier: identifier}}
		}

		sent := false
		for !sent && retries > 0 {
			werr := s.conn.Connect()
			if werr == nil {
				s.logger.Debugf("Sending notification batch containing %v bytes", len(batch))
				werr = s.conn.Write(batch, writeTimeout)
			}
			if werr == nil {
				sent = true
				break
			}
			s.logger.Warnf("Could not send batch to server: %v. Retrying send operation.", werr)
			s.conn.Close()
			retries--
		}

		if !sent {
			s.logger.Errorf("Could not send batch starting at identifier %v, retries exhausted", identifier)
			return sendResult{timeoutErr: &TimeoutError{Identifier: identifier}}
		}

		// Eager non-blocking check; waiting until the end risks the gateway
		// closing the socket before the error is read.
		if err, ok := s.conn.CheckError(0).(*ServerError); ok {
			return sendResult{serverErr: err}
		}
	}

	return sendResult{}
}
