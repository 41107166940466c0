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

import (
	"bytes"
)

// messageStream is a resumable iterator over the frames of one bulk send.
// The notification identifier of each frame is its zero-based position in
// tokens, which makes an error response directly seekable. The payload is
// serialized once for the whole stream; every token shares the same bytes.
//
// A stream is owned by a single send call and is not safe for concurrent
// use.
type messageStream struct {
	tokens     []string
	payload    []byte
	expiration uint32
	priority   uint8
	batchSize  int

	nextIdentifier uint32
}

func newMessageStream(tokens []string, payload []byte, expiration uint32, priority uint8, batchSize int) *messageStream {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &messageStream{
		tokens:     tokens,
		payload:    payload,
		expiration: expiration,
		priority:   priority,
		batchSize:  batchSize,
	}
}

// Len returns the total notification count.
func (s *messageStream) Len() int {
	return len(s.tokens)
}

// EOF reports whether every token has been consumed.
func (s *messageStream) EOF() bool {
	return s.nextIdentifier >= uint32(len(s.tokens))
}

// Seek positions the cursor on the notification after identifier, so that
// sending resumes past a failed one.
func (s *messageStream) Seek(identifier uint32) {
	s.nextIdentifier = identifier + 1
}

// Peek returns the unconsumed tokens without advancing the cursor. After a
// fatal error the sender materializes these as unsendable failures.
func (s *messageStream) Peek() []string {
	if s.EOF() {
		return nil
	}
	return s.tokens[s.nextIdentifier:]
}

// NextBatch encodes up to batchSize frames starting at the cursor and
// returns them concatenated, along with the identifier of the first frame.
// The cursor advances past the batch.
func (s *messageStream) NextBatch() ([]byte, uint32, error) {
	firstIdentifier := s.nextIdentifier

	var data bytes.Buffer
	for i := 0; i < s.batchSize && !s.EOF(); i++ {
		frame, err := packFrame(s.tokens[s.nextIdentifier],
			s.nextIdentifier,
			s.payload,
			s.expiration,
			s.priority)
		if err != nil {
			return nil, firstIdentifier, err
		}
		data.Write(frame)
		s.nextIdentifier++
	}

	return data.Bytes(), firstIdentifier, nil
}
