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

// This file reads the feedback service, which streams a record for every
// device token the gateway considers expired, then closes the stream.

import (
	"encoding/hex"
	"io"
	"strings"
)

// ExpiredToken is one feedback record: a device token no longer registered
// to receive notifications, with the epoch timestamp of when it expired.
type ExpiredToken struct {
	Token     string
	Timestamp uint32
}

// readFeedback drains the feedback stream from an established connection,
// decoding records until the peer closes.
func readFeedback(c *conn) ([]ExpiredToken, error) {
	var tokens []ExpiredToken

	for {
		header := make([]byte, feedbackHeaderLength)
		n, err := c.Read(header, readTimeout)
		if n == 0 && (err == io.EOF || err == nil) {
			// Stream end.
			return tokens, nil
		}
		if err != nil {
			if isTimeout(err) && len(tokens) > 0 {
				// The service sends everything it has and closes; a stall
				// after complete records is treated as the end.
				return tokens, nil
			}
			if err == io.ErrUnexpectedEOF {
				return tokens, nil
			}
			return tokens, err
		}

		timestamp, tokenLen := parseFeedbackHeader(header)

		tokenData := make([]byte, int(tokenLen))
		if _, err := c.Read(tokenData, readTimeout); err != nil {
			return tokens, err
		}

		token := strings.ToLower(hex.EncodeToString(tokenData))
		tokens = append(tokens, ExpiredToken{Token: token, Timestamp: timestamp})
	}
}
