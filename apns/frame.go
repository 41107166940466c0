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

// This file implements the stateless codec for the v2 push frame and the
// feedback service record. The byte layout is a wire compatibility
// requirement; field order and big-endian integers must match exactly or the
// gateway drops the connection.

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"

	"github.com/pushfleet/pushfleet/push"
)

// IsValidToken reports whether token is a hex string decoding to exactly
// DeviceTokenLength bytes.
func IsValidToken(token string) bool {
	decoded, err := hex.DecodeString(token)
	if err != nil {
		return false
	}
	return len(decoded) == DeviceTokenLength
}

// invalidTokens returns the subset of tokens failing validation.
func invalidTokens(tokens []string) []string {
	var invalid []string
	for _, token := range tokens {
		if !IsValidToken(token) {
			invalid = append(invalid, token)
		}
	}
	return invalid
}

// validateTokens fails with an InvalidTokenError naming every bad token.
func validateTokens(tokens []string) error {
	if invalid := invalidTokens(tokens); len(invalid) > 0 {
		return push.NewInvalidTokenError(invalid)
	}
	return nil
}

// packFrame encodes one notification as a v2 binary frame:
//
//	command:1 | frame_len:4 |
//	1 | len:2 | token | 2 | len:2 | payload |
//	3 | 00 04 | identifier:4 | 4 | 00 04 | expiration:4 | 5 | 00 01 | priority:1
func packFrame(token string, identifier uint32, payload []byte, expiration uint32, priority uint8) ([]byte, error) {
	tokenBin, err := hex.DecodeString(token)
	if err != nil || len(tokenBin) != DeviceTokenLength {
		return nil, push.NewInvalidTokenError([]string{token})
	}

	frameLen := frameItemCount*frameItemPrefixLen +
		len(tokenBin) +
		len(payload) +
		identifierItemLen +
		expirationItemLen +
		priorityItemLen

	buffer := bytes.NewBuffer(make([]byte, 0, 5+frameLen))
	buffer.WriteByte(pushCommand)
	binary.Write(buffer, binary.BigEndian, uint32(frameLen))

	writeItemHeader := func(id uint8, itemLength uint16) {
		buffer.WriteByte(id)
		binary.Write(buffer, binary.BigEndian, itemLength)
	}

	// Item 1. Device token
	writeItemHeader(1, uint16(len(tokenBin)))
	buffer.Write(tokenBin)

	// Item 2. JSON payload
	writeItemHeader(2, uint16(len(payload)))
	buffer.Write(payload)

	// Item 3. Notification identifier
	writeItemHeader(3, identifierItemLen)
	binary.Write(buffer, binary.BigEndian, identifier)

	// Item 4. Expiration date
	writeItemHeader(4, expirationItemLen)
	binary.Write(buffer, binary.BigEndian, expiration)

	// Item 5. Priority
	writeItemHeader(5, priorityItemLen)
	buffer.WriteByte(priority)

	return buffer.Bytes(), nil
}

// parseFeedbackHeader decodes the fixed 6-byte feedback record header into
// the expiry timestamp and the token length that follows.
func parseFeedbackHeader(data []byte) (timestamp uint32, tokenLen uint16) {
	timestamp = binary.BigEndian.Uint32(data[0:4])
	tokenLen = binary.BigEndian.Uint16(data[4:6])
	return
}
