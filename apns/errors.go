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
	"fmt"
)

// NotificationError is implemented by every per-notification send failure.
// The identifier correlates the failure back to a position in the token list
// of one bulk send call.
type NotificationError interface {
	error
	NotificationIdentifier() uint32
}

var _ NotificationError = &ServerError{}
var _ NotificationError = &UnsendableError{}
var _ NotificationError = &TimeoutError{}

// serverErrorInfo describes one status code of the binary error response.
// Fatal codes poison the connection for every notification at or after the
// failed one; the sender converts the remainder to UnsendableErrors instead
// of attempting them.
type serverErrorInfo struct {
	description string
	fatal       bool
}

// Status codes for the binary API, from table A-1 of Apple's binary provider
// API appendix. Constructed as a static table rather than discovered at
// runtime; unknown codes fall through to a generic description.
var serverErrorTable = map[uint8]serverErrorInfo{
	1:   {"Processing error", false},
	2:   {"Missing token", false},
	3:   {"Missing topic", true},
	4:   {"Missing payload", true},
	5:   {"Invalid token size", false},
	6:   {"Invalid topic size", true},
	7:   {"Invalid payload size", true},
	8:   {"Invalid token", false},
	10:  {"Shutdown", true},
	255: {"Unknown", false},
}

// ServerError is an asynchronous error response read off the push socket,
// reported by the server for exactly one notification.
type ServerError struct {
	Code       uint8
	Identifier uint32
}

// NewServerError builds a ServerError from the status code and notification
// identifier of an error-response packet.
func NewServerError(code uint8, identifier uint32) *ServerError {
	return &ServerError{Code: code, Identifier: identifier}
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("APNS error (code=%v): %v for identifier %v", e.Code, e.Description(), e.Identifier)
}

// Description returns the human readable meaning of the status code.
func (e *ServerError) Description() string {
	if info, ok := serverErrorTable[e.Code]; ok {
		return info.description
	}
	return "Unknown"
}

// Fatal reports whether the connection is unusable for any notification at
// or after the failed one.
func (e *ServerError) Fatal() bool {
	return serverErrorTable[e.Code].fatal
}

// NotificationIdentifier implements NotificationError.
func (e *ServerError) NotificationIdentifier() uint32 {
	return e.Identifier
}

/*********************/

// UnsendableError is a synthetic failure for a notification that was never
// attempted because a fatal server error aborted the stream before it.
type UnsendableError struct {
	Identifier uint32
}

func (e *UnsendableError) Error() string {
	return fmt.Sprintf("notification %v could not be sent due to a previous fatal error", e.Identifier)
}

// NotificationIdentifier implements NotificationError.
func (e *UnsendableError) NotificationIdentifier() uint32 {
	return e.Identifier
}

/*********************/

// TimeoutError is a synthetic failure for the notification that was in
// flight when writing to the push socket kept failing after every configured
// retry. Notifications after the failed one are not marked failed; the
// caller decides whether the partial result is acceptable.
type TimeoutError struct {
	Identifier uint32
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out sending notification %v", e.Identifier)
}

// NotificationIdentifier implements NotificationError.
func (e *TimeoutError) NotificationIdentifier() uint32 {
	return e.Identifier
}
