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

// Package push contains the error kinds and helpers shared by the apns and
// gcm client packages.
package push

import (
	"fmt"
)

// Error is a specialized error. Every failure surfaced by the client
// packages implements it, so callers can distinguish pushfleet failures from
// unrelated errors with a single type assertion.
type Error interface {
	error
	isPushError() // Placeholder function to distinguish these from error class
}

type implementsPushError struct{}

func (*implementsPushError) isPushError() {}

var _ Error = &AuthError{}
var _ Error = &InvalidTokenError{}
var _ Error = &PayloadTooLargeError{}
var _ Error = &ConnectionError{}

// AuthError reports missing or unusable credentials: an unreadable
// certificate file for APNS, or a missing API key for GCM. It is returned
// before any notification is attempted.
type AuthError struct {
	implementsPushError
	msg string
}

func (e *AuthError) Error() string {
	return e.msg
}

// NewAuthError returns an AuthError for the given message.
func NewAuthError(msg string) *AuthError {
	return &AuthError{msg: msg}
}

// NewAuthErrorf returns an AuthError for the given format string and arguments.
func NewAuthErrorf(f string, v ...interface{}) *AuthError {
	return &AuthError{msg: fmt.Sprintf(f, v...)}
}

/*********************/

// InvalidTokenError reports device tokens that failed local validation.
// No notification was sent to any recipient.
type InvalidTokenError struct {
	implementsPushError
	Tokens []string
}

func (e *InvalidTokenError) Error() string {
	return fmt.Sprintf("invalid token format, expected hex string: %v", e.Tokens)
}

// NewInvalidTokenError builds an InvalidTokenError for the offending tokens.
func NewInvalidTokenError(tokens []string) *InvalidTokenError {
	return &InvalidTokenError{Tokens: tokens}
}

/*********************/

// PayloadTooLargeError reports a serialized payload exceeding the vendor
// maximum when no truncation policy is active.
type PayloadTooLargeError struct {
	implementsPushError
	Size int
	Max  int
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("notification payload is %v bytes, cannot exceed %v bytes", e.Size, e.Max)
}

// NewPayloadTooLargeError builds a PayloadTooLargeError from the observed and
// maximum sizes.
func NewPayloadTooLargeError(size, max int) *PayloadTooLargeError {
	return &PayloadTooLargeError{Size: size, Max: max}
}

/*********************/

// ConnectionError wraps a transport-level failure against a vendor endpoint.
type ConnectionError struct {
	implementsPushError
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error with %v: %v", e.Endpoint, e.Err)
}

// NewConnectionError wraps err as a ConnectionError for the given endpoint.
func NewConnectionError(endpoint string, err error) *ConnectionError {
	return &ConnectionError{Endpoint: endpoint, Err: err}
}
