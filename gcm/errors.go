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

package gcm

import (
	"fmt"
)

// Error codes returned in the "error" member of a result entry, from the
// GCM server reference. Constructed as a static table; codes the server
// introduces later fall through to a generic description.
var serverErrorDescriptions = map[string]string{
	"MissingRegistration":       "Missing registration ID",
	"InvalidRegistration":       "Invalid registration ID",
	"NotRegistered":             "Device not registered",
	"InvalidPackageName":        "Invalid package name",
	"MismatchSenderId":          "Mismatched sender ID",
	"MessageTooBig":             "Message too big",
	"InvalidDataKey":            "Invalid data key",
	"InvalidTtl":                "Invalid time to live",
	"Unavailable":               "Timeout",
	"InternalServerError":       "Internal server error",
	"DeviceMessageRateExceeded": "Device message rate exceeded",
}

// ServerError is a failure reported by the GCM server for one registration
// ID, either in a result entry or synthesized for a whole request that
// failed with status 500.
type ServerError struct {
	Code           string
	RegistrationID string
}

// NewServerError builds a ServerError for the given error code and
// registration ID.
func NewServerError(code, registrationID string) *ServerError {
	return &ServerError{Code: code, RegistrationID: registrationID}
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("GCM error %v: %v for registration id %v", e.Code, e.Description(), e.RegistrationID)
}

// Description returns the human readable meaning of the error code.
func (e *ServerError) Description() string {
	if desc, ok := serverErrorDescriptions[e.Code]; ok {
		return desc
	}
	return "Unknown"
}
