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
	"github.com/pushfleet/pushfleet/util"
)

// Priority values accepted by the send endpoint.
const (
	// LowPriority optimizes the client app's battery consumption; delivery
	// may be delayed.
	LowPriority = "normal"

	// HighPriority delivers immediately and can wake a sleeping device.
	HighPriority = "high"
)

// Message is the normalized content of one GCM notification. Data is
// delivered to the application; Notification is displayed by the system
// (fields such as "title", "body", "icon").
type Message struct {
	Data         map[string]interface{}
	Notification map[string]interface{}

	// CollapseKey identifies a group of messages of which only the last is
	// delivered when the device comes back online.
	CollapseKey string

	// DelayWhileIdle holds the message until the device becomes active.
	DelayWhileIdle bool

	// TimeToLive is how long in seconds the server stores the message for
	// an offline device. Zero uses the vendor default of four weeks.
	TimeToLive int

	// RestrictedPackageName limits delivery to registration IDs matching
	// the given application package.
	RestrictedPackageName string

	// LowPriority sends without the "high" priority flag.
	LowPriority bool

	// DryRun tests the request without delivering the message.
	DryRun bool
}

// NewMessage returns a message delivering text under the "message" data key.
func NewMessage(text string) *Message {
	return &Message{Data: map[string]interface{}{"message": text}}
}

// requestBody is the JSON body of one send request. Exactly one of To and
// RegistrationIDs is set: "to" for a single recipient, "registration_ids"
// for many.
type requestBody struct {
	To                    string                 `json:"to,omitempty"`
	RegistrationIDs       []string               `json:"registration_ids,omitempty"`
	Notification          map[string]interface{} `json:"notification,omitempty"`
	Data                  map[string]interface{} `json:"data,omitempty"`
	CollapseKey           string                 `json:"collapse_key,omitempty"`
	DelayWhileIdle        bool                   `json:"delay_while_idle,omitempty"`
	TimeToLive            int                    `json:"time_to_live,omitempty"`
	Priority              string                 `json:"priority,omitempty"`
	RestrictedPackageName string                 `json:"restricted_package_name,omitempty"`
	DryRun                bool                   `json:"dry_run,omitempty"`
}

// messageStream yields one serialized request per chunk of registration
// IDs, each chunk capped at maxRecipients.
type messageStream struct {
	registrationIDs []string
	message         *Message
	maxRecipients   int

	pos int
}

func newMessageStream(registrationIDs []string, message *Message, maxRecipients int) *messageStream {
	if maxRecipients <= 0 {
		maxRecipients = MaxRecipients
	}
	return &messageStream{
		registrationIDs: registrationIDs,
		message:         message,
		maxRecipients:   maxRecipients,
	}
}

// Len returns the total recipient count.
func (s *messageStream) Len() int {
	return len(s.registrationIDs)
}

// EOF reports whether every chunk has been produced.
func (s *messageStream) EOF() bool {
	return s.pos >= len(s.registrationIDs)
}

// NextChunk returns the registration IDs of the next chunk and the
// serialized request body addressed to them.
func (s *messageStream) NextChunk() ([]string, []byte, error) {
	end := s.pos + s.maxRecipients
	if end > len(s.registrationIDs) {
		end = len(s.registrationIDs)
	}
	ids := s.registrationIDs[s.pos:end]
	s.pos = end

	m := s.message
	body := &requestBody{
		Notification:          m.Notification,
		Data:                  m.Data,
		CollapseKey:           m.CollapseKey,
		DelayWhileIdle:        m.DelayWhileIdle,
		TimeToLive:            m.TimeToLive,
		RestrictedPackageName: m.RestrictedPackageName,
		DryRun:                m.DryRun,
	}
	if !m.LowPriority {
		body.Priority = HighPriority
	}
	if len(ids) == 1 {
		body.To = ids[0]
	} else {
		body.RegistrationIDs = ids
	}

	data, err := util.MarshalJSONUnescaped(body)
	if err != nil {
		return nil, nil, err
	}
	return ids, data, nil
}
