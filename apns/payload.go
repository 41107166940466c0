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
	"github.com/pushfleet/pushfleet/push"
	"github.com/pushfleet/pushfleet/util"
)

// truncationMarker is appended to the alert body when it has to be shortened
// to fit a maximum payload length.
const truncationMarker = "..."

// Payload is the normalized content of one notification. It serializes to
// the JSON dictionary APNS expects, with the reserved fields under "aps" and
// Extra merged at the top level.
//
// Alert may be a plain string or a pre-built dictionary. If any of the
// localization or title fields is set, the alert is emitted as a structured
// sub-object with the Alert value under "body".
type Payload struct {
	Alert            interface{}
	Badge            *int
	Sound            string
	Category         string
	ContentAvailable bool
	MutableContent   bool
	ThreadID         string
	Title            string
	TitleLocKey      string
	TitleLocArgs     []string
	ActionLocKey     string
	LocKey           string
	LocArgs          []string
	LaunchImage      string
	Extra            map[string]interface{}
}

// NewPayload returns a payload with the given alert text.
func NewPayload(alert string) *Payload {
	return &Payload{Alert: alert}
}

func (p *Payload) structured() bool {
	return p.Title != "" ||
		p.TitleLocKey != "" ||
		len(p.TitleLocArgs) > 0 ||
		p.ActionLocKey != "" ||
		p.LocKey != "" ||
		len(p.LocArgs) > 0 ||
		p.LaunchImage != ""
}

// dict builds the payload dictionary using alert in place of p.Alert.
// Absent fields are omitted entirely; the services reject null members.
func (p *Payload) dict(alert interface{}) map[string]interface{} {
	var alertValue interface{}
	if p.structured() {
		sub := make(map[string]interface{})
		if alert != nil && alert != "" {
			sub["body"] = alert
		}
		if p.Title != "" {
			sub["title"] = p.Title
		}
		if p.TitleLocKey != "" {
			sub["title-loc-key"] = p.TitleLocKey
		}
		if len(p.TitleLocArgs) > 0 {
			sub["title-loc-args"] = p.TitleLocArgs
		}
		if p.ActionLocKey != "" {
			sub["action-loc-key"] = p.ActionLocKey
		}
		if p.LocKey != "" {
			sub["loc-key"] = p.LocKey
		}
		if len(p.LocArgs) > 0 {
			sub["loc-args"] = p.LocArgs
		}
		if p.LaunchImage != "" {
			sub["launch-image"] = p.LaunchImage
		}
		alertValue = sub
	} else {
		alertValue = alert
	}

	aps := make(map[string]interface{})
	if alertValue != nil && alertValue != "" {
		aps["alert"] = alertValue
	}
	if p.Badge != nil {
		aps["badge"] = *p.Badge
	}
	if p.Sound != "" {
		aps["sound"] = p.Sound
	}
	if p.Category != "" {
		aps["category"] = p.Category
	}
	if p.ContentAvailable {
		// The literal integer 1, not a boolean.
		aps["content-available"] = 1
	}
	if p.MutableContent {
		aps["mutable-content"] = 1
	}
	if p.ThreadID != "" {
		aps["thread-id"] = p.ThreadID
	}

	payload := make(map[string]interface{}, len(p.Extra)+1)
	for k, v := range p.Extra {
		payload[k] = v
	}
	payload["aps"] = aps
	return payload
}

// Marshal serializes the payload. With maxLength > 0 the alert body is
// shortened until the serialized form fits, each pass chopping one character
// and appending the truncation marker. With maxLength == 0 a payload larger
// than MaxPayloadSize fails with PayloadTooLargeError.
func (p *Payload) Marshal(maxLength int) ([]byte, error) {
	if body, ok := p.Alert.(string); ok && body != "" && maxLength > 0 {
		return p.marshalTruncated(body, maxLength)
	}

	data, err := util.MarshalJSONUnescaped(p.dict(p.Alert))
	if err != nil {
		return nil, err
	}
	if maxLength == 0 && len(data) > MaxPayloadSize {
		return nil, push.NewPayloadTooLargeError(len(data), MaxPayloadSize)
	}
	if maxLength > 0 && len(data) > maxLength {
		return nil, push.NewPayloadTooLargeError(len(data), maxLength)
	}
	return data, nil
}

func (p *Payload) marshalTruncated(body string, maxLength int) ([]byte, error) {
	runes := []rune(body)
	ending := ""

	for len(runes) > 0 {
		data, err := util.MarshalJSONUnescaped(p.dict(string(runes) + ending))
		if err != nil {
			return nil, err
		}
		if len(data) <= maxLength {
			return data, nil
		}
		runes = runes[:len(runes)-1]
		ending = truncationMarker
	}

	// Even an empty body doesn't fit; serialize without one.
	data, err := util.MarshalJSONUnescaped(p.dict(nil))
	if err != nil {
		return nil, err
	}
	if len(data) > maxLength {
		return nil, push.NewPayloadTooLargeError(len(data), maxLength)
	}
	return data, nil
}
