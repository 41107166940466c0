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
	"encoding/json"

	"github.com/uniqush/log"
)

// CanonicalID records a registration ID the server has reassigned. The
// caller should replace OldID with NewID in its records; the old one keeps
// working for a while but will eventually be rejected.
type CanonicalID struct {
	OldID string
	NewID string
}

// chunkData is the parsed body of one 200 response.
type chunkData struct {
	MulticastID  int64         `json:"multicast_id"`
	Success      int           `json:"success"`
	Failure      int           `json:"failure"`
	CanonicalIDs int           `json:"canonical_ids"`
	Results      []resultEntry `json:"results"`
}

// resultEntry correlates positionally with the registration IDs of its
// request.
type resultEntry struct {
	MessageID      string `json:"message_id"`
	RegistrationID string `json:"registration_id"`
	Error          string `json:"error"`
}

// Response aggregates the results of every request issued by one send call.
type Response struct {
	// RegistrationIDs is the combined recipient list across requests, in
	// the original order.
	RegistrationIDs []string

	// Successes are the registration IDs the server accepted.
	Successes []string

	// Failures are the registration IDs that failed, with one entry in
	// Errors each.
	Failures []string
	Errors   []error

	// CanonicalIDs lists reassigned registration IDs. An ID can appear here
	// and in Successes at the same time.
	CanonicalIDs []CanonicalID

	// Data holds the parsed body of each 200 response.
	Data []chunkData
}

// addChunk folds one HTTP exchange into the response. A 200 body is parsed
// and correlated positionally; a 500 marks every recipient of the request
// failed with an internal server error. Other statuses contribute nothing
// beyond the recipient accounting.
func (r *Response) addChunk(ids []string, statusCode int, body []byte, logger log.Logger) {
	r.RegistrationIDs = append(r.RegistrationIDs, ids...)

	switch {
	case statusCode == 200:
		var data chunkData
		if err := json.Unmarshal(body, &data); err != nil {
			logger.Errorf("Failed to decode response: %v", err)
			return
		}
		r.Data = append(r.Data, data)
		r.addResults(ids, data.Results)
	case statusCode >= 500:
		for _, id := range ids {
			r.addFailure(id, "InternalServerError")
		}
	default:
		logger.Warnf("Unexpected status %v from server, %v recipients unaccounted", statusCode, len(ids))
	}
}

func (r *Response) addResults(ids []string, results []resultEntry) {
	for i, result := range results {
		if i >= len(ids) {
			break
		}
		id := ids[i]

		if result.Error != "" {
			r.addFailure(id, result.Error)
		} else {
			r.Successes = append(r.Successes, id)
		}

		if result.RegistrationID != "" {
			r.CanonicalIDs = append(r.CanonicalIDs, CanonicalID{OldID: id, NewID: result.RegistrationID})
		}
	}
}

func (r *Response) addFailure(id, code string) {
	r.Failures = append(r.Failures, id)
	r.Errors = append(r.Errors, NewServerError(code, id))
}
