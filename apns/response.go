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

// Response is the complete accounting of one bulk send. Successes and
// Failures partition Tokens: every token appears in exactly one of the two,
// both preserving the original send order.
type Response struct {
	// Tokens is the full input token list in send order.
	Tokens []string

	// Payload is the serialized payload that was sent.
	Payload []byte

	// Errors holds one entry per failed notification.
	Errors []NotificationError

	// Failures are the tokens whose notifications failed.
	Failures []string

	// Successes are the tokens whose notifications were accepted.
	Successes []string

	// TokenErrors maps each failed token to its error.
	TokenErrors map[string]NotificationError
}

// newResponse correlates each error's identifier back into the token list.
// It is pure: the same (tokens, errs) input always yields the same views.
func newResponse(tokens []string, payload []byte, errs []NotificationError) *Response {
	r := &Response{
		Tokens:      tokens,
		Payload:     payload,
		Errors:      errs,
		TokenErrors: make(map[string]NotificationError, len(errs)),
	}

	failed := make(map[uint32]bool, len(errs))
	for _, err := range errs {
		id := err.NotificationIdentifier()
		if int(id) >= len(tokens) {
			continue
		}
		failed[id] = true
		tok := tokens[id]
		r.Failures = append(r.Failures, tok)
		r.TokenErrors[tok] = err
	}

	for i, tok := range tokens {
		if !failed[uint32(i)] {
			r.Successes = append(r.Successes, tok)
		}
	}

	return r
}
