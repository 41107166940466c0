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

// Endpoints and protocol constants for version 2 of the binary provider API.
// https://developer.apple.com/library/content/documentation/NetworkingInternet/Conceptual/RemoteNotificationsPG/BinaryProviderAPI.html
const (
	Host        = "gateway.push.apple.com"
	SandboxHost = "gateway.sandbox.push.apple.com"
	Port        = 2195

	FeedbackHost        = "feedback.push.apple.com"
	FeedbackSandboxHost = "feedback.sandbox.push.apple.com"
	FeedbackPort        = 2196

	// MaxPayloadSize is the vendor limit on the serialized JSON payload.
	MaxPayloadSize = 2048

	// DeviceTokenLength is the decoded length of a device token in bytes.
	DeviceTokenLength = 32
)

// Notification priorities, sent as frame item 5.
const (
	// LowPriority delivers the push at a time that conserves power on the
	// receiving device.
	LowPriority uint8 = 5

	// HighPriority delivers the push immediately. The notification must
	// trigger an alert, sound, or badge; it is an error to use this priority
	// for a content-available only push.
	HighPriority uint8 = 10
)

const (
	pushCommand          uint8 = 2
	errorResponseCommand uint8 = 8

	errorResponseLength  = 6
	feedbackHeaderLength = 6

	frameItemCount     = 5
	frameItemPrefixLen = 3
	identifierItemLen  = 4
	expirationItemLen  = 4
	priorityItemLen    = 1
)
