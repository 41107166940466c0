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
	"time"

	"github.com/uniqush/goconf/conf"
	"github.com/uniqush/log"

	"github.com/pushfleet/pushfleet/push"
)

// Defaults applied by NewConfig and by LoadConfigFile when an option is
// absent.
const (
	// DefaultErrorTimeout bounds the final blocking error check after the
	// last notification is written. Too small a value risks missing a slow
	// error response arriving right as the stream finishes; several seconds
	// is the safe choice.
	DefaultErrorTimeout = 10 * time.Second

	// DefaultExpirationOffset is added to the current time when a send call
	// does not specify an expiration: one month.
	DefaultExpirationOffset = 60 * 60 * 24 * 30

	// DefaultBatchSize is the number of frames concatenated into one socket
	// write.
	DefaultBatchSize = 100

	// DefaultRetries is the number of write attempts per batch before the
	// in-flight notification is reported as timed out.
	DefaultRetries = 5
)

// Config carries the settings of an APNS client. The zero value is not
// usable; construct with NewConfig or NewSandboxConfig and set Certificate.
type Config struct {
	// Certificate is the path to the client certificate presented during the
	// TLS handshake. PEM files carrying both certificate and key are
	// supported, as are PKCS#12 (.p12) bundles.
	Certificate string

	// CertificatePassword decrypts the certificate when it is a PKCS#12
	// bundle. Ignored for PEM.
	CertificatePassword string

	Host         string
	Port         int
	FeedbackHost string
	FeedbackPort int

	// SkipVerify disables verification of the server certificate chain.
	// Only useful against a test gateway.
	SkipVerify bool

	ErrorTimeout     time.Duration
	ExpirationOffset int
	BatchSize        int
	MaxPayloadLength int
	Retries          int

	Logger log.Logger
}

// NewConfig returns a production config for the given certificate path with
// documented defaults filled in.
func NewConfig(certificate string) *Config {
	return &Config{
		Certificate:      certificate,
		Host:             Host,
		Port:             Port,
		FeedbackHost:     FeedbackHost,
		FeedbackPort:     FeedbackPort,
		ErrorTimeout:     DefaultErrorTimeout,
		ExpirationOffset: DefaultExpirationOffset,
		BatchSize:        DefaultBatchSize,
		Retries:          DefaultRetries,
		Logger:           push.NewLogger("[apns] "),
	}
}

// NewSandboxConfig returns a config pointing at the sandbox gateway and
// feedback hosts.
func NewSandboxConfig(certificate string) *Config {
	c := NewConfig(certificate)
	c.Host = SandboxHost
	c.FeedbackHost = FeedbackSandboxHost
	return c
}

// LoadConfigFile builds a Config from the [apns] section of a config file.
// Every absent option falls back to the NewConfig default.
//
// Recognized options: cert, certpassword, host, port, feedback_host,
// feedback_port, sandbox, skipverify, error_timeout (seconds),
// expiration_offset (seconds), batch_size, max_payload_length, retries,
// log, loglevel.
func LoadConfigFile(filename string) (*Config, error) {
	cf, err := conf.ReadConfigFile(filename)
	if err != nil {
		return nil, err
	}
	return loadConfig(cf, "apns")
}

func loadConfig(cf *conf.ConfigFile, section string) (*Config, error) {
	cert, _ := cf.GetString(section, "cert")

	var c *Config
	if sandbox, err := cf.GetBool(section, "sandbox"); err == nil && sandbox {
		c = NewSandboxConfig(cert)
	} else {
		c = NewConfig(cert)
	}

	if password, err := cf.GetString(section, "certpassword"); err == nil {
		c.CertificatePassword = password
	}
	if host, err := cf.GetString(section, "host"); err == nil && host != "" {
		c.Host = host
	}
	if port, err := cf.GetInt(section, "port"); err == nil && port > 0 {
		c.Port = port
	}
	if host, err := cf.GetString(section, "feedback_host"); err == nil && host != "" {
		c.FeedbackHost = host
	}
	if port, err := cf.GetInt(section, "feedback_port"); err == nil && port > 0 {
		c.FeedbackPort = port
	}
	if skip, err := cf.GetBool(section, "skipverify"); err == nil {
		c.SkipVerify = skip
	}
	if secs, err := cf.GetInt(section, "error_timeout"); err == nil && secs > 0 {
		c.ErrorTimeout = time.Duration(secs) * time.Second
	}
	if secs, err := cf.GetInt(section, "expiration_offset"); err == nil && secs > 0 {
		c.ExpirationOffset = secs
	}
	if n, err := cf.GetInt(section, "batch_size"); err == nil && n > 0 {
		c.BatchSize = n
	}
	if n, err := cf.GetInt(section, "max_payload_length"); err == nil && n > 0 {
		c.MaxPayloadLength = n
	}
	if n, err := cf.GetInt(section, "retries"); err == nil && n > 0 {
		c.Retries = n
	}

	logger, err := push.LoadLogger(nil, cf, section, "[apns] ")
	if err == nil {
		c.Logger = logger
	}

	return c, nil
}
