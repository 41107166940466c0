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
	"github.com/uniqush/goconf/conf"
	"github.com/uniqush/log"

	"github.com/pushfleet/pushfleet/push"
)

const (
	// URL is the production send endpoint.
	URL = "https://fcm.googleapis.com/fcm/send"

	// MaxRecipients is the vendor cap on registration IDs per request.
	MaxRecipients = 1000
)

// Config carries the settings of a GCM client.
type Config struct {
	// APIKey authorizes requests; sent as "Authorization: key=<APIKey>".
	APIKey string

	// URL of the send endpoint. Defaults to the production URL.
	URL string

	// MaxRecipients per request. Set lower than the vendor cap if needed,
	// never higher.
	MaxRecipients int

	Logger log.Logger
}

// NewConfig returns a config for the given API key with defaults filled in.
func NewConfig(apiKey string) *Config {
	return &Config{
		APIKey:        apiKey,
		URL:           URL,
		MaxRecipients: MaxRecipients,
		Logger:        push.NewLogger("[gcm] "),
	}
}

// LoadConfigFile builds a Config from the [gcm] section of a config file.
//
// Recognized options: apikey, url, max_recipients, log, loglevel.
func LoadConfigFile(filename string) (*Config, error) {
	cf, err := conf.ReadConfigFile(filename)
	if err != nil {
		return nil, err
	}
	return loadConfig(cf, "gcm")
}

func loadConfig(cf *conf.ConfigFile, section string) (*Config, error) {
	apikey, _ := cf.GetString(section, "apikey")
	c := NewConfig(apikey)

	if url, err := cf.GetString(section, "url"); err == nil && url != "" {
		c.URL = url
	}
	if n, err := cf.GetInt(section, "max_recipients"); err == nil && n > 0 && n <= MaxRecipients {
		c.MaxRecipients = n
	}

	logger, err := push.LoadLogger(nil, cf, section, "[gcm] ")
	if err == nil {
		c.Logger = logger
	}

	return c, nil
}
