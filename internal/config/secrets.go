// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	"strings"

	"github.com/spf13/viper"
)

// secretKeys are the config keys that carry provider credentials.
var secretKeys = []string{"embedding.api_key", "judge.api_key"}

// InlineSecrets reads the config file at path on its own, without defaults
// or environment overrides, and returns the credential keys it sets to a
// literal value instead of a keyring:// reference.
func InlineSecrets(path string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var inline []string
	for _, key := range secretKeys {
		val := strings.TrimSpace(v.GetString(key))
		if val != "" && !strings.HasPrefix(val, "keyring://") {
			inline = append(inline, key)
		}
	}
	return inline, nil
}
