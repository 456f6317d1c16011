// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package secrets keeps provider credentials out of config files. Secrets live
// in the OS keyring and config values refer to them as keyring://service/key.
package secrets

// DefaultService is the keyring service recall stores its own secrets under.
const DefaultService = "recall"

// Store provides secret storage scoped by service.
type Store interface {
	// Set saves value under service/key, replacing any previous value.
	Set(service, key, value string) error

	// Get returns the value under service/key, or an error with code
	// secret.not_found.
	Get(service, key string) (string, error)

	// Delete removes service/key, or returns secret.not_found.
	Delete(service, key string) error

	// List returns the key names stored under service, sorted.
	List(service string) ([]string, error)
}
