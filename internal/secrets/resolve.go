// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets

import (
	"strings"

	"github.com/spf13/viper"

	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

const scheme = "keyring://"

// Ref addresses one keyring secret.
type Ref struct {
	Service string
	Key     string
}

// String renders r as a keyring:// URI.
func (r Ref) String() string { return scheme + r.Service + "/" + r.Key }

// IsRef reports whether value uses the keyring:// scheme.
func IsRef(value string) bool {
	return strings.HasPrefix(value, scheme)
}

// ParseRef parses keyring://service/key. The key may itself contain slashes.
func ParseRef(uri string) (Ref, error) {
	if !IsRef(uri) {
		return Ref{}, recallerr.Errorf(recallerr.CodeSecretInvalidInput, "not a keyring URI: %q", uri)
	}

	service, key, ok := strings.Cut(strings.TrimPrefix(uri, scheme), "/")
	if !ok || service == "" || key == "" {
		return Ref{}, recallerr.Errorf(recallerr.CodeSecretInvalidInput,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}
	return Ref{Service: service, Key: key}, nil
}

// Resolve returns the secret value refers to, or value itself when it is not
// a keyring URI.
func Resolve(store Store, value string) (string, error) {
	if !IsRef(value) {
		return value, nil
	}

	ref, err := ParseRef(value)
	if err != nil {
		return "", err
	}

	secret, err := store.Get(ref.Service, ref.Key)
	if err != nil {
		return "", recallerr.Wrapf(err, recallerr.CodeSecretResolveFailure, "resolving %s", ref)
	}
	return secret, nil
}

// ResolveViper replaces every keyring URI among v's string values with its
// secret. Every unresolvable key is reported; values that did resolve are
// still replaced.
func ResolveViper(v *viper.Viper, store Store) error {
	var errs []error
	for _, key := range v.AllKeys() {
		val, ok := v.Get(key).(string)
		if !ok || !IsRef(val) {
			continue
		}

		resolved, err := Resolve(store, val)
		if err != nil {
			errs = append(errs, recallerr.Wrapf(err, recallerr.CodeSecretResolveFailure,
				"config key %s (%s)", key, val))
			continue
		}
		v.Set(key, resolved)
	}
	return recallerr.Join(errs...)
}
