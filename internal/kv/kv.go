// Package kv provides the process-wide key-value store used for scalar
// settings, day keys and serialized ledger state.
//
// Every write is committed before Set returns. A Store is constructed once at
// startup and shared; there is no explicit teardown beyond Close on the
// SQLite backend.
package kv

import (
	"errors"
	"strconv"

	"github.com/goccy/go-json"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("kv: key not found")

// Store is the persistence substrate for settings and ledgers.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// GetString returns the string at key, or "" when absent or unreadable.
func GetString(s Store, key string) string {
	v, err := s.Get(key)
	if err != nil {
		return ""
	}
	return string(v)
}

// SetString stores a string value.
func SetString(s Store, key, value string) error {
	return s.Set(key, []byte(value))
}

// GetInt returns the int at key. Missing or malformed values read as 0, false.
func GetInt(s Store, key string) (int, bool) {
	v, err := s.Get(key)
	if err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(string(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

// SetInt stores an int value.
func SetInt(s Store, key string, value int) error {
	return s.Set(key, []byte(strconv.Itoa(value)))
}

// GetFloat returns the float at key. Missing or malformed values read as 0, false.
func GetFloat(s Store, key string) (float64, bool) {
	v, err := s.Get(key)
	if err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(string(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// SetFloat stores a float value.
func SetFloat(s Store, key string, value float64) error {
	return s.Set(key, []byte(strconv.FormatFloat(value, 'f', -1, 64)))
}

// GetBool returns the bool at key; anything unreadable is false.
func GetBool(s Store, key string) bool {
	v, err := s.Get(key)
	if err != nil {
		return false
	}
	b, err := strconv.ParseBool(string(v))
	return err == nil && b
}

// SetBool stores a bool value.
func SetBool(s Store, key string, value bool) error {
	return s.Set(key, []byte(strconv.FormatBool(value)))
}

// GetJSON decodes the JSON document at key into dst. It reports false when
// the key is missing or the document does not decode; dst is then untouched
// only for the missing case.
func GetJSON(s Store, key string, dst any) bool {
	v, err := s.Get(key)
	if err != nil {
		return false
	}
	return json.Unmarshal(v, dst) == nil
}

// SetJSON encodes value as JSON and stores it.
func SetJSON(s Store, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Set(key, data)
}
