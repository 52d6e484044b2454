// Package redact strips credential material from config snapshots before
// they leave the server. It operates on decoded JSON values (maps, slices,
// scalars) and replaces sensitive entries with a fixed placeholder.
package redact

import (
	"regexp"
	"strings"
)

// Placeholder replaces every redacted value.
const Placeholder = "[REDACTED]"

// DefaultKeySubstrings marks a key as sensitive when its lowercase form
// contains any of these.
var DefaultKeySubstrings = []string{
	"apikey", "api_key", "secret", "token", "password", "private",
}

// valuePatterns match credential-shaped string values regardless of key.
var valuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^ax_[a-f0-9]+`),
	regexp.MustCompile(`(?i)^sk-[a-zA-Z0-9_-]{20,}`),
	regexp.MustCompile(`(?i)Bearer\s+[a-zA-Z0-9_.-]{20,}`),
}

// Redactor redacts values under sensitive keys. The zero value is not
// usable; construct with New.
type Redactor struct {
	keySubstrings []string
}

// New returns a Redactor using the given key substrings, or the defaults
// when none are provided.
func New(keySubstrings []string) *Redactor {
	if len(keySubstrings) == 0 {
		keySubstrings = DefaultKeySubstrings
	}
	lowered := make([]string, len(keySubstrings))
	for i, s := range keySubstrings {
		lowered[i] = strings.ToLower(s)
	}
	return &Redactor{keySubstrings: lowered}
}

// SensitiveKey reports whether a key names credential material.
func (r *Redactor) SensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, sub := range r.keySubstrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

// SensitiveValue reports whether a string value looks like a credential.
func SensitiveValue(v string) bool {
	for _, p := range valuePatterns {
		if p.MatchString(v) {
			return true
		}
	}
	return false
}

// Value returns a deep copy of v with every sensitive entry replaced by the
// placeholder. Maps and slices are walked recursively; the input is never
// modified. Non-container values pass through unless they look like
// credentials themselves.
func (r *Redactor) Value(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if r.SensitiveKey(k) {
				out[k] = Placeholder
				continue
			}
			if s, ok := inner.(string); ok && SensitiveValue(s) {
				out[k] = Placeholder
				continue
			}
			out[k] = r.Value(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = r.Value(inner)
		}
		return out
	case string:
		if SensitiveValue(val) {
			return Placeholder
		}
		return val
	default:
		return v
	}
}

// Env redacts a flat environment map, treating any key mentioning api, key,
// or the configured substrings as sensitive.
func (r *Redactor) Env(env map[string]string) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		lower := strings.ToLower(k)
		if r.SensitiveKey(k) || strings.Contains(lower, "api") ||
			strings.Contains(lower, "key") || SensitiveValue(v) {
			out[k] = Placeholder
			continue
		}
		out[k] = v
	}
	return out
}
