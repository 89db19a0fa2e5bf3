package session

import (
	"encoding/json"
	"strings"
)

// Payload accessors support dotted-path addressing into the session's
// key/value bag: "cart.items" resolves through nested map[string]any
// levels. Paths never address inside slices or structs, only maps.

// Get returns the value at a dotted path and whether it exists.
func (s *Session) Get(path string) (any, bool) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, false
	}

	current := any(s.Payload)
	for _, seg := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = m[seg]; !ok {
			return nil, false
		}
	}

	return current, true
}

// Has reports whether a value exists at the dotted path.
func (s *Session) Has(path string) bool {
	_, ok := s.Get(path)
	return ok
}

// Set stores a value at a dotted path, creating intermediate maps as
// needed. Returns ErrPayloadTooLarge when the mutation would push the
// serialized payload past the configured limit; the payload is untouched
// in that case.
func (s *Session) Set(path string, value any) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}

	// Mutate a copy first so a rejected mutation leaves the payload
	// exactly as it was.
	candidate := clonePayload(s.Payload)
	if candidate == nil {
		candidate = make(map[string]any)
	}

	current := candidate
	for _, seg := range segments[:len(segments)-1] {
		next, ok := current[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[seg] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value

	if size := payloadSize(candidate); s.maxPayloadBytes > 0 && size > s.maxPayloadBytes {
		return ErrPayloadTooLarge{Size: size, Max: s.maxPayloadBytes}
	}

	s.Payload = candidate
	s.modified = true
	return nil
}

// Unset removes the value at a dotted path. Removing a missing path is a
// no-op.
func (s *Session) Unset(path string) {
	segments, err := splitPath(path)
	if err != nil {
		return
	}

	current := s.Payload
	for _, seg := range segments[:len(segments)-1] {
		next, ok := current[seg].(map[string]any)
		if !ok {
			return
		}
		current = next
	}

	if _, ok := current[segments[len(segments)-1]]; !ok {
		return
	}

	delete(current, segments[len(segments)-1])
	s.modified = true
}

// PayloadValue returns the value at path converted to T, or def when the
// path is missing or holds an incompatible type.
//
// Payloads that crossed a JSON round trip store numbers as float64;
// PayloadValue converts those to the requested integer or float type so
// callers get the same result before and after persistence.
func PayloadValue[T any](s *Session, path string, def T) T {
	raw, ok := s.Get(path)
	if !ok {
		return def
	}

	if v, ok := raw.(T); ok {
		return v
	}

	// JSON decoding widens every number to float64.
	if f, ok := raw.(float64); ok {
		var probe any = def
		switch probe.(type) {
		case int:
			return any(int(f)).(T)
		case int64:
			return any(int64(f)).(T)
		case float32:
			return any(float32(f)).(T)
		}
	}

	return def
}

// payloadSize returns the serialized size of a payload in bytes.
// An empty payload costs nothing.
func payloadSize(payload map[string]any) int {
	if len(payload) == 0 {
		return 0
	}

	data, err := json.Marshal(payload)
	if err != nil {
		// Unserializable values cannot be persisted; treat them as
		// oversized so the mutation is rejected rather than silently
		// dropped at save time.
		return int(^uint(0) >> 1)
	}
	return len(data)
}

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}

	segments := strings.Split(path, ".")
	for _, seg := range segments {
		if seg == "" {
			return nil, ErrInvalidPath
		}
	}
	return segments, nil
}
