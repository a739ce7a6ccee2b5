// Package credstore persists the portal's session record across two scopes,
// a durable one for "remember me" logins and an ephemeral one for
// single-session logins. Exactly one scope holds the live record.
package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// Options configures a Store.
type Options struct {
	Durable   KV
	Ephemeral KV

	// HasPersistentStorage is false in environments without storage, where
	// every Store method becomes a silent no-op.
	HasPersistentStorage bool

	Logger *slog.Logger
}

// Store reads and writes the session record.
type Store struct {
	durable   KV
	ephemeral KV
	enabled   bool
	log       *slog.Logger
}

func New(opts Options) *Store {
	s := &Store{
		durable:   opts.Durable,
		ephemeral: opts.Ephemeral,
		enabled:   opts.HasPersistentStorage && opts.Durable != nil && opts.Ephemeral != nil,
		log:       opts.Logger,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Enabled reports whether the store has any backing storage.
func (s *Store) Enabled() bool { return s.enabled }

// Read returns the live record, trying the durable scope first and falling
// back to the ephemeral one. A malformed record is treated as absent and
// both scopes are cleared. Expiry is not checked here.
func (s *Store) Read() (*Record, bool) {
	if !s.enabled {
		return nil, false
	}

	for _, scope := range []Scope{Durable, Ephemeral} {
		raw, ok, err := s.kv(scope).Get(Key)
		if err != nil {
			s.log.Warn("credstore read failed", "scope", scope, "err", err)
			continue
		}
		if !ok || raw == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.Validate() != nil {
			s.log.Warn("credstore discarding malformed record", "scope", scope)
			_ = s.Clear()
			return nil, false
		}
		return &rec, true
	}
	return nil, false
}

// Write stores rec in the durable scope when durable is true, otherwise in
// the ephemeral one, and removes any copy from the other scope. An error
// means the record may not be the one Read returns.
func (s *Store) Write(rec Record, durable bool) error {
	if !s.enabled {
		return nil
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	target, other := Ephemeral, Durable
	if durable {
		target, other = Durable, Ephemeral
	}

	if err := s.kv(target).Set(Key, string(b)); err != nil {
		return fmt.Errorf("write %s scope: %w", target, err)
	}
	if err := s.remove(other); err != nil {
		return fmt.Errorf("clear %s scope: %w", other, err)
	}
	return nil
}

// Clear removes the record from both scopes. Safe to call when absent.
func (s *Store) Clear() error {
	if !s.enabled {
		return nil
	}
	return errors.Join(s.remove(Durable), s.remove(Ephemeral))
}

// remove deletes the record from scope, retrying once. A copy left behind
// in the other scope would be read back as a second live session.
func (s *Store) remove(scope Scope) error {
	err := s.kv(scope).Delete(Key)
	if err == nil {
		return nil
	}
	s.log.Warn("credstore delete failed, retrying", "scope", scope, "err", err)
	return s.kv(scope).Delete(Key)
}

// ScopeOf reports which scope currently holds a record.
func (s *Store) ScopeOf() Scope {
	if !s.enabled {
		return ScopeNone
	}
	for _, scope := range []Scope{Durable, Ephemeral} {
		if raw, ok, err := s.kv(scope).Get(Key); err == nil && ok && raw != "" {
			return scope
		}
	}
	return ScopeNone
}

// Merge adds extra top-level blobs to the live record, in place. It is a
// read-modify-write and does nothing when no record is stored.
func (s *Store) Merge(extra map[string]json.RawMessage) error {
	if !s.enabled || len(extra) == 0 {
		return nil
	}

	scope := s.ScopeOf()
	rec, ok := s.Read()
	if !ok {
		return nil
	}

	if rec.Extra == nil {
		rec.Extra = make(map[string]json.RawMessage, len(extra))
	}
	for k, v := range extra {
		switch k {
		case "user", "token", "exp":
			continue
		}
		rec.Extra[k] = v
	}
	return s.Write(*rec, scope == Durable)
}

func (s *Store) kv(scope Scope) KV {
	if scope == Durable {
		return s.durable
	}
	return s.ephemeral
}
