package credstore

import (
	"encoding/json"
	"errors"
	"time"
)

// Key is the single storage key holding the serialised Record in whichever
// scope is live.
const Key = "vp_auth"

var ErrInvalidRecord = errors.New("credstore: invalid record")

// Record is the persisted authentication state: a user snapshot, the bearer
// token and its absolute expiry in epoch milliseconds. Any additional
// top-level keys (profile, dashboard and fee blobs merged after 2FA) are kept
// in Extra and survive a round trip untouched.
type Record struct {
	User  json.RawMessage
	Token string
	Exp   int64

	Extra map[string]json.RawMessage
}

// ExpiresAt returns the expiry as a time.Time, zero when no expiry is set.
func (r Record) ExpiresAt() time.Time {
	if r.Exp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(r.Exp)
}

// ValidAt reports whether the record may be surfaced at now. A record without
// an expiry is valid; otherwise now must be strictly before it.
func (r Record) ValidAt(now time.Time) bool {
	if r.Exp == 0 {
		return true
	}
	return now.UnixMilli() < r.Exp
}

// Validate checks the fields a stored record must carry: a token and a user
// object with a non-empty id.
func (r Record) Validate() error {
	if r.Token == "" || len(r.User) == 0 {
		return ErrInvalidRecord
	}

	var u struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(r.User, &u); err != nil {
		return ErrInvalidRecord
	}
	switch string(u.ID) {
	case "", "null", `""`:
		return ErrInvalidRecord
	}
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+3)
	for k, v := range r.Extra {
		out[k] = v
	}
	out["user"] = r.User
	out["token"] = r.Token
	if r.Exp != 0 {
		out["exp"] = r.Exp
	}
	return json.Marshal(out)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = Record{}
	if v, ok := raw["user"]; ok {
		r.User = v
		delete(raw, "user")
	}
	if v, ok := raw["token"]; ok {
		if err := json.Unmarshal(v, &r.Token); err != nil {
			return err
		}
		delete(raw, "token")
	}
	if v, ok := raw["exp"]; ok {
		if err := json.Unmarshal(v, &r.Exp); err != nil {
			return err
		}
		delete(raw, "exp")
	}
	if len(raw) > 0 {
		r.Extra = raw
	}
	return nil
}
