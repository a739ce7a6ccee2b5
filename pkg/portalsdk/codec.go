package portalsdk

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/portal/pkg/credstore"
	"github.com/aussiebroadwan/portal/pkg/jwtx"
)

// FallbackSessionTTL is used when neither the response nor the token carry
// an expiry.
const FallbackSessionTTL = 55 * time.Minute

// zone-less layouts the backend emits, interpreted as UTC
var utcLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// EncodeSession builds the record persisted after a credential-issuing
// call. The expiry is resolved once, first match wins:
//
//  1. expiresAtUtc from the response, zone-less values read as UTC
//  2. the exp claim of the access token, when it is a JWT
//  3. now + FallbackSessionTTL
func EncodeSession(resp AuthResponse, now time.Time) credstore.Record {
	exp, ok := parseExpiresAt(resp.ExpiresAtUtc)
	if !ok {
		exp, ok = jwtx.UnverifiedExpiry(resp.AccessToken)
	}
	if !ok {
		exp = now.Add(FallbackSessionTTL)
	}

	// User holds only strings, bools and a *int, so Marshal cannot fail.
	user, _ := json.Marshal(resp.Usuario)

	return credstore.Record{
		User:  user,
		Token: resp.AccessToken,
		Exp:   exp.UnixMilli(),
	}
}

// DecodeUser reads the user snapshot out of a stored record.
func DecodeUser(rec credstore.Record) (User, error) {
	var u User
	if err := json.Unmarshal(rec.User, &u); err != nil {
		return User{}, fmt.Errorf("decode session user: %w", err)
	}
	return u, nil
}

func parseExpiresAt(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	for _, layout := range utcLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
