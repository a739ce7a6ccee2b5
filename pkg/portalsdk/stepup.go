package portalsdk

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/portal/pkg/credstore"
)

// OTPLength is the number of digits in a step-up code.
const OTPLength = 6

type confirmRequest struct {
	ChallengeID string `json:"challengeId"`
	Code        string `json:"code"`
}

// NormalizeOTP keeps only ASCII digits and truncates to OTPLength, so
// "12-34 56" becomes "123456".
func NormalizeOTP(code string) string {
	var b strings.Builder
	for _, r := range code {
		if b.Len() == OTPLength {
			break
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateOTP normalises code and rejects it unless it has exactly
// OTPLength digits.
func ValidateOTP(code string) (string, error) {
	code = NormalizeOTP(code)
	if len(code) != OTPLength {
		return "", &APIError{Message: MsgInvalidCode, Err: ErrInvalidCode}
	}
	return code, nil
}

// decodeChallenge accepts both the flat challenge body and the one nested
// under "challenge".
func decodeChallenge(body []byte) (*Challenge, error) {
	var wire struct {
		Challenge
		Nested *Challenge `json:"challenge"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, err
	}

	ch := wire.Challenge
	if wire.Nested != nil {
		ch = *wire.Nested
	}
	if ch.ChallengeID == "" {
		return nil, ErrUnexpectedResponse
	}
	return &ch, nil
}

// StartChallenge explicitly requests a step-up challenge for creds, for
// flows that always require 2FA. Nothing is persisted.
func (s *AuthState) StartChallenge(ctx context.Context, creds Credentials) (*Challenge, error) {
	resp, body, err := s.c.do(ctx, http.MethodPost, pathStart2FA, nil, creds, nil)
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		return nil, parseErrorResponse(resp, body, nil, "")
	}

	ch, err := decodeChallenge(body)
	if err != nil {
		return nil, unexpectedResponse(resp.StatusCode)
	}

	s.mu.Lock()
	s.pendingRemember = creds.Remember
	s.mu.Unlock()
	return ch, nil
}

// ConfirmChallenge submits the code for a challenge started with
// StartChallenge. Any 2xx (usually 204) is success; the server answers by
// setting the device trust cookie, which lands in the client's jar.
func (s *AuthState) ConfirmChallenge(ctx context.Context, challengeID, code string) error {
	code, err := ValidateOTP(code)
	if err != nil {
		return err
	}

	resp, body, err := s.c.do(ctx, http.MethodPost, pathConfirm2FA, nil, confirmRequest{
		ChallengeID: challengeID,
		Code:        code,
	}, nil)
	if err != nil {
		return err
	}
	if !isSuccess(resp.StatusCode) {
		apiErr := parseErrorResponse(resp, body, Err2FAFailed, Msg2FAFailed)
		s.log.Warn("2fa challenge rejected", "challenge_id", challengeID, "status", resp.StatusCode)
		return apiErr
	}
	return nil
}

// FinalizeLogin repeats the login now that the trust cookie is set. Only a
// 200 with a session completes the flow; anything else, including another
// challenge, is reported as Err2FAFailed.
func (s *AuthState) FinalizeLogin(ctx context.Context, creds Credentials) (*credstore.Record, error) {
	res, err := s.LoginSmart(ctx, creds)
	if err != nil {
		if apiErr, ok := IsAPIError(err); ok && apiErr.Err == nil {
			apiErr.Err = Err2FAFailed
		}
		return nil, err
	}
	if res.Status != http.StatusOK || res.Session == nil {
		return nil, &APIError{StatusCode: res.Status, Message: Msg2FAFailed, Err: Err2FAFailed}
	}
	return res.Session, nil
}
