/*
Package portalsdk is the client SDK for the merchant portal API.

# Overview

A Client owns an http.Client whose transport attaches the current bearer
token to every request, plus a cookie jar for the cookies the backend uses
for device trust and silent refresh. Authentication state lives in an
AuthState, reachable through Client.Auth, which persists the session via a
credstore.Store.

	store := credstore.New(credstore.Options{
		Durable:              durableKV,
		Ephemeral:            credstore.NewMemoryKV(),
		HasPersistentStorage: true,
	})
	client, err := portalsdk.NewClient(portalsdk.Config{
		BaseURL: "https://api.example.com",
		Store:   store,
	})

# Login

LoginSmart posts the credentials. The backend either issues a session right
away (200) or asks for a step-up code sent by email (202):

	res, err := client.Auth().LoginSmart(ctx, portalsdk.Credentials{
		Email: email, Password: password, Remember: true,
	})
	if res.Status == http.StatusAccepted {
		err = client.Auth().Confirm2FA(ctx, res.Challenge.ChallengeID, code)
	}

Flows that always require 2FA use StartChallenge, ConfirmChallenge and
FinalizeLogin instead; the confirmation sets a trust cookie and the final
login is expected to return 200.

# Sessions

The session record holds a user snapshot, the token and an absolute expiry
resolved once at write time (see EncodeSession). AuthState.Token only
returns a token while now is before that expiry. Refresh relies on cookies
alone and clears the session on any failure; Logout clears local state
first and never fails.

# Errors

Every operation returns *APIError, whose Message is ready to display. Use
errors.Is with ErrUnexpectedResponse, Err2FAFailed, ErrInvalidCode and
ErrTransport to tell categories apart. Client-side form rules fail with
*ValidationError before any request is sent.
*/
package portalsdk
