package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/portal/pkg/credstore"
	"github.com/aussiebroadwan/portal/pkg/portalsdk"
)

// maxCodeAttempts is how many 2FA codes a login prompts for before giving up.
const maxCodeAttempts = 3

func newLoginCmd(rt *runtime) *cobra.Command {
	var (
		email         string
		remember      bool
		passwordStdin bool
		always2FA     bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the merchant portal",
		Long: `Log in with email and password. When the server asks for a second
factor, the code sent by email is prompted for. With --remember the session
survives new terminals; without it, it lasts for the current shell only.`,
		Args: cobra.NoArgs,
		RunE: rt.run(func(cmd *cobra.Command, _ []string) error {
			var err error
			if email == "" {
				if email, err = rt.prompt(cmd, "Email: "); err != nil {
					return err
				}
			}
			label := "Password: "
			if passwordStdin {
				label = ""
			}
			password, err := rt.prompt(cmd, label)
			if err != nil {
				return err
			}

			creds := portalsdk.Credentials{Email: email, Password: password, Remember: remember}
			if always2FA {
				err = rt.loginWithChallenge(cmd, creds)
			} else {
				err = rt.loginSmart(cmd, creds)
			}
			if err != nil {
				return err
			}

			u, _ := rt.s.client.Auth().User()
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s <%s>\n", u.DisplayName(), u.Email)
			return nil
		}),
	}

	cmd.Flags().StringVar(&email, "email", "", "account email (prompted if omitted)")
	cmd.Flags().BoolVar(&remember, "remember", false, "keep the session after this shell exits")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin without a prompt")
	cmd.Flags().BoolVar(&always2FA, "always-2fa", false, "always confirm a code, even on a trusted device")
	return guarded(cmd, guardGuest)
}

func (rt *runtime) loginSmart(cmd *cobra.Command, creds portalsdk.Credentials) error {
	auth := rt.s.client.Auth()
	res, err := auth.LoginSmart(cmd.Context(), creds)
	if err != nil {
		return err
	}
	if res.Challenge == nil {
		return nil
	}
	return rt.confirmCode(cmd, res.Challenge, auth.Confirm2FA)
}

// loginWithChallenge is the client driven flow: start a challenge, confirm
// it, which sets the device trust cookie, and log in again.
func (rt *runtime) loginWithChallenge(cmd *cobra.Command, creds portalsdk.Credentials) error {
	auth := rt.s.client.Auth()
	ch, err := auth.StartChallenge(cmd.Context(), creds)
	if err != nil {
		return err
	}
	if err := rt.confirmCode(cmd, ch, auth.ConfirmChallenge); err != nil {
		return err
	}
	_, err = auth.FinalizeLogin(cmd.Context(), creds)
	return err
}

// confirmCode prompts for the emailed code until submit accepts it. Only a
// malformed or wrong code is retried; an expired challenge or a lockout
// ends the login.
func (rt *runtime) confirmCode(
	cmd *cobra.Command,
	ch *portalsdk.Challenge,
	submit func(ctx context.Context, challengeID, code string) error,
) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "A verification code was sent to %s.\n", ch.MaskedEmail)

	for attempt := 1; ; attempt++ {
		code, err := rt.prompt(cmd, "Code: ")
		if err != nil {
			return err
		}
		err = submit(cmd.Context(), ch.ChallengeID, code)
		if err == nil {
			return nil
		}
		if attempt == maxCodeAttempts || !retryableCode(err) {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), err)
	}
}

func retryableCode(err error) bool {
	if errors.Is(err, portalsdk.ErrInvalidCode) {
		return true
	}
	apiErr, ok := portalsdk.IsAPIError(err)
	return ok && apiErr.StatusCode == http.StatusBadRequest
}

func newLogoutCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: rt.run(func(cmd *cobra.Command, _ []string) error {
			rt.s.client.Auth().Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		}),
	}
}

func newRefreshCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Renew the session using the saved cookies",
		Args:  cobra.NoArgs,
		RunE: rt.run(func(cmd *cobra.Command, _ []string) error {
			if !rt.s.client.Auth().Refresh(cmd.Context()) {
				return &RedirectError{Path: portalsdk.LoginPath}
			}
			rec, _ := rt.s.client.Auth().Record()
			fmt.Fprintf(cmd.OutOrStdout(), "Session renewed until %s\n", expiry(rec))
			return nil
		}),
	}
}

func newWhoamiCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: rt.run(func(cmd *cobra.Command, _ []string) error {
			u, _ := rt.s.client.Auth().User()
			rec, _ := rt.s.client.Auth().Record()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s <%s>\n", u.DisplayName(), u.Email)
			fmt.Fprintf(out, "  ID:        %s\n", u.ID)
			if u.TipoCadastro != nil {
				fmt.Fprintf(out, "  Type:      %s\n", *u.TipoCadastro)
			}
			if u.CpfCnpjFormatado != "" {
				fmt.Fprintf(out, "  Document:  %s\n", u.CpfCnpjFormatado)
			}
			fmt.Fprintf(out, "  Admin:     %t\n", u.IsAdmin)
			fmt.Fprintf(out, "  Complete:  %t\n", u.CadastroCompleto)
			fmt.Fprintf(out, "  Session:   %s, expires %s\n", scopeLabel(rt.s.store.ScopeOf()), expiry(rec))
			return nil
		}),
	}
	return guarded(cmd, guardAuth)
}

func expiry(rec *credstore.Record) string {
	if rec == nil {
		return "-"
	}
	return rec.ExpiresAt().Local().Format(time.RFC3339)
}

func scopeLabel(s credstore.Scope) string {
	switch s {
	case credstore.Durable:
		return "remembered"
	case credstore.Ephemeral:
		return "this shell only"
	default:
		return "none"
	}
}
