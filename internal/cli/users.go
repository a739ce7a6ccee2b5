package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/portal/pkg/portalsdk"
)

func newRegisterCmd(rt *runtime) *cobra.Command {
	var (
		in            portalsdk.UserCreate
		kind          string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a merchant account",
		Args:  cobra.NoArgs,
		RunE: rt.run(func(cmd *cobra.Command, _ []string) error {
			switch kind {
			case "":
			case "pf":
				t := portalsdk.PessoaFisica
				in.TipoCadastro = &t
			case "pj":
				t := portalsdk.PessoaJuridica
				in.TipoCadastro = &t
			default:
				return fmt.Errorf("unknown registration type %q (want pf or pj)", kind)
			}

			label := "Password: "
			if passwordStdin {
				label = ""
			}
			var err error
			if in.Senha, err = rt.prompt(cmd, label); err != nil {
				return err
			}

			u, err := rt.s.client.Register(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account %d created for %s. Log in to complete the registration.\n", u.ID, u.Email)
			return nil
		}),
	}

	cmd.Flags().StringVar(&in.Nome, "name", "", "full name")
	cmd.Flags().StringVar(&in.Email, "email", "", "account email")
	cmd.Flags().StringVar(&kind, "type", "", "registration type: pf (individual) or pj (company)")
	cmd.Flags().StringVar(&in.CpfCnpj, "document", "", "CPF or CNPJ")
	cmd.Flags().StringVar(&in.Telefone, "phone", "", "phone number")
	cmd.Flags().StringVar(&in.Instagram, "instagram", "", "instagram handle")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin without a prompt")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return guarded(cmd, guardGuest)
}

func newForgotPasswordCmd(rt *runtime) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Email a password reset link",
		Args:  cobra.NoArgs,
		RunE: rt.run(func(cmd *cobra.Command, _ []string) error {
			if err := rt.s.client.ForgotPassword(cmd.Context(), email); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "If the email is registered, a reset link is on its way.")
			return nil
		}),
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return guarded(cmd, guardGuest)
}

func newResetPasswordCmd(rt *runtime) *cobra.Command {
	var (
		token         string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password with the emailed token",
		Args:  cobra.NoArgs,
		RunE: rt.run(func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			ok, err := rt.s.client.ValidateResetToken(ctx, token)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("the reset token is invalid or has expired")
			}

			label := "New password: "
			if passwordStdin {
				label = ""
			}
			password, err := rt.prompt(cmd, label)
			if err != nil {
				return err
			}
			if err := rt.s.client.ResetPassword(ctx, token, password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password changed.")
			return nil
		}),
	}

	cmd.Flags().StringVar(&token, "token", "", "reset token from the email")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin without a prompt")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}
