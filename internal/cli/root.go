// Package cli is the merchant portal on the command line. Every invocation
// restores the session left by the previous one, runs the command's
// admission guard and saves the session back on exit.
package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// Command annotations naming the guard run before the command.
const (
	guardKey   = "guard"
	guardAuth  = "auth"
	guardGuest = "guest"
)

// runtime is shared by the commands of one root. It is not a package
// global so tests can build several roots side by side.
type runtime struct {
	cfg Config
	s   *session
	in  *bufio.Reader
}

// NewRootCmd creates the root command. cfg supplies the flag defaults.
func NewRootCmd(cfg Config) *cobra.Command {
	rt := &runtime{cfg: cfg}

	root := &cobra.Command{
		Use:           "portal",
		Short:         "Merchant portal client",
		Long:          "portal logs in to the merchant API and manages orders, transfers and webhooks.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Cobra checks these only after this hook; fail before
			// anything is opened.
			if err := cmd.ValidateRequiredFlags(); err != nil {
				return err
			}
			s, err := openSession(rt.cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := s.admit(cmd.Context(), cmd.Annotations[guardKey]); err != nil {
				_ = s.Close()
				return err
			}
			rt.s = s
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&rt.cfg.API, "api", cfg.API, "merchant API base URL (or PORTAL_API env)")
	flags.StringVar(&rt.cfg.StateDir, "state-dir", cfg.StateDir, "directory holding the saved session (or PORTAL_STATE_DIR env)")
	flags.StringVar(&rt.cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&rt.cfg.LogFormat, "log-format", cfg.LogFormat, "log format (text, json)")

	root.AddCommand(
		newLoginCmd(rt),
		newLogoutCmd(rt),
		newRefreshCmd(rt),
		newWhoamiCmd(rt),
		newRegisterCmd(rt),
		newForgotPasswordCmd(rt),
		newResetPasswordCmd(rt),
		newOrdersCmd(rt),
		newTransfersCmd(rt),
		newWebhooksCmd(rt),
	)

	return root
}

type runFunc func(cmd *cobra.Command, args []string) error

// run wraps a command body so the session opened by the root's pre-run is
// always closed, whether the body fails or not.
func (rt *runtime) run(fn runFunc) runFunc {
	return func(cmd *cobra.Command, args []string) error {
		defer func() {
			if err := rt.s.Close(); err != nil {
				rt.s.log.Warn("close session failed", "err", err)
			}
			rt.s = nil
		}()
		return fn(cmd, args)
	}
}

func guarded(cmd *cobra.Command, guard string) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[guardKey] = guard
	return cmd
}

// prompt writes label to stderr and reads one line from the command's
// input. A single reader is kept so buffered input is not lost between
// prompts.
func (rt *runtime) prompt(cmd *cobra.Command, label string) (string, error) {
	if rt.in == nil {
		rt.in = bufio.NewReader(cmd.InOrStdin())
	}
	if label != "" {
		fmt.Fprint(cmd.ErrOrStderr(), label)
	}
	line, err := rt.in.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return line, nil
}
