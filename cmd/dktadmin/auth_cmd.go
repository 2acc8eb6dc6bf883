package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alecgard/dktadmin/internal/crypto"
)

const forgotFallback = "If an account with that email exists, a password reset link has been sent."

var (
	loginEmail        string
	loginPasswordFile string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newCLIEnv(cmd)
		if err != nil {
			return err
		}
		email := strings.TrimSpace(loginEmail)
		if email == "" {
			fmt.Fprint(cmd.ErrOrStderr(), "Email: ")
			line, _ := env.in.ReadString('\n')
			email = strings.TrimSpace(line)
		}
		if email == "" {
			return fmt.Errorf("email is required")
		}
		password, err := env.readPassword(loginPasswordFile, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		if password == "" {
			return fmt.Errorf("password is required")
		}

		if _, err := env.session.SignIn(cmd.Context(), email, password); err != nil {
			return err
		}
		u := env.session.Snapshot().User
		fmt.Fprintf(env.out, "Logged in as %s <%s> (%s)\n", u.Name, u.Email, u.Role.Label())
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and remove the stored token",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newCLIEnv(cmd)
		if err != nil {
			return err
		}
		env.session.Logout(cmd.Context())
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newCLIEnv(cmd)
		if err != nil {
			return err
		}
		snap, err := env.requireSession(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(env.out, "%s <%s>\nrole: %s\n", snap.User.Name, snap.User.Email, snap.User.Role)
		return nil
	},
}

var forgotPasswordCmd = &cobra.Command{
	Use:   "forgot-password EMAIL",
	Short: "Request a password reset email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newCLIEnv(cmd)
		if err != nil {
			return err
		}
		msg, err := env.api.ForgotPassword(cmd.Context(), strings.TrimSpace(args[0]))
		if err != nil {
			return err
		}
		if msg == "" {
			msg = forgotFallback
		}
		fmt.Fprintln(env.out, msg)
		return nil
	},
}

var tokenKeyCmd = &cobra.Command{
	Use:   "token-key",
	Short: "Print a new key for sealing the stored CLI token (cli.token_key)",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := crypto.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email (prompted when empty)")
	loginCmd.Flags().StringVar(&loginPasswordFile, "password-file", "", "file holding the password, or - to prompt (default: prompt)")
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd, forgotPasswordCmd, tokenKeyCmd)
}
