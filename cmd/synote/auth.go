package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/synote"
)

var (
	password   string
	resetToken string
)

// readPassword takes --password, else prompts without echo on a terminal,
// else reads one line from stdin.
func readPassword(prompt string) (string, error) {
	if password != "" {
		return password, nil
	}
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		return string(raw), err
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

var signupCmd = &cobra.Command{
	Use:   "signup [email]",
	Short: "Create an account and sign in",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, a *app) error {
			pw, err := readPassword("Password: ")
			if err != nil {
				return err
			}
			if err := a.client.SignUp(ctx, args[0], pw); err != nil {
				return err
			}
			fmt.Printf("Signed up as %s\n", args[0])
			return a.saveToken()
		})
	},
}

var signinCmd = &cobra.Command{
	Use:   "signin [email]",
	Short: "Sign in with email and password",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, a *app) error {
			pw, err := readPassword("Password: ")
			if err != nil {
				return err
			}
			if err := a.client.SignIn(ctx, args[0], pw); err != nil {
				return err
			}
			fmt.Printf("Signed in as %s\n", args[0])
			return a.saveToken()
		})
	},
}

var guestCmd = &cobra.Command{
	Use:   "guest",
	Short: "Continue as a guest; notes stay on this device",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, a *app) error {
			if err := a.client.SignInAnonymously(ctx); err != nil {
				return err
			}
			fmt.Println("Signed in as guest")
			return a.saveToken()
		})
	},
}

var signoutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Sign out",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, a *app) error {
			if _, err := a.session(ctx); err != nil {
				return err
			}
			decision, err := a.client.SignOut(ctx)
			if err != nil {
				return err
			}
			if decision == synote.Awaiting {
				if !confirm("Sign out?") {
					return nil
				}
				if _, err := a.client.SignOut(ctx); err != nil {
					return err
				}
			}
			a.forgetToken()
			fmt.Println("Signed out")
			return nil
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset [email]",
	Short: "Reset a forgotten password",
	Long: `Without --token, issues a reset token for the account.
With --token, sets a new password using that token.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, a *app) error {
			if resetToken == "" {
				email := ""
				if len(args) == 1 {
					email = args[0]
				}
				return a.client.SendPasswordReset(ctx, email)
			}
			pw, err := readPassword("New password: ")
			if err != nil {
				return err
			}
			if err := a.provider.ResetPassword(ctx, resetToken, pw); err != nil {
				return err
			}
			fmt.Println("Password updated")
			return nil
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withApp(func(ctx context.Context, a *app) error {
			u := a.provider.CurrentUser()
			switch {
			case u == nil:
				return errors.New("not signed in")
			case u.Anonymous:
				fmt.Printf("guest (%s)\n", u.ID)
			default:
				fmt.Printf("%s (%s)\n", u.Email, u.ID)
			}
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{signupCmd, signinCmd, resetCmd} {
		c.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	}
	resetCmd.Flags().StringVar(&resetToken, "token", "", "Reset token")
	rootCmd.AddCommand(signupCmd, signinCmd, guestCmd, signoutCmd, resetCmd, whoamiCmd)
}
