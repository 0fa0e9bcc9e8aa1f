package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ylai/autoplatform/validation"
)

func newLoginCmd(c *cli) *cobra.Command {
	var (
		username string
		password string
		logout   bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the backend and save the access token",
		Long: `Posts the credentials to the login endpoint and saves the returned token
and role in the configured store, where the other commands pick it up.

The password may also come from YLAI_PASSWORD. With auth.demo_mode a failed
login starts a local demo session instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := c.openSession()
			if err != nil {
				return err
			}
			defer s.Close()
			out := cmd.OutOrStdout()

			if logout {
				if err := s.auth.Logout(cmd.Context()); err != nil {
					return err
				}
				if err := s.roleTopic().Publish(cmd.Context(), ""); err != nil {
					return err
				}
				fmt.Fprintln(out, "logged out")
				return nil
			}

			if password == "" {
				password = os.Getenv("YLAI_PASSWORD")
			}
			if err := validation.New().
				Required("username", username).
				Required("password", password).
				Validate(); err != nil {
				return err
			}

			res, err := s.auth.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("login failed: %s", res.Message)
			}
			if err := s.roleTopic().Publish(cmd.Context(), string(res.Role)); err != nil {
				return err
			}
			fmt.Fprintf(out, "logged in as %s (%s)\n", username, res.Role)
			if strings.HasPrefix(res.Token, "demo-") {
				fmt.Fprintln(out, "backend unreachable, using a demo session")
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&username, "username", "u", "", "user name")
	f.StringVarP(&password, "password", "p", "", "password (default: $YLAI_PASSWORD)")
	f.BoolVar(&logout, "logout", false, "forget the saved token")
	return cmd
}
