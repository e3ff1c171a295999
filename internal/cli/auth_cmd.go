package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/soyeahso/zeyn/internal/api"
	"github.com/soyeahso/zeyn/internal/domain"
	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				var err error
				in := bufio.NewReader(cmd.InOrStdin())
				if email == "" {
					if email, err = prompt(in, cmd.OutOrStdout(), "Email: "); err != nil {
						return err
					}
				}
				if password == "" {
					if password, err = prompt(in, cmd.OutOrStdout(), "Password: "); err != nil {
						return err
					}
				}

				resp, err := a.api.Login(ctx, email, password)
				if err != nil {
					if api.IsUnauthorized(err) {
						return errors.New("login failed: wrong email or password")
					}
					return fmt.Errorf("login failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", resp.Email, strings.Join(resp.Roles, ", "))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when empty)")
	return cmd
}

func newRegisterCmd() *cobra.Command {
	var (
		email, password, fullName string
		specialist                bool
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}
			role := domain.AccountParent
			if specialist {
				role = domain.AccountSpecialist
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				resp, err := a.api.Register(ctx, domain.RegisterRequest{
					Email:    email,
					Password: password,
					Role:     role,
					FullName: fullName,
				})
				if err != nil {
					return fmt.Errorf("registration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s as %s\n", resp.Email, role)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&fullName, "name", "", "full name")
	cmd.Flags().BoolVar(&specialist, "specialist", false, "register a specialist instead of a parent account")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.api.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
				return nil
			})
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.requireLogin(ctx); err != nil {
					return err
				}
				u, err := a.api.Me(ctx)
				if err != nil {
					if api.IsUnauthorized(err) {
						return errors.New("session expired; run `zeyn login` again")
					}
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:    %s\n", u.ID)
				fmt.Fprintf(out, "Email: %s\n", u.Email)
				if u.FullName != "" {
					fmt.Fprintf(out, "Name:  %s\n", u.FullName)
				}
				fmt.Fprintf(out, "Roles: %s\n", strings.Join(u.Roles, ", "))
				return nil
			})
		},
	}
}
