package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/triage/internal/cli"
	"github.com/aretw0/triage/pkg/domain"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the triage service",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		return cli.Login(cmd.Context(), app, cmd.OutOrStdout(), email, password)
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		var creds domain.Credentials
		creds.Email, _ = cmd.Flags().GetString("email")
		creds.Password, _ = cmd.Flags().GetString("password")
		creds.Name, _ = cmd.Flags().GetString("name")
		return cli.Register(cmd.Context(), app, cmd.OutOrStdout(), creds)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored token",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		return cli.Logout(cmd.Context(), app, cmd.OutOrStdout())
	},
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().String("email", "", "Account email")
		c.Flags().String("password", "", "Account password")
		_ = c.MarkFlagRequired("email")
		_ = c.MarkFlagRequired("password")
	}
	registerCmd.Flags().String("name", "", "Display name")
	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd)
}
