package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	signupName     string
	signupEmail    string
	signupPassword string

	loginEmail    string
	loginPassword string
	loginGoogle   bool
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and sign in",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		manager := app.sessions()
		defer manager.Stop()

		sess, err := manager.SignUp(cmd.Context(), signupName, signupEmail, signupPassword)
		if err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Cuenta creada. Sesión iniciada."))
		app.logger.Debug("session established", "uid", sess.UserID)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with email/password or Google",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		manager := app.sessions()
		defer manager.Stop()

		if loginGoogle {
			if _, err := manager.SignInWithGoogle(cmd.Context()); err != nil {
				return err
			}
			fmt.Println(successStyle.Render("Sesión iniciada con Google."))
			return nil
		}

		if _, err := manager.SignIn(cmd.Context(), loginEmail, loginPassword); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Sesión iniciada."))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and discard the stored credential",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		manager := app.sessions()
		defer manager.Stop()

		if err := manager.SignOut(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Sesión cerrada.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show whether a credential is stored",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		if app.store.Token() == "" {
			fmt.Println(faintStyle.Render("No hay sesión guardada."))
			return nil
		}
		fmt.Println("Credencial guardada; las peticiones llevan el token almacenado.")
		return nil
	},
}

func init() {
	signupCmd.Flags().StringVar(&signupName, "name", "", "Full name")
	signupCmd.Flags().StringVar(&signupEmail, "email", "", "Email address")
	signupCmd.Flags().StringVar(&signupPassword, "password", "", "Password")

	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Email address")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Password")
	loginCmd.Flags().BoolVar(&loginGoogle, "google", false, "Sign in with Google")

	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}
