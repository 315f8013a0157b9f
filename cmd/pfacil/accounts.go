package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pfacil/pfacil/pkg/link"
	"github.com/pfacil/pfacil/pkg/models"
)

var accountsSync bool

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List linked bank accounts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}

		if accountsSync {
			if err := app.api.SyncAccounts(cmd.Context()); err != nil {
				return err
			}
		}

		handler := link.NewHandler(app.api, &link.TerminalNavigator{Logger: app.logger}, app.logger)
		if err := handler.Refresh(cmd.Context()); err != nil {
			return err
		}
		printAccounts(handler.Accounts())
		return nil
	},
}

// linkWaitTimeout bounds how long the link command waits for the
// provider to redirect back.
const linkWaitTimeout = 5 * time.Minute

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Connect a bank account through Truelayer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}

		handler := link.NewHandler(app.api, &link.TerminalNavigator{Logger: app.logger}, app.logger)
		if err := handler.Initiate(cmd.Context()); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), linkWaitTimeout)
		defer cancel()

		server := link.NewCallbackServer(app.cfg.CallbackAddr, app.cfg.ReturnPath, handler, app.logger)
		if err := server.WaitForCallback(ctx); err != nil {
			if msg := handler.ErrorMessage(); msg != "" {
				fmt.Println(errorStyle.Render(msg))
			}
			return err
		}

		if notice := handler.Notice(); notice != "" {
			fmt.Println(successStyle.Render(notice))
		}
		printAccounts(handler.Accounts())
		return nil
	},
}

func printAccounts(accounts []models.Account) {
	if len(accounts) == 0 {
		fmt.Println(faintStyle.Render("No hay cuentas conectadas aún."))
		return
	}
	fmt.Println(titleStyle.Render("Sus Cuentas"))
	for _, a := range accounts {
		fmt.Printf("  %s (%s)\n", a.AccountName, a.AccountID)
		fmt.Printf("    Saldo: %.2f %s | Institución: %s | Tipo: %s\n",
			a.Balance, a.Currency, a.InstitutionName, a.AccountType)
	}
}

func init() {
	accountsCmd.Flags().BoolVar(&accountsSync, "sync", false, "Refresh accounts server-side before listing")

	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(linkCmd)
}
