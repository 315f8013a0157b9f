package main

import (
	"fmt"

	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"

	"github.com/pfacil/pfacil/pkg/feed"
	"github.com/pfacil/pfacil/pkg/models"
)

var (
	txAccount string
	txLimit   int
	txSync    bool
	txDump    bool

	editDescription string
	editAmount      float64
	editCategory    int64
)

var transactionsCmd = &cobra.Command{
	Use:   "transactions",
	Short: "Show the combined transaction feed",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}

		limit := txLimit
		if limit == 0 {
			limit = app.cfg.Limit
		}

		// A single account bypasses the aggregator.
		if txAccount != "" {
			if txSync {
				if err := app.api.SyncTransactions(cmd.Context(), txAccount); err != nil {
					return err
				}
			}
			txs, err := app.api.Transactions(cmd.Context(), txAccount)
			if err != nil {
				return err
			}
			if txDump {
				pp.Println(txs)
				return nil
			}
			printTransactions(txs)
			return nil
		}

		service := feed.NewService(app.api, limit, app.logger)
		var txs []models.Transaction
		if txSync {
			txs, err = service.SyncAll(cmd.Context())
		} else {
			txs, err = service.Refresh(cmd.Context())
		}
		if err != nil {
			return err
		}
		if txDump {
			pp.Println(txs)
			return nil
		}
		printTransactions(txs)
		return nil
	},
}

var transactionsEditCmd = &cobra.Command{
	Use:   "edit <transaction_id>",
	Short: "Edit a transaction's description, amount or category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		id := args[0]

		service := feed.NewService(app.api, 0, app.logger)
		txs, err := service.Refresh(cmd.Context())
		if err != nil {
			return err
		}

		var target *models.Transaction
		for i := range txs {
			if txs[i].TransactionID == id {
				target = &txs[i]
				break
			}
		}
		if target == nil {
			return fmt.Errorf("transaction %s not found", id)
		}

		if cmd.Flags().Changed("description") {
			target.Description = editDescription
		}
		if cmd.Flags().Changed("amount") {
			target.Amount = editAmount
		}
		if cmd.Flags().Changed("category") {
			if editCategory == 0 {
				target.CategoryID = nil
			} else {
				target.CategoryID = &editCategory
			}
		}

		// The whole record goes back and the feed is re-fetched so any
		// server-side normalization wins.
		updated, err := service.Update(cmd.Context(), *target)
		if err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Transacción actualizada."))
		printTransactions(updated)
		return nil
	},
}

func printTransactions(txs []models.Transaction) {
	if len(txs) == 0 {
		fmt.Println(faintStyle.Render("No hay transacciones recientes."))
		return
	}
	for _, t := range txs {
		amount := fmt.Sprintf("%.2f %s", t.Amount, t.Currency)
		if t.Amount >= 0 {
			amount = positiveStyle.Render(amount)
		} else {
			amount = negativeStyle.Render(amount)
		}
		line := fmt.Sprintf("%s | %-30s | %s", t.Timestamp.Format("2006-01-02 15:04"), t.Description, amount)
		if t.AccountName != "" {
			line += faintStyle.Render(" | Cuenta: " + t.AccountName)
		}
		fmt.Println(line)
	}
}

func init() {
	transactionsCmd.Flags().StringVar(&txAccount, "account", "", "Limit to a single account id")
	transactionsCmd.Flags().IntVar(&txLimit, "limit", 0, "Show only the N most recent transactions")
	transactionsCmd.Flags().BoolVar(&txSync, "sync", false, "Trigger a server-side refresh before listing")
	transactionsCmd.Flags().BoolVar(&txDump, "dump", false, "Dump raw decoded records")

	transactionsEditCmd.Flags().StringVar(&editDescription, "description", "", "New description")
	transactionsEditCmd.Flags().Float64Var(&editAmount, "amount", 0, "New amount")
	transactionsEditCmd.Flags().Int64Var(&editCategory, "category", 0, "Category id (0 clears it)")

	transactionsCmd.AddCommand(transactionsEditCmd)
	rootCmd.AddCommand(transactionsCmd)
}
