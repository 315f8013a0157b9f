package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/pfacil/pfacil/pkg/api"
	"github.com/pfacil/pfacil/pkg/config"
	"github.com/pfacil/pfacil/pkg/identity"
	"github.com/pfacil/pfacil/pkg/session"
	"github.com/pfacil/pfacil/pkg/token"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "pfacil",
	Short: "Presupuesto Fácil command-line client",
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Show help when no subcommand is provided
		return cmd.Help()
	},
}

// app bundles the wiring every command needs.
type app struct {
	cfg    *config.Config
	logger *log.Logger
	store  *token.Store
	api    *api.Client
}

func newApp(cmd *cobra.Command) (*app, error) {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "pfacil",
	})

	cfg, err := config.Build(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	store, err := token.NewStore(cfg.TokenDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		api:    api.New(cfg.APIURL, store, logger),
	}, nil
}

// sessions builds the identity provider and session manager on top of
// the app wiring.
func (a *app) sessions() *session.Manager {
	var google *identity.GoogleFlow
	if a.cfg.GoogleClientID != "" {
		google = &identity.GoogleFlow{
			ClientID:     a.cfg.GoogleClientID,
			ClientSecret: a.cfg.GoogleClientSecret,
			ListenAddr:   a.cfg.OAuthListenAddr,
			Logger:       a.logger,
		}
	}
	provider := identity.NewRESTProvider(a.cfg.IdentityURL, a.cfg.IdentityAPIKey, google, a.logger)
	manager := session.NewManager(provider, a.api, a.store, a.logger)
	manager.Start()
	return manager
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default is config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
