package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config is resolved from, in increasing precedence: defaults, the
// config file, PFACIL_* environment variables (a .env file is honored)
// and command-line flags.
type Config struct {
	// APIURL is the base URL of the budgeting backend.
	APIURL string `mapstructure:"api_url"`

	// Identity provider settings.
	IdentityURL    string `mapstructure:"identity_url"`
	IdentityAPIKey string `mapstructure:"identity_api_key"`

	// Google OAuth client for federated sign-in.
	GoogleClientID     string `mapstructure:"google_client_id"`
	GoogleClientSecret string `mapstructure:"google_client_secret"`
	OAuthListenAddr    string `mapstructure:"oauth_listen_addr"`

	// Loopback server that receives the Truelayer redirect. ReturnPath
	// must match the redirect URI configured on the backend.
	CallbackAddr string `mapstructure:"callback_addr"`
	ReturnPath   string `mapstructure:"return_path"`

	// TokenDir overrides where the bearer token file lives; empty means
	// the user config directory.
	TokenDir string `mapstructure:"token_dir"`

	// Limit truncates the transaction feed to the N most recent entries
	// after the global sort; 0 keeps everything.
	Limit int `mapstructure:"limit"`
}

// Build loads configuration from cfgFile (default config.yaml) plus
// environment and flag overrides.
func Build(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	_ = gotenv.Load()

	v := viper.New()
	v.SetDefault("api_url", "http://localhost:8000")
	v.SetDefault("identity_url", "https://identitytoolkit.googleapis.com")
	v.SetDefault("identity_api_key", "")
	v.SetDefault("google_client_id", "")
	v.SetDefault("google_client_secret", "")
	v.SetDefault("oauth_listen_addr", "localhost:8085")
	v.SetDefault("callback_addr", "localhost:8400")
	v.SetDefault("return_path", "/callback")
	v.SetDefault("token_dir", "")
	v.SetDefault("limit", 0)

	v.SetEnvPrefix("PFACIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/pfacil")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
