package identity

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleFlow performs the browser leg of federated sign-in: a loopback
// HTTP server receives the redirect, the authorization code is exchanged
// and the resulting Google ID token returned. The OAuth client must list
// http://<ListenAddr>/callback among its authorized redirect URIs.
type GoogleFlow struct {
	ClientID     string
	ClientSecret string
	ListenAddr   string
	Logger       *log.Logger

	// OpenURL presents the authorization URL to the user. Defaults to
	// printing it to stdout.
	OpenURL func(url string) error
}

const authorizeTimeout = 5 * time.Minute

func (g *GoogleFlow) Authorize(ctx context.Context) (string, error) {
	cfg := &oauth2.Config{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  "http://" + g.ListenAddr + "/callback",
		Scopes:       []string{"openid", "email", "profile"},
	}

	state := uuid.NewString()
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	srv := &http.Server{Addr: g.ListenAddr, Handler: mux}
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if errStr := r.URL.Query().Get("error"); errStr != "" {
			http.Error(w, "OAuth error: "+errStr, http.StatusBadRequest)
			errCh <- fmt.Errorf("authorization refused: %s", errStr)
			return
		}
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			errCh <- fmt.Errorf("authorization state mismatch")
			return
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		codeCh <- r.URL.Query().Get("code")
		go func() { time.Sleep(500 * time.Millisecond); _ = srv.Close() }()
	})
	go func() { _ = srv.ListenAndServe() }()
	defer srv.Close()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
	if g.OpenURL != nil {
		if err := g.OpenURL(authURL); err != nil {
			return "", err
		}
	} else {
		fmt.Printf("Open this URL to authorize:\n%s\n", authURL)
	}

	select {
	case code := <-codeCh:
		tok, err := cfg.Exchange(ctx, code)
		if err != nil {
			return "", fmt.Errorf("token exchange: %w", err)
		}
		idToken, _ := tok.Extra("id_token").(string)
		if idToken == "" {
			return "", fmt.Errorf("authorization response carried no id token")
		}
		return idToken, nil
	case err := <-errCh:
		return "", err
	case <-time.After(authorizeTimeout):
		return "", fmt.Errorf("authorization timed out")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
