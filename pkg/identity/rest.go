package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// RESTProvider talks to an Identity Toolkit style REST endpoint
// (accounts:signUp, accounts:signInWithPassword, accounts:signInWithIdp).
// It keeps the current user in memory and notifies subscribers on every
// change; nothing about the provider session is persisted locally.
type RESTProvider struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *log.Logger
	google  *GoogleFlow

	mu      sync.Mutex
	current *User
	subs    map[int]func(*User)
	nextSub int
}

func NewRESTProvider(baseURL, apiKey string, google *GoogleFlow, logger *log.Logger) *RESTProvider {
	return &RESTProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
		google:  google,
		subs:    make(map[int]func(*User)),
	}
}

type authResponse struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	IDToken     string `json:"idToken"`
}

func (p *RESTProvider) post(ctx context.Context, action string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/v1/accounts:%s?key=%s", p.baseURL, action, url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("identity request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var body struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		p.logger.Debug("identity error", "action", action, "status", resp.StatusCode, "code", body.Error.Message)
		return &ProviderError{Code: body.Error.Message}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (p *RESTProvider) SignUp(ctx context.Context, email, password string) (*User, string, error) {
	payload := map[string]any{"email": email, "password": password, "returnSecureToken": true}
	var resp authResponse
	if err := p.post(ctx, "signUp", payload, &resp); err != nil {
		return nil, "", err
	}
	return p.establish(resp)
}

func (p *RESTProvider) SignIn(ctx context.Context, email, password string) (*User, string, error) {
	payload := map[string]any{"email": email, "password": password, "returnSecureToken": true}
	var resp authResponse
	if err := p.post(ctx, "signInWithPassword", payload, &resp); err != nil {
		return nil, "", err
	}
	return p.establish(resp)
}

// FederatedSignIn runs the Google loopback flow and then trades the
// Google ID token for a provider session.
func (p *RESTProvider) FederatedSignIn(ctx context.Context) (*User, string, error) {
	if p.google == nil {
		return nil, "", fmt.Errorf("google sign-in is not configured")
	}
	googleToken, err := p.google.Authorize(ctx)
	if err != nil {
		return nil, "", err
	}
	payload := map[string]any{
		"postBody":            "id_token=" + googleToken + "&providerId=google.com",
		"requestUri":          "http://localhost",
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	}
	var resp authResponse
	if err := p.post(ctx, "signInWithIdp", payload, &resp); err != nil {
		return nil, "", err
	}
	return p.establish(resp)
}

func (p *RESTProvider) establish(resp authResponse) (*User, string, error) {
	user := &User{UID: resp.LocalID, Email: resp.Email, DisplayName: resp.DisplayName}
	p.setCurrent(user)
	return user, resp.IDToken, nil
}

func (p *RESTProvider) SignOut(_ context.Context) error {
	p.setCurrent(nil)
	return nil
}

func (p *RESTProvider) setCurrent(u *User) {
	p.mu.Lock()
	p.current = u
	fns := make([]func(*User), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(u)
	}
}

func (p *RESTProvider) Subscribe(fn func(*User)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	current := p.current
	p.mu.Unlock()

	fn(current)
	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}
