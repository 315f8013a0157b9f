package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pfacil/pfacil/pkg/models"
)

// ErrNoResponse is returned when the request never reached the server or
// no response came back before the timeout.
var ErrNoResponse = errors.New("No se recibió respuesta del servidor")

// Error is a server-reported failure. Detail carries the backend's
// `detail` field when present, otherwise the operation's default message.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	return e.Detail
}

// TokenSource yields the bearer credential attached to every request.
// An empty token means the request goes out unauthenticated.
type TokenSource interface {
	Token() string
}

// Client is the single point of outbound HTTP communication with the
// Presupuesto Fácil backend. No retries, no caching; a fixed request
// timeout after which the call fails through the normal error path.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  *log.Logger
}

const requestTimeout = 5 * time.Second

func New(baseURL string, tokens TokenSource, logger *log.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
		tokens:  tokens,
		logger:  logger,
	}
}

// do performs a single JSON request/response round trip. Transport
// failures map to ErrNoResponse, non-2xx responses to *Error with the
// server detail when the body carries one, falling back to fallbackMsg.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, fallbackMsg string) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%w: %v", ErrNoResponse, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := fallbackMsg
		var payload struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Detail != "" {
			detail = payload.Detail
		}
		c.logger.Debug("server error", "method", method, "path", path, "status", resp.StatusCode, "detail", detail)
		return &Error{Status: resp.StatusCode, Detail: detail}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type registerPayload struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	GoogleID string `json:"google_id,omitempty"`
}

// Register creates a backend account. Exactly one of password or
// googleID is sent, matching the credential used to sign in.
func (c *Client) Register(ctx context.Context, fullName, email, password, googleID string) (*models.User, error) {
	payload := registerPayload{FullName: fullName, Email: email, Password: password}
	if googleID != "" {
		payload.Password = ""
		payload.GoogleID = googleID
	}
	var user models.User
	if err := c.do(ctx, http.MethodPost, "/register", nil, payload, &user, "Failed to register"); err != nil {
		return nil, err
	}
	return &user, nil
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	GoogleID string `json:"google_id,omitempty"`
}

func (c *Client) Login(ctx context.Context, email, password, googleID string) error {
	payload := loginPayload{Email: email, Password: password, GoogleID: googleID}
	return c.do(ctx, http.MethodPost, "/users/login", nil, payload, nil, "Error logging in user")
}

// CheckUserResult reports whether a backend account exists for the
// given identity.
type CheckUserResult struct {
	Exists bool `json:"exists"`
}

func (c *Client) CheckUser(ctx context.Context, email, googleID string) (*CheckUserResult, error) {
	query := url.Values{"email": {email}}
	if googleID != "" {
		query.Set("google_id", googleID)
	}
	var result CheckUserResult
	if err := c.do(ctx, http.MethodGet, "/me", query, nil, &result, "Error checking user"); err != nil {
		return nil, err
	}
	return &result, nil
}

// LinkAuthURL asks the backend for the external Truelayer authorization
// URL the user must visit to link an account.
func (c *Client) LinkAuthURL(ctx context.Context) (string, error) {
	var resp struct {
		AuthURL string `json:"auth_url"`
	}
	if err := c.do(ctx, http.MethodPost, "/connect-truelayer", nil, nil, &resp, "Failed to get Truelayer authentication URL"); err != nil {
		return "", err
	}
	return resp.AuthURL, nil
}

// ExchangeCode trades an authorization code for the linked accounts.
// Callers refresh the account list afterwards instead of trusting this
// response body.
func (c *Client) ExchangeCode(ctx context.Context, code, state string) ([]models.Account, error) {
	query := url.Values{"code": {code}}
	if state != "" {
		query.Set("state", state)
	}
	var resp struct {
		Message  string           `json:"message"`
		Accounts []models.Account `json:"accounts"`
	}
	if err := c.do(ctx, http.MethodGet, "/callback", query, nil, &resp, "Failed to process Truelayer callback"); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

func (c *Client) Accounts(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	if err := c.do(ctx, http.MethodGet, "/accounts", nil, nil, &accounts, "Failed to get user accounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *Client) SyncAccounts(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/accounts/sync", nil, nil, nil, "Failed to sync accounts")
}

func (c *Client) Transactions(ctx context.Context, accountID string) ([]models.Transaction, error) {
	var transactions []models.Transaction
	path := "/accounts/" + url.PathEscape(accountID) + "/transactions"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &transactions, "Failed to get transactions"); err != nil {
		return nil, err
	}
	return transactions, nil
}

func (c *Client) SyncTransactions(ctx context.Context, accountID string) error {
	path := "/accounts/" + url.PathEscape(accountID) + "/sync-transactions"
	return c.do(ctx, http.MethodPost, path, nil, nil, nil, "Failed to sync transactions")
}

// UpdateTransaction pushes the whole record back; there is no partial
// patch, last writer wins.
func (c *Client) UpdateTransaction(ctx context.Context, id string, tx models.Transaction) (*models.Transaction, error) {
	var updated models.Transaction
	path := "/transactions/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodPut, path, nil, tx, &updated, "Failed to update transaction"); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) Categories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := c.do(ctx, http.MethodGet, "/categories/", nil, nil, &categories, "Failed to get categories"); err != nil {
		return nil, err
	}
	return categories, nil
}

func (c *Client) CreateCategory(ctx context.Context, payload models.CategoryCreate) (*models.Category, error) {
	var category models.Category
	if err := c.do(ctx, http.MethodPost, "/categories/", nil, payload, &category, "Failed to create category"); err != nil {
		return nil, err
	}
	return &category, nil
}

func (c *Client) UpdateCategory(ctx context.Context, id int64, payload models.CategoryUpdate) (*models.Category, error) {
	var category models.Category
	path := fmt.Sprintf("/categories/%d", id)
	if err := c.do(ctx, http.MethodPut, path, nil, payload, &category, "Failed to update category"); err != nil {
		return nil, err
	}
	return &category, nil
}

func (c *Client) DeleteCategory(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/categories/%d", id)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil, "Failed to delete category")
}

func (c *Client) CategoryGroups(ctx context.Context) ([]models.CategoryGroup, error) {
	var groups []models.CategoryGroup
	if err := c.do(ctx, http.MethodGet, "/category-groups/", nil, nil, &groups, "Failed to get category groups"); err != nil {
		return nil, err
	}
	return groups, nil
}

// CreateCategoryGroup returns the full refreshed group list; the backend
// answers the creation with the authoritative set, not the single row.
func (c *Client) CreateCategoryGroup(ctx context.Context, name string) ([]models.CategoryGroup, error) {
	payload := struct {
		Name string `json:"name"`
	}{Name: name}
	var groups []models.CategoryGroup
	if err := c.do(ctx, http.MethodPost, "/category-groups/", nil, payload, &groups, "Failed to create category group"); err != nil {
		return nil, err
	}
	return groups, nil
}

func (c *Client) DeleteCategoryGroup(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/category-groups/%d", id)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil, "Failed to delete category group")
}

// SpentByCategory maps category id to spent-to-date amount.
func (c *Client) SpentByCategory(ctx context.Context) (map[int64]float64, error) {
	var spent map[int64]float64
	if err := c.do(ctx, http.MethodGet, "/categories/spent", nil, nil, &spent, "Failed to get spent amounts"); err != nil {
		return nil, err
	}
	return spent, nil
}

func (c *Client) Budgets(ctx context.Context) ([]models.Budget, error) {
	var budgets []models.Budget
	if err := c.do(ctx, http.MethodGet, "/budgets/", nil, nil, &budgets, "Failed to get budgets"); err != nil {
		return nil, err
	}
	return budgets, nil
}

func (c *Client) CreateBudget(ctx context.Context, payload models.BudgetCreate) (*models.Budget, error) {
	var budget models.Budget
	if err := c.do(ctx, http.MethodPost, "/budgets/", nil, payload, &budget, "Failed to create budget"); err != nil {
		return nil, err
	}
	return &budget, nil
}

func (c *Client) ReadyToAssign(ctx context.Context) (float64, error) {
	var resp struct {
		ReadyToAssign float64 `json:"ready_to_assign"`
	}
	if err := c.do(ctx, http.MethodGet, "/ready-to-assign/", nil, nil, &resp, "Failed to get ready to assign"); err != nil {
		return 0, err
	}
	return resp.ReadyToAssign, nil
}
