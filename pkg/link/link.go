// Package link drives bank-account linking via delegated authorization.
// The handler is an explicit state machine over the navigation location:
// Idle -> AwaitingCode -> Exchanging -> Success|Failure -> Idle. It is
// independent of any rendering and of how locations are produced.
package link

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pfacil/pfacil/pkg/api"
	"github.com/pfacil/pfacil/pkg/models"
)

type State int

const (
	StateIdle State = iota
	StateAwaitingCode
	StateExchanging
	StateSuccess
	StateFailure
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingCode:
		return "awaiting_code"
	case StateExchanging:
		return "exchanging"
	case StateSuccess:
		return "success"
	case StateFailure:
		return "failure"
	}
	return "unknown"
}

// Location is a snapshot of the current navigation location. Code and
// state are always read from the same snapshot; two reads of a live
// location could pair a stale state with a fresh code.
type Location struct {
	Path  string
	Query url.Values
}

func LocationFromURL(u *url.URL) Location {
	return Location{Path: u.Path, Query: u.Query()}
}

// Navigator abstracts the two navigation effects the flow needs: a full
// navigation to the external authorization URL, and replacing the
// current history entry so back-navigation cannot re-trigger the
// exchange.
type Navigator interface {
	Open(url string) error
	Replace(loc Location)
}

// Gateway is the slice of the API client the link flow uses.
type Gateway interface {
	LinkAuthURL(ctx context.Context) (string, error)
	ExchangeCode(ctx context.Context, code, state string) ([]models.Account, error)
	Accounts(ctx context.Context) ([]models.Account, error)
}

const (
	msgCodeExpired   = "El código de autorización ha expirado. Vuelva a conectar su cuenta."
	msgCodeConsumed  = "El código de autorización ya ha sido utilizado. Inicie una nueva conexión."
	msgLinkFailed    = "No se pudo conectar con Truelayer. Por favor, inténtelo de nuevo."
	msgLoadFailed    = "No se pudieron cargar las cuentas. Por favor, inténtelo de nuevo más tarde."
	msgLinkSucceeded = "Cuentas conectadas exitosamente"
	msgNoAuthURL     = "No se recibió una URL de autenticación válida"
)

const noticeTTL = 5 * time.Second

// Handler owns the linking sub-flow state. A failed exchange marks only
// this flow as failed; the session is untouched and the user retries by
// initiating a new link, never by replaying the stale code.
type Handler struct {
	gw     Gateway
	nav    Navigator
	logger *log.Logger

	mu       sync.Mutex
	state    State
	consumed map[string]bool
	accounts []models.Account
	notice   string
	errMsg   string

	// noticeAfter is swapped out by tests to shorten the self-clear delay.
	noticeAfter time.Duration
}

func NewHandler(gw Gateway, nav Navigator, logger *log.Logger) *Handler {
	return &Handler{
		gw:          gw,
		nav:         nav,
		logger:      logger,
		state:       StateIdle,
		consumed:    make(map[string]bool),
		noticeAfter: noticeTTL,
	}
}

func (h *Handler) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Handler) Accounts() []models.Account {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]models.Account, len(h.accounts))
	copy(out, h.accounts)
	return out
}

func (h *Handler) Notice() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.notice
}

func (h *Handler) ErrorMessage() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.errMsg
}

// HandleLocation inspects a location snapshot and runs one pass of the
// state machine. Without a code parameter it degrades to a plain account
// refresh. A code already consumed by an earlier pass is ignored, so
// re-presenting the same location never re-fires the exchange.
func (h *Handler) HandleLocation(ctx context.Context, loc Location) error {
	code := loc.Query.Get("code")
	state := loc.Query.Get("state")

	if code == "" {
		return h.Refresh(ctx)
	}

	h.mu.Lock()
	if h.consumed[code] {
		h.mu.Unlock()
		h.logger.Debug("authorization code already handled, skipping", "path", loc.Path)
		return h.Refresh(ctx)
	}
	h.consumed[code] = true
	h.state = StateAwaitingCode
	h.mu.Unlock()

	h.setState(StateExchanging)
	h.logger.Info("exchanging authorization code")

	if _, err := h.gw.ExchangeCode(ctx, code, state); err != nil {
		msg := classifyExchange(err)
		h.mu.Lock()
		h.state = StateFailure
		h.errMsg = msg
		h.mu.Unlock()
		h.logger.Warn("authorization code exchange failed", "error", err)
		h.setState(StateIdle)
		return errors.New(msg)
	}

	// Full re-fetch; the exchange response is not merged into state.
	if err := h.refreshAccounts(ctx); err != nil {
		h.setState(StateIdle)
		return err
	}

	h.nav.Replace(stripAuthParams(loc))

	h.mu.Lock()
	h.state = StateSuccess
	h.errMsg = ""
	h.notice = msgLinkSucceeded
	h.mu.Unlock()

	time.AfterFunc(h.noticeAfter, func() {
		h.mu.Lock()
		if h.notice == msgLinkSucceeded {
			h.notice = ""
		}
		h.mu.Unlock()
	})

	h.setState(StateIdle)
	return nil
}

// Refresh reloads the account list without touching the link flow.
func (h *Handler) Refresh(ctx context.Context) error {
	if err := h.refreshAccounts(ctx); err != nil {
		return err
	}
	h.setState(StateIdle)
	return nil
}

func (h *Handler) refreshAccounts(ctx context.Context) error {
	accounts, err := h.gw.Accounts(ctx)
	if err != nil {
		h.mu.Lock()
		h.errMsg = msgLoadFailed
		h.mu.Unlock()
		h.logger.Warn("failed to load accounts", "error", err)
		return errors.New(msgLoadFailed)
	}
	h.mu.Lock()
	h.accounts = accounts
	h.errMsg = ""
	h.mu.Unlock()
	return nil
}

// Initiate asks the backend for the external authorization URL and
// performs a full navigation to it. The provider redirects back with
// code and state appended to the configured return path.
func (h *Handler) Initiate(ctx context.Context) error {
	authURL, err := h.gw.LinkAuthURL(ctx)
	if err != nil {
		h.mu.Lock()
		h.errMsg = msgLinkFailed
		h.mu.Unlock()
		return errors.New(msgLinkFailed)
	}
	if authURL == "" {
		h.mu.Lock()
		h.errMsg = msgNoAuthURL
		h.mu.Unlock()
		return errors.New(msgNoAuthURL)
	}
	return h.nav.Open(authURL)
}

func (h *Handler) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

func stripAuthParams(loc Location) Location {
	query := url.Values{}
	for k, vs := range loc.Query {
		if k == "code" || k == "state" {
			continue
		}
		query[k] = vs
	}
	return Location{Path: loc.Path, Query: query}
}

// classifyExchange maps an exchange failure to its user-facing message.
// The backend distinguishes an expired code from one already consumed;
// the two must surface differently so the user knows whether to hurry or
// to start over.
func classifyExchange(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		detail := strings.ToLower(apiErr.Detail)
		switch {
		case strings.Contains(detail, "expirado") || strings.Contains(detail, "expired"):
			return msgCodeExpired
		case strings.Contains(detail, "invalid_grant") ||
			strings.Contains(detail, "utilizado") ||
			strings.Contains(detail, "already used"):
			return msgCodeConsumed
		default:
			return apiErr.Detail
		}
	}
	return msgLinkFailed
}
