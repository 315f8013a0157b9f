package link

import (
	"context"
	"io"
	"net/url"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pfacil/pfacil/pkg/api"
	"github.com/pfacil/pfacil/pkg/models"
)

type fakeGateway struct {
	authURL       string
	authErr       error
	exchangeResp  []models.Account
	exchangeErr   error
	accounts      []models.Account
	accountsErr   error
	exchangeCalls int
	accountsCalls int
	gotCode       string
	gotState      string
}

func (f *fakeGateway) LinkAuthURL(_ context.Context) (string, error) {
	return f.authURL, f.authErr
}

func (f *fakeGateway) ExchangeCode(_ context.Context, code, state string) ([]models.Account, error) {
	f.exchangeCalls++
	f.gotCode, f.gotState = code, state
	return f.exchangeResp, f.exchangeErr
}

func (f *fakeGateway) Accounts(_ context.Context) ([]models.Account, error) {
	f.accountsCalls++
	return f.accounts, f.accountsErr
}

type fakeNav struct {
	opened   []string
	replaced []Location
}

func (f *fakeNav) Open(url string) error { f.opened = append(f.opened, url); return nil }
func (f *fakeNav) Replace(loc Location)  { f.replaced = append(f.replaced, loc) }

func newTestHandler(gw *fakeGateway, nav *fakeNav) *Handler {
	h := NewHandler(gw, nav, log.New(io.Discard))
	h.noticeAfter = 10 * time.Millisecond
	return h
}

func locationWith(query string) Location {
	q, _ := url.ParseQuery(query)
	return Location{Path: "/accounts", Query: q}
}

func TestNoCodeIsPlainRefresh(t *testing.T) {
	gw := &fakeGateway{accounts: []models.Account{{AccountID: "a1"}}}
	nav := &fakeNav{}
	h := newTestHandler(gw, nav)

	if err := h.HandleLocation(context.Background(), locationWith("")); err != nil {
		t.Fatalf("HandleLocation failed: %v", err)
	}
	if gw.exchangeCalls != 0 {
		t.Errorf("exchange called %d times, want 0", gw.exchangeCalls)
	}
	if gw.accountsCalls != 1 {
		t.Errorf("accounts fetched %d times, want 1", gw.accountsCalls)
	}
	if h.State() != StateIdle {
		t.Errorf("state = %v, want idle", h.State())
	}
}

func TestSuccessfulExchange(t *testing.T) {
	gw := &fakeGateway{
		// The exchange response body must not end up in state; the list
		// comes from the follow-up full fetch.
		exchangeResp: []models.Account{{AccountID: "stale"}},
		accounts:     []models.Account{{AccountID: "a1"}, {AccountID: "a2"}},
	}
	nav := &fakeNav{}
	h := newTestHandler(gw, nav)

	loc := locationWith("code=fresh-code&state=st-1&tab=accounts")
	if err := h.HandleLocation(context.Background(), loc); err != nil {
		t.Fatalf("HandleLocation failed: %v", err)
	}

	if gw.gotCode != "fresh-code" || gw.gotState != "st-1" {
		t.Errorf("exchange got code=%q state=%q", gw.gotCode, gw.gotState)
	}
	accounts := h.Accounts()
	if len(accounts) != 2 || accounts[0].AccountID != "a1" {
		t.Errorf("accounts = %+v, want full re-fetch result", accounts)
	}
	if len(nav.replaced) != 1 {
		t.Fatalf("Replace called %d times, want 1", len(nav.replaced))
	}
	replaced := nav.replaced[0]
	if replaced.Query.Get("code") != "" || replaced.Query.Get("state") != "" {
		t.Errorf("replaced location still carries auth params: %v", replaced.Query)
	}
	if replaced.Query.Get("tab") != "accounts" {
		t.Errorf("unrelated query params must survive the replace: %v", replaced.Query)
	}
	if h.Notice() == "" {
		t.Error("expected a success notice")
	}
	if h.State() != StateIdle {
		t.Errorf("state = %v, want idle", h.State())
	}
}

func TestNoticeClearsItself(t *testing.T) {
	gw := &fakeGateway{accounts: []models.Account{{AccountID: "a1"}}}
	h := newTestHandler(gw, &fakeNav{})

	if err := h.HandleLocation(context.Background(), locationWith("code=c1")); err != nil {
		t.Fatalf("HandleLocation failed: %v", err)
	}
	if h.Notice() == "" {
		t.Fatal("expected notice right after success")
	}
	time.Sleep(50 * time.Millisecond)
	if h.Notice() != "" {
		t.Errorf("notice should have self-cleared, got %q", h.Notice())
	}
}

func TestCodeConsumedExactlyOnce(t *testing.T) {
	gw := &fakeGateway{accounts: []models.Account{{AccountID: "a1"}}}
	h := newTestHandler(gw, &fakeNav{})
	loc := locationWith("code=one-shot")

	if err := h.HandleLocation(context.Background(), loc); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if err := h.HandleLocation(context.Background(), loc); err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if gw.exchangeCalls != 1 {
		t.Errorf("exchange called %d times, want exactly 1", gw.exchangeCalls)
	}
}

func TestExpiredCodeClassification(t *testing.T) {
	gw := &fakeGateway{
		exchangeErr: &api.Error{Status: 400, Detail: "El código de autorización ha expirado"},
		accounts:    []models.Account{},
	}
	h := newTestHandler(gw, &fakeNav{})

	err := h.HandleLocation(context.Background(), locationWith("code=old"))
	if err == nil {
		t.Fatal("expected an error")
	}
	if h.ErrorMessage() != msgCodeExpired {
		t.Errorf("message = %q, want expired template", h.ErrorMessage())
	}
	if h.State() != StateIdle {
		t.Errorf("state = %v, want idle (flow stays interactive)", h.State())
	}
}

func TestConsumedCodeDistinctFromExpired(t *testing.T) {
	gw := &fakeGateway{
		exchangeErr: &api.Error{Status: 400, Detail: "invalid_grant: authorization code already used"},
	}
	h := newTestHandler(gw, &fakeNav{})

	if err := h.HandleLocation(context.Background(), locationWith("code=used")); err == nil {
		t.Fatal("expected an error")
	}
	if h.ErrorMessage() != msgCodeConsumed {
		t.Errorf("message = %q, want already-used template", h.ErrorMessage())
	}
	if msgCodeConsumed == msgCodeExpired {
		t.Error("expired and already-used messages must differ")
	}
}

func TestOtherServerDetailPassesThrough(t *testing.T) {
	gw := &fakeGateway{
		exchangeErr: &api.Error{Status: 422, Detail: "cuenta no soportada"},
	}
	h := newTestHandler(gw, &fakeNav{})

	h.HandleLocation(context.Background(), locationWith("code=x"))
	if h.ErrorMessage() != "cuenta no soportada" {
		t.Errorf("message = %q, want server detail verbatim", h.ErrorMessage())
	}
}

func TestTransportFailureIsGeneric(t *testing.T) {
	gw := &fakeGateway{exchangeErr: api.ErrNoResponse}
	h := newTestHandler(gw, &fakeNav{})

	h.HandleLocation(context.Background(), locationWith("code=x"))
	if h.ErrorMessage() != msgLinkFailed {
		t.Errorf("message = %q, want generic retry message", h.ErrorMessage())
	}
}

func TestInitiateNavigatesToAuthURL(t *testing.T) {
	gw := &fakeGateway{authURL: "https://auth.truelayer.test/?client_id=x"}
	nav := &fakeNav{}
	h := newTestHandler(gw, nav)

	if err := h.Initiate(context.Background()); err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	if len(nav.opened) != 1 || nav.opened[0] != gw.authURL {
		t.Errorf("opened = %v", nav.opened)
	}
}

func TestInitiateWithoutURLFails(t *testing.T) {
	gw := &fakeGateway{authURL: ""}
	h := newTestHandler(gw, &fakeNav{})

	if err := h.Initiate(context.Background()); err == nil {
		t.Fatal("expected an error for empty auth url")
	}
	if h.ErrorMessage() != msgNoAuthURL {
		t.Errorf("message = %q", h.ErrorMessage())
	}
}
