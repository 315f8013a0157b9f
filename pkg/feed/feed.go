// Package feed aggregates transactions across linked accounts into a
// single chronological view.
package feed

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/pfacil/pfacil/pkg/models"
)

// Gateway is the slice of the API client the feed uses.
type Gateway interface {
	Accounts(ctx context.Context) ([]models.Account, error)
	Transactions(ctx context.Context, accountID string) ([]models.Transaction, error)
	SyncTransactions(ctx context.Context, accountID string) error
	UpdateTransaction(ctx context.Context, id string, tx models.Transaction) (*models.Transaction, error)
}

// ErrStale reports that a refresh pass finished after a newer one had
// already been started; its result was discarded instead of overwriting
// the newer state.
var ErrStale = errors.New("refresh superseded by a newer pass")

// Service produces the combined transaction feed. Per-account fetches
// overlap freely; merging waits for all of them (a full join). In-flight
// work is never cancelled on teardown, so every pass carries a
// generation and a pass that resolves stale discards its result.
type Service struct {
	gw     Gateway
	logger *log.Logger
	limit  int

	mu           sync.Mutex
	gen          uint64
	transactions []models.Transaction
}

// NewService builds a feed limited to the most recent limit entries of
// the globally sorted result; limit <= 0 keeps everything.
func NewService(gw Gateway, limit int, logger *log.Logger) *Service {
	return &Service{gw: gw, logger: logger, limit: limit}
}

// Transactions returns the last successfully refreshed feed.
func (s *Service) Transactions() []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out
}

// Refresh fetches every account's transactions, tags each with its
// account display name, merges, sorts newest-first and truncates to the
// configured limit. Truncation happens after the global sort: trimming
// per account first would let one busy account starve the others'
// recent entries out of the view.
func (s *Service) Refresh(ctx context.Context) ([]models.Transaction, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	accounts, err := s.gw.Accounts(ctx)
	if err != nil {
		return nil, err
	}

	merged, err := s.fetchAll(ctx, accounts)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})
	if s.limit > 0 && len(merged) > s.limit {
		merged = merged[:s.limit]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		s.logger.Debug("discarding stale refresh result", "gen", gen, "current", s.gen)
		return nil, ErrStale
	}
	s.transactions = merged
	s.logger.Debug("feed refreshed", "accounts", len(accounts), "transactions", len(merged))
	return merged, nil
}

func (s *Service) fetchAll(ctx context.Context, accounts []models.Account) ([]models.Transaction, error) {
	results := make([][]models.Transaction, len(accounts))
	eg, ctx := errgroup.WithContext(ctx)
	for i, account := range accounts {
		eg.Go(func() error {
			txs, err := s.gw.Transactions(ctx, account.AccountID)
			if err != nil {
				return err
			}
			for j := range txs {
				txs[j].AccountName = account.AccountName
			}
			results[i] = txs
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var merged []models.Transaction
	for _, txs := range results {
		merged = append(merged, txs...)
	}
	return merged, nil
}

// SyncAll triggers a server-side refresh for every account, one request
// per account, and re-runs the aggregation once all of them finished.
func (s *Service) SyncAll(ctx context.Context) ([]models.Transaction, error) {
	accounts, err := s.gw.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	eg, ctx := errgroup.WithContext(ctx)
	for _, account := range accounts {
		eg.Go(func() error {
			return s.gw.SyncTransactions(ctx, account.AccountID)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return s.Refresh(ctx)
}

// Update pushes the whole edited record back and then re-fetches the
// feed, so any server-side normalization wins over the optimistic local
// copy.
func (s *Service) Update(ctx context.Context, tx models.Transaction) ([]models.Transaction, error) {
	if _, err := s.gw.UpdateTransaction(ctx, tx.TransactionID, tx); err != nil {
		return nil, err
	}
	return s.Refresh(ctx)
}
