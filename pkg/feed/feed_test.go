package feed

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfacil/pfacil/pkg/models"
)

type fakeGateway struct {
	mu           sync.Mutex
	accounts     []models.Account
	transactions map[string][]models.Transaction
	syncCalls    []string
	updateCalls  int
	updated      *models.Transaction

	// fetchHook, when set, runs at the start of every Transactions call.
	fetchHook func(accountID string)
}

func (f *fakeGateway) Accounts(_ context.Context) ([]models.Account, error) {
	return f.accounts, nil
}

func (f *fakeGateway) Transactions(_ context.Context, accountID string) ([]models.Transaction, error) {
	if f.fetchHook != nil {
		f.fetchHook(accountID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	txs := make([]models.Transaction, len(f.transactions[accountID]))
	copy(txs, f.transactions[accountID])
	return txs, nil
}

func (f *fakeGateway) SyncTransactions(_ context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncCalls = append(f.syncCalls, accountID)
	return nil
}

func (f *fakeGateway) UpdateTransaction(_ context.Context, id string, tx models.Transaction) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	f.updated = &tx
	return &tx, nil
}

func ts(value string) time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return t
}

func tx(id, accountID string, amount float64, day string) models.Transaction {
	return models.Transaction{
		TransactionID: id,
		AccountID:     accountID,
		Amount:        amount,
		Timestamp:     ts(day),
	}
}

func TestRefreshAggregatesAndSorts(t *testing.T) {
	gw := &fakeGateway{
		accounts: []models.Account{
			{AccountID: "a1", AccountName: "Cuenta Corriente"},
			{AccountID: "a2", AccountName: "Ahorros"},
		},
		transactions: map[string][]models.Transaction{
			"a1": {tx("t1", "a1", 5, "2024-01-02")},
			"a2": {tx("t2", "a2", -2, "2024-01-03"), tx("t3", "a2", 1, "2024-01-01")},
		},
	}
	service := NewService(gw, 2, log.New(io.Discard))

	result, err := service.Refresh(context.Background())
	require.NoError(t, err)

	// Scenario from the account-feed contract: limit 2 keeps the two
	// globally newest entries across both accounts.
	require.Len(t, result, 2)
	assert.Equal(t, "t2", result[0].TransactionID)
	assert.Equal(t, -2.0, result[0].Amount)
	assert.Equal(t, "Ahorros", result[0].AccountName)
	assert.Equal(t, "t1", result[1].TransactionID)
	assert.Equal(t, "Cuenta Corriente", result[1].AccountName)
}

func TestTruncationDropsOnlyGloballyOldest(t *testing.T) {
	gw := &fakeGateway{
		accounts: []models.Account{
			{AccountID: "busy", AccountName: "Busy"},
			{AccountID: "quiet", AccountName: "Quiet"},
		},
		transactions: map[string][]models.Transaction{
			"busy": {
				tx("b1", "busy", 1, "2024-03-05"),
				tx("b2", "busy", 1, "2024-03-04"),
				tx("b3", "busy", 1, "2024-01-01"),
			},
			"quiet": {tx("q1", "quiet", 1, "2024-03-03")},
		},
	}
	service := NewService(gw, 3, log.New(io.Discard))

	result, err := service.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, result, 3)

	// Trimming per account before the merge would have kept the busy
	// account's oldest entry and starved the quiet account out.
	ids := []string{result[0].TransactionID, result[1].TransactionID, result[2].TransactionID}
	assert.Equal(t, []string{"b1", "b2", "q1"}, ids)
	for _, kept := range result {
		assert.False(t, kept.Timestamp.Before(ts("2024-01-01")), "kept an entry older than a dropped one")
	}
}

func TestNoLimitKeepsEverything(t *testing.T) {
	gw := &fakeGateway{
		accounts: []models.Account{{AccountID: "a1", AccountName: "A"}},
		transactions: map[string][]models.Transaction{
			"a1": {tx("t1", "a1", 1, "2024-01-01"), tx("t2", "a1", 1, "2024-01-02")},
		},
	}
	service := NewService(gw, 0, log.New(io.Discard))

	result, err := service.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, result, 2)
}

func TestStaleRefreshIsDiscarded(t *testing.T) {
	gw := &fakeGateway{
		accounts: []models.Account{{AccountID: "a1", AccountName: "A"}},
		transactions: map[string][]models.Transaction{
			"a1": {tx("old", "a1", 1, "2024-01-01")},
		},
	}

	var calls atomic.Int32
	release := make(chan struct{})
	gw.fetchHook = func(string) {
		if calls.Add(1) == 1 {
			<-release // first pass resolves late
		}
	}

	service := NewService(gw, 0, log.New(io.Discard))

	firstDone := make(chan error, 1)
	go func() {
		_, err := service.Refresh(context.Background())
		firstDone <- err
	}()

	// Wait for the first pass to be in flight, then run a newer one.
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	gw.mu.Lock()
	gw.transactions["a1"] = []models.Transaction{tx("new", "a1", 1, "2024-02-01")}
	gw.mu.Unlock()

	result, err := service.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "new", result[0].TransactionID)

	close(release)
	require.ErrorIs(t, <-firstDone, ErrStale)

	// The late pass must not have overwritten the newer state.
	kept := service.Transactions()
	require.Len(t, kept, 1)
	assert.Equal(t, "new", kept[0].TransactionID)
}

func TestSyncAllHitsEveryAccountThenRefetches(t *testing.T) {
	gw := &fakeGateway{
		accounts: []models.Account{
			{AccountID: "a1", AccountName: "A"},
			{AccountID: "a2", AccountName: "B"},
		},
		transactions: map[string][]models.Transaction{
			"a1": {tx("t1", "a1", 1, "2024-01-01")},
			"a2": {tx("t2", "a2", 1, "2024-01-02")},
		},
	}
	service := NewService(gw, 0, log.New(io.Discard))

	result, err := service.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, result, 2)
	assert.ElementsMatch(t, []string{"a1", "a2"}, gw.syncCalls)
}

func TestUpdatePushesWholeRecordThenRefetches(t *testing.T) {
	gw := &fakeGateway{
		accounts: []models.Account{{AccountID: "a1", AccountName: "A"}},
		transactions: map[string][]models.Transaction{
			"a1": {tx("t1", "a1", -10, "2024-01-01")},
		},
	}
	service := NewService(gw, 0, log.New(io.Discard))

	edited := tx("t1", "a1", -10, "2024-01-01")
	edited.Description = "groceries"

	// The server returns a normalized copy; the feed reflects the
	// re-fetch, not the optimistic local edit.
	gw.mu.Lock()
	gw.transactions["a1"] = []models.Transaction{func() models.Transaction {
		normalized := edited
		normalized.Description = "GROCERIES"
		return normalized
	}()}
	gw.mu.Unlock()

	result, err := service.Update(context.Background(), edited)
	require.NoError(t, err)
	assert.Equal(t, 1, gw.updateCalls)
	require.NotNil(t, gw.updated)
	assert.Equal(t, "groceries", gw.updated.Description, "whole edited record goes to the server")
	require.Len(t, result, 1)
	assert.Equal(t, "GROCERIES", result[0].Description, "feed reflects the server copy after re-fetch")
}
