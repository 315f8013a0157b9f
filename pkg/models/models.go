package models

import "time"

// User mirrors the backend user record created on /register.
type User struct {
	ID          int64  `json:"id"`
	FirebaseUID string `json:"firebase_uid"`
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
}

// Account is a bank account linked through Truelayer. The set of accounts
// is replaced wholesale on every refresh; individual fields are never
// mutated client-side.
type Account struct {
	ID              int64     `json:"id"`
	AccountID       string    `json:"account_id"`
	AccountName     string    `json:"account_name"`
	AccountType     string    `json:"account_type"`
	Balance         float64   `json:"balance"`
	Currency        string    `json:"currency"`
	InstitutionName string    `json:"institution_name"`
	CreatedAt       time.Time `json:"created_at"`
}

// Transaction is a bank transaction as returned by the backend.
// AccountName is not part of the wire record; the feed attaches it from
// the owning account for display.
type Transaction struct {
	ID                  int64     `json:"id"`
	TransactionID       string    `json:"transaction_id"`
	AccountID           string    `json:"account_id"`
	Amount              float64   `json:"amount"`
	Currency            string    `json:"currency"`
	Description         string    `json:"description"`
	TransactionType     string    `json:"transaction_type"`
	TransactionCategory string    `json:"transaction_category"`
	Timestamp           time.Time `json:"timestamp"`
	CategoryID          *int64    `json:"category_id"`
	AccountName         string    `json:"-"`
}

// Category belongs to at most one group. GroupID nil means ungrouped.
type Category struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Type            string  `json:"type"`
	GroupID         *int64  `json:"group_id"`
	EstimatedAmount float64 `json:"estimated_amount"`
	AssignedAmount  float64 `json:"assigned_amount"`
	SpentAmount     float64 `json:"spent_amount"`
}

// CategoryCreate is the payload for POST /categories/.
type CategoryCreate struct {
	Name            string  `json:"name"`
	Type            string  `json:"type,omitempty"`
	GroupID         *int64  `json:"group_id,omitempty"`
	EstimatedAmount float64 `json:"estimated_amount"`
	AssignedAmount  float64 `json:"assigned_amount"`
	SpentAmount     float64 `json:"spent_amount"`
}

// CategoryUpdate carries only the fields being changed; nil fields are
// left untouched by the backend.
type CategoryUpdate struct {
	Name            *string  `json:"name,omitempty"`
	EstimatedAmount *float64 `json:"estimated_amount,omitempty"`
	AssignedAmount  *float64 `json:"assigned_amount,omitempty"`
	GroupID         *int64   `json:"group_id,omitempty"`
}

type CategoryGroup struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Budget is an estimated/assigned/spent triple for a category and period.
type Budget struct {
	ID              int64   `json:"id"`
	CategoryID      int64   `json:"category_id"`
	EstimatedAmount float64 `json:"estimated_amount"`
	AssignedAmount  float64 `json:"assigned_amount"`
	SpentAmount     float64 `json:"spent_amount"`
	PeriodStart     string  `json:"period_start"`
	PeriodEnd       string  `json:"period_end"`
}

// BudgetCreate is the payload for POST /budgets/.
type BudgetCreate struct {
	CategoryID      int64   `json:"category_id"`
	EstimatedAmount float64 `json:"estimated_amount"`
	PeriodStart     string  `json:"period_start"`
	PeriodEnd       string  `json:"period_end"`
}
