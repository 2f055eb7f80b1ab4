package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Credit CategoryType = "CREDIT"
	Debit  CategoryType = "DEBIT"
)

// DefaultBudgetGroup is the group budgets are attached to when the
// caller does not care about grouping. Created lazily on first use.
const DefaultBudgetGroup = "Default"

type (
	CategoryType string

	Category struct {
		ID          int64
		Name        string
		Description string
		Type        CategoryType
	}

	// Transaction amounts are unsigned; whether the money came in or
	// went out is determined by the category's type.
	Transaction struct {
		ID         int64
		Name       string
		Amount     float64
		Date       time.Time
		CategoryID int64
	}

	// Budget covers exactly one calendar month. StartDate and EndDate
	// are persisted and are the source of truth for scoping
	// transactions, even though they are always derived from a
	// (year, month) pair at creation time.
	Budget struct {
		ID            int64
		Name          string
		StartDate     time.Time
		EndDate       time.Time
		BudgetGroupID int64
	}

	BudgetCategory struct {
		ID         int64
		BudgetID   int64
		CategoryID int64
		Amount     float64
	}

	BudgetGroup struct {
		ID   int64
		Name string
	}

	// BudgetLine is a BudgetCategory joined with its Category, the
	// shape budget reports work with.
	BudgetLine struct {
		ID       int64
		Amount   float64
		Category Category
	}
)

var (
	ErrEmptyName       = errors.New("name cannot be empty")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidType     = errors.New("category type must be CREDIT or DEBIT")
	ErrInvalidCategory = errors.New("invalid category reference")
)

func (t CategoryType) Valid() bool {
	return t == Credit || t == Debit
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyName
	}
	if !validAmount(t.Amount) {
		return ErrInvalidAmount
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if t.CategoryID <= 0 {
		return ErrInvalidCategory
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	if b.StartDate.IsZero() || b.EndDate.IsZero() || b.EndDate.Before(b.StartDate) {
		return ErrInvalidDate
	}
	return nil
}

func (bc BudgetCategory) Validate() error {
	if bc.BudgetID <= 0 || bc.CategoryID <= 0 {
		return ErrInvalidCategory
	}
	if !validAmount(bc.Amount) {
		return ErrInvalidAmount
	}
	return nil
}
