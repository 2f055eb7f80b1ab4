package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"budgeteer/internal/core"
	"budgeteer/internal/storage"
	"budgeteer/internal/validate"
)

// TransactionStore is the storage surface transaction operations use.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error
	BulkInsertTransactions(ctx context.Context, ts []core.Transaction) ([]core.Transaction, error)
	CategoriesExist(ctx context.Context, ids []int64) ([]int64, error)
}

type TransactionService struct {
	store       TransactionStore
	revalidator Revalidator
	maxRows     int
}

func NewTransactionService(store TransactionStore, revalidator Revalidator, maxRows int) *TransactionService {
	return &TransactionService{
		store:       store,
		revalidator: revalidator,
		maxRows:     maxRows,
	}
}

type transactionFields struct {
	name       string
	amount     float64
	date       time.Time
	categoryID int64
}

func parseTransactionFields(props map[string]any, requireMsg string, r *validate.Result) (transactionFields, bool) {
	if !validate.Require(props, r, requireMsg, "name", "amount", "date", "category") {
		return transactionFields{}, false
	}
	var f transactionFields
	var ok bool
	if f.name, ok = validate.String(props, "name", "name must be a string", r); !ok {
		return f, false
	}
	if f.amount, ok = validate.Number(props, "amount", "amount must be a number", r); !ok {
		return f, false
	}
	if f.date, ok = validate.Date(props, "date", "date must be a valid date", r); !ok {
		return f, false
	}
	if f.categoryID, ok = validate.ID(props, "category", "category must be a number", r); !ok {
		return f, false
	}
	return f, true
}

func (s *TransactionService) categoryExists(ctx context.Context, id int64) error {
	missing, err := s.store.CategoriesExist(ctx, []int64{id})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to check category", "category_id", id, "error", err)
		return ErrDatabaseUpdate
	}
	if len(missing) > 0 {
		return errors.New("category not found")
	}
	return nil
}

// CreateTransaction validates the payload and stores one transaction.
func (s *TransactionService) CreateTransaction(ctx context.Context, props any) (core.Transaction, error) {
	var r validate.Result
	obj, ok := validate.Object(props, &r, "transaction creation requires name, amount, date, and category")
	if !ok {
		return core.Transaction{}, r.Err()
	}
	f, ok := parseTransactionFields(obj, "transaction creation requires name, amount, date, and category", &r)
	if !ok {
		return core.Transaction{}, r.Err()
	}
	if f.name == "" {
		return core.Transaction{}, errors.New("name must not be empty")
	}

	if err := s.categoryExists(ctx, f.categoryID); err != nil {
		return core.Transaction{}, err
	}

	created, err := s.store.CreateTransaction(ctx, core.Transaction{
		Name:       f.name,
		Amount:     f.amount,
		Date:       f.date,
		CategoryID: f.categoryID,
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to create transaction", "error", err)
		return core.Transaction{}, ErrDatabaseUpdate
	}

	revalidate(ctx, s.revalidator, "/")
	return created, nil
}

// UpdateTransaction validates the payload and updates one transaction.
func (s *TransactionService) UpdateTransaction(ctx context.Context, props any) error {
	var r validate.Result
	obj, ok := validate.Object(props, &r, "transaction update requires transactionId, name, amount, date, and category")
	if !ok {
		return r.Err()
	}
	if !validate.Require(obj, &r, "transaction update requires transactionId, name, amount, date, and category", "transactionId") {
		return r.Err()
	}
	id, ok := validate.ID(obj, "transactionId", "transaction ID must be a number", &r)
	if !ok {
		return r.Err()
	}
	f, ok := parseTransactionFields(obj, "transaction update requires transactionId, name, amount, date, and category", &r)
	if !ok {
		return r.Err()
	}

	if err := s.categoryExists(ctx, f.categoryID); err != nil {
		return err
	}

	err := s.store.UpdateTransaction(ctx, core.Transaction{
		ID:         id,
		Name:       f.name,
		Amount:     f.amount,
		Date:       f.date,
		CategoryID: f.categoryID,
	})
	if errors.Is(err, storage.ErrNotFound) {
		return errors.New("transaction not found")
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to update transaction", "id", id, "error", err)
		return ErrDatabaseUpdate
	}

	revalidate(ctx, s.revalidator, "/")
	return nil
}

// DeleteTransaction validates the payload and deletes one transaction.
func (s *TransactionService) DeleteTransaction(ctx context.Context, props any) error {
	var r validate.Result
	obj, ok := validate.Object(props, &r, "transaction deletion requires transactionId")
	if !ok {
		return r.Err()
	}
	if !validate.Require(obj, &r, "transaction deletion requires transactionId", "transactionId") {
		return r.Err()
	}
	id, ok := validate.ID(obj, "transactionId", "transaction ID must be a number", &r)
	if !ok {
		return r.Err()
	}

	err := s.store.DeleteTransaction(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return errors.New("transaction not found")
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to delete transaction", "id", id, "error", err)
		return ErrDatabaseDelete
	}

	revalidate(ctx, s.revalidator, "/")
	return nil
}

// BulkImportResult reports a successful bulk import: the count and
// the inserted rows carrying their generated ids.
type BulkImportResult struct {
	ImportedCount int                `json:"importedCount"`
	Transactions  []core.Transaction `json:"transactions"`
}

// BulkImportTransactions validates and inserts a whole batch at once.
// The batch is all-or-nothing: any invalid row or missing category
// rejects the entire import.
func (s *TransactionService) BulkImportTransactions(ctx context.Context, props any) (BulkImportResult, error) {
	var r validate.Result
	rows, ok := validate.Array(props, &r, "bulk import requires an array of transactions")
	if !ok {
		return BulkImportResult{}, r.Err()
	}
	if len(rows) == 0 {
		return BulkImportResult{}, errors.New("no transactions to import")
	}
	if len(rows) > s.maxRows {
		return BulkImportResult{}, fmt.Errorf("cannot import more than %d transactions at once", s.maxRows)
	}

	transactions := make([]core.Transaction, 0, len(rows))
	categoryIDs := make([]int64, 0, len(rows))
	for i, row := range rows {
		var rowResult validate.Result
		requireMsg := fmt.Sprintf("transaction %d requires name, amount, date, and category", i+1)
		obj, ok := validate.Object(row, &rowResult, requireMsg)
		if !ok {
			return BulkImportResult{}, rowResult.Err()
		}
		f, ok := parseTransactionFields(obj, requireMsg, &rowResult)
		if !ok {
			return BulkImportResult{}, fmt.Errorf("transaction %d: %w", i+1, rowResult.Err())
		}
		if f.name == "" {
			return BulkImportResult{}, fmt.Errorf("transaction %d: name must not be empty", i+1)
		}
		transactions = append(transactions, core.Transaction{
			Name:       f.name,
			Amount:     f.amount,
			Date:       f.date,
			CategoryID: f.categoryID,
		})
		categoryIDs = append(categoryIDs, f.categoryID)
	}

	missing, err := s.store.CategoriesExist(ctx, categoryIDs)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to check categories", "error", err)
		return BulkImportResult{}, ErrDatabaseUpdate
	}
	if len(missing) > 0 {
		return BulkImportResult{}, fmt.Errorf("the following categories do not exist: %s", joinIDs(missing))
	}

	inserted, err := s.store.BulkInsertTransactions(ctx, transactions)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to bulk insert transactions",
			"count", len(transactions), "error", err)
		return BulkImportResult{}, ErrDatabaseUpdate
	}

	revalidate(ctx, s.revalidator, "/")
	return BulkImportResult{ImportedCount: len(inserted), Transactions: inserted}, nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ", ")
}
