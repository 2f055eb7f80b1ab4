package services

import (
	"context"
	"errors"
	"log/slog"

	"budgeteer/internal/budget"
	"budgeteer/internal/core"
	"budgeteer/internal/storage"
	"budgeteer/internal/validate"
)

// BudgetStore is the storage surface budget-category operations use.
type BudgetStore interface {
	GetBudget(ctx context.Context, id int64) (core.Budget, error)
	GetBudgetCategory(ctx context.Context, id int64) (core.BudgetCategory, error)
	CreateBudgetCategory(ctx context.Context, bc core.BudgetCategory) (core.BudgetCategory, error)
	UpdateBudgetCategoryAmount(ctx context.Context, id int64, amount float64) error
	UpdateBudgetCategoryCategory(ctx context.Context, id, categoryID int64) error
	DeleteBudgetCategory(ctx context.Context, id int64) error
	BudgetCategoryExists(ctx context.Context, budgetID, categoryID, excludeID int64) (bool, error)
	CategoriesExist(ctx context.Context, ids []int64) ([]int64, error)
}

// Months is the month-level budget logic behind the service.
type Months interface {
	MonthReport(ctx context.Context, year, month int) (budget.Report, error)
	CreateBudget(ctx context.Context, year, month int) (core.Budget, error)
	CopyPreviousMonth(ctx context.Context, year, month int) (int, error)
}

type BudgetService struct {
	store       BudgetStore
	months      Months
	revalidator Revalidator
}

func NewBudgetService(store BudgetStore, months Months, revalidator Revalidator) *BudgetService {
	return &BudgetService{store: store, months: months, revalidator: revalidator}
}

func parseYearMonth(props any, requireMsg string) (year, month int, err error) {
	var r validate.Result
	obj, ok := validate.Object(props, &r, requireMsg)
	if !ok {
		return 0, 0, r.Err()
	}
	if !validate.Require(obj, &r, requireMsg, "year", "month") {
		return 0, 0, r.Err()
	}
	y, ok := validate.Number(obj, "year", "year must be a number", &r)
	if !ok {
		return 0, 0, r.Err()
	}
	m, ok := validate.Number(obj, "month", "month must be a number", &r)
	if !ok {
		return 0, 0, r.Err()
	}
	if !core.ValidMonth(int(m)) {
		return 0, 0, errors.New("month must be between 1 and 12")
	}
	if !core.ValidYear(int(y)) {
		return 0, 0, errors.New("year must be between 1900 and 2100")
	}
	return int(y), int(m), nil
}

// MonthReport returns the aggregated view for a month's budget.
func (s *BudgetService) MonthReport(ctx context.Context, year, month int) (budget.Report, error) {
	return s.months.MonthReport(ctx, year, month)
}

// CreateBudget validates the payload and creates the month's budget.
func (s *BudgetService) CreateBudget(ctx context.Context, props any) (core.Budget, error) {
	year, month, err := parseYearMonth(props, "budget creation requires year and month")
	if err != nil {
		return core.Budget{}, err
	}

	created, err := s.months.CreateBudget(ctx, year, month)
	var exists *budget.AlreadyExistsError
	if errors.As(err, &exists) {
		return core.Budget{}, exists
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to create budget",
			"year", year, "month", month, "error", err)
		return core.Budget{}, ErrDatabaseUpdate
	}

	revalidate(ctx, s.revalidator, "/budgets")
	return created, nil
}

// CopyPreviousMonthCategories clones the previous month's budget lines
// into the given month and returns the copied count.
func (s *BudgetService) CopyPreviousMonthCategories(ctx context.Context, props any) (int, error) {
	year, month, err := parseYearMonth(props, "copying categories requires year and month")
	if err != nil {
		return 0, err
	}

	copied, err := s.months.CopyPreviousMonth(ctx, year, month)
	if err != nil {
		return 0, err
	}

	revalidate(ctx, s.revalidator, "/budgets")
	return copied, nil
}

// CreateBudgetCategory validates the payload and adds one budget line.
func (s *BudgetService) CreateBudgetCategory(ctx context.Context, props any) (core.BudgetCategory, error) {
	var r validate.Result
	obj, ok := validate.Object(props, &r, "budget category creation requires budgetId, categoryId, and amount")
	if !ok {
		return core.BudgetCategory{}, r.Err()
	}
	if !validate.Require(obj, &r, "budget category creation requires budgetId, categoryId, and amount",
		"budgetId", "categoryId", "amount") {
		return core.BudgetCategory{}, r.Err()
	}
	budgetID, ok := validate.ID(obj, "budgetId", "budget ID must be a number", &r)
	if !ok {
		return core.BudgetCategory{}, r.Err()
	}
	categoryID, ok := validate.ID(obj, "categoryId", "category ID must be a number", &r)
	if !ok {
		return core.BudgetCategory{}, r.Err()
	}
	amount, ok := validate.Number(obj, "amount", "amount must be a number", &r)
	if !ok {
		return core.BudgetCategory{}, r.Err()
	}

	// Duplicate check runs before the existence checks, preserving the
	// error a client sees when re-submitting a line that already stuck.
	duplicate, err := s.store.BudgetCategoryExists(ctx, budgetID, categoryID, 0)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to check budget category", "error", err)
		return core.BudgetCategory{}, ErrDatabaseUpdate
	}
	if duplicate {
		return core.BudgetCategory{}, errors.New("this category is already added to the budget")
	}

	if _, err := s.store.GetBudget(ctx, budgetID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return core.BudgetCategory{}, errors.New("budget not found")
		}
		slog.ErrorContext(ctx, "Failed to load budget", "id", budgetID, "error", err)
		return core.BudgetCategory{}, ErrDatabaseUpdate
	}

	missing, err := s.store.CategoriesExist(ctx, []int64{categoryID})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to check category", "id", categoryID, "error", err)
		return core.BudgetCategory{}, ErrDatabaseUpdate
	}
	if len(missing) > 0 {
		return core.BudgetCategory{}, errors.New("category not found")
	}

	created, err := s.store.CreateBudgetCategory(ctx, core.BudgetCategory{
		BudgetID:   budgetID,
		CategoryID: categoryID,
		Amount:     amount,
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to create budget category", "error", err)
		return core.BudgetCategory{}, ErrDatabaseUpdate
	}

	revalidate(ctx, s.revalidator, "/budgets")
	return created, nil
}

// UpdateBudgetCategory validates the payload and changes a line's
// budgeted amount.
func (s *BudgetService) UpdateBudgetCategory(ctx context.Context, props any) error {
	var r validate.Result
	obj, ok := validate.Object(props, &r, "budget category update requires budgetCategoryId and amount")
	if !ok {
		return r.Err()
	}
	if !validate.Require(obj, &r, "budget category update requires budgetCategoryId and amount",
		"budgetCategoryId", "amount") {
		return r.Err()
	}
	id, ok := validate.ID(obj, "budgetCategoryId", "budget category ID must be a number", &r)
	if !ok {
		return r.Err()
	}
	amount, ok := validate.Number(obj, "amount", "amount must be a number", &r)
	if !ok {
		return r.Err()
	}

	if _, err := s.store.GetBudgetCategory(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errors.New("budget category not found")
		}
		slog.ErrorContext(ctx, "Failed to load budget category", "id", id, "error", err)
		return ErrDatabaseUpdate
	}

	if err := s.store.UpdateBudgetCategoryAmount(ctx, id, amount); err != nil {
		slog.ErrorContext(ctx, "Failed to update budget category", "id", id, "error", err)
		return ErrDatabaseUpdate
	}

	revalidate(ctx, s.revalidator, "/budgets")
	return nil
}

// UpdateBudgetCategoryCategory moves a budget line to a different
// category, keeping its amount.
func (s *BudgetService) UpdateBudgetCategoryCategory(ctx context.Context, props any) error {
	var r validate.Result
	obj, ok := validate.Object(props, &r, "budget category update requires budgetCategoryId and categoryId")
	if !ok {
		return r.Err()
	}
	if !validate.Require(obj, &r, "budget category update requires budgetCategoryId and categoryId",
		"budgetCategoryId", "categoryId") {
		return r.Err()
	}
	id, ok := validate.ID(obj, "budgetCategoryId", "budget category ID must be a number", &r)
	if !ok {
		return r.Err()
	}
	categoryID, ok := validate.ID(obj, "categoryId", "category ID must be a number", &r)
	if !ok {
		return r.Err()
	}

	line, err := s.store.GetBudgetCategory(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errors.New("budget category not found")
		}
		slog.ErrorContext(ctx, "Failed to load budget category", "id", id, "error", err)
		return ErrDatabaseUpdate
	}

	missing, err := s.store.CategoriesExist(ctx, []int64{categoryID})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to check category", "id", categoryID, "error", err)
		return ErrDatabaseUpdate
	}
	if len(missing) > 0 {
		return errors.New("category not found")
	}

	duplicate, err := s.store.BudgetCategoryExists(ctx, line.BudgetID, categoryID, id)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to check budget category", "error", err)
		return ErrDatabaseUpdate
	}
	if duplicate {
		return errors.New("this category is already added to the budget")
	}

	if err := s.store.UpdateBudgetCategoryCategory(ctx, id, categoryID); err != nil {
		slog.ErrorContext(ctx, "Failed to move budget category", "id", id, "error", err)
		return ErrDatabaseUpdate
	}

	revalidate(ctx, s.revalidator, "/budgets")
	return nil
}

// DeleteBudgetCategory validates the payload and removes one budget
// line.
func (s *BudgetService) DeleteBudgetCategory(ctx context.Context, props any) error {
	var r validate.Result
	obj, ok := validate.Object(props, &r, "budget category deletion requires budgetCategoryId")
	if !ok {
		return r.Err()
	}
	if !validate.Require(obj, &r, "budget category deletion requires budgetCategoryId", "budgetCategoryId") {
		return r.Err()
	}
	id, ok := validate.ID(obj, "budgetCategoryId", "budget category ID must be a number", &r)
	if !ok {
		return r.Err()
	}

	if _, err := s.store.GetBudgetCategory(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errors.New("budget category not found")
		}
		slog.ErrorContext(ctx, "Failed to load budget category", "id", id, "error", err)
		return ErrDatabaseUpdate
	}

	if err := s.store.DeleteBudgetCategory(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to delete budget category", "id", id, "error", err)
		return ErrDatabaseUpdate
	}

	revalidate(ctx, s.revalidator, "/budgets")
	return nil
}
