package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"budgeteer/internal/budget"
	"budgeteer/internal/core"
	"budgeteer/internal/storage"
)

type fakeRevalidator struct {
	paths []string
	fail  bool
}

func (f *fakeRevalidator) Invalidate(_ context.Context, path string) error {
	if f.fail {
		return errors.New("broker down")
	}
	f.paths = append(f.paths, path)
	return nil
}

type fakeTransactionStore struct {
	categories   map[int64]bool
	transactions map[int64]core.Transaction
	nextID       int64
	failCreate   bool
	failBulk     bool
}

func newFakeTransactionStore(categoryIDs ...int64) *fakeTransactionStore {
	f := &fakeTransactionStore{
		categories:   make(map[int64]bool),
		transactions: make(map[int64]core.Transaction),
	}
	for _, id := range categoryIDs {
		f.categories[id] = true
	}
	return f
}

func (f *fakeTransactionStore) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if f.failCreate {
		return core.Transaction{}, errors.New("disk full")
	}
	f.nextID++
	t.ID = f.nextID
	f.transactions[t.ID] = t
	return t, nil
}

func (f *fakeTransactionStore) UpdateTransaction(_ context.Context, t core.Transaction) error {
	if _, ok := f.transactions[t.ID]; !ok {
		return storage.ErrNotFound
	}
	f.transactions[t.ID] = t
	return nil
}

func (f *fakeTransactionStore) DeleteTransaction(_ context.Context, id int64) error {
	if _, ok := f.transactions[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.transactions, id)
	return nil
}

func (f *fakeTransactionStore) BulkInsertTransactions(_ context.Context, ts []core.Transaction) ([]core.Transaction, error) {
	if f.failBulk {
		return nil, errors.New("disk full")
	}
	inserted := make([]core.Transaction, 0, len(ts))
	for _, t := range ts {
		f.nextID++
		t.ID = f.nextID
		f.transactions[t.ID] = t
		inserted = append(inserted, t)
	}
	return inserted, nil
}

func (f *fakeTransactionStore) CategoriesExist(_ context.Context, ids []int64) ([]int64, error) {
	var missing []int64
	seen := make(map[int64]bool)
	for _, id := range ids {
		if !f.categories[id] && !seen[id] {
			seen[id] = true
			missing = append(missing, id)
		}
	}
	return missing, nil
}

type fakeCategoryStore struct {
	categories map[int64]core.Category
	nextID     int64
	failCreate bool
}

func newFakeCategoryStore() *fakeCategoryStore {
	return &fakeCategoryStore{categories: make(map[int64]core.Category)}
}

func (f *fakeCategoryStore) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	if f.failCreate {
		return core.Category{}, errors.New("disk full")
	}
	f.nextID++
	c.ID = f.nextID
	f.categories[c.ID] = c
	return c, nil
}

func (f *fakeCategoryStore) UpdateCategory(_ context.Context, c core.Category) error {
	if _, ok := f.categories[c.ID]; !ok {
		return storage.ErrNotFound
	}
	f.categories[c.ID] = c
	return nil
}

func (f *fakeCategoryStore) DeleteCategory(_ context.Context, id int64) error {
	if _, ok := f.categories[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.categories, id)
	return nil
}

func (f *fakeCategoryStore) ListCategories(_ context.Context) ([]core.Category, error) {
	var out []core.Category
	for _, c := range f.categories {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeCategoryStore) CategoryNameExists(_ context.Context, name string, excludeID int64) (bool, error) {
	for id, c := range f.categories {
		if strings.EqualFold(c.Name, name) && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

type fakeBudgetStore struct {
	budgets    map[int64]core.Budget
	lines      map[int64]core.BudgetCategory
	categories map[int64]bool
	nextID     int64
}

func newFakeBudgetStore() *fakeBudgetStore {
	return &fakeBudgetStore{
		budgets:    make(map[int64]core.Budget),
		lines:      make(map[int64]core.BudgetCategory),
		categories: make(map[int64]bool),
	}
}

func (f *fakeBudgetStore) addBudget(year, month int) core.Budget {
	f.nextID++
	start, end := core.MonthWindow(year, month)
	b := core.Budget{ID: f.nextID, Name: core.MonthName(year, month), StartDate: start, EndDate: end}
	f.budgets[b.ID] = b
	return b
}

func (f *fakeBudgetStore) GetBudget(_ context.Context, id int64) (core.Budget, error) {
	b, ok := f.budgets[id]
	if !ok {
		return core.Budget{}, storage.ErrNotFound
	}
	return b, nil
}

func (f *fakeBudgetStore) GetBudgetCategory(_ context.Context, id int64) (core.BudgetCategory, error) {
	bc, ok := f.lines[id]
	if !ok {
		return core.BudgetCategory{}, storage.ErrNotFound
	}
	return bc, nil
}

func (f *fakeBudgetStore) CreateBudgetCategory(_ context.Context, bc core.BudgetCategory) (core.BudgetCategory, error) {
	f.nextID++
	bc.ID = f.nextID
	f.lines[bc.ID] = bc
	return bc, nil
}

func (f *fakeBudgetStore) UpdateBudgetCategoryAmount(_ context.Context, id int64, amount float64) error {
	bc, ok := f.lines[id]
	if !ok {
		return storage.ErrNotFound
	}
	bc.Amount = amount
	f.lines[id] = bc
	return nil
}

func (f *fakeBudgetStore) UpdateBudgetCategoryCategory(_ context.Context, id, categoryID int64) error {
	bc, ok := f.lines[id]
	if !ok {
		return storage.ErrNotFound
	}
	bc.CategoryID = categoryID
	f.lines[id] = bc
	return nil
}

func (f *fakeBudgetStore) DeleteBudgetCategory(_ context.Context, id int64) error {
	if _, ok := f.lines[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.lines, id)
	return nil
}

func (f *fakeBudgetStore) BudgetCategoryExists(_ context.Context, budgetID, categoryID, excludeID int64) (bool, error) {
	for id, bc := range f.lines {
		if bc.BudgetID == budgetID && bc.CategoryID == categoryID && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBudgetStore) CategoriesExist(_ context.Context, ids []int64) ([]int64, error) {
	var missing []int64
	for _, id := range ids {
		if !f.categories[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

type fakeMonths struct {
	created   []core.Budget
	createErr error
	copyCount int
	copyErr   error
	report    budget.Report
	reportErr error
	lastYear  int
	lastMonth int
}

func (f *fakeMonths) MonthReport(_ context.Context, year, month int) (budget.Report, error) {
	f.lastYear, f.lastMonth = year, month
	return f.report, f.reportErr
}

func (f *fakeMonths) CreateBudget(_ context.Context, year, month int) (core.Budget, error) {
	if f.createErr != nil {
		return core.Budget{}, f.createErr
	}
	start, end := core.MonthWindow(year, month)
	b := core.Budget{ID: int64(len(f.created) + 1), Name: core.MonthName(year, month), StartDate: start, EndDate: end}
	f.created = append(f.created, b)
	return b, nil
}

func (f *fakeMonths) CopyPreviousMonth(_ context.Context, year, month int) (int, error) {
	f.lastYear, f.lastMonth = year, month
	return f.copyCount, f.copyErr
}

func testDate() time.Time {
	return time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
}
