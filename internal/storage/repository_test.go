package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"budgeteer/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustCreateCategory(t *testing.T, repo *SQLiteRepository, name string, ct core.CategoryType) core.Category {
	t.Helper()
	c, err := repo.CreateCategory(context.Background(), core.Category{Name: name, Type: ct})
	if err != nil {
		t.Fatalf("CreateCategory(%q): %v", name, err)
	}
	return c
}

func TestCategoryCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created := mustCreateCategory(t, repo, "Groceries", core.Debit)
	if created.ID == 0 {
		t.Fatal("created category has no id")
	}

	got, err := repo.GetCategory(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetCategory: %v", err)
	}
	if got.Name != "Groceries" || got.Type != core.Debit {
		t.Errorf("got %+v", got)
	}

	created.Description = "weekly shop"
	if err := repo.UpdateCategory(ctx, created); err != nil {
		t.Fatalf("UpdateCategory: %v", err)
	}
	got, _ = repo.GetCategory(ctx, created.ID)
	if got.Description != "weekly shop" {
		t.Errorf("description = %q", got.Description)
	}

	exists, err := repo.CategoryNameExists(ctx, "Groceries", 0)
	if err != nil || !exists {
		t.Errorf("CategoryNameExists = %v, %v; want true", exists, err)
	}
	exists, err = repo.CategoryNameExists(ctx, "gRoCeRiEs", 0)
	if err != nil || !exists {
		t.Errorf("CategoryNameExists ignoring case = %v, %v; want true", exists, err)
	}
	exists, err = repo.CategoryNameExists(ctx, "Groceries", created.ID)
	if err != nil || exists {
		t.Errorf("CategoryNameExists excluding self = %v, %v; want false", exists, err)
	}

	if err := repo.DeleteCategory(ctx, created.ID); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	if _, err := repo.GetCategory(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetCategory after delete = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteCategory(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func TestCategoriesExist(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := mustCreateCategory(t, repo, "A", core.Debit)
	b := mustCreateCategory(t, repo, "B", core.Credit)

	missing, err := repo.CategoriesExist(ctx, []int64{a.ID, b.ID, 999, a.ID, 1000})
	if err != nil {
		t.Fatalf("CategoriesExist: %v", err)
	}
	if len(missing) != 2 || missing[0] != 999 || missing[1] != 1000 {
		t.Errorf("missing = %v, want [999 1000]", missing)
	}

	missing, err = repo.CategoriesExist(ctx, nil)
	if err != nil || missing != nil {
		t.Errorf("CategoriesExist(nil) = %v, %v", missing, err)
	}
}

func TestTransactionCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	cat := mustCreateCategory(t, repo, "Food", core.Debit)

	date := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	created, err := repo.CreateTransaction(ctx, core.Transaction{
		Name: "Lunch", Amount: 10.50, Date: date, CategoryID: cat.ID,
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("created transaction has no id")
	}

	got, err := repo.GetTransaction(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if !got.Date.Equal(date) || got.Amount != 10.50 {
		t.Errorf("got %+v", got)
	}

	created.Amount = 12
	if err := repo.UpdateTransaction(ctx, created); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}

	if err := repo.DeleteTransaction(ctx, created.ID); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	if err := repo.UpdateTransaction(ctx, created); !errors.Is(err, ErrNotFound) {
		t.Errorf("update after delete = %v, want ErrNotFound", err)
	}
}

func TestBulkInsertTransactions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	cat := mustCreateCategory(t, repo, "Food", core.Debit)

	date := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	batch := []core.Transaction{
		{Name: "One", Amount: 1, Date: date, CategoryID: cat.ID},
		{Name: "Two", Amount: 2, Date: date.AddDate(0, 0, 1), CategoryID: cat.ID},
		{Name: "Three", Amount: 3, Date: date.AddDate(0, 0, 2), CategoryID: cat.ID},
	}

	inserted, err := repo.BulkInsertTransactions(ctx, batch)
	if err != nil {
		t.Fatalf("BulkInsertTransactions: %v", err)
	}
	if len(inserted) != 3 {
		t.Fatalf("inserted %d rows", len(inserted))
	}
	for i, tr := range inserted {
		if tr.ID == 0 {
			t.Errorf("row %d has no id", i)
		}
	}

	start, end := core.MonthWindow(2024, 3)
	listed, err := repo.ListTransactions(ctx, start, end)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(listed) != 3 {
		t.Errorf("listed %d rows, want 3", len(listed))
	}
}

func TestBulkInsertRollsBackOnFailure(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	cat := mustCreateCategory(t, repo, "Food", core.Debit)

	date := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	batch := []core.Transaction{
		{Name: "Good", Amount: 1, Date: date, CategoryID: cat.ID},
		// Unknown category violates the foreign key and aborts the batch.
		{Name: "Bad", Amount: 2, Date: date, CategoryID: 999},
	}

	if _, err := repo.BulkInsertTransactions(ctx, batch); err == nil {
		t.Fatal("expected bulk insert to fail")
	}

	start, end := core.MonthWindow(2024, 3)
	listed, err := repo.ListTransactions(ctx, start, end)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(listed) != 0 {
		t.Errorf("listed %d rows after rollback, want 0", len(listed))
	}
}

func TestSumTransactionsByCategory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	food := mustCreateCategory(t, repo, "Food", core.Debit)
	pay := mustCreateCategory(t, repo, "Salary", core.Credit)

	mar := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	apr := time.Date(2024, time.April, 10, 0, 0, 0, 0, time.UTC)
	for _, tr := range []core.Transaction{
		{Name: "a", Amount: 10, Date: mar, CategoryID: food.ID},
		{Name: "b", Amount: 15, Date: mar.AddDate(0, 0, 5), CategoryID: food.ID},
		{Name: "c", Amount: 2000, Date: mar, CategoryID: pay.ID},
		{Name: "d", Amount: 99, Date: apr, CategoryID: food.ID},
	} {
		if _, err := repo.CreateTransaction(ctx, tr); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
	}

	start, end := core.MonthWindow(2024, 3)
	sums, err := repo.SumTransactionsByCategory(ctx, start, end)
	if err != nil {
		t.Fatalf("SumTransactionsByCategory: %v", err)
	}
	if sums[food.ID] != 25 {
		t.Errorf("food sum = %v, want 25", sums[food.ID])
	}
	if sums[pay.ID] != 2000 {
		t.Errorf("salary sum = %v, want 2000", sums[pay.ID])
	}
	if _, ok := sums[999]; ok {
		t.Error("unexpected sum for unknown category")
	}
}

func TestBudgetGroups(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	g1, err := repo.GetOrCreateBudgetGroup(ctx, core.DefaultBudgetGroup)
	if err != nil {
		t.Fatalf("GetOrCreateBudgetGroup: %v", err)
	}
	g2, err := repo.GetOrCreateBudgetGroup(ctx, core.DefaultBudgetGroup)
	if err != nil {
		t.Fatalf("GetOrCreateBudgetGroup second call: %v", err)
	}
	if g1.ID != g2.ID {
		t.Errorf("group ids differ: %d vs %d", g1.ID, g2.ID)
	}

	groups, err := repo.ListBudgetGroups(ctx)
	if err != nil {
		t.Fatalf("ListBudgetGroups: %v", err)
	}
	if len(groups) != 1 {
		t.Errorf("got %d groups, want 1", len(groups))
	}
}

func TestBudgetOverlapLookup(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	group, err := repo.GetOrCreateBudgetGroup(ctx, core.DefaultBudgetGroup)
	if err != nil {
		t.Fatalf("GetOrCreateBudgetGroup: %v", err)
	}

	start, end := core.MonthWindow(2024, 3)
	created, err := repo.CreateBudget(ctx, core.Budget{
		Name: "March 2024", StartDate: start, EndDate: end, BudgetGroupID: group.ID,
	})
	if err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}

	found, err := repo.FindBudgetOverlapping(ctx, start, end)
	if err != nil {
		t.Fatalf("FindBudgetOverlapping: %v", err)
	}
	if found == nil || found.ID != created.ID {
		t.Fatalf("found = %+v, want budget %d", found, created.ID)
	}
	if !found.StartDate.Equal(start) || !found.EndDate.Equal(end) {
		t.Errorf("round-tripped range = %v..%v", found.StartDate, found.EndDate)
	}

	aprStart, aprEnd := core.MonthWindow(2024, 4)
	found, err = repo.FindBudgetOverlapping(ctx, aprStart, aprEnd)
	if err != nil {
		t.Fatalf("FindBudgetOverlapping: %v", err)
	}
	if found != nil {
		t.Errorf("found = %+v, want nil for an empty month", found)
	}
}

func TestBudgetCategories(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	group, _ := repo.GetOrCreateBudgetGroup(ctx, core.DefaultBudgetGroup)
	start, end := core.MonthWindow(2024, 3)
	budget, err := repo.CreateBudget(ctx, core.Budget{
		Name: "March 2024", StartDate: start, EndDate: end, BudgetGroupID: group.ID,
	})
	if err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}
	food := mustCreateCategory(t, repo, "Food", core.Debit)
	rent := mustCreateCategory(t, repo, "Rent", core.Debit)

	line, err := repo.CreateBudgetCategory(ctx, core.BudgetCategory{
		BudgetID: budget.ID, CategoryID: food.ID, Amount: 400,
	})
	if err != nil {
		t.Fatalf("CreateBudgetCategory: %v", err)
	}
	if line.ID == 0 {
		t.Fatal("created budget category has no id")
	}

	exists, err := repo.BudgetCategoryExists(ctx, budget.ID, food.ID, 0)
	if err != nil || !exists {
		t.Errorf("BudgetCategoryExists = %v, %v; want true", exists, err)
	}
	exists, err = repo.BudgetCategoryExists(ctx, budget.ID, food.ID, line.ID)
	if err != nil || exists {
		t.Errorf("BudgetCategoryExists excluding self = %v, %v; want false", exists, err)
	}

	if err := repo.UpdateBudgetCategoryAmount(ctx, line.ID, 450); err != nil {
		t.Fatalf("UpdateBudgetCategoryAmount: %v", err)
	}
	if err := repo.UpdateBudgetCategoryCategory(ctx, line.ID, rent.ID); err != nil {
		t.Fatalf("UpdateBudgetCategoryCategory: %v", err)
	}

	lines, err := repo.ListBudgetLines(ctx, budget.ID)
	if err != nil {
		t.Fatalf("ListBudgetLines: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if lines[0].Amount != 450 || lines[0].Category.ID != rent.ID || lines[0].Category.Name != "Rent" {
		t.Errorf("line = %+v", lines[0])
	}

	if err := repo.DeleteBudgetCategory(ctx, line.ID); err != nil {
		t.Fatalf("DeleteBudgetCategory: %v", err)
	}
	if err := repo.DeleteBudgetCategory(ctx, line.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}
