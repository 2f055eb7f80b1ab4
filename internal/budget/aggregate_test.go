package budget

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"budgeteer/internal/core"
)

type fakeStore struct {
	groups      []core.BudgetGroup
	budgets     []core.Budget
	lines       map[int64][]core.BudgetLine
	sums        map[int64]float64
	nextID      int64
	failCreates map[int64]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		lines:       make(map[int64][]core.BudgetLine),
		sums:        make(map[int64]float64),
		failCreates: make(map[int64]bool),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) GetOrCreateBudgetGroup(_ context.Context, name string) (core.BudgetGroup, error) {
	for _, g := range f.groups {
		if g.Name == name {
			return g, nil
		}
	}
	g := core.BudgetGroup{ID: f.id(), Name: name}
	f.groups = append(f.groups, g)
	return g, nil
}

func (f *fakeStore) CreateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	b.ID = f.id()
	f.budgets = append(f.budgets, b)
	return b, nil
}

func (f *fakeStore) FindBudgetOverlapping(_ context.Context, start, end time.Time) (*core.Budget, error) {
	for i := range f.budgets {
		b := f.budgets[i]
		if !b.StartDate.After(end) && !b.EndDate.Before(start) {
			return &b, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListBudgetLines(_ context.Context, budgetID int64) ([]core.BudgetLine, error) {
	return f.lines[budgetID], nil
}

func (f *fakeStore) CreateBudgetCategory(_ context.Context, bc core.BudgetCategory) (core.BudgetCategory, error) {
	if f.failCreates[bc.CategoryID] {
		return core.BudgetCategory{}, errors.New("boom")
	}
	bc.ID = f.id()
	f.lines[bc.BudgetID] = append(f.lines[bc.BudgetID], core.BudgetLine{
		ID:       bc.ID,
		Amount:   bc.Amount,
		Category: core.Category{ID: bc.CategoryID},
	})
	return bc, nil
}

func (f *fakeStore) SumTransactionsByCategory(_ context.Context, _, _ time.Time) (map[int64]float64, error) {
	return f.sums, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (f *fakeStore) seedBudget(t *testing.T, year, month int) core.Budget {
	t.Helper()
	start, end := core.MonthWindow(year, month)
	b, err := f.CreateBudget(context.Background(), core.Budget{
		Name: core.MonthName(year, month), StartDate: start, EndDate: end, BudgetGroupID: 1,
	})
	if err != nil {
		t.Fatalf("seed budget: %v", err)
	}
	return b
}

func TestMonthReport(t *testing.T) {
	store := newFakeStore()
	a := NewAggregator(store, discardLogger())
	b := store.seedBudget(t, 2024, 3)

	food := core.Category{ID: 10, Name: "Food", Type: core.Debit}
	rent := core.Category{ID: 11, Name: "Rent", Type: core.Debit}
	salary := core.Category{ID: 12, Name: "Salary", Type: core.Credit}
	store.lines[b.ID] = []core.BudgetLine{
		{ID: 1, Amount: 500, Category: rent},
		{ID: 2, Amount: 400, Category: food},
		{ID: 3, Amount: 3000, Category: salary},
	}
	store.sums = map[int64]float64{10: 350, 11: 500, 12: 3100}

	report, err := a.MonthReport(context.Background(), 2024, 3)
	if err != nil {
		t.Fatalf("MonthReport: %v", err)
	}

	if report.Budget.ID != b.ID {
		t.Errorf("budget = %+v", report.Budget)
	}

	debit := report.Debit
	if len(debit.Categories) != 2 {
		t.Fatalf("debit categories = %d, want 2", len(debit.Categories))
	}
	// Sorted by category name: Food before Rent.
	if debit.Categories[0].Category.Name != "Food" {
		t.Errorf("first debit category = %q", debit.Categories[0].Category.Name)
	}
	// Under budget on debits is favorable.
	if got := debit.Categories[0].Difference; got != 50 {
		t.Errorf("food difference = %v, want 50", got)
	}
	if debit.Budgeted != 900 || debit.Actual != 850 || debit.Difference != 50 {
		t.Errorf("debit totals = %+v", debit)
	}

	credit := report.Credit
	if len(credit.Categories) != 1 {
		t.Fatalf("credit categories = %d, want 1", len(credit.Categories))
	}
	// Over budget on credits is favorable.
	if credit.Categories[0].Difference != 100 {
		t.Errorf("salary difference = %v, want 100", credit.Categories[0].Difference)
	}
}

func TestMonthReportNoBudget(t *testing.T) {
	a := NewAggregator(newFakeStore(), discardLogger())
	if _, err := a.MonthReport(context.Background(), 2024, 3); !errors.Is(err, ErrNoBudget) {
		t.Errorf("err = %v, want ErrNoBudget", err)
	}
}

func TestCreateBudget(t *testing.T) {
	store := newFakeStore()
	a := NewAggregator(store, discardLogger())

	b, err := a.CreateBudget(context.Background(), 2024, 3)
	if err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}
	if b.Name != "March 2024" {
		t.Errorf("name = %q, want March 2024", b.Name)
	}
	wantStart, wantEnd := core.MonthWindow(2024, 3)
	if !b.StartDate.Equal(wantStart) || !b.EndDate.Equal(wantEnd) {
		t.Errorf("range = %v..%v", b.StartDate, b.EndDate)
	}
	if len(store.groups) != 1 || store.groups[0].Name != core.DefaultBudgetGroup {
		t.Errorf("groups = %+v", store.groups)
	}

	_, err = a.CreateBudget(context.Background(), 2024, 3)
	if err == nil || err.Error() != "a budget already exists for March 2024" {
		t.Errorf("duplicate create err = %v", err)
	}
}

func TestCopyPreviousMonth(t *testing.T) {
	ctx := context.Background()

	t.Run("copies into a fresh month", func(t *testing.T) {
		store := newFakeStore()
		a := NewAggregator(store, discardLogger())
		prev := store.seedBudget(t, 2024, 2)
		store.lines[prev.ID] = []core.BudgetLine{
			{ID: 1, Amount: 500, Category: core.Category{ID: 10, Name: "Rent", Type: core.Debit}},
			{ID: 2, Amount: 400, Category: core.Category{ID: 11, Name: "Food", Type: core.Debit}},
		}

		copied, err := a.CopyPreviousMonth(ctx, 2024, 3)
		if err != nil {
			t.Fatalf("CopyPreviousMonth: %v", err)
		}
		if copied != 2 {
			t.Errorf("copied = %d, want 2", copied)
		}

		start, end := core.MonthWindow(2024, 3)
		current, _ := store.FindBudgetOverlapping(ctx, start, end)
		if current == nil {
			t.Fatal("current month budget was not created")
		}
		if len(store.lines[current.ID]) != 2 {
			t.Errorf("current lines = %d, want 2", len(store.lines[current.ID]))
		}
	})

	t.Run("requires a previous budget", func(t *testing.T) {
		a := NewAggregator(newFakeStore(), discardLogger())
		if _, err := a.CopyPreviousMonth(ctx, 2024, 3); !errors.Is(err, ErrNoPreviousBudget) {
			t.Errorf("err = %v, want ErrNoPreviousBudget", err)
		}
	})

	t.Run("rejects a month that already has lines", func(t *testing.T) {
		store := newFakeStore()
		a := NewAggregator(store, discardLogger())
		prev := store.seedBudget(t, 2024, 2)
		cur := store.seedBudget(t, 2024, 3)
		store.lines[prev.ID] = []core.BudgetLine{{ID: 1, Amount: 1, Category: core.Category{ID: 10}}}
		store.lines[cur.ID] = []core.BudgetLine{{ID: 2, Amount: 2, Category: core.Category{ID: 11}}}

		if _, err := a.CopyPreviousMonth(ctx, 2024, 3); !errors.Is(err, ErrBudgetNotEmpty) {
			t.Errorf("err = %v, want ErrBudgetNotEmpty", err)
		}
	})

	t.Run("partial failures still count", func(t *testing.T) {
		store := newFakeStore()
		a := NewAggregator(store, discardLogger())
		prev := store.seedBudget(t, 2024, 2)
		store.lines[prev.ID] = []core.BudgetLine{
			{ID: 1, Amount: 500, Category: core.Category{ID: 10}},
			{ID: 2, Amount: 400, Category: core.Category{ID: 11}},
		}
		store.failCreates[11] = true

		copied, err := a.CopyPreviousMonth(ctx, 2024, 3)
		if err != nil {
			t.Fatalf("CopyPreviousMonth: %v", err)
		}
		if copied != 1 {
			t.Errorf("copied = %d, want 1", copied)
		}
	})

	t.Run("all failures is an error", func(t *testing.T) {
		store := newFakeStore()
		a := NewAggregator(store, discardLogger())
		prev := store.seedBudget(t, 2024, 2)
		store.lines[prev.ID] = []core.BudgetLine{
			{ID: 1, Amount: 500, Category: core.Category{ID: 10}},
		}
		store.failCreates[10] = true

		if _, err := a.CopyPreviousMonth(ctx, 2024, 3); !errors.Is(err, ErrNothingCopied) {
			t.Errorf("err = %v, want ErrNothingCopied", err)
		}
	})

	t.Run("empty previous budget", func(t *testing.T) {
		store := newFakeStore()
		a := NewAggregator(store, discardLogger())
		store.seedBudget(t, 2024, 2)

		if _, err := a.CopyPreviousMonth(ctx, 2024, 3); !errors.Is(err, ErrNothingCopied) {
			t.Errorf("err = %v, want ErrNothingCopied", err)
		}
	})
}
