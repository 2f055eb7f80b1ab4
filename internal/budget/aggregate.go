package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"budgeteer/internal/core"
)

// Store is the storage capability the aggregator consumes.
type Store interface {
	GetOrCreateBudgetGroup(ctx context.Context, name string) (core.BudgetGroup, error)
	CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	FindBudgetOverlapping(ctx context.Context, start, end time.Time) (*core.Budget, error)
	ListBudgetLines(ctx context.Context, budgetID int64) ([]core.BudgetLine, error)
	CreateBudgetCategory(ctx context.Context, bc core.BudgetCategory) (core.BudgetCategory, error)
	SumTransactionsByCategory(ctx context.Context, start, end time.Time) (map[int64]float64, error)
}

// CategoryReport is one budget line with its actual spend.
type CategoryReport struct {
	BudgetCategoryID int64         `json:"budgetCategoryId"`
	Category         core.Category `json:"category"`
	Budgeted         float64       `json:"budgeted"`
	Actual           float64       `json:"actual"`
	Difference       float64       `json:"difference"`
}

// GroupReport aggregates one side of the budget. Difference is signed
// so that positive is always favorable: under budget for debits, over
// budget for credits.
type GroupReport struct {
	Budgeted   float64          `json:"budgeted"`
	Actual     float64          `json:"actual"`
	Difference float64          `json:"difference"`
	Categories []CategoryReport `json:"categories"`
}

// Report is the month view: the budget and its credit and debit sides.
type Report struct {
	Budget core.Budget `json:"budget"`
	Credit GroupReport `json:"credit"`
	Debit  GroupReport `json:"debit"`
}

var ErrNoBudget = errors.New("no budget found for this month")

// AlreadyExistsError reports a creation conflict with the overlapping
// budget's display name.
type AlreadyExistsError struct {
	Name string
}

func (e *AlreadyExistsError) Error() string {
	return "a budget already exists for " + e.Name
}

type Aggregator struct {
	store Store
	log   *slog.Logger
}

func NewAggregator(store Store, log *slog.Logger) *Aggregator {
	return &Aggregator{store: store, log: log}
}

// MonthReport builds the report for the budget overlapping the given
// month. Transaction sums cover the budget's own stored date range,
// not the calendar month, so a budget spanning unusual dates reports
// against what it actually covers.
func (a *Aggregator) MonthReport(ctx context.Context, year, month int) (Report, error) {
	start, end := core.MonthWindow(year, month)

	budget, err := a.store.FindBudgetOverlapping(ctx, start, end)
	if err != nil {
		return Report{}, fmt.Errorf("find budget: %w", err)
	}
	if budget == nil {
		return Report{}, ErrNoBudget
	}

	lines, err := a.store.ListBudgetLines(ctx, budget.ID)
	if err != nil {
		return Report{}, fmt.Errorf("list budget lines: %w", err)
	}

	sums, err := a.store.SumTransactionsByCategory(ctx, budget.StartDate, budget.EndDate)
	if err != nil {
		return Report{}, fmt.Errorf("sum transactions: %w", err)
	}

	report := Report{Budget: *budget}
	for _, line := range lines {
		actual := sums[line.Category.ID]
		cr := CategoryReport{
			BudgetCategoryID: line.ID,
			Category:         line.Category,
			Budgeted:         line.Amount,
			Actual:           actual,
		}
		switch line.Category.Type {
		case core.Credit:
			cr.Difference = actual - line.Amount
			report.Credit.Categories = append(report.Credit.Categories, cr)
		default:
			cr.Difference = line.Amount - actual
			report.Debit.Categories = append(report.Debit.Categories, cr)
		}
	}

	finishGroup(&report.Credit)
	finishGroup(&report.Debit)

	return report, nil
}

func finishGroup(g *GroupReport) {
	sort.Slice(g.Categories, func(i, j int) bool {
		return g.Categories[i].Category.Name < g.Categories[j].Category.Name
	})
	for _, c := range g.Categories {
		g.Budgeted += c.Budgeted
		g.Actual += c.Actual
		g.Difference += c.Difference
	}
}

// CreateBudget creates the budget covering the given month with the
// month's display name, under the lazily created default group. Any
// budget already overlapping the month is a conflict.
func (a *Aggregator) CreateBudget(ctx context.Context, year, month int) (core.Budget, error) {
	start, end := core.MonthWindow(year, month)

	existing, err := a.store.FindBudgetOverlapping(ctx, start, end)
	if err != nil {
		return core.Budget{}, fmt.Errorf("find budget: %w", err)
	}
	if existing != nil {
		return core.Budget{}, &AlreadyExistsError{Name: core.MonthName(year, month)}
	}

	group, err := a.store.GetOrCreateBudgetGroup(ctx, core.DefaultBudgetGroup)
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget group: %w", err)
	}

	budget, err := a.store.CreateBudget(ctx, core.Budget{
		Name:          core.MonthName(year, month),
		StartDate:     start,
		EndDate:       end,
		BudgetGroupID: group.ID,
	})
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	return budget, nil
}

var (
	ErrNoPreviousBudget = errors.New("no budget found for the previous month")
	ErrBudgetNotEmpty   = errors.New("the budget for this month already has categories")
	ErrNothingCopied    = errors.New("no budget categories could be copied")
)

// CopyPreviousMonth clones the previous month's budget lines into the
// given month, creating the month's budget if needed. Copying is best
// effort per line; it fails only when not a single line made it.
func (a *Aggregator) CopyPreviousMonth(ctx context.Context, year, month int) (int, error) {
	prevYear, prevMonth := core.PreviousMonth(year, month)
	prevStart, prevEnd := core.MonthWindow(prevYear, prevMonth)

	previous, err := a.store.FindBudgetOverlapping(ctx, prevStart, prevEnd)
	if err != nil {
		return 0, fmt.Errorf("find previous budget: %w", err)
	}
	if previous == nil {
		return 0, ErrNoPreviousBudget
	}

	lines, err := a.store.ListBudgetLines(ctx, previous.ID)
	if err != nil {
		return 0, fmt.Errorf("list previous budget lines: %w", err)
	}

	start, end := core.MonthWindow(year, month)
	current, err := a.store.FindBudgetOverlapping(ctx, start, end)
	if err != nil {
		return 0, fmt.Errorf("find budget: %w", err)
	}
	if current == nil {
		created, err := a.CreateBudget(ctx, year, month)
		if err != nil {
			return 0, err
		}
		current = &created
	} else {
		existing, err := a.store.ListBudgetLines(ctx, current.ID)
		if err != nil {
			return 0, fmt.Errorf("list budget lines: %w", err)
		}
		if len(existing) > 0 {
			return 0, ErrBudgetNotEmpty
		}
	}

	copied := 0
	for _, line := range lines {
		_, err := a.store.CreateBudgetCategory(ctx, core.BudgetCategory{
			BudgetID:   current.ID,
			CategoryID: line.Category.ID,
			Amount:     line.Amount,
		})
		if err != nil {
			a.log.WarnContext(ctx, "Failed to copy budget category",
				"category_id", line.Category.ID, "error", err)
			continue
		}
		copied++
	}

	if copied == 0 {
		return 0, ErrNothingCopied
	}

	a.log.InfoContext(ctx, "Budget categories copied from previous month",
		"from", previous.Name, "to", current.Name, "copied", copied)
	return copied, nil
}
