package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"budgeteer/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row the caller named does not exist.
var ErrNotFound = errors.New("not found")

// dateLayout is a fixed-width UTC format so stored dates compare
// correctly as strings in range queries.
const dateLayout = "2006-01-02T15:04:05.000000000Z"

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- categories ---

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, description, type) VALUES (?, ?, ?)`,
		c.Name, c.Description, string(c.Type))
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("create category id: %w", err)
	}
	c.ID = id

	slog.InfoContext(ctx, "Category created", "id", c.ID, "name", c.Name, "type", c.Type)
	return c, nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, description = ?, type = ? WHERE id = ?`,
		c.Name, c.Description, string(c.Type), c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return requireAffected(res, "category")
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return requireAffected(res, "category")
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	var c core.Category
	var t string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, type FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Description, &t)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	c.Type = core.CategoryType(t)
	return c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, type FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var c core.Category
		var t string
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &t); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Type = core.CategoryType(t)
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CategoryNameExists reports whether another category already uses the
// name, ignoring case. Pass excludeID 0 when creating.
func (r *SQLiteRepository) CategoryNameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categories WHERE LOWER(name) = LOWER(?) AND id != ?`,
		name, excludeID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check category name: %w", err)
	}
	return n > 0, nil
}

// CategoriesExist checks every id in one query and returns the ids
// with no matching category.
func (r *SQLiteRepository) CategoriesExist(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	distinct := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			distinct = append(distinct, id)
		}
	}

	placeholders := strings.Repeat("?,", len(distinct))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(distinct))
	for i, id := range distinct {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM categories WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("check categories: %w", err)
	}
	defer rows.Close()

	found := make(map[int64]bool, len(distinct))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan category id: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []int64
	for _, id := range distinct {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// --- transactions ---

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (name, amount, date, category_id) VALUES (?, ?, ?, ?)`,
		t.Name, t.Amount, formatDate(t.Date), t.CategoryID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction id: %w", err)
	}
	t.ID = id

	slog.InfoContext(ctx, "Transaction created", "id", t.ID, "name", t.Name, "amount", t.Amount)
	return t, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET name = ?, amount = ?, date = ?, category_id = ? WHERE id = ?`,
		t.Name, t.Amount, formatDate(t.Date), t.CategoryID, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireAffected(res, "transaction")
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireAffected(res, "transaction")
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	var t core.Transaction
	var date string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, amount, date, category_id FROM transactions WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Amount, &date, &t.CategoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	if t.Date, err = parseDate(date); err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction date: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, start, end time.Time) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, amount, date, category_id FROM transactions
		 WHERE date >= ? AND date <= ? ORDER BY date, id`,
		formatDate(start), formatDate(end))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []core.Transaction
	for rows.Next() {
		var t core.Transaction
		var date string
		if err := rows.Scan(&t.ID, &t.Name, &t.Amount, &date, &t.CategoryID); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if t.Date, err = parseDate(date); err != nil {
			return nil, fmt.Errorf("parse transaction date: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// BulkInsertTransactions inserts every row in one database
// transaction and returns them with their generated ids. Any failure
// rolls the whole batch back.
func (r *SQLiteRepository) BulkInsertTransactions(ctx context.Context, ts []core.Transaction) ([]core.Transaction, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin bulk insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO transactions (name, amount, date, category_id) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare bulk insert: %w", err)
	}
	defer stmt.Close()

	inserted := make([]core.Transaction, 0, len(ts))
	for i, t := range ts {
		res, err := stmt.ExecContext(ctx, t.Name, t.Amount, formatDate(t.Date), t.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("insert transaction %d: %w", i, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("insert transaction %d id: %w", i, err)
		}
		t.ID = id
		inserted = append(inserted, t)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bulk insert: %w", err)
	}

	slog.InfoContext(ctx, "Transactions bulk inserted", "count", len(inserted))
	return inserted, nil
}

// SumTransactionsByCategory sums transaction amounts per category over
// the inclusive date range.
func (r *SQLiteRepository) SumTransactionsByCategory(ctx context.Context, start, end time.Time) (map[int64]float64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category_id, SUM(amount) FROM transactions
		 WHERE date >= ? AND date <= ? GROUP BY category_id`,
		formatDate(start), formatDate(end))
	if err != nil {
		return nil, fmt.Errorf("sum transactions: %w", err)
	}
	defer rows.Close()

	sums := make(map[int64]float64)
	for rows.Next() {
		var id int64
		var total float64
		if err := rows.Scan(&id, &total); err != nil {
			return nil, fmt.Errorf("scan transaction sum: %w", err)
		}
		sums[id] = total
	}
	return sums, rows.Err()
}

// --- budget groups ---

func (r *SQLiteRepository) GetOrCreateBudgetGroup(ctx context.Context, name string) (core.BudgetGroup, error) {
	var g core.BudgetGroup
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name FROM budget_groups WHERE name = ?`, name).
		Scan(&g.ID, &g.Name)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return core.BudgetGroup{}, fmt.Errorf("get budget group: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `INSERT INTO budget_groups (name) VALUES (?)`, name)
	if err != nil {
		return core.BudgetGroup{}, fmt.Errorf("create budget group: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.BudgetGroup{}, fmt.Errorf("create budget group id: %w", err)
	}

	slog.InfoContext(ctx, "Budget group created", "id", id, "name", name)
	return core.BudgetGroup{ID: id, Name: name}, nil
}

func (r *SQLiteRepository) ListBudgetGroups(ctx context.Context) ([]core.BudgetGroup, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM budget_groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list budget groups: %w", err)
	}
	defer rows.Close()

	var groups []core.BudgetGroup
	for rows.Next() {
		var g core.BudgetGroup
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("scan budget group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// --- budgets ---

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (name, start_date, end_date, budget_group_id) VALUES (?, ?, ?, ?)`,
		b.Name, formatDate(b.StartDate), formatDate(b.EndDate), b.BudgetGroupID)
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget id: %w", err)
	}
	b.ID = id

	slog.InfoContext(ctx, "Budget created", "id", b.ID, "name", b.Name)
	return b, nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, id int64) (core.Budget, error) {
	b, err := scanBudget(r.db.QueryRowContext(ctx,
		`SELECT id, name, start_date, end_date, budget_group_id FROM budgets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

// FindBudgetOverlapping returns the first budget whose date range
// overlaps [start, end], or nil when there is none.
func (r *SQLiteRepository) FindBudgetOverlapping(ctx context.Context, start, end time.Time) (*core.Budget, error) {
	b, err := scanBudget(r.db.QueryRowContext(ctx,
		`SELECT id, name, start_date, end_date, budget_group_id FROM budgets
		 WHERE start_date <= ? AND end_date >= ? ORDER BY id LIMIT 1`,
		formatDate(end), formatDate(start)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find budget: %w", err)
	}
	return &b, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBudget(row rowScanner) (core.Budget, error) {
	var b core.Budget
	var start, end string
	if err := row.Scan(&b.ID, &b.Name, &start, &end, &b.BudgetGroupID); err != nil {
		return core.Budget{}, err
	}
	var err error
	if b.StartDate, err = parseDate(start); err != nil {
		return core.Budget{}, fmt.Errorf("parse budget start date: %w", err)
	}
	if b.EndDate, err = parseDate(end); err != nil {
		return core.Budget{}, fmt.Errorf("parse budget end date: %w", err)
	}
	return b, nil
}

// --- budget categories ---

func (r *SQLiteRepository) CreateBudgetCategory(ctx context.Context, bc core.BudgetCategory) (core.BudgetCategory, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budget_categories (budget_id, category_id, amount) VALUES (?, ?, ?)`,
		bc.BudgetID, bc.CategoryID, bc.Amount)
	if err != nil {
		return core.BudgetCategory{}, fmt.Errorf("create budget category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.BudgetCategory{}, fmt.Errorf("create budget category id: %w", err)
	}
	bc.ID = id
	return bc, nil
}

func (r *SQLiteRepository) UpdateBudgetCategoryAmount(ctx context.Context, id int64, amount float64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE budget_categories SET amount = ? WHERE id = ?`, amount, id)
	if err != nil {
		return fmt.Errorf("update budget category amount: %w", err)
	}
	return requireAffected(res, "budget category")
}

func (r *SQLiteRepository) UpdateBudgetCategoryCategory(ctx context.Context, id, categoryID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE budget_categories SET category_id = ? WHERE id = ?`, categoryID, id)
	if err != nil {
		return fmt.Errorf("update budget category: %w", err)
	}
	return requireAffected(res, "budget category")
}

func (r *SQLiteRepository) DeleteBudgetCategory(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budget_categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete budget category: %w", err)
	}
	return requireAffected(res, "budget category")
}

func (r *SQLiteRepository) GetBudgetCategory(ctx context.Context, id int64) (core.BudgetCategory, error) {
	var bc core.BudgetCategory
	err := r.db.QueryRowContext(ctx,
		`SELECT id, budget_id, category_id, amount FROM budget_categories WHERE id = ?`, id).
		Scan(&bc.ID, &bc.BudgetID, &bc.CategoryID, &bc.Amount)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BudgetCategory{}, fmt.Errorf("budget category %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.BudgetCategory{}, fmt.Errorf("get budget category: %w", err)
	}
	return bc, nil
}

// BudgetCategoryExists reports whether the budget already has a line
// for the category. Pass excludeID 0 when creating; pass the line's
// own id when moving it so it does not collide with itself.
func (r *SQLiteRepository) BudgetCategoryExists(ctx context.Context, budgetID, categoryID, excludeID int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM budget_categories WHERE budget_id = ? AND category_id = ? AND id != ?`,
		budgetID, categoryID, excludeID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check budget category: %w", err)
	}
	return n > 0, nil
}

// ListBudgetLines returns the budget's lines joined with their
// categories, ordered by category name.
func (r *SQLiteRepository) ListBudgetLines(ctx context.Context, budgetID int64) ([]core.BudgetLine, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT bc.id, bc.amount, c.id, c.name, c.description, c.type
		 FROM budget_categories bc
		 JOIN categories c ON c.id = bc.category_id
		 WHERE bc.budget_id = ?
		 ORDER BY c.name`, budgetID)
	if err != nil {
		return nil, fmt.Errorf("list budget lines: %w", err)
	}
	defer rows.Close()

	var lines []core.BudgetLine
	for rows.Next() {
		var line core.BudgetLine
		var t string
		if err := rows.Scan(&line.ID, &line.Amount,
			&line.Category.ID, &line.Category.Name, &line.Category.Description, &t); err != nil {
			return nil, fmt.Errorf("scan budget line: %w", err)
		}
		line.Category.Type = core.CategoryType(t)
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
