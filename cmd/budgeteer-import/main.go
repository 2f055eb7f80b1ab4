// Command budgeteer-import loads a fixed-shape CSV of transactions
// into the database for one month. Unknown categories are resolved
// interactively; the answers are reused across rows within one run.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"budgeteer/internal/cli"
	"budgeteer/internal/core"
	"budgeteer/internal/csvimport"
	"budgeteer/internal/log"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: budgeteer-import <csv-path> <month 1-12> <year 1900-2100>")
}

func main() {
	logger := cli.SetupLogger(log.ComponentImport)
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(logger)

	if len(os.Args) != 4 {
		usage()
		os.Exit(2)
	}
	path := os.Args[1]
	month, err := strconv.Atoi(os.Args[2])
	if err != nil || month < 1 || month > 12 {
		fmt.Fprintln(os.Stderr, "month must be a number between 1 and 12")
		usage()
		os.Exit(2)
	}
	year, err := strconv.Atoi(os.Args[3])
	if err != nil || year < 1900 || year > 2100 {
		fmt.Fprintln(os.Stderr, "year must be a number between 1900 and 2100")
		usage()
		os.Exit(2)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot read %s: %v\n", path, err)
		usage()
		os.Exit(2)
	}

	rows, err := csvimport.ParseFixed(string(content))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	imp := &importer{
		store:     repo,
		in:        bufio.NewReader(os.Stdin),
		out:       os.Stdout,
		batchSize: cfg.ImportBatchSize,
		month:     month,
		year:      year,
	}

	summary, err := imp.run(context.Background(), rows)
	summary.print(os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// store is the storage surface the importer needs.
type store interface {
	ListCategories(ctx context.Context) ([]core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
}

type importer struct {
	store     store
	in        *bufio.Reader
	out       io.Writer
	batchSize int
	month     int
	year      int
}

type skippedRow struct {
	row    int
	reason string
}

type summary struct {
	rowsProcessed       int
	transactionsCreated int
	categoriesCreated   int
	skipped             []skippedRow
}

func (s summary) print(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Import summary:")
	fmt.Fprintf(w, "  rows processed:       %d\n", s.rowsProcessed)
	fmt.Fprintf(w, "  transactions created: %d\n", s.transactionsCreated)
	fmt.Fprintf(w, "  categories created:   %d\n", s.categoriesCreated)
	fmt.Fprintf(w, "  rows skipped:         %d\n", len(s.skipped))
	for _, sk := range s.skipped {
		fmt.Fprintf(w, "    row %d: %s\n", sk.row, sk.reason)
	}
}

// pendingTransaction is a validated row waiting for its category ID,
// referenced by the folded category name.
type pendingTransaction struct {
	row int
	key string
	tx  core.Transaction
}

func (imp *importer) run(ctx context.Context, rows []csvimport.FixedRow) (summary, error) {
	var sum summary
	sum.rowsProcessed = len(rows)

	existing, err := imp.store.ListCategories(ctx)
	if err != nil {
		return sum, fmt.Errorf("list categories: %w", err)
	}
	// Category names match case-insensitively, so the maps below are
	// keyed on the folded name.
	byName := make(map[string]core.Category, len(existing))
	for _, c := range existing {
		byName[strings.ToLower(c.Name)] = c
	}

	// First pass: validate every row and resolve category names,
	// prompting once per distinct unknown name.
	var pending []pendingTransaction
	newCategories := make(map[string]core.Category)
	lastDay := time.Date(imp.year, time.Month(imp.month)+1, 0, 0, 0, 0, 0, time.UTC).Day()

	for i, row := range rows {
		rowNum := i + 2

		amount := core.CleanAmount(row.Amount)
		if !core.ValidAmount(amount) {
			sum.skipped = append(sum.skipped, skippedRow{rowNum, fmt.Sprintf("invalid amount %q", row.Amount)})
			continue
		}

		day, err := strconv.Atoi(strings.TrimSpace(row.Day))
		if err != nil {
			sum.skipped = append(sum.skipped, skippedRow{rowNum, fmt.Sprintf("invalid day %q", row.Day)})
			continue
		}
		if day < 1 || day > lastDay {
			sum.skipped = append(sum.skipped, skippedRow{rowNum, fmt.Sprintf("day %d does not exist in %s", day, core.MonthName(imp.year, imp.month))})
			continue
		}

		name := strings.TrimSpace(row.Store)
		if name == "" {
			sum.skipped = append(sum.skipped, skippedRow{rowNum, "empty store name"})
			continue
		}

		raw := strings.TrimSpace(row.Type)
		if raw == "" {
			sum.skipped = append(sum.skipped, skippedRow{rowNum, "empty category"})
			continue
		}
		key := strings.ToLower(raw)
		if _, known := byName[key]; !known {
			if _, asked := newCategories[key]; !asked {
				answer := imp.promptCategory(raw)
				// The chosen name may collide with an existing
				// category; reuse that one instead of creating.
				if match, ok := byName[strings.ToLower(answer.Name)]; ok {
					byName[key] = match
				} else {
					newCategories[key] = answer
				}
			}
		}

		pending = append(pending, pendingTransaction{
			row: rowNum,
			key: key,
			tx: core.Transaction{
				Name:   name,
				Amount: amount,
				Date:   time.Date(imp.year, time.Month(imp.month), day, 0, 0, 0, 0, time.UTC),
			},
		})
	}

	// Create the new categories concurrently. Unlike transaction
	// inserts, a single failure here aborts the run: rows referencing
	// the failed category could not be imported anyway.
	if len(newCategories) > 0 {
		raws := make([]string, 0, len(newCategories))
		for raw := range newCategories {
			raws = append(raws, raw)
		}
		created := make([]core.Category, len(raws))

		g := new(errgroup.Group)
		for i, raw := range raws {
			g.Go(func() error {
				c, err := imp.store.CreateCategory(ctx, newCategories[raw])
				if err != nil {
					return fmt.Errorf("create category %q: %w", newCategories[raw].Name, err)
				}
				created[i] = c
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return sum, err
		}
		for i, raw := range raws {
			byName[raw] = created[i]
			sum.categoriesCreated++
		}
	}

	// Insert transactions in concurrent batches. A failed insert
	// skips that row; the rest of the batch proceeds.
	for start := 0; start < len(pending); start += imp.batchSize {
		end := min(start+imp.batchSize, len(pending))
		batch := pending[start:end]
		errs := make([]error, len(batch))

		g := new(errgroup.Group)
		for i, p := range batch {
			cat, ok := byName[p.key]
			if !ok {
				errs[i] = fmt.Errorf("category %q not resolved", p.key)
				continue
			}
			tx := p.tx
			tx.CategoryID = cat.ID
			g.Go(func() error {
				_, err := imp.store.CreateTransaction(ctx, tx)
				errs[i] = err
				return nil
			})
		}
		_ = g.Wait()

		for i, err := range errs {
			if err != nil {
				sum.skipped = append(sum.skipped, skippedRow{batch[i].row, fmt.Sprintf("insert failed: %v", err)})
				continue
			}
			sum.transactionsCreated++
		}
	}

	return sum, nil
}

// promptCategory asks for the details of one unknown category. Empty
// answers take the defaults: the raw CSV value as name, DEBIT as
// type.
func (imp *importer) promptCategory(raw string) core.Category {
	fmt.Fprintf(imp.out, "Unknown category %q.\n", raw)

	name := imp.prompt(fmt.Sprintf("  name [%s]: ", raw))
	if name == "" {
		name = raw
	}
	description := imp.prompt("  description []: ")

	for {
		answer := strings.ToUpper(imp.prompt("  type CREDIT/DEBIT [DEBIT]: "))
		if answer == "" {
			return core.Category{Name: name, Description: description, Type: core.Debit}
		}
		if t := core.CategoryType(answer); t.Valid() {
			return core.Category{Name: name, Description: description, Type: t}
		}
		fmt.Fprintln(imp.out, "  type must be CREDIT or DEBIT")
	}
}

func (imp *importer) prompt(label string) string {
	fmt.Fprint(imp.out, label)
	line, err := imp.in.ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	return strings.TrimSpace(line)
}
