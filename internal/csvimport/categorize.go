package csvimport

import (
	"context"
	"errors"
	"fmt"

	"budgeteer/internal/core"
)

// CategoryCreator is the storage capability the categorizer needs to
// commit newly defined categories.
type CategoryCreator interface {
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
}

// Resolution records how one raw CSV category value maps to a real
// category: either an existing one or a new one to be created at
// commit time.
type Resolution struct {
	Existing *core.Category

	NewName        string
	NewDescription string
	NewType        core.CategoryType
}

func (r Resolution) isNew() bool {
	return r.Existing == nil
}

// CategorizedRow is a CSV row with its category resolved. The date is
// still the raw string; cleanup turns it into a concrete time.
type CategorizedRow struct {
	Category core.Category
	Amount   float64
	Date     string
	Name     string
}

// Categorizer reconciles the CSV category column against the existing
// categories. Raw values with a case-sensitive exact name match are
// resolved automatically; the rest block Commit until the operator
// resolves them.
type Categorizer struct {
	data        *Data
	mapping     Mapping
	names       []string
	resolutions map[string]Resolution
}

var ErrUnresolved = errors.New("all csv categories must be resolved before continuing")

func NewCategorizer(data *Data, mapping Mapping, existing []core.Category) *Categorizer {
	c := &Categorizer{
		data:        data,
		mapping:     mapping,
		resolutions: make(map[string]Resolution),
	}

	byName := make(map[string]core.Category, len(existing))
	for _, cat := range existing {
		byName[cat.Name] = cat
	}

	idx := headerIndex(data.Headers, mapping.Category)
	seen := make(map[string]bool)
	for _, row := range data.Rows {
		if idx < 0 || idx >= len(row) {
			continue
		}
		raw := row[idx]
		if seen[raw] {
			continue
		}
		seen[raw] = true
		c.names = append(c.names, raw)
		if cat, ok := byName[raw]; ok {
			c.resolutions[raw] = Resolution{Existing: &cat}
		}
	}

	return c
}

// Names returns every distinct CSV category value in first-seen
// order.
func (c *Categorizer) Names() []string {
	return c.names
}

// Missing returns the distinct values with no resolution yet, plus
// any the operator chose to create as new categories.
func (c *Categorizer) Missing() []string {
	var missing []string
	for _, n := range c.names {
		res, ok := c.resolutions[n]
		if !ok || res.isNew() {
			missing = append(missing, n)
		}
	}
	return missing
}

// ResolveNew marks raw to be created as a new category. The name
// defaults to the raw CSV value and the type to DEBIT when left
// empty.
func (c *Categorizer) ResolveNew(raw, name, description string, t core.CategoryType) {
	if name == "" {
		name = raw
	}
	if t == "" {
		t = core.Debit
	}
	c.resolutions[raw] = Resolution{NewName: name, NewDescription: description, NewType: t}
}

// ResolveExisting assigns raw to an existing category.
func (c *Categorizer) ResolveExisting(raw string, cat core.Category) {
	c.resolutions[raw] = Resolution{Existing: &cat}
}

// Ready reports whether every distinct CSV value has a resolution.
func (c *Categorizer) Ready() bool {
	for _, n := range c.names {
		if _, ok := c.resolutions[n]; !ok {
			return false
		}
	}
	return true
}

// Commit creates the new categories and resolves every row.
//
// Category creation is all-or-nothing: the first failed create aborts
// the whole step and nothing downstream runs. A row whose raw value
// somehow has no resolution is a hard error.
func (c *Categorizer) Commit(ctx context.Context, creator CategoryCreator) ([]CategorizedRow, error) {
	if !c.Ready() {
		return nil, ErrUnresolved
	}

	created := make(map[string]core.Category)
	for _, raw := range c.names {
		res := c.resolutions[raw]
		if !res.isNew() {
			continue
		}
		cat, err := creator.CreateCategory(ctx, core.Category{
			Name:        res.NewName,
			Description: res.NewDescription,
			Type:        res.NewType,
		})
		if err != nil {
			return nil, fmt.Errorf("create category %q: %w", res.NewName, err)
		}
		created[raw] = cat
	}

	catIdx := headerIndex(c.data.Headers, c.mapping.Category)
	amountIdx := headerIndex(c.data.Headers, c.mapping.Amount)
	dateIdx := headerIndex(c.data.Headers, c.mapping.Date)
	nameIdx := headerIndex(c.data.Headers, c.mapping.Name)

	rows := make([]CategorizedRow, 0, len(c.data.Rows))
	for _, row := range c.data.Rows {
		raw := row[catIdx]

		var cat core.Category
		if newCat, ok := created[raw]; ok {
			cat = newCat
		} else if res, ok := c.resolutions[raw]; ok && res.Existing != nil {
			cat = *res.Existing
		} else {
			return nil, fmt.Errorf("no category found for %q", raw)
		}

		rows = append(rows, CategorizedRow{
			Category: cat,
			Amount:   core.CleanAmount(row[amountIdx]),
			Date:     row[dateIdx],
			Name:     row[nameIdx],
		})
	}

	return rows, nil
}
