package csvimport

import (
	"context"
	"errors"
	"strings"
	"testing"

	"budgeteer/internal/core"
)

type fakeCreator struct {
	created []core.Category
	nextID  int64
	fail    bool
}

func (f *fakeCreator) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	if f.fail {
		return core.Category{}, errors.New("boom")
	}
	f.nextID++
	c.ID = f.nextID
	f.created = append(f.created, c)
	return c, nil
}

func categorizerFixture() (*Data, Mapping, []core.Category) {
	data := &Data{
		Headers: []string{"category", "amount", "date", "name"},
		Rows: [][]string{
			{"Food", "$10.50", "2024-01-05", "Lunch"},
			{"Gas", "30", "2024-01-06", "Shell"},
			{"Food", "5", "2024-01-07", "Coffee"},
		},
	}
	mapping := Mapping{Category: "category", Amount: "amount", Date: "date", Name: "name"}
	existing := []core.Category{{ID: 1, Name: "Food", Type: core.Debit}}
	return data, mapping, existing
}

func TestCategorizerPartition(t *testing.T) {
	data, mapping, existing := categorizerFixture()
	c := NewCategorizer(data, mapping, existing)

	if got := c.Names(); !equalStrings(got, []string{"Food", "Gas"}) {
		t.Errorf("Names() = %v", got)
	}
	if got := c.Missing(); !equalStrings(got, []string{"Gas"}) {
		t.Errorf("Missing() = %v", got)
	}
	if c.Ready() {
		t.Error("Ready() should be false with an unresolved name")
	}
}

func TestCategorizerMatchIsCaseSensitive(t *testing.T) {
	data, mapping, _ := categorizerFixture()
	c := NewCategorizer(data, mapping, []core.Category{{ID: 1, Name: "food", Type: core.Debit}})
	if !equalStrings(c.Missing(), []string{"Food", "Gas"}) {
		t.Errorf("Missing() = %v, case-insensitive match happened", c.Missing())
	}
}

func TestCategorizerCommit(t *testing.T) {
	t.Run("creates missing and resolves rows", func(t *testing.T) {
		data, mapping, existing := categorizerFixture()
		c := NewCategorizer(data, mapping, existing)
		c.ResolveNew("Gas", "", "", "")

		creator := &fakeCreator{nextID: 10}
		rows, err := c.Commit(context.Background(), creator)
		if err != nil {
			t.Fatalf("Commit returned error: %v", err)
		}

		if len(creator.created) != 1 {
			t.Fatalf("created %d categories, want 1", len(creator.created))
		}
		// Defaults: name = raw value, type = DEBIT.
		if creator.created[0].Name != "Gas" || creator.created[0].Type != core.Debit {
			t.Errorf("created = %+v", creator.created[0])
		}

		if len(rows) != 3 {
			t.Fatalf("rows = %d, want 3", len(rows))
		}
		if rows[0].Category.ID != 1 || rows[0].Amount != 10.50 || rows[0].Name != "Lunch" {
			t.Errorf("row 0 = %+v", rows[0])
		}
		if rows[1].Category.Name != "Gas" || rows[1].Category.ID != 11 {
			t.Errorf("row 1 = %+v", rows[1])
		}
	})

	t.Run("assign to existing", func(t *testing.T) {
		data, mapping, existing := categorizerFixture()
		c := NewCategorizer(data, mapping, existing)
		c.ResolveExisting("Gas", existing[0])

		rows, err := c.Commit(context.Background(), &fakeCreator{})
		if err != nil {
			t.Fatalf("Commit returned error: %v", err)
		}
		if rows[1].Category.ID != 1 {
			t.Errorf("row 1 category = %+v, want existing Food", rows[1].Category)
		}
	})

	t.Run("blocked until resolved", func(t *testing.T) {
		data, mapping, existing := categorizerFixture()
		c := NewCategorizer(data, mapping, existing)
		if _, err := c.Commit(context.Background(), &fakeCreator{}); !errors.Is(err, ErrUnresolved) {
			t.Errorf("err = %v, want ErrUnresolved", err)
		}
	})

	t.Run("creation failure aborts everything", func(t *testing.T) {
		data, mapping, existing := categorizerFixture()
		c := NewCategorizer(data, mapping, existing)
		c.ResolveNew("Gas", "", "", "")

		_, err := c.Commit(context.Background(), &fakeCreator{fail: true})
		if err == nil || !strings.Contains(err.Error(), "Gas") {
			t.Errorf("err = %v, want create failure naming the category", err)
		}
	})
}
