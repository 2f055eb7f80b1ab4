package csvimport

import (
	"errors"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	t.Run("headers and rows", func(t *testing.T) {
		data, err := Parse("category,amount,date,name\nFood,10.50,2024-01-05,Lunch")
		if err != nil {
			t.Fatalf("Parse returned error: %v", err)
		}
		wantHeaders := []string{"category", "amount", "date", "name"}
		if !equalStrings(data.Headers, wantHeaders) {
			t.Errorf("headers = %v, want %v", data.Headers, wantHeaders)
		}
		if len(data.Rows) != 1 {
			t.Fatalf("rows = %d, want 1", len(data.Rows))
		}
		wantRow := []string{"Food", "10.50", "2024-01-05", "Lunch"}
		if !equalStrings(data.Rows[0], wantRow) {
			t.Errorf("row = %v, want %v", data.Rows[0], wantRow)
		}
	})

	t.Run("quoted field keeps comma", func(t *testing.T) {
		data, err := Parse("category,amount\n\"Food, drinks\",10")
		if err != nil {
			t.Fatalf("Parse returned error: %v", err)
		}
		if data.Rows[0][0] != "Food, drinks" {
			t.Errorf("quoted field = %q, want %q", data.Rows[0][0], "Food, drinks")
		}
	})

	t.Run("values are trimmed", func(t *testing.T) {
		data, err := Parse("a, b \n 1 ,2")
		if err != nil {
			t.Fatalf("Parse returned error: %v", err)
		}
		if data.Headers[1] != "b" || data.Rows[0][0] != "1" {
			t.Errorf("values not trimmed: %v %v", data.Headers, data.Rows)
		}
	})

	t.Run("blank lines ignored", func(t *testing.T) {
		data, err := Parse("a,b\n\n1,2\n   \n3,4\n")
		if err != nil {
			t.Fatalf("Parse returned error: %v", err)
		}
		if len(data.Rows) != 2 {
			t.Errorf("rows = %d, want 2", len(data.Rows))
		}
	})

	t.Run("empty file", func(t *testing.T) {
		for _, text := range []string{"", "\n\n", "   \n"} {
			if _, err := Parse(text); !errors.Is(err, ErrEmptyFile) {
				t.Errorf("Parse(%q) err = %v, want ErrEmptyFile", text, err)
			}
		}
	})

	t.Run("column count mismatch rejects whole file", func(t *testing.T) {
		_, err := Parse("a,b,c\n1,2,3\n1,2")
		if err == nil {
			t.Fatal("expected error for short row")
		}
		if !strings.Contains(err.Error(), "row 3") {
			t.Errorf("error should name the offending row: %v", err)
		}
	})

	t.Run("dropped empty field causes mismatch", func(t *testing.T) {
		// An empty middle field is dropped, so the row ends up one
		// column short of the header.
		if _, err := Parse("a,b,c\n1,,3"); err == nil {
			t.Fatal("expected error when a dropped empty field shortens the row")
		}
	})
}

func TestParseFixed(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		rows, err := ParseFixed("Type,Amount,Day,Store\nGrocery,$45.20,3,Market\nGas,30,5,Shell")
		if err != nil {
			t.Fatalf("ParseFixed returned error: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("rows = %d, want 2", len(rows))
		}
		want := FixedRow{Type: "Grocery", Amount: "$45.20", Day: "3", Store: "Market"}
		if rows[0] != want {
			t.Errorf("row = %+v, want %+v", rows[0], want)
		}
	})

	t.Run("headers case-insensitive", func(t *testing.T) {
		if _, err := ParseFixed("type,amount,day,store\nGrocery,1,1,X"); err != nil {
			t.Errorf("lowercase headers rejected: %v", err)
		}
	})

	t.Run("wrong headers", func(t *testing.T) {
		if _, err := ParseFixed("Kind,Amount,Day,Store\nGrocery,1,1,X"); err == nil {
			t.Error("expected header validation error")
		}
	})

	t.Run("short row names offender", func(t *testing.T) {
		_, err := ParseFixed("Type,Amount,Day,Store\nGrocery,1,1,X\nGas,2,3")
		if err == nil || !strings.Contains(err.Error(), "row 3") {
			t.Errorf("err = %v, want row 3 named", err)
		}
	})

	t.Run("trailing comma tolerated", func(t *testing.T) {
		rows, err := ParseFixed("Type,Amount,Day,Store\nGrocery,1,1,X,")
		if err != nil {
			t.Fatalf("trailing comma rejected: %v", err)
		}
		if rows[0].Store != "X" {
			t.Errorf("row = %+v", rows[0])
		}
	})

	t.Run("fifth non-empty value rejected", func(t *testing.T) {
		if _, err := ParseFixed("Type,Amount,Day,Store\nGrocery,1,1,X,extra"); err == nil {
			t.Error("expected error for 5 values")
		}
	})

	t.Run("sixth value rejected even with empty fifth", func(t *testing.T) {
		if _, err := ParseFixed("Type,Amount,Day,Store\nGrocery,1,1,X,,extra"); err == nil {
			t.Error("expected error for 6 values")
		}
	})
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
