package csvimport

import (
	"context"
	"errors"
	"fmt"

	"budgeteer/internal/core"
)

// Step names one state of the import walkthrough.
type Step string

const (
	StepUpload         Step = "upload"
	StepPreview        Step = "preview"
	StepMapping        Step = "mapping"
	StepCategorization Step = "categorization"
	StepCleanup        Step = "cleanup"
	StepReview         Step = "review"
)

// Wizard is the import walkthrough state machine:
//
//	Upload -> Preview -> Mapping -> Categorization -> Cleanup -> Review
//
// Each forward transition is guarded by that step's completion
// predicate; Back walks one step towards Upload. All state lives in
// memory for one session and is discarded on Reset.
type Wizard struct {
	step       Step
	categories []core.Category

	FileName    string
	Data        *Data
	Mapping     Mapping
	Categorizer *Categorizer
	Target      *Target
	Rows        []CategorizedRow
	Clean       []CleanRow
}

var (
	ErrWrongStep         = errors.New("operation not valid in the current step")
	ErrMappingIncomplete = errors.New("all four fields must be mapped before continuing")
)

// NewWizard starts a walkthrough against the given set of existing
// categories.
func NewWizard(categories []core.Category) *Wizard {
	return &Wizard{step: StepUpload, categories: categories}
}

// Step returns the current state.
func (w *Wizard) Step() Step {
	return w.step
}

// Upload parses the file content and moves to the preview step. A
// parse failure keeps the wizard on Upload.
func (w *Wizard) Upload(fileName, text string) error {
	if w.step != StepUpload {
		return ErrWrongStep
	}
	data, err := Parse(text)
	if err != nil {
		return err
	}
	w.FileName = fileName
	w.Data = data
	w.step = StepPreview
	return nil
}

// EditCell updates one cell while previewing.
func (w *Wizard) EditCell(row, col int, value string) error {
	if w.step != StepPreview {
		return ErrWrongStep
	}
	if row < 0 || row >= len(w.Data.Rows) {
		return fmt.Errorf("row %d out of range", row)
	}
	if col < 0 || col >= len(w.Data.Headers) {
		return fmt.Errorf("column %d out of range", col)
	}
	cells := w.Data.Rows[row]
	for len(cells) <= col {
		cells = append(cells, "")
	}
	cells[col] = value
	w.Data.Rows[row] = cells
	return nil
}

// DeleteRow removes one row while previewing.
func (w *Wizard) DeleteRow(row int) error {
	if w.step != StepPreview {
		return ErrWrongStep
	}
	if row < 0 || row >= len(w.Data.Rows) {
		return fmt.Errorf("row %d out of range", row)
	}
	w.Data.Rows = append(w.Data.Rows[:row], w.Data.Rows[row+1:]...)
	return nil
}

// ConfirmPreview accepts the previewed grid and moves to mapping,
// seeding the mapping with the auto-match proposal.
func (w *Wizard) ConfirmPreview() error {
	if w.step != StepPreview {
		return ErrWrongStep
	}
	w.Mapping = AutoMatch(w.Data.Headers)
	w.step = StepMapping
	return nil
}

// AssignHeader overrides one field's mapped header.
func (w *Wizard) AssignHeader(f Field, header string) error {
	if w.step != StepMapping {
		return ErrWrongStep
	}
	if header != "" && headerIndex(w.Data.Headers, header) < 0 {
		return fmt.Errorf("unknown header %q", header)
	}
	w.Mapping.Assign(f, header)
	return nil
}

// CompleteMapping moves to categorization. Guard: all four fields
// assigned.
func (w *Wizard) CompleteMapping() error {
	if w.step != StepMapping {
		return ErrWrongStep
	}
	if !w.Mapping.Complete() {
		return ErrMappingIncomplete
	}
	w.Categorizer = NewCategorizer(w.Data, w.Mapping, w.categories)
	w.step = StepCategorization
	return nil
}

// CompleteCategorization commits category resolutions and moves to
// cleanup. Guard: every distinct CSV category resolved.
func (w *Wizard) CompleteCategorization(ctx context.Context, creator CategoryCreator) error {
	if w.step != StepCategorization {
		return ErrWrongStep
	}
	rows, err := w.Categorizer.Commit(ctx, creator)
	if err != nil {
		return err
	}
	w.Rows = rows
	if target, ok := InferTarget(w.FileName); ok {
		w.Target = &target
	}
	w.step = StepCleanup
	return nil
}

// CompleteCleanup resolves dates and moves to review. Guard: a target
// month/year confirmed whenever bare day numbers are present. The
// target passed in overrides any filename-inferred one; pass nil to
// keep the inferred target.
func (w *Wizard) CompleteCleanup(target *Target) error {
	if w.step != StepCleanup {
		return ErrWrongStep
	}
	if target != nil {
		w.Target = target
	}
	clean, err := Apply(w.Rows, w.Target)
	if err != nil {
		return err
	}
	w.Clean = clean
	w.step = StepReview
	return nil
}

// Summary returns the review statistics. Only valid on the review
// step.
func (w *Wizard) Summary() (Summary, error) {
	if w.step != StepReview {
		return Summary{}, ErrWrongStep
	}
	return Summarize(w.Clean), nil
}

// Back moves one step towards Upload, keeping already collected
// state so the operator can adjust and re-advance.
func (w *Wizard) Back() error {
	switch w.step {
	case StepPreview:
		w.step = StepUpload
	case StepMapping:
		w.step = StepPreview
	case StepCategorization:
		w.step = StepMapping
	case StepCleanup:
		w.step = StepCategorization
	case StepReview:
		w.step = StepCleanup
	default:
		return ErrWrongStep
	}
	return nil
}

// Reset discards the whole session.
func (w *Wizard) Reset() {
	*w = Wizard{step: StepUpload, categories: w.categories}
}
