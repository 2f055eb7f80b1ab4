package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"budgeteer/internal/core"
	"budgeteer/internal/csvimport"
	"budgeteer/internal/services"
)

// The import walkthrough keeps its state server-side; every route
// below takes a sessionId and advances or inspects that session's
// wizard. Sessions expire with the cache TTL, so an abandoned import
// costs nothing past that.

// importSession serializes access to one wizard. The wizard itself
// carries no locking, and concurrent requests can name the same
// sessionId.
type importSession struct {
	mu     sync.Mutex
	wizard *csvimport.Wizard
}

type wizardStateJSON struct {
	SessionID string `json:"sessionId"`
	Step      string `json:"step"`
	FileName  string `json:"fileName,omitempty"`

	Headers []string   `json:"headers,omitempty"`
	Rows    [][]string `json:"rows,omitempty"`

	Mapping           map[string]string `json:"mapping,omitempty"`
	Validity          map[string]bool   `json:"validity,omitempty"`
	MissingCategories []string          `json:"missingCategories,omitempty"`

	Target  *targetJSON  `json:"target,omitempty"`
	Summary *summaryJSON `json:"summary,omitempty"`
}

type targetJSON struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

type summaryJSON struct {
	Count         int            `json:"count"`
	CreditTotal   float64        `json:"creditTotal"`
	DebitTotal    float64        `json:"debitTotal"`
	CategoryCount int            `json:"categoryCount"`
	MinDate       time.Time      `json:"minDate"`
	MaxDate       time.Time      `json:"maxDate"`
	Preview       []cleanRowJSON `json:"preview"`
}

type cleanRowJSON struct {
	Name     string    `json:"name"`
	Amount   float64   `json:"amount"`
	Date     time.Time `json:"date"`
	Category string    `json:"category"`
}

func (s *Server) wizardState(id string, w *csvimport.Wizard) wizardStateJSON {
	state := wizardStateJSON{
		SessionID: id,
		Step:      string(w.Step()),
		FileName:  w.FileName,
	}
	if w.Data != nil {
		state.Headers = w.Data.Headers
		state.Rows = w.Data.Rows
	}
	if w.Step() == csvimport.StepMapping || w.Step() == csvimport.StepCategorization {
		state.Mapping = make(map[string]string, len(csvimport.Fields))
		for _, f := range csvimport.Fields {
			state.Mapping[string(f)] = w.Mapping.Get(f)
		}
	}
	// Per-column validity is advisory: shown while mapping so the
	// client can flag a suspect assignment, never blocking.
	if w.Step() == csvimport.StepMapping {
		state.Validity = make(map[string]bool, len(csvimport.Fields))
		for _, f := range csvimport.Fields {
			state.Validity[string(f)] = csvimport.ValidateColumn(w.Data, f, w.Mapping.Get(f))
		}
	}
	if w.Step() == csvimport.StepCategorization && w.Categorizer != nil {
		state.MissingCategories = w.Categorizer.Missing()
	}
	if w.Target != nil {
		state.Target = &targetJSON{Month: w.Target.Month, Year: w.Target.Year}
	}
	if w.Step() == csvimport.StepReview {
		if sum, err := w.Summary(); err == nil {
			state.Summary = toSummaryJSON(sum)
		}
	}
	return state
}

func toSummaryJSON(sum csvimport.Summary) *summaryJSON {
	out := &summaryJSON{
		Count:         sum.Count,
		CreditTotal:   sum.CreditTotal,
		DebitTotal:    sum.DebitTotal,
		CategoryCount: sum.CategoryCount,
		MinDate:       sum.MinDate,
		MaxDate:       sum.MaxDate,
		Preview:       make([]cleanRowJSON, 0, len(sum.Preview)),
	}
	for _, row := range sum.Preview {
		out.Preview = append(out.Preview, cleanRowJSON{
			Name:     row.Name,
			Amount:   row.Amount,
			Date:     row.Date,
			Category: row.Category.Name,
		})
	}
	return out
}

// writeWizardError distinguishes step-order violations from plain bad
// input.
func writeWizardError(w http.ResponseWriter, err error) {
	if errors.Is(err, csvimport.ErrWrongStep) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

// sessionFromRequest resolves the session named by the payload. The
// caller must hold sess.mu before touching the wizard.
func (s *Server) sessionFromRequest(w http.ResponseWriter, obj map[string]any) (*importSession, string, bool) {
	id, _ := obj["sessionId"].(string)
	if id == "" {
		writeError(w, http.StatusBadRequest, "import requires sessionId")
		return nil, "", false
	}
	sess, found := s.sessions.Get(id)
	if !found {
		writeError(w, http.StatusNotFound, "import session not found or expired")
		return nil, "", false
	}
	return sess, id, true
}

// touchSession refreshes the session TTL after activity.
func (s *Server) touchSession(id string, sess *importSession) {
	s.sessions.Set(id, sess)
}

func intField(obj map[string]any, field string) (int, bool) {
	f, ok := obj[field].(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func (s *Server) handleImportStart(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	obj, err := decodeObject(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	fileName, _ := obj["fileName"].(string)
	content, ok := obj["content"].(string)
	if !ok {
		writeError(w, http.StatusBadRequest, "import requires the csv content as a string")
		return
	}

	cats, err := s.categories.ListCategories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}

	wiz := csvimport.NewWizard(cats)
	if err := wiz.Upload(fileName, content); err != nil {
		writeWizardError(w, err)
		return
	}

	id := "imp_" + generateRequestID()[4:]
	s.sessions.Set(id, &importSession{wizard: wiz})
	writeJSON(w, http.StatusCreated, s.wizardState(id, wiz))
}

func (s *Server) handleImportState(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	obj, err := decodeObject(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, id, ok := s.sessionFromRequest(w, obj)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	wiz := sess.wizard
	writeJSON(w, http.StatusOK, s.wizardState(id, wiz))
}

func (s *Server) handleImportEditCell(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	obj, err := decodeObject(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, id, ok := s.sessionFromRequest(w, obj)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	wiz := sess.wizard
	row, rowOK := intField(obj, "row")
	col, colOK := intField(obj, "col")
	value, valueOK := obj["value"].(string)
	if !rowOK || !colOK || !valueOK {
		writeError(w, http.StatusBadRequest, "editing a cell requires row, col, and value")
		return
	}
	if err := wiz.EditCell(row, col, value); err != nil {
		writeWizardError(w, err)
		return
	}
	s.touchSession(id, sess)
	writeJSON(w, http.StatusOK, s.wizardState(id, wiz))
}

func (s *Server) handleImportDeleteRow(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	obj, err := decodeObject(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, id, ok := s.sessionFromRequest(w, obj)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	wiz := sess.wizard
	row, rowOK := intField(obj, "row")
	if !rowOK {
		writeError(w, http.StatusBadRequest, "deleting a row requires row")
		return
	}
	if err := wiz.DeleteRow(row); err != nil {
		writeWizardError(w, err)
		return
	}
	s.touchSession(id, sess)
	writeJSON(w, http.StatusOK, s.wizardState(id, wiz))
}

func (s *Server) handleImportConfirmPreview(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	obj, err := decodeObject(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, id, ok := s.sessionFromRequest(w, obj)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	wiz := sess.wizard
	if err := wiz.ConfirmPreview(); err != nil {
		writeWizardError(w, err)
		return
	}
	s.touchSession(id, sess)
	writeJSON(w, http.StatusOK, s.wizardState(id, wiz))
}

func (s *Server) handleImportAssignHeader(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	obj, err := decodeObject(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, id, ok := s.sessionFromRequest(w, obj)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	wiz := sess.wizard
	field, fieldOK := obj["field"].(string)
	header, headerOK := obj["header"].(string)
	if !fieldOK || !headerOK {
		writeError(w, http.StatusBadRequest, "assigning a header requires field and header")
		return
	}
	if err := wiz.AssignHeader(csvimport.Field(field), header); err != nil {
		writeWizardError(w, err)
		return
	}
	s.touchSession(id, sess)
	writeJSON(w, http.StatusOK, s.wizardState(id, wiz))
}

func (s *Server) handleImportCompleteMapping(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	obj, err := decodeObject(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, id, ok := s.sessionFromRequest(w, obj)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	wiz := sess.wizard
	if err := wiz.CompleteMapping(); err != nil {
		writeWizardError(w, err)
		return
	}
	s.touchSession(id, sess)
	writeJSON(w, http.StatusOK, s.wizardState(id, wiz))
}

func (s *Server) handleImportResolveCategory(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	obj, err := decodeObject(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, id, ok := s.sessionFromRequest(w, obj)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	wiz := sess.wizard
	if wiz.Step() != csvimport.StepCategorization || wiz.Categorizer == nil {
		writeError(w, http.StatusConflict, csvimport.ErrWrongStep.Error())
		return
	}
	raw, rawOK := obj["raw"].(string)
	if !rawOK || raw == "" {
		writeError(w, http.StatusBadRequest, "resolving a category requires raw")
		return
	}

	if existingID, hasExisting := obj["existingId"].(float64); hasExisting {
		cats, err := s.categories.ListCategories(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list categories")
			return
		}
		var match *core.Category
		for i := range cats {
			if cats[i].ID == int64(existingID) {
				match = &cats[i]
				break
			}
		}
		if match == nil {
			writeError(w, http.StatusBadRequest, "category not found")
			return
		}
		wiz.Categorizer.ResolveExisting(raw, *match)
	} else {
		name, _ := obj["name"].(string)
		description, _ := obj["description"].(string)
		typ, _ := obj["type"].(string)
		wiz.Categorizer.ResolveNew(raw, name, description, core.CategoryType(typ))
	}

	s.touchSession(id, sess)
	writeJSON(w, http.StatusOK, s.wizardState(id, wiz))
}

// serviceCategoryCreator lets the categorizer create categories
// through the same validated path the API uses.
type serviceCategoryCreator struct {
	svc *services.CategoryService
}

func (c serviceCategoryCreator) CreateCategory(ctx context.Context, cat core.Category) (core.Category, error) {
	props := map[string]any{
		"name": cat.Name,
		"type": string(cat.Type),
	}
	if cat.Description != "" {
		props["description"] = cat.Description
	}
	return c.svc.CreateCategory(ctx, props)
}

func (s *Server) handleImportCompleteCategorization(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	obj, err := decodeObject(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, id, ok := s.sessionFromRequest(w, obj)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	wiz := sess.wizard
	if err := wiz.CompleteCategorization(r.Context(), serviceCategoryCreator{svc: s.categories}); err != nil {
		writeWizardError(w, err)
		return
	}
	s.touchSession(id, sess)
	writeJSON(w, http.StatusOK, s.wizardState(id, wiz))
}

func (s *Server) handleImportCompleteCleanup(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	obj, err := decodeObject(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, id, ok := s.sessionFromRequest(w, obj)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	wiz := sess.wizard

	// A month and year in the payload override the filename-inferred
	// target; absent both, the inferred one (if any) is kept.
	var target *csvimport.Target
	month, monthOK := intField(obj, "month")
	year, yearOK := intField(obj, "year")
	if monthOK && yearOK {
		target = &csvimport.Target{Month: month, Year: year}
	} else if monthOK != yearOK {
		writeError(w, http.StatusBadRequest, "setting a target requires both month and year")
		return
	}

	if err := wiz.CompleteCleanup(target); err != nil {
		writeWizardError(w, err)
		return
	}
	s.touchSession(id, sess)
	writeJSON(w, http.StatusOK, s.wizardState(id, wiz))
}

func (s *Server) handleImportBack(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	obj, err := decodeObject(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, id, ok := s.sessionFromRequest(w, obj)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	wiz := sess.wizard
	if err := wiz.Back(); err != nil {
		writeWizardError(w, err)
		return
	}
	s.touchSession(id, sess)
	writeJSON(w, http.StatusOK, s.wizardState(id, wiz))
}

func (s *Server) handleImportReset(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	obj, err := decodeObject(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, id, ok := s.sessionFromRequest(w, obj)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	wiz := sess.wizard
	wiz.Reset()
	s.touchSession(id, sess)
	writeJSON(w, http.StatusOK, s.wizardState(id, wiz))
}

// handleImportCommit turns the reviewed rows into transactions via
// the bulk import path, then discards the session.
func (s *Server) handleImportCommit(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	obj, err := decodeObject(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, id, ok := s.sessionFromRequest(w, obj)
	if !ok {
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	wiz := sess.wizard
	if wiz.Step() != csvimport.StepReview {
		writeError(w, http.StatusConflict, csvimport.ErrWrongStep.Error())
		return
	}

	rows := make([]any, 0, len(wiz.Clean))
	for _, row := range wiz.Clean {
		rows = append(rows, map[string]any{
			"name":     row.Name,
			"amount":   row.Amount,
			"date":     row.Date,
			"category": row.Category.ID,
		})
	}

	result, err := s.transactions.BulkImportTransactions(r.Context(), rows)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.sessions.Delete(id)
	s.invalidateAllReports()
	writeJSON(w, http.StatusCreated, result)
}
