package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"budgeteer/internal/core"
)

// Response DTOs. The domain structs stay tag-free; the wire shape is
// an API concern.
type transactionJSON struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Amount     float64   `json:"amount"`
	Date       time.Time `json:"date"`
	CategoryID int64     `json:"categoryId"`
}

type categoryJSON struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

type budgetJSON struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

type budgetCategoryJSON struct {
	ID         int64   `json:"id"`
	BudgetID   int64   `json:"budgetId"`
	CategoryID int64   `json:"categoryId"`
	Amount     float64 `json:"amount"`
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	return transactionJSON{ID: t.ID, Name: t.Name, Amount: t.Amount, Date: t.Date, CategoryID: t.CategoryID}
}

func toCategoryJSON(c core.Category) categoryJSON {
	return categoryJSON{ID: c.ID, Name: c.Name, Description: c.Description, Type: string(c.Type)}
}

type okResponse struct {
	OK bool `json:"ok"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	props, err := decodeBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	created, err := s.transactions.CreateTransaction(r.Context(), props)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.invalidateAllReports()
	writeJSON(w, http.StatusCreated, toTransactionJSON(created))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	props, err := decodeBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.transactions.UpdateTransaction(r.Context(), props); err != nil {
		writeServiceError(w, err)
		return
	}
	s.invalidateAllReports()
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	props, err := decodeBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.transactions.DeleteTransaction(r.Context(), props); err != nil {
		writeServiceError(w, err)
		return
	}
	s.invalidateAllReports()
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleImportTransactions(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	props, err := decodeBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := s.transactions.BulkImportTransactions(r.Context(), props)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.invalidateAllReports()
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	cats, err := s.categories.ListCategories(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Category list error", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	out := make([]categoryJSON, 0, len(cats))
	for _, c := range cats {
		out = append(out, toCategoryJSON(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	props, err := decodeBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	created, err := s.categories.CreateCategory(r.Context(), props)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryJSON(created))
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	props, err := decodeBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.categories.UpdateCategory(r.Context(), props); err != nil {
		writeServiceError(w, err)
		return
	}
	// Renaming a category changes how report lines are labelled.
	s.invalidateAllReports()
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	props, err := decodeBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.categories.DeleteCategory(r.Context(), props); err != nil {
		writeServiceError(w, err)
		return
	}
	s.invalidateAllReports()
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	props, err := decodeBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	created, err := s.budgets.CreateBudget(r.Context(), props)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.invalidateReport(created.StartDate.Year(), int(created.StartDate.Month()))
	writeJSON(w, http.StatusCreated, budgetJSON{
		ID:        created.ID,
		Name:      created.Name,
		StartDate: created.StartDate,
		EndDate:   created.EndDate,
	})
}

// handleBudgetReport serves the monthly report, cached per month.
// Year and month default to the current date when absent.
func (s *Server) handleBudgetReport(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}

	now := time.Now()
	year := now.Year()
	month := int(now.Month())
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "year must be a number")
			return
		}
		year = y
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be a number")
			return
		}
		month = m
	}
	if month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "month must be between 1 and 12")
		return
	}
	if !core.ValidYear(year) {
		writeError(w, http.StatusBadRequest, "year must be between 1900 and 2100")
		return
	}

	key := reportCacheKey(year, month)
	if report, found := s.reportCache.Get(key); found {
		slog.DebugContext(r.Context(), "Report cache hit", "year", year, "month", month)
		writeJSON(w, http.StatusOK, report)
		return
	}

	report, err := s.budgets.MonthReport(r.Context(), year, month)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.reportCache.Set(key, report)
	writeJSON(w, http.StatusOK, report)
}

type copyResponse struct {
	CopiedCount int `json:"copiedCount"`
}

func (s *Server) handleCopyPreviousMonth(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	props, err := decodeBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	count, err := s.budgets.CopyPreviousMonthCategories(r.Context(), props)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.invalidateAllReports()
	writeJSON(w, http.StatusOK, copyResponse{CopiedCount: count})
}

func (s *Server) handleCreateBudgetCategory(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	props, err := decodeBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	created, err := s.budgets.CreateBudgetCategory(r.Context(), props)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.invalidateAllReports()
	writeJSON(w, http.StatusCreated, budgetCategoryJSON{
		ID:         created.ID,
		BudgetID:   created.BudgetID,
		CategoryID: created.CategoryID,
		Amount:     created.Amount,
	})
}

func (s *Server) handleUpdateBudgetCategory(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	props, err := decodeBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.budgets.UpdateBudgetCategory(r.Context(), props); err != nil {
		writeServiceError(w, err)
		return
	}
	s.invalidateAllReports()
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleUpdateBudgetCategoryCategory(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	props, err := decodeBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.budgets.UpdateBudgetCategoryCategory(r.Context(), props); err != nil {
		writeServiceError(w, err)
		return
	}
	s.invalidateAllReports()
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleDeleteBudgetCategory(w http.ResponseWriter, r *http.Request) {
	if !requirePOST(w, r) {
		return
	}
	props, err := decodeBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.budgets.DeleteBudgetCategory(r.Context(), props); err != nil {
		writeServiceError(w, err)
		return
	}
	s.invalidateAllReports()
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
