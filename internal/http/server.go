package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"budgeteer/internal/budget"
	"budgeteer/internal/services"
)

// Server is the JSON API over the budgeting services. It owns the
// month report cache and the in-memory import sessions; both live
// only as long as the process.
type Server struct {
	http.Server
	transactions *services.TransactionService
	categories   *services.CategoryService
	budgets      *services.BudgetService
	rateLimiter  *rateLimiter

	// LRU cache for month reports with eviction policy
	reportCache *lruCache[budget.Report]

	// Import wizard sessions, keyed by session ID. The TTL bounds how
	// long an abandoned walkthrough holds its parsed CSV in memory.
	sessions *lruCache[*importSession]

	// Cache cleanup management
	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, ts *services.TransactionService, cs *services.CategoryService, bs *services.BudgetService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		transactions:     ts,
		categories:       cs,
		budgets:          bs,
		rateLimiter:      newRateLimiter(),
		reportCache:      newLRUCache[budget.Report](100, 5*time.Minute),
		sessions:         newLRUCache[*importSession](100, 30*time.Minute),
		stopCacheCleanup: make(chan struct{}),
	}

	// Start periodic cache cleanup
	go s.startCacheCleanup()

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/transactions/create", s.withSecurityHeaders(s.handleCreateTransaction))
	mux.HandleFunc("/transactions/update", s.withSecurityHeaders(s.handleUpdateTransaction))
	mux.HandleFunc("/transactions/delete", s.withSecurityHeaders(s.handleDeleteTransaction))
	mux.HandleFunc("/transactions/import", s.withSecurityHeaders(s.handleImportTransactions))

	mux.HandleFunc("/categories", s.withSecurityHeaders(s.handleListCategories))
	mux.HandleFunc("/categories/create", s.withSecurityHeaders(s.handleCreateCategory))
	mux.HandleFunc("/categories/update", s.withSecurityHeaders(s.handleUpdateCategory))
	mux.HandleFunc("/categories/delete", s.withSecurityHeaders(s.handleDeleteCategory))

	mux.HandleFunc("/budgets/create", s.withSecurityHeaders(s.handleCreateBudget))
	mux.HandleFunc("/budgets/report", s.withSecurityHeaders(s.handleBudgetReport))
	mux.HandleFunc("/budgets/copy-previous", s.withSecurityHeaders(s.handleCopyPreviousMonth))

	mux.HandleFunc("/budget-categories/create", s.withSecurityHeaders(s.handleCreateBudgetCategory))
	mux.HandleFunc("/budget-categories/update", s.withSecurityHeaders(s.handleUpdateBudgetCategory))
	mux.HandleFunc("/budget-categories/update-category", s.withSecurityHeaders(s.handleUpdateBudgetCategoryCategory))
	mux.HandleFunc("/budget-categories/delete", s.withSecurityHeaders(s.handleDeleteBudgetCategory))

	// Import wizard session routes
	mux.HandleFunc("/import/start", s.withSecurityHeaders(s.handleImportStart))
	mux.HandleFunc("/import/state", s.withSecurityHeaders(s.handleImportState))
	mux.HandleFunc("/import/edit-cell", s.withSecurityHeaders(s.handleImportEditCell))
	mux.HandleFunc("/import/delete-row", s.withSecurityHeaders(s.handleImportDeleteRow))
	mux.HandleFunc("/import/confirm-preview", s.withSecurityHeaders(s.handleImportConfirmPreview))
	mux.HandleFunc("/import/assign-header", s.withSecurityHeaders(s.handleImportAssignHeader))
	mux.HandleFunc("/import/complete-mapping", s.withSecurityHeaders(s.handleImportCompleteMapping))
	mux.HandleFunc("/import/resolve-category", s.withSecurityHeaders(s.handleImportResolveCategory))
	mux.HandleFunc("/import/complete-categorization", s.withSecurityHeaders(s.handleImportCompleteCategorization))
	mux.HandleFunc("/import/complete-cleanup", s.withSecurityHeaders(s.handleImportCompleteCleanup))
	mux.HandleFunc("/import/back", s.withSecurityHeaders(s.handleImportBack))
	mux.HandleFunc("/import/reset", s.withSecurityHeaders(s.handleImportReset))
	mux.HandleFunc("/import/commit", s.withSecurityHeaders(s.handleImportCommit))

	return s
}

// startCacheCleanup runs periodic cleanup for both caches
func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			reportsCleaned := s.reportCache.CleanExpired()
			sessionsCleaned := s.sessions.CleanExpired()
			if reportsCleaned > 0 || sessionsCleaned > 0 {
				slog.Debug("Cache cleanup completed",
					"report_entries_removed", reportsCleaned,
					"import_sessions_removed", sessionsCleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	// Ensure shutdown logic runs only once
	s.shutdownOnce.Do(func() {
		// Stop cache cleanup goroutine
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}

		// Stop rate limiter cleanup goroutine
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}

		// Shutdown HTTP server
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request logging to responses
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Extract client IP (considering proxies)
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		// Generate request ID for tracing
		requestID := generateRequestID()

		// Add request context with metadata and request ID
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		// Apply rate limiting to POST requests (all mutations)
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// Create a custom response writer to capture status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		// Log request completion
		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func reportCacheKey(year, month int) string {
	return strconv.Itoa(year) + "-" + strconv.Itoa(month)
}

// invalidateReport drops the cached report for one known month.
func (s *Server) invalidateReport(year, month int) {
	s.reportCache.Delete(reportCacheKey(year, month))
}

// invalidateAllReports drops every cached report. Transaction
// mutations land here: their dates are validated inside the service,
// so the route does not know which months changed.
func (s *Server) invalidateAllReports() {
	s.reportCache.Purge()
}
