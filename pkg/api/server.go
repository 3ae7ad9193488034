package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"chat-to-rich/pkg/chat"
	"chat-to-rich/pkg/ledger"
	"chat-to-rich/pkg/logging"
	"chat-to-rich/pkg/parser"
	"chat-to-rich/pkg/writer"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Server exposes the ledger over HTTP for a UI or scripts.
type Server struct {
	chat    *chat.Service
	store   *ledger.Store
	options Options
	logger  *logging.Logger
	router  *mux.Router
	server  *http.Server
	started time.Time

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	// Address to listen on (e.g., ":8080")
	Address string

	// ReadTimeout for HTTP requests
	ReadTimeout time.Duration

	// WriteTimeout for HTTP responses
	WriteTimeout time.Duration
}

// DefaultServerConfig returns a default configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:      ":8080",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Options wires optional collaborators. Every field may be nil.
type Options struct {
	// Writer reports snapshot writer statistics on /status.
	Writer interface{ Stats() writer.AsyncWriterStats }

	// Probe checks the storage backends for /health.
	Probe func(ctx context.Context) error

	// Gatherer serves /metrics. Without it the route is not registered.
	Gatherer prometheus.Gatherer

	// Registerer receives the HTTP request metrics.
	Registerer prometheus.Registerer

	Logger *logging.Logger
}

// NewServer creates the server and its routes. It does not listen until Start.
func NewServer(svc *chat.Service, config ServerConfig, opts Options) (*Server, error) {
	s := &Server{
		chat:    svc,
		store:   svc.Store(),
		options: opts,
		logger:  opts.Logger,
		started: time.Now(),
	}
	if s.logger == nil {
		s.logger = logging.Component("api")
	}

	if opts.Registerer != nil {
		s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"})
		s.latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"})
		for _, c := range []prometheus.Collector{s.requests, s.latency} {
			if err := opts.Registerer.Register(c); err != nil {
				return nil, fmt.Errorf("api: register metrics: %w", err)
			}
		}
	}

	r := mux.NewRouter()
	r.Use(s.observe)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	r.HandleFunc("/chat", s.handleChatHistory).Methods(http.MethodGet)
	r.HandleFunc("/chat", s.handleChatSend).Methods(http.MethodPost)
	r.HandleFunc("/prompts", s.handlePrompts).Methods(http.MethodGet)

	r.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	r.HandleFunc("/transactions", s.handleCreateTransaction).Methods(http.MethodPost)
	r.HandleFunc("/transactions/{id}", s.handleGetTransaction).Methods(http.MethodGet)
	r.HandleFunc("/transactions/{id}", s.handleUpdateTransaction).Methods(http.MethodPatch)
	r.HandleFunc("/transactions/{id}", s.handleDeleteTransaction).Methods(http.MethodDelete)
	r.HandleFunc("/transactions/{id}/confirm", s.handleConfirmTransaction).Methods(http.MethodPost)

	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/budget", s.handleSetBudget).Methods(http.MethodPut)
	r.HandleFunc("/mood", s.handleMood).Methods(http.MethodGet)
	r.HandleFunc("/breakdown", s.handleBreakdown).Methods(http.MethodGet)

	s.router = r
	s.server = &http.Server{
		Addr:         config.Address,
		Handler:      r,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves in a goroutine.
// Listen errors are returned; serve errors after that are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("api: listen on %s: %w", s.server.Addr, err)
	}
	s.logger.Info("api listening", zap.String("addr", ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	}

	if s.options.Probe != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := s.options.Probe(ctx); err != nil {
			response["status"] = "unhealthy"
			response["error"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, response)
			return
		}
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":       "running",
		"timestamp":    time.Now().Unix(),
		"uptime":       time.Since(s.started).Round(time.Second).String(),
		"transactions": len(s.store.Transactions()),
		"messages":     len(s.store.ChatHistory()),
	}
	if s.options.Writer != nil {
		stats := s.options.Writer.Stats()
		response["writer"] = stats
		response["healthy"] = stats.Healthy()
	}
	writeJSON(w, http.StatusOK, response)
}

type sendRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ex, err := s.chat.Send(r.Context(), req.Text)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ex)
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.ChatHistory())
}

func (s *Server) handlePrompts(w http.ResponseWriter, r *http.Request) {
	type category struct {
		ID   ledger.Category `json:"id"`
		Name string          `json:"name"`
	}
	categories := make([]category, 0, len(ledger.Categories))
	for _, c := range ledger.Categories {
		categories = append(categories, category{ID: c, Name: c.DisplayName()})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"prompts":    parser.ExamplePrompts,
		"categories": categories,
	})
}

// handleListTransactions returns every transaction, or with ?limit=n the n most recent,
// or with ?today=true today's.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if today, _ := strconv.ParseBool(q.Get("today")); today {
		writeJSON(w, http.StatusOK, s.store.TodayTransactions())
		return
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "limit must be an integer"})
			return
		}
		writeJSON(w, http.StatusOK, s.store.RecentTransactions(n))
		return
	}
	writeJSON(w, http.StatusOK, s.store.Transactions())
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req ledger.NewTransaction
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := s.chat.Add(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	t, ok := s.store.Transaction(id)
	if !ok {
		s.writeError(w, fmt.Errorf("%w: %s", chat.ErrTransactionNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req ledger.TransactionUpdate
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := s.chat.Edit(mux.Vars(r)["id"], req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.chat.Discard(mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConfirmTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.chat.Confirm(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type statsResponse struct {
	ledger.UserStats
	MoneyLeftToSpend     decimal.Decimal `json:"moneyLeftToSpend"`
	CurrentMonthExpenses decimal.Decimal `json:"currentMonthExpenses"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		UserStats:            s.store.Stats(),
		MoneyLeftToSpend:     s.store.MoneyLeftToSpend(),
		CurrentMonthExpenses: s.store.CurrentMonthExpenses(),
	})
}

type budgetRequest struct {
	MonthlyBudget *decimal.Decimal `json:"monthlyBudget"`
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.MonthlyBudget == nil || req.MonthlyBudget.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "monthlyBudget must be a non-negative amount"})
		return
	}

	s.store.SetMonthlyBudget(*req.MonthlyBudget)
	writeJSON(w, http.StatusOK, s.store.Stats())
}

func (s *Server) handleMood(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Mood())
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.CategoryBreakdown())
}

// writeError maps domain errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, ledger.ErrInvalidTransaction):
		status = http.StatusBadRequest
	case errors.Is(err, chat.ErrTransactionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusRequestTimeout
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]interface{}{"error": err.Error()})
}

// decodeJSON reads the body into v and answers 400 itself when it can't.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// observe records request metrics and logs each request at debug level.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(srw, r)

		elapsed := time.Since(start)
		route := routeTemplate(r)
		if s.requests != nil {
			s.requests.WithLabelValues(r.Method, route, strconv.Itoa(srw.statusCode)).Inc()
			s.latency.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		}
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", srw.statusCode),
			zap.Duration("elapsed", elapsed),
		)
	})
}

// statusResponseWriter captures the status code
type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// routeTemplate returns the matched path template so ids don't explode label cardinality.
func routeTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return r.URL.Path
	}
	tpl, err := route.GetPathTemplate()
	if err != nil {
		return r.URL.Path
	}
	return tpl
}
