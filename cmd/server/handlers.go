package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"findata/internal/cascade"
	"findata/internal/goldsvc"
	"findata/internal/provider"
	"findata/internal/quotes"
)

type quoteService interface {
	Quote(ctx context.Context, symbol, market string) (provider.Quote, error)
	BatchQuotes(ctx context.Context, symbols []string, market string) (map[string]quotes.QuoteResult, error)
	History(ctx context.Context, symbol, market string, from, to time.Time, interval string) ([]provider.Quote, error)
}

type newsService interface {
	Search(ctx context.Context, query string, maxResults, daysBack int) ([]provider.NewsItem, error)
}

type goldService interface {
	Prices(ctx context.Context) (goldsvc.Prices, error)
}

type api struct {
	quotes quoteService
	news   newsService
	gold   goldService
	log    zerolog.Logger
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type batchResponse struct {
	Quotes   map[string]provider.Quote `json:"quotes"`
	NotFound []string                  `json:"not_found,omitempty"`
}

type historyResponse struct {
	Symbol string           `json:"symbol"`
	Series []provider.Quote `json:"series"`
}

type newsResponse struct {
	Results []provider.NewsItem `json:"results"`
}

func (a *api) router(requestTimeout time.Duration) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))
	r.Use(a.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/v1", func(r chi.Router) {
		r.Get("/quote/{symbol}", a.handleQuote)
		r.Get("/quotes", a.handleBatchQuotes)
		r.Get("/history/{symbol}", a.handleHistory)
		r.Get("/news", a.handleNews)
		r.Get("/gold", a.handleGold)
	})
	return r
}

func (a *api) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (a *api) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	market := r.URL.Query().Get("market")

	q, err := a.quotes.Quote(r.Context(), symbol, market)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (a *api) handleBatchQuotes(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("symbols")
	if strings.TrimSpace(raw) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing symbols query param", Code: "bad_request"})
		return
	}
	symbols := splitCSV(raw)
	if len(symbols) > 100 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "too many symbols (max 100)", Code: "bad_request"})
		return
	}

	results, err := a.quotes.BatchQuotes(r.Context(), symbols, r.URL.Query().Get("market"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	resp := batchResponse{Quotes: make(map[string]provider.Quote, len(results))}
	for sym, res := range results {
		if res.Err != nil {
			resp.NotFound = append(resp.NotFound, sym)
			continue
		}
		resp.Quotes[sym] = res.Quote
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *api) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	q := r.URL.Query()

	to := time.Now().UTC()
	from := to.AddDate(0, -3, 0)
	var err error
	if v := q.Get("from"); v != "" {
		if from, err = time.Parse("2006-01-02", v); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "from must be YYYY-MM-DD", Code: "bad_request"})
			return
		}
	}
	if v := q.Get("to"); v != "" {
		if to, err = time.Parse("2006-01-02", v); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "to must be YYYY-MM-DD", Code: "bad_request"})
			return
		}
	}

	series, err := a.quotes.History(r.Context(), symbol, q.Get("market"), from, to, q.Get("interval"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Symbol: strings.ToUpper(symbol), Series: series})
}

func (a *api) handleNews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing q query param", Code: "bad_request"})
		return
	}
	maxResults, _ := strconv.Atoi(q.Get("max"))
	daysBack, _ := strconv.Atoi(q.Get("days"))

	items, err := a.news.Search(r.Context(), query, maxResults, daysBack)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newsResponse{Results: items})
}

func (a *api) handleGold(w http.ResponseWriter, r *http.Request) {
	prices, err := a.gold.Prices(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prices)
}

// writeServiceError maps service errors to responses. Exhaustion and
// unknown symbols are 404s; everything left is an upstream failure, reported
// as 502 rather than an internal error.
func (a *api) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
		w.WriteHeader(http.StatusServiceUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "upstream timed out", Code: "timeout"})
	case cascade.IsUnavailable(err):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Code: "not_found"})
	default:
		a.log.Error().Str("path", r.URL.Path).Err(err).Msg("request failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "upstream failure", Code: "upstream_error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
