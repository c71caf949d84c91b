package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"shortlink/internal/metrics"
	"shortlink/internal/model"
	"shortlink/internal/service"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	maxBodyBytes = 1 << 20

	msgCodeRequired = "Short code is required"
	msgBadBody      = "Invalid request body"
	msgInternal     = "Internal server error"
)

// URLService is the subset of service.Service the HTTP layer needs.
type URLService interface {
	Shorten(ctx context.Context, originalURL string) (*service.ShortenResult, error)
	Resolve(ctx context.Context, code string) (string, error)
	Stats(ctx context.Context, code string) (*model.URLMapping, error)
	Recent(ctx context.Context, limit int) ([]model.URLMapping, error)
}

type Handler struct {
	Service URLService
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

func NewHandler(s URLService, logger *zap.Logger, m *metrics.Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Service: s, Logger: logger, Metrics: m}
}

func (h *Handler) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/shorten", h.CreateShort).Methods(http.MethodPost)
	r.HandleFunc("/url/{shortCode}", h.Redirect).Methods(http.MethodGet)
	r.HandleFunc("/stats/{shortCode}", h.Stats).Methods(http.MethodGet)
	r.HandleFunc("/recent", h.Recent).Methods(http.MethodGet)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	for _, p := range []string{"/url", "/url/", "/stats", "/stats/"} {
		r.HandleFunc(p, h.missingCode).Methods(http.MethodGet)
	}
	if h.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.Metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Use(h.requestID, h.accessLog)
	return r
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (h *Handler) CreateShort(w http.ResponseWriter, r *http.Request) {
	var req shortenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}

	res, err := h.Service.Shorten(r.Context(), req.OriginalURL)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Cached {
		status = http.StatusOK
	}
	writeJSON(w, status, shortenResponse{
		ShortCode:   res.ShortCode,
		OriginalURL: res.OriginalURL,
		ShortURL:    res.ShortURL,
		Cached:      res.Cached,
	})
}

func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["shortCode"]
	if code == "" {
		h.missingCode(w, r)
		return
	}

	original, err := h.Service.Resolve(r.Context(), code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, original, http.StatusMovedPermanently)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["shortCode"]
	if code == "" {
		h.missingCode(w, r)
		return
	}

	m, err := h.Service.Stats(r.Context(), code)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	// Unparseable or missing limits fall back to the service default.
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		limit = 0
	}

	list, err := h.Service.Recent(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recentResponse{URLs: list})
}

func (h *Handler) missingCode(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusBadRequest, msgCodeRequired)
}

// fail maps service errors to status codes. Internal details stay in the log.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, service.ErrNotFound.Error())
	case errors.Is(err, service.ErrAllocationExhausted):
		h.Logger.Warn("short code allocation exhausted", zap.String("request_id", requestIDFrom(r.Context())))
		writeError(w, http.StatusInternalServerError, service.ErrAllocationExhausted.Error())
	default:
		h.Logger.Error("request failed",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
