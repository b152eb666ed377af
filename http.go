package ledgerxgo

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

type idJSONResp struct {
	ID snowflake.ID `json:"id"`
}

func NewHTTPHandler(svc Service, users UserService, logger *zerolog.Logger) http.Handler {
	hndlr := &httpHandler{
		Svc:   svc,
		Users: users,
		Log:   logger,
	}
	mux := chi.NewMux()
	mux.Use(requestLogger(logger))
	mux.Use(metricsMiddleware)
	mux.NotFound(HTTPNotFound)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Route("/transactions", func(r chi.Router) {
		r.Post("/", hndlr.AddTransaction)
		r.Get("/", hndlr.ListTransactions)
		r.Get("/totals/by-user", hndlr.TotalsByUser)
		r.Get("/totals/by-type", hndlr.TotalsByType)
		r.Get("/high-volume", hndlr.HighVolume)
		r.Get("/report", hndlr.Report)
		r.Get("/{txnID:[0-9]+}", hndlr.GetTransaction)
	})
	mux.Route("/users", func(r chi.Router) {
		r.Post("/", hndlr.CreateUser)
		r.Get("/", hndlr.ListUsers)
		r.Route("/{userID:[0-9]+}", func(rr chi.Router) {
			rr.Get("/", hndlr.GetUser)
			rr.Put("/", hndlr.UpdateUser)
			rr.Delete("/", hndlr.DeleteUser)
		})
	})

	return mux
}

type httpHandler struct {
	Svc   Service
	Users UserService
	Log   *zerolog.Logger
}

func (h *httpHandler) AddTransaction(w http.ResponseWriter, r *http.Request) {
	buf, err := io.ReadAll(r.Body)
	defer r.Body.Close()
	if err != nil {
		h.Log.Err(err).Str("method", "addTransaction").Msg("error reading HTTP request")
		WriteHTTPError(w, ErrInternalServer)
		return
	}
	var req AddTransactionReq
	if err = json.Unmarshal(buf, &req); err != nil {
		h.Log.Err(err).Str("method", "addTransaction").Msg("error unmarshalling JSON")
		WriteHTTPError(w, ErrBadRequest{Fields: map[string]string{"request body": "malformed JSON"}})
		return
	}
	id, err := h.Svc.AddTransaction(req)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err = json.NewEncoder(w).Encode(idJSONResp{ID: id}); err != nil {
		h.Log.Err(err).Str("method", "addTransaction").Msg("error encoding response")
	}
}

func (h *httpHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "txnID")
	txnID, err := snowflake.ParseString(pid)
	if err != nil {
		h.Log.Err(err).Str("method", "getTransaction").Msg("error parsing transaction ID")
		WriteHTTPError(w, ErrBadRequest{Fields: map[string]string{"txnID": "invalid format"}})
		return
	}
	txn, err := h.Svc.GetTransaction(txnID)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	writeJSON(w, txn)
}

func (h *httpHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txns, err := h.Svc.ListTransactions()
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	writeJSON(w, txns)
}

func (h *httpHandler) TotalsByUser(w http.ResponseWriter, r *http.Request) {
	totals, err := h.Svc.TotalsByUser()
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	writeJSON(w, totals)
}

func (h *httpHandler) TotalsByType(w http.ResponseWriter, r *http.Request) {
	totals, err := h.Svc.TotalsByType()
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	writeJSON(w, totals)
}

func (h *httpHandler) HighVolume(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("threshold")
	if raw == "" {
		WriteHTTPError(w, ErrBadRequest{Fields: map[string]string{"threshold": "missing"}})
		return
	}
	threshold, err := decimal.NewFromString(raw)
	if err != nil {
		h.Log.Err(err).Str("method", "highVolume").Msg("error parsing threshold")
		WriteHTTPError(w, ErrBadRequest{Fields: map[string]string{"threshold": "invalid format"}})
		return
	}
	rows, err := h.Svc.HighVolume(threshold)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	writeJSON(w, rows)
}

func (h *httpHandler) Report(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/pdf")
	if err := h.Svc.Report(w); err != nil {
		WriteHTTPError(w, err)
	}
}

func (h *httpHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	buf, err := io.ReadAll(r.Body)
	defer r.Body.Close()
	if err != nil {
		h.Log.Err(err).Str("method", "createUser").Msg("error reading HTTP request")
		WriteHTTPError(w, ErrInternalServer)
		return
	}
	var req CreateUserReq
	if err = json.Unmarshal(buf, &req); err != nil {
		h.Log.Err(err).Str("method", "createUser").Msg("error unmarshalling JSON")
		WriteHTTPError(w, ErrBadRequest{Fields: map[string]string{"request body": "malformed JSON"}})
		return
	}
	u, err := h.Users.CreateUser(req)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err = json.NewEncoder(w).Encode(u); err != nil {
		h.Log.Err(err).Str("method", "createUser").Msg("error encoding response")
	}
}

func (h *httpHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := snowflake.ParseString(chi.URLParam(r, "userID"))
	if err != nil {
		h.Log.Err(err).Str("method", "getUser").Msg("error parsing user ID")
		WriteHTTPError(w, ErrBadRequest{Fields: map[string]string{"userID": "invalid format"}})
		return
	}
	u, err := h.Users.GetUser(userID)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	writeJSON(w, u)
}

func (h *httpHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.ListUsers()
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	writeJSON(w, users)
}

func (h *httpHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, err := snowflake.ParseString(chi.URLParam(r, "userID"))
	if err != nil {
		h.Log.Err(err).Str("method", "updateUser").Msg("error parsing user ID")
		WriteHTTPError(w, ErrBadRequest{Fields: map[string]string{"userID": "invalid format"}})
		return
	}
	buf, err := io.ReadAll(r.Body)
	defer r.Body.Close()
	if err != nil {
		h.Log.Err(err).Str("method", "updateUser").Msg("error reading HTTP request")
		WriteHTTPError(w, ErrInternalServer)
		return
	}
	var req UpdateUserReq
	if err = json.Unmarshal(buf, &req); err != nil {
		h.Log.Err(err).Str("method", "updateUser").Msg("error unmarshalling JSON")
		WriteHTTPError(w, ErrBadRequest{Fields: map[string]string{"request body": "malformed JSON"}})
		return
	}
	req.ID = userID
	if err = h.Users.UpdateUser(req); err != nil {
		WriteHTTPError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "OK"})
}

func (h *httpHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := snowflake.ParseString(chi.URLParam(r, "userID"))
	if err != nil {
		h.Log.Err(err).Str("method", "deleteUser").Msg("error parsing user ID")
		WriteHTTPError(w, ErrBadRequest{Fields: map[string]string{"userID": "invalid format"}})
		return
	}
	if err = h.Users.DeleteUser(userID); err != nil {
		WriteHTTPError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "OK"})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("response encoding failed")
	}
}

func WriteHTTPError(w http.ResponseWriter, err error) {
	var ne error
	defer func() {
		if ne != nil {
			log.Error().
				Err(ne).
				Msg("error response encoding failed")
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	errnf := &ErrNotFound{}
	errbr := &ErrBadRequest{}
	if errors.As(err, errnf) {
		w.WriteHeader(http.StatusNotFound)
		ne = json.NewEncoder(w).Encode(errnf)
	} else if errors.As(err, errbr) {
		w.WriteHeader(http.StatusBadRequest)
		ne = json.NewEncoder(w).Encode(errbr)
	} else if errors.Is(err, ErrOverCapacity) ||
		errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests) {
		w.WriteHeader(http.StatusServiceUnavailable)
		resp := map[string]string{
			"message": "service unavailable, retry later",
		}
		ne = json.NewEncoder(w).Encode(resp)
	} else {
		w.WriteHeader(http.StatusInternalServerError)
		resp := map[string]string{
			"message": "server error",
		}
		ne = json.NewEncoder(w).Encode(resp)
	}
}

func HTTPNotFound(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotFound)
	w.Header().Set("Content-Type", "application/json")
	resp := map[string]string{
		"path": r.URL.Path,
	}
	json.NewEncoder(w).Encode(resp)
}

// requestLogger tags each request with a generated ID and logs method, path,
// status, and elapsed time once the handler returns.
func requestLogger(logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := uuid.NewString()
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info().
				Str("request_id", reqID).
				Str("http_method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Msg("request served")
		})
	}
}
