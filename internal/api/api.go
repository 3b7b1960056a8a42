// ABOUTME: HTTP API handlers exposing resolve and bot-lookup operations
// ABOUTME: Maps structured service results and failure taxonomy to status codes

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/relayworks/courier/internal/auth"
	"github.com/relayworks/courier/internal/channel"
	"github.com/relayworks/courier/internal/resolve"
	"github.com/relayworks/courier/internal/service"
	"github.com/relayworks/courier/internal/store"
)

// Service is the slice of the orchestrator the API needs.
type Service interface {
	ResolvePhone(ctx context.Context, phone string) (*store.Contact, error)
	SendToBot(ctx context.Context, p service.SendParams) (*service.SendResult, error)
	SearchByPhoneViaBot(ctx context.Context, p service.SearchParams) (*service.SearchResult, error)
	RecentLookups(ctx context.Context, limit int) ([]*store.Lookup, error)
}

// ResolvePhoneRequest is the JSON request body for POST /resolve_phone.
type ResolvePhoneRequest struct {
	Phone string `json:"phone"`
}

// ResolvePhoneResponse is the JSON response for POST /resolve_phone.
type ResolvePhoneResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone"`
}

// SendBotRequest is the JSON request body for POST /bot/send.
// wait_seconds distinguishes absent (default) from an explicit zero.
type SendBotRequest struct {
	BotUsername string `json:"bot_username,omitempty"`
	Text        string `json:"text"`
	WaitSeconds *int   `json:"wait_seconds,omitempty"`
}

// SendBotResponse is the JSON response for POST /bot/send.
type SendBotResponse struct {
	Sent  bool    `json:"sent"`
	Reply *string `json:"reply"`
}

// SearchViaBotRequest is the JSON request body for POST /search_phone_via_bot.
type SearchViaBotRequest struct {
	Phone           string `json:"phone"`
	BotUsername     string `json:"bot_username,omitempty"`
	MessageTemplate string `json:"message_template,omitempty"`
	WaitSeconds     *int   `json:"wait_seconds,omitempty"`
}

// SearchViaBotResponse is the JSON response for POST /search_phone_via_bot.
type SearchViaBotResponse struct {
	OK    bool    `json:"ok"`
	Query string  `json:"query"`
	Reply *string `json:"reply"`
	Error string  `json:"error,omitempty"`
}

// LookupResponse is one audit record in GET /lookups.
type LookupResponse struct {
	ID        string  `json:"id"`
	Operation string  `json:"operation"`
	Query     string  `json:"query"`
	Bot       string  `json:"bot,omitempty"`
	Outcome   string  `json:"outcome"`
	Reply     *string `json:"reply,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// API serves the courier HTTP surface.
type API struct {
	svc    Service
	logger *slog.Logger
}

// New creates the API on top of the orchestrator service.
func New(svc Service, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		svc:    svc,
		logger: logger.With("component", "api"),
	}
}

// Routes builds the HTTP mux. Every endpoint except /health sits behind the
// given auth verifiers.
func (a *API) Routes(verifiers ...auth.TokenVerifier) *http.ServeMux {
	authed := auth.Middleware(verifiers...)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.Handle("POST /resolve_phone", authed(http.HandlerFunc(a.handleResolvePhone)))
	mux.Handle("POST /bot/send", authed(http.HandlerFunc(a.handleBotSend)))
	mux.Handle("POST /search_phone_via_bot", authed(http.HandlerFunc(a.handleSearchViaBot)))
	mux.Handle("GET /lookups", authed(http.HandlerFunc(a.handleLookups)))
	return mux
}

// handleHealth handles GET /health. No auth: used as a liveness probe.
func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleResolvePhone handles POST /resolve_phone.
func (a *API) handleResolvePhone(w http.ResponseWriter, r *http.Request) {
	var req ResolvePhoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Phone == "" {
		writeError(w, http.StatusBadRequest, "phone is required")
		return
	}

	contact, err := a.svc.ResolvePhone(r.Context(), req.Phone)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ResolvePhoneResponse{
		ID:        contact.ID,
		Username:  contact.Username,
		FirstName: contact.FirstName,
		LastName:  contact.LastName,
		Phone:     contact.Phone,
	})
}

// handleBotSend handles POST /bot/send.
func (a *API) handleBotSend(w http.ResponseWriter, r *http.Request) {
	var req SendBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	result, err := a.svc.SendToBot(r.Context(), service.SendParams{
		BotHandle: req.BotUsername,
		Text:      req.Text,
		Wait:      waitDuration(req.WaitSeconds),
	})
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SendBotResponse{Sent: result.Sent, Reply: result.Reply})
}

// handleSearchViaBot handles POST /search_phone_via_bot.
func (a *API) handleSearchViaBot(w http.ResponseWriter, r *http.Request) {
	var req SearchViaBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Phone == "" {
		writeError(w, http.StatusBadRequest, "phone is required")
		return
	}

	result, err := a.svc.SearchByPhoneViaBot(r.Context(), service.SearchParams{
		Phone:     req.Phone,
		BotHandle: req.BotUsername,
		Template:  req.MessageTemplate,
		Wait:      waitDuration(req.WaitSeconds),
	})
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchViaBotResponse{
		OK:    result.OK,
		Query: result.Query,
		Reply: result.Reply,
		Error: result.Error,
	})
}

// handleLookups handles GET /lookups?limit=N.
func (a *API) handleLookups(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	lookups, err := a.svc.RecentLookups(r.Context(), limit)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	response := make([]LookupResponse, 0, len(lookups))
	for _, l := range lookups {
		response = append(response, LookupResponse{
			ID:        l.ID,
			Operation: l.Operation,
			Query:     l.Query,
			Bot:       l.Bot,
			Outcome:   l.Outcome,
			Reply:     l.Reply,
			CreatedAt: l.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, response)
}

// writeServiceError maps the failure taxonomy onto HTTP status codes.
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, resolve.ErrInvalidHandle):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, resolve.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, resolve.ErrAmbiguous):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, channel.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, channel.ErrAuthRequired):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, channel.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, channel.ErrSendRejected):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		a.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// waitDuration converts an optional wait_seconds field. nil means "use the
// configured default"; an explicit zero means "send, don't wait".
func waitDuration(seconds *int) *time.Duration {
	if seconds == nil {
		return nil
	}
	d := time.Duration(*seconds) * time.Second
	return &d
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
