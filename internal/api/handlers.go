// Package api exposes the HTTP surface: leaderboard reads, manual run
// entry, provider connect and sync triggers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Erneeh/runleague/internal/auth"
	"github.com/Erneeh/runleague/internal/domain"
	"github.com/Erneeh/runleague/internal/leaderboard"
	"github.com/Erneeh/runleague/internal/strava"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// Syncer triggers a provider sync for one user.
type Syncer interface {
	SyncUser(ctx context.Context, userID string) error
}

// Connector is the slice of the provider client the connect flow needs.
type Connector interface {
	AuthorizeURL(state string) string
	ExchangeToken(ctx context.Context, code string) (*strava.TokenResponse, error)
}

// Handler coordinates HTTP requests with the domain services.
type Handler struct {
	board       *leaderboard.Service
	runs        domain.RunRepository
	creds       domain.CredentialRepository
	syncer      Syncer
	connector   Connector
	loc         *time.Location
	syncTimeout time.Duration
	logger      *log.Logger
}

// HandlerConfig collects the Handler's dependencies. Connector and
// Syncer may be nil when the provider integration is not configured.
type HandlerConfig struct {
	Leaderboard *leaderboard.Service
	Runs        domain.RunRepository
	Credentials domain.CredentialRepository
	Syncer      Syncer
	Connector   Connector
	Location    *time.Location
	SyncTimeout time.Duration
	Logger      *log.Logger
}

// NewHandler builds a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[api] ", log.LstdFlags)
	}
	return &Handler{
		board:       cfg.Leaderboard,
		runs:        cfg.Runs,
		creds:       cfg.Credentials,
		syncer:      cfg.Syncer,
		connector:   cfg.Connector,
		loc:         cfg.Location,
		syncTimeout: cfg.SyncTimeout,
		logger:      logger,
	}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/leaderboard", h.getLeaderboard)
	mux.HandleFunc("/v1/runs", h.runsEndpoint)
	mux.HandleFunc("/v1/sync", h.triggerSync)
	mux.HandleFunc("/v1/strava/connect", h.stravaConnect)
	mux.HandleFunc("/v1/strava/callback", h.stravaCallback)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeLeaderboardRead) {
		writeError(w, http.StatusForbidden, "forbidden", "scope leaderboard:read required")
		return
	}

	period, err := domain.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "period must be day, week or month")
		return
	}

	entries := h.board.Compute(r.Context(), period)
	writeJSON(w, http.StatusOK, LeaderboardResponse{
		Period:  string(period),
		Entries: entries,
	})
}

func (h *Handler) runsEndpoint(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createRun(w, r)
	case http.MethodGet:
		h.listRuns(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) createRun(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeRunsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope runs:write required")
		return
	}

	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	date := domain.DateOf(time.Now(), h.loc)
	if req.Date != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, req.Date, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "date must be formatted YYYY-MM-DD")
			return
		}
		date = domain.DateOf(parsed, h.loc)
	}

	// XP is always derived server-side; a client-supplied value is ignored.
	run := domain.Run{
		ID:          uuid.NewString(),
		UserID:      claims.Subject,
		DistanceKm:  req.DistanceKm,
		DurationMin: req.DurationMin,
		Date:        date,
		XP:          domain.CalculateXP(req.DistanceKm),
		Source:      domain.SourceManual,
	}

	if err := h.runs.Insert(r.Context(), run); err != nil {
		h.logger.Printf("inserting manual run for user %s: %v", claims.Subject, err)
		writeError(w, http.StatusInternalServerError, "server_error", "unable to store run")
		return
	}

	writeJSON(w, http.StatusCreated, toRunView(run))
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeRunsRead) && !claims.HasScope(auth.ScopeRunsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope runs:read required")
		return
	}

	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		if parsed > maxRunsLimit {
			parsed = maxRunsLimit
		}
		limit = parsed
	}

	runs, err := h.runs.ListByUser(r.Context(), claims.Subject, limit)
	if err != nil {
		h.logger.Printf("listing runs for user %s: %v", claims.Subject, err)
		writeError(w, http.StatusInternalServerError, "server_error", "unable to list runs")
		return
	}

	items := make([]RunView, 0, len(runs))
	for _, run := range runs {
		items = append(items, toRunView(run))
	}
	writeJSON(w, http.StatusOK, ListRunsResponse{Items: items})
}

// triggerSync kicks off a provider sync for the caller and returns
// immediately. The sync continues past the request lifetime on a
// detached context; its outcome is reported through logs and metrics
// only.
func (h *Handler) triggerSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeRunsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope runs:write required")
		return
	}

	if h.syncer == nil {
		writeError(w, http.StatusServiceUnavailable, "provider_not_configured", "provider sync is not configured")
		return
	}

	userID := claims.Subject
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.syncTimeout)
		defer cancel()
		if err := h.syncer.SyncUser(ctx, userID); err != nil {
			h.logger.Printf("background sync failed for user %s: %v", userID, err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handler) stravaConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	if h.connector == nil {
		writeError(w, http.StatusServiceUnavailable, "provider_not_configured", "provider integration is not configured")
		return
	}

	writeJSON(w, http.StatusOK, ConnectResponse{
		AuthorizeURL: h.connector.AuthorizeURL(claims.Subject),
	})
}

func (h *Handler) stravaCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	if h.connector == nil {
		writeError(w, http.StatusServiceUnavailable, "provider_not_configured", "provider integration is not configured")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing code parameter")
		return
	}

	token, err := h.connector.ExchangeToken(r.Context(), code)
	if err != nil {
		h.logger.Printf("token exchange failed for user %s: %v", claims.Subject, err)
		writeError(w, http.StatusBadGateway, "provider_error", "token exchange failed")
		return
	}

	cred := domain.Credential{
		UserID:       claims.Subject,
		AthleteID:    token.Athlete.ID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    time.Unix(token.ExpiresAt, 0).UTC(),
	}
	if err := h.creds.Create(r.Context(), cred); err != nil {
		h.logger.Printf("storing credential for user %s: %v", claims.Subject, err)
		writeError(w, http.StatusInternalServerError, "server_error", "unable to store connection")
		return
	}

	writeJSON(w, http.StatusOK, CallbackResponse{
		AthleteID: cred.AthleteID,
		ExpiresAt: cred.ExpiresAt,
	})
}

// CreateRunRequest is the payload for POST /v1/runs. Date is optional
// and defaults to today; XP is never accepted from the client.
type CreateRunRequest struct {
	DistanceKm  float64 `json:"distance_km"`
	DurationMin float64 `json:"duration_min"`
	Date        string  `json:"date,omitempty"`
}

// Validate ensures request correctness.
func (r CreateRunRequest) Validate() error {
	if r.DistanceKm <= 0 {
		return errors.New("distance_km must be > 0")
	}
	if r.DurationMin <= 0 {
		return errors.New("duration_min must be > 0")
	}
	if r.Date != "" && strings.TrimSpace(r.Date) == "" {
		return errors.New("date must not be blank")
	}
	return nil
}

// RunView exposes one stored run.
type RunView struct {
	RunID            string  `json:"run_id,omitempty"`
	UserID           string  `json:"user_id"`
	DistanceKm       float64 `json:"distance_km"`
	DurationMin      float64 `json:"duration_min"`
	Date             string  `json:"date"`
	XP               int     `json:"xp"`
	Source           string  `json:"source"`
	SourceActivityID string  `json:"source_activity_id,omitempty"`
}

// ListRunsResponse packages list results.
type ListRunsResponse struct {
	Items []RunView `json:"items"`
}

// LeaderboardResponse is the board for one period.
type LeaderboardResponse struct {
	Period  string              `json:"period"`
	Entries []leaderboard.Entry `json:"entries"`
}

// ConnectResponse carries the provider consent URL.
type ConnectResponse struct {
	AuthorizeURL string `json:"authorize_url"`
}

// CallbackResponse confirms a stored provider connection.
type CallbackResponse struct {
	AthleteID int64     `json:"athlete_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toRunView(run domain.Run) RunView {
	view := RunView{
		RunID:       run.ID,
		UserID:      run.UserID,
		DistanceKm:  run.DistanceKm,
		DurationMin: run.DurationMin,
		Date:        run.Date.Format(time.DateOnly),
		XP:          run.XP,
		Source:      run.Source,
	}
	if run.SourceActivityID != nil {
		view.SourceActivityID = *run.SourceActivityID
	}
	return view
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
