package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/vita/internal/agent"
	"github.com/kalambet/vita/internal/gateway"
	"github.com/kalambet/vita/internal/monitor"
	"github.com/kalambet/vita/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps holds everything the HTTP surface needs.
type Deps struct {
	Store        *storage.Store
	Orchestrator *agent.Orchestrator
	Tools        *agent.Toolset
	Monitor      *monitor.Monitor
	AdminToken   string
}

// NewHandler returns the full HTTP API: an unauthenticated health check,
// the per-user surface (chat, interventions, goals, trends) behind token
// auth, and the operator surface (monitor trigger, user/token management)
// behind the admin token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(UserAuth(deps.Store))
		r.Post("/v1/agent/chat", handleAgentChat(deps))
		r.Get("/v1/interventions", handleListInterventions(deps))
		r.Post("/v1/interventions/{id}/feedback", handleInterventionFeedback(deps))
		r.Get("/v1/goals", handleListGoals(deps))
		r.Get("/v1/trends", handleTrends(deps))
	})

	r.Group(func(r chi.Router) {
		r.Use(AdminAuth(deps.AdminToken))
		r.Post("/v1/monitor/run", handleMonitorRun(deps))
		r.Post("/v1/users", handleCreateUser(deps))
		r.Get("/v1/users", handleListUsers(deps))
		r.Post("/v1/users/{id}/tokens", handleIssueToken(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// --- agent chat ---

func handleAgentChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req agent.TurnRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(req.Messages) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "messages is required and must not be empty")
			return
		}

		resp, err := deps.Orchestrator.HandleTurn(r.Context(), UserID(r.Context()), req)
		if err != nil {
			writeUpstreamError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// writeUpstreamError maps orchestrator failures to the external contract:
// 429 with a Retry-After hint, 402 for exhausted quota, 500 otherwise.
func writeUpstreamError(w http.ResponseWriter, err error) {
	var rateLimited *gateway.RateLimitError
	if errors.As(err, &rateLimited) {
		w.Header().Set("Retry-After", strconv.Itoa(rateLimited.RetryAfter))
		httpError(w, http.StatusTooManyRequests, "rate_limit_error",
			"rate limit exceeded, retry after %d seconds", rateLimited.RetryAfter)
		return
	}
	var quota *gateway.QuotaError
	if errors.As(err, &quota) {
		httpError(w, http.StatusPaymentRequired, "quota_error", "AI service quota exceeded")
		return
	}
	httpError(w, http.StatusInternalServerError, "api_error", "agent turn failed: %v", err)
}

// --- interventions ---

type interventionView struct {
	ID                 string          `json:"id"`
	InterventionType   string          `json:"intervention_type"`
	Recommendation     string          `json:"recommendation"`
	TriggerData        json.RawMessage `json:"trigger_data"`
	EffectivenessScore *int64          `json:"effectiveness_score"`
	UserResponse       *string         `json:"user_response"`
	CreatedAt          string          `json:"created_at"`
}

func handleListInterventions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", 20, 100)

		interventions, err := deps.Store.RecentInterventions(UserID(r.Context()), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing interventions: %v", err)
			return
		}

		views := make([]interventionView, 0, len(interventions))
		for _, iv := range interventions {
			v := interventionView{
				ID:               iv.ID,
				InterventionType: iv.InterventionType,
				Recommendation:   iv.Recommendation,
				TriggerData:      json.RawMessage(iv.TriggerData),
				CreatedAt:        iv.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			}
			if iv.EffectivenessScore.Valid {
				score := iv.EffectivenessScore.Int64
				v.EffectivenessScore = &score
			}
			if iv.UserResponse.Valid {
				resp := iv.UserResponse.String
				v.UserResponse = &resp
			}
			views = append(views, v)
		}
		writeJSON(w, http.StatusOK, views)
	}
}

type feedbackRequest struct {
	Score    int    `json:"score"`
	Response string `json:"response"`
}

// handleInterventionFeedback records the 1-5 effectiveness rating that
// drives future candidate filtering.
func handleInterventionFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req feedbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Score < 1 || req.Score > 5 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "score must be between 1 and 5")
			return
		}

		id := chi.URLParam(r, "id")
		err := deps.Store.RateIntervention(id, UserID(r.Context()), req.Score, req.Response)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "invalid_request_error", "intervention not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "recording feedback: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// --- goals ---

func handleListGoals(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		goals, err := deps.Store.ListGoals(UserID(r.Context()))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing goals: %v", err)
			return
		}
		if goals == nil {
			goals = []storage.HealthGoal{}
		}

		type goalView struct {
			ID           string  `json:"id"`
			GoalType     string  `json:"goal_type"`
			Title        string  `json:"title"`
			Description  string  `json:"description"`
			TargetValue  float64 `json:"target_value"`
			CurrentValue float64 `json:"current_value"`
			Unit         string  `json:"unit"`
			Deadline     *string `json:"deadline"`
			Priority     int     `json:"priority"`
			Status       string  `json:"status"`
			CreatedBy    string  `json:"created_by"`
		}

		views := make([]goalView, 0, len(goals))
		for _, g := range goals {
			v := goalView{
				ID:           g.ID,
				GoalType:     g.GoalType,
				Title:        g.Title,
				Description:  g.Description,
				TargetValue:  g.TargetValue,
				CurrentValue: g.CurrentValue,
				Unit:         g.Unit,
				Priority:     g.Priority,
				Status:       g.Status,
				CreatedBy:    g.CreatedBy,
			}
			if g.Deadline.Valid {
				d := g.Deadline.String
				v.Deadline = &d
			}
			views = append(views, v)
		}
		writeJSON(w, http.StatusOK, views)
	}
}

// --- trends ---

func handleTrends(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := queryInt(r, "days", 7, 365)
		args, _ := json.Marshal(map[string]int{"days": days})

		result, err := deps.Tools.Execute(r.Context(), agent.ToolAnalyzeHealthTrends, args, UserID(r.Context()))
		if err != nil {
			httpError(w, http.StatusNotFound, "invalid_request_error", "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// --- monitor ---

func handleMonitorRun(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := deps.Monitor.Run(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "monitor run failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// --- user/token management ---

type createUserRequest struct {
	FullName              string   `json:"full_name"`
	DailyCalorieGoal      float64  `json:"daily_calorie_goal"`
	DailyProteinGoal      float64  `json:"daily_protein_goal"`
	DailyCarbsGoal        float64  `json:"daily_carbs_goal"`
	DailyFatsGoal         float64  `json:"daily_fats_goal"`
	DietaryPreferences    []string `json:"dietary_preferences"`
	NotificationsEnabled  *bool    `json:"autonomous_notifications_enabled"`
	NotificationFrequency string   `json:"notification_frequency"`
}

func handleCreateUser(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req createUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.FullName == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "full_name is required")
			return
		}

		prefs := "[]"
		if req.DietaryPreferences != nil {
			b, err := json.Marshal(req.DietaryPreferences)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "marshaling preferences: %v", err)
				return
			}
			prefs = string(b)
		}

		p := storage.Profile{
			ID:                    uuid.New().String(),
			FullName:              req.FullName,
			DailyCalorieGoal:      req.DailyCalorieGoal,
			DailyProteinGoal:      req.DailyProteinGoal,
			DailyCarbsGoal:        req.DailyCarbsGoal,
			DailyFatsGoal:         req.DailyFatsGoal,
			DietaryPreferences:    prefs,
			NotificationFrequency: req.NotificationFrequency,
		}
		if req.NotificationsEnabled != nil {
			p.NotificationsEnabled = sql.NullBool{Bool: *req.NotificationsEnabled, Valid: true}
		}

		if err := deps.Store.UpsertProfile(p); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "creating user: %v", err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]string{"id": p.ID})
	}
}

func handleListUsers(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profiles, err := deps.Store.ListProfiles()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing users: %v", err)
			return
		}

		type userView struct {
			ID       string `json:"id"`
			FullName string `json:"full_name"`
		}
		views := make([]userView, 0, len(profiles))
		for _, p := range profiles {
			views = append(views, userView{ID: p.ID, FullName: p.FullName})
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func handleIssueToken(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "id")
		if _, err := deps.Store.GetProfile(userID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusNotFound, "invalid_request_error", "user not found")
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "fetching user: %v", err)
			return
		}

		var req struct {
			Label string `json:"label"`
		}
		// Body is optional for token issuance.
		json.NewDecoder(r.Body).Decode(&req)

		t := storage.APIToken{
			Token:  uuid.New().String(),
			UserID: userID,
			Label:  req.Label,
		}
		if err := deps.Store.CreateToken(t); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "creating token: %v", err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]string{"token": t.Token, "user_id": userID})
	}
}

// --- helpers ---

func queryInt(r *http.Request, name string, def, ceiling int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n <= 0 {
		return def
	}
	if n > ceiling {
		return ceiling
	}
	return n
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
