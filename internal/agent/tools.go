package agent

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/vita/internal/monitor"
	"github.com/kalambet/vita/internal/storage"
)

// ToolStore abstracts the persistence operations the tool implementations
// need. Implemented by storage.Store.
type ToolStore interface {
	GetProfile(id string) (storage.Profile, error)
	ActiveGoals(userID string) ([]storage.HealthGoal, error)
	RecentLogs(userID string, limit int) ([]storage.DailyLog, error)
	LogsSince(userID, since string) ([]storage.DailyLog, error)
	TopMemories(userID string, limit int) ([]storage.AgentMemory, error)
	RecentInterventions(userID string, limit int) ([]storage.Intervention, error)
	SaveGoal(g storage.HealthGoal) error
	SaveIntervention(iv storage.Intervention) error
}

// Toolset binds the five callable tools to the data layer.
type Toolset struct {
	store     ToolStore
	suggester MealSuggester
}

// NewToolset creates a Toolset. A nil suggester falls back to the static
// curated table.
func NewToolset(store ToolStore, suggester MealSuggester) *Toolset {
	if suggester == nil {
		suggester = StaticMealSuggester{}
	}
	return &Toolset{store: store, suggester: suggester}
}

// Execute dispatches one tool call for the given user. The returned value
// is JSON-serializable; errors are surfaced to the model as error payloads
// by the orchestrator, never as request failures.
func (t *Toolset) Execute(ctx context.Context, name string, args json.RawMessage, userID string) (any, error) {
	switch name {
	case ToolGetUserContext:
		return t.getUserContext(ctx, userID)
	case ToolAnalyzeHealthTrends:
		return t.analyzeHealthTrends(userID, args)
	case ToolCreateHealthGoal:
		return t.createHealthGoal(userID, args)
	case ToolCreateMealPlan:
		return t.createMealPlan(userID, args)
	case ToolLogIntervention:
		return t.logIntervention(userID, args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// --- get_user_context ---

type userContext struct {
	Profile             *profilePayload       `json:"profile"`
	ActiveGoals         []goalPayload         `json:"active_goals"`
	HealthMetrics       *metricsPayload       `json:"health_metrics"`
	LearnedPreferences  []memoryPayload       `json:"learned_preferences"`
	RecentInterventions []interventionPayload `json:"recent_interventions"`
	ContextSummary      string                `json:"context_summary"`
}

type profilePayload struct {
	ID                 string          `json:"id"`
	FullName           string          `json:"full_name"`
	DailyCalorieGoal   float64         `json:"daily_calorie_goal"`
	DailyProteinGoal   float64         `json:"daily_protein_goal"`
	DailyCarbsGoal     float64         `json:"daily_carbs_goal"`
	DailyFatsGoal      float64         `json:"daily_fats_goal"`
	DietaryPreferences json.RawMessage `json:"dietary_preferences"`
}

type metricsPayload struct {
	LogDate     string  `json:"log_date"`
	WeightKg    float64 `json:"weight_kg"`
	HealthScore float64 `json:"health_score"`
}

type memoryPayload struct {
	MemoryType string          `json:"memory_type"`
	Key        string          `json:"key"`
	Value      json.RawMessage `json:"value"`
	Importance int             `json:"importance"`
}

type interventionPayload struct {
	ID                 string          `json:"id"`
	InterventionType   string          `json:"intervention_type"`
	Recommendation     string          `json:"recommendation"`
	TriggerData        json.RawMessage `json:"trigger_data"`
	EffectivenessScore *int64          `json:"effectiveness_score"`
	CreatedAt          time.Time       `json:"created_at"`
}

const (
	contextMemoryLimit       = 10
	contextInterventionLimit = 5
)

// getUserContext fetches profile, active goals, latest log metrics, top
// memories, and recent interventions in parallel.
func (t *Toolset) getUserContext(ctx context.Context, userID string) (any, error) {
	var (
		profile       *storage.Profile
		goals         []storage.HealthGoal
		latestLogs    []storage.DailyLog
		memories      []storage.AgentMemory
		interventions []storage.Intervention
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := t.store.GetProfile(userID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("fetching profile: %w", err)
		}
		profile = &p
		return nil
	})
	g.Go(func() error {
		var err error
		if goals, err = t.store.ActiveGoals(userID); err != nil {
			return fmt.Errorf("fetching active goals: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if latestLogs, err = t.store.RecentLogs(userID, 1); err != nil {
			return fmt.Errorf("fetching latest log: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if memories, err = t.store.TopMemories(userID, contextMemoryLimit); err != nil {
			return fmt.Errorf("fetching memories: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if interventions, err = t.store.RecentInterventions(userID, contextInterventionLimit); err != nil {
			return fmt.Errorf("fetching interventions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := userContext{
		ActiveGoals:         make([]goalPayload, 0, len(goals)),
		LearnedPreferences:  make([]memoryPayload, 0, len(memories)),
		RecentInterventions: make([]interventionPayload, 0, len(interventions)),
		ContextSummary: fmt.Sprintf("User has %d active goals, %d learned preferences, and %d recent interventions.",
			len(goals), len(memories), len(interventions)),
	}
	if profile != nil {
		out.Profile = &profilePayload{
			ID:                 profile.ID,
			FullName:           profile.FullName,
			DailyCalorieGoal:   profile.DailyCalorieGoal,
			DailyProteinGoal:   profile.DailyProteinGoal,
			DailyCarbsGoal:     profile.DailyCarbsGoal,
			DailyFatsGoal:      profile.DailyFatsGoal,
			DietaryPreferences: rawJSON(profile.DietaryPreferences, `[]`),
		}
	}
	if len(latestLogs) > 0 {
		out.HealthMetrics = &metricsPayload{
			LogDate:     latestLogs[0].LogDate,
			WeightKg:    latestLogs[0].WeightKg,
			HealthScore: latestLogs[0].HealthScore,
		}
	}
	for _, goal := range goals {
		out.ActiveGoals = append(out.ActiveGoals, newGoalPayload(goal))
	}
	for _, m := range memories {
		out.LearnedPreferences = append(out.LearnedPreferences, memoryPayload{
			MemoryType: m.MemoryType,
			Key:        m.Key,
			Value:      rawJSON(m.Value, `null`),
			Importance: m.Importance,
		})
	}
	for _, iv := range interventions {
		out.RecentInterventions = append(out.RecentInterventions, newInterventionPayload(iv))
	}
	return out, nil
}

func rawJSON(s, fallback string) json.RawMessage {
	if s == "" {
		s = fallback
	}
	if !json.Valid([]byte(s)) {
		b, _ := json.Marshal(s)
		return b
	}
	return json.RawMessage(s)
}

// --- analyze_health_trends ---

type trendsArgs struct {
	Days int `json:"days"`
}

type trendsResult struct {
	PeriodDays int           `json:"period_days"`
	LogsCount  int           `json:"logs_count"`
	Averages   trendsAverage `json:"averages"`
	Goals      trendsGoals   `json:"goals"`
	Compliance trendsComply  `json:"compliance"`
}

type trendsAverage struct {
	Calories     int     `json:"calories"`
	ProteinG     int     `json:"protein_g"`
	Steps        int     `json:"steps"`
	WaterGlasses float64 `json:"water_glasses"`
	HealthScore  int     `json:"health_score"`
}

type trendsGoals struct {
	CalorieGoal *float64 `json:"calorie_goal"`
	ProteinGoal *float64 `json:"protein_goal"`
}

type trendsComply struct {
	CalorieCompliance *float64 `json:"calorie_compliance"`
	ProteinCompliance *float64 `json:"protein_compliance"`
}

// analyzeHealthTrends re-runs the signal aggregation over a caller-chosen
// window and reports compliance against profile goals. Goals left unset
// yield null compliance.
func (t *Toolset) analyzeHealthTrends(userID string, args json.RawMessage) (any, error) {
	var a trendsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("parsing arguments: %w", err)
	}
	if a.Days <= 0 {
		a.Days = 7
	}

	since := time.Now().UTC().AddDate(0, 0, -a.Days).Format("2006-01-02")
	logs, err := t.store.LogsSince(userID, since)
	if err != nil {
		return nil, fmt.Errorf("fetching logs: %w", err)
	}
	if len(logs) == 0 {
		return nil, fmt.Errorf("no logs found in the last %d days", a.Days)
	}

	sig, _ := monitor.Aggregate(logs)
	var healthScore float64
	for _, l := range logs {
		healthScore += l.HealthScore
	}
	healthScore /= float64(len(logs))

	profile, err := t.store.GetProfile(userID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}

	result := trendsResult{
		PeriodDays: a.Days,
		LogsCount:  len(logs),
		Averages: trendsAverage{
			Calories:     int(math.Round(sig.AvgCalories)),
			ProteinG:     int(math.Round(sig.AvgProtein)),
			Steps:        int(math.Round(sig.AvgSteps)),
			WaterGlasses: math.Round(sig.AvgWater*10) / 10,
			HealthScore:  int(math.Round(healthScore)),
		},
	}
	if profile.DailyCalorieGoal > 0 {
		result.Goals.CalorieGoal = &profile.DailyCalorieGoal
		result.Compliance.CalorieCompliance = pct(sig.AvgCalories, profile.DailyCalorieGoal)
	}
	if profile.DailyProteinGoal > 0 {
		result.Goals.ProteinGoal = &profile.DailyProteinGoal
		result.Compliance.ProteinCompliance = pct(sig.AvgProtein, profile.DailyProteinGoal)
	}
	return result, nil
}

// pct returns avg/goal as a percentage rounded to one decimal.
func pct(avg, goal float64) *float64 {
	v := math.Round(avg/goal*1000) / 10
	return &v
}

// --- create_health_goal ---

type goalArgs struct {
	GoalType     string  `json:"goal_type"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	TargetValue  float64 `json:"target_value"`
	Unit         string  `json:"unit"`
	DeadlineDays int     `json:"deadline_days"`
	Priority     int     `json:"priority"`
}

type goalPayload struct {
	ID           string    `json:"id"`
	GoalType     string    `json:"goal_type"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	TargetValue  float64   `json:"target_value"`
	CurrentValue float64   `json:"current_value"`
	Unit         string    `json:"unit"`
	Deadline     *string   `json:"deadline"`
	Priority     int       `json:"priority"`
	Status       string    `json:"status"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

func newGoalPayload(g storage.HealthGoal) goalPayload {
	p := goalPayload{
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
		CreatedAt:    g.CreatedAt,
	}
	if g.Deadline.Valid {
		p.Deadline = &g.Deadline.String
	}
	return p
}

func (t *Toolset) createHealthGoal(userID string, args json.RawMessage) (any, error) {
	var a goalArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("parsing arguments: %w", err)
	}
	if a.GoalType == "" || a.Title == "" || a.Unit == "" || a.TargetValue == 0 {
		return nil, errors.New("goal_type, title, target_value, and unit are required")
	}
	if a.Priority == 0 {
		a.Priority = 5
	}

	goal := storage.HealthGoal{
		ID:          uuid.New().String(),
		UserID:      userID,
		GoalType:    a.GoalType,
		Title:       a.Title,
		Description: a.Description,
		TargetValue: a.TargetValue,
		Unit:        a.Unit,
		Priority:    a.Priority,
		Status:      "active",
		CreatedBy:   "agent",
		CreatedAt:   time.Now().UTC(),
	}
	if a.DeadlineDays > 0 {
		deadline := time.Now().UTC().AddDate(0, 0, a.DeadlineDays).Format("2006-01-02")
		goal.Deadline = sql.NullString{String: deadline, Valid: true}
	}

	if err := t.store.SaveGoal(goal); err != nil {
		return nil, fmt.Errorf("saving goal: %w", err)
	}

	return map[string]any{"success": true, "goal": newGoalPayload(goal)}, nil
}

// --- create_meal_plan ---

type mealPlanArgs struct {
	MealType      string  `json:"meal_type"`
	CalorieTarget float64 `json:"calorie_target"`
	ProteinFocus  bool    `json:"protein_focus"`
}

type mealPlanResult struct {
	MealType           string           `json:"meal_type"`
	TargetCalories     float64          `json:"target_calories"`
	Suggestions        []MealSuggestion `json:"suggestions"`
	DietaryPreferences json.RawMessage  `json:"dietary_preferences"`
}

func (t *Toolset) createMealPlan(userID string, args json.RawMessage) (any, error) {
	var a mealPlanArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("parsing arguments: %w", err)
	}
	if a.MealType == "" {
		return nil, errors.New("meal_type is required")
	}

	profile, err := t.store.GetProfile(userID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}

	target := a.CalorieTarget
	if target <= 0 {
		dailyGoal := profile.DailyCalorieGoal
		if dailyGoal <= 0 {
			dailyGoal = monitor.DefaultCalorieGoal
		}
		target = dailyGoal / 3
	}

	return mealPlanResult{
		MealType:           a.MealType,
		TargetCalories:     target,
		Suggestions:        t.suggester.Suggest(a.MealType, a.ProteinFocus),
		DietaryPreferences: rawJSON(profile.DietaryPreferences, `[]`),
	}, nil
}

// --- log_intervention ---

type logInterventionArgs struct {
	InterventionType string          `json:"intervention_type"`
	Recommendation   string          `json:"recommendation"`
	TriggerData      json.RawMessage `json:"trigger_data"`
}

func newInterventionPayload(iv storage.Intervention) interventionPayload {
	p := interventionPayload{
		ID:               iv.ID,
		InterventionType: iv.InterventionType,
		Recommendation:   iv.Recommendation,
		TriggerData:      rawJSON(iv.TriggerData, `{}`),
		CreatedAt:        iv.CreatedAt,
	}
	if iv.EffectivenessScore.Valid {
		score := iv.EffectivenessScore.Int64
		p.EffectivenessScore = &score
	}
	return p
}

func (t *Toolset) logIntervention(userID string, args json.RawMessage) (any, error) {
	var a logInterventionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("parsing arguments: %w", err)
	}
	if a.InterventionType == "" || a.Recommendation == "" {
		return nil, errors.New("intervention_type and recommendation are required")
	}

	trigger := "{}"
	if len(a.TriggerData) > 0 {
		trigger = string(a.TriggerData)
	}

	iv := storage.Intervention{
		ID:               uuid.New().String(),
		UserID:           userID,
		InterventionType: a.InterventionType,
		Recommendation:   a.Recommendation,
		TriggerData:      trigger,
		CreatedAt:        time.Now().UTC(),
	}
	if err := t.store.SaveIntervention(iv); err != nil {
		return nil, fmt.Errorf("saving intervention: %w", err)
	}

	return map[string]any{"success": true, "intervention": newInterventionPayload(iv)}, nil
}
