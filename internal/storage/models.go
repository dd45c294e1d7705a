package storage

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Profile is per-user configuration: macro goals, notification preferences,
// dietary preferences. The intervention engine reads it, never mutates it.
type Profile struct {
	ID                 string
	FullName           string
	DailyCalorieGoal   float64 // 0 means unset; detectors fall back to defaults
	DailyProteinGoal   float64
	DailyCarbsGoal     float64
	DailyFatsGoal      float64
	DietaryPreferences string // JSON array stored as text
	// NotificationsEnabled is three-valued: NULL means the user never
	// touched the setting and is excluded from the monitor pass entirely.
	NotificationsEnabled  sql.NullBool
	NotificationFrequency string
	CreatedAt             time.Time
}

// DailyLog is one row per user per calendar date. Written by external
// logging flows; read-only to the intervention engine.
type DailyLog struct {
	UserID        string
	LogDate       string // "2006-01-02"
	TotalCalories float64
	TotalProteinG float64
	TotalCarbsG   float64
	TotalFatsG    float64
	WaterGlasses  float64
	Steps         float64
	WeightKg      float64
	HealthScore   float64
}

// Intervention is a persisted, system-initiated recommendation.
// EffectivenessScore stays NULL until the user rates it.
type Intervention struct {
	ID                 string
	UserID             string
	InterventionType   string
	Recommendation     string
	TriggerData        string // JSON object stored as text
	EffectivenessScore sql.NullInt64
	UserResponse       sql.NullString
	RespondedAt        sql.NullTime
	CreatedAt          time.Time
}

type HealthGoal struct {
	ID           string
	UserID       string
	GoalType     string
	Title        string
	Description  string
	TargetValue  float64
	CurrentValue float64
	Unit         string
	Deadline     sql.NullString // "2006-01-02", absent when open-ended
	Priority     int
	Status       string // "active", "completed", "abandoned"
	CreatedBy    string // "agent" or "user"
	CreatedAt    time.Time
}

// AgentSession anchors a sequence of chat turns and the tool-call actions
// taken within them.
type AgentSession struct {
	ID          string
	UserID      string
	SessionType string
	Status      string
	StartedAt   time.Time
	EndedAt     sql.NullTime
	Context     string // JSON object stored as text
}

// AgentAction is the audit record for one tool invocation.
type AgentAction struct {
	ID         string
	SessionID  string
	UserID     string
	ActionType string
	ActionData string // JSON object stored as text
	Status     string // "completed" or "failed"
	Result     string // JSON object stored as text
	ExecutedAt time.Time
}

// AgentMemory is a durable learned preference, unique per
// (user, memory_type, key). Last write wins.
type AgentMemory struct {
	UserID     string
	MemoryType string
	Key        string
	Value      string // JSON value stored as text
	Importance int
	UpdatedAt  time.Time
}

// APIToken maps a bearer token to a user identity.
type APIToken struct {
	Token     string
	UserID    string
	Label     string
	CreatedAt time.Time
}
