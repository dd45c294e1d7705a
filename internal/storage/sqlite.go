package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for profiles, daily logs,
// interventions, goals, agent sessions, actions, and memory.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "vita.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// DB exposes the underlying database handle for test fixtures.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func nullTimeString(t sql.NullTime) any {
	if !t.Valid {
		return nil
	}
	return fmtTime(t.Time)
}

func scanNullTime(s sql.NullString) (sql.NullTime, error) {
	if !s.Valid {
		return sql.NullTime{}, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return sql.NullTime{}, err
	}
	return sql.NullTime{Time: t, Valid: true}, nil
}

// --- Profiles ---

func (s *Store) UpsertProfile(p Profile) error {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO profiles (id, full_name, daily_calorie_goal, daily_protein_goal, daily_carbs_goal, daily_fats_goal, dietary_preferences, autonomous_notifications_enabled, notification_frequency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			full_name = excluded.full_name,
			daily_calorie_goal = excluded.daily_calorie_goal,
			daily_protein_goal = excluded.daily_protein_goal,
			daily_carbs_goal = excluded.daily_carbs_goal,
			daily_fats_goal = excluded.daily_fats_goal,
			dietary_preferences = excluded.dietary_preferences,
			autonomous_notifications_enabled = excluded.autonomous_notifications_enabled,
			notification_frequency = excluded.notification_frequency`,
		p.ID, p.FullName, p.DailyCalorieGoal, p.DailyProteinGoal, p.DailyCarbsGoal, p.DailyFatsGoal,
		jsonOrDefault(p.DietaryPreferences, "[]"), p.NotificationsEnabled,
		freqOrDefault(p.NotificationFrequency), fmtTime(createdAt),
	)
	return err
}

func jsonOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func freqOrDefault(v string) string {
	if v == "" {
		return "daily"
	}
	return v
}

const profileColumns = `id, full_name, daily_calorie_goal, daily_protein_goal, daily_carbs_goal, daily_fats_goal, dietary_preferences, autonomous_notifications_enabled, notification_frequency, created_at`

func scanProfile(row interface{ Scan(...any) error }) (Profile, error) {
	var p Profile
	var createdAt string
	err := row.Scan(&p.ID, &p.FullName, &p.DailyCalorieGoal, &p.DailyProteinGoal,
		&p.DailyCarbsGoal, &p.DailyFatsGoal, &p.DietaryPreferences,
		&p.NotificationsEnabled, &p.NotificationFrequency, &createdAt)
	if err != nil {
		return Profile{}, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return Profile{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return p, nil
}

func (s *Store) GetProfile(id string) (Profile, error) {
	row := s.db.QueryRow(`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return Profile{}, ErrNotFound
	}
	return p, err
}

func (s *Store) ListProfiles() ([]Profile, error) {
	return s.queryProfiles(`SELECT ` + profileColumns + ` FROM profiles ORDER BY created_at ASC`)
}

// ListMonitoredProfiles returns profiles that have ever set the autonomous
// notifications flag. Users with the flag explicitly false are still
// returned; the monitor skips them in its loop.
func (s *Store) ListMonitoredProfiles() ([]Profile, error) {
	return s.queryProfiles(`SELECT ` + profileColumns + ` FROM profiles WHERE autonomous_notifications_enabled IS NOT NULL ORDER BY created_at ASC`)
}

func (s *Store) queryProfiles(query string, args ...any) ([]Profile, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

// --- Daily logs ---

// SaveDailyLog inserts or replaces the log for (user, date). At most one
// row per user per calendar date.
func (s *Store) SaveDailyLog(l DailyLog) error {
	_, err := s.db.Exec(`
		INSERT INTO daily_logs (user_id, log_date, total_calories, total_protein_g, total_carbs_g, total_fats_g, water_glasses, steps, weight_kg, health_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, log_date) DO UPDATE SET
			total_calories = excluded.total_calories,
			total_protein_g = excluded.total_protein_g,
			total_carbs_g = excluded.total_carbs_g,
			total_fats_g = excluded.total_fats_g,
			water_glasses = excluded.water_glasses,
			steps = excluded.steps,
			weight_kg = excluded.weight_kg,
			health_score = excluded.health_score`,
		l.UserID, l.LogDate, l.TotalCalories, l.TotalProteinG, l.TotalCarbsG, l.TotalFatsG,
		l.WaterGlasses, l.Steps, l.WeightKg, l.HealthScore,
	)
	return err
}

const dailyLogColumns = `user_id, log_date, total_calories, total_protein_g, total_carbs_g, total_fats_g, water_glasses, steps, weight_kg, health_score`

// RecentLogs returns the user's most recent logs, newest first, up to limit.
func (s *Store) RecentLogs(userID string, limit int) ([]DailyLog, error) {
	return s.queryLogs(`SELECT `+dailyLogColumns+` FROM daily_logs WHERE user_id = ? ORDER BY log_date DESC LIMIT ?`, userID, limit)
}

// LogsSince returns logs on or after the given date, newest first.
func (s *Store) LogsSince(userID, since string) ([]DailyLog, error) {
	return s.queryLogs(`SELECT `+dailyLogColumns+` FROM daily_logs WHERE user_id = ? AND log_date >= ? ORDER BY log_date DESC`, userID, since)
}

func (s *Store) queryLogs(query string, args ...any) ([]DailyLog, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []DailyLog
	for rows.Next() {
		var l DailyLog
		if err := rows.Scan(&l.UserID, &l.LogDate, &l.TotalCalories, &l.TotalProteinG,
			&l.TotalCarbsG, &l.TotalFatsG, &l.WaterGlasses, &l.Steps, &l.WeightKg, &l.HealthScore); err != nil {
			return nil, err
		}
		results = append(results, l)
	}
	return results, rows.Err()
}

// --- Interventions ---

func (s *Store) SaveIntervention(iv Intervention) error {
	createdAt := iv.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO intervention_history (id, user_id, intervention_type, recommendation, trigger_data, effectiveness_score, user_response, responded_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		iv.ID, iv.UserID, iv.InterventionType, iv.Recommendation,
		jsonOrDefault(iv.TriggerData, "{}"), iv.EffectivenessScore, iv.UserResponse,
		nullTimeString(iv.RespondedAt), fmtTime(createdAt),
	)
	return err
}

const interventionColumns = `id, user_id, intervention_type, recommendation, trigger_data, effectiveness_score, user_response, responded_at, created_at`

func scanIntervention(row interface{ Scan(...any) error }) (Intervention, error) {
	var iv Intervention
	var respondedAt sql.NullString
	var createdAt string
	err := row.Scan(&iv.ID, &iv.UserID, &iv.InterventionType, &iv.Recommendation,
		&iv.TriggerData, &iv.EffectivenessScore, &iv.UserResponse, &respondedAt, &createdAt)
	if err != nil {
		return Intervention{}, err
	}
	if iv.RespondedAt, err = scanNullTime(respondedAt); err != nil {
		return Intervention{}, fmt.Errorf("parsing responded_at: %w", err)
	}
	if iv.CreatedAt, err = parseTime(createdAt); err != nil {
		return Intervention{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return iv, nil
}

// RecentInterventions returns the user's newest interventions up to limit.
func (s *Store) RecentInterventions(userID string, limit int) ([]Intervention, error) {
	return s.queryInterventions(`SELECT `+interventionColumns+` FROM intervention_history
		WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
}

// RatedInterventions returns the user's newest interventions that carry an
// effectiveness score, up to limit. This is the training signal for the
// effectiveness filter.
func (s *Store) RatedInterventions(userID string, limit int) ([]Intervention, error) {
	return s.queryInterventions(`SELECT `+interventionColumns+` FROM intervention_history
		WHERE user_id = ? AND effectiveness_score IS NOT NULL ORDER BY created_at DESC LIMIT ?`, userID, limit)
}

func (s *Store) queryInterventions(query string, args ...any) ([]Intervention, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Intervention
	for rows.Next() {
		iv, err := scanIntervention(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, iv)
	}
	return results, rows.Err()
}

// RateIntervention records the user's effectiveness rating for one of their
// own interventions. Returns ErrNotFound when the intervention does not
// exist or belongs to another user.
func (s *Store) RateIntervention(id, userID string, score int, response string) error {
	res, err := s.db.Exec(`UPDATE intervention_history
		SET effectiveness_score = ?, user_response = ?, responded_at = ?
		WHERE id = ? AND user_id = ?`,
		score, response, fmtTime(time.Now()), id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Health goals ---

func (s *Store) SaveGoal(g HealthGoal) error {
	createdAt := g.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO health_goals (id, user_id, goal_type, title, description, target_value, current_value, unit, deadline, priority, status, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.GoalType, g.Title, g.Description, g.TargetValue, g.CurrentValue,
		g.Unit, g.Deadline, g.Priority, g.Status, g.CreatedBy, fmtTime(createdAt),
	)
	return err
}

const goalColumns = `id, user_id, goal_type, title, description, target_value, current_value, unit, deadline, priority, status, created_by, created_at`

// ActiveGoals returns the user's goals with status 'active', newest first.
func (s *Store) ActiveGoals(userID string) ([]HealthGoal, error) {
	return s.queryGoals(`SELECT `+goalColumns+` FROM health_goals
		WHERE user_id = ? AND status = 'active' ORDER BY created_at DESC`, userID)
}

func (s *Store) ListGoals(userID string) ([]HealthGoal, error) {
	return s.queryGoals(`SELECT `+goalColumns+` FROM health_goals
		WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

func (s *Store) queryGoals(query string, args ...any) ([]HealthGoal, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []HealthGoal
	for rows.Next() {
		var g HealthGoal
		var createdAt string
		if err := rows.Scan(&g.ID, &g.UserID, &g.GoalType, &g.Title, &g.Description,
			&g.TargetValue, &g.CurrentValue, &g.Unit, &g.Deadline, &g.Priority,
			&g.Status, &g.CreatedBy, &createdAt); err != nil {
			return nil, err
		}
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		g.CreatedAt = t
		results = append(results, g)
	}
	return results, rows.Err()
}

// --- Agent sessions ---

func (s *Store) CreateSession(sess AgentSession) error {
	startedAt := sess.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO agent_sessions (id, user_id, session_type, status, started_at, ended_at, context)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.SessionType, sess.Status,
		fmtTime(startedAt), nullTimeString(sess.EndedAt), jsonOrDefault(sess.Context, "{}"),
	)
	return err
}

// GetSession returns the session only when it belongs to userID; otherwise
// ErrNotFound. Session ids arrive from the client and must not resolve
// across users.
func (s *Store) GetSession(id, userID string) (AgentSession, error) {
	var sess AgentSession
	var startedAt string
	var endedAt sql.NullString
	err := s.db.QueryRow(`SELECT id, user_id, session_type, status, started_at, ended_at, context
		FROM agent_sessions WHERE id = ? AND user_id = ?`, id, userID,
	).Scan(&sess.ID, &sess.UserID, &sess.SessionType, &sess.Status, &startedAt, &endedAt, &sess.Context)
	if err == sql.ErrNoRows {
		return AgentSession{}, ErrNotFound
	}
	if err != nil {
		return AgentSession{}, err
	}
	if sess.StartedAt, err = parseTime(startedAt); err != nil {
		return AgentSession{}, fmt.Errorf("parsing started_at: %w", err)
	}
	if sess.EndedAt, err = scanNullTime(endedAt); err != nil {
		return AgentSession{}, fmt.Errorf("parsing ended_at: %w", err)
	}
	return sess, nil
}

// --- Agent actions ---

func (s *Store) SaveAction(a AgentAction) error {
	executedAt := a.ExecutedAt
	if executedAt.IsZero() {
		executedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO agent_actions (id, session_id, user_id, action_type, action_data, status, result, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SessionID, a.UserID, a.ActionType, jsonOrDefault(a.ActionData, "{}"),
		a.Status, jsonOrDefault(a.Result, "{}"), fmtTime(executedAt),
	)
	return err
}

func (s *Store) SessionActions(sessionID string) ([]AgentAction, error) {
	rows, err := s.db.Query(`SELECT id, session_id, user_id, action_type, action_data, status, result, executed_at
		FROM agent_actions WHERE session_id = ? ORDER BY executed_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []AgentAction
	for rows.Next() {
		var a AgentAction
		var executedAt string
		if err := rows.Scan(&a.ID, &a.SessionID, &a.UserID, &a.ActionType, &a.ActionData,
			&a.Status, &a.Result, &executedAt); err != nil {
			return nil, err
		}
		t, err := parseTime(executedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing executed_at: %w", err)
		}
		a.ExecutedAt = t
		results = append(results, a)
	}
	return results, rows.Err()
}

// --- Agent memory ---

// UpsertMemory inserts or overwrites the memory for
// (user, memory_type, key). Last write wins.
func (s *Store) UpsertMemory(m AgentMemory) error {
	_, err := s.db.Exec(`
		INSERT INTO agent_memory (user_id, memory_type, key, value, importance, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, memory_type, key) DO UPDATE SET
			value = excluded.value,
			importance = excluded.importance,
			updated_at = excluded.updated_at`,
		m.UserID, m.MemoryType, m.Key, m.Value, m.Importance, fmtTime(time.Now()),
	)
	return err
}

// TopMemories returns the user's memories ordered by importance descending,
// up to limit.
func (s *Store) TopMemories(userID string, limit int) ([]AgentMemory, error) {
	rows, err := s.db.Query(`SELECT user_id, memory_type, key, value, importance, updated_at
		FROM agent_memory WHERE user_id = ? ORDER BY importance DESC, key ASC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []AgentMemory
	for rows.Next() {
		var m AgentMemory
		var updatedAt string
		if err := rows.Scan(&m.UserID, &m.MemoryType, &m.Key, &m.Value, &m.Importance, &updatedAt); err != nil {
			return nil, err
		}
		t, err := parseTime(updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		m.UpdatedAt = t
		results = append(results, m)
	}
	return results, rows.Err()
}

// --- API tokens ---

func (s *Store) CreateToken(t APIToken) error {
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO api_tokens (token, user_id, label, created_at) VALUES (?, ?, ?, ?)`,
		t.Token, t.UserID, t.Label, fmtTime(createdAt))
	return err
}

// ResolveToken returns the user id a bearer token belongs to, or ErrNotFound.
func (s *Store) ResolveToken(token string) (string, error) {
	var userID string
	err := s.db.QueryRow(`SELECT user_id FROM api_tokens WHERE token = ?`, token).Scan(&userID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return userID, err
}
