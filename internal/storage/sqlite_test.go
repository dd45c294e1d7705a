package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestMigrationsOrdered verifies migrations are applied in ascending numeric order.
func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}

	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

// TestIndexesExist verifies the hot-path indexes are created by the migration.
func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	indexes := []string{
		"idx_daily_logs_user_date",
		"idx_interventions_user_created",
		"idx_interventions_rated",
		"idx_goals_user_status",
		"idx_sessions_user",
		"idx_actions_session",
		"idx_memory_user_importance",
	}
	for _, idx := range indexes {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %q not found in sqlite_master", idx)
		}
	}
}

func TestUpsertAndGetProfile(t *testing.T) {
	s := openTestStore(t)

	want := Profile{
		ID:                    "user-1",
		FullName:              "Ada Lovelace",
		DailyCalorieGoal:      1800,
		DailyProteinGoal:      100,
		DietaryPreferences:    `["vegetarian"]`,
		NotificationsEnabled:  sql.NullBool{Bool: true, Valid: true},
		NotificationFrequency: "daily",
	}
	if err := s.UpsertProfile(want); err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}

	got, err := s.GetProfile("user-1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.FullName != want.FullName {
		t.Errorf("full name = %q, want %q", got.FullName, want.FullName)
	}
	if got.DailyCalorieGoal != want.DailyCalorieGoal {
		t.Errorf("calorie goal = %v, want %v", got.DailyCalorieGoal, want.DailyCalorieGoal)
	}
	if !got.NotificationsEnabled.Valid || !got.NotificationsEnabled.Bool {
		t.Errorf("notifications = %+v, want valid true", got.NotificationsEnabled)
	}

	// Upsert with same id overwrites.
	want.FullName = "Ada L."
	if err := s.UpsertProfile(want); err != nil {
		t.Fatalf("second UpsertProfile: %v", err)
	}
	got, err = s.GetProfile("user-1")
	if err != nil {
		t.Fatalf("GetProfile after upsert: %v", err)
	}
	if got.FullName != "Ada L." {
		t.Errorf("full name after upsert = %q, want %q", got.FullName, "Ada L.")
	}
}

func TestGetProfileNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetProfile("nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProfile on missing id = %v, want ErrNotFound", err)
	}
}

// TestListMonitoredProfiles verifies that only profiles that have ever set
// the notifications flag are returned; NULL means never opted in or out.
func TestListMonitoredProfiles(t *testing.T) {
	s := openTestStore(t)

	profiles := []Profile{
		{ID: "on", FullName: "On", NotificationsEnabled: sql.NullBool{Bool: true, Valid: true}},
		{ID: "off", FullName: "Off", NotificationsEnabled: sql.NullBool{Bool: false, Valid: true}},
		{ID: "unset", FullName: "Unset"},
	}
	for _, p := range profiles {
		if err := s.UpsertProfile(p); err != nil {
			t.Fatalf("UpsertProfile(%s): %v", p.ID, err)
		}
	}

	got, err := s.ListMonitoredProfiles()
	if err != nil {
		t.Fatalf("ListMonitoredProfiles: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d profiles, want 2", len(got))
	}
	for _, p := range got {
		if p.ID == "unset" {
			t.Error("profile with NULL notifications flag should not be returned")
		}
	}
}

func TestSaveDailyLogUpsert(t *testing.T) {
	s := openTestStore(t)

	l := DailyLog{UserID: "u1", LogDate: "2026-08-01", TotalCalories: 1500, WaterGlasses: 4}
	if err := s.SaveDailyLog(l); err != nil {
		t.Fatalf("SaveDailyLog: %v", err)
	}

	// Same (user, date) replaces instead of duplicating.
	l.TotalCalories = 1900
	if err := s.SaveDailyLog(l); err != nil {
		t.Fatalf("second SaveDailyLog: %v", err)
	}

	logs, err := s.RecentLogs("u1", 10)
	if err != nil {
		t.Fatalf("RecentLogs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("got %d logs, want 1", len(logs))
	}
	if logs[0].TotalCalories != 1900 {
		t.Errorf("calories = %v, want 1900", logs[0].TotalCalories)
	}
}

func TestRecentLogsOrderAndLimit(t *testing.T) {
	s := openTestStore(t)

	for i := 1; i <= 5; i++ {
		l := DailyLog{UserID: "u1", LogDate: fmt.Sprintf("2026-08-0%d", i), Steps: float64(i * 1000)}
		if err := s.SaveDailyLog(l); err != nil {
			t.Fatalf("SaveDailyLog: %v", err)
		}
	}

	logs, err := s.RecentLogs("u1", 3)
	if err != nil {
		t.Fatalf("RecentLogs: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("got %d logs, want 3", len(logs))
	}
	if logs[0].LogDate != "2026-08-05" {
		t.Errorf("newest log date = %q, want 2026-08-05", logs[0].LogDate)
	}
}

func TestLogsSince(t *testing.T) {
	s := openTestStore(t)

	dates := []string{"2026-07-28", "2026-08-01", "2026-08-03"}
	for _, d := range dates {
		if err := s.SaveDailyLog(DailyLog{UserID: "u1", LogDate: d}); err != nil {
			t.Fatalf("SaveDailyLog(%s): %v", d, err)
		}
	}

	logs, err := s.LogsSince("u1", "2026-08-01")
	if err != nil {
		t.Fatalf("LogsSince: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("got %d logs, want 2", len(logs))
	}
}

func TestSaveAndRateIntervention(t *testing.T) {
	s := openTestStore(t)

	iv := Intervention{
		ID:               "iv-1",
		UserID:           "u1",
		InterventionType: "alert",
		Recommendation:   "Drink more water",
		TriggerData:      `{"avgWater":3}`,
	}
	if err := s.SaveIntervention(iv); err != nil {
		t.Fatalf("SaveIntervention: %v", err)
	}

	got, err := s.RecentInterventions("u1", 10)
	if err != nil {
		t.Fatalf("RecentInterventions: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d interventions, want 1", len(got))
	}
	if got[0].EffectivenessScore.Valid {
		t.Error("new intervention should have NULL effectiveness score")
	}

	if err := s.RateIntervention("iv-1", "u1", 4, "helpful"); err != nil {
		t.Fatalf("RateIntervention: %v", err)
	}

	got, err = s.RecentInterventions("u1", 10)
	if err != nil {
		t.Fatalf("RecentInterventions after rating: %v", err)
	}
	if !got[0].EffectivenessScore.Valid || got[0].EffectivenessScore.Int64 != 4 {
		t.Errorf("score = %+v, want 4", got[0].EffectivenessScore)
	}
	if !got[0].UserResponse.Valid || got[0].UserResponse.String != "helpful" {
		t.Errorf("response = %+v, want 'helpful'", got[0].UserResponse)
	}
	if !got[0].RespondedAt.Valid {
		t.Error("responded_at should be set after rating")
	}
}

// TestRateInterventionOwnership verifies that one user cannot rate another
// user's intervention.
func TestRateInterventionOwnership(t *testing.T) {
	s := openTestStore(t)

	iv := Intervention{ID: "iv-1", UserID: "owner", InterventionType: "alert", Recommendation: "r"}
	if err := s.SaveIntervention(iv); err != nil {
		t.Fatalf("SaveIntervention: %v", err)
	}

	err := s.RateIntervention("iv-1", "intruder", 5, "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-user rating = %v, want ErrNotFound", err)
	}

	err = s.RateIntervention("missing", "owner", 5, "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("rating missing id = %v, want ErrNotFound", err)
	}
}

func TestRatedInterventionsFilterAndLimit(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		iv := Intervention{
			ID:               fmt.Sprintf("iv-%02d", i),
			UserID:           "u1",
			InterventionType: "alert",
			Recommendation:   "r",
			CreatedAt:        base.Add(time.Duration(i) * time.Hour),
		}
		if err := s.SaveIntervention(iv); err != nil {
			t.Fatalf("SaveIntervention: %v", err)
		}
		if i%3 != 0 {
			if err := s.RateIntervention(iv.ID, "u1", 3, ""); err != nil {
				t.Fatalf("RateIntervention: %v", err)
			}
		}
	}

	rated, err := s.RatedInterventions("u1", 5)
	if err != nil {
		t.Fatalf("RatedInterventions: %v", err)
	}
	if len(rated) != 5 {
		t.Fatalf("got %d rated interventions, want 5", len(rated))
	}
	for _, iv := range rated {
		if !iv.EffectivenessScore.Valid {
			t.Errorf("unrated intervention %s returned", iv.ID)
		}
	}
	// Newest first.
	if rated[0].ID != "iv-14" {
		t.Errorf("newest rated = %s, want iv-14", rated[0].ID)
	}
}

func TestSaveGoalAndActiveGoals(t *testing.T) {
	s := openTestStore(t)

	goals := []HealthGoal{
		{ID: "g1", UserID: "u1", GoalType: "protein", Title: "More protein", TargetValue: 120, Unit: "g", Priority: 5, Status: "active", CreatedBy: "agent"},
		{ID: "g2", UserID: "u1", GoalType: "steps", Title: "Walk", TargetValue: 8000, Unit: "steps", Priority: 3, Status: "completed", CreatedBy: "user"},
	}
	for _, g := range goals {
		if err := s.SaveGoal(g); err != nil {
			t.Fatalf("SaveGoal(%s): %v", g.ID, err)
		}
	}

	active, err := s.ActiveGoals("u1")
	if err != nil {
		t.Fatalf("ActiveGoals: %v", err)
	}
	if len(active) != 1 || active[0].ID != "g1" {
		t.Errorf("active goals = %+v, want only g1", active)
	}

	all, err := s.ListGoals("u1")
	if err != nil {
		t.Fatalf("ListGoals: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d goals, want 2", len(all))
	}
}

func TestSessionOwnership(t *testing.T) {
	s := openTestStore(t)

	sess := AgentSession{ID: "s1", UserID: "u1", SessionType: "health_planning", Status: "active"}
	if err := s.CreateSession(sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := s.GetSession("s1", "u1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.SessionType != "health_planning" {
		t.Errorf("session type = %q, want health_planning", got.SessionType)
	}

	if _, err := s.GetSession("s1", "u2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-user GetSession = %v, want ErrNotFound", err)
	}
}

func TestSaveActionAndSessionActions(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	actions := []AgentAction{
		{ID: "a1", SessionID: "s1", UserID: "u1", ActionType: "get_user_context", Status: "completed", ExecutedAt: base},
		{ID: "a2", SessionID: "s1", UserID: "u1", ActionType: "create_health_goal", ActionData: `{"goal_type":"protein"}`, Status: "failed", Result: `{"error":"boom"}`, ExecutedAt: base.Add(time.Second)},
	}
	for _, a := range actions {
		if err := s.SaveAction(a); err != nil {
			t.Fatalf("SaveAction(%s): %v", a.ID, err)
		}
	}

	got, err := s.SessionActions("s1")
	if err != nil {
		t.Fatalf("SessionActions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d actions, want 2", len(got))
	}
	if got[0].ID != "a1" || got[1].ID != "a2" {
		t.Errorf("actions out of execution order: %s, %s", got[0].ID, got[1].ID)
	}
	if got[1].Status != "failed" {
		t.Errorf("status = %q, want failed", got[1].Status)
	}
	if got[0].ActionData != "{}" {
		t.Errorf("empty action data should default to {}, got %q", got[0].ActionData)
	}
}

// TestUpsertMemoryLastWriteWins verifies the (user, type, key) uniqueness.
func TestUpsertMemoryLastWriteWins(t *testing.T) {
	s := openTestStore(t)

	m := AgentMemory{UserID: "u1", MemoryType: "dietary_preference", Key: "diet", Value: `"vegetarian"`, Importance: 9}
	if err := s.UpsertMemory(m); err != nil {
		t.Fatalf("UpsertMemory: %v", err)
	}

	m.Value = `"vegan"`
	if err := s.UpsertMemory(m); err != nil {
		t.Fatalf("second UpsertMemory: %v", err)
	}

	got, err := s.TopMemories("u1", 10)
	if err != nil {
		t.Fatalf("TopMemories: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d memories, want 1", len(got))
	}
	if got[0].Value != `"vegan"` {
		t.Errorf("value = %q, want %q", got[0].Value, `"vegan"`)
	}
}

func TestTopMemoriesOrder(t *testing.T) {
	s := openTestStore(t)

	memories := []AgentMemory{
		{UserID: "u1", MemoryType: "meal_timing", Key: "breakfast", Value: `"early"`, Importance: 6},
		{UserID: "u1", MemoryType: "dietary_preference", Key: "diet", Value: `"vegan"`, Importance: 9},
		{UserID: "u1", MemoryType: "exercise_preference", Key: "type", Value: `"gym"`, Importance: 7},
	}
	for _, m := range memories {
		if err := s.UpsertMemory(m); err != nil {
			t.Fatalf("UpsertMemory: %v", err)
		}
	}

	got, err := s.TopMemories("u1", 2)
	if err != nil {
		t.Fatalf("TopMemories: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d memories, want 2", len(got))
	}
	if got[0].Importance != 9 || got[1].Importance != 7 {
		t.Errorf("importance order = %d, %d, want 9, 7", got[0].Importance, got[1].Importance)
	}
}

func TestCreateAndResolveToken(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateToken(APIToken{Token: "tok-1", UserID: "u1", Label: "cli"}); err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	userID, err := s.ResolveToken("tok-1")
	if err != nil {
		t.Fatalf("ResolveToken: %v", err)
	}
	if userID != "u1" {
		t.Errorf("user id = %q, want u1", userID)
	}

	if _, err := s.ResolveToken("bogus"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ResolveToken on unknown token = %v, want ErrNotFound", err)
	}
}
