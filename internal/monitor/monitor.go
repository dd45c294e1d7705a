package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/vita/internal/storage"
)

const (
	defaultWindowDays  = 7
	defaultConcurrency = 4
	ratedHistoryLimit  = 10
)

// Store abstracts the persistence operations a monitor pass needs.
// Implemented by storage.Store.
type Store interface {
	ListMonitoredProfiles() ([]storage.Profile, error)
	RecentLogs(userID string, limit int) ([]storage.DailyLog, error)
	RatedInterventions(userID string, limit int) ([]storage.Intervention, error)
	SaveIntervention(iv storage.Intervention) error
}

// Created summarizes one intervention recorded during a pass.
type Created struct {
	UserID       string `json:"userId"`
	UserName     string `json:"userName"`
	Intervention string `json:"intervention"`
}

// Result is the structured summary the monitor always returns, even under
// partial failure.
type Result struct {
	Success              bool      `json:"success"`
	InterventionsCreated int       `json:"interventionsCreated"`
	Interventions        []Created `json:"interventions"`
}

// triggerData is the snapshot stored with each intervention so the reason
// it fired can be reproduced later.
type triggerData struct {
	Signals
	AnalysisDate string `json:"analysisDate"`
}

// Monitor runs the batch analysis pass: aggregate signals, detect issues,
// filter by effectiveness history, record the top intervention per user.
type Monitor struct {
	store       Store
	windowDays  int
	concurrency int
	logger      *slog.Logger
}

// New creates a Monitor. Non-positive windowDays or concurrency fall back
// to defaults (7 days, 4 workers).
func New(store Store, windowDays, concurrency int) *Monitor {
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Monitor{
		store:       store,
		windowDays:  windowDays,
		concurrency: concurrency,
		logger:      slog.Default(),
	}
}

// Run analyzes every monitored user once. Users are processed by a bounded
// worker pool; one user's failure never blocks the others — it is logged
// and that user is simply absent from the summary.
func (m *Monitor) Run(ctx context.Context) (Result, error) {
	profiles, err := m.store.ListMonitoredProfiles()
	if err != nil {
		return Result{}, fmt.Errorf("listing monitored profiles: %w", err)
	}

	var (
		mu      sync.Mutex
		created []Created
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for _, p := range profiles {
		if p.NotificationsEnabled.Valid && !p.NotificationsEnabled.Bool {
			continue
		}

		p := p
		g.Go(func() error {
			c, err := m.analyzeUser(gCtx, p)
			if err != nil {
				// Per-user isolation: log and move on.
				m.logger.Warn("user analysis failed", "user_id", p.ID, "error", err)
				return nil
			}
			if c != nil {
				mu.Lock()
				created = append(created, *c)
				mu.Unlock()
			}
			return nil
		})
	}

	// Workers never return errors, but Wait also observes ctx cancellation.
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	m.logger.Info("monitor pass complete", "interventions_created", len(created))

	if created == nil {
		created = []Created{}
	}
	return Result{
		Success:              true,
		InterventionsCreated: len(created),
		Interventions:        created,
	}, nil
}

// analyzeUser runs the full pipeline for one user. A nil Created with nil
// error means the user was skipped: no logs, or no surviving candidate —
// both normal outcomes.
func (m *Monitor) analyzeUser(ctx context.Context, p storage.Profile) (*Created, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logs, err := m.store.RecentLogs(p.ID, m.windowDays)
	if err != nil {
		return nil, fmt.Errorf("fetching recent logs: %w", err)
	}

	sig, ok := Aggregate(logs)
	if !ok {
		return nil, nil
	}

	issues := DetectIssues(sig, p.DailyCalorieGoal, p.DailyProteinGoal)

	history, err := m.store.RatedInterventions(p.ID, ratedHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("fetching rated interventions: %w", err)
	}

	filtered := FilterIssues(issues, history)
	if len(filtered) == 0 {
		return nil, nil
	}

	top := filtered[0]
	trigger, err := json.Marshal(triggerData{
		Signals:      sig,
		AnalysisDate: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling trigger data: %w", err)
	}

	iv := storage.Intervention{
		ID:               uuid.New().String(),
		UserID:           p.ID,
		InterventionType: top.Type,
		Recommendation:   top.Message,
		TriggerData:      string(trigger),
	}
	if err := m.store.SaveIntervention(iv); err != nil {
		return nil, fmt.Errorf("recording intervention: %w", err)
	}

	return &Created{
		UserID:       p.ID,
		UserName:     p.FullName,
		Intervention: top.Message,
	}, nil
}
