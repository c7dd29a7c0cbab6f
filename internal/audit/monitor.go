package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/amirk1998/notebox/internal/logger"
)

const (
	detectionWindow           = 5 * time.Minute
	failedLoginThreshold      = 5
	profileEnumerationMinimum = 3
)

// Monitor scans recent audit events for abuse patterns
type Monitor struct {
	logger *Logger
	log    *logger.Logger
}

// NewMonitor creates a new security monitor
func NewMonitor(al *Logger, log *logger.Logger) *Monitor {
	return &Monitor{
		logger: al,
		log:    log.WithComponent("monitor"),
	}
}

func (m *Monitor) recent(ctx context.Context, action string) ([]*Event, error) {
	now := m.logger.now().UTC()
	start := now.Add(-detectionWindow)

	return m.logger.QueryLogs(ctx, QueryFilters{
		StartTime: &start,
		EndTime:   &now,
		Action:    action,
		Limit:     1000,
	})
}

// DetectFailedLogins alerts on users with repeated bad passwords in the window
func (m *Monitor) DetectFailedLogins(ctx context.Context) ([]int, error) {
	events, err := m.recent(ctx, ActionLoginInvalidPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}

	failed := make(map[int]int)
	for _, event := range events {
		if event.UserID != nil {
			failed[*event.UserID]++
		}
	}

	var flagged []int
	for userID, count := range failed {
		if count < failedLoginThreshold {
			continue
		}
		flagged = append(flagged, userID)
		m.log.Warnw("Repeated failed logins", "user_id", userID, "attempts", count)
		m.logger.Log(&Event{
			Level:    LevelCritical,
			UserID:   UserRef(userID),
			Action:   ActionFailedLoginThreshold,
			Resource: "authentication",
			ErrorMsg: fmt.Sprintf("%d failed attempts detected", count),
		})
	}
	return flagged, nil
}

// DetectProfileEnumeration alerts on callers reading several foreign
// profiles in the window
func (m *Monitor) DetectProfileEnumeration(ctx context.Context) ([]int, error) {
	events, err := m.recent(ctx, ActionProfileLookupForeign)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}

	targets := make(map[int]map[string]struct{})
	for _, event := range events {
		if event.UserID == nil {
			continue
		}
		if targets[*event.UserID] == nil {
			targets[*event.UserID] = make(map[string]struct{})
		}
		targets[*event.UserID][event.Resource] = struct{}{}
	}

	var flagged []int
	for callerID, seen := range targets {
		if len(seen) < profileEnumerationMinimum {
			continue
		}
		flagged = append(flagged, callerID)
		m.log.Warnw("Possible profile enumeration", "user_id", callerID, "distinct_targets", len(seen))
		m.logger.Log(&Event{
			Level:    LevelCritical,
			UserID:   UserRef(callerID),
			Action:   ActionProfileEnumeration,
			Resource: "profile",
			ErrorMsg: fmt.Sprintf("%d foreign profiles read", len(seen)),
		})
	}
	return flagged, nil
}

// DetectSuspiciousActivity runs all security checks
func (m *Monitor) DetectSuspiciousActivity(ctx context.Context) {
	if _, err := m.DetectFailedLogins(ctx); err != nil {
		m.log.Errorw("Failed to detect failed logins", "error", err)
	}
	if _, err := m.DetectProfileEnumeration(ctx); err != nil {
		m.log.Errorw("Failed to detect profile enumeration", "error", err)
	}
}

// Start runs DetectSuspiciousActivity every interval until ctx is done
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.DetectSuspiciousActivity(ctx)
		}
	}
}
