package publishers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samvad-hq/crm-bff/pkg/dto"
)

// EventKindDashboardSnapshot tags events carrying a dashboard snapshot.
const EventKindDashboardSnapshot = "dashboard_snapshot"

// Dashboard sections a sink can subscribe to.
const (
	SectionStats    = "stats"
	SectionDeals    = "deals"
	SectionActivity = "activity"
)

var knownSections = map[string]bool{
	SectionStats:    true,
	SectionDeals:    true,
	SectionActivity: true,
}

// Event is the envelope published downstream. ID is unique per snapshot and
// doubles as the deduplication key on FIFO queues and topics.
type Event struct {
	ID          string         `json:"id"`
	Kind        string         `json:"kind"`
	UserID      string         `json:"user_id"`
	Dashboard   map[string]any `json:"dashboard"`
	CollectedAt time.Time      `json:"collected_at"`
}

// NewDashboardEvent wraps a freshly built dashboard.
func NewDashboardEvent(userID string, dash dto.Dashboard) Event {
	return Event{
		ID:          uuid.NewString(),
		Kind:        EventKindDashboardSnapshot,
		UserID:      userID,
		Dashboard:   dash.Fields(),
		CollectedAt: time.Now().UTC(),
	}
}

// project keeps only the listed dashboard sections. An empty list keeps all.
func (e Event) project(sections []string) Event {
	if len(sections) == 0 || e.Dashboard == nil {
		return e
	}
	dash := make(map[string]any, len(sections))
	for _, s := range sections {
		if v, ok := e.Dashboard[s]; ok {
			dash[s] = v
		}
	}
	e.Dashboard = dash
	return e
}

func (e Event) encode() ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", e.ID, err)
	}
	return payload, nil
}

// attributes returns the non-empty message attributes shared by the
// queue-style publishers.
func (e Event) attributes() map[string]string {
	attrs := make(map[string]string, 3)
	for k, v := range map[string]string{
		"event_id": e.ID,
		"kind":     e.Kind,
		"user_id":  e.UserID,
	} {
		if v != "" {
			attrs[k] = v
		}
	}
	return attrs
}

// groupKey partitions ordered delivery per user.
func (e Event) groupKey() string {
	if e.UserID != "" {
		return "user-" + e.UserID
	}
	return e.Kind
}
