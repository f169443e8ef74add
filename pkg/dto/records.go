package dto

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Defaults applied when the backend omits a field.
const (
	DefaultRole       = "USER"
	DefaultDealStatus = "NEW"
	DefaultTaskStatus = "TODO"
)

// AuthTokens is the result of a login or refresh call.
type AuthTokens struct {
	Access   string
	Refresh  string
	UserID   string
	FullName string
	Role     string
}

// Client is a CRM customer record.
type Client struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Company   *string
	OwnerID   *string
	CreatedAt *time.Time
}

type Deal struct {
	ID                string
	Title             string
	Status            string
	Amount            decimal.Decimal
	ClientID          *string
	OwnerID           *string
	ExpectedCloseDate *civil.Date
}

type Task struct {
	ID         string
	Title      string
	Status     string
	DueDate    *civil.Date
	AssigneeID *string
	DealID     *string
}

// Activity is an audit-trail entry. Payload is never nil.
type Activity struct {
	ID         string
	EntityType string
	Action     string
	Payload    map[string]any
	CreatedAt  *time.Time
	UserName   *string
}

// Stats aggregates pipeline numbers from /stats/overview/.
type Stats struct {
	TotalClients    int64
	TotalDeals      int64
	DealsInProgress int64
	DealsWon        int64
	DealsLost       int64
	PipelineAmount  decimal.Decimal
	WonAmount       decimal.Decimal
}

// Page is one page of a paginated list endpoint.
type Page[T any] struct {
	Count    int64
	Next     *string
	Previous *string
	Results  []T
}

// Dashboard groups the data rendered on the dashboard view.
type Dashboard struct {
	Stats    Stats
	Deals    []Deal
	Activity []Activity
}

// ComposeDashboard builds a Dashboard from already fetched parts.
func ComposeDashboard(stats Stats, deals []Deal, activity []Activity) Dashboard {
	if deals == nil {
		deals = []Deal{}
	}
	if activity == nil {
		activity = []Activity{}
	}
	return Dashboard{Stats: stats, Deals: deals, Activity: activity}
}

// Fields returns the semantic fields using the backend's wire names.
func (a AuthTokens) Fields() map[string]any {
	return map[string]any{
		"access":  a.Access,
		"refresh": a.Refresh,
		"user": map[string]any{
			"id":        a.UserID,
			"full_name": a.FullName,
			"role":      a.Role,
		},
	}
}

func (c Client) Fields() map[string]any {
	return map[string]any{
		"id":         c.ID,
		"name":       c.Name,
		"email":      c.Email,
		"phone":      c.Phone,
		"company":    optional(c.Company),
		"owner":      optional(c.OwnerID),
		"created_at": formatTimestamp(c.CreatedAt),
	}
}

func (d Deal) Fields() map[string]any {
	return map[string]any{
		"id":                  d.ID,
		"title":               d.Title,
		"status":              d.Status,
		"amount":              d.Amount.String(),
		"client":              optional(d.ClientID),
		"owner":               optional(d.OwnerID),
		"expected_close_date": formatDate(d.ExpectedCloseDate),
	}
}

func (t Task) Fields() map[string]any {
	return map[string]any{
		"id":          t.ID,
		"title":       t.Title,
		"status":      t.Status,
		"due_date":    formatDate(t.DueDate),
		"assigned_to": optional(t.AssigneeID),
		"deal":        optional(t.DealID),
	}
}

func (a Activity) Fields() map[string]any {
	return map[string]any{
		"id":          a.ID,
		"object_type": a.EntityType,
		"action":      a.Action,
		"payload":     a.Payload,
		"created_at":  formatTimestamp(a.CreatedAt),
		"user_name":   optional(a.UserName),
	}
}

func (s Stats) Fields() map[string]any {
	return map[string]any{
		"total_clients":     s.TotalClients,
		"total_deals":       s.TotalDeals,
		"deals_in_progress": s.DealsInProgress,
		"deals_won":         s.DealsWon,
		"deals_lost":        s.DealsLost,
		"pipeline_amount":   s.PipelineAmount.String(),
		"won_amount":        s.WonAmount.String(),
	}
}

func (d Dashboard) Fields() map[string]any {
	deals := make([]map[string]any, 0, len(d.Deals))
	for _, deal := range d.Deals {
		deals = append(deals, deal.Fields())
	}
	activity := make([]map[string]any, 0, len(d.Activity))
	for _, a := range d.Activity {
		activity = append(activity, a.Fields())
	}
	return map[string]any{
		"stats":    d.Stats.Fields(),
		"deals":    deals,
		"activity": activity,
	}
}
