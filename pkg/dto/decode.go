package dto

import (
	"encoding/json"
	"fmt"
)

type authWire struct {
	Access  *string `json:"access"`
	Refresh *string `json:"refresh"`
	User    *struct {
		ID       idValue `json:"id"`
		FullName string  `json:"full_name"`
		Role     *string `json:"role"`
	} `json:"user"`
}

// DecodeAuthTokens decodes a login/refresh response. Access and refresh tokens
// are mandatory.
func DecodeAuthTokens(raw []byte) (AuthTokens, error) {
	var w authWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return AuthTokens{}, malformed("auth_tokens", "", err)
	}
	if w.Access == nil || *w.Access == "" {
		return AuthTokens{}, malformed("auth_tokens", "access", errMissing)
	}
	if w.Refresh == nil || *w.Refresh == "" {
		return AuthTokens{}, malformed("auth_tokens", "refresh", errMissing)
	}
	tokens := AuthTokens{
		Access:  *w.Access,
		Refresh: *w.Refresh,
		Role:    DefaultRole,
	}
	if w.User != nil {
		tokens.UserID = w.User.ID.value
		tokens.FullName = w.User.FullName
		if w.User.Role != nil && *w.User.Role != "" {
			tokens.Role = *w.User.Role
		}
	}
	return tokens, nil
}

type clientWire struct {
	ID        idValue `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Phone     string  `json:"phone"`
	Company   *string `json:"company"`
	Owner     idValue `json:"owner"`
	CreatedAt *string `json:"created_at"`
}

func DecodeClient(raw []byte) (Client, error) {
	var w clientWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return Client{}, malformed("client", "", err)
	}
	if !w.ID.set {
		return Client{}, malformed("client", "id", errMissing)
	}
	createdAt, err := ParseTimestamp(deref(w.CreatedAt))
	if err != nil {
		return Client{}, malformed("client", "created_at", err)
	}
	return Client{
		ID:        w.ID.value,
		Name:      w.Name,
		Email:     w.Email,
		Phone:     w.Phone,
		Company:   w.Company,
		OwnerID:   w.Owner.relation(),
		CreatedAt: createdAt,
	}, nil
}

type dealWire struct {
	ID                idValue     `json:"id"`
	Title             string      `json:"title"`
	Status            *string     `json:"status"`
	Amount            amountValue `json:"amount"`
	Client            idValue     `json:"client"`
	Owner             idValue     `json:"owner"`
	ExpectedCloseDate *string     `json:"expected_close_date"`
}

func DecodeDeal(raw []byte) (Deal, error) {
	var w dealWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return Deal{}, malformed("deal", "", err)
	}
	if !w.ID.set {
		return Deal{}, malformed("deal", "id", errMissing)
	}
	closeDate, err := ParseDate(deref(w.ExpectedCloseDate))
	if err != nil {
		return Deal{}, malformed("deal", "expected_close_date", err)
	}
	return Deal{
		ID:                w.ID.value,
		Title:             w.Title,
		Status:            withDefault(w.Status, DefaultDealStatus),
		Amount:            w.Amount.Decimal,
		ClientID:          w.Client.relation(),
		OwnerID:           w.Owner.relation(),
		ExpectedCloseDate: closeDate,
	}, nil
}

type taskWire struct {
	ID         idValue `json:"id"`
	Title      string  `json:"title"`
	Status     *string `json:"status"`
	DueDate    *string `json:"due_date"`
	AssignedTo idValue `json:"assigned_to"`
	Deal       idValue `json:"deal"`
}

func DecodeTask(raw []byte) (Task, error) {
	var w taskWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return Task{}, malformed("task", "", err)
	}
	if !w.ID.set {
		return Task{}, malformed("task", "id", errMissing)
	}
	due, err := ParseDate(deref(w.DueDate))
	if err != nil {
		return Task{}, malformed("task", "due_date", err)
	}
	return Task{
		ID:         w.ID.value,
		Title:      w.Title,
		Status:     withDefault(w.Status, DefaultTaskStatus),
		DueDate:    due,
		AssigneeID: w.AssignedTo.relation(),
		DealID:     w.Deal.relation(),
	}, nil
}

type activityWire struct {
	ID         idValue        `json:"id"`
	ObjectType string         `json:"object_type"`
	Action     string         `json:"action"`
	Payload    map[string]any `json:"payload"`
	CreatedAt  *string        `json:"created_at"`
	UserName   *string        `json:"user_name"`
}

func DecodeActivity(raw []byte) (Activity, error) {
	var w activityWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return Activity{}, malformed("activity", "", err)
	}
	if !w.ID.set {
		return Activity{}, malformed("activity", "id", errMissing)
	}
	createdAt, err := ParseTimestamp(deref(w.CreatedAt))
	if err != nil {
		return Activity{}, malformed("activity", "created_at", err)
	}
	payload := w.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return Activity{
		ID:         w.ID.value,
		EntityType: w.ObjectType,
		Action:     w.Action,
		Payload:    payload,
		CreatedAt:  createdAt,
		UserName:   w.UserName,
	}, nil
}

type statsWire struct {
	TotalClients    countValue  `json:"total_clients"`
	TotalDeals      countValue  `json:"total_deals"`
	DealsInProgress countValue  `json:"deals_in_progress"`
	DealsWon        countValue  `json:"deals_won"`
	DealsLost       countValue  `json:"deals_lost"`
	PipelineAmount  amountValue `json:"pipeline_amount"`
	WonAmount       amountValue `json:"won_amount"`
}

func DecodeStats(raw []byte) (Stats, error) {
	var w statsWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return Stats{}, malformed("stats", "", err)
	}
	return Stats{
		TotalClients:    int64(w.TotalClients),
		TotalDeals:      int64(w.TotalDeals),
		DealsInProgress: int64(w.DealsInProgress),
		DealsWon:        int64(w.DealsWon),
		DealsLost:       int64(w.DealsLost),
		PipelineAmount:  w.PipelineAmount.Decimal,
		WonAmount:       w.WonAmount.Decimal,
	}, nil
}

type pageWire struct {
	Count    countValue        `json:"count"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
	Results  []json.RawMessage `json:"results"`
}

// DecodePage decodes a {count, next, previous, results} envelope, converting
// every result with decode.
func DecodePage[T any](raw []byte, decode func([]byte) (T, error)) (Page[T], error) {
	var w pageWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return Page[T]{}, malformed("page", "", err)
	}
	results := make([]T, 0, len(w.Results))
	for i, item := range w.Results {
		rec, err := decode(item)
		if err != nil {
			return Page[T]{}, fmt.Errorf("results[%d]: %w", i, err)
		}
		results = append(results, rec)
	}
	return Page[T]{
		Count:    int64(w.Count),
		Next:     w.Next,
		Previous: w.Previous,
		Results:  results,
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func withDefault(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}
