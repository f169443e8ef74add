package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samvad-hq/crm-bff/internal/config"
	"github.com/samvad-hq/crm-bff/internal/session"
	"github.com/samvad-hq/crm-bff/pkg/backendapi"
	"github.com/samvad-hq/crm-bff/pkg/dto"
)

type commandEnv struct {
	cfg   *config.Config
	api   backendapi.API
	store session.Store
	opts  options
	out   output
	key   string
}

type command func(ctx context.Context, env *commandEnv) error

var commands = map[string]command{
	"login":     cmdLogin,
	"refresh":   cmdRefresh,
	"logout":    cmdLogout,
	"clients":   cmdClients,
	"deals":     cmdDeals,
	"tasks":     cmdTasks,
	"activity":  cmdActivity,
	"stats":     cmdStats,
	"dashboard": cmdDashboard,
}

var errNoSession = errors.New("no stored session; run bffctl login first")

func cmdLogin(ctx context.Context, env *commandEnv) error {
	if env.cfg.Email == "" || env.cfg.Password == "" {
		return fmt.Errorf("login requires --email and --password: %w", errUsage)
	}
	tokens, err := env.api.Login(ctx, env.cfg.Email, env.cfg.Password)
	if err != nil {
		return err
	}
	if err := env.store.Save(env.key, tokens); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return env.out.write(sessionView(tokens))
}

func cmdRefresh(ctx context.Context, env *commandEnv) error {
	current, err := env.session()
	if err != nil {
		return err
	}
	tokens, err := env.api.Refresh(ctx, current.Refresh)
	if err != nil {
		return err
	}
	if tokens.UserID == "" {
		tokens.UserID, tokens.FullName, tokens.Role = current.UserID, current.FullName, current.Role
	}
	if err := env.store.Save(env.key, tokens); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return env.out.write(sessionView(tokens))
}

func cmdLogout(ctx context.Context, env *commandEnv) error {
	current, err := env.session()
	if err != nil {
		return err
	}
	if err := env.api.Logout(ctx, current.Refresh); err != nil {
		return err
	}
	if err := env.store.Delete(env.key); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return env.out.write(map[string]any{"logged_out": true})
}

func cmdClients(ctx context.Context, env *commandEnv) error {
	return listCommand(ctx, env, env.api.ListClients)
}

func cmdDeals(ctx context.Context, env *commandEnv) error {
	return listCommand(ctx, env, env.api.ListDeals)
}

func cmdTasks(ctx context.Context, env *commandEnv) error {
	return listCommand(ctx, env, env.api.ListTasks)
}

func cmdActivity(ctx context.Context, env *commandEnv) error {
	return listCommand(ctx, env, env.api.ListActivity)
}

func cmdStats(ctx context.Context, env *commandEnv) error {
	token, err := env.accessToken()
	if err != nil {
		return err
	}
	stats, err := env.api.GetStats(ctx, token)
	if err != nil {
		return err
	}
	return env.out.write(stats.Fields())
}

func cmdDashboard(ctx context.Context, env *commandEnv) error {
	token, err := env.accessToken()
	if err != nil {
		return err
	}
	dash, err := env.api.BuildDashboard(ctx, token, env.cfg.Dashboard())
	if err != nil {
		return err
	}
	return env.out.write(dash.Fields())
}

type record interface {
	Fields() map[string]any
}

func listCommand[T record](ctx context.Context, env *commandEnv, fetch func(context.Context, string, backendapi.Query) (dto.Page[T], error)) error {
	token, err := env.accessToken()
	if err != nil {
		return err
	}
	q, err := env.opts.query()
	if err != nil {
		return err
	}
	page, err := fetch(ctx, token, q)
	if err != nil {
		return err
	}
	return env.out.write(pageView(page))
}

func (env *commandEnv) session() (dto.AuthTokens, error) {
	tokens, found, err := env.store.Load(env.key)
	if err != nil {
		return dto.AuthTokens{}, fmt.Errorf("load session: %w", err)
	}
	if !found {
		return dto.AuthTokens{}, errNoSession
	}
	return tokens, nil
}

func (env *commandEnv) accessToken() (string, error) {
	if token := strings.TrimSpace(env.opts.token); token != "" {
		return token, nil
	}
	tokens, err := env.session()
	if err != nil {
		return "", err
	}
	return tokens.Access, nil
}

// query assembles list parameters. Keys and values are passed through as given.
func (o options) query() (backendapi.Query, error) {
	q := backendapi.Query{}
	for _, p := range o.params {
		key, value, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid --param %q (want key=value): %w", p, errUsage)
		}
		q[strings.TrimSpace(key)] = value
	}
	if o.limit > 0 {
		q["limit"] = strconv.Itoa(o.limit)
	}
	if o.search != "" {
		q["search"] = o.search
	}
	if o.status != "" {
		q["status"] = o.status
	}
	return q, nil
}

// sessionView hides the raw tokens from terminal output.
func sessionView(t dto.AuthTokens) map[string]any {
	fields := t.Fields()
	fields["access"] = mask(t.Access)
	fields["refresh"] = mask(t.Refresh)
	if exp, ok := session.AccessExpiry(t.Access); ok {
		fields["expires_at"] = exp.UTC().Format(time.RFC3339)
	}
	return fields
}

func mask(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + "..." + token[len(token)-4:]
}

func pageView[T record](p dto.Page[T]) map[string]any {
	results := make([]map[string]any, 0, len(p.Results))
	for _, r := range p.Results {
		results = append(results, r.Fields())
	}
	view := map[string]any{
		"count":    p.Count,
		"next":     nil,
		"previous": nil,
		"results":  results,
	}
	if p.Next != nil {
		view["next"] = *p.Next
	}
	if p.Previous != nil {
		view["previous"] = *p.Previous
	}
	return view
}
