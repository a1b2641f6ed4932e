package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/formcheck/formcheck/pkg/types"
	"github.com/formcheck/formcheck/server/internal/config"
)

const (
	defaultCooldown = 15 * time.Minute
	maxHistoryLen   = 200
	recentWindow    = time.Hour
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	SessionID  string     `json:"session_id"`
	Exercise   string     `json:"exercise"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"`
}

// Engine evaluates alert rules against incoming analysis records and delivers
// webhook notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	rules    []config.AlertRule
	webhooks []config.WebhookConfig

	mu       sync.Mutex
	active   map[string]*Alert    // key: "ruleName:sessionID"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  []*Alert             // recently resolved alerts
	client   *http.Client
	now      func() time.Time
	wg       sync.WaitGroup
}

// New creates an Engine from the server alert configuration.
// An Engine with empty rules is valid; Evaluate becomes a no-op.
// Rules whose condition cannot be parsed are logged and skipped.
func New(cfg config.AlertsConfig) *Engine {
	rules := make([]config.AlertRule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		if err := CheckCondition(r.Condition); err != nil {
			slog.Warn("alerts: skipping rule", "rule", r.Name, "err", err)
			continue
		}
		rules = append(rules, r)
	}
	return &Engine{
		rules:    rules,
		webhooks: cfg.Webhooks,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
}

// CheckCondition reports whether cond is a well-formed rule expression.
func CheckCondition(cond string) error {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return fmt.Errorf("condition %q: want \"field op value\"", cond)
	}
	if !validField(parts[0]) {
		return fmt.Errorf("condition %q: unknown field %q", cond, parts[0])
	}
	if parts[0] == "valid" {
		if parts[1] != "==" && parts[1] != "!=" {
			return fmt.Errorf("condition %q: valid supports only == and !=", cond)
		}
		if _, err := strconv.ParseBool(parts[2]); err != nil {
			return fmt.Errorf("condition %q: value %q is not a bool", cond, parts[2])
		}
		return nil
	}
	switch parts[1] {
	case ">", ">=", "<", "<=", "==", "!=":
	default:
		return fmt.Errorf("condition %q: unknown operator %q", cond, parts[1])
	}
	if _, err := strconv.ParseFloat(parts[2], 64); err != nil {
		return fmt.Errorf("condition %q: value %q is not a number", cond, parts[2])
	}
	return nil
}

// Evaluate tests all configured rules against rec.
// Alerts that fire are stored and webhook delivery is triggered asynchronously.
// Alerts that were firing but whose condition is now false are resolved.
func (e *Engine) Evaluate(rec *types.AnalysisRecord) {
	if len(e.rules) == 0 {
		return
	}

	for _, rule := range e.rules {
		key := rule.Name + ":" + rec.SessionID
		fires, value := evalCondition(rule.Condition, rec)

		var notify *Alert
		e.mu.Lock()
		now := e.now()
		if fires {
			notify = e.fire(key, rule, rec, value, now)
		} else {
			notify = e.resolve(key, now)
		}
		e.mu.Unlock()

		if notify == nil {
			continue
		}
		if notify.State == StateFiring {
			slog.Warn("alert fired",
				"rule", rule.Name,
				"session", rec.SessionID,
				"value", value,
				"severity", notify.Severity,
			)
		} else {
			slog.Info("alert resolved",
				"rule", rule.Name,
				"session", rec.SessionID,
			)
		}
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.deliver(notify)
		}()
	}
}

// fire records a new alert unless key is already firing or cooling down.
// Called with e.mu held; returns a copy to deliver, or nil.
func (e *Engine) fire(key string, rule config.AlertRule, rec *types.AnalysisRecord, value float64, now time.Time) *Alert {
	if _, firing := e.active[key]; firing {
		return nil
	}
	cooldown := rule.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	if last, ok := e.lastFire[key]; ok && now.Sub(last) < cooldown {
		return nil
	}

	sev := rule.Severity
	if sev == "" {
		sev = "warning"
	}
	a := &Alert{
		ID:        uuid.NewString(),
		RuleName:  rule.Name,
		SessionID: rec.SessionID,
		Exercise:  rec.Exercise,
		Severity:  sev,
		Value:     value,
		Message: fmt.Sprintf("[%s] %s fired on %s: %s (value %.2f)",
			sev, rule.Name, rec.SessionID, rule.Condition, value),
		FiredAt: now,
		State:   StateFiring,
	}
	e.active[key] = a
	e.lastFire[key] = now
	cp := *a
	return &cp
}

// resolve closes the alert firing under key, if any.
// Called with e.mu held; returns a copy to deliver, or nil.
func (e *Engine) resolve(key string, now time.Time) *Alert {
	a, ok := e.active[key]
	if !ok {
		return nil
	}
	resolved := now
	a.State = StateResolved
	a.ResolvedAt = &resolved
	delete(e.active, key)

	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}
	cp := *a
	return &cp
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, sorted newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindow)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *Alert) int { return b.FiredAt.Compare(a.FiredAt) })
	return out
}

// Firing returns the number of alerts currently firing.
func (e *Engine) Firing() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// Wait blocks until all in-flight webhook deliveries finish.
func (e *Engine) Wait() {
	e.wg.Wait()
}
