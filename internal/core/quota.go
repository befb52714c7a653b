package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"tutorgate-backend-go/internal/cache"
	"tutorgate-backend-go/internal/models"
)

// UsageTTL is how long a day's counter lives after its first increment.
const UsageTTL = 24 * time.Hour

const dayLayout = "2006-01-02"

func usageKey(userID, day string) string { return "usage:" + userID + ":" + day }

// Bound is a quota figure that may be unbounded. It serialises as a number
// or as the string "unbounded".
type Bound struct {
	Value     int64
	Unbounded bool
}

// Unbounded returns a Bound with no limit.
func Unbounded() Bound { return Bound{Unbounded: true} }

// Bounded returns a finite Bound.
func Bounded(v int64) Bound { return Bound{Value: v} }

func (b Bound) String() string {
	if b.Unbounded {
		return "unbounded"
	}
	return strconv.FormatInt(b.Value, 10)
}

func (b Bound) MarshalJSON() ([]byte, error) {
	if b.Unbounded {
		return []byte(`"unbounded"`), nil
	}
	return []byte(strconv.FormatInt(b.Value, 10)), nil
}

func (b *Bound) UnmarshalJSON(data []byte) error {
	if string(data) == `"unbounded"` {
		*b = Unbounded()
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("quota bound: %w", err)
	}
	*b = Bounded(v)
	return nil
}

// QuotaDecision is the outcome of a charge or peek.
type QuotaDecision struct {
	Allowed   bool   `json:"allowed"`
	Tier      string `json:"tier"`
	Day       string `json:"day"`
	Usage     int64  `json:"usage"`
	Limit     Bound  `json:"limit"`
	Remaining Bound  `json:"remaining"`
}

type quotaAccountant struct {
	cache        cache.Cache
	location     *time.Location
	defaultQuota int
	now          func() time.Time
	logger       *zap.Logger
}

// QuotaOption customises a quota accountant.
type QuotaOption func(*quotaAccountant)

// WithQuotaClock overrides the clock used by Today.
func WithQuotaClock(now func() time.Time) QuotaOption {
	return func(q *quotaAccountant) { q.now = now }
}

// NewQuotaAccountant counts usage in c. Days roll over at midnight in loc.
func NewQuotaAccountant(c cache.Cache, loc *time.Location, defaultQuota int, logger *zap.Logger, opts ...QuotaOption) QuotaAccountant {
	if loc == nil {
		loc = time.UTC
	}
	if defaultQuota <= 0 {
		defaultQuota = DefaultDailyQuota
	}
	q := &quotaAccountant{cache: c, location: loc, defaultQuota: defaultQuota, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *quotaAccountant) Day(t time.Time) string { return t.In(q.location).Format(dayLayout) }

func (q *quotaAccountant) Today() string { return q.Day(q.now()) }

func (q *quotaAccountant) limit(p *models.UserProfile) int64 {
	if p.DailyQuota != nil {
		return int64(*p.DailyQuota)
	}
	return int64(q.defaultQuota)
}

// Charge consumes one unit for the day. A rejected attempt stays counted.
func (q *quotaAccountant) Charge(ctx context.Context, userID string, p *models.UserProfile, day string) (QuotaDecision, error) {
	if p.Unbounded() {
		return unboundedDecision(p, day), nil
	}
	usage, err := q.cache.IncrWithExpiry(ctx, usageKey(userID, day), UsageTTL)
	if err != nil {
		q.logger.Error("usage increment failed", zap.String("userId", userID), zap.String("day", day), zap.Error(err))
		return QuotaDecision{}, fmt.Errorf("%w: usage counter unavailable", ErrSystem)
	}
	d := q.decision(p, day, usage)
	if !d.Allowed {
		q.logger.Info("daily quota exceeded", zap.String("userId", userID), zap.Int64("usage", usage), zap.Int64("limit", d.Limit.Value))
	}
	return d, nil
}

// Peek reports usage without touching the counter. A missing key reads as zero.
func (q *quotaAccountant) Peek(ctx context.Context, userID string, p *models.UserProfile, day string) (QuotaDecision, error) {
	if p.Unbounded() {
		return unboundedDecision(p, day), nil
	}
	raw, err := q.cache.Get(ctx, usageKey(userID, day))
	if err != nil {
		q.logger.Error("usage read failed", zap.String("userId", userID), zap.String("day", day), zap.Error(err))
		return QuotaDecision{}, fmt.Errorf("%w: usage counter unavailable", ErrSystem)
	}
	var usage int64
	if raw != "" {
		if usage, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return QuotaDecision{}, fmt.Errorf("%w: corrupt usage counter", ErrSystem)
		}
	}
	d := q.decision(p, day, usage)
	// Peek answers "may I submit another turn", not "was this one allowed".
	d.Allowed = d.Remaining.Value > 0
	return d, nil
}

func (q *quotaAccountant) decision(p *models.UserProfile, day string, usage int64) QuotaDecision {
	limit := q.limit(p)
	remaining := limit - usage
	if remaining < 0 {
		remaining = 0
	}
	return QuotaDecision{
		Allowed:   usage <= limit,
		Tier:      p.Tier,
		Day:       day,
		Usage:     usage,
		Limit:     Bounded(limit),
		Remaining: Bounded(remaining),
	}
}

func unboundedDecision(p *models.UserProfile, day string) QuotaDecision {
	return QuotaDecision{Allowed: true, Tier: p.Tier, Day: day, Limit: Unbounded(), Remaining: Unbounded()}
}
