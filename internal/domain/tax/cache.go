package tax

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const activeRulesKey = "tax:rules:active"

// CachedSource keeps the active rule list in redis for a short TTL.
// Only rates are cached; a stale rate for up to ttl is acceptable.
type CachedSource struct {
	next    RuleSource
	rdb     *redis.Client
	ttl     time.Duration
	loggerf func(format string, args ...interface{})
}

func NewCachedSource(next RuleSource, rdb *redis.Client, ttl time.Duration, loggerf func(format string, args ...interface{})) *CachedSource {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &CachedSource{next: next, rdb: rdb, ttl: ttl, loggerf: loggerf}
}

func (s *CachedSource) ActiveRules(ctx context.Context) ([]Rule, error) {
	if s.rdb == nil || s.ttl <= 0 {
		return s.next.ActiveRules(ctx)
	}

	data, err := s.rdb.Get(ctx, activeRulesKey).Bytes()
	switch {
	case err == nil:
		var rules []Rule
		if jerr := json.Unmarshal(data, &rules); jerr == nil {
			return rules, nil
		}
		s.loggerf("level=warn msg=\"corrupt tax rule cache entry\" key=%s", activeRulesKey)
	case !errors.Is(err, redis.Nil):
		s.loggerf("level=warn msg=\"tax rule cache read failed\" err=%v", err)
	}

	rules, err := s.next.ActiveRules(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(rules); err == nil {
		if err := s.rdb.Set(ctx, activeRulesKey, data, s.ttl).Err(); err != nil {
			s.loggerf("level=warn msg=\"tax rule cache write failed\" err=%v", err)
		}
	}
	return rules, nil
}

// Invalidate drops the cached list after an admin edit.
func (s *CachedSource) Invalidate(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, activeRulesKey).Err(); err != nil {
		s.loggerf("level=warn msg=\"tax rule cache invalidate failed\" err=%v", err)
	}
}
