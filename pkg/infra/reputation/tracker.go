package reputation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/vigilguard/vigil/pkg/common"
	"github.com/vigilguard/vigil/pkg/infra/cache"
	"github.com/vigilguard/vigil/pkg/types"
)

const (
	DefaultTTL = 24 * time.Hour

	reputationSeenKey      = "rep:%s:seen"
	reputationMaliciousKey = "rep:%s:malicious"
	reputationBlockedKey   = "rep:%s:blocked"
)

// Tracker persists client reputation counters in redis so every replica
// scores the same client the same way.
type Tracker interface {
	MakeFingerprint(req *types.RequestContext) Fingerprint
	RecordRequest(ctx context.Context, fp Fingerprint, ttl time.Duration) error
	RecordMalicious(ctx context.Context, fp Fingerprint, ttl time.Duration) error
	Score(ctx context.Context, fp Fingerprint) (float64, error)
	Block(ctx context.Context, fp Fingerprint, duration time.Duration) error
	IsBlocked(ctx context.Context, fp Fingerprint) (bool, error)
}

type tracker struct {
	redis *cache.Cache

	// scores memoizes computed scores per process; recording new malice or
	// a block invalidates the entry so the next lookup reflects it.
	scores *cache.TTLMap
}

func NewTracker(redis *cache.Cache) Tracker {
	return &tracker{
		redis:  redis,
		scores: redis.CreateTTLMap(common.ReputationTTLName, common.ReputationCacheTTL),
	}
}

func (t *tracker) MakeFingerprint(req *types.RequestContext) Fingerprint {
	return Fingerprint{
		TenantID:  strings.ToLower(strings.TrimSpace(req.TenantID)),
		IP:        strings.TrimSpace(req.ClientIP),
		UserAgent: strings.ToLower(strings.TrimSpace(req.UserAgent())),
	}
}

func (t *tracker) RecordRequest(ctx context.Context, fp Fingerprint, ttl time.Duration) error {
	id := fp.ID()
	seenKey := fmt.Sprintf(reputationSeenKey, id)

	pipe := t.redis.Client().TxPipeline()
	pipe.Incr(ctx, seenKey)
	pipe.Expire(ctx, seenKey, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (t *tracker) RecordMalicious(ctx context.Context, fp Fingerprint, ttl time.Duration) error {
	id := fp.ID()
	badKey := fmt.Sprintf(reputationMaliciousKey, id)

	pipe := t.redis.Client().TxPipeline()
	pipe.Incr(ctx, badKey)
	pipe.Expire(ctx, badKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	t.scores.Delete(id)
	return nil
}

// Score maps the counters to [0,100]. A standing block is conclusive, the
// malicious/seen ratio carries most of the rest, and a small volume term
// separates the serial offender from the one-off.
func (t *tracker) Score(ctx context.Context, fp Fingerprint) (float64, error) {
	id := fp.ID()
	if cached, ok := t.scores.Get(id); ok {
		if score, ok := cached.(float64); ok {
			return score, nil
		}
	}

	score, err := t.computeScore(ctx, fp, id)
	if err != nil {
		return 0, err
	}
	t.scores.Set(id, score)
	return score, nil
}

func (t *tracker) computeScore(ctx context.Context, fp Fingerprint, id string) (float64, error) {
	blocked, err := t.IsBlocked(ctx, fp)
	if err != nil {
		return 0, err
	}
	if blocked {
		return 100, nil
	}
	pipe := t.redis.Client().Pipeline()
	badCmd := pipe.Get(ctx, fmt.Sprintf(reputationMaliciousKey, id))
	seenCmd := pipe.Get(ctx, fmt.Sprintf(reputationSeenKey, id))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}

	bad, err := badCmd.Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	seen, err := seenCmd.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	if seen < bad {
		seen = bad
	}
	if seen == 0 {
		return 0, nil
	}

	ratio := float64(bad) / float64(seen)
	score := ratio*80 + math.Min(float64(bad)*2, 20)
	return math.Min(score, 100), nil
}

func (t *tracker) Block(ctx context.Context, fp Fingerprint, duration time.Duration) error {
	id := fp.ID()
	if err := t.redis.Client().Set(ctx, fmt.Sprintf(reputationBlockedKey, id), "1", duration).Err(); err != nil {
		return err
	}
	t.scores.Delete(id)
	return nil
}

func (t *tracker) IsBlocked(ctx context.Context, fp Fingerprint) (bool, error) {
	exists, err := t.redis.Client().Exists(ctx, fmt.Sprintf(reputationBlockedKey, fp.ID())).Result()
	if err != nil {
		return false, err
	}
	return exists == 1, nil
}
