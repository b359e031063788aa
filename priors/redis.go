package priors

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voxelmind/reflexcore/observability"
)

const (
	redisPriorPrefix = "reflexcore:priors:"
	redisAuditKey    = "reflexcore:prior_audit"
)

// adjustScript applies a clamped adjustment atomically and returns
// {before, after} as strings. Defaults, adjustment and bounds arrive as ARGV.
const adjustScript = `
	local before = redis.call("get", KEYS[1])
	if not before then
		before = ARGV[1]
	end
	local after = tonumber(before) + tonumber(ARGV[2])
	if after < tonumber(ARGV[3]) then
		after = tonumber(ARGV[3])
	end
	if after > tonumber(ARGV[4]) then
		after = tonumber(ARGV[4])
	end
	redis.call("set", KEYS[1], tostring(after))
	return {tostring(before), tostring(after)}
`

// RedisStore keeps priors in Redis so they survive process restarts and are
// shared across agent instances. Adjustments are applied by a preloaded Lua
// script so the read-adjust-clamp-write cycle is atomic.
type RedisStore struct {
	client    *redis.Client
	adjustSHA string
}

// NewRedisStore connects, verifies the connection, and preloads the
// adjustment script.
func NewRedisStore(addr string, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	sha, err := client.ScriptLoad(ctx, adjustScript).Result()
	if err != nil {
		return nil, fmt.Errorf("preload prior adjust script: %w", err)
	}
	return &RedisStore{client: client, adjustSHA: sha}, nil
}

func (s *RedisStore) GetPrior(ctx context.Context, ruleID string) (float64, error) {
	val, err := s.client.Get(ctx, redisPriorPrefix+ruleID).Result()
	if err == redis.Nil {
		return DefaultPrior, nil
	}
	if err != nil {
		return 0, err
	}
	prior, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt prior for %s: %w", ruleID, err)
	}
	return prior, nil
}

func (s *RedisStore) ReportExecutionOutcome(ctx context.Context, requestHash string, reports []Report) error {
	now := time.Now()
	for _, report := range reports {
		adjustment := adjustmentFor(report.Success)
		res, err := s.client.EvalSha(ctx, s.adjustSHA,
			[]string{redisPriorPrefix + report.RuleID},
			formatPrior(DefaultPrior), formatPrior(adjustment),
			formatPrior(MinPrior), formatPrior(MaxPrior),
		).Result()
		if err != nil {
			return fmt.Errorf("adjust prior %s: %w", report.RuleID, err)
		}

		pair, ok := res.([]interface{})
		if !ok || len(pair) != 2 {
			return fmt.Errorf("unexpected adjust script result for %s", report.RuleID)
		}
		before, _ := strconv.ParseFloat(fmt.Sprint(pair[0]), 64)
		after, _ := strconv.ParseFloat(fmt.Sprint(pair[1]), 64)

		entry := AuditEntry{
			RequestHash: requestHash,
			RuleID:      report.RuleID,
			Adjustment:  adjustment,
			PriorBefore: before,
			PriorAfter:  after,
			At:          now,
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal audit entry: %w", err)
		}
		if err := s.client.RPush(ctx, redisAuditKey, data).Err(); err != nil {
			return fmt.Errorf("append audit entry: %w", err)
		}
		observability.PriorAdjustments.WithLabelValues(direction(report.Success)).Inc()
	}
	return nil
}

// AuditLog returns up to limit most recent audit entries.
func (s *RedisStore) AuditLog(ctx context.Context, limit int64) ([]AuditEntry, error) {
	raw, err := s.client.LRange(ctx, redisAuditKey, -limit, -1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]AuditEntry, 0, len(raw))
	for _, item := range raw {
		var entry AuditEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func formatPrior(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
