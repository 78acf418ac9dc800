package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trust_gateway/internal/models"
)

// Service accumulates per-month routing and savings counters. Updates are
// best-effort: the engine never fails a request over a stats error.
type Service interface {
	AddOutcome(ctx context.Context, decision models.RoutingDecision, assessment models.SensitivityAssessment, cost models.CostRecord) error
	Summary(ctx context.Context, year int, month int) (*SavingsSummary, error)
}

// SavingsSummary is one month of aggregated counters. "Protected" counts
// cover content that stayed on local models only.
type SavingsSummary struct {
	Year                  int     `json:"year"`
	Month                 int     `json:"month"`
	TotalRequests         int64   `json:"total_requests"`
	LocalRequests         int64   `json:"local_requests"`
	CloudRequests         int64   `json:"cloud_requests"`
	PIIInstancesProtected int64   `json:"pii_instances_protected"`
	DocumentsProtected    int64   `json:"documents_protected"`
	ActualCostUSD         float64 `json:"actual_cost_usd"`
	CloudCostUSD          float64 `json:"cloud_cost_usd"`
	CostSavedUSD          float64 `json:"cost_saved_usd"`
}

// NoopService discards outcomes and reports empty summaries.
type NoopService struct{}

func NewNoopService() *NoopService {
	return &NoopService{}
}

func (s *NoopService) AddOutcome(ctx context.Context, decision models.RoutingDecision, assessment models.SensitivityAssessment, cost models.CostRecord) error {
	return nil
}

func (s *NoopService) Summary(ctx context.Context, year int, month int) (*SavingsSummary, error) {
	return &SavingsSummary{Year: year, Month: month}, nil
}

// RedisService keeps the counters in a Redis hash per month.
type RedisService struct {
	redis *redis.Client
}

// NewRedisService creates a stats service backed by the given client.
func NewRedisService(client *redis.Client) *RedisService {
	return &RedisService{redis: client}
}

// addOutcomeScript updates all counters for one request atomically so a
// crash between increments cannot leave the hash internally inconsistent.
var addOutcomeScript = redis.NewScript(`
	local key = KEYS[1]
	local is_local = ARGV[1]
	local pii_count = tonumber(ARGV[2])
	local has_document = ARGV[3]
	local actual = ARGV[4]
	local cloud = ARGV[5]
	local saved = ARGV[6]
	local ttl = tonumber(ARGV[7])

	redis.call('HINCRBY', key, 'total_requests', 1)
	if is_local == '1' then
		redis.call('HINCRBY', key, 'local_requests', 1)
		if pii_count > 0 then
			redis.call('HINCRBY', key, 'pii_instances_protected', pii_count)
		end
		if has_document == '1' then
			redis.call('HINCRBY', key, 'documents_protected', 1)
		end
	else
		redis.call('HINCRBY', key, 'cloud_requests', 1)
	end
	redis.call('HINCRBYFLOAT', key, 'actual_cost_usd', actual)
	redis.call('HINCRBYFLOAT', key, 'cloud_cost_usd', cloud)
	redis.call('HINCRBYFLOAT', key, 'cost_saved_usd', saved)
	redis.call('EXPIRE', key, ttl)
	return redis.call('HGET', key, 'total_requests')
`)

// Counters are kept for 13 months so a full year of history stays queryable.
const countersTTL = 13 * 31 * 24 * 60 * 60

// AddOutcome folds one routed request into the current month's counters.
func (s *RedisService) AddOutcome(ctx context.Context, decision models.RoutingDecision, assessment models.SensitivityAssessment, cost models.CostRecord) error {
	now := time.Now().UTC()
	key := monthlyKey(now.Year(), int(now.Month()))

	isLocal := "0"
	if decision.IsLocal {
		isLocal = "1"
	}
	hasDocument := "0"
	if assessment.DocumentAttached {
		hasDocument = "1"
	}

	_, err := addOutcomeScript.Run(ctx, s.redis, []string{key},
		isLocal, len(assessment.PIICategories), hasDocument,
		cost.ActualCostUSD, cost.CloudCostUSD, cost.CostSavedUSD, countersTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to add savings outcome: %w", err)
	}
	return nil
}

// Summary reads the counters for a specific month. A missing month returns
// zeroes, not an error.
func (s *RedisService) Summary(ctx context.Context, year int, month int) (*SavingsSummary, error) {
	key := monthlyKey(year, month)

	fields, err := s.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get savings summary: %w", err)
	}

	summary := &SavingsSummary{Year: year, Month: month}
	for field, raw := range fields {
		switch field {
		case "total_requests":
			fmt.Sscan(raw, &summary.TotalRequests)
		case "local_requests":
			fmt.Sscan(raw, &summary.LocalRequests)
		case "cloud_requests":
			fmt.Sscan(raw, &summary.CloudRequests)
		case "pii_instances_protected":
			fmt.Sscan(raw, &summary.PIIInstancesProtected)
		case "documents_protected":
			fmt.Sscan(raw, &summary.DocumentsProtected)
		case "actual_cost_usd":
			fmt.Sscan(raw, &summary.ActualCostUSD)
		case "cloud_cost_usd":
			fmt.Sscan(raw, &summary.CloudCostUSD)
		case "cost_saved_usd":
			fmt.Sscan(raw, &summary.CostSavedUSD)
		}
	}
	return summary, nil
}

func monthlyKey(year int, month int) string {
	return fmt.Sprintf("savings:%d:%02d", year, month)
}
