package computing

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/chaoschain/go-evidence-provider/constants"
	"github.com/chaoschain/go-evidence-provider/internal/models"
	"github.com/gomodule/redigo/redis"
)

var ErrReceiptNotFound = errors.New("receipt not found")

type ReceiptLog interface {
	Save(summary models.ReceiptSummary) error
	Get(executionHash string) (*models.ReceiptSummary, error)
	List() ([]models.ReceiptSummary, error)
}

// RedisReceiptLog keeps one hash per execution under RECEIPT:<executionHash>.
type RedisReceiptLog struct {
	pool *redis.Pool
	ttl  int
}

func NewRedisReceiptLog(pool *redis.Pool) *RedisReceiptLog {
	return &RedisReceiptLog{pool: pool, ttl: constants.REDIS_RECEIPT_TTL}
}

func receiptKey(executionHash string) string {
	return constants.REDIS_RECEIPT_PREFIX + strings.ToLower(executionHash)
}

func (r *RedisReceiptLog) Save(summary models.ReceiptSummary) error {
	conn := r.pool.Get()
	defer conn.Close()

	key := receiptKey(summary.ExecutionHash)
	fullArgs := []interface{}{key}
	for field, val := range receiptFields(summary) {
		fullArgs = append(fullArgs, field, val)
	}
	if _, err := conn.Do("HSET", fullArgs...); err != nil {
		return fmt.Errorf("failed save receipt %s, error: %w", key, err)
	}
	if _, err := conn.Do("EXPIRE", key, r.ttl); err != nil {
		return fmt.Errorf("failed set expire time of %s, error: %w", key, err)
	}
	return nil
}

func (r *RedisReceiptLog) Get(executionHash string) (*models.ReceiptSummary, error) {
	conn := r.pool.Get()
	defer conn.Close()
	return retrieveReceipt(conn, receiptKey(executionHash))
}

func (r *RedisReceiptLog) List() ([]models.ReceiptSummary, error) {
	conn := r.pool.Get()
	defer conn.Close()

	prefix := constants.REDIS_RECEIPT_PREFIX + "*"
	keys, err := redis.Strings(conn.Do("KEYS", prefix))
	if err != nil {
		return nil, fmt.Errorf("failed get redis %s prefix, error: %w", prefix, err)
	}
	summaries := make([]models.ReceiptSummary, 0, len(keys))
	for _, key := range keys {
		summary, err := retrieveReceipt(conn, key)
		if errors.Is(err, ErrReceiptNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Timestamp > summaries[j].Timestamp
	})
	return summaries, nil
}

func retrieveReceipt(conn redis.Conn, key string) (*models.ReceiptSummary, error) {
	fields, err := redis.StringMap(conn.Do("HGETALL", key))
	if err != nil {
		return nil, fmt.Errorf("failed get receipt %s, error: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrReceiptNotFound, key)
	}
	return parseReceiptFields(fields)
}

func receiptFields(s models.ReceiptSummary) map[string]string {
	return map[string]string{
		"execution_hash":        s.ExecutionHash,
		"function_name":         s.FunctionName,
		"provider":              string(s.Provider),
		"verification_method":   string(s.Method),
		"verified":              strconv.FormatBool(s.Verified),
		"reputation_bonus":      strconv.FormatBool(s.ReputationBonus),
		"reputation_multiplier": strconv.FormatFloat(s.ReputationMultiplier, 'f', -1, 64),
		"proof":                 s.Proof,
		"output":                s.Output,
		"timestamp":             strconv.FormatInt(s.Timestamp, 10),
	}
}

func parseReceiptFields(fields map[string]string) (*models.ReceiptSummary, error) {
	verified, err := strconv.ParseBool(fields["verified"])
	if err != nil {
		return nil, fmt.Errorf("malformed receipt field verified: %w", err)
	}
	bonus, err := strconv.ParseBool(fields["reputation_bonus"])
	if err != nil {
		return nil, fmt.Errorf("malformed receipt field reputation_bonus: %w", err)
	}
	multiplier, err := strconv.ParseFloat(fields["reputation_multiplier"], 64)
	if err != nil {
		return nil, fmt.Errorf("malformed receipt field reputation_multiplier: %w", err)
	}
	timestamp, err := strconv.ParseInt(fields["timestamp"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed receipt field timestamp: %w", err)
	}
	return &models.ReceiptSummary{
		ExecutionHash:        fields["execution_hash"],
		FunctionName:         fields["function_name"],
		Provider:             models.ComputeProvider(fields["provider"]),
		Method:               models.VerificationMethod(fields["verification_method"]),
		Verified:             verified,
		ReputationBonus:      bonus,
		ReputationMultiplier: multiplier,
		Proof:                fields["proof"],
		Output:               fields["output"],
		Timestamp:            timestamp,
	}, nil
}
