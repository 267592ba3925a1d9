// Package queue хранит в Redis очередь повторов расчётов и коды привязки Telegram.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	SettlementRetryKey = "settlement:retry"
	linkCodePrefix     = "telegram:link:"
)

// Options параметры подключения к Redis
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient создаёт клиент и проверяет соединение
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// RetryQueue список Redis: LPUSH на запись, BRPOP на чтение
type RetryQueue struct {
	client *redis.Client
	key    string
}

func NewRetryQueue(client *redis.Client) *RetryQueue {
	return &RetryQueue{client: client, key: SettlementRetryKey}
}

// Enqueue добавляет задание в очередь
func (q *RetryQueue) Enqueue(ctx context.Context, job model.SettlementJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal settlement job: %w", err)
	}

	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("enqueue settlement job: %w", err)
	}

	return nil
}

// Dequeue ждёт задание не дольше timeout. Возвращает nil, nil, если очередь пуста.
func (q *RetryQueue) Dequeue(ctx context.Context, timeout time.Duration) (*model.SettlementJob, error) {
	result, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue settlement job: %w", err)
	}

	// BRPOP возвращает [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of %d elements", len(result))
	}

	return decodeJob(result[1])
}

// Len количество заданий в очереди
func (q *RetryQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("settlement queue length: %w", err)
	}
	return n, nil
}

func decodeJob(raw string) (*model.SettlementJob, error) {
	var job model.SettlementJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("decode settlement job: %w", err)
	}
	if job.IntentRef == "" || job.Kind == "" {
		return nil, fmt.Errorf("settlement job %q has no intent or kind", job.ID)
	}
	return &job, nil
}

// LinkCodes одноразовые коды привязки Telegram с TTL
type LinkCodes struct {
	client *redis.Client
}

func NewLinkCodes(client *redis.Client) *LinkCodes {
	return &LinkCodes{client: client}
}

// Save сохраняет код; существующий код не перезаписывается
func (l *LinkCodes) Save(ctx context.Context, code string, userID int64, ttl time.Duration) error {
	ok, err := l.client.SetNX(ctx, linkCodePrefix+code, userID, ttl).Result()
	if err != nil {
		return fmt.Errorf("save link code: %w", err)
	}
	if !ok {
		return fmt.Errorf("link code collision")
	}
	return nil
}

// Consume атомарно читает и удаляет код
func (l *LinkCodes) Consume(ctx context.Context, code string) (int64, bool, error) {
	value, err := l.client.GetDel(ctx, linkCodePrefix+code).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("consume link code: %w", err)
	}

	userID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse link code owner: %w", err)
	}

	return userID, true, nil
}
