package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Publisher is the fire-and-forget notification sink for real-time
// observers. Implementations must never block reconciliation: failures
// are logged and dropped.
type Publisher interface {
	Publish(ctx context.Context, workspaceID, topic string, payload any)
}

// Topics emitted by the reconciler.
const (
	TopicCallUpdated       = "call.updated"
	TopicCampaignStats     = "campaign.stats"
	TopicCampaignCompleted = "campaign.completed"
	TopicPoolExhausted     = "pool.exhausted"
)

// RedisPublisher fans events out over Redis pub/sub, one channel per
// workspace so UI subscriptions stay tenant-scoped.
type RedisPublisher struct {
	rdb *redis.Client
	log *slog.Logger
}

func NewRedisPublisher(rdb *redis.Client, log *slog.Logger) *RedisPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &RedisPublisher{rdb: rdb, log: log}
}

func (p *RedisPublisher) Publish(ctx context.Context, workspaceID, topic string, payload any) {
	if p.rdb == nil || workspaceID == "" || topic == "" {
		return
	}
	body, err := json.Marshal(map[string]any{"topic": topic, "payload": payload})
	if err != nil {
		p.log.Warn("notify marshal failed", "topic", topic, "err", err)
		return
	}
	channel := fmt.Sprintf("events:%s", workspaceID)
	if err := p.rdb.Publish(ctx, channel, body).Err(); err != nil {
		// Best-effort only. Reconciliation already committed.
		p.log.Warn("notify publish failed", "channel", channel, "topic", topic, "err", err)
	}
}

// Recorded is one captured notification, for tests.
type Recorded struct {
	WorkspaceID string
	Topic       string
	Payload     any
}

// MemoryPublisher records notifications in memory.
type MemoryPublisher struct {
	mu     sync.Mutex
	Events []Recorded
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(ctx context.Context, workspaceID, topic string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, Recorded{WorkspaceID: workspaceID, Topic: topic, Payload: payload})
}

// ByTopic returns captured events for one topic.
func (p *MemoryPublisher) ByTopic(topic string) []Recorded {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Recorded
	for _, e := range p.Events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}
