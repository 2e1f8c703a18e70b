package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelReviewLifecycle = "review_lifecycle"
)

// 生命周期事件类型
const (
	TypeSessionCreated   = "session_created"
	TypeAttemptStarted   = "attempt_started"
	TypeSessionCompleted = "session_completed"
)

// LifecycleMessage 评审生命周期消息
type LifecycleMessage struct {
	Type           string    `json:"type"`
	SessionID      string    `json:"session_id"`
	ReviewerID     int64     `json:"reviewer_id"`
	ImageID        string    `json:"image_id"`
	ViewingAttempt int       `json:"viewing_attempt,omitempty"`
	Label          string    `json:"label,omitempty"`
	At             time.Time `json:"at"`
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishLifecycle 发布生命周期消息
func (p *Publisher) PublishLifecycle(ctx context.Context, msg *LifecycleMessage) error {
	if msg.At.IsZero() {
		msg.At = time.Now().UTC()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal lifecycle message: %w", err)
	}

	return p.client.Publish(ctx, ChannelReviewLifecycle, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅生命周期消息，ctx 取消时返回
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*LifecycleMessage)) error {
	pubsub := s.client.Subscribe(ctx, ChannelReviewLifecycle)
	defer pubsub.Close()

	// 等待订阅确认，避免订阅建立前的消息丢失
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var lifecycleMsg LifecycleMessage
			if err := json.Unmarshal([]byte(msg.Payload), &lifecycleMsg); err != nil {
				continue // 忽略解析错误
			}

			handler(&lifecycleMsg)
		}
	}
}
