package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pairline/pairline-backend/pkg/lock"
)

// PairingEvent 페어링 이벤트
type PairingEvent struct {
	Type          string    `json:"type"` // "participant_enqueued", "pairing_requested"
	ParticipantID string    `json:"participant_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

const (
	EventParticipantEnqueued = "participant_enqueued"
	EventPairingRequested    = "pairing_requested"
)

// PairingCoordinator Redis Pub/Sub 기반 분산 페어링 조정자.
// 여러 인스턴스가 떠 있어도 이벤트당 한 인스턴스만 페어링을 수행한다.
type PairingCoordinator struct {
	client      *redis.Client
	lockManager *lock.RedisManager
	logger      *zap.Logger
	instanceID  string

	eventChannel    string
	stopChan        chan struct{}
	subscriptionCtx context.Context
	cancelSub       context.CancelFunc
}

// NewPairingCoordinator 분산 페어링 조정자 생성
func NewPairingCoordinator(client *redis.Client, logger *zap.Logger) *PairingCoordinator {
	return &PairingCoordinator{
		client:       client,
		lockManager:  lock.NewRedisManager(client),
		logger:       logger,
		instanceID:   uuid.New().String(),
		eventChannel: "pairing:events",
		stopChan:     make(chan struct{}),
	}
}

// Start 이벤트 수신 시작
func (c *PairingCoordinator) Start(ctx context.Context, handler func(event PairingEvent) error) error {
	c.subscriptionCtx, c.cancelSub = context.WithCancel(ctx)

	pubsub := c.client.Subscribe(c.subscriptionCtx, c.eventChannel)
	defer pubsub.Close()

	// 구독 확인
	if _, err := pubsub.Receive(c.subscriptionCtx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	c.logger.Info("Pairing coordinator started",
		zap.String("instance_id", c.instanceID),
		zap.String("channel", c.eventChannel))

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				continue
			}

			var event PairingEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				c.logger.Error("Failed to unmarshal event", zap.Error(err))
				continue
			}

			c.logger.Debug("Received pairing event",
				zap.String("type", event.Type),
				zap.String("participant", event.ParticipantID))

			if err := c.handleEventWithLock(event, handler); err != nil {
				c.logger.Error("Failed to handle event", zap.Error(err))
			}

		case <-c.stopChan:
			c.logger.Info("Pairing coordinator stopped")
			return nil

		case <-c.subscriptionCtx.Done():
			return c.subscriptionCtx.Err()
		}
	}
}

// Stop 이벤트 수신 중지
func (c *PairingCoordinator) Stop() {
	close(c.stopChan)
	if c.cancelSub != nil {
		c.cancelSub()
	}
}

// PublishEvent 페어링 이벤트 발행
func (c *PairingCoordinator) PublishEvent(ctx context.Context, event PairingEvent) error {
	event.Timestamp = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := c.client.Publish(ctx, c.eventChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// handleEventWithLock 분산 락을 사용한 이벤트 처리
// (동시에 하나의 인스턴스만 해당 이벤트를 처리)
func (c *PairingCoordinator) handleEventWithLock(event PairingEvent, handler func(event PairingEvent) error) error {
	lockKey := "pairing:lock:sweep"
	if event.ParticipantID != "" {
		lockKey = "pairing:lock:event:" + event.ParticipantID
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	held, err := c.lockManager.TryAcquireWithRetry(
		ctx,
		lockKey,
		5*time.Second,
		3,
		500*time.Millisecond,
	)
	if err == lock.ErrNotAcquired {
		// 다른 인스턴스가 이미 처리 중
		c.logger.Debug("Event already handled by another instance",
			zap.String("participant", event.ParticipantID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	defer func() {
		if err := held.Release(context.Background()); err != nil {
			c.logger.Error("Failed to release lock", zap.Error(err))
		}
	}()

	return handler(event)
}

// NotifyParticipantEnqueued 참가자가 대기열에 추가됨을 알림
func (c *PairingCoordinator) NotifyParticipantEnqueued(ctx context.Context, participantID string) error {
	return c.PublishEvent(ctx, PairingEvent{
		Type:          EventParticipantEnqueued,
		ParticipantID: participantID,
	})
}

// NotifyPairingRequested 페어링 스윕 요청 알림 (주기적 트리거용)
func (c *PairingCoordinator) NotifyPairingRequested(ctx context.Context) error {
	return c.PublishEvent(ctx, PairingEvent{Type: EventPairingRequested})
}
