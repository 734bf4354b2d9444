package services

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const invalidationChannel = "cache:invalidate"

// InvalidationMessage tells sibling instances which cache entries to drop.
type InvalidationMessage struct {
	Prefixes   []string `json:"prefixes,omitempty"`
	Keys       []string `json:"keys,omitempty"`
	InstanceID string   `json:"instance_id"`
}

// PubSubService propagates cache invalidations across instances over Redis
// pub/sub. Messages from the own instance are skipped; the write cascade
// already invalidated locally before broadcasting.
type PubSubService struct {
	redis      *RedisService
	cache      *TTLCache
	pubsub     *redis.PubSub
	instanceID string
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewPubSubService creates the invalidation fan-out over the given cache.
// An empty instanceID gets a generated one.
func NewPubSubService(redisService *RedisService, cache *TTLCache, instanceID string) *PubSubService {
	if instanceID == "" {
		instanceID = uuid.NewString()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &PubSubService{
		redis:      redisService,
		cache:      cache,
		instanceID: instanceID,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins listening for invalidation messages
func (s *PubSubService) Start() error {
	s.pubsub = s.redis.PSubscribe(s.ctx, invalidationChannel)

	// Wait for subscription confirmation
	if _, err := s.pubsub.Receive(s.ctx); err != nil {
		return err
	}

	go s.processMessages()

	log.Printf("✅ [PUBSUB] Listening for cache invalidations (instance: %s)", s.instanceID)
	return nil
}

// processMessages handles incoming pub/sub messages
func (s *PubSubService) processMessages() {
	ch := s.pubsub.Channel()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.handleMessage(msg)
		}
	}
}

// handleMessage applies one invalidation to the local cache
func (s *PubSubService) handleMessage(msg *redis.Message) {
	var message InvalidationMessage
	if err := json.Unmarshal([]byte(msg.Payload), &message); err != nil {
		log.Printf("⚠️ [PUBSUB] Failed to unmarshal invalidation: %v", err)
		return
	}

	// Skip messages from this instance (avoid loops)
	if message.InstanceID == s.instanceID {
		return
	}

	removed := 0
	for _, prefix := range message.Prefixes {
		removed += s.cache.DeletePrefix(prefix)
	}
	for _, key := range message.Keys {
		s.cache.Delete(key)
	}
	log.Printf("🔄 [PUBSUB] Applied invalidation from %s (%d prefixed entries, %d keys)",
		message.InstanceID, removed, len(message.Keys))
}

// PublishInvalidation broadcasts an invalidation to sibling instances.
// Best-effort: a failed broadcast only costs them one TTL window of
// staleness, so it is logged and swallowed.
func (s *PubSubService) PublishInvalidation(ctx context.Context, prefixes, keys []string) {
	message := InvalidationMessage{
		Prefixes:   prefixes,
		Keys:       keys,
		InstanceID: s.instanceID,
	}

	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("⚠️ [PUBSUB] Failed to marshal invalidation: %v", err)
		return
	}
	if err := s.redis.Publish(ctx, invalidationChannel, data); err != nil {
		log.Printf("⚠️ [PUBSUB] Failed to broadcast invalidation: %v", err)
	}
}

// Stop stops the pub/sub listener
func (s *PubSubService) Stop() error {
	s.cancel()
	if s.pubsub != nil {
		return s.pubsub.Close()
	}
	return nil
}
