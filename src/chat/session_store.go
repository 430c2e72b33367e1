package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/maecare/airouter/src/config"
	"github.com/maecare/airouter/src/models"
)

const (
	sessionKeyPrefix = "conversation:"
	defaultTTL       = 24 * time.Hour // Conversations expire after 24 hours of inactivity
	maxContextWindow = 20             // Keep last 20 messages for context
)

// ErrSessionNotFound covers both missing and foreign conversations.
var ErrSessionNotFound = errors.New("conversation not found")

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &SessionStore{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Create starts an empty conversation owned by userID.
func (s *SessionStore) Create(ctx context.Context, userID string) (*models.Conversation, error) {
	now := s.now()
	conv := &models.Conversation{
		ID:              "conv_" + uuid.New().String(),
		UserID:          userID,
		Messages:        []models.ChatMessage{},
		CreatedAt:       now,
		LastInteraction: now,
	}

	if err := s.save(ctx, conv); err != nil {
		return nil, err
	}

	return conv, nil
}

// Get loads a conversation. A conversation owned by another user is
// reported as not found.
func (s *SessionStore) Get(ctx context.Context, userID, id string) (*models.Conversation, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	var conv models.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	if conv.UserID != userID {
		return nil, ErrSessionNotFound
	}

	return &conv, nil
}

// GetOrCreate returns the named conversation, or a new one when id is empty.
func (s *SessionStore) GetOrCreate(ctx context.Context, userID, id string) (*models.Conversation, error) {
	if id == "" {
		return s.Create(ctx, userID)
	}
	return s.Get(ctx, userID, id)
}

// AppendExchange records a user message and the assistant reply.
func (s *SessionStore) AppendExchange(ctx context.Context, conv *models.Conversation, userMessage, reply string) error {
	now := s.now()
	conv.Messages = append(conv.Messages,
		models.ChatMessage{Role: "user", Content: userMessage, Timestamp: now},
		models.ChatMessage{Role: "assistant", Content: reply, Timestamp: now},
	)
	conv.MessageCount += 2
	conv.LastInteraction = now

	// Trim old messages if exceeding context window
	if len(conv.Messages) > maxContextWindow {
		conv.Messages = conv.Messages[len(conv.Messages)-maxContextWindow:]
	}

	return s.save(ctx, conv)
}

func (s *SessionStore) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}

	if err := s.client.Del(ctx, sessionKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	return nil
}

func (s *SessionStore) save(ctx context.Context, conv *models.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	if err := s.client.Set(ctx, sessionKeyPrefix+conv.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}

	return nil
}
