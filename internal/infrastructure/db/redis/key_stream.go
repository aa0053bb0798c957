package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/advcontrato/account-service/internal/core/domain"
)

const (
	// DefaultKeyStream is the stream a mailer consumes to deliver activation keys.
	DefaultKeyStream = "account:keys"
	// streamMaxLen caps the stream; trimming is approximate.
	streamMaxLen = 100_000
)

// KeyStreamPublisher appends issued activation keys to a Redis stream.
type KeyStreamPublisher struct {
	client redis.Cmdable
	stream string
}

// NewKeyStreamPublisher creates a publisher writing to stream, or to
// DefaultKeyStream when stream is empty.
func NewKeyStreamPublisher(client redis.Cmdable, stream string) *KeyStreamPublisher {
	if stream == "" {
		stream = DefaultKeyStream
	}
	return &KeyStreamPublisher{client: client, stream: stream}
}

// Publish appends one entry per issued key. Entry fields are flat strings so
// consumers in any language can read them without decoding.
func (p *KeyStreamPublisher) Publish(ctx context.Context, event domain.KeyIssued) error {
	args := &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: keyIssuedValues(event),
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("publish key issued: %w", err)
	}
	return nil
}

func keyIssuedValues(event domain.KeyIssued) map[string]any {
	values := map[string]any{
		"type":       "account.key_issued",
		"account_id": event.AccountID,
		"email":      event.Email,
		"key":        event.Key,
		"issued_at":  event.IssuedAt.UTC().Format(time.RFC3339),
	}
	if !event.ExpiresAt.IsZero() {
		values["expires_at"] = event.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return values
}
