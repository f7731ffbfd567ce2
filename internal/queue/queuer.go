package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/hackhub/submissions-api/internal/queue")

//go:generate mockgen -destination ./mock/mock.go -package mock . Queuer,MessageHandler

// Review requests go out and grader results come back through a Queuer
type Queuer interface {
	// May block while queuing data
	Enqueue(ctx context.Context, message any) error
	// Blocks until one message was handled, `ctx` is done or the queue fails.
	//
	// A message whose handler returns an error wrapping [ErrPoison] is dropped,
	// any other handler error leaves it to reappear after `timeout`.
	Dequeue(ctx context.Context, timeout time.Duration, handler MessageHandler) error
}

// Processes one raw message body
type MessageHandler interface {
	Handle(ctx context.Context, message []byte) error
}

// Marks a message that can never be handled
var ErrPoison = errors.New("poisoned message")

func Poison(err error) error {
	return fmt.Errorf("%w: %w", ErrPoison, err)
}

func IsPoison(err error) bool {
	return errors.Is(err, ErrPoison)
}
