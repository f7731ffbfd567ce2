package taskrunner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackhub/submissions-api/internal/logger"
)

const name = "github.com/hackhub/submissions-api/cmd/server/internal/taskrunner"

var tracer = otel.Tracer(name)

var ErrShutdownTimeout = errors.New("background tasks did not finish in time")

// Follow-up work of request handlers, such as review requests, that shutdown
// has to wait for
type Client struct {
	running sync.WaitGroup
	pending atomic.Int64
}

func Create() *Client {
	return &Client{}
}

// Number of tasks that have not returned yet
func (c *Client) Pending() int64 {
	return c.pending.Load()
}

// Runs `task` on its own goroutine. The task keeps the values of `ctx` but is
// not cancelled with it. A panicking task is logged and does not take the
// process down.
func (c *Client) Run(ctx context.Context, taskName string, task func(context.Context)) {
	c.running.Add(1)
	c.pending.Add(1)
	go func() {
		defer c.running.Done()
		defer c.pending.Add(-1)

		//nolint:govet // shadow: the request context must not be used here
		ctx, span := tracer.Start(
			context.WithoutCancel(ctx),
			"Run",
			trace.WithAttributes(attribute.String("task", taskName)),
		)
		defer span.End()

		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("task %s panicked: %v", taskName, r)
				logger.Logger.ErrorContext(ctx, "background task panicked", "task", taskName, "panic", r)
				span.RecordError(err)
				span.SetStatus(codes.Error, "task panicked")
			}
		}()

		task(ctx)

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "ran task")
	}()
}

// Waits for running tasks until `ctx` is done
func (c *Client) Shutdown(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Shutdown", trace.WithAttributes(
		attribute.Int64("pending", c.Pending()),
	))
	defer span.End()

	done := make(chan struct{})
	go func() {
		c.running.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		logger.Logger.WarnContext(ctx, "abandoning background tasks", "pending", c.Pending())
		span.RecordError(ErrShutdownTimeout)
		span.SetStatus(codes.Error, "tasks still running at deadline")
		return ErrShutdownTimeout
	case <-done:
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "all tasks finished")
		return nil
	}
}
