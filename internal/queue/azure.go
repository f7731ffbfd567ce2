package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ Queuer = (*AzureQueuer)(nil)

type AzureOptions struct {
	// Wait between polls of an empty queue
	PollInterval time.Duration
	// A message that failed this many deliveries is dropped, 0 keeps retrying forever
	MaxDequeues int64
	// Lifetime of enqueued messages, 0 uses the service default of 7 days
	MessageTTL time.Duration
}

var DefaultAzureOptions = AzureOptions{
	PollInterval: 30 * time.Second,
	MaxDequeues:  10,
}

// Azure storage queue carrying JSON messages
type AzureQueuer struct {
	az   *azqueue.QueueClient
	opts AzureOptions
}

// `queueName` must exist in the storage account
func NewAzureQueuer(
	accountName string,
	accountKey string,
	serviceURL string,
	queueName string,
	opts AzureOptions,
) (*AzureQueuer, error) {
	cred, err := azqueue.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, err
	}
	serviceClient, err := azqueue.NewServiceClientWithSharedKeyCredential(
		serviceURL,
		cred,
		&azqueue.ClientOptions{
			ClientOptions: policy.ClientOptions{
				Retry: policy.RetryOptions{
					MaxRetries: 5,
					RetryDelay: 500 * time.Millisecond,
				},
			},
		},
	)
	if err != nil {
		return nil, err
	}

	return NewAzureQueuerFromClient(serviceClient.NewQueueClient(queueName), opts), nil
}

func NewAzureQueuerFromClient(client *azqueue.QueueClient, opts AzureOptions) *AzureQueuer {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultAzureOptions.PollInterval
	}
	return &AzureQueuer{az: client, opts: opts}
}

func (q *AzureQueuer) Enqueue(ctx context.Context, message any) error {
	ctx, span := tracer.Start(ctx, "AzureQueuer.Enqueue")
	defer span.End()

	body, err := json.Marshal(message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "message is not serializable")
		return err
	}
	span.AddEvent("serialized", trace.WithAttributes(attribute.Int("bytes", len(body))))

	options := &azqueue.EnqueueMessageOptions{}
	if q.opts.MessageTTL > 0 {
		ttl := int32(q.opts.MessageTTL.Seconds())
		options.TimeToLive = &ttl
	}

	if _, err = q.az.EnqueueMessage(ctx, string(body), options); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to enqueue message")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "enqueued message")
	return nil
}

// Polls until exactly one message is visible or `ctx` is done
func (q *AzureQueuer) next(ctx context.Context, visibility int32) (azqueue.DequeueMessagesResponse, error) {
	for {
		resp, err := q.az.DequeueMessage(ctx, &azqueue.DequeueMessageOptions{
			VisibilityTimeout: &visibility,
		})
		if err != nil {
			return resp, err
		}

		switch len(resp.Messages) {
		case 0:
		case 1:
			return resp, nil
		default:
			return resp, fmt.Errorf("asked for one message, got %d", len(resp.Messages))
		}

		select {
		case <-ctx.Done():
			return resp, ctx.Err()
		case <-time.After(q.opts.PollInterval):
		}
	}
}

func (q *AzureQueuer) Dequeue(
	ctx context.Context,
	timeout time.Duration,
	handler MessageHandler,
) error {
	ctx, span := tracer.Start(ctx, "AzureQueuer.Dequeue", trace.WithAttributes(
		attribute.Int64("timeoutSecs", int64(timeout.Seconds())),
	))
	defer span.End()

	// hidden a little longer than the handler may run so it can stop first
	resp, err := q.next(ctx, int32(timeout.Seconds())+5)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to dequeue message")
		return err
	}
	msg := resp.Messages[0]

	var deliveries int64
	if msg.DequeueCount != nil {
		deliveries = *msg.DequeueCount
	}
	span.AddEvent("got_message", trace.WithAttributes(
		attribute.String("id", *msg.MessageID),
		attribute.Int64("deliveries", deliveries),
	))

	handlerCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := handler.Handle(handlerCtx, []byte(*msg.MessageText)); err != nil {
		exhausted := q.opts.MaxDequeues > 0 && deliveries >= q.opts.MaxDequeues
		if !IsPoison(err) && !exhausted {
			// visibility timeout expires and the message is delivered again
			span.AddEvent("handler_failed", trace.WithAttributes(
				attribute.String("error", err.Error()),
			))
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "message left for redelivery")
			return nil
		}

		span.AddEvent("dropping_message", trace.WithAttributes(
			attribute.String("error", err.Error()),
			attribute.Bool("exhausted", exhausted),
		))
	}

	if _, err := q.az.DeleteMessage(ctx, *msg.MessageID, *msg.PopReceipt, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to remove message")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "dequeued message")
	return nil
}
