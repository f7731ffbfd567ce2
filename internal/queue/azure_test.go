package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/azure/azurite"
	"go.uber.org/mock/gomock"

	"github.com/hackhub/submissions-api/internal/queue"
	mockqueue "github.com/hackhub/submissions-api/internal/queue/mock"
	"github.com/hackhub/submissions-api/internal/types"
)

var queueName = "reviews"

func TestAzure(t *testing.T) {
	ctx := t.Context()

	azuriteContainer, err := azurite.Run(
		ctx,
		"mcr.microsoft.com/azure-storage/azurite:latest",
		azurite.WithInMemoryPersistence(256),
	)
	require.NoError(t, err, "failed to make azurite container")
	defer func() {
		require.NoError(t, testcontainers.TerminateContainer(azuriteContainer))
	}()

	cred, err := azqueue.NewSharedKeyCredential(azurite.AccountName, azurite.AccountKey)
	require.NoError(t, err, "failed to get creds")

	serviceURL, err := azuriteContainer.QueueServiceURL(ctx)
	require.NoError(t, err, "failed to get serviceURL")
	serviceURL = fmt.Sprintf("%s/%s", serviceURL, azurite.AccountName)

	azclient, err := azqueue.NewServiceClientWithSharedKeyCredential(serviceURL, cred, nil)
	require.NoError(t, err, "failed to make azure queue client")

	queueclient := azclient.NewQueueClient(queueName)
	_, err = queueclient.Create(ctx, nil)
	require.NoError(t, err, "failed to make queue")

	queuer, err := queue.NewAzureQueuer(
		azurite.AccountName,
		azurite.AccountKey,
		serviceURL,
		queueName,
		queue.AzureOptions{PollInterval: 100 * time.Millisecond, MessageTTL: time.Hour},
	)
	require.NoError(t, err, "failed to construct queuer")

	t.Run("Enqueue", func(t *testing.T) {
		file := "https://store.example/submissions/abc/report.pdf"
		expected := types.ReviewRequest{
			SubmissionID:   uuid.New(),
			ChallengeID:    uuid.New(),
			TeamID:         uuid.New(),
			Category:       "Web",
			SubmissionFile: &file,
			SubmittedAt:    types.UnixMilli(time.Now().UnixMilli()),
		}
		require.NoError(t, queuer.Enqueue(ctx, expected), "failed to queue message")

		dequeued, dqErr := queueclient.DequeueMessage(ctx, nil)
		require.NoError(t, dqErr, "failed to dequeue message")

		require.Len(t, dequeued.Messages, 1, "should remove 1 message")

		actual := types.ReviewRequest{}
		err := json.Unmarshal([]byte(*dequeued.Messages[0].MessageText), &actual)
		require.NoError(t, err, "failed to unmarshal message")

		assert.Equal(t, expected, actual, "messages should match")
	})

	t.Run("Dequeue", func(t *testing.T) {
		t.Run("Empty", func(t *testing.T) {
			ctrl := gomock.NewController(t)
			handler := mockqueue.NewMockMessageHandler(ctrl)

			handler.EXPECT().Handle(gomock.Any(), gomock.Any()).Times(0)

			cctx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()

			require.ErrorIs(
				t,
				queuer.Dequeue(cctx, time.Minute, handler),
				context.DeadlineExceeded,
			)
		})

		t.Run("Something", func(t *testing.T) {
			ctrl := gomock.NewController(t)
			handler := mockqueue.NewMockMessageHandler(ctrl)

			msg := `{"submission_id":"abc","score":"3"}`
			_, err := queueclient.EnqueueMessage(ctx, msg, nil)
			require.NoError(t, err, "enqueing message")

			handler.EXPECT().Handle(gomock.Any(), gomock.Eq([]byte(msg))).Return(nil).Times(1)

			err = queuer.Dequeue(ctx, time.Minute, handler)
			require.NoError(t, err, "failed to dequeue message")
		})

		t.Run("Poisoned", func(t *testing.T) {
			ctrl := gomock.NewController(t)
			handler := mockqueue.NewMockMessageHandler(ctrl)

			msg := "not json"
			_, err := queueclient.EnqueueMessage(ctx, msg, nil)
			require.NoError(t, err, "enqueing message")

			handler.EXPECT().
				Handle(gomock.Any(), gomock.Eq([]byte(msg))).
				Return(queue.Poison(errors.New("bad message"))).
				Times(1)

			err = queuer.Dequeue(ctx, time.Minute, handler)
			require.NoError(t, err, "failed to dequeue message")

			peeked, err := queueclient.PeekMessages(ctx, nil)
			require.NoError(t, err, "failed to peek queue")
			assert.Empty(t, peeked.Messages, "poisoned message should be deleted")
		})

		t.Run("Exhausted", func(t *testing.T) {
			ctrl := gomock.NewController(t)
			handler := mockqueue.NewMockMessageHandler(ctrl)

			impatient := queue.NewAzureQueuerFromClient(queueclient, queue.AzureOptions{
				PollInterval: 100 * time.Millisecond,
				MaxDequeues:  1,
			})

			msg := `{"submission_id":"abc","score":"1"}`
			_, err := queueclient.EnqueueMessage(ctx, msg, nil)
			require.NoError(t, err, "enqueing message")

			handler.EXPECT().
				Handle(gomock.Any(), gomock.Eq([]byte(msg))).
				Return(errors.New("database unavailable")).
				Times(1)

			err = impatient.Dequeue(ctx, time.Minute, handler)
			require.NoError(t, err, "failed to dequeue message")

			peeked, err := queueclient.PeekMessages(ctx, nil)
			require.NoError(t, err, "failed to peek queue")
			assert.Empty(t, peeked.Messages, "exhausted message should be deleted")
		})
	})
}
