package grading

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	sloggorm "github.com/imdatngo/slog-gorm/v2"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/mock/gomock"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/hackhub/submissions-api/cmd/server/internal/migrations"
	"github.com/hackhub/submissions-api/cmd/server/internal/models"
	"github.com/hackhub/submissions-api/internal/queue"
	mockqueue "github.com/hackhub/submissions-api/internal/queue/mock"
)

type GradeHandlerTestSuite struct {
	suite.Suite

	pgContainer *postgres.PostgresContainer
	db          *gorm.DB
	tx          *gorm.DB
	handler     *GradeHandler

	submission models.Submission
}

func TestGradeHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(GradeHandlerTestSuite))
}

func (s *GradeHandlerTestSuite) SetupSuite() {
	ct, err := postgres.Run(s.T().Context(),
		"postgres:16.4-alpine",
		postgres.WithDatabase("submissionsapi"),
		postgres.WithUsername("submissionsapi"),
		postgres.WithPassword("submissionsapi"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	s.Require().NoError(err)
	s.pgContainer = ct

	connStr, err := s.pgContainer.ConnectionString(s.T().Context())
	s.Require().NoError(err)

	db, err := gorm.Open(gormpg.Open(connStr), &gorm.Config{
		Logger:         sloggorm.New(),
		TranslateError: true,
	})
	s.Require().NoError(err)
	s.db = db

	s.Require().NoError(migrations.Up(s.T().Context(), s.db))
}

func (s *GradeHandlerTestSuite) SetupTest() {
	s.tx = s.db.Begin()
	s.handler = NewGradeHandler(s.tx)

	team := models.Team{Name: "team-" + uuid.NewString()[:8]}
	s.Require().NoError(s.tx.Create(&team).Error)

	user := models.User{Name: "dave", TeamID: &team.ID}
	s.Require().NoError(s.tx.Create(&user).Error)

	challenge := models.Challenge{Title: "Stego", Category: "Forensics"}
	s.Require().NoError(s.tx.Create(&challenge).Error)

	s.submission = models.Submission{ChallengeID: challenge.ID, TeamID: team.ID, UserID: user.ID}
	s.Require().NoError(s.tx.Create(&s.submission).Error)
}

func (s *GradeHandlerTestSuite) TearDownTest() {
	s.tx.Rollback()
}

func (s *GradeHandlerTestSuite) TearDownSuite() {
	s.Require().NoError(testcontainers.TerminateContainer(s.pgContainer))
}

func (s *GradeHandlerTestSuite) scores() []models.Score {
	var scores []models.Score
	s.Require().NoError(
		s.tx.Where("submission_id = ?", s.submission.ID).Order("created_at").Find(&scores).Error,
	)
	return scores
}

func (s *GradeHandlerTestSuite) solved() bool {
	stored, err := models.ByID[models.Submission](s.T().Context(), s.tx, s.submission.ID)
	s.Require().NoError(err)
	return stored.IsSolved
}

func (s *GradeHandlerTestSuite) Test_Handle_NumericScore() {
	msg := fmt.Sprintf(`{"submission_id":%q,"score":42.5}`, s.submission.ID)

	s.Require().NoError(s.handler.Handle(s.T().Context(), []byte(msg)))

	scores := s.scores()
	s.Require().Len(scores, 1)
	s.Equal("42.5", scores[0].Value)
	s.InDelta(42.5, scores[0].Numeric(), 1e-9)
	s.False(s.solved(), "solved is untouched when absent")
}

func (s *GradeHandlerTestSuite) Test_Handle_StringScoreAndSolved() {
	msg := fmt.Sprintf(`{"submission_id":%q,"score":"pending","solved":true}`, s.submission.ID)

	s.Require().NoError(s.handler.Handle(s.T().Context(), []byte(msg)))

	scores := s.scores()
	s.Require().Len(scores, 1)
	s.Equal("pending", scores[0].Value)
	s.Zero(scores[0].Numeric())
	s.True(s.solved())
}

func (s *GradeHandlerTestSuite) Test_Handle_Unsolve() {
	s.Require().NoError(
		s.tx.Model(&models.Submission{}).Where("id = ?", s.submission.ID).Update("is_solved", true).Error,
	)

	msg := fmt.Sprintf(`{"submission_id":%q,"score":0,"solved":false}`, s.submission.ID)
	s.Require().NoError(s.handler.Handle(s.T().Context(), []byte(msg)))

	s.False(s.solved())
}

func (s *GradeHandlerTestSuite) Test_Handle_Poisoned() {
	tests := []struct {
		name    string
		message string
	}{
		{name: "NotJSON", message: "score=10"},
		{name: "MissingScore", message: fmt.Sprintf(`{"submission_id":%q}`, s.submission.ID)},
		{name: "MissingSubmission", message: `{"score":1}`},
		{name: "InvalidSubmissionID", message: `{"submission_id":"abc","score":1}`},
		{name: "UnknownSubmission", message: fmt.Sprintf(`{"submission_id":%q,"score":1}`, uuid.New())},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			err := s.handler.Handle(s.T().Context(), []byte(tt.message))

			s.Require().ErrorIs(err, queue.ErrPoison)
		})
	}

	s.Empty(s.scores())
}

func TestMonitorScoresQueue(t *testing.T) {
	previousPause := errorPause
	errorPause = 10 * time.Millisecond
	t.Cleanup(func() { errorPause = previousPause })

	ctrl := gomock.NewController(t)
	qr := mockqueue.NewMockQueuer(ctrl)

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	qr.EXPECT().Dequeue(gomock.Any(), gomock.Eq(dequeueTimeout), gomock.Any()).
		DoAndReturn(func(context.Context, time.Duration, queue.MessageHandler) error {
			calls++
			if calls == 2 {
				cancel()
				return context.Canceled
			}
			return errors.New("transient")
		}).
		Times(2)

	done := make(chan struct{})
	go func() {
		defer close(done)
		MonitorScoresQueue(ctx, nil, qr)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop after cancellation")
	}
}
