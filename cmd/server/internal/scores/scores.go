package scores

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	srverr "github.com/hackhub/submissions-api/cmd/server/internal/error"
	"github.com/hackhub/submissions-api/cmd/server/internal/models"
	"github.com/hackhub/submissions-api/internal/audit"
)

const name = "github.com/hackhub/submissions-api/cmd/server/internal/scores"

var tracer = otel.Tracer(name)

// Sums and groups the grader's scores per team
type Aggregator struct {
	db *gorm.DB
}

func NewAggregator(db *gorm.DB) *Aggregator {
	return &Aggregator{db: db}
}

// Sum of every score of every submission of the team. The sum is cached on
// the team row once fully computed.
func (a *Aggregator) TotalForTeam(ctx context.Context, teamID uuid.UUID) (float64, error) {
	ctx, span := tracer.Start(ctx, "TotalForTeam", trace.WithAttributes(
		attribute.String("team.id", teamID.String()),
	))
	defer span.End()

	submissions, err := models.ListSubmissions(ctx, a.db, models.PreloadScores, "team_id = ?", teamID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read team submissions")
		return 0, fmt.Errorf("%w: %w", srverr.ErrStorage, err)
	}

	total := decimal.Zero
	for _, submission := range submissions {
		for _, score := range submission.Scores {
			total = total.Add(decimal.NewFromFloat(score.Numeric()))
		}
	}

	span.AddEvent("caching total on team", trace.WithAttributes(
		attribute.String("total", total.String()),
	))
	result := a.db.WithContext(ctx).
		Model(&models.Team{}).
		Where("id = ?", teamID).
		Update("scores", total)
	if result.Error != nil {
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, "failed to cache team total")
		return 0, fmt.Errorf("%w: %w", srverr.ErrStorage, result.Error)
	}

	value := total.InexactFloat64()

	id := teamID.String()
	audit.LogTeamScoresAggregated(audit.Context{TeamID: &id}, value, len(submissions))

	span.SetAttributes(attribute.Float64("total", value))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "aggregated team total")
	return value, nil
}

// Score values of the team keyed by challenge category, in submission then
// score order. Categories with submissions but no scores map to an empty list.
func (a *Aggregator) ByCategoryForTeam(
	ctx context.Context,
	teamID uuid.UUID,
) (map[string][]float64, error) {
	ctx, span := tracer.Start(ctx, "ByCategoryForTeam", trace.WithAttributes(
		attribute.String("team.id", teamID.String()),
	))
	defer span.End()

	submissions, err := models.ListSubmissions(
		ctx,
		a.db,
		models.PreloadChallenge|models.PreloadScores,
		"team_id = ?",
		teamID,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read team submissions")
		return nil, fmt.Errorf("%w: %w", srverr.ErrStorage, err)
	}

	byCategory := map[string][]float64{}
	for _, submission := range submissions {
		if submission.Challenge == nil {
			err := fmt.Errorf("%w: submission %s has no challenge", srverr.ErrStorage, submission.ID)
			span.RecordError(err)
			span.SetStatus(codes.Error, "dangling challenge reference")
			return nil, err
		}

		category := submission.Challenge.Category
		values, ok := byCategory[category]
		if !ok {
			values = []float64{}
		}
		for _, score := range submission.Scores {
			values = append(values, score.Numeric())
		}
		byCategory[category] = values
	}

	span.SetAttributes(attribute.Int("categories", len(byCategory)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "grouped team scores")
	return byCategory, nil
}
