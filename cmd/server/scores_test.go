package main

import (
	"net/http"

	"github.com/hackhub/submissions-api/cmd/server/internal/models"
)

func (s *ServerTestSuite) seedScores() {
	scored := models.Submission{ChallengeID: s.ai.ID, TeamID: s.team.ID, UserID: s.user.ID}
	s.Require().NoError(s.db.Create(&scored).Error)

	unscored := models.Submission{ChallengeID: s.manual.ID, TeamID: s.team.ID, UserID: s.user.ID}
	s.Require().NoError(s.db.Create(&unscored).Error)

	s.Require().NoError(s.db.Create([]*models.Score{
		{SubmissionID: scored.ID, Value: "10"},
		{SubmissionID: scored.ID, Value: "2.5"},
		{SubmissionID: scored.ID, Value: "n/a"},
	}).Error)
}

func (s *ServerTestSuite) Test_TeamTotalScore() {
	s.seedScores()

	r, err := doRequest(s.T(), s.request(
		http.MethodGet,
		"/v1/submissions/team/"+s.team.ID.String()+"/scores",
		nil,
		participant(),
	))
	s.Require().NoError(err)
	s.Require().Equal(http.StatusOK, r.code, r.body)

	body := decodeBody(s.T(), r)
	s.Equal(s.team.ID.String(), body["teamId"])
	s.InDelta(12.5, body["totalScore"], 0.0001)

	var team models.Team
	s.Require().NoError(s.db.First(&team, "id = ?", s.team.ID).Error)
	s.Equal("12.5", team.Scores.String())
}

func (s *ServerTestSuite) Test_TeamCategoryScores() {
	s.seedScores()

	r, err := doRequest(s.T(), s.request(
		http.MethodGet,
		"/v1/submissions/team/"+s.team.ID.String()+"/scores/category",
		nil,
		admin(),
	))
	s.Require().NoError(err)
	s.Require().Equal(http.StatusOK, r.code, r.body)

	body := decodeBody(s.T(), r)
	s.ElementsMatch([]any{10.0, 2.5, 0.0}, body[models.CategoryAI])
	s.Equal([]any{}, body[s.manual.Category])
}

func (s *ServerTestSuite) Test_TeamScoresMalformedID() {
	for _, path := range []string{
		"/v1/submissions/team/nope/scores/",
		"/v1/submissions/team/nope/scores/category/",
	} {
		r, err := doRequest(s.T(), s.request(http.MethodGet, path, nil, participant()))
		s.Require().NoError(err)
		s.Equal(http.StatusBadRequest, r.code, path)
		messageBodyTester("Invalid team id")(s.T(), decodeBody(s.T(), r))
	}
}
