package main

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/hackhub/submissions-api/cmd/server/internal/models"
)

func (s *ServerTestSuite) Test_CreateSubmission() {
	tests := []struct {
		name           string
		auth           *clientAuth
		fields         func() map[string]string
		filename       string
		content        string
		expectedStatus int
		bodyTester     func(t *testing.T, body map[string]any)
	}{
		{
			name:           "ScoredPredictions",
			auth:           participant(),
			fields:         func() map[string]string { return s.fields(s.ai) },
			filename:       "predictions.csv",
			content:        "id,Language\n1,python\n2,go\n3,go\n4,go\n",
			expectedStatus: http.StatusCreated,
			bodyTester: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "Submission created successfully", body["message"])
				submission, ok := body["submission"].(map[string]any)
				if assert.True(t, ok, "contains submission") {
					assert.Equal(t, "75", submission["accuracy"])
					assert.Equal(t, false, submission["isSolved"])
					assert.Nil(t, submission["submissionFile"])
				}
			},
		},
		{
			name:           "RowCountMismatch",
			auth:           participant(),
			fields:         func() map[string]string { return s.fields(s.ai) },
			filename:       "predictions.csv",
			content:        "id,Language\n1,python\n",
			expectedStatus: http.StatusBadRequest,
			bodyTester: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "Mismatch in number of rows.", body["message"])
				assert.Contains(t, body, "error", "detail outside of production")
			},
		},
		{
			name:           "MissingColumn",
			auth:           participant(),
			fields:         func() map[string]string { return s.fields(s.ai) },
			filename:       "predictions.csv",
			content:        "id,Guess\n1,python\n2,go\n3,go\n4,go\n",
			expectedStatus: http.StatusInternalServerError,
			bodyTester:     messageBodyTester("Server error"),
		},
		{
			name:           "AutomatedWithoutFile",
			auth:           participant(),
			fields:         func() map[string]string { return s.fields(s.ai) },
			expectedStatus: http.StatusBadRequest,
			bodyTester:     messageBodyTester("CSV file is required for AI challenge"),
		},
		{
			name: "ManualTextOnly",
			auth: admin(),
			fields: func() map[string]string {
				fields := s.fields(s.manual)
				fields["submissionText"] = "flag{parser}"
				return fields
			},
			expectedStatus: http.StatusCreated,
			bodyTester: func(t *testing.T, body map[string]any) {
				submission, ok := body["submission"].(map[string]any)
				if assert.True(t, ok, "contains submission") {
					assert.Equal(t, "flag{parser}", submission["submissionText"])
					assert.Nil(t, submission["accuracy"])
					assert.Nil(t, submission["submissionFile"])
				}
			},
		},
		{
			name:           "DisallowedExtension",
			auth:           participant(),
			fields:         func() map[string]string { return s.fields(s.manual) },
			filename:       "exploit.exe",
			content:        "MZ",
			expectedStatus: http.StatusBadRequest,
			bodyTester:     messageBodyTester("Only .csv, .zip, .pdf, .jpg, .png files are allowed"),
		},
		{
			name: "MissingFields",
			auth: participant(),
			fields: func() map[string]string {
				fields := s.fields(s.manual)
				delete(fields, "userId")
				return fields
			},
			expectedStatus: http.StatusBadRequest,
			bodyTester:     messageBodyTester("Missing required fields"),
		},
		{
			name: "UnknownChallenge",
			auth: participant(),
			fields: func() map[string]string {
				fields := s.fields(s.manual)
				fields["challengeId"] = "0192b1f0-0000-7000-8000-000000000000"
				return fields
			},
			expectedStatus: http.StatusNotFound,
			bodyTester:     messageBodyTester("Challenge not found"),
		},
		{
			name:           "NoAuth",
			fields:         func() map[string]string { return s.fields(s.manual) },
			expectedStatus: http.StatusUnauthorized,
			bodyTester:     unauthorizedBodyTester,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			req := s.submitRequest(tt.fields(), tt.filename, tt.content, tt.auth)

			r, err := doRequest(s.T(), req)
			s.Require().NoError(err)
			s.Equal(tt.expectedStatus, r.code, r.body)

			if tt.bodyTester != nil {
				tt.bodyTester(s.T(), decodeBody(s.T(), r))
			}

			// cases share the team and user
			s.Require().NoError(
				s.db.Where("team_id = ?", s.team.ID).Delete(&models.Submission{}).Error,
			)
		})
	}
}

func (s *ServerTestSuite) Test_CreateSubmissionUploadsManualFile() {
	const url = "https://storage.example.com/submissions/abc/writeup.pdf?sig=1"

	gomock.InOrder(
		s.uploader.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, nil),
		s.uploader.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, reader io.ReadSeeker, _ int64, key string) error {
				s.True(strings.HasSuffix(key, "/writeup.pdf"), key)
				content, err := io.ReadAll(reader)
				s.NoError(err)
				s.Equal("%PDF-1.7", string(content))
				return nil
			}),
		s.uploader.EXPECT().
			PresignedDownloadURL(gomock.Any(), gomock.Any(), gomock.Eq("writeup.pdf"), gomock.Eq(time.Hour)).
			Return(url, nil),
	)

	req := s.submitRequest(s.fields(s.manual), "writeup.pdf", "%PDF-1.7", participant())
	r, err := doRequest(s.T(), req)
	s.Require().NoError(err)
	s.Require().Equal(http.StatusCreated, r.code, r.body)

	body := decodeBody(s.T(), r)
	submission, ok := body["submission"].(map[string]any)
	s.Require().True(ok)
	s.Equal(url, submission["submissionFile"])

	entries, err := readDirNames(s.config.Uploads.TempDir)
	s.Require().NoError(err)
	s.NotContains(strings.Join(entries, ","), "writeup.pdf", "temp upload removed")
}

func (s *ServerTestSuite) Test_CreateSubmissionDuplicate() {
	fields := s.fields(s.manual)

	r, err := doRequest(s.T(), s.submitRequest(fields, "", "", participant()))
	s.Require().NoError(err)
	s.Require().Equal(http.StatusCreated, r.code, r.body)

	r, err = doRequest(s.T(), s.submitRequest(fields, "", "", participant()))
	s.Require().NoError(err)
	s.Equal(http.StatusBadRequest, r.code)
	messageBodyTester("Submission already exists")(s.T(), decodeBody(s.T(), r))
}

func (s *ServerTestSuite) Test_ListSubmissions() {
	submission := models.Submission{
		ChallengeID: s.manual.ID,
		TeamID:      s.team.ID,
		UserID:      s.user.ID,
	}
	s.Require().NoError(s.db.Create(&submission).Error)

	tests := []struct {
		name           string
		auth           *clientAuth
		expectedStatus int
	}{
		{name: "Admin", auth: admin(), expectedStatus: http.StatusOK},
		{name: "Participant", auth: participant(), expectedStatus: http.StatusUnauthorized},
		{name: "NoAuth", expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			r, err := doRequest(s.T(), s.request(http.MethodGet, "/v1/submissions/", nil, tt.auth))
			s.Require().NoError(err)
			s.Equal(tt.expectedStatus, r.code, r.body)

			if tt.expectedStatus == http.StatusOK {
				s.Contains(r.body, submission.ID.String())
				s.Contains(r.body, `"challenge":{`)
				s.Contains(r.body, `"user":{`)
			}
		})
	}
}

func (s *ServerTestSuite) Test_GetSubmission() {
	submission := models.Submission{
		ChallengeID: s.manual.ID,
		TeamID:      s.team.ID,
		UserID:      s.user.ID,
	}
	s.Require().NoError(s.db.Create(&submission).Error)

	tests := []struct {
		name           string
		auth           *clientAuth
		id             string
		expectedStatus int
		bodyTester     func(t *testing.T, body map[string]any)
	}{
		{
			name:           "Found",
			auth:           admin(),
			id:             submission.ID.String(),
			expectedStatus: http.StatusOK,
			bodyTester: func(t *testing.T, body map[string]any) {
				assert.Equal(t, submission.ID.String(), body["id"])
				assert.Contains(t, body, "team")
			},
		},
		{
			name:           "NotFound",
			auth:           admin(),
			id:             "0192b1f0-0000-7000-8000-000000000000",
			expectedStatus: http.StatusNotFound,
			bodyTester:     messageBodyTester("Submission not found"),
		},
		{
			name:           "Malformed",
			auth:           admin(),
			id:             "not-a-uuid",
			expectedStatus: http.StatusNotFound,
			bodyTester:     messageBodyTester("Submission not found"),
		},
		{
			name:           "Participant",
			auth:           participant(),
			id:             submission.ID.String(),
			expectedStatus: http.StatusUnauthorized,
			bodyTester:     unauthorizedBodyTester,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			r, err := doRequest(s.T(), s.request(http.MethodGet, "/v1/submissions/"+tt.id, nil, tt.auth))
			s.Require().NoError(err)
			s.Equal(tt.expectedStatus, r.code, r.body)
			tt.bodyTester(s.T(), decodeBody(s.T(), r))
		})
	}
}

func (s *ServerTestSuite) Test_TeamSubmissions() {
	path := "/v1/submissions/team/" + s.team.ID.String() + "/"

	r, err := doRequest(s.T(), s.request(http.MethodGet, path, nil, participant()))
	s.Require().NoError(err)
	s.Equal(http.StatusNotFound, r.code)
	messageBodyTester("No submissions found for this team")(s.T(), decodeBody(s.T(), r))

	submission := models.Submission{
		ChallengeID: s.manual.ID,
		TeamID:      s.team.ID,
		UserID:      s.user.ID,
	}
	s.Require().NoError(s.db.Create(&submission).Error)

	r, err = doRequest(s.T(), s.request(http.MethodGet, path, nil, participant()))
	s.Require().NoError(err)
	s.Equal(http.StatusOK, r.code, r.body)
	s.Contains(r.body, submission.ID.String())

	r, err = doRequest(s.T(), s.request(http.MethodGet, "/v1/submissions/team/nope/", nil, participant()))
	s.Require().NoError(err)
	s.Equal(http.StatusNotFound, r.code)
}
