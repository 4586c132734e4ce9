package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"quiz-engine/internal/quiz"
)

func (a *API) HandleStartPractice(c *gin.Context) {
	var request startPracticeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, codeInvalidRequest, "level must be one of easy, medium, hard, mixed")
		return
	}

	started, err := a.service.StartPractice(c.Request.Context(), currentUser(c), quiz.Level(request.Level))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toStartResponse(started))
}

func (a *API) HandleStartMock(c *gin.Context) {
	mockTestID := strings.TrimSpace(c.Param("mockTestId"))
	if mockTestID == "" {
		respondError(c, http.StatusBadRequest, codeInvalidRequest, "mock test id is required")
		return
	}

	started, err := a.service.StartMock(c.Request.Context(), currentUser(c), mockTestID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toStartResponse(started))
}

func (a *API) HandleSubmit(c *gin.Context) {
	var request submitRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, codeInvalidRequest, "invalid submit payload: "+err.Error())
		return
	}

	result, err := a.service.Submit(
		c.Request.Context(),
		currentUser(c),
		request.AttemptID,
		toSubmittedAnswers(request.Answers),
		request.ProctorEvents,
	)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOutcomeResponse(result))
}

func (a *API) HandleViolation(c *gin.Context) {
	var request violationRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondError(c, http.StatusBadRequest, codeInvalidRequest, "invalid violation payload: "+err.Error())
		return
	}
	if len(strings.TrimSpace(request.Reason)) < 3 {
		respondError(c, http.StatusBadRequest, codeInvalidRequest, "reason must be at least 3 characters")
		return
	}

	result, err := a.service.ReportViolation(
		c.Request.Context(),
		currentUser(c),
		request.AttemptID,
		request.Reason,
		request.ProctorEvents,
	)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOutcomeResponse(result))
}

func (a *API) HandleMockTests(c *gin.Context) {
	mockTests, err := a.service.ListMockTests(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response := mockTestsResponse{MockTests: make([]mockTestResponse, 0, len(mockTests))}
	if err := copier.Copy(&response.MockTests, &mockTests); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (a *API) HandleAttempts(c *gin.Context) {
	summaries, err := a.service.ListAttempts(c.Request.Context(), currentUser(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response := attemptsResponse{Attempts: make([]attemptSummary, 0, len(summaries))}
	for _, summary := range summaries {
		response.Attempts = append(response.Attempts, toAttemptSummary(summary.Attempt, summary.MockTestTitle))
	}
	c.JSON(http.StatusOK, response)
}

func (a *API) HandleReview(c *gin.Context) {
	attemptID := strings.TrimSpace(c.Param("attemptId"))
	if _, err := uuid.Parse(attemptID); err != nil {
		respondError(c, http.StatusBadRequest, codeInvalidRequest, "attempt id must be a uuid")
		return
	}

	review, err := a.service.Review(c.Request.Context(), currentUser(c), attemptID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	questions := review.Questions
	if questions == nil {
		questions = []quiz.QuestionResult{}
	}
	c.JSON(http.StatusOK, reviewResponse{
		Summary:            toAttemptSummary(review.Attempt, ""),
		QuestionWiseReview: questions,
	})
}
