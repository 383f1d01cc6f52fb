package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/model"
	"github.com/grabngo/loaner/internal/service"
)

// SurveyHandler serves survey questions to borrowers and their admin CRUD
type SurveyHandler struct {
	surveyService *service.SurveyService
}

func NewSurveyHandler(surveyService *service.SurveyService) *SurveyHandler {
	return &SurveyHandler{surveyService: surveyService}
}

func questionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apperr.ErrBadInput.Withf("invalid question id"))
		return uuid.Nil, false
	}
	return id, true
}

// Random godoc
// @Summary Pick a survey question
// @Tags Surveys
// @Produce json
// @Security BearerAuth
// @Param type query string true "ASSIGNMENT or RETURN"
// @Success 200 {object} model.Question
// @Success 204 "No enabled question"
// @Router /surveys/random [get]
func (h *SurveyHandler) Random(c *gin.Context) {
	q, err := h.surveyService.GetRandom(c.Request.Context(), model.QuestionType(c.Query("type")))
	if err != nil {
		respondError(c, err)
		return
	}
	if q == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, q)
}

// Submit godoc
// @Summary Answer a survey question
// @Tags Surveys
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.SubmitSurveyRequest true "Answer"
// @Success 201 {object} model.SurveyResponse
// @Router /surveys/submit [post]
func (h *SurveyHandler) Submit(c *gin.Context) {
	var req model.SubmitSurveyRequest
	if !bind(c, &req) {
		return
	}
	resp, err := h.surveyService.Submit(c.Request.Context(), req, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListQuestions godoc
// @Summary List survey questions
// @Tags Surveys
// @Produce json
// @Security BearerAuth
// @Param type query string false "ASSIGNMENT or RETURN"
// @Success 200 {array} model.Question
// @Router /surveys/questions [get]
func (h *SurveyHandler) ListQuestions(c *gin.Context) {
	qs, err := h.surveyService.ListQuestions(c.Request.Context(), model.QuestionType(c.Query("type")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, qs)
}

// GetQuestion godoc
// @Summary Get a survey question
// @Tags Surveys
// @Produce json
// @Security BearerAuth
// @Param id path string true "Question ID"
// @Success 200 {object} model.Question
// @Router /surveys/questions/{id} [get]
func (h *SurveyHandler) GetQuestion(c *gin.Context) {
	id, ok := questionID(c)
	if !ok {
		return
	}
	q, err := h.surveyService.GetQuestion(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// CreateQuestion godoc
// @Summary Create a survey question
// @Tags Surveys
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.QuestionRequest true "Question"
// @Success 201 {object} model.Question
// @Router /surveys/questions [post]
func (h *SurveyHandler) CreateQuestion(c *gin.Context) {
	var req model.QuestionRequest
	if !bind(c, &req) {
		return
	}
	q, err := h.surveyService.CreateQuestion(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

// UpdateQuestion godoc
// @Summary Replace a survey question
// @Tags Surveys
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Question ID"
// @Param body body model.QuestionRequest true "Question"
// @Success 200 {object} model.Question
// @Router /surveys/questions/{id} [put]
func (h *SurveyHandler) UpdateQuestion(c *gin.Context) {
	id, ok := questionID(c)
	if !ok {
		return
	}
	var req model.QuestionRequest
	if !bind(c, &req) {
		return
	}
	q, err := h.surveyService.UpdateQuestion(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// DeleteQuestion godoc
// @Summary Delete a survey question
// @Tags Surveys
// @Produce json
// @Security BearerAuth
// @Param id path string true "Question ID"
// @Success 200 {object} model.SuccessResponse
// @Router /surveys/questions/{id} [delete]
func (h *SurveyHandler) DeleteQuestion(c *gin.Context) {
	id, ok := questionID(c)
	if !ok {
		return
	}
	if err := h.surveyService.DeleteQuestion(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Question deleted"})
}

// ListResponses godoc
// @Summary List the answers given to a question
// @Tags Surveys
// @Produce json
// @Security BearerAuth
// @Param id path string true "Question ID"
// @Success 200 {array} model.SurveyResponse
// @Router /surveys/questions/{id}/responses [get]
func (h *SurveyHandler) ListResponses(c *gin.Context) {
	id, ok := questionID(c)
	if !ok {
		return
	}
	resps, err := h.surveyService.ListResponses(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resps)
}
