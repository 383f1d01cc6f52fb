package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/model"
	"github.com/grabngo/loaner/internal/repository"
	"github.com/grabngo/loaner/internal/settings"
)

type SurveyService struct {
	surveys  *repository.SurveyRepository
	settings *settings.Store

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSurveyService(surveys *repository.SurveyRepository, store *settings.Store) *SurveyService {
	return &SurveyService{
		surveys:  surveys,
		settings: store,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *SurveyService) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Intn(n)
}

// PickWeighted draws one question with probability proportional to its
// weight. Questions with no weight are never drawn.
func PickWeighted(qs []model.Question, intn func(int) int) *model.Question {
	total := 0
	for _, q := range qs {
		if q.RandWeight > 0 {
			total += q.RandWeight
		}
	}
	if total == 0 {
		return nil
	}
	r := intn(total)
	for i := range qs {
		if qs[i].RandWeight <= 0 {
			continue
		}
		if r < qs[i].RandWeight {
			return &qs[i]
		}
		r -= qs[i].RandWeight
	}
	return nil
}

// GetRandom returns a weighted random enabled question, or nil when none is enabled
func (s *SurveyService) GetRandom(ctx context.Context, t model.QuestionType) (*model.Question, error) {
	if !t.Valid() {
		return nil, apperr.ErrBadInput.Withf("unknown question type %q", t)
	}
	qs, err := s.surveys.ListEnabled(ctx, t)
	if err != nil {
		return nil, err
	}
	return PickWeighted(qs, s.intn), nil
}

// Submit records an answer. Responses are stored under the anonymous user
// when anonymous_surveys is set.
func (s *SurveyService) Submit(ctx context.Context, req model.SubmitSurveyRequest, actor string) (*model.SurveyResponse, error) {
	q, err := s.surveys.FindQuestion(ctx, req.QuestionID)
	if err != nil {
		return nil, err
	}

	var answer *model.Answer
	for i := range q.Answers {
		if q.Answers[i].ID == req.AnswerID {
			answer = &q.Answers[i]
			break
		}
	}
	if answer == nil {
		return nil, apperr.ErrAnswerNotFound.Withf("answer %s does not belong to question %s", req.AnswerID, q.ID)
	}

	user := actor
	anonymous, err := s.settings.GetBool(ctx, settings.AnonymousSurveys)
	if err != nil {
		return nil, err
	}
	if anonymous {
		if user, err = s.settings.GetString(ctx, settings.AnonymousSurveyUser); err != nil {
			return nil, err
		}
	}

	resp := &model.SurveyResponse{
		QuestionID: q.ID,
		AnswerID:   answer.ID,
		User:       user,
	}
	if answer.MoreInfoEnabled {
		resp.MoreInfoText = req.MoreInfoText
	}
	if err := s.surveys.CreateResponse(ctx, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ==================== Questions ====================

func buildQuestion(req model.QuestionRequest) (*model.Question, error) {
	if !req.Type.Valid() {
		return nil, apperr.ErrBadInput.Withf("unknown question type %q", req.Type)
	}
	if len(req.Answers) == 0 {
		return nil, apperr.ErrBadInput.Withf("a question needs at least one answer")
	}
	q := &model.Question{
		Type:       req.Type,
		Text:       req.Text,
		Enabled:    req.Enabled,
		RandWeight: req.RandWeight,
	}
	for i, a := range req.Answers {
		// a placeholder is shown exactly when the answer asks for more info
		if a.MoreInfoEnabled != (a.PlaceholderText != "") {
			return nil, apperr.ErrBadInput.Withf("answer %q: more info and placeholder text go together", a.Text)
		}
		q.Answers = append(q.Answers, model.Answer{
			Position:        i,
			Text:            a.Text,
			MoreInfoEnabled: a.MoreInfoEnabled,
			PlaceholderText: a.PlaceholderText,
		})
	}
	return q, nil
}

func (s *SurveyService) CreateQuestion(ctx context.Context, req model.QuestionRequest) (*model.Question, error) {
	q, err := buildQuestion(req)
	if err != nil {
		return nil, err
	}
	if err := s.surveys.CreateQuestion(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// UpdateQuestion replaces a question and its answers
func (s *SurveyService) UpdateQuestion(ctx context.Context, id uuid.UUID, req model.QuestionRequest) (*model.Question, error) {
	existing, err := s.surveys.FindQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	q, err := buildQuestion(req)
	if err != nil {
		return nil, err
	}
	q.ID = existing.ID
	q.CreatedAt = existing.CreatedAt
	if err := s.surveys.ReplaceQuestion(ctx, q); err != nil {
		return nil, err
	}
	return s.surveys.FindQuestion(ctx, id)
}

func (s *SurveyService) GetQuestion(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	return s.surveys.FindQuestion(ctx, id)
}

func (s *SurveyService) ListQuestions(ctx context.Context, t model.QuestionType) ([]model.Question, error) {
	if t != "" && !t.Valid() {
		return nil, apperr.ErrBadInput.Withf("unknown question type %q", t)
	}
	return s.surveys.ListQuestions(ctx, t)
}

func (s *SurveyService) DeleteQuestion(ctx context.Context, id uuid.UUID) error {
	return s.surveys.DeleteQuestion(ctx, id)
}

func (s *SurveyService) ListResponses(ctx context.Context, id uuid.UUID) ([]model.SurveyResponse, error) {
	return s.surveys.ListResponses(ctx, id)
}
