package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/model"
	"gorm.io/gorm"
)

// SurveyRepository handles database operations for questions and responses
type SurveyRepository struct {
	db *gorm.DB
}

func NewSurveyRepository(db *gorm.DB) *SurveyRepository {
	return &SurveyRepository{db: db}
}

func orderedAnswers(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// CreateQuestion inserts a question together with its answers
func (r *SurveyRepository) CreateQuestion(ctx context.Context, q *model.Question) error {
	return r.db.WithContext(ctx).Create(q).Error
}

// FindQuestion loads a question with its ordered answers
func (r *SurveyRepository) FindQuestion(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	var q model.Question
	err := r.db.WithContext(ctx).Preload("Answers", orderedAnswers).Where("id = ?", id).First(&q).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrQuestionNotFound
		}
		return nil, err
	}
	return &q, nil
}

// ListEnabled returns the enabled questions of a type
func (r *SurveyRepository) ListEnabled(ctx context.Context, t model.QuestionType) ([]model.Question, error) {
	var qs []model.Question
	err := r.db.WithContext(ctx).
		Preload("Answers", orderedAnswers).
		Where("type = ? AND enabled = ?", t, true).
		Order("created_at ASC").
		Find(&qs).Error
	return qs, err
}

// ListQuestions returns questions, optionally filtered by type
func (r *SurveyRepository) ListQuestions(ctx context.Context, t model.QuestionType) ([]model.Question, error) {
	q := r.db.WithContext(ctx).Preload("Answers", orderedAnswers)
	if t != "" {
		q = q.Where("type = ?", t)
	}
	var qs []model.Question
	err := q.Order("created_at ASC").Find(&qs).Error
	return qs, err
}

// ReplaceQuestion overwrites a question and its answer list
func (r *SurveyRepository) ReplaceQuestion(ctx context.Context, q *model.Question) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", q.ID).Delete(&model.Answer{}).Error; err != nil {
			return err
		}
		for i := range q.Answers {
			q.Answers[i].ID = uuid.Nil
			q.Answers[i].QuestionID = q.ID
		}
		return tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(q).Error
	})
}

// DeleteQuestion removes a question and its answers
func (r *SurveyRepository) DeleteQuestion(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", id).Delete(&model.Answer{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Question{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrQuestionNotFound
		}
		return nil
	})
}

// CreateResponse stores a submitted answer
func (r *SurveyRepository) CreateResponse(ctx context.Context, resp *model.SurveyResponse) error {
	return r.db.WithContext(ctx).Create(resp).Error
}

// ListResponses returns responses to a question
func (r *SurveyRepository) ListResponses(ctx context.Context, questionID uuid.UUID) ([]model.SurveyResponse, error) {
	var out []model.SurveyResponse
	err := r.db.WithContext(ctx).Where("question_id = ?", questionID).Order("created_at ASC").Find(&out).Error
	return out, err
}
