package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QuestionType selects when a survey question is asked
type QuestionType string

const (
	QuestionTypeAssignment QuestionType = "ASSIGNMENT"
	QuestionTypeReturn     QuestionType = "RETURN"
)

// Valid reports whether t is a known question type
func (t QuestionType) Valid() bool {
	return t == QuestionTypeAssignment || t == QuestionTypeReturn
}

// Question is a survey question shown at assignment or return
type Question struct {
	ID         uuid.UUID    `json:"id" gorm:"type:uuid;primaryKey"`
	Type       QuestionType `json:"type" gorm:"size:20;not null;index"`
	Text       string       `json:"text" gorm:"size:1000;not null"`
	Enabled    bool         `json:"enabled" gorm:"index"`
	RandWeight int          `json:"rand_weight" gorm:"not null"`
	Answers    []Answer     `json:"answers" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

// Answer is one selectable option of a question
type Answer struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	QuestionID      uuid.UUID `json:"question_id" gorm:"type:uuid;not null;index"`
	Position        int       `json:"position" gorm:"not null"`
	Text            string    `json:"text" gorm:"size:500;not null"`
	MoreInfoEnabled bool      `json:"more_info_enabled"`
	PlaceholderText string    `json:"placeholder_text" gorm:"size:255"`
}

func (a *Answer) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// SurveyResponse records a submitted answer
type SurveyResponse struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	QuestionID   uuid.UUID `json:"question_id" gorm:"type:uuid;not null;index"`
	AnswerID     uuid.UUID `json:"answer_id" gorm:"type:uuid;not null"`
	User         string    `json:"user" gorm:"size:255;not null;index"`
	MoreInfoText string    `json:"more_info_text" gorm:"size:1000"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r *SurveyResponse) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
