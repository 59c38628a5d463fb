package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"deliberatelab/internal/cache"
	"deliberatelab/internal/model"
	"deliberatelab/internal/repository"
	"deliberatelab/internal/stage"
)

var (
	// ErrAnswerKindMismatch is a semantic fault: the answer's kind disagrees
	// with the question it answers.
	ErrAnswerKindMismatch = errors.New("answer kind does not match question kind")
	// ErrUnknownQuestion is returned when an answer references a question id
	// the stage does not contain.
	ErrUnknownQuestion = errors.New("unknown question id")
	// ErrNoAnswerExpected is returned when submitting an answer for a stage
	// kind that takes none.
	ErrNoAnswerExpected = stage.ErrNoAnswer
)

// AnswerService validates and persists participant stage answers. Structural
// validation (strict schema) runs first, then the semantic checks that need
// the stage config: every survey answer must reference an existing question
// and carry that question's kind.
type AnswerService struct {
	answerRepo  repository.AnswerRepo
	stageRepo   repository.StageRepo
	answerCache cache.AnswerCache
	broadcaster Broadcaster
}

// NewAnswerService creates a new answer service
func NewAnswerService(answerRepo repository.AnswerRepo, stageRepo repository.StageRepo, answerCache cache.AnswerCache) *AnswerService {
	return &AnswerService{
		answerRepo:  answerRepo,
		stageRepo:   stageRepo,
		answerCache: answerCache,
	}
}

// SetBroadcaster injects the WebSocket broadcaster
func (s *AnswerService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Submit validates a raw answer payload against the stage's kind and
// persists it. Faults are reported to the caller, never coerced or
// defaulted.
func (s *AnswerService) Submit(ctx context.Context, experimentID, participantID, stageID string, raw json.RawMessage) (*model.StageParticipantAnswer, error) {
	cfg, err := s.stageRepo.GetByID(ctx, experimentID, stageID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrStageNotFound
	}

	if err := stage.ValidateAnswer(cfg.Kind, raw); err != nil {
		return nil, err
	}

	if cfg.Kind == model.StageKindSurvey {
		var surveyAns model.SurveyStageParticipantAnswer
		if err := json.Unmarshal(raw, &surveyAns); err != nil {
			return nil, err
		}
		for questionID, ans := range surveyAns.AnswerMap {
			question := cfg.Question(questionID)
			if question == nil {
				return nil, fmt.Errorf("%w: %q", ErrUnknownQuestion, questionID)
			}
			if question.Kind != ans.Kind {
				return nil, fmt.Errorf("%w: question %q is %s, answer is %s", ErrAnswerKindMismatch, questionID, question.Kind, ans.Kind)
			}
		}
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}

	ans := &model.StageParticipantAnswer{
		ExperimentID:  experimentID,
		ParticipantID: participantID,
		StageID:       stageID,
		Kind:          cfg.Kind,
		Answer:        payload,
	}
	if err := s.answerRepo.Upsert(ctx, ans); err != nil {
		return nil, err
	}
	if err := s.answerCache.Set(ctx, ans); err != nil {
		log.Printf("Failed to cache answer for participant %s: %v", participantID, err)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastToExperimenter(experimentID, "answer_submitted", map[string]string{
			"participantId": participantID,
			"stageId":       stageID,
		})
	}
	return ans, nil
}

// Get returns a participant's stored answer for one stage, or nil
func (s *AnswerService) Get(ctx context.Context, experimentID, participantID, stageID string) (*model.StageParticipantAnswer, error) {
	if ans, err := s.answerCache.Get(ctx, experimentID, participantID, stageID); err == nil && ans != nil {
		return ans, nil
	}
	return s.answerRepo.Get(ctx, experimentID, participantID, stageID)
}

// ListByParticipant returns all of a participant's stage answers
func (s *AnswerService) ListByParticipant(ctx context.Context, experimentID, participantID string) ([]*model.StageParticipantAnswer, error) {
	return s.answerRepo.ListByParticipant(ctx, experimentID, participantID)
}
