package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/google/uuid"

	"deliberatelab/internal/cache"
	"deliberatelab/internal/model"
	"deliberatelab/internal/repository"
	"deliberatelab/internal/stage"
)

// Collection names accepted by the write and delete endpoints
const (
	CollectionExperiments = "experiments"
	CollectionTemplates   = "experimentTemplates"
)

var (
	ErrUnknownCollection  = errors.New("unknown experiment collection")
	ErrExperimentNotFound = errors.New("experiment not found")
	ErrStageNotFound      = errors.New("stage not found")
)

// ExperimentService owns experiment persistence. Every stage payload is
// validated against its kind's strict schema before any write; validation is
// never skipped for trusted callers because other writers reach the same
// store.
type ExperimentService struct {
	expRepo     repository.ExperimentRepo
	stageRepo   repository.StageRepo
	answerRepo  repository.AnswerRepo
	expCache    cache.ExperimentCache
	answerCache cache.AnswerCache
	broadcaster Broadcaster
}

// NewExperimentService creates a new experiment service
func NewExperimentService(expRepo repository.ExperimentRepo, stageRepo repository.StageRepo, answerRepo repository.AnswerRepo, expCache cache.ExperimentCache, answerCache cache.AnswerCache) *ExperimentService {
	return &ExperimentService{
		expRepo:     expRepo,
		stageRepo:   stageRepo,
		answerRepo:  answerRepo,
		expCache:    expCache,
		answerCache: answerCache,
	}
}

// SetBroadcaster injects the WebSocket broadcaster
func (s *ExperimentService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

func validCollection(collection string) bool {
	return collection == CollectionExperiments || collection == CollectionTemplates
}

// WriteExperiment creates or updates an experiment together with its stage
// sub-documents. Stages arrive as raw JSON and are validated before
// decoding; a single invalid stage rejects the whole write. The experiment's
// stage order is derived from the given stage order.
func (s *ExperimentService) WriteExperiment(ctx context.Context, collection string, exp model.Experiment, rawStages []json.RawMessage, creator string) (*model.Experiment, error) {
	if !validCollection(collection) {
		return nil, ErrUnknownCollection
	}

	stages := make([]model.StageConfig, 0, len(rawStages))
	for _, raw := range rawStages {
		if err := stage.ValidateConfig(raw); err != nil {
			return nil, err
		}
		var cfg model.StageConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
		stages = append(stages, cfg)
	}

	if exp.ID == "" {
		exp.ID = uuid.New().String()
	}
	exp.Metadata.Creator = creator

	exp.StageIDs = make([]string, 0, len(stages))
	for i := range stages {
		stages[i].ExperimentID = exp.ID
		exp.StageIDs = append(exp.StageIDs, stages[i].ID)
	}

	if err := s.expRepo.Upsert(ctx, collection, &exp); err != nil {
		return nil, err
	}
	for i := range stages {
		if err := s.stageRepo.Upsert(ctx, &stages[i]); err != nil {
			return nil, err
		}
	}

	if err := s.expCache.Delete(ctx, exp.ID); err != nil {
		log.Printf("Failed to invalidate experiment cache for %s: %v", exp.ID, err)
	}

	if s.broadcaster != nil && collection == CollectionExperiments {
		s.broadcaster.BroadcastToExperimenter(exp.ID, "experiment_updated", exp)
		s.broadcaster.BroadcastToAllParticipants(exp.ID, "experiment_updated", exp)
	}

	return &exp, nil
}

// DeleteExperiment removes an experiment document together with its stage
// sub-documents and every participant answer stored for it
func (s *ExperimentService) DeleteExperiment(ctx context.Context, collection, experimentID string) error {
	if !validCollection(collection) {
		return ErrUnknownCollection
	}

	participantIDs, err := s.answerRepo.ParticipantIDs(ctx, experimentID)
	if err != nil {
		return err
	}

	if err := s.stageRepo.DeleteByExperiment(ctx, experimentID); err != nil {
		return err
	}
	if err := s.answerRepo.DeleteByExperiment(ctx, experimentID); err != nil {
		return err
	}
	if err := s.expRepo.Delete(ctx, collection, experimentID); err != nil {
		return err
	}
	if err := s.expCache.Delete(ctx, experimentID); err != nil {
		log.Printf("Failed to invalidate experiment cache for %s: %v", experimentID, err)
	}
	for _, participantID := range participantIDs {
		if err := s.answerCache.DeleteByParticipant(ctx, experimentID, participantID); err != nil {
			log.Printf("Failed to invalidate answer cache for %s/%s: %v", experimentID, participantID, err)
		}
	}

	if s.broadcaster != nil && collection == CollectionExperiments {
		s.broadcaster.BroadcastToAllParticipants(experimentID, "experiment_deleted", map[string]string{"experimentId": experimentID})
		s.broadcaster.DisconnectExperiment(experimentID)
	}
	return nil
}

// Get resolves an experiment and its stages in canonical order, serving from
// the cache when warm. Stage ids without a stored config are skipped rather
// than failing the read; the missing sub-document may simply not have synced
// yet.
func (s *ExperimentService) Get(ctx context.Context, collection, experimentID string) (*model.ExperimentBundle, error) {
	if !validCollection(collection) {
		return nil, ErrUnknownCollection
	}

	if collection == CollectionExperiments {
		if bundle, err := s.expCache.Get(ctx, experimentID); err == nil && bundle != nil {
			return bundle, nil
		}
	}

	exp, err := s.expRepo.GetByID(ctx, collection, experimentID)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, ErrExperimentNotFound
	}

	stages, err := s.stageRepo.ListByExperiment(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	stageMap := make(map[string]model.StageConfig, len(stages))
	for _, cfg := range stages {
		stageMap[cfg.ID] = *cfg
	}

	bundle := &model.ExperimentBundle{Experiment: *exp, Stages: make([]model.StageConfig, 0, len(exp.StageIDs))}
	for _, id := range exp.StageIDs {
		if cfg, ok := stageMap[id]; ok {
			bundle.Stages = append(bundle.Stages, cfg)
		}
	}

	if collection == CollectionExperiments {
		if err := s.expCache.Set(ctx, bundle); err != nil {
			log.Printf("Failed to cache experiment %s: %v", experimentID, err)
		}
	}
	return bundle, nil
}

// ListByCreator lists experiments created by the given user
func (s *ExperimentService) ListByCreator(ctx context.Context, collection, creator string) ([]*model.Experiment, error) {
	if !validCollection(collection) {
		return nil, ErrUnknownCollection
	}
	return s.expRepo.ListByCreator(ctx, collection, creator)
}

// GetStage returns one stage config of an experiment
func (s *ExperimentService) GetStage(ctx context.Context, experimentID, stageID string) (*model.StageConfig, error) {
	cfg, err := s.stageRepo.GetByID(ctx, experimentID, stageID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrStageNotFound
	}
	return cfg, nil
}
