package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"deliberatelab/internal/model"
)

// StageRepo handles MongoDB operations for stage sub-documents. Each stage
// is its own document so edits sync incrementally instead of rewriting one
// large experiment document. Stage ids are unique per experiment, so the
// document key combines both.
type StageRepo interface {
	Upsert(ctx context.Context, stage *model.StageConfig) error
	GetByID(ctx context.Context, experimentID, stageID string) (*model.StageConfig, error)
	ListByExperiment(ctx context.Context, experimentID string) ([]*model.StageConfig, error)
	Delete(ctx context.Context, experimentID, stageID string) error
	DeleteByExperiment(ctx context.Context, experimentID string) error
}

type stageRepo struct {
	collection *mongo.Collection
}

// NewStageRepo creates a new stage repository
func NewStageRepo(db *mongo.Database) StageRepo {
	return &stageRepo{collection: db.Collection("stages")}
}

func stageKey(experimentID, stageID string) string {
	return experimentID + "/" + stageID
}

func (r *stageRepo) Upsert(ctx context.Context, stage *model.StageConfig) error {
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": stageKey(stage.ExperimentID, stage.ID)},
		bson.M{"$set": stage},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *stageRepo) GetByID(ctx context.Context, experimentID, stageID string) (*model.StageConfig, error) {
	var stage model.StageConfig
	err := r.collection.FindOne(ctx, bson.M{"_id": stageKey(experimentID, stageID)}).Decode(&stage)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

func (r *stageRepo) ListByExperiment(ctx context.Context, experimentID string) ([]*model.StageConfig, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"experimentId": experimentID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var stages []*model.StageConfig
	if err := cursor.All(ctx, &stages); err != nil {
		return nil, err
	}
	return stages, nil
}

func (r *stageRepo) Delete(ctx context.Context, experimentID, stageID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": stageKey(experimentID, stageID)})
	return err
}

func (r *stageRepo) DeleteByExperiment(ctx context.Context, experimentID string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"experimentId": experimentID})
	return err
}
