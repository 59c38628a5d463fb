package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"deliberatelab/internal/model"
)

// ExperimentRepo handles MongoDB operations for experiment documents. The
// collection name selects between live experiments and templates.
type ExperimentRepo interface {
	Upsert(ctx context.Context, collection string, exp *model.Experiment) error
	GetByID(ctx context.Context, collection, id string) (*model.Experiment, error)
	ListByCreator(ctx context.Context, collection, creator string) ([]*model.Experiment, error)
	Delete(ctx context.Context, collection, id string) error
}

type experimentRepo struct {
	db *mongo.Database
}

// NewExperimentRepo creates a new experiment repository
func NewExperimentRepo(db *mongo.Database) ExperimentRepo {
	return &experimentRepo{db: db}
}

func (r *experimentRepo) Upsert(ctx context.Context, collection string, exp *model.Experiment) error {
	exp.Metadata.DateModified = time.Now()
	if exp.Metadata.DateCreated.IsZero() {
		exp.Metadata.DateCreated = exp.Metadata.DateModified
	}

	_, err := r.db.Collection(collection).ReplaceOne(
		ctx,
		bson.M{"_id": exp.ID},
		exp,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (r *experimentRepo) GetByID(ctx context.Context, collection, id string) (*model.Experiment, error) {
	var exp model.Experiment
	err := r.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&exp)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &exp, nil
}

func (r *experimentRepo) ListByCreator(ctx context.Context, collection, creator string) ([]*model.Experiment, error) {
	cursor, err := r.db.Collection(collection).Find(ctx, bson.M{"metadata.creator": creator})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var experiments []*model.Experiment
	if err := cursor.All(ctx, &experiments); err != nil {
		return nil, err
	}
	return experiments, nil
}

func (r *experimentRepo) Delete(ctx context.Context, collection, id string) error {
	_, err := r.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	return err
}
