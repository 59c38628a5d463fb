package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"deliberatelab/internal/model"
)

// AnswerRepo handles MongoDB operations for participant stage answers
type AnswerRepo interface {
	Upsert(ctx context.Context, ans *model.StageParticipantAnswer) error
	Get(ctx context.Context, experimentID, participantID, stageID string) (*model.StageParticipantAnswer, error)
	ListByParticipant(ctx context.Context, experimentID, participantID string) ([]*model.StageParticipantAnswer, error)
	ParticipantIDs(ctx context.Context, experimentID string) ([]string, error)
	DeleteByExperiment(ctx context.Context, experimentID string) error
}

type answerRepo struct {
	collection *mongo.Collection
}

// NewAnswerRepo creates a new answer repository
func NewAnswerRepo(db *mongo.Database) AnswerRepo {
	return &answerRepo{collection: db.Collection("participantAnswers")}
}

func answerKey(experimentID, participantID, stageID string) string {
	return experimentID + "/" + participantID + "/" + stageID
}

func (r *answerRepo) Upsert(ctx context.Context, ans *model.StageParticipantAnswer) error {
	ans.UpdatedAt = time.Now()
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": answerKey(ans.ExperimentID, ans.ParticipantID, ans.StageID)},
		bson.M{"$set": ans},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *answerRepo) Get(ctx context.Context, experimentID, participantID, stageID string) (*model.StageParticipantAnswer, error) {
	var ans model.StageParticipantAnswer
	err := r.collection.FindOne(ctx, bson.M{"_id": answerKey(experimentID, participantID, stageID)}).Decode(&ans)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ans, nil
}

// ParticipantIDs returns the distinct participants with stored answers for
// an experiment
func (r *answerRepo) ParticipantIDs(ctx context.Context, experimentID string) ([]string, error) {
	values, err := r.collection.Distinct(ctx, "participantId", bson.M{"experimentId": experimentID})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *answerRepo) DeleteByExperiment(ctx context.Context, experimentID string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"experimentId": experimentID})
	return err
}

func (r *answerRepo) ListByParticipant(ctx context.Context, experimentID, participantID string) ([]*model.StageParticipantAnswer, error) {
	cursor, err := r.collection.Find(ctx, bson.M{
		"experimentId":  experimentID,
		"participantId": participantID,
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var answers []*model.StageParticipantAnswer
	if err := cursor.All(ctx, &answers); err != nil {
		return nil, err
	}
	return answers, nil
}
