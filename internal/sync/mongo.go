package sync

import (
	"context"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"deliberatelab/internal/model"
)

// MongoWatcher implements Watcher over MongoDB change streams. Each watch
// delivers an initial full snapshot from a query, then incremental change
// events from the stream.
type MongoWatcher struct {
	db *mongo.Database
}

// NewMongoWatcher creates a watcher on the given database
func NewMongoWatcher(db *mongo.Database) *MongoWatcher {
	return &MongoWatcher{db: db}
}

type changeStreamEvent struct {
	OperationType string            `bson:"operationType"`
	FullDocument  model.StageConfig `bson:"fullDocument"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
}

// WatchExperiment subscribes to one experiment document
func (w *MongoWatcher) WatchExperiment(ctx context.Context, experimentID string) (<-chan ExperimentEvent, func(), error) {
	coll := w.db.Collection("experiments")

	streamCtx, cancel := context.WithCancel(ctx)
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "documentKey._id", Value: experimentID}}}},
	}
	stream, err := coll.Watch(streamCtx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, nil, err
	}

	ch := make(chan ExperimentEvent, 1)

	// Initial snapshot after the stream opens, so no commit falls between
	// the two.
	var exp model.Experiment
	err = coll.FindOne(streamCtx, bson.M{"_id": experimentID}).Decode(&exp)
	if err != nil && err != mongo.ErrNoDocuments {
		stream.Close(context.Background())
		cancel()
		return nil, nil, err
	}
	if err == nil {
		ch <- ExperimentEvent{Experiment: exp}
	}

	go func() {
		defer close(ch)
		defer stream.Close(context.Background())
		for stream.Next(streamCtx) {
			var ev struct {
				FullDocument model.Experiment `bson:"fullDocument"`
			}
			if err := stream.Decode(&ev); err != nil {
				log.Printf("experiment change stream decode error: %v", err)
				continue
			}
			if ev.FullDocument.ID == "" {
				continue
			}
			select {
			case ch <- ExperimentEvent{Experiment: ev.FullDocument}:
			case <-streamCtx.Done():
				return
			}
		}
	}()

	return ch, cancel, nil
}

// WatchStages subscribes to the stage sub-documents of one experiment. The
// watcher keeps the current document set so every event can carry both the
// incremental changes and the full set.
func (w *MongoWatcher) WatchStages(ctx context.Context, experimentID string) (<-chan StageEvent, func(), error) {
	coll := w.db.Collection("stages")

	streamCtx, cancel := context.WithCancel(ctx)
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "$or", Value: bson.A{
				bson.D{{Key: "fullDocument.experimentId", Value: experimentID}},
				bson.D{{Key: "operationType", Value: "delete"}},
			}},
		}}},
	}
	stream, err := coll.Watch(streamCtx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, nil, err
	}

	cursor, err := coll.Find(streamCtx, bson.M{"experimentId": experimentID})
	if err != nil {
		stream.Close(context.Background())
		cancel()
		return nil, nil, err
	}
	var initial []model.StageConfig
	if err := cursor.All(streamCtx, &initial); err != nil {
		stream.Close(context.Background())
		cancel()
		return nil, nil, err
	}

	docs := make(map[string]model.StageConfig, len(initial))
	keys := make(map[string]string, len(initial)) // mongo _id -> stage id
	for _, cfg := range initial {
		docs[cfg.ID] = cfg
		keys[experimentID+"/"+cfg.ID] = cfg.ID
	}

	ch := make(chan StageEvent, 1)
	// Initial snapshot carries no changes; consumers apply the full set.
	ch <- StageEvent{Docs: stageDocs(docs)}

	go func() {
		defer close(ch)
		defer stream.Close(context.Background())
		for stream.Next(streamCtx) {
			var ev changeStreamEvent
			if err := stream.Decode(&ev); err != nil {
				log.Printf("stage change stream decode error: %v", err)
				continue
			}

			var out StageEvent
			switch ev.OperationType {
			case "delete":
				stageID, ok := keys[ev.DocumentKey.ID]
				if !ok {
					continue
				}
				delete(docs, stageID)
				delete(keys, ev.DocumentKey.ID)
				out = StageEvent{
					Changes: []StageChange{{Type: ChangeRemove, StageID: stageID}},
					Docs:    stageDocs(docs),
				}
			default:
				cfg := ev.FullDocument
				if cfg.ID == "" {
					continue
				}
				docs[cfg.ID] = cfg
				keys[ev.DocumentKey.ID] = cfg.ID
				out = StageEvent{
					Changes: []StageChange{{Type: ChangeUpsert, Stage: cfg}},
					Docs:    stageDocs(docs),
				}
			}
			select {
			case ch <- out:
			case <-streamCtx.Done():
				return
			}
		}
	}()

	return ch, cancel, nil
}

func stageDocs(docs map[string]model.StageConfig) []model.StageConfig {
	out := make([]model.StageConfig, 0, len(docs))
	for _, cfg := range docs {
		out = append(out, cfg)
	}
	return out
}
