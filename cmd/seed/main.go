package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"deliberatelab/internal/model"
	"deliberatelab/internal/repository"
	"deliberatelab/internal/stage"

	"github.com/google/uuid"
)

func main() {
	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(ctx)

	db := client.Database("deliberatelab")
	expRepo := repository.NewExperimentRepo(db)
	stageRepo := repository.NewStageRepo(db)

	// Creator ID observed in logs
	creator := "experimenter_8263b93c"

	tos := stage.CreateTOSStage()
	tos.Name = "Study terms"
	tos.TOSLines = []string{
		"Your responses are collected for research purposes.",
		"You may leave the study at any time.",
	}

	profile := stage.CreateProfileStage()
	profile.Descriptions.PrimaryText = "Pick the profile other participants will see."

	survey := stage.CreateSurveyStage()
	survey.Name = "Opening survey"
	survey.Questions = []model.SurveyQuestion{
		stage.CreateTextQuestion("In a sentence, what do you hope to get out of this discussion?"),
		stage.CreateCheckQuestion("I have participated in a group deliberation before."),
		stage.CreateMultipleChoiceQuestion(
			"Would you support the proposal as written?",
			stage.CreateMultipleChoiceItem("Yes", 1),
			stage.CreateMultipleChoiceItem("No", 0),
		),
		stage.CreateScaleQuestion(
			"How confident are you in that position?",
			stage.CreateScaleItem(0, "Not at all"),
			stage.CreateScaleItem(5, "Somewhat"),
			stage.CreateScaleItem(10, "Completely"),
		),
	}

	stages := []model.StageConfig{tos, profile, survey}

	exp := &model.Experiment{
		ID: uuid.New().String(),
		Metadata: model.ExperimentMetadata{
			Name:        "Deliberation pilot",
			Description: "Seeded example with terms, profile, and survey stages.",
			Creator:     creator,
		},
	}
	for _, cfg := range stages {
		exp.StageIDs = append(exp.StageIDs, cfg.ID)
	}

	if err := expRepo.Upsert(ctx, "experiments", exp); err != nil {
		log.Fatalf("Failed to seed experiment: %v", err)
	}
	for i := range stages {
		stages[i].ExperimentID = exp.ID
		if err := stageRepo.Upsert(ctx, &stages[i]); err != nil {
			log.Fatalf("Failed to seed stage %s: %v", stages[i].ID, err)
		}
	}

	fmt.Printf("Seeded experiment %s with %d stages for %s\n", exp.ID, len(stages), creator)
}
