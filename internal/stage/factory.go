package stage

import (
	"deliberatelab/internal/model"

	"github.com/google/uuid"
)

// CreateStage returns a default config for the given kind with a fresh
// unique id. The result always satisfies the kind's config schema.
func CreateStage(kind model.StageKind) model.StageConfig {
	return Lookup(kind).New()
}

func baseStage(kind model.StageKind, name string) model.StageConfig {
	return model.StageConfig{
		ID:           uuid.New().String(),
		Kind:         kind,
		Name:         name,
		Descriptions: model.StageTextConfig{},
	}
}

func newTOSStage() model.StageConfig {
	cfg := baseStage(model.StageKindTOS, "Terms of service")
	cfg.TOSLines = []string{}
	return cfg
}

func newInfoStage() model.StageConfig {
	cfg := baseStage(model.StageKindInfo, "Info")
	cfg.InfoLines = []string{}
	return cfg
}

func newProfileStage() model.StageConfig {
	return baseStage(model.StageKindProfile, "Set profile")
}

func newSurveyStage() model.StageConfig {
	cfg := baseStage(model.StageKindSurvey, "Survey")
	cfg.Questions = []model.SurveyQuestion{}
	return cfg
}

// CreateTOSStage returns a default terms-of-service stage
func CreateTOSStage() model.StageConfig { return newTOSStage() }

// CreateInfoStage returns a default informational stage
func CreateInfoStage() model.StageConfig { return newInfoStage() }

// CreateProfileStage returns a default profile stage
func CreateProfileStage() model.StageConfig { return newProfileStage() }

// CreateSurveyStage returns a default survey stage with zero questions
func CreateSurveyStage() model.StageConfig { return newSurveyStage() }

// CreateTextQuestion returns a freeform text question
func CreateTextQuestion(title string) model.SurveyQuestion {
	return model.SurveyQuestion{
		ID:            uuid.New().String(),
		Kind:          model.SurveyQuestionKindText,
		QuestionTitle: title,
	}
}

// CreateCheckQuestion returns a checkbox question
func CreateCheckQuestion(title string) model.SurveyQuestion {
	return model.SurveyQuestion{
		ID:            uuid.New().String(),
		Kind:          model.SurveyQuestionKindCheck,
		QuestionTitle: title,
	}
}

// CreateMultipleChoiceQuestion returns a multiple choice question with the
// given options
func CreateMultipleChoiceQuestion(title string, options ...model.MultipleChoiceItem) model.SurveyQuestion {
	if options == nil {
		options = []model.MultipleChoiceItem{}
	}
	return model.SurveyQuestion{
		ID:                    uuid.New().String(),
		Kind:                  model.SurveyQuestionKindMultipleChoice,
		QuestionTitle:         title,
		MultipleChoiceOptions: options,
	}
}

// CreateMultipleChoiceItem returns one option for a multiple choice question
func CreateMultipleChoiceItem(text string, points float64) model.MultipleChoiceItem {
	return model.MultipleChoiceItem{
		ID:     uuid.New().String(),
		Text:   text,
		Points: points,
	}
}

// CreateScaleQuestion returns a scale question with the given points
func CreateScaleQuestion(title string, options ...model.ScaleItem) model.SurveyQuestion {
	if options == nil {
		options = []model.ScaleItem{}
	}
	return model.SurveyQuestion{
		ID:            uuid.New().String(),
		Kind:          model.SurveyQuestionKindScale,
		QuestionTitle: title,
		ScaleOptions:  options,
	}
}

// CreateScaleItem returns one point for a scale question
func CreateScaleItem(value float64, description string) model.ScaleItem {
	return model.ScaleItem{
		ID:          uuid.New().String(),
		Value:       value,
		Description: description,
	}
}
