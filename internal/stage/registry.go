// Package stage is the single source of truth for the closed set of stage
// kinds. Every per-kind schema (configuration and participant answer) and
// every default constructor lives in the registry below; the factory,
// validators, editor and services all dispatch through it. Adding a stage
// kind means adding one registry entry and nothing else.
package stage

import (
	"encoding/json"
	"errors"
	"fmt"

	"deliberatelab/internal/model"
	"deliberatelab/internal/validation"
)

// ErrNoAnswer is returned when validating an answer for a stage kind that
// takes no participant answer (INFO).
var ErrNoAnswer = errors.New("stage kind takes no participant answer")

// Spec describes one stage kind
type Spec struct {
	Kind model.StageKind

	// ConfigSchema validates a stage configuration payload.
	ConfigSchema *validation.Object
	// AnswerSchema validates a participant answer payload. Nil means the
	// kind takes no answer.
	AnswerSchema *validation.Object

	// New returns a default config for this kind. The result always passes
	// ConfigSchema.
	New func() model.StageConfig
}

func descriptionsSchema() *validation.Object {
	return &validation.Object{Fields: map[string]validation.Field{
		"primaryText": {Schema: validation.String{}, Optional: true},
		"infoText":    {Schema: validation.String{}, Optional: true},
		"helpText":    {Schema: validation.String{}, Optional: true},
	}}
}

func baseConfigFields(kind model.StageKind) map[string]validation.Field {
	return map[string]validation.Field{
		"id":           {Schema: validation.String{MinLen: 1}},
		"kind":         {Schema: validation.Literal{Value: string(kind)}},
		"name":         {Schema: validation.String{MinLen: 1}},
		"descriptions": {Schema: descriptionsSchema()},
	}
}

func questionSchema() validation.Union {
	multipleChoiceItem := &validation.Object{Fields: map[string]validation.Field{
		"id":     {Schema: validation.String{MinLen: 1}},
		"text":   {Schema: validation.String{}},
		"points": {Schema: validation.Number{}},
	}}
	scaleItem := &validation.Object{Fields: map[string]validation.Field{
		"id":          {Schema: validation.String{MinLen: 1}},
		"value":       {Schema: validation.Number{}},
		"description": {Schema: validation.String{}},
	}}

	base := func(kind model.SurveyQuestionKind) map[string]validation.Field {
		return map[string]validation.Field{
			"id":            {Schema: validation.String{MinLen: 1}},
			"kind":          {Schema: validation.Literal{Value: string(kind)}},
			"questionTitle": {Schema: validation.String{}},
		}
	}

	mcFields := base(model.SurveyQuestionKindMultipleChoice)
	mcFields["options"] = validation.Field{Schema: validation.Array{Elem: multipleChoiceItem}}
	scaleFields := base(model.SurveyQuestionKindScale)
	scaleFields["options"] = validation.Field{Schema: validation.Array{Elem: scaleItem}}

	return validation.Union{Tag: "kind", Variants: map[string]*validation.Object{
		string(model.SurveyQuestionKindText):           {Fields: base(model.SurveyQuestionKindText)},
		string(model.SurveyQuestionKindCheck):          {Fields: base(model.SurveyQuestionKindCheck)},
		string(model.SurveyQuestionKindMultipleChoice): {Fields: mcFields},
		string(model.SurveyQuestionKindScale):          {Fields: scaleFields},
	}}
}

func surveyAnswerSchema() validation.Union {
	base := func(kind model.SurveyQuestionKind, answer validation.Schema) *validation.Object {
		return &validation.Object{Fields: map[string]validation.Field{
			"id":     {Schema: validation.String{MinLen: 1}},
			"kind":   {Schema: validation.Literal{Value: string(kind)}},
			"answer": {Schema: answer},
		}}
	}
	return validation.Union{Tag: "kind", Variants: map[string]*validation.Object{
		string(model.SurveyQuestionKindText):           base(model.SurveyQuestionKindText, validation.String{}),
		string(model.SurveyQuestionKindCheck):          base(model.SurveyQuestionKindCheck, validation.Bool{}),
		string(model.SurveyQuestionKindMultipleChoice): base(model.SurveyQuestionKindMultipleChoice, validation.String{MinLen: 1}),
		string(model.SurveyQuestionKindScale):          base(model.SurveyQuestionKindScale, validation.String{MinLen: 1}),
	}}
}

var registry = map[model.StageKind]Spec{
	model.StageKindTOS: {
		Kind: model.StageKindTOS,
		ConfigSchema: func() *validation.Object {
			fields := baseConfigFields(model.StageKindTOS)
			fields["tosLines"] = validation.Field{Schema: validation.Array{Elem: validation.String{}}, Optional: true}
			return &validation.Object{Fields: fields}
		}(),
		AnswerSchema: &validation.Object{Fields: map[string]validation.Field{
			"kind":       {Schema: validation.Literal{Value: string(model.StageKindTOS)}},
			"acceptedAt": {Schema: validation.Number{}},
		}},
		New: newTOSStage,
	},
	model.StageKindInfo: {
		Kind: model.StageKindInfo,
		ConfigSchema: func() *validation.Object {
			fields := baseConfigFields(model.StageKindInfo)
			fields["infoLines"] = validation.Field{Schema: validation.Array{Elem: validation.String{}}, Optional: true}
			return &validation.Object{Fields: fields}
		}(),
		AnswerSchema: nil,
		New:          newInfoStage,
	},
	model.StageKindProfile: {
		Kind:         model.StageKindProfile,
		ConfigSchema: &validation.Object{Fields: baseConfigFields(model.StageKindProfile)},
		AnswerSchema: &validation.Object{Fields: map[string]validation.Field{
			"kind":      {Schema: validation.Literal{Value: string(model.StageKindProfile)}},
			"name":      {Schema: validation.String{}},
			"pronouns":  {Schema: validation.String{}},
			"avatarUrl": {Schema: validation.String{}},
		}},
		New: newProfileStage,
	},
	model.StageKindSurvey: {
		Kind: model.StageKindSurvey,
		ConfigSchema: func() *validation.Object {
			fields := baseConfigFields(model.StageKindSurvey)
			fields["questions"] = validation.Field{Schema: validation.Array{Elem: questionSchema()}}
			return &validation.Object{Fields: fields}
		}(),
		AnswerSchema: &validation.Object{Fields: map[string]validation.Field{
			"kind":      {Schema: validation.Literal{Value: string(model.StageKindSurvey)}},
			"answerMap": {Schema: validation.MapOf{MinKeyLen: 1, Elem: surveyAnswerSchema()}},
		}},
		New: newSurveyStage,
	},
}

// Kinds returns every registered stage kind in execution-typical order.
func Kinds() []model.StageKind {
	return []model.StageKind{
		model.StageKindTOS,
		model.StageKindInfo,
		model.StageKindProfile,
		model.StageKindSurvey,
	}
}

// Lookup returns the spec for a kind. Referencing an unregistered kind is a
// programmer error, not a runtime condition, so it panics.
func Lookup(kind model.StageKind) Spec {
	spec, ok := registry[kind]
	if !ok {
		panic(fmt.Sprintf("stage: unregistered kind %q", kind))
	}
	return spec
}

// ValidateConfig validates a raw stage configuration payload, dispatching on
// the payload's own kind discriminator. An unknown kind in external input is
// a validation fault, not a panic.
func ValidateConfig(raw []byte) error {
	var head struct {
		Kind model.StageKind `json:"kind"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return &validation.ValidationError{Faults: []validation.Fault{{Path: "", Reason: "malformed JSON: " + err.Error()}}}
	}
	spec, ok := registry[head.Kind]
	if !ok {
		return &validation.ValidationError{Faults: []validation.Fault{{Path: "kind", Reason: fmt.Sprintf("unknown stage kind %q", head.Kind)}}}
	}
	return validation.Check(spec.ConfigSchema, raw)
}

// ValidateConfigValue validates an in-memory stage config by round-tripping
// it through its wire form, so local mutations face the same strict schema
// as remote writers.
func ValidateConfigValue(cfg model.StageConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return ValidateConfig(raw)
}

// ValidateAnswer validates a raw participant answer payload against the
// answer schema of the given stage kind.
func ValidateAnswer(kind model.StageKind, raw []byte) error {
	spec := Lookup(kind)
	if spec.AnswerSchema == nil {
		return ErrNoAnswer
	}
	return validation.Check(spec.AnswerSchema, raw)
}
