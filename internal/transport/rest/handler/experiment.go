package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"deliberatelab/internal/model"
	"deliberatelab/internal/service"
	"deliberatelab/internal/transport/rest/middleware"
	"deliberatelab/internal/validation"
)

var validate = validator.New()

// ExperimentHandler handles experiment and template endpoints
type ExperimentHandler struct {
	expSvc *service.ExperimentService
}

// NewExperimentHandler creates a new experiment handler
func NewExperimentHandler(expSvc *service.ExperimentService) *ExperimentHandler {
	return &ExperimentHandler{expSvc: expSvc}
}

// ExperimentMetadataInput is the writable subset of experiment metadata
type ExperimentMetadataInput struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// WriteExperimentRequest is the request body for creating or updating an
// experiment. Stages stay raw so the strict per-kind schemas validate the
// exact client payload.
type WriteExperimentRequest struct {
	ID       string                  `json:"id"`
	Metadata ExperimentMetadataInput `json:"metadata" validate:"required"`
	Stages   []json.RawMessage       `json:"stages"`
}

func (h *ExperimentHandler) write(w http.ResponseWriter, r *http.Request, collection string) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req WriteExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	exp := model.Experiment{
		ID: req.ID,
		Metadata: model.ExperimentMetadata{
			Name:        req.Metadata.Name,
			Description: req.Metadata.Description,
		},
	}

	saved, err := h.expSvc.WriteExperiment(r.Context(), collection, exp, req.Stages, userID)
	if err != nil {
		var verr *validation.ValidationError
		if errors.As(err, &verr) {
			writeValidationError(w, verr)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, saved)
}

// Write handles POST /v1/experiments
func (h *ExperimentHandler) Write(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, service.CollectionExperiments)
}

// WriteTemplate handles POST /v1/templates
func (h *ExperimentHandler) WriteTemplate(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, service.CollectionTemplates)
}

func (h *ExperimentHandler) list(w http.ResponseWriter, r *http.Request, collection string) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	experiments, err := h.expSvc.ListByCreator(r.Context(), collection, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"experiments": experiments})
}

// List handles GET /v1/experiments
func (h *ExperimentHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, service.CollectionExperiments)
}

// ListTemplates handles GET /v1/templates
func (h *ExperimentHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, service.CollectionTemplates)
}

func (h *ExperimentHandler) get(w http.ResponseWriter, r *http.Request, collection string) {
	experimentID := mux.Vars(r)["experimentId"]

	bundle, err := h.expSvc.Get(r.Context(), collection, experimentID)
	if err == service.ErrExperimentNotFound {
		writeError(w, http.StatusNotFound, "experiment not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, bundle)
}

// Get handles GET /v1/experiments/{experimentId}
func (h *ExperimentHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, service.CollectionExperiments)
}

// GetTemplate handles GET /v1/templates/{experimentId}
func (h *ExperimentHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, service.CollectionTemplates)
}

func (h *ExperimentHandler) delete(w http.ResponseWriter, r *http.Request, collection string) {
	experimentID := mux.Vars(r)["experimentId"]

	if err := h.expSvc.DeleteExperiment(r.Context(), collection, experimentID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"experimentId": experimentID})
}

// Delete handles DELETE /v1/experiments/{experimentId}
func (h *ExperimentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, service.CollectionExperiments)
}

// DeleteTemplate handles DELETE /v1/templates/{experimentId}
func (h *ExperimentHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, service.CollectionTemplates)
}

// GetStage handles GET /v1/experiments/{experimentId}/stages/{stageId}
func (h *ExperimentHandler) GetStage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	cfg, err := h.expSvc.GetStage(r.Context(), vars["experimentId"], vars["stageId"])
	if err == service.ErrStageNotFound {
		writeError(w, http.StatusNotFound, "stage not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}
