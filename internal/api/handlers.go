package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	apperrors "design-workers/internal/common/errors"
	"design-workers/internal/knowledge"
	"design-workers/internal/models"

	"github.com/go-chi/chi/v5"
)

type groundingRequest struct {
	Prompt string `json:"prompt"`
	UserID string `json:"userId,omitempty"`
}

type updateKnowledgeRequest struct {
	Title        *string         `json:"title,omitempty"`
	Body         json.RawMessage `json:"body,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
	QualityScore *float64        `json:"qualityScore,omitempty"`
	Embedding    []float32       `json:"embedding,omitempty"`
}

type deprecateRequest struct {
	Reason string `json:"reason"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   s.now().UTC().Format(time.RFC3339),
	})
}

func (s *server) handleReady(w http.ResponseWriter, r *http.Request) {
	failed := map[string]string{}
	for name, check := range s.checks {
		if err := check(r.Context()); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		s.logger.Warn("readiness check failed", map[string]interface{}{"failed": failed})
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unavailable",
			"failed": failed,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   s.now().UTC().Format(time.RFC3339),
	})
}

func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.generator.Generate(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleGrounding(w http.ResponseWriter, r *http.Request) {
	if s.retriever == nil {
		s.unavailable(w, "grounding retrieval")
		return
	}
	var req groundingRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		s.writeError(w, apperrors.NewInvalidRequestError("prompt is required"))
		return
	}
	g, err := s.retriever.Retrieve(r.Context(), req.Prompt, req.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *server) handleCreateKnowledge(w http.ResponseWriter, r *http.Request) {
	if s.knowledge == nil {
		s.unavailable(w, "knowledge store")
		return
	}
	var obj models.KnowledgeObject
	if !s.decode(w, r, &obj) {
		return
	}
	created, err := s.knowledge.Create(r.Context(), obj)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *server) handleGetKnowledge(w http.ResponseWriter, r *http.Request) {
	if s.knowledge == nil {
		s.unavailable(w, "knowledge store")
		return
	}
	obj, err := s.knowledge.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

func (s *server) handleUpdateKnowledge(w http.ResponseWriter, r *http.Request) {
	if s.knowledge == nil {
		s.unavailable(w, "knowledge store")
		return
	}
	id := chi.URLParam(r, "id")
	var req updateKnowledgeRequest
	if !s.decode(w, r, &req) {
		return
	}

	ch := knowledge.Changes{
		Title:        req.Title,
		Tags:         req.Tags,
		QualityScore: req.QualityScore,
		Embedding:    req.Embedding,
	}
	if len(req.Body) > 0 {
		// The body type follows the stored kind, which the request does not carry.
		prev, err := s.knowledge.Get(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		body, err := models.DecodeBody(prev.Kind, req.Body)
		if err != nil {
			s.writeError(w, apperrors.NewKnowledgeValidationFailedError(err.Error()))
			return
		}
		ch.Body = body
	}

	obj, err := s.knowledge.Update(r.Context(), id, ch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, obj)
}

func (s *server) handlePromoteKnowledge(w http.ResponseWriter, r *http.Request) {
	if s.knowledge == nil {
		s.unavailable(w, "knowledge store")
		return
	}
	obj, err := s.knowledge.Promote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

func (s *server) handleDeprecateKnowledge(w http.ResponseWriter, r *http.Request) {
	if s.knowledge == nil {
		s.unavailable(w, "knowledge store")
		return
	}
	var req deprecateRequest
	if !s.decodeOptional(w, r, &req) {
		return
	}
	if req.Reason == "" {
		req.Reason = "deprecated via api"
	}
	obj, err := s.knowledge.Deprecate(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

func (s *server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	if s.knowledge == nil {
		s.unavailable(w, "knowledge store")
		return
	}
	prefs, err := s.knowledge.Preferences(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// handlePutPreferences upserts the given weights and answers with the
// user's full weight set. Cached grounding for the user keeps its old
// ranking until the entry expires.
func (s *server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	if s.knowledge == nil {
		s.unavailable(w, "knowledge store")
		return
	}
	userID := chi.URLParam(r, "userId")
	var req models.PreferenceWeights
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Tags)+len(req.Kinds) == 0 {
		s.writeError(w, apperrors.NewInvalidRequestError("at least one tag or kind weight is required"))
		return
	}
	for kind := range req.Kinds {
		if !models.KnowledgeKind(kind).Valid() {
			s.writeError(w, apperrors.NewInvalidRequestError(fmt.Sprintf("unknown kind %q", kind)))
			return
		}
	}

	for _, tag := range sortedWeightKeys(req.Tags) {
		if err := s.knowledge.SetPreference(r.Context(), userID, "tag", tag, req.Tags[tag]); err != nil {
			s.writeError(w, err)
			return
		}
	}
	for _, kind := range sortedWeightKeys(req.Kinds) {
		if err := s.knowledge.SetPreference(r.Context(), userID, "kind", kind, req.Kinds[kind]); err != nil {
			s.writeError(w, err)
			return
		}
	}

	prefs, err := s.knowledge.Preferences(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func sortedWeightKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// decode reads a JSON body into v and answers 400 on failure.
func (s *server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, apperrors.NewInvalidRequestError(fmt.Sprintf("invalid request body: %v", err)))
		return false
	}
	return true
}

// decodeOptional is decode for routes whose body may be empty.
func (s *server) decodeOptional(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, apperrors.NewInvalidRequestError(fmt.Sprintf("invalid request body: %v", err)))
		return false
	}
	return true
}

func (s *server) unavailable(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusServiceUnavailable, errorResponse{
		Code:    "SERVICE_UNAVAILABLE",
		Message: what + " is not configured",
	})
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	se, ok := apperrors.AsStandardError(err)
	if !ok {
		s.logger.Error("unhandled error", map[string]interface{}{"error": err})
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "Unexpected error",
		})
		return
	}

	status := statusFor(se)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", map[string]interface{}{
			"code":    string(se.Code),
			"details": se.Details,
		})
	}
	writeJSON(w, status, errorResponse{
		Code:    string(se.Code),
		Message: se.Message,
		Details: se.Details,
	})
}

func statusFor(se *apperrors.StandardError) int {
	switch se.Code {
	case apperrors.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case apperrors.ErrCodeKnowledgeValidationFailed:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeKnowledgeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeLLMTimeout:
		return http.StatusGatewayTimeout
	}
	switch apperrors.GetErrorCategory(se.Code) {
	case "data_access", "external_api", "notification":
		return http.StatusServiceUnavailable
	case "pipeline":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
