package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/flagvane/flagvane/internal/engine"
)

// maxBodyBytes caps evaluation request bodies. Batch requests with
// thousands of entities still fit comfortably.
const maxBodyBytes = 1 << 20

// batchEntity is one subject of a batch evaluation.
type batchEntity struct {
	EntityID      string         `json:"entityId"`
	EntityType    string         `json:"entityType,omitempty"`
	EntityContext map[string]any `json:"entityContext,omitempty"`
}

// batchRequest crosses entities with flags: every entity is evaluated
// against every flagId, then every flagKey, in input order.
type batchRequest struct {
	Entities    []batchEntity `json:"entities"`
	FlagIDs     []int64       `json:"flagIds,omitempty"`
	FlagKeys    []string      `json:"flagKeys,omitempty"`
	EnableDebug bool          `json:"enableDebug,omitempty"`
}

type batchResponse struct {
	EvaluationResults []engine.EvalResult `json:"evaluationResults"`
}

// handleEvaluation serves POST /api/v1/evaluation.
func (s *Server) handleEvaluation(w http.ResponseWriter, r *http.Request) {
	var req engine.EvalContext
	if !decodeBody(w, r, &req) {
		return
	}

	fields := map[string]string{}
	if strings.TrimSpace(req.EntityID) == "" {
		fields["entityId"] = "entityId is required"
	}
	if req.FlagID <= 0 && strings.TrimSpace(req.FlagKey) == "" {
		fields["flagId"] = "one of flagId or flagKey is required"
	}
	if len(fields) > 0 {
		ValidationError(w, r, "invalid evaluation request", fields)
		return
	}

	res := engine.Evaluate(s.cache.Current(), req)
	writeJSON(w, http.StatusOK, res)
}

// handleEvaluationBatch serves POST /api/v1/evaluation/batch.
func (s *Server) handleEvaluationBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	fields := map[string]string{}
	if len(req.Entities) == 0 {
		fields["entities"] = "at least one entity is required"
	}
	for _, e := range req.Entities {
		if strings.TrimSpace(e.EntityID) == "" {
			fields["entities"] = "every entity needs an entityId"
			break
		}
	}
	if len(req.FlagIDs) == 0 && len(req.FlagKeys) == 0 {
		fields["flagIds"] = "one of flagIds or flagKeys is required"
	}
	if len(fields) > 0 {
		ValidationError(w, r, "invalid batch evaluation request", fields)
		return
	}

	reqs := make([]engine.EvalContext, 0, len(req.Entities)*(len(req.FlagIDs)+len(req.FlagKeys)))
	for _, e := range req.Entities {
		for _, id := range req.FlagIDs {
			reqs = append(reqs, engine.EvalContext{
				FlagID:        id,
				EntityID:      e.EntityID,
				EntityType:    e.EntityType,
				EntityContext: e.EntityContext,
				EnableDebug:   req.EnableDebug,
			})
		}
		for _, key := range req.FlagKeys {
			reqs = append(reqs, engine.EvalContext{
				FlagKey:       key,
				EntityID:      e.EntityID,
				EntityType:    e.EntityType,
				EntityContext: e.EntityContext,
				EnableDebug:   req.EnableDebug,
			})
		}
	}

	results := engine.EvaluateBatch(s.cache.Current(), reqs)
	writeJSON(w, http.StatusOK, batchResponse{EvaluationResults: results})
}

// decodeBody decodes a size-limited JSON body into v, writing the
// error response itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decodeJSON(w, r, v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			RequestTooLargeError(w, r, "request body too large")
			return false
		}
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON body")
		return false
	}
	return true
}
