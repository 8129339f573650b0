package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/intentgraph/intentgraph/internal/agent"
	"github.com/intentgraph/intentgraph/internal/llm"
	"github.com/intentgraph/intentgraph/internal/middleware"
	"github.com/intentgraph/intentgraph/internal/models"
	"github.com/intentgraph/intentgraph/internal/retrieval"
	"github.com/rs/zerolog/log"
)

// KnowledgeHandler handles the /api/v1/knowledge endpoints
type KnowledgeHandler struct {
	agent     *retrieval.KnowledgeAgent
	retriever *retrieval.Retriever
	guard     *Guard
}

func NewKnowledgeHandler(a *retrieval.KnowledgeAgent, r *retrieval.Retriever, guard *Guard) *KnowledgeHandler {
	return &KnowledgeHandler{agent: a, retriever: r, guard: guard}
}

// Ask handles POST /api/v1/knowledge/ask
func (h *KnowledgeHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req models.KnowledgeAskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		models.WriteError(w, http.StatusBadRequest, "question is required")
		return
	}
	if reason, ok := h.guard.Check(req.Question, middleware.GetAPIKey(r.Context())); !ok {
		models.WriteError(w, http.StatusBadRequest, reason)
		return
	}

	ans, err := h.agent.Ask(r.Context(), req.Question, req.Permission)
	switch {
	case err == nil:
		models.WriteJSON(w, http.StatusOK, answerResponse("success", req.Question, ans))
	case errors.Is(err, agent.ErrStepLimitExceeded) && ans != nil:
		models.WriteJSON(w, http.StatusUnprocessableEntity, answerResponse("error", req.Question, ans))
	case errors.Is(err, context.DeadlineExceeded):
		models.WriteError(w, http.StatusGatewayTimeout, "run timed out")
	case errors.Is(err, llm.ErrOracleUnavailable):
		models.WriteError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Error().Err(err).Str("request_id", middleware.GetRequestID(r.Context())).Msg("knowledge ask failed")
		models.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// Search handles POST /api/v1/knowledge/search without involving the oracle
func (h *KnowledgeHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req models.KnowledgeSearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		models.WriteError(w, http.StatusBadRequest, "query is required")
		return
	}
	req.SetDefaults()

	hits, err := h.retriever.Search(r.Context(), req.Query, req.Permission, req.K)
	if err != nil {
		log.Error().Err(err).Msg("knowledge search failed")
		models.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	out := make([]models.KnowledgeHit, len(hits))
	for i, hit := range hits {
		out[i] = models.KnowledgeHit{
			Ref:     hit.Document.Ref(),
			Source:  hit.Document.Source,
			ChunkID: hit.Document.ChunkID,
			Content: hit.Document.Content,
			Score:   hit.Score,
		}
	}
	models.WriteJSON(w, http.StatusOK, models.KnowledgeSearchResponse{Status: "success", Query: req.Query, Hits: out})
}

func answerResponse(status, question string, ans *retrieval.Answer) models.KnowledgeAnswerResponse {
	toolsUsed := ans.ToolsUsed
	if toolsUsed == nil {
		toolsUsed = []string{}
	}
	return models.KnowledgeAnswerResponse{
		Status:     status,
		Question:   question,
		Answer:     ans.Answer,
		Outcome:    string(ans.Outcome),
		Steps:      ans.Steps,
		ToolsUsed:  toolsUsed,
		Transcript: ans.Conversation.Messages(),
	}
}
