package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/intentgraph/intentgraph/internal/agent"
	"github.com/intentgraph/intentgraph/internal/conversation"
	"github.com/intentgraph/intentgraph/internal/llm"
	"github.com/intentgraph/intentgraph/internal/middleware"
	"github.com/intentgraph/intentgraph/internal/models"
	"github.com/intentgraph/intentgraph/internal/security"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// Runner is the part of agent.Orchestrator the chat endpoint needs
type Runner interface {
	Run(ctx context.Context, userMessage string, history *conversation.Conversation, opts ...agent.RunOption) (*agent.Result, error)
}

// ChatHandler handles POST /api/v1/chat
type ChatHandler struct {
	runner   Runner
	guard    *Guard
	audit    *security.AuditLogger
	timeout  time.Duration
	maxSteps int
}

// NewChatHandler builds the chat endpoint. maxSteps is the server's step
// budget; a request may lower it but never raise it. 0 leaves it unbounded.
func NewChatHandler(runner Runner, guard *Guard, audit *security.AuditLogger, timeout time.Duration, maxSteps int) *ChatHandler {
	return &ChatHandler{runner: runner, guard: guard, audit: audit, timeout: timeout, maxSteps: maxSteps}
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		models.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	apiKey := middleware.GetAPIKey(r.Context())
	if reason, ok := h.guard.Check(req.Message, apiKey); !ok {
		models.WriteError(w, http.StatusBadRequest, reason)
		return
	}
	if reason, ok := h.guard.CheckHistory(req.History, apiKey); !ok {
		models.WriteError(w, http.StatusBadRequest, reason)
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	var opts []agent.RunOption
	if n, ok := h.stepBudget(req.MaxSteps); ok {
		opts = append(opts, agent.WithMaxSteps(n))
	}

	start := time.Now()
	res, err := h.runner.Run(ctx, req.Message, conversation.New(req.History...), opts...)
	h.auditRun(req.Message, apiKey, res, err, time.Since(start))

	switch {
	case err == nil:
		models.WriteJSON(w, http.StatusOK, chatResponse("success", res))
	case errors.Is(err, agent.ErrStepLimitExceeded) && res != nil:
		models.WriteJSON(w, http.StatusUnprocessableEntity, chatResponse("error", res))
	case errors.Is(err, context.DeadlineExceeded):
		models.WriteError(w, http.StatusGatewayTimeout, "run timed out")
	case errors.Is(err, llm.ErrOracleUnavailable):
		models.WriteError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Error().Err(err).Str("request_id", middleware.GetRequestID(r.Context())).Msg("chat run failed")
		models.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// stepBudget resolves the per-request max_steps against the server budget.
// Absent or 0 keeps the server default.
func (h *ChatHandler) stepBudget(requested *int) (int, bool) {
	if requested == nil || *requested == 0 {
		return 0, false
	}
	if h.maxSteps > 0 {
		return min(*requested, h.maxSteps), true
	}
	return *requested, true
}

func (h *ChatHandler) auditRun(prompt, apiKey string, res *agent.Result, err error, d time.Duration) {
	rec := security.RunRecord{APIKey: apiKey, Prompt: prompt, Duration: d, Err: err}
	if res != nil {
		rec.RunID = res.RunID
		rec.Intent = res.Intent.String()
		rec.Fallback = res.Classification.Fallback
		rec.Handler = res.Handler
		rec.Outcome = string(res.Outcome)
		rec.Steps = res.Steps
		rec.ToolsUsed = res.ToolsUsed
		rec.ToolCalls = security.ToolCalls(res.Conversation)
	}
	h.audit.LogRun(rec)
}

func chatResponse(status string, res *agent.Result) models.ChatResponse {
	transitions := make([]string, len(res.Transitions))
	for i, s := range res.Transitions {
		transitions[i] = string(s)
	}
	toolsUsed := res.ToolsUsed
	if toolsUsed == nil {
		toolsUsed = []string{}
	}
	return models.ChatResponse{
		Status:      status,
		RunID:       res.RunID,
		Intent:      res.Intent.String(),
		RawLabel:    res.Classification.Raw,
		Fallback:    res.Classification.Fallback,
		Handler:     res.Handler,
		Answer:      res.Answer,
		Outcome:     string(res.Outcome),
		Steps:       res.Steps,
		ToolsUsed:   toolsUsed,
		Transitions: transitions,
		DurationMs:  res.Duration.Milliseconds(),
		Transcript:  res.Conversation.Messages(),
	}
}
