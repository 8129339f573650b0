package models_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/intentgraph/intentgraph/internal/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	models.WriteError(rr, http.StatusBadRequest, "message is required")

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "error" || body.Code != 400 || body.Message != "message is required" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestWriteJSONLogsEncodeFailure(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	rr := httptest.NewRecorder()
	models.WriteJSON(rr, http.StatusOK, map[string]any{"answer": make(chan int)})

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d", rr.Code)
	}
	if !strings.Contains(buf.String(), "failed to encode response") {
		t.Errorf("encode failure not logged: %q", buf.String())
	}
}
