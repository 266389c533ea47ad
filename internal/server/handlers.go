package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/spektr-org/finchat/engine"
	"github.com/spektr-org/finchat/helpers"
	"github.com/spektr-org/finchat/internal/chat"
	"github.com/spektr-org/finchat/internal/common"
	"github.com/spektr-org/finchat/internal/store"
	"github.com/spektr-org/finchat/translator"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// promptPreviewLen is how much of the system prompt GET /config shows.
const promptPreviewLen = 100

// ============================================================================
// REQUEST / RESPONSE BODIES
// ============================================================================

type chatRequest struct {
	Message             string            `json:"message" validate:"required,max=4000"`
	ConversationHistory []translator.Turn `json:"conversation_history" validate:"max=100,dive"`
}

type chatResponse struct {
	Success             bool              `json:"success"`
	Kind                string            `json:"kind,omitempty"`
	Response            string            `json:"response"`
	HTML                string            `json:"html,omitempty"`
	ConversationHistory []translator.Turn `json:"conversation_history"`
	Result              *engine.Result    `json:"result,omitempty"`
	Model               string            `json:"model,omitempty"`
	RequestID           string            `json:"request_id,omitempty"`
	Error               string            `json:"error,omitempty"`
}

type simpleRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

type simpleResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

type analyzeRequest struct {
	Query string `json:"query" validate:"required,max=4000"`
}

type healthResponse struct {
	Status          string  `json:"status"`
	Service         string  `json:"service"`
	Version         string  `json:"version"`
	Model           string  `json:"model,omitempty"`
	Temperature     float64 `json:"temperature"`
	FallbackEnabled bool    `json:"fallback_enabled"`
	Records         int     `json:"records"`
	LoadedAt        string  `json:"loaded_at,omitempty"`
}

type configResponse struct {
	Success bool                        `json:"success"`
	Config  translator.FallbackSettings `json:"config"`
}

type reloadResponse struct {
	Success  bool              `json:"success"`
	Records  int               `json:"records"`
	Stats    helpers.LoadStats `json:"stats"`
	LoadedAt string            `json:"loaded_at"`
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "healthy",
		Service: common.ServiceName,
		Version: common.Version,
	}
	if fb := s.service.Fallback(); fb != nil {
		settings := fb.Settings()
		resp.Model = settings.Model
		resp.Temperature = settings.Temperature
		if e, ok := fb.(interface{ Enabled() bool }); ok {
			resp.FallbackEnabled = e.Enabled()
		}
	}
	if snap := s.service.Store().Snapshot(); snap != nil {
		resp.Records = snap.View.Len()
		resp.LoadedAt = snap.LoadedAt.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := s.decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, chatResponse{Error: err.Error(), RequestID: RequestID(r.Context())})
		return
	}

	resp, err := s.service.Respond(r.Context(), chat.Request{Message: req.Message, History: req.ConversationHistory})
	if err != nil {
		writeJSON(w, statusFor(err), chatResponse{
			Error:               err.Error(),
			ConversationHistory: req.ConversationHistory,
			RequestID:           RequestID(r.Context()),
		})
		return
	}

	writeJSON(w, http.StatusOK, s.chatResponse(resp, RequestID(r.Context())))
}

func (s *Server) chatResponse(resp *chat.Response, requestID string) chatResponse {
	out := chatResponse{
		Success:             true,
		Kind:                resp.Kind,
		Response:            resp.Reply,
		ConversationHistory: resp.History,
		Result:              resp.Result,
		Model:               resp.Model,
		RequestID:           requestID,
	}
	if html, err := RenderMarkdown(s.markdown, resp.Reply); err == nil {
		out.HTML = html
	} else {
		s.logger.Warn().Err(err).Msg("Markdown rendering failed")
	}
	return out
}

func (s *Server) handleChatSimple(w http.ResponseWriter, r *http.Request) {
	var req simpleRequest
	if err := s.decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, simpleResponse{Error: err.Error()})
		return
	}

	resp, err := s.service.Respond(r.Context(), chat.Request{Message: req.Message})
	if err != nil {
		writeJSON(w, statusFor(err), simpleResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, simpleResponse{Success: true, Response: resp.Reply})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.service.Analyze(req.Query)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	fb := s.service.Fallback()
	if fb == nil {
		writeError(w, http.StatusServiceUnavailable, translator.ErrFallbackDisabled.Error())
		return
	}
	writeJSON(w, http.StatusOK, configResponse{Success: true, Config: fb.Settings().Truncated(promptPreviewLen)})
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	fb := s.service.Fallback()
	if fb == nil {
		writeError(w, http.StatusServiceUnavailable, translator.ErrFallbackDisabled.Error())
		return
	}
	var update translator.SettingsUpdate
	if err := s.decode(w, r, &update); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	settings := fb.UpdateSettings(update)
	writeJSON(w, http.StatusOK, configResponse{Success: true, Config: settings.Truncated(promptPreviewLen)})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.Store().Load(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Dataset reload failed")
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, reloadResponse{
		Success:  true,
		Records:  snap.View.Len(),
		Stats:    snap.Stats,
		LoadedAt: snap.LoadedAt.Format(time.RFC3339),
	})
}

// ============================================================================
// HELPERS
// ============================================================================

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := s.validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid request: %s", strings.Join(msgs, "; "))
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var fe *translator.FallbackError
	switch {
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, engine.ErrUnknownField):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotLoaded):
		return http.StatusConflict
	case errors.As(err, &fe):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]any{
		"success": false,
		"error":   message,
	})
}
