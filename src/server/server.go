package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/mimi-labs/voicestream/src/logger"
	"github.com/mimi-labs/voicestream/src/services"
	"github.com/mimi-labs/voicestream/src/session"
	"github.com/mimi-labs/voicestream/src/turn"
)

// newSessionDelay gives a freshly created session's websocket client a
// moment to register before the audio phase starts pushing frames.
const newSessionDelay = 200 * time.Millisecond

// VoiceServer exposes the voice query surface: classify a message,
// answer synchronously with text, then stream the spoken reply to the
// caller's websocket client asynchronously.
type VoiceServer struct {
	sessions  *session.Registry
	responder services.Responder
	turns     *turn.Orchestrator
	log       *logger.Logger

	// Overridable in tests to run the audio phase without waiting.
	registrationDelay time.Duration
}

func New(sessions *session.Registry, responder services.Responder, turns *turn.Orchestrator) *VoiceServer {
	return &VoiceServer{
		sessions:          sessions,
		responder:         responder,
		turns:             turns,
		log:               logger.WithPrefix("VoiceServer"),
		registrationDelay: newSessionDelay,
	}
}

// Routes registers the voice endpoints on mux.
func (s *VoiceServer) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/voice/query", s.handleQuery)
	mux.HandleFunc("POST /api/voice/reset", s.handleReset)
	mux.HandleFunc("GET /api/voice/session/{id}/status", s.handleStatus)
}

type queryRequest struct {
	SessionID  string `json:"sessionId"`
	Message    string `json:"message"`
	Initialize bool   `json:"initialize"`
	ClientID   string `json:"clientId"`
}

type queryResponse struct {
	SessionID      string            `json:"sessionId"`
	Filters        *services.Filters `json:"filters,omitempty"`
	Text           string            `json:"text,omitempty"`
	Message        string            `json:"message,omitempty"`
	ProcessingTime int64             `json:"processingTime"`
	IsNewSession   bool              `json:"isNewSession"`
}

func (s *VoiceServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "INVALID_BODY", "")
		return
	}

	// Initialization handshake: create the session up front so the
	// client can open its websocket before the first real query.
	if req.Initialize && req.Message == "initialize" {
		sess, err := s.sessions.Create(r.Context())
		if err != nil {
			s.log.Error("Initialization failed: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to initialize session", "INITIALIZATION_FAILED", "")
			return
		}
		s.log.Info("Initialized session %s", sess.ID)
		writeJSON(w, http.StatusOK, queryResponse{
			SessionID:      sess.ID,
			Message:        "Voice Chat initialized successfully",
			ProcessingTime: time.Since(start).Milliseconds(),
			IsNewSession:   true,
		})
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "Valid message is required", "INVALID_MESSAGE", "")
		return
	}

	sess, isNew, err := s.resolveSession(r.Context(), req.SessionID)
	if err != nil {
		s.log.Error("Session creation failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create session", "SESSION_CREATION_FAILED", "")
		return
	}

	sess.AppendTranscript(session.RoleUser, req.Message)

	reply, err := s.responder.Respond(r.Context(), sess.ContextBlock(), req.Message)
	if err != nil {
		s.log.Error("Session %s: classification failed: %v", sess.ID, err)
		code := "PROCESSING_ERROR"
		if strings.Contains(err.Error(), "deadline") || strings.Contains(err.Error(), "timeout") {
			code = "TIMEOUT"
		}
		writeError(w, http.StatusInternalServerError, "Processing failed", code, sess.ID)
		return
	}

	sess.AppendTranscript(session.RoleAgent, reply.Summary)

	writeJSON(w, http.StatusOK, queryResponse{
		SessionID:      sess.ID,
		Filters:        &reply.Filters,
		Text:           reply.Summary,
		ProcessingTime: time.Since(start).Milliseconds(),
		IsNewSession:   isNew,
	})

	// Audio phase runs after the synchronous reply; its failures are
	// logged, never surfaced to this caller.
	go s.speakAsync(sess, req.ClientID, reply.Summary, isNew)
}

func (s *VoiceServer) resolveSession(ctx context.Context, id string) (*session.Session, bool, error) {
	if id != "" {
		if sess, ok := s.sessions.Get(id); ok {
			return sess, false, nil
		}
	}
	sess, err := s.sessions.Create(ctx)
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

func (s *VoiceServer) speakAsync(sess *session.Session, clientID, text string, isNew bool) {
	if isNew && s.registrationDelay > 0 {
		time.Sleep(s.registrationDelay)
	}

	res, err := s.turns.Run(context.Background(), sess, clientID, text)
	if err != nil {
		s.log.Error("Session %s: audio turn ended %s after %d frames: %v",
			sess.ID, res.State, res.FramesDelivered, err)
	}
}

func (s *VoiceServer) handleReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" || !s.sessions.Has(req.SessionID) {
		writeError(w, http.StatusBadRequest, "Invalid or missing sessionId", "INVALID_SESSION", "")
		return
	}

	s.log.Info("Resetting session %s", req.SessionID)
	s.sessions.Delete(req.SessionID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Session reset successfully",
		"sessionId": nil,
	})
}

func (s *VoiceServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, ok := s.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Session not found", "SESSION_NOT_FOUND", "")
		return
	}

	stats := sess.Processor().Stats()
	resp := map[string]interface{}{
		"sessionId":     id,
		"status":        "active",
		"historyLength": sess.TranscriptLen(),
		"queueLength":   sess.QueueLen(),
		"stats": map[string]interface{}{
			"totalProcessed":    stats.TotalProcessed,
			"chunksEmitted":     stats.ChunksEmitted,
			"duplicatesSkipped": stats.DuplicatesSkipped,
			"errorsEncountered": stats.ErrorsEncountered,
		},
	}
	if last := sess.LastActivity(); !last.IsZero() {
		resp["lastActivity"] = last
	}
	if err := sess.Flagged(); err != nil {
		resp["channelError"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, code, sessionID string) {
	body := map[string]interface{}{
		"error": msg,
		"code":  code,
	}
	if sessionID != "" {
		body["sessionId"] = sessionID
	}
	writeJSON(w, status, body)
}
