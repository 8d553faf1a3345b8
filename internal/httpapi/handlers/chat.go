package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/treinofacil/coach-api/internal/audio"
	"github.com/treinofacil/coach-api/internal/coach"
	"github.com/treinofacil/coach-api/internal/common"
	"github.com/treinofacil/coach-api/internal/session"
)

type createSessionReq struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func (h *Handler) CreateChatSession(c *gin.Context) {
	var req createSessionReq
	_ = c.ShouldBindJSON(&req) // allow empty {}

	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider == "" {
		provider = strings.ToLower(h.Cfg.AIProvider)
	}
	if _, err := h.Providers.Get(c.Request.Context(), provider, req.Model); err != nil {
		common.Fail(c, http.StatusBadRequest, 10002, "unknown provider")
		return
	}

	model := req.Model
	if model == "" {
		switch provider {
		case "openrouter":
			model = h.Cfg.OpenRouterModel
		default:
			model = h.Cfg.GeminiModel
		}
	}

	sid, err := session.NewID()
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create session")
		return
	}
	sess := &session.Session{SessionID: sid, Provider: provider, Model: model}
	if err := h.Repo.CreateSession(c.Request.Context(), sess); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create session")
		return
	}

	common.Ok(c, gin.H{"session_id": sess.SessionID})
}

type sendMessageReq struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	ctx := c.Request.Context()

	sess, err := h.Repo.GetSessionBySessionID(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40004, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	recent, err := h.Repo.ListRecentMessagesAsc(ctx, sess.SessionID, h.Cfg.ChatContextWindowSize)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to load history")
		return
	}
	history := make([]coach.Turn, 0, len(recent))
	for _, m := range recent {
		if m.IsError {
			continue
		}
		history = append(history, coach.Turn{Role: m.Role, Text: m.Content})
	}

	provider, err := h.Providers.Get(ctx, sess.Provider, sess.Model)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	svc := coach.NewService(provider, h.Log)

	reply, err := svc.SendChatMessage(ctx, history, req.Message)
	if err != nil {
		// Nothing is stored on a failed round trip, so a retry
		// re-sends the same turn instead of stacking copies of it.
		failForAIError(c, err)
		return
	}

	// Both turns land together, only once the provider has answered.
	userID, err := session.NewID()
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	userMsg := &session.Message{
		MessageID: userID,
		SessionID: sess.SessionID,
		Role:      "user",
		Content:   req.Message,
	}
	if err := h.Repo.InsertMessage(ctx, userMsg); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to store message")
		return
	}

	asstID, err := session.NewID()
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	// The fallback line is stored flagged so it never feeds back into
	// the context window of later calls.
	asstMsg := &session.Message{
		MessageID: asstID,
		SessionID: sess.SessionID,
		Role:      "assistant",
		Content:   reply,
		IsError:   reply == coach.ChatFallback,
	}
	if err := h.Repo.InsertMessage(ctx, asstMsg); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to store message")
		return
	}

	if !asstMsg.IsError {
		h.SpeechSvc.DispatchBackground(asstMsg)
	}

	common.Ok(c, gin.H{
		"session_id": sess.SessionID,
		"reply":      reply,
		"message_id": asstMsg.MessageID,
	})
}

func (h *Handler) ListChatMessages(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("session_id")

	if _, err := h.Repo.GetSessionBySessionID(ctx, sessionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40004, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	var beforeID uint64
	if s := c.Query("before_id"); s != "" {
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			beforeID = n
		}
	}

	msgs, err := h.Repo.ListMessages(ctx, sessionID, limit, beforeID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list messages")
		return
	}

	var nextBeforeID uint64
	if len(msgs) > 0 {
		nextBeforeID = msgs[len(msgs)-1].ID
	}

	common.Ok(c, gin.H{
		"messages":       msgs,
		"next_before_id": nextBeforeID,
	})
}

// GetMessageAudio synthesizes (or fetches) speech for one assistant
// message. ?format=wav streams a playable file; the default returns
// the base64 payload on the JSON envelope.
func (h *Handler) GetMessageAudio(c *gin.Context) {
	ctx := c.Request.Context()
	messageID := c.Param("message_id")

	msg, err := h.Repo.GetMessageByMessageID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40005, "message not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	if msg.Role != "assistant" || msg.IsError {
		common.Fail(c, http.StatusBadRequest, 10003, "message has no speakable content")
		return
	}

	payload, err := h.SpeechSvc.ForMessage(ctx, msg)
	if err != nil {
		failForAIError(c, err)
		return
	}

	if c.Query("format") != "wav" {
		common.Ok(c, gin.H{
			"message_id":  msg.MessageID,
			"audio_b64":   payload,
			"sample_rate": audio.SpeechSampleRate,
			"channels":    audio.SpeechChannels,
		})
		return
	}

	pcm, err := audio.DecodeBase64(payload)
	if err != nil {
		common.Fail(c, http.StatusBadGateway, 50204, "undecodable audio payload")
		return
	}
	wav, err := audio.EncodeWAV(pcm, audio.SpeechSampleRate, audio.SpeechChannels)
	if err != nil {
		common.Fail(c, http.StatusBadGateway, 50204, "undecodable audio payload")
		return
	}
	c.Data(http.StatusOK, "audio/wav", wav)
}
