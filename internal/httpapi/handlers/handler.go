package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/treinofacil/coach-api/internal/ai"
	"github.com/treinofacil/coach-api/internal/coach"
	"github.com/treinofacil/coach-api/internal/common"
	"github.com/treinofacil/coach-api/internal/config"
	"github.com/treinofacil/coach-api/internal/session"
	"github.com/treinofacil/coach-api/internal/speech"
	"github.com/treinofacil/coach-api/internal/store/redisstore"
)

type Handler struct {
	DB        *gorm.DB
	Cfg       config.Config
	Redis     *redisstore.Store
	Log       *zap.Logger
	Providers *ai.Registry
	Repo      *session.Repo
	CoachSvc  *coach.Service
	SpeechSvc *speech.Service
}

// NewHandler wires the service graph. Chat sessions remember their
// provider and model, so chat goes through the registry; the coach
// endpoints and speech synthesis use the configured default.
func NewHandler(db *gorm.DB, cfg config.Config, rds *redisstore.Store, queue speech.Queue, log *zap.Logger) (*Handler, error) {
	if log == nil {
		log = zap.NewNop()
	}

	reg := ai.NewRegistry()
	reg.Register("gemini", func(ctx context.Context, model string) (ai.Provider, error) {
		if model == "" {
			model = cfg.GeminiModel
		}
		return ai.NewGeminiProvider(cfg.GeminiBaseURL, cfg.GeminiAPIKey, model, cfg.GeminiTTSModel, cfg.GeminiVoice), nil
	})
	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		if model == "" {
			model = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, model, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})

	var provider ai.Provider
	switch strings.ToLower(cfg.AIProvider) {
	case "", "gemini":
		provider = ai.NewGeminiProvider(cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTTSModel, cfg.GeminiVoice)
	case "openrouter":
		provider = ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName)
	default:
		return nil, fmt.Errorf("unsupported AI_PROVIDER=%q", cfg.AIProvider)
	}

	repo := session.NewRepo(db)
	coachSvc := coach.NewService(provider, log)

	var cache speech.Cache
	if rds != nil {
		cache = rds
	}
	speechSvc := speech.New(coachSvc, repo, cache, queue, log)

	return &Handler{
		DB:        db,
		Cfg:       cfg,
		Redis:     rds,
		Log:       log,
		Providers: reg,
		Repo:      repo,
		CoachSvc:  coachSvc,
		SpeechSvc: speechSvc,
	}, nil
}

func (h *Handler) Ping(c *gin.Context) {
	common.Ok(c, gin.H{"message": "pong"})
}

// failForAIError maps the provider error taxonomy onto the envelope.
// Everything upstream-shaped is a 502: the request was fine, the
// provider was not.
func failForAIError(c *gin.Context, err error) {
	var te *ai.TransportError
	var se *ai.SchemaError
	switch {
	case errors.As(err, &te):
		common.Fail(c, http.StatusBadGateway, 50201, "upstream provider error")
	case errors.Is(err, ai.ErrEmptyResponse):
		common.Fail(c, http.StatusBadGateway, 50202, "empty provider response")
	case errors.As(err, &se):
		common.Fail(c, http.StatusBadGateway, 50203, "malformed provider response")
	default:
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}
