package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/treinofacil/coach-api/internal/common"
	"github.com/treinofacil/coach-api/internal/config"
	"github.com/treinofacil/coach-api/internal/httpapi/handlers"
	"github.com/treinofacil/coach-api/internal/httpapi/middleware"
	"github.com/treinofacil/coach-api/internal/speech"
	"github.com/treinofacil/coach-api/internal/store/redisstore"
)

func NewRouter(db *gorm.DB, cfg config.Config, rds *redisstore.Store, queue speech.Queue, log *zap.Logger) (*gin.Engine, error) {
	h, err := handlers.NewHandler(db, cfg, rds, queue, log)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery(log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	r.GET("/ping", h.Ping)

	// one-shot generation
	r.POST("/coach/workout", h.GenerateWorkout)
	r.POST("/coach/schedule", h.GenerateWeeklySchedule)

	// chat
	r.POST("/chat/sessions", h.CreateChatSession)
	r.POST("/chat/messages", h.SendChatMessage)
	r.GET("/chat/sessions/:session_id/messages", h.ListChatMessages)
	r.GET("/chat/messages/:message_id/audio", h.GetMessageAudio)

	return r, nil
}
