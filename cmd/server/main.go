package main

import (
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/treinofacil/coach-api/internal/config"
	"github.com/treinofacil/coach-api/internal/db"
	"github.com/treinofacil/coach-api/internal/httpapi"
	"github.com/treinofacil/coach-api/internal/session"
	"github.com/treinofacil/coach-api/internal/speech"
	"github.com/treinofacil/coach-api/internal/store/rabbitmq"
	"github.com/treinofacil/coach-api/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	if err := session.NewRepo(gdb).Migrate(); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	var rds *redisstore.Store
	if cfg.RedisAddr != "" {
		rds = redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			time.Duration(cfg.AudioCacheTTL)*time.Second)
		defer rds.Close()
	}

	var queue speech.Queue
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			logger.Fatal("rabbit connect", zap.Error(err))
		}
		defer pub.Close()
		queue = pub
	}

	r, err := httpapi.NewRouter(gdb, cfg, rds, queue, logger)
	if err != nil {
		logger.Fatal("router", zap.Error(err))
	}

	logger.Info("server listening",
		zap.String("addr", cfg.Addr),
		zap.String("provider", cfg.AIProvider),
		zap.Bool("audio_cache", rds != nil),
		zap.Bool("speech_queue", queue != nil),
	)
	if err := r.Run(cfg.Addr); err != nil {
		logger.Fatal("server", zap.Error(err))
	}
}
