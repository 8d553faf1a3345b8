package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/treinofacil/coach-api/internal/ai"
	"github.com/treinofacil/coach-api/internal/coach"
	"github.com/treinofacil/coach-api/internal/config"
	"github.com/treinofacil/coach-api/internal/db"
	"github.com/treinofacil/coach-api/internal/session"
	"github.com/treinofacil/coach-api/internal/speech"
	"github.com/treinofacil/coach-api/internal/store/rabbitmq"
	"github.com/treinofacil/coach-api/internal/store/redisstore"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if cfg.RabbitURL == "" {
		logger.Fatal("RABBIT_URL is required for the speech worker")
	}

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	repo := session.NewRepo(gdb)
	if err := repo.Migrate(); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	provider := ai.NewGeminiProvider(cfg.GeminiBaseURL, cfg.GeminiAPIKey,
		cfg.GeminiModel, cfg.GeminiTTSModel, cfg.GeminiVoice)
	coachSvc := coach.NewService(provider, logger)

	var cache speech.Cache
	if cfg.RedisAddr != "" {
		rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			time.Duration(cfg.AudioCacheTTL)*time.Second)
		defer rds.Close()
		cache = rds
	}

	speechSvc := speech.New(coachSvc, repo, cache, nil, logger)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		logger.Fatal("rabbit dial", zap.Error(err))
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("rabbit channel", zap.Error(err))
	}
	defer ch.Close()

	// match publisher declaration
	dlq := cfg.RabbitQueue + ".dlq"
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		logger.Fatal("dlq declare", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(cfg.RabbitQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlq,
	}); err != nil {
		logger.Fatal("queue declare", zap.Error(err))
	}

	concurrency := workerConcurrency()
	if err := ch.Qos(concurrency, 0, false); err != nil {
		logger.Fatal("qos", zap.Error(err))
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		logger.Fatal("consume", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("speech worker started",
		zap.String("queue", cfg.RabbitQueue),
		zap.Int("concurrency", concurrency),
	)

	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var m rabbitmq.SpeechJobMessage
				if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
					logger.Warn("bad message", zap.Int("worker", workerID), zap.Error(err))
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := speechSvc.ProcessJob(ctx, m.JobID); err != nil {
					logger.Warn("job failed",
						zap.Int("worker", workerID),
						zap.String("job_id", m.JobID),
						zap.Duration("cost", time.Since(start)),
						zap.Error(err),
					)
					_ = d.Nack(false, false)
					continue
				}

				logger.Info("job done",
					zap.Int("worker", workerID),
					zap.String("job_id", m.JobID),
					zap.Duration("cost", time.Since(start)),
				)
				if err := d.Ack(false); err != nil {
					logger.Warn("ack failed", zap.String("job_id", m.JobID), zap.Error(err))
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				logger.Warn("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}
