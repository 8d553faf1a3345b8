package speech

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/treinofacil/coach-api/internal/coach"
	"github.com/treinofacil/coach-api/internal/session"
)

// Cache holds synthesized payloads keyed by text. The redis store
// satisfies this; nil disables caching.
type Cache interface {
	GetAudio(ctx context.Context, text string) (string, error)
	SetAudio(ctx context.Context, text, payload string) error
}

// Queue hands a job id to the worker. The rabbitmq publisher satisfies
// this; nil means background synthesis runs in-process.
type Queue interface {
	PublishSpeechJob(ctx context.Context, jobID string) error
}

// Service owns speech synthesis around chat messages: cache lookup,
// generation, attach-by-identity, and the background dispatch path.
type Service struct {
	coach   *coach.Service
	repo    *session.Repo
	cache   Cache
	queue   Queue
	log     *zap.Logger
	timeout time.Duration
}

func New(coachSvc *coach.Service, repo *session.Repo, cache Cache, queue Queue, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		coach:   coachSvc,
		repo:    repo,
		cache:   cache,
		queue:   queue,
		log:     log,
		timeout: 60 * time.Second,
	}
}

// ForMessage returns the audio payload for a message, generating it if
// needed. Errors surface here; this is the explicit-request path.
func (s *Service) ForMessage(ctx context.Context, msg *session.Message) (string, error) {
	if msg.AudioB64 != nil && *msg.AudioB64 != "" {
		return *msg.AudioB64, nil
	}

	if s.cache != nil {
		if payload, err := s.cache.GetAudio(ctx, msg.Content); err != nil {
			s.log.Warn("audio cache read failed", zap.Error(err))
		} else if payload != "" {
			s.attach(ctx, msg.MessageID, payload)
			return payload, nil
		}
	}

	payload, err := s.coach.GenerateSpeech(ctx, msg.Content)
	if err != nil {
		return "", err
	}

	if s.cache != nil {
		if err := s.cache.SetAudio(ctx, msg.Content, payload); err != nil {
			s.log.Warn("audio cache write failed", zap.Error(err))
		}
	}
	s.attach(ctx, msg.MessageID, payload)
	return payload, nil
}

// attach patches the message; a concurrent attach having won the race
// is fine and not an error.
func (s *Service) attach(ctx context.Context, messageID, payload string) {
	err := s.repo.AttachAudio(ctx, messageID, payload)
	if err != nil && !errors.Is(err, session.ErrAudioAlreadyAttached) {
		s.log.Warn("audio attach failed", zap.String("message_id", messageID), zap.Error(err))
	}
}

// DispatchBackground starts speech synthesis for a fresh assistant
// reply without blocking the text response. With a queue configured the
// job goes to the worker; otherwise a detached goroutine does the work.
// Either way, failure is logged and discarded: the user has not asked
// for audio yet.
func (s *Service) DispatchBackground(msg *session.Message) {
	if s.queue != nil {
		jobID, err := session.NewID()
		if err != nil {
			s.log.Warn("speech job id", zap.Error(err))
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		job := &session.SpeechJob{
			ID:        jobID,
			MessageID: msg.MessageID,
			Text:      msg.Content,
			Status:    session.SpeechJobQueued,
		}
		if err := s.repo.CreateSpeechJob(ctx, job); err != nil {
			s.log.Warn("speech job create failed", zap.Error(err))
			return
		}
		if err := s.queue.PublishSpeechJob(ctx, jobID); err != nil {
			s.log.Warn("speech job publish failed", zap.String("job_id", jobID), zap.Error(err))
		}
		return
	}

	// In-process fallback, detached from the request context.
	m := *msg
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if _, err := s.ForMessage(ctx, &m); err != nil {
			s.log.Warn("background speech failed", zap.String("message_id", m.MessageID), zap.Error(err))
		}
	}()
}

// ProcessJob is the worker path: run one queued speech job to
// completion and record the outcome on the job row.
func (s *Service) ProcessJob(ctx context.Context, jobID string) error {
	if err := s.repo.UpdateSpeechJobRunning(ctx, jobID); err != nil {
		return err
	}

	job, err := s.repo.GetSpeechJobByID(ctx, jobID)
	if err != nil {
		return err
	}

	msg, err := s.repo.GetMessageByMessageID(ctx, job.MessageID)
	if err != nil {
		_ = s.repo.MarkSpeechJobFailed(ctx, jobID, err.Error())
		return err
	}

	if _, err := s.ForMessage(ctx, msg); err != nil {
		_ = s.repo.MarkSpeechJobFailed(ctx, jobID, err.Error())
		return err
	}
	return s.repo.MarkSpeechJobSucceeded(ctx, jobID)
}
