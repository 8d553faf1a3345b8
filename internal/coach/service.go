package coach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/treinofacil/coach-api/internal/ai"
)

// Service is the sole integration point with the generative provider.
// It holds no conversation state; callers own history and persistence.
type Service struct {
	provider      ai.Provider
	log           *zap.Logger
	speechTimeout time.Duration
}

func NewService(provider ai.Provider, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		provider:      provider,
		log:           log,
		speechTimeout: 60 * time.Second,
	}
}

func (s *Service) structured() (ai.StructuredProvider, error) {
	sp, ok := s.provider.(ai.StructuredProvider)
	if !ok {
		return nil, errors.New("coach: provider does not support structured output")
	}
	return sp, nil
}

// GenerateWorkout builds a single session plan for the given
// preferences. Transport, empty-response and schema errors propagate
// untouched; the caller decides about retries.
func (s *Service) GenerateWorkout(ctx context.Context, prefs UserPreferences) (*WorkoutPlan, error) {
	sp, err := s.structured()
	if err != nil {
		return nil, err
	}

	raw, err := sp.GenerateJSON(ctx, SystemPersona, workoutPrompt(prefs), WorkoutPlanSchema)
	if err != nil {
		return nil, err
	}
	if err := WorkoutPlanSchema.Validate([]byte(raw)); err != nil {
		return nil, err
	}

	var plan WorkoutPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, &ai.SchemaError{Reason: fmt.Sprintf("workout plan: %v", err)}
	}
	return &plan, nil
}

// GenerateWeeklySchedule builds a Monday-through-Sunday plan. The
// returned slice may hold fewer or more than seven entries; callers
// must cope.
func (s *Service) GenerateWeeklySchedule(ctx context.Context, goal Goal, level Level, location Location, gender Gender) ([]WeeklyDay, error) {
	sp, err := s.structured()
	if err != nil {
		return nil, err
	}

	raw, err := sp.GenerateJSON(ctx, SystemPersona, weeklyPrompt(goal, level, location, gender), WeeklyScheduleSchema)
	if err != nil {
		return nil, err
	}
	if err := WeeklyScheduleSchema.Validate([]byte(raw)); err != nil {
		return nil, err
	}

	var days []WeeklyDay
	if err := json.Unmarshal([]byte(raw), &days); err != nil {
		return nil, &ai.SchemaError{Reason: fmt.Sprintf("weekly schedule: %v", err)}
	}
	return days, nil
}

// SendChatMessage sends the rolling history plus the new user utterance
// under the fixed persona and returns the plain-text reply. An empty
// reply degrades to ChatFallback instead of failing; everything else
// propagates.
func (s *Service) SendChatMessage(ctx context.Context, history []Turn, newMessage string) (string, error) {
	msgs := make([]ai.Message, 0, len(history)+1)
	for _, t := range history {
		msgs = append(msgs, ai.Message{Role: t.Role, Content: t.Text})
	}
	msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: newMessage})

	reply, err := s.provider.Chat(ctx, SystemPersona, msgs)
	if err != nil {
		if errors.Is(err, ai.ErrEmptyResponse) {
			return ChatFallback, nil
		}
		return "", err
	}
	return reply, nil
}

// GenerateSpeech synthesizes text with the fixed voice and returns the
// base64 PCM payload (s16le, mono, 24000 Hz).
func (s *Service) GenerateSpeech(ctx context.Context, text string) (string, error) {
	sp, ok := s.provider.(ai.SpeechProvider)
	if !ok {
		return "", errors.New("coach: provider does not support speech")
	}
	return sp.GenerateSpeech(ctx, text)
}

// SpeakLater generates speech in the background and hands the payload
// to attach once available. The user has not asked for audio yet, so
// failures are logged and discarded; the text reply already went out.
// Detached from the request context on purpose: the HTTP request ending
// must not cancel the synthesis.
func (s *Service) SpeakLater(text string, attach func(payload string) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.speechTimeout)
		defer cancel()

		payload, err := s.GenerateSpeech(ctx, text)
		if err != nil {
			s.log.Warn("background speech generation failed", zap.Error(err))
			return
		}
		if err := attach(payload); err != nil {
			s.log.Warn("background speech attach failed", zap.Error(err))
		}
	}()
}
