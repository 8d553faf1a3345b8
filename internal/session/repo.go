package session

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrAudioAlreadyAttached guards the write-once audio contract.
var ErrAudioAlreadyAttached = errors.New("session: audio already attached")

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Migrate() error {
	return r.db.AutoMigrate(&Session{}, &Message{}, &SpeechJob{})
}

func (r *Repo) CreateSession(ctx context.Context, s *Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) GetSessionBySessionID(ctx context.Context, sessionID string) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *Repo) GetMessageByMessageID(ctx context.Context, messageID string) (*Message, error) {
	var m Message
	if err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages returns messages in DESC id order (newest -> oldest).
func (r *Repo) ListMessages(ctx context.Context, sessionID string, limit int, beforeID uint64) ([]Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id DESC").
		Limit(limit)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var msgs []Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListRecentMessagesAsc returns the context window for a provider call:
// the most recent limit messages, oldest first.
func (r *Repo) ListRecentMessagesAsc(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	// reverse to ASC (oldest -> newest)
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// AttachAudio patches a message by identity with its synthesized audio.
// The payload is written once; a second attach is rejected so a stale
// background job can never clobber a fresher payload.
func (r *Repo) AttachAudio(ctx context.Context, messageID string, payload string) error {
	res := r.db.WithContext(ctx).Model(&Message{}).
		Where("message_id = ? AND audio_b64 IS NULL", messageID).
		Update("audio_b64", payload)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var m Message
		if err := r.db.WithContext(ctx).Where("message_id = ?", messageID).First(&m).Error; err != nil {
			return err
		}
		return ErrAudioAlreadyAttached
	}
	return nil
}

// Speech job CRUD

func (r *Repo) CreateSpeechJob(ctx context.Context, job *SpeechJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetSpeechJobByID(ctx context.Context, id string) (*SpeechJob, error) {
	var j SpeechJob
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *Repo) UpdateSpeechJobRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&SpeechJob{}).
		Where("id = ? AND status = ?", id, SpeechJobQueued).
		Update("status", SpeechJobRunning).Error
}

func (r *Repo) MarkSpeechJobSucceeded(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&SpeechJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": SpeechJobSucceeded,
			"error":  nil,
		}).Error
}

func (r *Repo) MarkSpeechJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&SpeechJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": SpeechJobFailed,
			"error":  errMsg,
		}).Error
}
