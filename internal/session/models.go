package session

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Session is one coaching conversation. Sessions are ephemeral: the
// default store lives in memory and nothing survives a restart.
type Session struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID string    `gorm:"type:varchar(26);uniqueIndex;not null" json:"session_id"`
	Provider  string    `gorm:"type:varchar(32);not null" json:"provider"`
	Model     string    `gorm:"type:varchar(64);not null" json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Session) TableName() string { return "coach_sessions" }

// Message is one chat turn. Audio is attached after the fact by
// MessageID, never by position; it is written at most once.
type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	MessageID string    `gorm:"type:varchar(26);uniqueIndex;not null" json:"message_id"`
	SessionID string    `gorm:"type:varchar(26);not null;index:idx_coach_msg_session_id" json:"session_id"`
	Role      string    `gorm:"type:varchar(16);index;not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	IsError   bool      `gorm:"not null;default:false" json:"is_error,omitempty"`
	AudioB64  *string   `gorm:"type:text" json:"audio_b64,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (Message) TableName() string { return "coach_messages" }

type SpeechJobStatus string

const (
	SpeechJobQueued    SpeechJobStatus = "queued"
	SpeechJobRunning   SpeechJobStatus = "running"
	SpeechJobSucceeded SpeechJobStatus = "succeeded"
	SpeechJobFailed    SpeechJobStatus = "failed"
)

// SpeechJob is a background synthesis request for one assistant
// message. Failures end on the job row and in the log, never in the
// chat itself.
type SpeechJob struct {
	ID        string          `gorm:"primaryKey;size:26"` // ULID length
	MessageID string          `gorm:"size:26;index;not null"`
	Text      string          `gorm:"type:text;not null"`
	Status    SpeechJobStatus `gorm:"type:varchar(16);index;not null"`
	Error     *string         `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SpeechJob) TableName() string { return "coach_speech_jobs" }

// NewID mints a ULID for sessions, messages and jobs.
func NewID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
