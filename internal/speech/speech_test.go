package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/treinofacil/coach-api/internal/ai"
	"github.com/treinofacil/coach-api/internal/coach"
	"github.com/treinofacil/coach-api/internal/session"
)

type speakingProvider struct {
	mu      sync.Mutex
	calls   int
	payload string
	err     error
}

func (p *speakingProvider) Chat(ctx context.Context, system string, messages []ai.Message) (string, error) {
	return "ok", nil
}

func (p *speakingProvider) GenerateSpeech(ctx context.Context, text string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.payload, p.err
}

func (p *speakingProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type memCache struct {
	mu sync.Mutex
	m  map[string]string
}

func newMemCache() *memCache { return &memCache{m: map[string]string{}} }

func (c *memCache) GetAudio(ctx context.Context, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m[text], nil
}

func (c *memCache) SetAudio(ctx context.Context, text, payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[text] = payload
	return nil
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []string
	err  error
}

func (q *recordingQueue) PublishSpeechJob(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, jobID)
	return q.err
}

func testSetup(t *testing.T, prov *speakingProvider, cache Cache, queue Queue) (*Service, *session.Repo, *session.Message) {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	repo := session.NewRepo(db)
	if err := repo.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	sid, _ := session.NewID()
	sess := &session.Session{SessionID: sid, Provider: "gemini", Model: "m"}
	if err := repo.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("create session: %v", err)
	}

	mid, _ := session.NewID()
	msg := &session.Message{MessageID: mid, SessionID: sid, Role: "assistant", Content: "resposta " + mid}
	if err := repo.InsertMessage(context.Background(), msg); err != nil {
		t.Fatalf("insert message: %v", err)
	}

	svc := New(coach.NewService(prov, nil), repo, cache, queue, nil)
	return svc, repo, msg
}

func TestForMessage_GeneratesCachesAndAttaches(t *testing.T) {
	prov := &speakingProvider{payload: "AABA"}
	cache := newMemCache()
	svc, repo, msg := testSetup(t, prov, cache, nil)

	payload, err := svc.ForMessage(context.Background(), msg)
	if err != nil {
		t.Fatalf("for message: %v", err)
	}
	if payload != "AABA" {
		t.Fatalf("unexpected payload %q", payload)
	}

	got, _ := repo.GetMessageByMessageID(context.Background(), msg.MessageID)
	if got.AudioB64 == nil || *got.AudioB64 != "AABA" {
		t.Fatalf("payload not attached to the message")
	}
	if cached, _ := cache.GetAudio(context.Background(), msg.Content); cached != "AABA" {
		t.Fatalf("payload not cached")
	}
}

func TestForMessage_AttachedAudioShortCircuits(t *testing.T) {
	prov := &speakingProvider{payload: "AABA"}
	svc, repo, msg := testSetup(t, prov, nil, nil)

	if err := repo.AttachAudio(context.Background(), msg.MessageID, "CACHED"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	msg, _ = repo.GetMessageByMessageID(context.Background(), msg.MessageID)

	payload, err := svc.ForMessage(context.Background(), msg)
	if err != nil {
		t.Fatalf("for message: %v", err)
	}
	if payload != "CACHED" || prov.callCount() != 0 {
		t.Fatalf("attached audio must skip synthesis (payload=%q calls=%d)", payload, prov.callCount())
	}
}

func TestForMessage_CacheHitSkipsProvider(t *testing.T) {
	prov := &speakingProvider{payload: "FRESH"}
	cache := newMemCache()
	svc, repo, msg := testSetup(t, prov, cache, nil)
	_ = cache.SetAudio(context.Background(), msg.Content, "CACHED")

	payload, err := svc.ForMessage(context.Background(), msg)
	if err != nil {
		t.Fatalf("for message: %v", err)
	}
	if payload != "CACHED" || prov.callCount() != 0 {
		t.Fatalf("cache hit must skip synthesis (payload=%q calls=%d)", payload, prov.callCount())
	}

	got, _ := repo.GetMessageByMessageID(context.Background(), msg.MessageID)
	if got.AudioB64 == nil || *got.AudioB64 != "CACHED" {
		t.Fatalf("cache hit must still attach to the message")
	}
}

func TestForMessage_ProviderErrorSurfaces(t *testing.T) {
	prov := &speakingProvider{err: &ai.TransportError{Message: "tts down"}}
	svc, _, msg := testSetup(t, prov, nil, nil)

	if _, err := svc.ForMessage(context.Background(), msg); err == nil {
		t.Fatalf("explicit requests must surface synthesis errors")
	}
}

func TestDispatchBackground_QueuePublishesJob(t *testing.T) {
	prov := &speakingProvider{payload: "AABA"}
	queue := &recordingQueue{}
	svc, repo, msg := testSetup(t, prov, nil, queue)

	svc.DispatchBackground(msg)

	queue.mu.Lock()
	defer queue.mu.Unlock()
	if len(queue.jobs) != 1 {
		t.Fatalf("expected one published job, got %d", len(queue.jobs))
	}
	job, err := repo.GetSpeechJobByID(context.Background(), queue.jobs[0])
	if err != nil {
		t.Fatalf("job row missing: %v", err)
	}
	if job.MessageID != msg.MessageID || job.Status != session.SpeechJobQueued {
		t.Fatalf("unexpected job: %+v", job)
	}
	if prov.callCount() != 0 {
		t.Fatalf("queued dispatch must not synthesize inline")
	}
}

func TestDispatchBackground_InProcessAttaches(t *testing.T) {
	prov := &speakingProvider{payload: "AABA"}
	svc, repo, msg := testSetup(t, prov, nil, nil)

	svc.DispatchBackground(msg)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, _ := repo.GetMessageByMessageID(context.Background(), msg.MessageID)
		if got.AudioB64 != nil && *got.AudioB64 == "AABA" {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("background synthesis never attached")
}

func TestDispatchBackground_FailureIsSilent(t *testing.T) {
	prov := &speakingProvider{err: errors.New("tts down")}
	svc, repo, msg := testSetup(t, prov, nil, nil)

	svc.DispatchBackground(msg)

	time.Sleep(100 * time.Millisecond)
	got, _ := repo.GetMessageByMessageID(context.Background(), msg.MessageID)
	if got.AudioB64 != nil {
		t.Fatalf("failed synthesis must leave the message untouched")
	}
	if got.IsError {
		t.Fatalf("background failure must not mark the message as an error")
	}
}

func TestProcessJob_Success(t *testing.T) {
	prov := &speakingProvider{payload: "AABA"}
	svc, repo, msg := testSetup(t, prov, nil, nil)

	jobID, _ := session.NewID()
	job := &session.SpeechJob{ID: jobID, MessageID: msg.MessageID, Text: msg.Content, Status: session.SpeechJobQueued}
	if err := repo.CreateSpeechJob(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}

	if err := svc.ProcessJob(context.Background(), jobID); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, _ := repo.GetSpeechJobByID(context.Background(), jobID)
	if got.Status != session.SpeechJobSucceeded {
		t.Fatalf("expected succeeded, got %s", got.Status)
	}
	m, _ := repo.GetMessageByMessageID(context.Background(), msg.MessageID)
	if m.AudioB64 == nil || *m.AudioB64 != "AABA" {
		t.Fatalf("worker must attach the payload")
	}
}

func TestProcessJob_FailureRecordedOnJob(t *testing.T) {
	prov := &speakingProvider{err: errors.New("tts down")}
	svc, repo, msg := testSetup(t, prov, nil, nil)

	jobID, _ := session.NewID()
	job := &session.SpeechJob{ID: jobID, MessageID: msg.MessageID, Text: msg.Content, Status: session.SpeechJobQueued}
	if err := repo.CreateSpeechJob(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}

	if err := svc.ProcessJob(context.Background(), jobID); err == nil {
		t.Fatalf("expected processing error")
	}

	got, _ := repo.GetSpeechJobByID(context.Background(), jobID)
	if got.Status != session.SpeechJobFailed || got.Error == nil {
		t.Fatalf("failure must land on the job row, got %+v", got)
	}
}
