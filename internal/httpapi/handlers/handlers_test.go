package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/treinofacil/coach-api/internal/ai"
	"github.com/treinofacil/coach-api/internal/coach"
	"github.com/treinofacil/coach-api/internal/config"
	"github.com/treinofacil/coach-api/internal/session"
	"github.com/treinofacil/coach-api/internal/speech"
)

type fakeProvider struct {
	chatReply string
	chatErr   error

	jsonPayload string
	jsonErr     error

	speechPayload string
	speechErr     error
}

func (f *fakeProvider) Chat(ctx context.Context, system string, messages []ai.Message) (string, error) {
	if f.chatErr != nil {
		return "", f.chatErr
	}
	return f.chatReply, nil
}

func (f *fakeProvider) GenerateJSON(ctx context.Context, system, prompt string, schema *ai.Schema) (string, error) {
	if f.jsonErr != nil {
		return "", f.jsonErr
	}
	return f.jsonPayload, nil
}

func (f *fakeProvider) GenerateSpeech(ctx context.Context, text string) (string, error) {
	if f.speechErr != nil {
		return "", f.speechErr
	}
	return f.speechPayload, nil
}

func newTestHandler(t *testing.T, prov *fakeProvider) (*Handler, *session.Repo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	repo := session.NewRepo(gdb)
	if err := repo.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	reg := ai.NewRegistry()
	reg.Register("gemini", func(ctx context.Context, model string) (ai.Provider, error) {
		return prov, nil
	})

	coachSvc := coach.NewService(prov, nil)
	cfg := config.Config{AIProvider: "gemini", GeminiModel: "m", ChatContextWindowSize: 20}

	return &Handler{
		Cfg:       cfg,
		Providers: reg,
		Repo:      repo,
		CoachSvc:  coachSvc,
		SpeechSvc: speech.New(coachSvc, repo, nil, nil, nil),
	}, repo
}

func newTestRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.POST("/coach/workout", h.GenerateWorkout)
	r.POST("/coach/schedule", h.GenerateWeeklySchedule)
	r.POST("/chat/sessions", h.CreateChatSession)
	r.POST("/chat/messages", h.SendChatMessage)
	r.GET("/chat/sessions/:session_id/messages", h.ListChatMessages)
	r.GET("/chat/messages/:message_id/audio", h.GetMessageAudio)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("bad envelope: %v (%s)", err, w.Body.String())
	}
	return e
}

const validPlanJSON = `{
	"title": "Treino de Hipertrofia",
	"duration": "45 minutos",
	"focus": "Corpo Todo (Full Body)",
	"exercises": [
		{"name": "Agachamento", "nameEnglish": "Squat", "sets": "4", "reps": "12", "instructions": "Desça controlado."}
	]
}`

const workoutBody = `{
	"goal": "hipertrofia",
	"location": "casa",
	"gender": "feminino",
	"duration": "45 minutos",
	"level": "intermediario",
	"equipment": ["Halteres"]
}`

func TestGenerateWorkout_OK(t *testing.T) {
	h, _ := newTestHandler(t, &fakeProvider{jsonPayload: validPlanJSON})
	r := newTestRouter(h)

	w := doJSON(t, r, http.MethodPost, "/coach/workout", workoutBody)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	e := decodeEnvelope(t, w)
	if e.Code != 0 {
		t.Fatalf("envelope code %d", e.Code)
	}
	var plan coach.WorkoutPlan
	if err := json.Unmarshal(e.Data, &plan); err != nil {
		t.Fatalf("plan decode: %v", err)
	}
	if plan.Title != "Treino de Hipertrofia" || len(plan.Exercises) != 1 {
		t.Fatalf("unexpected plan: %+v", plan)
	}
}

func TestGenerateWorkout_MissingFieldIs400(t *testing.T) {
	h, _ := newTestHandler(t, &fakeProvider{jsonPayload: validPlanJSON})
	r := newTestRouter(h)

	w := doJSON(t, r, http.MethodPost, "/coach/workout", `{"goal": "hipertrofia"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
}

func TestGenerateWorkout_TransportErrorIs502(t *testing.T) {
	h, _ := newTestHandler(t, &fakeProvider{jsonErr: &ai.TransportError{Status: 429, Message: "quota"}})
	r := newTestRouter(h)

	w := doJSON(t, r, http.MethodPost, "/coach/workout", workoutBody)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status %d", w.Code)
	}
	if e := decodeEnvelope(t, w); e.Code != 50201 {
		t.Fatalf("envelope code %d", e.Code)
	}
}

func TestGenerateWorkout_SchemaViolationIs502(t *testing.T) {
	h, _ := newTestHandler(t, &fakeProvider{jsonPayload: `{"title": "t", "duration": "d", "focus": "f"}`})
	r := newTestRouter(h)

	w := doJSON(t, r, http.MethodPost, "/coach/workout", workoutBody)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status %d", w.Code)
	}
	if e := decodeEnvelope(t, w); e.Code != 50203 {
		t.Fatalf("envelope code %d", e.Code)
	}
}

func TestGenerateWeeklySchedule_OK(t *testing.T) {
	days := `[{"day": "Segunda", "focus": "Superiores", "details": "Peito e costas"},
		{"day": "Terça", "focus": "Descanso", "details": "Descanso ativo"}]`
	h, _ := newTestHandler(t, &fakeProvider{jsonPayload: days})
	r := newTestRouter(h)

	w := doJSON(t, r, http.MethodPost, "/coach/schedule",
		`{"goal": "emagrecer", "level": "iniciante", "location": "casa", "gender": "masculino"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	e := decodeEnvelope(t, w)
	var data struct {
		Days []struct {
			Day    string `json:"day"`
			Focus  string `json:"focus"`
			IsRest bool   `json:"isRest"`
		} `json:"days"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(data.Days) != 2 {
		t.Fatalf("unexpected days: %+v", data.Days)
	}
	if data.Days[0].IsRest || !data.Days[1].IsRest {
		t.Fatalf("rest flag missing from the wire: %+v", data.Days)
	}
}

func TestCreateChatSession_DefaultsAndUnknownProvider(t *testing.T) {
	h, _ := newTestHandler(t, &fakeProvider{})
	r := newTestRouter(h)

	w := doJSON(t, r, http.MethodPost, "/chat/sessions", `{}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	e := decodeEnvelope(t, w)
	var data struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil || len(data.SessionID) != 26 {
		t.Fatalf("bad session id: %q err=%v", data.SessionID, err)
	}

	w = doJSON(t, r, http.MethodPost, "/chat/sessions", `{"provider": "acme"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown provider status %d", w.Code)
	}
}

func createSession(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/chat/sessions", `{}`)
	if w.Code != http.StatusOK {
		t.Fatalf("create session status %d", w.Code)
	}
	e := decodeEnvelope(t, w)
	var data struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return data.SessionID
}

func TestSendChatMessage_PersistsBothTurns(t *testing.T) {
	h, repo := newTestHandler(t, &fakeProvider{chatReply: "Vamos treinar!", speechPayload: "AABA"})
	r := newTestRouter(h)
	sid := createSession(t, r)

	w := doJSON(t, r, http.MethodPost, "/chat/messages",
		`{"session_id": "`+sid+`", "message": "Quero treinar pernas"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	e := decodeEnvelope(t, w)
	var data struct {
		Reply     string `json:"reply"`
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data.Reply != "Vamos treinar!" || len(data.MessageID) != 26 {
		t.Fatalf("unexpected data: %+v", data)
	}

	msgs, err := repo.ListRecentMessagesAsc(context.Background(), sid, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Fatalf("unexpected history: %+v", msgs)
	}
}

func TestSendChatMessage_UnknownSessionIs404(t *testing.T) {
	h, _ := newTestHandler(t, &fakeProvider{chatReply: "oi"})
	r := newTestRouter(h)

	w := doJSON(t, r, http.MethodPost, "/chat/messages",
		`{"session_id": "01ARZ3NDEKTSV4RRFFQ69G5FAV", "message": "oi"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d", w.Code)
	}
}

func TestSendChatMessage_EmptyResponseYieldsFallback(t *testing.T) {
	h, repo := newTestHandler(t, &fakeProvider{chatErr: ai.ErrEmptyResponse})
	r := newTestRouter(h)
	sid := createSession(t, r)

	w := doJSON(t, r, http.MethodPost, "/chat/messages",
		`{"session_id": "`+sid+`", "message": "oi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	e := decodeEnvelope(t, w)
	var data struct {
		Reply     string `json:"reply"`
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data.Reply != coach.ChatFallback {
		t.Fatalf("expected fallback, got %q", data.Reply)
	}

	msg, err := repo.GetMessageByMessageID(context.Background(), data.MessageID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !msg.IsError {
		t.Fatalf("fallback turn must be flagged")
	}
}

func TestSendChatMessage_TransportErrorIs502(t *testing.T) {
	h, _ := newTestHandler(t, &fakeProvider{chatErr: &ai.TransportError{Status: 503, Message: "down"}})
	r := newTestRouter(h)
	sid := createSession(t, r)

	w := doJSON(t, r, http.MethodPost, "/chat/messages",
		`{"session_id": "`+sid+`", "message": "oi"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status %d", w.Code)
	}
}

func TestNewHandler_UnknownProviderIsError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	gdb, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	cfg := config.Config{AIProvider: "acme"}
	if _, err := NewHandler(gdb, cfg, nil, nil, nil); err == nil {
		t.Fatalf("expected a configuration error for an unknown provider")
	}
}

func TestSendChatMessage_FailedRoundTripStoresNothing(t *testing.T) {
	prov := &fakeProvider{chatErr: &ai.TransportError{Status: 503, Message: "down"}}
	h, repo := newTestHandler(t, prov)
	r := newTestRouter(h)
	sid := createSession(t, r)

	body := `{"session_id": "` + sid + `", "message": "oi"}`
	for i := 0; i < 2; i++ {
		if w := doJSON(t, r, http.MethodPost, "/chat/messages", body); w.Code != http.StatusBadGateway {
			t.Fatalf("attempt %d: status %d", i, w.Code)
		}
	}
	msgs, err := repo.ListRecentMessagesAsc(context.Background(), sid, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("failed round trips must leave the history empty: %+v", msgs)
	}

	// The retry after recovery lands exactly one exchange.
	prov.chatErr = nil
	prov.chatReply = "Bora!"
	if w := doJSON(t, r, http.MethodPost, "/chat/messages", body); w.Code != http.StatusOK {
		t.Fatalf("retry status %d", w.Code)
	}
	msgs, err = repo.ListRecentMessagesAsc(context.Background(), sid, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Fatalf("expected one stored exchange, got %+v", msgs)
	}
}

func TestListChatMessages_UnknownSessionIs404(t *testing.T) {
	h, _ := newTestHandler(t, &fakeProvider{})
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/chat/sessions/01ARZ3NDEKTSV4RRFFQ69G5FAV/messages", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d", w.Code)
	}
}

func TestGetMessageAudio_JSONAndWAV(t *testing.T) {
	pcm := []byte{0x00, 0x40, 0x00, 0xC0} // two frames
	payload := base64.StdEncoding.EncodeToString(pcm)
	h, repo := newTestHandler(t, &fakeProvider{speechPayload: payload})
	r := newTestRouter(h)
	sid := createSession(t, r)

	mid, _ := session.NewID()
	msg := &session.Message{MessageID: mid, SessionID: sid, Role: "assistant", Content: "resposta"}
	if err := repo.InsertMessage(context.Background(), msg); err != nil {
		t.Fatalf("insert: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/chat/messages/"+mid+"/audio", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	e := decodeEnvelope(t, w)
	var data struct {
		AudioB64   string `json:"audio_b64"`
		SampleRate int    `json:"sample_rate"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data.AudioB64 != payload || data.SampleRate != 24000 {
		t.Fatalf("unexpected data: %+v", data)
	}

	req = httptest.NewRequest(http.MethodGet, "/chat/messages/"+mid+"/audio?format=wav", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("wav status %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Fatalf("content type %q", ct)
	}
	body := w.Body.Bytes()
	if !strings.HasPrefix(string(body), "RIFF") || len(body) != 44+len(pcm) {
		t.Fatalf("bad wav payload (len %d)", len(body))
	}
}

func TestGetMessageAudio_UserMessageIs400(t *testing.T) {
	h, repo := newTestHandler(t, &fakeProvider{speechPayload: "AABA"})
	r := newTestRouter(h)
	sid := createSession(t, r)

	mid, _ := session.NewID()
	msg := &session.Message{MessageID: mid, SessionID: sid, Role: "user", Content: "oi"}
	if err := repo.InsertMessage(context.Background(), msg); err != nil {
		t.Fatalf("insert: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/chat/messages/"+mid+"/audio", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
}

func TestGetMessageAudio_MissingMessageIs404(t *testing.T) {
	h, _ := newTestHandler(t, &fakeProvider{})
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/chat/messages/01ARZ3NDEKTSV4RRFFQ69G5FAV/audio", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d", w.Code)
	}
}
