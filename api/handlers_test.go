package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/NahanaBanahnah/trell-api/database"
	"github.com/NahanaBanahnah/trell-api/internal/assets"
	"github.com/NahanaBanahnah/trell-api/internal/config"
	"github.com/NahanaBanahnah/trell-api/internal/models"
	"github.com/NahanaBanahnah/trell-api/internal/relay"
)

const (
	testSecret      = "test-secret"
	testCallback    = "https://relay.example.com/api"
	generalBoard    = "brd-general"
	designatedBoard = "brd-designated"
)

type fakeSender struct {
	messageID string
	err       error
	calls     int
	lastBoard string
}

func (f *fakeSender) Send(boardID string, params *discordgo.WebhookParams) (string, error) {
	f.calls++
	f.lastBoard = boardID
	return f.messageID, f.err
}

type fakeLister struct {
	attachments []models.Attachment
}

func (f *fakeLister) CardAttachments(ctx context.Context, cardID string) ([]models.Attachment, error) {
	return f.attachments, nil
}

type fakeDeleter struct {
	deleted []string
}

func (f *fakeDeleter) DeleteMessage(boardID, messageID string) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}

type fixture struct {
	engine  *gin.Engine
	db      *gorm.DB
	sender  *fakeSender
	deleter *fakeDeleter
	lister  *fakeLister
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.CrossReference{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	cfg := &config.Config{
		Trello: config.TrelloConfig{
			Secret:      testSecret,
			CallbackURL: testCallback,
		},
		Policy: config.PolicyConfig{
			DesignatedBoard: designatedBoard,
			SentLabelName:   "Sent",
			SentLabelColor:  "green",
			GalleryURL:      "https://gallery.example.com",
		},
	}

	sender := &fakeSender{messageID: "msg-100"}
	deleter := &fakeDeleter{}
	lister := &fakeLister{attachments: []models.Attachment{
		{ID: "a1", URL: "https://trello.com/dl/final.zip"},
	}}

	router := &relay.Router{
		Trello:   lister,
		Deleter:  deleter,
		Assets:   assets.NewFetcher(t.TempDir(), "https://relay.example.com", ""),
		DB:       db,
		Policy:   cfg.Policy,
		Mentions: map[string]string{"alice": "123"},
	}

	handler := &Handler{
		DB:         db,
		Router:     router,
		Dispatcher: sender,
		Config:     cfg,
	}

	engine := gin.New()
	group := engine.Group("/api")
	group.POST("", handler.TrelloWebhookHandler)
	group.HEAD("", handler.TrelloWebhookHandler)
	group.GET("/health", handler.HealthCheckHandler)

	return &fixture{engine: engine, db: db, sender: sender, deleter: deleter, lister: lister}
}

func (f *fixture) post(t *testing.T, body []byte, signed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api", bytes.NewReader(body))
	if signed {
		req.Header.Set("x-trello-webhook", Signature(body, testCallback, testSecret))
	} else {
		req.Header.Set("x-trello-webhook", "bogus")
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, []byte(`{"action":{"type":"commentCard"}}`), false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if f.sender.calls != 0 {
		t.Error("no outbound call expected on signature mismatch")
	}
}

func TestWebhookAnswersHeadProbe(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodHead, "/api", nil)
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestWebhookSoftRejectsUnknownAction(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, []byte(`{"action":{"type":"deleteCard","data":{"board":{"id":"brd-general"}}}}`), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ignored" {
		t.Errorf("body = %q, want ignored", rec.Body.String())
	}
	if f.sender.calls != 0 {
		t.Error("no outbound call expected for an unrecognised action")
	}
}

func TestWebhookSoftRejectsFilteredKindOnDesignatedBoard(t *testing.T) {
	f := newFixture(t)

	body := []byte(`{"action":{"type":"createCard","data":{
		"board":{"id":"` + designatedBoard + `"},
		"card":{"id":"crd1","name":"Homepage"}
	}}}`)

	rec := f.post(t, body, true)
	if rec.Code != http.StatusOK || rec.Body.String() != "ignored" {
		t.Fatalf("got %d %q, want 200 ignored", rec.Code, rec.Body.String())
	}
	if f.sender.calls != 0 {
		t.Error("no outbound call expected for a filtered kind")
	}
}

func TestWebhookRelaysComment(t *testing.T) {
	f := newFixture(t)

	body := []byte(`{"action":{"type":"commentCard","data":{
		"text":"hi @alice",
		"board":{"id":"` + generalBoard + `","name":"Design"},
		"card":{"id":"crd1","name":"Homepage","shortLink":"abc"}
	},"memberCreator":{"fullName":"Bob"}}}`)

	rec := f.post(t, body, true)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("got %d %q, want 200 ok", rec.Code, rec.Body.String())
	}
	if f.sender.calls != 1 {
		t.Fatalf("sends = %d, want 1", f.sender.calls)
	}
	if f.sender.lastBoard != generalBoard {
		t.Errorf("sent to board %q", f.sender.lastBoard)
	}

	// General boards don't persist cross references.
	refs, err := database.CrossReferencesForCard(f.db, "crd1")
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 0 {
		t.Errorf("cross references = %d, want 0 for a general board", len(refs))
	}
}

func TestWebhookSentLabelPersistsCrossReference(t *testing.T) {
	f := newFixture(t)

	body := []byte(`{"action":{"type":"addLabelToCard","data":{
		"board":{"id":"` + designatedBoard + `","name":"Orders"},
		"card":{"id":"crd9","name":"Order 42"},
		"label":{"name":"Sent","color":"green"}
	}}}`)

	rec := f.post(t, body, true)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("got %d %q, want 200 ok", rec.Code, rec.Body.String())
	}

	refs, err := database.CrossReferencesForCard(f.db, "crd9")
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 {
		t.Fatalf("cross references = %d, want 1", len(refs))
	}
	if refs[0].MessageID != "msg-100" {
		t.Errorf("stored id = %q, want the id returned by the send", refs[0].MessageID)
	}
}

func TestWebhookArchivalDeletesWithoutSending(t *testing.T) {
	f := newFixture(t)

	database.SaveCrossReference(f.db, "crd9", "msg-1")
	database.SaveCrossReference(f.db, "crd9", "msg-2")

	body := []byte(`{"action":{"type":"updateCard","data":{
		"board":{"id":"` + designatedBoard + `"},
		"card":{"id":"crd9","closed":true},
		"old":{"closed":false}
	}}}`)

	rec := f.post(t, body, true)
	if rec.Code != http.StatusOK || rec.Body.String() != "removed" {
		t.Fatalf("got %d %q, want 200 removed", rec.Code, rec.Body.String())
	}
	if f.sender.calls != 0 {
		t.Error("no send expected for an archival event")
	}
	if len(f.deleter.deleted) != 2 {
		t.Errorf("deletes issued = %d, want 2", len(f.deleter.deleted))
	}
}

func TestWebhookMalformedBody(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, []byte(`{not json`), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for a content error", rec.Code)
	}
	if f.sender.calls != 0 {
		t.Error("no outbound call expected for a malformed body")
	}
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
