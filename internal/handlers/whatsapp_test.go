package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Ananth-NQI/sessiongate/internal/config"
	"github.com/Ananth-NQI/sessiongate/internal/models"
	"github.com/Ananth-NQI/sessiongate/internal/services"
	"github.com/Ananth-NQI/sessiongate/internal/storage"
)

type resolveResponse struct {
	Success    bool                `json:"success"`
	Persisted  bool                `json:"persisted"`
	Resolution services.Resolution `json:"resolution"`
}

func newTestApp(t *testing.T, cfg *config.Config) (*fiber.App, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	holder := config.NewHolder(cfg)
	sessions := services.NewSessionManager(store, holder)
	messages := NewMessageHandler(sessions, holder)

	app := fiber.New()
	app.Post("/webhook/whatsapp", messages.HandleWebhook)
	app.Post("/api/messages/resolve", messages.Resolve)
	app.Get("/api/sessions", messages.ListSessions)
	app.Get("/health", NewHealthHandler("test", "memory", sessions).Check)
	return app, store
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request, want int) []byte {
	t.Helper()
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != want {
		t.Fatalf("status = %d, want %d: %s", resp.StatusCode, want, body)
	}
	return body
}

func formRequest(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func jsonRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/messages/resolve", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHandleWebhook(t *testing.T) {
	app, store := newTestApp(t, nil)
	form := url.Values{
		"From":        {"whatsapp:+15551234567"},
		"To":          {"whatsapp:+15550001111"},
		"Body":        {"/new hello"},
		"WaId":        {"15551234567"},
		"ProfileName": {"Alice"},
		"MessageSid":  {"SM123"},
	}

	var got resolveResponse
	if err := json.Unmarshal(doRequest(t, app, formRequest(form), fiber.StatusOK), &got); err != nil {
		t.Fatal(err)
	}
	r := got.Resolution
	if !got.Success || !got.Persisted {
		t.Fatalf("got %+v", got)
	}
	if r.SessionKey != "+15551234567" || !r.IsNewSession || !r.ResetTriggered || r.BodyStripped != "hello" {
		t.Fatalf("resolution = %+v", r)
	}
	if !r.HasControlCommand || !r.Authorization.IsWhatsAppSurface || r.Authorization.SenderE164 != "+15551234567" {
		t.Fatalf("resolution = %+v", r)
	}
	if _, ok := store.Get("+15551234567"); !ok {
		t.Fatal("session not stored")
	}
}

func TestHandleWebhookStatusCallback(t *testing.T) {
	app, store := newTestApp(t, nil)
	doRequest(t, app, formRequest(url.Values{"MessageStatus": {"delivered"}}), fiber.StatusOK)
	if sessions, _ := store.Load(context.Background()); len(sessions) != 0 {
		t.Fatalf("status callback created sessions: %v", sessions)
	}
}

func TestHandleWebhookCommandsGate(t *testing.T) {
	closed := false
	cfg := &config.Config{}
	cfg.Commands.Authorized = &closed
	app, _ := newTestApp(t, cfg)

	form := url.Values{"From": {"whatsapp:+15551234567"}, "Body": {"hello"}}
	doRequest(t, app, formRequest(form), fiber.StatusOK)

	form.Set("Body", "/reset")
	var got resolveResponse
	if err := json.Unmarshal(doRequest(t, app, formRequest(form), fiber.StatusOK), &got); err != nil {
		t.Fatal(err)
	}
	if got.Resolution.ResetTriggered || got.Resolution.IsNewSession {
		t.Fatalf("reset honored with commands disabled: %+v", got.Resolution)
	}
}

func TestResolveEndpoint(t *testing.T) {
	app, _ := newTestApp(t, nil)
	body := `{"from":"discord:channel:998877","to":"bot","surface":"discord","body":"/new","group_subject":"#general","group_space":"Guild","command_authorized":true}`

	var got resolveResponse
	if err := json.Unmarshal(doRequest(t, app, jsonRequest(body), fiber.StatusOK), &got); err != nil {
		t.Fatal(err)
	}
	r := got.Resolution
	if r.SessionKey != "discord:channel:998877" || !r.IsGroup || r.ChatType != "room" {
		t.Fatalf("resolution = %+v", r)
	}
	if r.DisplayName != "discord:guild#general" || !r.ResetTriggered {
		t.Fatalf("resolution = %+v", r)
	}
}

func TestResolveEndpointUnauthorized(t *testing.T) {
	app, _ := newTestApp(t, nil)
	doRequest(t, app, jsonRequest(`{"from":"telegram:42","surface":"telegram","body":"hi"}`), fiber.StatusOK)

	var got resolveResponse
	raw := doRequest(t, app, jsonRequest(`{"from":"telegram:42","surface":"telegram","body":"/new","command_authorized":false}`), fiber.StatusOK)
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if got.Resolution.ResetTriggered || got.Resolution.BodyStripped != "/new" {
		t.Fatalf("resolution = %+v", got.Resolution)
	}
}

func TestResolveEndpointBadRequests(t *testing.T) {
	app, _ := newTestApp(t, nil)
	doRequest(t, app, jsonRequest(`{"body":"hi"}`), fiber.StatusBadRequest)
	doRequest(t, app, jsonRequest(`{not json`), fiber.StatusBadRequest)
}

func TestResolveEndpointSaveFailure(t *testing.T) {
	app, store := newTestApp(t, nil)
	store.SaveErr = errors.New("disk full")

	var got resolveResponse
	if err := json.Unmarshal(doRequest(t, app, jsonRequest(`{"from":"+15551234567","body":"hi"}`), fiber.StatusOK), &got); err != nil {
		t.Fatal(err)
	}
	if got.Persisted || got.Resolution.SessionID == "" {
		t.Fatalf("got %+v", got)
	}
}

func TestListSessionsAndHealth(t *testing.T) {
	app, _ := newTestApp(t, nil)
	doRequest(t, app, jsonRequest(`{"from":"+15551234567","body":"hi"}`), fiber.StatusOK)
	doRequest(t, app, jsonRequest(`{"from":"120363@g.us","to":"whatsapp:+15550001111","body":"hi"}`), fiber.StatusOK)

	var list struct {
		Count    int                       `json:"count"`
		Sessions []services.SessionSummary `json:"sessions"`
	}
	raw := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/sessions", nil), fiber.StatusOK)
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatal(err)
	}
	if list.Count != 2 || len(list.Sessions) != 2 {
		t.Fatalf("list = %+v", list)
	}

	var health struct {
		Status string `json:"status"`
	}
	raw = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/health", nil), fiber.StatusOK)
	if err := json.Unmarshal(raw, &health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "healthy" {
		t.Fatalf("health = %+v", health)
	}
}

// slowStore widens the gap between load and save
type slowStore struct {
	*storage.MemoryStore
}

func (s slowStore) Load(ctx context.Context) (models.Sessions, error) {
	time.Sleep(5 * time.Millisecond)
	return s.MemoryStore.Load(ctx)
}

func TestResolveEndpointConcurrentSenders(t *testing.T) {
	store := storage.NewMemoryStore()
	holder := config.NewHolder(nil)
	messages := NewMessageHandler(services.NewSessionManager(slowStore{store}, holder), holder)
	app := fiber.New()
	app.Post("/api/messages/resolve", messages.Resolve)

	const senders = 20
	errs := make(chan error, senders)
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := fmt.Sprintf(`{"from":"telegram:user%d","surface":"telegram","body":"hi"}`, i)
			resp, err := app.Test(jsonRequest(body), -1)
			if err != nil {
				errs <- err
				return
			}
			resp.Body.Close()
			if resp.StatusCode != fiber.StatusOK {
				errs <- fmt.Errorf("user%d: status %d", i, resp.StatusCode)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	sessions, err := store.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != senders {
		t.Fatalf("persisted %d sessions, want %d", len(sessions), senders)
	}
	for i := 0; i < senders; i++ {
		key := fmt.Sprintf("telegram:user%d", i)
		if _, ok := sessions[key]; !ok {
			t.Errorf("session %s lost", key)
		}
	}
}
