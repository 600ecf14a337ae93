package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/expense-whatsapp/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) (*WhatsAppClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewWhatsAppClient(config.WhatsAppConfig{
		AccessToken:    "token",
		PhoneID:        "phone-1",
		APIBaseURL:     srv.URL,
		SendTimeoutSec: 5,
	}, zap.NewNop())
	return client, srv
}

func TestSendText(t *testing.T) {
	var got map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/phone-1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer token" {
			t.Errorf("authorization = %q", auth)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))

	if err := client.SendText(context.Background(), "549112233", "hola", "wamid.1"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if got["type"] != "text" || got["to"] != "549112233" {
		t.Errorf("payload = %v", got)
	}
	ctx, ok := got["context"].(map[string]any)
	if !ok || ctx["message_id"] != "wamid.1" {
		t.Errorf("context = %v", got["context"])
	}
}

func TestSendTextOmitsContextWhenEmpty(t *testing.T) {
	var got map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
	}))

	if err := client.SendText(context.Background(), "549", "hola", ""); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if _, present := got["context"]; present {
		t.Error("context should be omitted when no reply id is given")
	}
}

func TestSendInteractiveButtons(t *testing.T) {
	var got interactivePayload
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
	}))

	buttons := []Button{
		{ID: "confirm_yes", Title: "Si, cargar gasto"},
		{ID: "confirm_edit", Title: "Editar datos"},
		{ID: "confirm_cancel", Title: "Cancelar"},
	}
	if err := client.SendInteractiveButtons(context.Background(), "549", "¿Es correcto?", buttons, "wamid.2"); err != nil {
		t.Fatalf("SendInteractiveButtons: %v", err)
	}
	if got.Type != "interactive" || got.Interactive.Type != "button" {
		t.Errorf("payload types = %q / %q", got.Type, got.Interactive.Type)
	}
	if len(got.Interactive.Action.Buttons) != 3 {
		t.Fatalf("buttons = %d, want 3", len(got.Interactive.Action.Buttons))
	}
	if got.Interactive.Action.Buttons[0].Reply.ID != "confirm_yes" {
		t.Errorf("first button = %+v", got.Interactive.Action.Buttons[0])
	}
}

func TestSendNon2xxIsError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	if err := client.SendText(context.Background(), "549", "hola", ""); err == nil {
		t.Fatal("expected error on 401")
	}
}

func TestSendWithoutCredentials(t *testing.T) {
	client := NewWhatsAppClient(config.WhatsAppConfig{APIBaseURL: "http://unused"}, zap.NewNop())
	if err := client.SendText(context.Background(), "549", "hola", ""); err == nil {
		t.Fatal("expected error without credentials")
	}
}

func TestDownloadMedia(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/media-1", func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer token" {
			t.Errorf("metadata authorization = %q", auth)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"url":       srv.URL + "/binary",
			"mime_type": "image/jpeg",
		})
	})
	mux.HandleFunc("/binary", func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer token" {
			t.Errorf("binary authorization = %q", auth)
		}
		fmt.Fprint(w, "jpeg-bytes")
	})

	client, server := newTestClient(t, mux)
	srv = server

	data, mime, err := client.DownloadMedia(context.Background(), "media-1")
	if err != nil {
		t.Fatalf("DownloadMedia: %v", err)
	}
	if string(data) != "jpeg-bytes" || mime != "image/jpeg" {
		t.Errorf("got %q / %q", data, mime)
	}
}

func TestDownloadMediaMetadataFailure(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	if _, _, err := client.DownloadMedia(context.Background(), "missing"); err == nil {
		t.Fatal("expected error when metadata lookup fails")
	}
}
