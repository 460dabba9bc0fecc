package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adekerz/FreshTrack-sub004/internal/types"
)

func TestMailClient_Send(t *testing.T) {
	var gotPath string
	var gotForm map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = r.ParseForm()
		gotForm = map[string]string{
			"to":      r.PostFormValue("to"),
			"subject": r.PostFormValue("subject"),
			"html":    r.PostFormValue("html"),
			"text":    r.PostFormValue("text"),
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "<msg123@mg>"})
	}))
	defer srv.Close()

	client := NewMailClient(srv.Client(), MailClientConfig{
		APIKey:   "key-test",
		Domain:   "mg.example.com",
		BaseURL:  srv.URL,
		FromAddr: "alerts@example.com",
		FromName: "FreshTrack",
	})

	id, err := client.Send(context.Background(), EmailMessage{
		To:       "chef@example.com",
		Subject:  "Daily inventory report",
		HTMLBody: "<p>3 expiring</p>",
		TextBody: "3 expiring",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "<msg123@mg>" {
		t.Errorf("expected provider message id, got %q", id)
	}
	if gotPath != "/v3/mg.example.com/messages" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if gotForm["to"] != "chef@example.com" || gotForm["text"] != "3 expiring" {
		t.Errorf("unexpected form values: %+v", gotForm)
	}
}

func TestMailClient_Unconfigured(t *testing.T) {
	client := NewMailClient(http.DefaultClient, MailClientConfig{})

	_, err := client.Send(context.Background(), EmailMessage{To: "x@y.z"})
	if !types.IsCode(err, types.ErrCodeGatewayUnconfigured) {
		t.Errorf("expected config_gateway_not_configured, got %v", err)
	}
}

func TestMailClient_ProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewMailClient(srv.Client(), MailClientConfig{
		APIKey:  "key-bad",
		Domain:  "mg.example.com",
		BaseURL: srv.URL,
	})

	_, err := client.Send(context.Background(), EmailMessage{To: "x@y.z"})
	if !types.IsCode(err, types.ErrCodeUpstreamMail) {
		t.Errorf("expected upstream_mail code, got %v", err)
	}
}
