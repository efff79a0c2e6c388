//go:build !integration

package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"petcare-billing/internal/domain/ports/adapter"
)

// fakeBotAPI answers getMe and records sendMessage calls.
type fakeBotAPI struct {
	mu   sync.Mutex
	sent []url.Values
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"alerts","username":"alerts_bot"}}`)
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		_ = r.ParseForm()
		f.mu.Lock()
		f.sent = append(f.sent, r.PostForm)
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":-100,"type":"group"}}}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":404,"description":"not found"}`)
	}
}

func TestAlertNotifier_Notify(t *testing.T) {
	api := &fakeBotAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()
	logger := zerolog.Nop()

	n, err := NewAlertNotifierWithEndpoint("TOKEN", srv.URL+"/bot%s/%s", -100, srv.Client(), &logger)
	if err != nil {
		t.Fatalf("NewAlertNotifierWithEndpoint failed: %v", err)
	}

	alert := adapter.Alert{RecordID: "rec-1", UserID: "u-1", Plan: "owner_monthly", Status: "paid_db_profile_update_failed", Reason: "0 rows affected"}
	if err := n.Notify(context.Background(), alert); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.sent) != 1 {
		t.Fatalf("expected one sendMessage call, got %d", len(api.sent))
	}
	if got := api.sent[0].Get("chat_id"); got != "-100" {
		t.Errorf("expected chat_id -100, got %q", got)
	}
	text := api.sent[0].Get("text")
	for _, want := range []string{"rec-1", "paid_db_profile_update_failed", "owner_monthly"} {
		if !strings.Contains(text, want) {
			t.Errorf("alert text %q missing %q", text, want)
		}
	}
}

func TestNewAlertNotifier_RequiresConfig(t *testing.T) {
	logger := zerolog.Nop()
	if _, err := NewAlertNotifier("", 1, &logger); err == nil {
		t.Error("expected error for empty token")
	}
	if _, err := NewAlertNotifier("t", 0, &logger); err == nil {
		t.Error("expected error for missing chat id")
	}
}

func TestFormatAlert(t *testing.T) {
	got := FormatAlert(adapter.Alert{RecordID: "r", UserID: "u", Plan: "p", Status: "s"})
	want := "Payment needs reconciliation\nstatus: s\nrecord: r\nuser: u\nplan: p"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
