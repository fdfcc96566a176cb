package alerts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSlackEscalate(t *testing.T) {
	var got slackPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := NewSlack(srv.URL, "#inbox-alerts", nil)
	if err != nil {
		t.Fatalf("NewSlack: %v", err)
	}
	if err := s.Escalate(context.Background(), "", "spam reply blocked", "high"); err != nil {
		t.Fatalf("Escalate: %v", err)
	}

	if got.Channel != "#inbox-alerts" {
		t.Errorf("channel = %q, want default", got.Channel)
	}
	if !strings.Contains(got.Text, "[HIGH]") || !strings.Contains(got.Text, "spam reply blocked") {
		t.Errorf("text = %q", got.Text)
	}
	if !strings.Contains(got.Text, ":rotating_light:") {
		t.Errorf("high urgency missing alarm icon: %q", got.Text)
	}
}

func TestSlackEscalateChannelOverride(t *testing.T) {
	var got slackPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
	}))
	defer srv.Close()

	s, err := NewSlack(srv.URL, "#default", nil)
	if err != nil {
		t.Fatalf("NewSlack: %v", err)
	}
	if err := s.Escalate(context.Background(), "#oncall", "msg", ""); err != nil {
		t.Fatalf("Escalate: %v", err)
	}
	if got.Channel != "#oncall" {
		t.Errorf("channel = %q, want #oncall", got.Channel)
	}
	if !strings.Contains(got.Text, "[MEDIUM]") {
		t.Errorf("missing default urgency tag: %q", got.Text)
	}
}

func TestSlackEscalateNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no_service", http.StatusGone)
	}))
	defer srv.Close()

	s, err := NewSlack(srv.URL, "", nil)
	if err != nil {
		t.Fatalf("NewSlack: %v", err)
	}
	if err := s.Escalate(context.Background(), "", "msg", "low"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestNewSlackRequiresURL(t *testing.T) {
	if _, err := NewSlack("", "", nil); err == nil {
		t.Fatal("expected error for missing webhook URL")
	}
}

func TestNopEscalate(t *testing.T) {
	if err := NewNop(nil).Escalate(context.Background(), "", "anything", "high"); err != nil {
		t.Fatalf("Nop.Escalate: %v", err)
	}
}
