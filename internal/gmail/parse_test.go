package gmail

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	gmailapi "google.golang.org/api/gmail/v1"

	"inboxmind/internal/capability"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want capability.EmailAddress
	}{
		{
			name: "bare address",
			raw:  "alice@example.com",
			want: capability.EmailAddress{Email: "alice@example.com"},
		},
		{
			name: "display name",
			raw:  "Alice Jones <alice@example.com>",
			want: capability.EmailAddress{Name: "Alice Jones", Email: "alice@example.com"},
		},
		{
			name: "quoted display name",
			raw:  `"Jones, Alice" <alice@example.com>`,
			want: capability.EmailAddress{Name: "Jones, Alice", Email: "alice@example.com"},
		},
		{
			name: "whitespace",
			raw:  "  bob@example.com  ",
			want: capability.EmailAddress{Email: "bob@example.com"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseAddress(tt.raw)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseAddress(%q) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}

func TestParseAddressList(t *testing.T) {
	got := parseAddressList("a@x.com, Bob <b@x.com>,, ")
	want := []capability.EmailAddress{
		{Email: "a@x.com"},
		{Name: "Bob", Email: "b@x.com"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseAddressList mismatch (-want +got):\n%s", diff)
	}
	if got := parseAddressList("  "); got != nil {
		t.Errorf("blank list = %v, want nil", got)
	}
}

func TestReplySubject(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Meeting tomorrow", "Re: Meeting tomorrow"},
		{"Re: Meeting tomorrow", "Re: Meeting tomorrow"},
		{"RE: shouting", "RE: shouting"},
		{"", "Re: "},
	}
	for _, tt := range tests {
		if got := replySubject(tt.in); got != tt.want {
			t.Errorf("replySubject(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildMessageIncludesThreadingHeaders(t *testing.T) {
	msg := string(buildMessage("a@x.com", "Re: hi", "body text", map[string]string{
		"In-Reply-To": "<orig@x.com>",
		"References":  "<orig@x.com>",
	}))

	for _, want := range []string{
		"To: a@x.com\r\n",
		"Subject: Re: hi\r\n",
		"In-Reply-To: <orig@x.com>\r\n",
		"References: <orig@x.com>\r\n",
		"\r\n\r\nbody text",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestBuildMessageOmitsEmptyExtras(t *testing.T) {
	msg := string(buildMessage("a@x.com", "hi", "body", map[string]string{"In-Reply-To": ""}))
	if strings.Contains(msg, "In-Reply-To") {
		t.Errorf("empty header emitted:\n%s", msg)
	}
}

func TestDecodeBodyMultipart(t *testing.T) {
	encode := func(s string) string {
		return base64.URLEncoding.EncodeToString([]byte(s))
	}
	payload := &gmailapi.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmailapi.MessagePart{
			{MimeType: "text/html", Body: &gmailapi.MessagePartBody{Data: encode("<b>hi</b>")}},
			{MimeType: "text/plain", Body: &gmailapi.MessagePartBody{Data: encode("plain hi")}},
		},
	}
	if got := decodeBody(payload); got != "plain hi" {
		t.Errorf("decodeBody = %q, want %q", got, "plain hi")
	}
	if got := decodeBody(nil); got != "" {
		t.Errorf("decodeBody(nil) = %q, want empty", got)
	}
}

func TestMessageToEmail(t *testing.T) {
	body := base64.URLEncoding.EncodeToString([]byte("hello there"))
	msg := &gmailapi.Message{
		Id:           "m-1",
		ThreadId:     "t-1",
		Snippet:      "hello...",
		LabelIds:     []string{"INBOX", "UNREAD"},
		InternalDate: 1700000000000,
		Payload: &gmailapi.MessagePart{
			MimeType: "text/plain",
			Body:     &gmailapi.MessagePartBody{Data: body},
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "From", Value: "Carol <carol@example.com>"},
				{Name: "To", Value: "me@example.com"},
				{Name: "Subject", Value: "greetings"},
			},
		},
	}

	email := messageToEmail(msg)
	if email.ID != "m-1" || email.ThreadID != "t-1" {
		t.Errorf("ids = %s/%s", email.ID, email.ThreadID)
	}
	if email.Sender.Email != "carol@example.com" || email.Sender.Name != "Carol" {
		t.Errorf("sender = %+v", email.Sender)
	}
	if email.Subject != "greetings" || email.Body != "hello there" {
		t.Errorf("subject/body = %q/%q", email.Subject, email.Body)
	}
	if !email.Unread {
		t.Error("Unread = false, want true")
	}
	if email.Received.IsZero() {
		t.Error("Received not set")
	}
}

func TestRecipientHeader(t *testing.T) {
	if got := recipientHeader(capability.SendParams{To: "a@x.com"}); got != "a@x.com" {
		t.Errorf("To form = %q", got)
	}
	p := capability.SendParams{To: "ignored@x.com", ToList: []string{"a@x.com", "b@x.com"}}
	if got := recipientHeader(p); got != "a@x.com, b@x.com" {
		t.Errorf("ToList form = %q", got)
	}
}
