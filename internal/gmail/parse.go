package gmail

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"

	"inboxmind/internal/capability"
)

// parseAddress splits a "Display Name <email@example.com>" header value.
func parseAddress(raw string) capability.EmailAddress {
	open := strings.Index(raw, "<")
	end := strings.Index(raw, ">")
	if open >= 0 && end > open {
		name := strings.Trim(strings.TrimSpace(raw[:open]), `"`)
		return capability.EmailAddress{
			Email: strings.TrimSpace(raw[open+1 : end]),
			Name:  name,
		}
	}
	return capability.EmailAddress{Email: strings.TrimSpace(raw)}
}

// parseAddressList splits a comma-separated recipient header.
func parseAddressList(raw string) []capability.EmailAddress {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []capability.EmailAddress
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		out = append(out, parseAddress(part))
	}
	return out
}

// headerValue extracts a header by name, case-insensitively.
func headerValue(headers []*gmailapi.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// decodeBody walks the payload tree and returns the first text/plain part.
func decodeBody(part *gmailapi.MessagePart) string {
	if part == nil {
		return ""
	}
	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		if data, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
			return string(data)
		}
		if data, err := base64.RawURLEncoding.DecodeString(part.Body.Data); err == nil {
			return string(data)
		}
		return ""
	}
	for _, p := range part.Parts {
		if text := decodeBody(p); text != "" {
			return text
		}
	}
	return ""
}

// messageToEmail converts a full-format API message into the domain type.
func messageToEmail(msg *gmailapi.Message) capability.Email {
	var headers []*gmailapi.MessagePartHeader
	if msg.Payload != nil {
		headers = msg.Payload.Headers
	}

	unread := false
	for _, l := range msg.LabelIds {
		if l == "UNREAD" {
			unread = true
			break
		}
	}

	received := time.Time{}
	if msg.InternalDate > 0 {
		received = time.UnixMilli(msg.InternalDate).UTC()
	}

	return capability.Email{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Sender:   parseAddress(headerValue(headers, "From")),
		To:       parseAddressList(headerValue(headers, "To")),
		Subject:  headerValue(headers, "Subject"),
		Snippet:  msg.Snippet,
		Body:     decodeBody(msg.Payload),
		Labels:   msg.LabelIds,
		Unread:   unread,
		Received: received,
	}
}

// replySubject prefixes "Re: " unless the subject already carries it.
func replySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}

// buildMessage assembles an RFC 2822 plain-text message. Extra headers go
// in insertion-independent order after the fixed set.
func buildMessage(to, subject, body string, extra map[string]string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	for _, name := range []string{"In-Reply-To", "References"} {
		if v, ok := extra[name]; ok && v != "" {
			fmt.Fprintf(&b, "%s: %s\r\n", name, v)
		}
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// encodeRaw encodes a wire message the way the API expects raw payloads.
func encodeRaw(msg []byte) string {
	return base64.URLEncoding.EncodeToString(msg)
}

// recipientHeader resolves SendParams recipients into one To header value.
func recipientHeader(p capability.SendParams) string {
	if len(p.ToList) > 0 {
		return strings.Join(p.ToList, ", ")
	}
	return p.To
}
