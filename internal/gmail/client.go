// Package gmail implements the mail capability over the Gmail API.
package gmail

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"inboxmind/internal/capability"
)

const unseenQuery = "in:inbox is:unread"

// Client is the Gmail-backed capability.Mail implementation.
type Client struct {
	svc    *gmailapi.Service
	logger *zap.Logger
}

var _ capability.Mail = (*Client)(nil)

// NewClient builds a Gmail client from an authenticated HTTP client.
func NewClient(ctx context.Context, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc, err := gmailapi.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return &Client{svc: svc, logger: logger}, nil
}

// ListUnseen returns up to limit unread inbox messages, newest first.
func (c *Client) ListUnseen(ctx context.Context, limit int) ([]capability.Email, error) {
	return c.query(ctx, unseenQuery, limit)
}

// Search runs a Gmail-syntax query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]capability.Email, error) {
	return c.query(ctx, query, limit)
}

func (c *Client) query(ctx context.Context, query string, limit int) ([]capability.Email, error) {
	if limit <= 0 {
		limit = 10
	}
	resp, err := c.svc.Users.Messages.List("me").
		Q(query).MaxResults(int64(limit)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	emails := make([]capability.Email, 0, len(resp.Messages))
	for _, ref := range resp.Messages {
		msg, err := c.svc.Users.Messages.Get("me", ref.Id).
			Format("full").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("get message %s: %w", ref.Id, err)
		}
		emails = append(emails, messageToEmail(msg))
	}
	c.logger.Debug("mail query complete",
		zap.String("query", query),
		zap.Int("results", len(emails)))
	return emails, nil
}

// Send delivers a new message, optionally into an existing thread.
func (c *Client) Send(ctx context.Context, p capability.SendParams) (capability.SendResult, error) {
	raw := encodeRaw(buildMessage(recipientHeader(p), p.Subject, p.Body, nil))
	sent, err := c.svc.Users.Messages.Send("me", &gmailapi.Message{
		Raw:      raw,
		ThreadId: p.ThreadID,
	}).Context(ctx).Do()
	if err != nil {
		return capability.SendResult{}, fmt.Errorf("send message: %w", err)
	}
	c.logger.Info("message sent",
		zap.String("id", sent.Id),
		zap.String("thread", sent.ThreadId))
	return capability.SendResult{MessageID: sent.Id, ThreadID: sent.ThreadId}, nil
}

// Reply answers the latest message in a thread, preserving threading
// headers so the reply lands in the recipient's conversation view.
func (c *Client) Reply(ctx context.Context, p capability.ReplyParams) (capability.SendResult, error) {
	thread, err := c.svc.Users.Threads.Get("me", p.ThreadID).
		Format("full").Context(ctx).Do()
	if err != nil {
		return capability.SendResult{}, fmt.Errorf("get thread %s: %w", p.ThreadID, err)
	}
	if len(thread.Messages) == 0 {
		return capability.SendResult{}, fmt.Errorf("thread %s contains no messages", p.ThreadID)
	}

	last := thread.Messages[len(thread.Messages)-1]
	var headers []*gmailapi.MessagePartHeader
	if last.Payload != nil {
		headers = last.Payload.Headers
	}
	to := headerValue(headers, "From")
	subject := replySubject(headerValue(headers, "Subject"))
	msgID := headerValue(headers, "Message-Id")

	raw := encodeRaw(buildMessage(to, subject, p.Body, map[string]string{
		"In-Reply-To": msgID,
		"References":  msgID,
	}))
	sent, err := c.svc.Users.Messages.Send("me", &gmailapi.Message{
		Raw:      raw,
		ThreadId: p.ThreadID,
	}).Context(ctx).Do()
	if err != nil {
		return capability.SendResult{}, fmt.Errorf("send reply: %w", err)
	}
	c.logger.Info("reply sent",
		zap.String("id", sent.Id),
		zap.String("thread", sent.ThreadId))
	return capability.SendResult{MessageID: sent.Id, ThreadID: sent.ThreadId}, nil
}

// Label modifies a message's labels; Archive additionally removes INBOX.
func (c *Client) Label(ctx context.Context, p capability.LabelParams) error {
	remove := append([]string(nil), p.RemoveLabels...)
	if p.Archive {
		remove = append(remove, "INBOX")
	}
	_, err := c.svc.Users.Messages.Modify("me", p.MessageID, &gmailapi.ModifyMessageRequest{
		AddLabelIds:    p.AddLabels,
		RemoveLabelIds: remove,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("modify message %s: %w", p.MessageID, err)
	}
	c.logger.Info("message labeled",
		zap.String("id", p.MessageID),
		zap.Strings("added", p.AddLabels),
		zap.Strings("removed", remove))
	return nil
}

// Draft stores a message as a draft instead of sending it.
func (c *Client) Draft(ctx context.Context, p capability.SendParams) (capability.SendResult, error) {
	raw := encodeRaw(buildMessage(recipientHeader(p), p.Subject, p.Body, nil))
	draft, err := c.svc.Users.Drafts.Create("me", &gmailapi.Draft{
		Message: &gmailapi.Message{Raw: raw},
	}).Context(ctx).Do()
	if err != nil {
		return capability.SendResult{}, fmt.Errorf("create draft: %w", err)
	}
	c.logger.Info("draft created", zap.String("id", draft.Id))
	res := capability.SendResult{MessageID: draft.Id, Draft: true}
	if draft.Message != nil {
		res.ThreadID = draft.Message.ThreadId
	}
	return res, nil
}
