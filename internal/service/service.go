// Package service implements the gateway's mailbox operations on top of
// an IMAP session and the MIME parser.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fenilsonani/imap-gateway/internal/imapx"
	"github.com/fenilsonani/imap-gateway/internal/logging"
	"github.com/fenilsonani/imap-gateway/internal/mailparse"
	"github.com/fenilsonani/imap-gateway/internal/metrics"
)

// ErrNotFound marks a missing message or attachment. Handlers translate
// it to a 404.
var ErrNotFound = errors.New("not found")

// placeholderSubject replaces the subject of messages whose bytes could
// not be parsed at all.
const placeholderSubject = "[Error: Could not parse email]"

// MailSession is the slice of imapx.Session the service needs. The
// tests substitute a fake.
type MailSession interface {
	Select(mailbox string) (uint32, error)
	Search(criteria imapx.Criteria, limit int) ([]uint32, error)
	SearchMessageID(messageID string) ([]uint32, error)
	Fetch(seqNum uint32) ([]byte, []string, error)
	Close()
}

// DialFunc opens a fresh authenticated session.
type DialFunc func() (MailSession, error)

// Service exposes the gateway operations. One Service serves all
// requests; each operation opens and closes its own session.
type Service struct {
	dial   DialFunc
	parser *mailparse.Parser
	logger *logging.Logger
}

// New creates a Service that opens sessions through dial.
func New(dial DialFunc, logger *logging.Logger) *Service {
	return &Service{
		dial:   dial,
		parser: mailparse.NewParser(logger),
		logger: logger,
	}
}

// ListEmails searches the mailbox and returns up to query.Limit
// messages, newest first. Messages that fail to fetch are skipped;
// messages that fail to parse come back as placeholders so one broken
// message never hides the rest.
func (s *Service) ListEmails(ctx context.Context, query ListQuery) ([]Message, error) {
	session, err := s.dial()
	if err != nil {
		return nil, err
	}
	defer session.Close()

	if _, err := session.Select(query.Mailbox); err != nil {
		return nil, err
	}

	criteria, err := imapx.BuildCriteria(query.StartDate, query.EndDate, query.Sender)
	if err != nil {
		return nil, err
	}

	seqNums, err := session.Search(criteria, query.Limit)
	if err != nil {
		return nil, err
	}

	subjectFilter := strings.ToLower(strings.TrimSpace(query.Subject))

	messages := make([]Message, 0, len(seqNums))
	for _, seq := range seqNums {
		raw, flags, err := session.Fetch(seq)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping unfetchable message", "seq", seq, "error", err.Error())
			metrics.RecordSkip("fetch_error")
			continue
		}

		msg := s.buildMessage(raw, flags, query.Mailbox)

		if subjectFilter != "" && !strings.Contains(strings.ToLower(msg.Subject), subjectFilter) {
			metrics.RecordSkip("subject_filter")
			continue
		}

		messages = append(messages, msg)
		if query.Limit > 0 && len(messages) >= query.Limit {
			break
		}
	}

	s.logger.InfoContext(ctx, "listed messages",
		"mailbox", query.Mailbox,
		"criteria", criteria.String(),
		"returned", len(messages))
	return messages, nil
}

// buildMessage parses raw bytes into the API shape, degrading to a
// placeholder when the bytes are unreadable. Flags come from the server
// either way.
func (s *Service) buildMessage(raw []byte, flags []string, mailbox string) Message {
	parsed, err := s.parser.Parse(raw)
	if err != nil {
		s.logger.Warn("unparseable message", "mailbox", mailbox, "error", err.Error())
		return Message{
			Subject:     placeholderSubject,
			Date:        time.Now(),
			Mailbox:     mailbox,
			Flags:       flags,
			Size:        len(raw),
			Attachments: []AttachmentInfo{},
			Headers:     map[string]string{},
		}
	}

	content := mailparse.Walk(parsed.Root)

	attachments := make([]AttachmentInfo, 0, len(content.Attachments))
	for _, a := range content.Attachments {
		attachments = append(attachments, AttachmentInfo{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Size:        a.Size,
			ContentID:   a.ContentID,
		})
	}

	return Message{
		MessageID:   parsed.MessageID,
		Subject:     parsed.Subject,
		Sender:      parsed.Sender,
		Recipients:  parsed.Recipients,
		Date:        parsed.Date,
		Mailbox:     mailbox,
		Flags:       flags,
		TextContent: content.Text,
		HTMLContent: content.HTML,
		Size:        parsed.Size,
		Attachments: attachments,
		Headers:     parsed.Headers,
	}
}

// FetchAttachment finds the message with the given Message-ID in the
// mailbox and returns the named attachment's content. Missing message
// or missing attachment both surface as ErrNotFound.
func (s *Service) FetchAttachment(ctx context.Context, mailbox, messageID, filename string) (*AttachmentContent, error) {
	session, err := s.dial()
	if err != nil {
		return nil, err
	}
	defer session.Close()

	if _, err := session.Select(mailbox); err != nil {
		return nil, err
	}

	seqNums, err := session.SearchMessageID(messageID)
	if err != nil {
		return nil, err
	}
	if len(seqNums) == 0 {
		return nil, ErrNotFound
	}

	raw, _, err := session.Fetch(seqNums[0])
	if err != nil {
		return nil, err
	}

	parsed, err := s.parser.Parse(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "unparseable message on attachment fetch",
			"message_id", messageID, "error", err.Error())
		return nil, ErrNotFound
	}

	leaf := mailparse.FindAttachment(parsed.Root, filename)
	if leaf == nil {
		return nil, ErrNotFound
	}

	metrics.RecordAttachment(len(leaf.Payload))
	s.logger.InfoContext(ctx, "attachment served",
		"message_id", messageID,
		"filename", filename,
		"bytes", len(leaf.Payload))

	return &AttachmentContent{
		Filename:    leaf.Filename,
		ContentType: leaf.ContentType,
		Data:        leaf.Payload,
	}, nil
}
