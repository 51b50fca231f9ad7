package mailparse

import (
	"bytes"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-message"
	// Registers the charset reader so go-message can convert non-UTF-8
	// text parts while building the tree.
	_ "github.com/emersion/go-message/charset"

	"github.com/fenilsonani/imap-gateway/internal/logging"
	"github.com/fenilsonani/imap-gateway/internal/metrics"
)

// ParseError reports a recoverable failure while parsing one message
// or one MIME part.
type ParseError struct {
	Stage string // "message" or "part"
	Err   error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse %s: %v", e.Stage, e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// Node is one part of a message's MIME tree. A node is either a Leaf
// carrying content or a Container holding child nodes; multipart parts
// never carry content themselves.
type Node interface {
	node()
}

// Leaf is a terminal MIME part with its payload already decoded from
// the transfer encoding.
type Leaf struct {
	ContentType string // normalized media type, e.g. "text/plain"
	Disposition string // "attachment", "inline" or ""
	Filename    string // decoded filename, may be empty
	ContentID   string // Content-ID with angle brackets stripped
	Payload     []byte
}

// Container is a multipart/* part holding an ordered list of children.
type Container struct {
	ContentType string
	Children    []Node
}

func (*Leaf) node()      {}
func (*Container) node() {}

// Message is one fetched message decoded into header metadata and a
// MIME tree. It is constructed once per fetch and never mutated.
type Message struct {
	MessageID  string
	Subject    string
	Sender     string
	Recipients []string
	Date       time.Time
	Headers    map[string]string
	Size       int
	Root       Node
}

// Parser builds Message values from raw RFC 5322 bytes.
type Parser struct {
	logger *logging.Logger
}

// NewParser creates a Parser logging through the given logger.
func NewParser(logger *logging.Logger) *Parser {
	return &Parser{logger: logger.Parser()}
}

// Parse decodes raw message bytes into header metadata and a MIME
// tree. Unknown charsets inside the message are tolerated; only a
// structurally unreadable message fails, and then with a ParseError.
//
// Duplicate header names collapse into one map entry; the last
// occurrence wins.
func (p *Parser) Parse(raw []byte) (*Message, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		metrics.RecordParseFailure("message")
		return nil, &ParseError{Stage: "message", Err: err}
	}

	m := &Message{
		Size:    len(raw),
		Headers: make(map[string]string),
	}

	fields := entity.Header.Fields()
	for fields.Next() {
		m.Headers[fields.Key()] = DecodeHeader(fields.Value())
	}

	m.MessageID = entity.Header.Get("Message-Id")
	m.Subject = DecodeHeader(entity.Header.Get("Subject"))
	m.Sender = DecodeHeader(entity.Header.Get("From"))
	m.Recipients = ExtractAddresses(entity.Header.Get("To"))
	m.Date = parseDate(entity.Header.Get("Date"))
	m.Root = p.buildNode(entity)

	return m, nil
}

// buildNode converts one entity into a tree node. A part that cannot
// be decoded at all is dropped (nil); its siblings are unaffected.
func (p *Parser) buildNode(e *message.Entity) Node {
	contentType, ctParams, err := e.Header.ContentType()
	if err != nil || contentType == "" {
		// Same default the MIME standard prescribes for a missing type.
		contentType = "text/plain"
	}

	if mr := e.MultipartReader(); mr != nil {
		container := &Container{ContentType: contentType}
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil && !message.IsUnknownCharset(err) {
				// The remaining parts are unreadable; keep what we have.
				p.logger.Warn("failed to read mime part", "content_type", contentType, "error", err.Error())
				metrics.RecordParseFailure("part")
				break
			}
			if part == nil {
				break
			}
			if child := p.buildNode(part); child != nil {
				container.Children = append(container.Children, child)
			}
		}
		return container
	}

	disposition, dispParams, _ := e.Header.ContentDisposition()

	filename := dispParams["filename"]
	if filename == "" {
		filename = ctParams["name"]
	}
	filename = DecodeHeader(filename)

	payload, err := io.ReadAll(e.Body)
	if err != nil {
		if len(payload) == 0 {
			p.logger.Warn("dropping undecodable part", "content_type", contentType, "error", err.Error())
			metrics.RecordParseFailure("part")
			return nil
		}
		// Partial decode: keep the bytes that were recovered.
		p.logger.Warn("partially decoded part", "content_type", contentType, "bytes", len(payload), "error", err.Error())
		metrics.RecordParseFailure("part")
	}

	return &Leaf{
		ContentType: contentType,
		Disposition: disposition,
		Filename:    filename,
		ContentID:   trimAngles(e.Header.Get("Content-Id")),
		Payload:     payload,
	}
}

// parseDate parses an RFC 5322 Date header, substituting the current
// time when the value is missing or malformed.
func parseDate(raw string) time.Time {
	if raw == "" {
		return time.Now()
	}
	t, err := mail.ParseDate(raw)
	if err != nil {
		return time.Now()
	}
	return t
}

// trimAngles removes the angle brackets around values like Content-ID
// and Message-ID.
func trimAngles(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "<")
	s = strings.TrimSuffix(s, ">")
	return s
}
