package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fenilsonani/imap-gateway/internal/audit"
	"github.com/fenilsonani/imap-gateway/internal/imapx"
	"github.com/fenilsonani/imap-gateway/internal/logging"
	"github.com/fenilsonani/imap-gateway/internal/service"
)

type stubSession struct {
	raw       []byte
	flags     []string
	seqNums   []uint32
	idMatches map[string][]uint32
	selectErr error
}

func (s *stubSession) Select(string) (uint32, error) {
	if s.selectErr != nil {
		return 0, s.selectErr
	}
	return uint32(len(s.seqNums)), nil
}

func (s *stubSession) Search(_ imapx.Criteria, limit int) ([]uint32, error) {
	nums := s.seqNums
	if limit > 0 && len(nums) > limit {
		nums = nums[:limit]
	}
	return nums, nil
}

func (s *stubSession) SearchMessageID(id string) ([]uint32, error) {
	return s.idMatches[id], nil
}

func (s *stubSession) Fetch(uint32) ([]byte, []string, error) {
	return s.raw, s.flags, nil
}

func (s *stubSession) Close() {}

func testRawMessage() []byte {
	return []byte(strings.Join([]string{
		"From: alice@example.com",
		"To: bob@example.com",
		"Subject: hi there",
		"Date: Mon, 02 Jan 2006 15:04:05 -0700",
		"Message-Id: <msg1@example.com>",
		"Content-Type: multipart/mixed; boundary=BB",
		"",
		"--BB",
		"Content-Type: text/plain",
		"",
		"body text",
		"--BB",
		"Content-Type: application/pdf",
		"Content-Disposition: attachment; filename=\"doc.pdf\"",
		"",
		"fake pdf",
		"--BB--",
	}, "\r\n") + "\r\n")
}

func newTestServer(t *testing.T, session *stubSession, limiter *RateLimiter) *Server {
	t.Helper()
	logger, _ := logging.New(logging.Config{Level: "error", Format: "text", Output: "stderr"})
	svc := service.New(func() (service.MailSession, error) { return session, nil }, logger)
	return NewServer(Config{Listen: "127.0.0.1:0", ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}, svc, logger, limiter, nil)
}

func defaultStub() *stubSession {
	return &stubSession{
		raw:       testRawMessage(),
		flags:     []string{"\\Seen"},
		seqNums:   []uint32{1},
		idMatches: map[string][]uint32{"msg1@example.com": {1}},
	}
}

func doRequest(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestListEmails(t *testing.T) {
	srv := newTestServer(t, defaultStub(), nil)

	rec := doRequest(t, srv, "/emails/?limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var msgs []service.Message
	if err := json.NewDecoder(rec.Body).Decode(&msgs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	got := msgs[0]
	if got.Subject != "hi there" || got.TextContent != "body text" {
		t.Errorf("message = %+v", got)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].Filename != "doc.pdf" {
		t.Errorf("attachments = %+v", got.Attachments)
	}
}

func TestListEmailsBadParams(t *testing.T) {
	srv := newTestServer(t, defaultStub(), nil)

	tests := []struct {
		name   string
		target string
	}{
		{"non-numeric limit", "/emails/?limit=abc"},
		{"zero limit", "/emails/?limit=0"},
		{"negative limit", "/emails/?limit=-3"},
		{"bad start date", "/emails/?start_date=2024-1-1"},
		{"bad end date", "/emails/?end_date=yesterday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, tt.target)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400; body %s", rec.Code, rec.Body.String())
			}
			var resp errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.Error == "" {
				t.Errorf("error body = %q (%v)", rec.Body.String(), err)
			}
		})
	}
}

func TestListEmailsUnknownMailbox(t *testing.T) {
	session := defaultStub()
	session.selectErr = &imapx.MailboxError{Mailbox: "Nope", Err: errors.New("no such mailbox")}
	srv := newTestServer(t, session, nil)

	rec := doRequest(t, srv, "/emails/?mailbox=Nope")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestFetchAttachment(t *testing.T) {
	srv := newTestServer(t, defaultStub(), nil)

	rec := doRequest(t, srv, "/emails/msg1@example.com/attachments/doc.pdf")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "doc.pdf") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rec.Body.String() != "fake pdf" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestFetchAttachmentNotFound(t *testing.T) {
	srv := newTestServer(t, defaultStub(), nil)

	for _, target := range []string{
		"/emails/unknown@example.com/attachments/doc.pdf",
		"/emails/msg1@example.com/attachments/other.pdf",
	} {
		rec := doRequest(t, srv, target)
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", target, rec.Code)
		}
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, defaultStub(), nil)

	rec := doRequest(t, srv, "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRateLimitRejects(t *testing.T) {
	srv := newTestServer(t, defaultStub(), NewRateLimiter(2, time.Minute))

	for i := 0; i < 2; i++ {
		if rec := doRequest(t, srv, "/emails/"); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := doRequest(t, srv, "/emails/")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
}

func TestRateLimitRemainingHeader(t *testing.T) {
	srv := newTestServer(t, defaultStub(), NewRateLimiter(2, time.Minute))

	rec := doRequest(t, srv, "/emails/")
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "1" {
		t.Errorf("first request X-RateLimit-Remaining = %q, want 1", got)
	}
	rec = doRequest(t, srv, "/emails/")
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("second request X-RateLimit-Remaining = %q, want 0", got)
	}
	rec = doRequest(t, srv, "/emails/")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("rejected request X-RateLimit-Remaining = %q, want 0", got)
	}
}

func TestAuditQueryEndpoint(t *testing.T) {
	auditLog, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("audit.Open() error = %v", err)
	}
	defer auditLog.Close()

	logger, _ := logging.New(logging.Config{Level: "error", Format: "text", Output: "stderr"})
	session := defaultStub()
	svc := service.New(func() (service.MailSession, error) { return session, nil }, logger)
	srv := NewServer(Config{Listen: "127.0.0.1:0", ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}, svc, logger, nil, auditLog)

	// A list request leaves an audit row behind.
	if rec := doRequest(t, srv, "/emails/"); rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}

	rec := doRequest(t, srv, "/audit/?operation=list_emails")
	if rec.Code != http.StatusOK {
		t.Fatalf("audit query status = %d, body %s", rec.Code, rec.Body.String())
	}
	var entries []audit.Entry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Operation != "list_emails" || entries[0].Status != "ok" || entries[0].Mailbox != "INBOX" {
		t.Errorf("entry = %+v", entries[0])
	}

	// Filters that match nothing still return an empty array.
	rec = doRequest(t, srv, "/audit/?status=error")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty filter: status = %d, body %q", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv, "/audit/?limit=zero")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestAuditQueryDisabled(t *testing.T) {
	srv := newTestServer(t, defaultStub(), nil)

	rec := doRequest(t, srv, "/audit/")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when audit log is disabled", rec.Code)
	}
}

func TestAttachmentContentTypeFallback(t *testing.T) {
	tests := []struct {
		name string
		att  service.AttachmentContent
		want string
	}{
		{"part type wins", service.AttachmentContent{ContentType: "text/csv", Filename: "x.bin"}, "text/csv"},
		{"extension guess", service.AttachmentContent{Filename: "x.json"}, "application/json"},
		{"octet stream fallback", service.AttachmentContent{Filename: "x.nosuchext"}, "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := attachmentContentType(&tt.att)
			if !strings.HasPrefix(got, tt.want) {
				t.Errorf("attachmentContentType() = %q, want prefix %q", got, tt.want)
			}
		})
	}
}
