package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/fenilsonani/imap-gateway/internal/audit"
	"github.com/fenilsonani/imap-gateway/internal/imapx"
	"github.com/fenilsonani/imap-gateway/internal/logging"
	"github.com/fenilsonani/imap-gateway/internal/service"
	"github.com/fenilsonani/imap-gateway/internal/validation"
)

// errorResponse is the JSON body of every non-2xx answer.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// handleListEmails serves GET /emails/.
func (s *Server) handleListEmails(w http.ResponseWriter, r *http.Request) {
	ctx := logging.WithOperation(r.Context(), "list_emails")
	q := r.URL.Query()

	mailbox := q.Get("mailbox")
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if err := validation.MailboxName(mailbox); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit, err := validation.Limit(q.Get("limit"), defaultListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := service.ListQuery{
		Mailbox:   mailbox,
		Limit:     limit,
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		Sender:    q.Get("sender"),
		Subject:   q.Get("subject"),
	}

	start := time.Now()
	messages, err := s.svc.ListEmails(ctx, query)
	s.recordAudit(ctx, "list_emails", mailbox, fmt.Sprintf("limit=%d criteria=%q", limit, q.Encode()), getIP(r), err, time.Since(start))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

// handleFetchAttachment serves
// GET /emails/{messageID}/attachments/{filename}.
func (s *Server) handleFetchAttachment(w http.ResponseWriter, r *http.Request) {
	ctx := logging.WithOperation(r.Context(), "fetch_attachment")

	messageID := r.PathValue("messageID")
	filename := r.PathValue("filename")
	ctx = logging.WithMessageID(ctx, messageID)

	if err := validation.AttachmentFilename(filename); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	mailbox := r.URL.Query().Get("mailbox")
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if err := validation.MailboxName(mailbox); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	att, err := s.svc.FetchAttachment(ctx, mailbox, messageID, filename)
	s.recordAudit(ctx, "fetch_attachment", mailbox, fmt.Sprintf("message_id=%s filename=%s", messageID, filename), getIP(r), err, time.Since(start))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", attachmentContentType(att))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": att.Filename}))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(att.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(att.Data)
}

// attachmentContentType picks the response content type: the part's own
// type, then a guess from the filename extension, then octet-stream.
func attachmentContentType(att *service.AttachmentContent) string {
	if att.ContentType != "" {
		return att.ContentType
	}
	if byExt := mime.TypeByExtension(filepath.Ext(att.Filename)); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}

// handleAuditLog serves GET /audit/, an operational view of recent
// gateway operations. Available only when the audit log is enabled.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	if s.auditLog == nil {
		writeError(w, http.StatusNotFound, "audit log disabled")
		return
	}
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		l, err := validation.Limit(raw, 0)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		limit = l
	}

	entries, err := s.auditLog.Query(r.Context(), audit.QueryFilter{
		Operation: q.Get("operation"),
		Mailbox:   q.Get("mailbox"),
		Status:    q.Get("status"),
		Limit:     limit,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleHealthz serves GET /healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeServiceError maps service and IMAP errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		searchErr  *imapx.SearchError
		mailboxErr *imapx.MailboxError
	)
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.As(err, &searchErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &mailboxErr):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// recordAudit writes one audit row, if the audit log is enabled.
func (s *Server) recordAudit(ctx context.Context, operation, mailbox, details, ip string, opErr error, d time.Duration) {
	if s.auditLog == nil {
		return
	}
	status := "ok"
	if opErr != nil {
		status = "error"
	}
	if err := s.auditLog.Record(ctx, audit.Entry{
		Operation: operation,
		Mailbox:   mailbox,
		Details:   details,
		RemoteIP:  ip,
		Status:    status,
		Duration:  d,
	}); err != nil {
		s.logger.Warn("audit write failed", "error", err.Error())
	}
}
