// Package imapx wraps the IMAP client in a session type scoped to one
// request: dial, select, search, fetch, close.
package imapx

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/fenilsonani/imap-gateway/internal/logging"
	"github.com/fenilsonani/imap-gateway/internal/metrics"
)

// Options describes how to reach and authenticate with the IMAP server.
type Options struct {
	Host           string
	Port           int
	UseTLS         bool
	Username       string
	Password       string
	ConnectTimeout time.Duration
}

// Address returns the host:port dial target.
func (o Options) Address() string {
	return net.JoinHostPort(o.Host, fmt.Sprintf("%d", o.Port))
}

// Session is one authenticated IMAP connection. Sessions are not safe
// for concurrent use; each request opens its own and closes it when
// done.
type Session struct {
	client  *imapclient.Client
	logger  *logging.Logger
	opened  time.Time
	mailbox string
	closed  bool
}

// Dial connects, authenticates, and returns a ready session. The
// connect timeout from opts bounds the TCP and TLS handshake; command
// round trips are bounded by the server.
func Dial(opts Options, logger *logging.Logger) (*Session, error) {
	addr := opts.Address()

	var (
		conn net.Conn
		err  error
	)
	if opts.UseTLS {
		dialer := &net.Dialer{Timeout: opts.ConnectTimeout}
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, nil)
	} else {
		conn, err = net.DialTimeout("tcp", addr, opts.ConnectTimeout)
	}
	if err != nil {
		metrics.RecordSession(false)
		return nil, &ConnectionError{Host: addr, Err: err}
	}

	client := imapclient.New(conn, nil)
	if err := client.Login(opts.Username, opts.Password).Wait(); err != nil {
		_ = client.Close()
		metrics.RecordSession(false)
		return nil, &ConnectionError{Host: addr, Err: fmt.Errorf("login %s: %w", opts.Username, err)}
	}

	return &Session{
		client: client,
		logger: logger.Session(),
		opened: time.Now(),
	}, nil
}

// Select opens the named mailbox read-only and returns its message
// count.
func (s *Session) Select(mailbox string) (uint32, error) {
	data, err := s.client.Select(mailbox, &imap.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		return 0, &MailboxError{Mailbox: mailbox, Err: err}
	}
	s.mailbox = mailbox
	s.logger.Debug("mailbox selected", "mailbox", mailbox, "messages", data.NumMessages)
	return data.NumMessages, nil
}

// Search runs the criteria against the selected mailbox and returns
// matching sequence numbers newest first, truncated to limit. A limit
// of zero or less means no truncation.
func (s *Session) Search(criteria Criteria, limit int) ([]uint32, error) {
	data, err := s.client.Search(criteria.toSearchCriteria(), nil).Wait()
	if err != nil {
		return nil, &SearchError{Err: err}
	}

	nums := data.AllSeqNums()

	// Servers return ascending sequence numbers; callers want newest
	// first.
	for i, j := 0, len(nums)-1; i < j; i, j = i+1, j-1 {
		nums[i], nums[j] = nums[j], nums[i]
	}
	if limit > 0 && len(nums) > limit {
		nums = nums[:limit]
	}

	s.logger.Debug("search complete", "criteria", criteria.String(), "matches", len(nums))
	return nums, nil
}

// SearchMessageID finds the sequence numbers of messages carrying the
// given Message-ID header value.
func (s *Session) SearchMessageID(messageID string) ([]uint32, error) {
	criteria := &imap.SearchCriteria{
		Header: []imap.SearchCriteriaHeaderField{
			{Key: "Message-Id", Value: messageID},
		},
	}
	data, err := s.client.Search(criteria, nil).Wait()
	if err != nil {
		return nil, &SearchError{Err: err}
	}
	return data.AllSeqNums(), nil
}

// Fetch retrieves one message's raw bytes and flags. The body is read
// with PEEK so fetching never marks the message seen.
func (s *Session) Fetch(seqNum uint32) ([]byte, []string, error) {
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Flags:       true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	cmd := s.client.Fetch(imap.SeqSetNum(seqNum), fetchOpts)
	defer cmd.Close()

	msg := cmd.Next()
	if msg == nil {
		return nil, nil, &FetchError{SeqNum: seqNum, Err: fmt.Errorf("no data returned")}
	}
	buf, err := msg.Collect()
	if err != nil {
		return nil, nil, &FetchError{SeqNum: seqNum, Err: err}
	}
	if err := cmd.Close(); err != nil {
		return nil, nil, &FetchError{SeqNum: seqNum, Err: err}
	}

	raw := buf.FindBodySection(bodySection)
	if raw == nil {
		return nil, nil, &FetchError{SeqNum: seqNum, Err: fmt.Errorf("missing body section")}
	}

	flags := make([]string, 0, len(buf.Flags))
	for _, f := range buf.Flags {
		flags = append(flags, string(f))
	}

	metrics.MessagesFetched.Inc()
	return raw, flags, nil
}

// Close logs out and tears down the connection. Logout failures are
// logged, never surfaced: the work is already done by the time we say
// goodbye. Close is idempotent.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true

	if err := s.client.Logout().Wait(); err != nil {
		s.logger.Warn("imap logout failed", "mailbox", s.mailbox, "error", err.Error())
		_ = s.client.Close()
	}
	metrics.RecordSession(true)
	metrics.SessionDuration.Observe(time.Since(s.opened).Seconds())
}
