package imapx

import "fmt"

// ConnectionError reports a failure to reach or authenticate with the
// IMAP server.
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("imap connection to %s: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// MailboxError reports a failure to select a mailbox, typically because
// it does not exist or the account lacks access.
type MailboxError struct {
	Mailbox string
	Err     error
}

func (e *MailboxError) Error() string {
	return fmt.Sprintf("imap select %q: %v", e.Mailbox, e.Err)
}

func (e *MailboxError) Unwrap() error { return e.Err }

// SearchError reports invalid search input or a failed SEARCH command.
type SearchError struct {
	Err error
}

func (e *SearchError) Error() string { return fmt.Sprintf("imap search: %v", e.Err) }

func (e *SearchError) Unwrap() error { return e.Err }

// FetchError reports a failed FETCH for one message.
type FetchError struct {
	SeqNum uint32
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("imap fetch seq %d: %v", e.SeqNum, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
