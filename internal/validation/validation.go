// Package validation provides input validation for API request parameters.
package validation

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidLimit is returned when the limit parameter is not a positive integer
	ErrInvalidLimit = errors.New("invalid limit: must be a positive integer")
	// ErrInvalidDate is returned when a date parameter is not in YYYY-MM-DD format
	ErrInvalidDate = errors.New("invalid date: must be in YYYY-MM-DD format")
	// ErrInvalidMailbox is returned when a mailbox name is empty or contains control characters
	ErrInvalidMailbox = errors.New("invalid mailbox: must be non-empty and free of control characters")
	// ErrInvalidFilename is returned when an attachment filename is empty or contains path separators
	ErrInvalidFilename = errors.New("invalid filename: must be non-empty and free of path separators")
)

const (
	// DateLayout is the accepted format for date query parameters.
	DateLayout = "2006-01-02"

	maxMailboxLength  = 256
	maxFilenameLength = 512
)

// Limit parses and validates the limit query parameter. An empty value
// falls back to the given default.
func Limit(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, ErrInvalidLimit
	}
	return n, nil
}

// Date validates an optional YYYY-MM-DD date parameter. Empty values
// are allowed; the zero time is returned for them.
func Date(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// MailboxName checks a mailbox name for length and characters that
// could break out of an IMAP command line.
func MailboxName(name string) error {
	if name == "" || len(name) > maxMailboxLength {
		return ErrInvalidMailbox
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return ErrInvalidMailbox
		}
	}
	return nil
}

// AttachmentFilename checks a requested attachment filename. Path
// separators are rejected so the value cannot be mistaken for a path
// anywhere downstream.
func AttachmentFilename(name string) error {
	if name == "" || len(name) > maxFilenameLength {
		return ErrInvalidFilename
	}
	if strings.ContainsAny(name, "/\\") {
		return ErrInvalidFilename
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return ErrInvalidFilename
		}
	}
	return nil
}
