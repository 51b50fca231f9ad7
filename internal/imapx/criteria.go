package imapx

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/fenilsonani/imap-gateway/internal/validation"
)

// Criteria narrows a mailbox search by date range and sender. Zero
// values mean no restriction; an empty Criteria searches everything.
type Criteria struct {
	Since  time.Time
	Before time.Time
	Sender string
}

// BuildCriteria validates raw query inputs and assembles search
// criteria. Dates must be in YYYY-MM-DD form; a malformed date is a
// SearchError, not a silent ALL search.
func BuildCriteria(startDate, endDate, sender string) (Criteria, error) {
	var c Criteria

	if startDate != "" {
		t, err := validation.Date(startDate)
		if err != nil {
			return Criteria{}, &SearchError{Err: fmt.Errorf("start_date %q: %w", startDate, err)}
		}
		c.Since = t
	}
	if endDate != "" {
		t, err := validation.Date(endDate)
		if err != nil {
			return Criteria{}, &SearchError{Err: fmt.Errorf("end_date %q: %w", endDate, err)}
		}
		c.Before = t
	}
	c.Sender = strings.TrimSpace(sender)

	return c, nil
}

// IsEmpty reports whether the criteria place no restriction at all.
func (c Criteria) IsEmpty() bool {
	return c.Since.IsZero() && c.Before.IsZero() && c.Sender == ""
}

// toSearchCriteria converts to the wire-level criteria. The sender
// restriction matches the From header by substring, which is how IMAP
// servers interpret HEADER search keys.
func (c Criteria) toSearchCriteria() *imap.SearchCriteria {
	sc := &imap.SearchCriteria{
		Since:  c.Since,
		Before: c.Before,
	}
	if c.Sender != "" {
		sc.Header = []imap.SearchCriteriaHeaderField{
			{Key: "From", Value: c.Sender},
		}
	}
	return sc
}

// String renders the criteria the way they appear in a SEARCH command,
// which is the form operators expect in logs.
func (c Criteria) String() string {
	var parts []string
	if !c.Since.IsZero() {
		parts = append(parts, "SINCE "+c.Since.Format("02-Jan-2006"))
	}
	if !c.Before.IsZero() {
		parts = append(parts, "BEFORE "+c.Before.Format("02-Jan-2006"))
	}
	if c.Sender != "" {
		parts = append(parts, fmt.Sprintf("FROM %q", c.Sender))
	}
	if len(parts) == 0 {
		return "ALL"
	}
	return strings.Join(parts, " ")
}
