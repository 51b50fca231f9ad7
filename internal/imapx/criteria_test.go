package imapx

import (
	"errors"
	"testing"
	"time"

	"github.com/fenilsonani/imap-gateway/internal/validation"
)

func TestBuildCriteria(t *testing.T) {
	tests := []struct {
		name      string
		start     string
		end       string
		sender    string
		wantErr   bool
		wantQuery string
	}{
		{
			name:      "empty means all",
			wantQuery: "ALL",
		},
		{
			name:      "since only",
			start:     "2024-01-15",
			wantQuery: "SINCE 15-Jan-2024",
		},
		{
			name:      "full range with sender",
			start:     "2024-01-01",
			end:       "2024-02-01",
			sender:    "alice@example.com",
			wantQuery: `SINCE 01-Jan-2024 BEFORE 01-Feb-2024 FROM "alice@example.com"`,
		},
		{
			name:      "sender is trimmed",
			sender:    "  bob@example.com ",
			wantQuery: `FROM "bob@example.com"`,
		},
		{
			name:    "bad start date",
			start:   "01/15/2024",
			wantErr: true,
		},
		{
			name:    "bad end date",
			end:     "2024-13-40",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := BuildCriteria(tt.start, tt.end, tt.sender)
			if tt.wantErr {
				if err == nil {
					t.Fatal("BuildCriteria() expected error")
				}
				var serr *SearchError
				if !errors.As(err, &serr) {
					t.Fatalf("error %T, want *SearchError", err)
				}
				if !errors.Is(err, validation.ErrInvalidDate) {
					t.Errorf("error %v should wrap ErrInvalidDate", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildCriteria() error = %v", err)
			}
			if got := c.String(); got != tt.wantQuery {
				t.Errorf("String() = %q, want %q", got, tt.wantQuery)
			}
		})
	}
}

func TestCriteriaIsEmpty(t *testing.T) {
	if !(Criteria{}).IsEmpty() {
		t.Error("zero Criteria should be empty")
	}
	if (Criteria{Sender: "x"}).IsEmpty() {
		t.Error("criteria with sender should not be empty")
	}
	if (Criteria{Since: time.Now()}).IsEmpty() {
		t.Error("criteria with since should not be empty")
	}
}

func TestToSearchCriteria(t *testing.T) {
	c, err := BuildCriteria("2024-01-01", "", "alice@example.com")
	if err != nil {
		t.Fatalf("BuildCriteria() error = %v", err)
	}
	sc := c.toSearchCriteria()
	if sc.Since.IsZero() || !sc.Before.IsZero() {
		t.Errorf("date range = %v..%v", sc.Since, sc.Before)
	}
	if len(sc.Header) != 1 || sc.Header[0].Key != "From" || sc.Header[0].Value != "alice@example.com" {
		t.Errorf("Header = %+v", sc.Header)
	}
}
