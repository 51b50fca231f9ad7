package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSession(t *testing.T) {
	tests := []struct {
		name    string
		success bool
		want    string
	}{
		{"success", true, "success"},
		{"failure", false, "failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			initial := testutil.ToFloat64(Sessions.WithLabelValues(tt.want))

			RecordSession(tt.success)

			if got := testutil.ToFloat64(Sessions.WithLabelValues(tt.want)); got != initial+1 {
				t.Errorf("Sessions[%s] = %v, want %v", tt.want, got, initial+1)
			}
		})
	}
}

func TestRecordSkip(t *testing.T) {
	reasons := []string{"fetch_error", "subject_filter"}

	for _, reason := range reasons {
		initial := testutil.ToFloat64(MessagesSkipped.WithLabelValues(reason))

		RecordSkip(reason)

		if got := testutil.ToFloat64(MessagesSkipped.WithLabelValues(reason)); got != initial+1 {
			t.Errorf("MessagesSkipped[%s] = %v, want %v", reason, got, initial+1)
		}
	}
}

func TestRecordParseFailure(t *testing.T) {
	initial := testutil.ToFloat64(ParseFailures.WithLabelValues("part"))

	RecordParseFailure("part")

	if got := testutil.ToFloat64(ParseFailures.WithLabelValues("part")); got != initial+1 {
		t.Errorf("ParseFailures[part] = %v, want %v", got, initial+1)
	}
}

func TestRecordAttachment(t *testing.T) {
	initialCount := testutil.ToFloat64(AttachmentsServed)
	initialBytes := testutil.ToFloat64(AttachmentBytes)

	RecordAttachment(2048)

	if got := testutil.ToFloat64(AttachmentsServed); got != initialCount+1 {
		t.Errorf("AttachmentsServed = %v, want %v", got, initialCount+1)
	}
	if got := testutil.ToFloat64(AttachmentBytes); got != initialBytes+2048 {
		t.Errorf("AttachmentBytes = %v, want %v", got, initialBytes+2048)
	}
}

func TestRecordHTTP(t *testing.T) {
	initial := testutil.ToFloat64(HTTPRequests.WithLabelValues("list_emails", "200"))

	RecordHTTP("list_emails", "200", 0.25)

	if got := testutil.ToFloat64(HTTPRequests.WithLabelValues("list_emails", "200")); got != initial+1 {
		t.Errorf("HTTPRequests[list_emails,200] = %v, want %v", got, initial+1)
	}
}
