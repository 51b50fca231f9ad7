package service

import "time"

// Message is one mailbox message as the API presents it.
type Message struct {
	MessageID   string            `json:"message_id"`
	Subject     string            `json:"subject"`
	Sender      string            `json:"sender"`
	Recipients  []string          `json:"recipients"`
	Date        time.Time         `json:"date"`
	Mailbox     string            `json:"mailbox"`
	Flags       []string          `json:"flags"`
	TextContent string            `json:"text_content,omitempty"`
	HTMLContent string            `json:"html_content,omitempty"`
	Size        int               `json:"size"`
	Attachments []AttachmentInfo  `json:"attachments"`
	Headers     map[string]string `json:"headers"`
}

// AttachmentInfo describes an attachment without its payload.
type AttachmentInfo struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	ContentID   string `json:"content_id,omitempty"`
}

// AttachmentContent is a downloadable attachment body.
type AttachmentContent struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ListQuery carries the already validated parameters of a list request.
type ListQuery struct {
	Mailbox   string
	Limit     int
	StartDate string
	EndDate   string
	Sender    string
	Subject   string
}
