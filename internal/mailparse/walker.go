package mailparse

import (
	"mime"
	"strings"
)

// Attachment describes one attachment part without its payload.
type Attachment struct {
	Filename    string
	ContentType string
	Size        int
	ContentID   string
}

// Content is the classified view of a message's MIME tree: at most one
// plain text body, at most one HTML body, and the attachments in tree
// order.
type Content struct {
	Text        string
	HTML        string
	Attachments []Attachment
}

// Walk traverses the tree depth-first and classifies every leaf.
//
// A leaf whose disposition names an attachment or inline part, or that
// carries a filename, or whose main type is neither text nor
// multipart, counts as an attachment. Otherwise the first text/plain
// leaf becomes the text body and the first text/html leaf the HTML
// body; later text bodies of the same type are ignored.
func Walk(root Node) Content {
	var c Content
	walk(root, &c)
	return c
}

func walk(n Node, c *Content) {
	switch part := n.(type) {
	case *Container:
		for _, child := range part.Children {
			walk(child, c)
		}
	case *Leaf:
		classify(part, c)
	}
}

func classify(leaf *Leaf, c *Content) {
	if isAttachment(leaf) {
		c.Attachments = append(c.Attachments, Attachment{
			Filename:    attachmentFilename(leaf),
			ContentType: leaf.ContentType,
			Size:        len(leaf.Payload),
			ContentID:   leaf.ContentID,
		})
		return
	}
	switch leaf.ContentType {
	case "text/plain":
		if c.Text == "" {
			c.Text = string(leaf.Payload)
		}
	case "text/html":
		if c.HTML == "" {
			c.HTML = string(leaf.Payload)
		}
	}
}

func isAttachment(leaf *Leaf) bool {
	disp := strings.ToLower(leaf.Disposition)
	if strings.Contains(disp, "attachment") || strings.Contains(disp, "inline") {
		return true
	}
	if leaf.Filename != "" {
		return true
	}
	mainType, _, found := strings.Cut(leaf.ContentType, "/")
	if !found {
		mainType = leaf.ContentType
	}
	return mainType != "text" && mainType != "multipart"
}

// attachmentFilename returns the part's filename, synthesizing one
// from the content type when the part carries none.
func attachmentFilename(leaf *Leaf) string {
	if leaf.Filename != "" {
		return leaf.Filename
	}
	if exts, err := mime.ExtensionsByType(leaf.ContentType); err == nil && len(exts) > 0 {
		return "attachment" + exts[0]
	}
	return "attachment"
}

// FindAttachment walks the tree looking for the attachment whose
// filename matches name exactly. Parts without a filename never match,
// so synthesized names are not addressable here.
func FindAttachment(root Node, name string) *Leaf {
	if name == "" {
		return nil
	}
	switch part := root.(type) {
	case *Container:
		for _, child := range part.Children {
			if found := FindAttachment(child, name); found != nil {
				return found
			}
		}
	case *Leaf:
		if isAttachment(part) && part.Filename == name {
			return part
		}
	}
	return nil
}
