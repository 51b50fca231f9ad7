// Package mailparse decodes message headers and walks MIME part trees.
// All parsing is best-effort: malformed input degrades to partial or
// raw results instead of failing an entire message.
package mailparse

import (
	"encoding/base64"
	"io"
	"mime"
	"regexp"
	"strings"

	"github.com/emersion/go-message/charset"
)

// encodedWordRe matches one RFC 2047 encoded word (=?charset?B|Q?text?=).
var encodedWordRe = regexp.MustCompile(`=\?[^?\s]+\?[BbQq]\?[^?\s]*\?=`)

// DecodeHeader decodes a possibly RFC 2047 encoded header value into
// plain text. Plain segments between encoded words are kept; segments
// are joined with single spaces. Values without encoded words are
// returned unchanged, and any decode failure falls back to a UTF-8
// substitution of the raw bytes, so the caller never sees an error.
func DecodeHeader(raw string) string {
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "=?") {
		return raw
	}

	matches := encodedWordRe.FindAllStringIndex(raw, -1)
	if matches == nil {
		return raw
	}

	var segments []string
	last := 0
	for _, loc := range matches {
		if plain := strings.TrimSpace(raw[last:loc[0]]); plain != "" {
			segments = append(segments, plain)
		}
		segments = append(segments, decodeWord(raw[loc[0]:loc[1]]))
		last = loc[1]
	}
	if plain := strings.TrimSpace(raw[last:]); plain != "" {
		segments = append(segments, plain)
	}

	return strings.Join(segments, " ")
}

// decodeWord decodes a single encoded word, falling back to a manual
// best-effort decode when the charset or content is broken.
func decodeWord(word string) string {
	dec := &mime.WordDecoder{CharsetReader: charsetReader}
	decoded, err := dec.Decode(word)
	if err != nil {
		return decodeWordFallback(word)
	}
	return decoded
}

// charsetReader converts a declared charset to UTF-8. Unknown charsets
// are not an error here: the bytes are passed through with invalid
// sequences substituted.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	r, err := charset.Reader(label, input)
	if err == nil {
		return r, nil
	}
	data, rerr := io.ReadAll(input)
	if rerr != nil {
		return nil, rerr
	}
	return strings.NewReader(strings.ToValidUTF8(string(data), "�")), nil
}

// decodeWordFallback recovers what it can from a malformed encoded word
// by decoding the payload manually and substituting invalid bytes.
func decodeWordFallback(word string) string {
	parts := strings.Split(word, "?")
	if len(parts) != 5 {
		return word
	}
	text := parts[3]

	var data []byte
	switch strings.ToLower(parts[2]) {
	case "b":
		d, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			data = []byte(text)
		} else {
			data = d
		}
	case "q":
		data = decodeQ(text)
	default:
		data = []byte(text)
	}

	return strings.ToValidUTF8(string(data), "�")
}

// decodeQ applies RFC 2047 Q-decoding: underscores become spaces and
// =XX sequences become the named byte. Broken escapes are kept verbatim.
func decodeQ(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '_':
			out = append(out, ' ')
		case s[i] == '=' && i+2 < len(s):
			hi, okHi := unhex(s[i+1])
			lo, okLo := unhex(s[i+2])
			if okHi && okLo {
				out = append(out, hi<<4|lo)
				i += 2
			} else {
				out = append(out, s[i])
			}
		default:
			out = append(out, s[i])
		}
	}
	return out
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
