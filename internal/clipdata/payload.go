package clipdata

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrNotDataURI is returned by ParseDataURI for strings without a base64
// data URI header.
var ErrNotDataURI = errors.New("not a base64 data URI")

// IsTextual reports whether payloads of mime are kept as UTF-8 text.
func IsTextual(mime string) bool {
	if strings.HasPrefix(mime, "image/") {
		return false
	}
	return strings.Contains(mime, "text") ||
		strings.Contains(mime, "html") ||
		strings.Contains(mime, "json")
}

// ToDisplayPayload converts raw clipboard bytes into the string form shown
// to the user. Images and unknown binary types become data URIs, textual
// types are decoded as UTF-8 with invalid sequences replaced.
func ToDisplayPayload(mime string, raw []byte) string {
	if IsTextual(mime) {
		return strings.ToValidUTF8(string(raw), "�")
	}
	return DataURI(mime, raw)
}

// DataURI encodes raw as data:<mime>;base64,<data>.
func DataURI(mime string, raw []byte) string {
	if mime == "" {
		mime = MIMEBinary
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw)
}

// ParseDataURI splits a base64 data URI into its MIME type and bytes.
func ParseDataURI(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, ErrNotDataURI
	}
	header, data, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrNotDataURI
	}
	mime, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, ErrNotDataURI
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", nil, fmt.Errorf("data URI payload: %w", err)
	}
	if mime == "" {
		mime = MIMEBinary
	}
	return mime, raw, nil
}

// DecodePayload returns the bytes that should be written back to the
// clipboard for e. Non-textual payloads holding a data URI are decoded;
// anything else is written as its text.
func DecodePayload(e Entry) ([]byte, error) {
	if IsTextual(e.MIME) || !strings.HasPrefix(e.Payload, "data:") {
		return []byte(e.Payload), nil
	}
	_, raw, err := ParseDataURI(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", e.MIME, err)
	}
	return raw, nil
}
