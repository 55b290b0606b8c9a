// Package clipdata defines the clipboard entry and snapshot model shared by
// the acquisition engine, copy-back and the transports.
//
// Payloads are always strings: textual types carry their UTF-8 text and
// everything else carries a base64 data URI, so a UI has exactly one
// representation to render or edit.
package clipdata

import "strings"

// Well-known MIME types.
const (
	MIMEText   = "text/plain"
	MIMEHTML   = "text/html"
	MIMEPNG    = "image/png"
	MIMEBinary = "application/octet-stream"
)

// Entry is one MIME-typed representation of the clipboard content.
type Entry struct {
	MIME    string `json:"type"`
	Payload string `json:"data"`
	// Size is set only when the source reported a byte count.
	Size    *int64 `json:"size,omitempty"`
	IsImage bool   `json:"isImage"`
	IsFile  bool   `json:"isFile"`
}

// Class holds the flags derived from a MIME type.
type Class struct {
	IsImage bool
	IsFile  bool
}

// Classify derives the image/file flags from mime.
func Classify(mime string) Class {
	return Class{
		IsImage: strings.HasPrefix(mime, "image/"),
		IsFile:  strings.HasPrefix(mime, "application/") || strings.Contains(mime, "file"),
	}
}

// NewEntry builds an entry from raw bytes, normalising the payload with
// ToDisplayPayload and recording the byte size.
func NewEntry(mime string, raw []byte) Entry {
	c := Classify(mime)
	size := int64(len(raw))
	return Entry{
		MIME:    mime,
		Payload: ToDisplayPayload(mime, raw),
		Size:    &size,
		IsImage: c.IsImage,
		IsFile:  c.IsFile,
	}
}

// NewTextEntry builds an entry whose payload is already display text.
// No size is recorded.
func NewTextEntry(mime, text string) Entry {
	c := Classify(mime)
	return Entry{
		MIME:    mime,
		Payload: text,
		IsImage: c.IsImage,
		IsFile:  c.IsFile,
	}
}

// NewFileEntry builds an entry for a pasted file. Files are always rendered
// as data URIs and always flagged IsFile.
func NewFileEntry(mime string, raw []byte) Entry {
	if mime == "" {
		mime = MIMEBinary
	}
	size := int64(len(raw))
	return Entry{
		MIME:    mime,
		Payload: DataURI(mime, raw),
		Size:    &size,
		IsImage: strings.HasPrefix(mime, "image/"),
		IsFile:  true,
	}
}

// IsHidden reports whether the entry is something other than plain text or
// HTML.
func (e Entry) IsHidden() bool {
	return e.MIME != MIMEText && e.MIME != MIMEHTML
}
