package clipdata

import (
	"encoding/json"
	"slices"
	"time"
)

// Source names the acquisition stage that produced a snapshot.
type Source string

const (
	SourceNone       Source = ""
	SourceStructured Source = "structured"
	SourceText       Source = "text"
	SourcePaste      Source = "paste"
)

// Snapshot is the immutable result of one acquisition cycle. The zero value
// is an empty snapshot. Methods that "modify" return a new value and never
// alias the receiver's entries.
type Snapshot struct {
	id         string
	capturedAt time.Time
	source     Source
	entries    []Entry
}

// NewSnapshot returns a snapshot holding entries, dropping any entry whose
// MIME type already appeared earlier in the list.
func NewSnapshot(entries ...Entry) Snapshot {
	var s Snapshot
	for _, e := range entries {
		s = s.With(e)
	}
	return s
}

// With returns a copy of s with e appended, unless an entry of the same
// MIME type is already present, in which case s is returned unchanged.
func (s Snapshot) With(e Entry) Snapshot {
	if s.Has(e.MIME) {
		return s
	}
	out := s
	out.entries = make([]Entry, len(s.entries), len(s.entries)+1)
	copy(out.entries, s.entries)
	out.entries = append(out.entries, e)
	return out
}

// Merge returns a with every entry of b whose type a lacks appended.
// Identity fields come from a.
func Merge(a, b Snapshot) Snapshot {
	out := a
	for _, e := range b.entries {
		out = out.With(e)
	}
	return out
}

// Stamp returns a copy of s carrying the given identity fields.
func (s Snapshot) Stamp(id string, at time.Time, src Source) Snapshot {
	s.id = id
	s.capturedAt = at
	s.source = src
	return s
}

// ID returns the identifier assigned on delivery, or "".
func (s Snapshot) ID() string { return s.id }

// CapturedAt returns the delivery time.
func (s Snapshot) CapturedAt() time.Time { return s.capturedAt }

// Source returns the stage that produced the snapshot.
func (s Snapshot) Source() Source { return s.source }

// Len returns the number of entries.
func (s Snapshot) Len() int { return len(s.entries) }

// Empty reports whether the snapshot has no entries.
func (s Snapshot) Empty() bool { return len(s.entries) == 0 }

// Entries returns a copy of the entries in discovery order.
func (s Snapshot) Entries() []Entry { return slices.Clone(s.entries) }

// Entry returns the entry at index i.
func (s Snapshot) Entry(i int) (Entry, bool) {
	if i < 0 || i >= len(s.entries) {
		return Entry{}, false
	}
	return s.entries[i], true
}

// Lookup returns the entry of the given MIME type.
func (s Snapshot) Lookup(mime string) (Entry, bool) {
	for _, e := range s.entries {
		if e.MIME == mime {
			return e, true
		}
	}
	return Entry{}, false
}

// Has reports whether an entry of the given MIME type exists.
func (s Snapshot) Has(mime string) bool {
	_, ok := s.Lookup(mime)
	return ok
}

// Types returns the MIME types in discovery order.
func (s Snapshot) Types() []string {
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.MIME
	}
	return out
}

// PrimaryText returns the text/plain payload, or "".
func (s Snapshot) PrimaryText() string {
	e, _ := s.Lookup(MIMEText)
	return e.Payload
}

// PrimaryHTML returns the text/html payload if present.
func (s Snapshot) PrimaryHTML() (string, bool) {
	e, ok := s.Lookup(MIMEHTML)
	return e.Payload, ok
}

// HasRichText reports whether an HTML entry is present.
func (s Snapshot) HasRichText() bool { return s.Has(MIMEHTML) }

// HasHiddenData reports whether any entry is neither text/plain nor text/html.
func (s Snapshot) HasHiddenData() bool {
	return slices.ContainsFunc(s.entries, Entry.IsHidden)
}

// snapshotJSON is the wire form consumed by the web page and the CLI.
type snapshotJSON struct {
	ID            string    `json:"id,omitempty"`
	CapturedAt    time.Time `json:"capturedAt,omitzero"`
	Source        Source    `json:"source,omitempty"`
	Text          string    `json:"text"`
	HTML          *string   `json:"html"`
	HasRichText   bool      `json:"hasRichText"`
	HasHiddenData bool      `json:"hasHiddenData"`
	Items         []Entry   `json:"items"`
}

// MarshalJSON implements json.Marshaler.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	j := snapshotJSON{
		ID:            s.id,
		CapturedAt:    s.capturedAt,
		Source:        s.source,
		Text:          s.PrimaryText(),
		HasRichText:   s.HasRichText(),
		HasHiddenData: s.HasHiddenData(),
		Items:         s.entries,
	}
	if html, ok := s.PrimaryHTML(); ok {
		j.HTML = &html
	}
	if j.Items == nil {
		j.Items = []Entry{}
	}
	return json.Marshal(j)
}

// UnmarshalJSON implements json.Unmarshaler. Derived fields are recomputed
// from the items rather than trusted.
func (s *Snapshot) UnmarshalJSON(b []byte) error {
	var j snapshotJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	out := NewSnapshot(j.Items...).Stamp(j.ID, j.CapturedAt, j.Source)
	*s = out
	return nil
}
