package paste

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.klb.dev/clipscope/internal/clipdata"
)

// ErrEmptyEvent is returned by DecodeJSON for a paste with no data at all.
var ErrEmptyEvent = errors.New("paste event carries no data")

// wireEvent is the JSON the web page posts from its document paste handler.
type wireEvent struct {
	Types []string          `json:"types"`
	Data  map[string]string `json:"data"`
	Files []wireFile        `json:"files"`
}

type wireFile struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	// Data is the FileReader.readAsDataURL result.
	Data string `json:"data"`
}

// DecodeJSON parses a paste event posted by the web page. File bodies stay
// encoded until File.Read is called.
func DecodeJSON(r io.Reader) (Event, error) {
	var w wireEvent
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return Event{}, fmt.Errorf("decode paste event: %w", err)
	}
	if len(w.Types) == 0 && len(w.Data) == 0 && len(w.Files) == 0 {
		return Event{}, ErrEmptyEvent
	}

	ev := Event{Types: w.Types, Data: w.Data}
	if ev.Data == nil {
		ev.Data = map[string]string{}
	}
	// A format with data but missing from types still counts as declared.
	declared := make(map[string]struct{}, len(ev.Types))
	for _, t := range ev.Types {
		declared[t] = struct{}{}
	}
	for t := range ev.Data {
		if _, ok := declared[t]; !ok {
			ev.Types = append(ev.Types, t)
			declared[t] = struct{}{}
		}
	}

	for _, f := range w.Files {
		encoded := f.Data
		ev.Files = append(ev.Files, File{
			Name: f.Name,
			MIME: f.Type,
			Size: f.Size,
			Read: func(ctx context.Context) ([]byte, error) {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				_, raw, err := clipdata.ParseDataURI(encoded)
				if err != nil {
					return nil, err
				}
				return raw, nil
			},
		})
	}
	return ev, nil
}
