package main

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/clipscope/internal/acquire"
	"go.klb.dev/clipscope/internal/clipdata"
	"go.klb.dev/clipscope/internal/grpcservice"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 << 20, "5.0 MiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, humanBytes(tt.n))
	}
}

func TestHTMLToMarkdown(t *testing.T) {
	assert.Equal(t, "**hello**", htmlToMarkdown("<b>hello</b>"))
	assert.Empty(t, htmlToMarkdown("  "))
}

func sampleSnapshot() clipdata.Snapshot {
	return clipdata.NewSnapshot(
		clipdata.NewEntry(clipdata.MIMEText, []byte("hello\nworld")),
		clipdata.NewEntry(clipdata.MIMEHTML, []byte("<b>hello</b>")),
		clipdata.NewEntry(clipdata.MIMEPNG, []byte{1, 2, 3}),
	).Stamp("snap-1", time.Time{}, clipdata.SourceStructured)
}

func TestPrintSnapshot(t *testing.T) {
	var buf bytes.Buffer
	printSnapshot(&buf, sampleSnapshot())
	out := buf.String()

	assert.Contains(t, out, "Snapshot snap-1")
	assert.Contains(t, out, "rich text")
	assert.Contains(t, out, "contains hidden data")
	assert.Contains(t, out, "hello world")
	assert.Contains(t, out, "image/png")
	assert.Contains(t, out, "3 B")
	assert.Contains(t, out, "**hello**")
}

func TestPrintSnapshotEmpty(t *testing.T) {
	var buf bytes.Buffer
	printSnapshot(&buf, clipdata.NewSnapshot())
	assert.Contains(t, buf.String(), "The clipboard is empty.")
}

func TestPrintPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printPayload(&buf, sampleSnapshot(), clipdata.MIMEPNG))
	assert.Equal(t, []byte{1, 2, 3}, buf.Bytes())

	err := printPayload(&buf, sampleSnapshot(), "text/rtf")
	assert.ErrorContains(t, err, "text/rtf not on the clipboard")
}

func TestEntryKind(t *testing.T) {
	assert.Equal(t, "text", entryKind(clipdata.NewEntry(clipdata.MIMEText, nil)))
	assert.Equal(t, "image", entryKind(clipdata.NewEntry(clipdata.MIMEPNG, nil)))
	assert.Equal(t, "image file", entryKind(clipdata.NewFileEntry(clipdata.MIMEPNG, nil)))
	assert.Equal(t, "file", entryKind(clipdata.NewFileEntry("", nil)))
}

func TestPrintEvent(t *testing.T) {
	snap := sampleSnapshot()
	data, err := json.Marshal(acquire.State{Generation: 3, Status: acquire.StatusSucceeded, Snapshot: &snap})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printEvent(&buf, grpcservice.WatchEvent{Kind: "state", Data: data}, false))
	assert.Equal(t, "state #3 succeeded: text/plain, text/html, image/png\n", buf.String())

	buf.Reset()
	require.NoError(t, printEvent(&buf, grpcservice.WatchEvent{Kind: "toast", Data: json.RawMessage(`{"level":"info"}`)}, false))
	assert.Equal(t, "toast {\"level\":\"info\"}\n", buf.String())

	buf.Reset()
	require.NoError(t, printEvent(&buf, grpcservice.WatchEvent{Kind: "toast", Data: json.RawMessage(`{}`)}, true))
	assert.JSONEq(t, `{"kind":"toast","data":{}}`, buf.String())
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, "tcp (127.0.0.1:8753)", &grpcservice.StateResponse{
		State:   acquire.State{Generation: 2, Status: acquire.StatusFailed, Error: "timed out"},
		Viewers: 1,
	})
	out := buf.String()
	assert.Contains(t, out, "tcp (127.0.0.1:8753)")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "timed out")
	assert.Contains(t, out, "Capabilities:  none")
}
