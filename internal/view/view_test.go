package view

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aiforce-discovery-agent/clients/scan-console/internal/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusText(t *testing.T) {
	gw := "192.168.1.1"
	text := StatusText("5", &scan.Snapshot{
		Status:    scan.StatusRunning,
		Mode:      scan.ModeDemo,
		Gateway:   &gw,
		CreatedAt: "2024-05-01T10:00:00",
	})

	assert.JSONEq(t, `{
		"scan_id": 5,
		"status": "running",
		"mode": "demo",
		"gateway": "192.168.1.1",
		"created_at": "2024-05-01T10:00:00"
	}`, text)
	assert.True(t, strings.Contains(text, "\n  \"status\""), "status region is indented by two spaces")
}

func TestStatusTextDefaults(t *testing.T) {
	assert.JSONEq(t, `{"scan_id": "abc", "status": "pending", "gateway": null}`, StatusText("abc", &scan.Snapshot{}))
	assert.JSONEq(t, `{"scan_id": 1, "status": "pending", "gateway": null, "raw": "busy"}`, StatusText("1", &scan.Snapshot{Raw: "busy"}))
	assert.JSONEq(t, `{"scan_id": 3, "status": "queued", "gateway": null}`, StatusText("1", &scan.Snapshot{ScanID: "3", Status: "queued"}))
}

func TestResultsText(t *testing.T) {
	assert.Equal(t, `"Awaiting results..."`, ResultsText(nil))
	assert.Equal(t, `"Awaiting results..."`, ResultsText(&scan.Snapshot{Results: json.RawMessage(`{"x":1}`)}))

	text := ResultsText(&scan.Snapshot{Results: json.RawMessage(`[{"ip":"10.0.0.1","open_ports":[22]}]`)})
	assert.JSONEq(t, `[{"ip":"10.0.0.1","open_ports":[22]}]`, text)
	assert.Contains(t, text, "\n  {")
}

func TestPlaceholderStatus(t *testing.T) {
	assert.Equal(t, "{\n  \"status\": \"Starting scan...\"\n}", PlaceholderStatus("Starting scan..."))
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "status-completed", StatusClass(scan.StatusCompleted))
	assert.Equal(t, "status-running", StatusClass("RUNNING"))
	assert.Equal(t, "", StatusClass(""))
}

func TestBoard(t *testing.T) {
	b := NewBoard()

	initial := b.Snapshot()
	assert.False(t, initial.Submitting)
	assert.Equal(t, ButtonIdle, initial.Button)
	assert.Equal(t, EmptyResults, initial.Results)
	assert.Contains(t, initial.Status, "Awaiting scan start...")
	assert.Nil(t, initial.Message)

	b.SetSubmitting(true)
	b.ShowStatus(StatusUpdate{Text: "{}", Status: scan.StatusRunning, Mode: scan.ModeCloud})
	b.ShowResults("[1]")
	b.ShowMessage("boom", MessageError)

	state := b.Snapshot()
	assert.True(t, state.Submitting)
	assert.Equal(t, ButtonScanning, state.Button)
	assert.Equal(t, "status-running", state.StatusClass)
	assert.True(t, state.CloudSafe)
	assert.Equal(t, "[1]", state.Results)
	require.NotNil(t, state.Message)
	assert.Equal(t, Message{Text: "boom", Kind: MessageError}, *state.Message)

	state.Message.Text = "mutated"
	assert.Equal(t, "boom", b.Snapshot().Message.Text, "snapshot must be a copy")

	b.HideMessage()
	b.SetSubmitting(false)
	assert.Nil(t, b.Snapshot().Message)
	assert.Equal(t, []bool{true, false}, b.Transitions())
}

func TestMulti(t *testing.T) {
	a, b := NewBoard(), NewBoard()
	m := Multi{a, b}

	m.SetSubmitting(true)
	m.ShowStatus(StatusUpdate{Text: "s", Status: scan.StatusQueued})
	m.ShowResults("r")
	m.ShowMessage("hi", MessageSuccess)

	for _, board := range []*Board{a, b} {
		state := board.Snapshot()
		assert.True(t, state.Submitting)
		assert.Equal(t, "s", state.Status)
		assert.Equal(t, "r", state.Results)
		assert.Equal(t, "hi", state.Message.Text)
	}

	m.HideMessage()
	assert.Nil(t, a.Snapshot().Message)
	assert.Nil(t, b.Snapshot().Message)
}

func TestTerminal(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(&out, TerminalOptions{NoColor: true})

	term.SetSubmitting(true)
	term.ShowStatus(StatusUpdate{Text: `{"status": "running"}`, Status: scan.StatusRunning})
	term.ShowStatus(StatusUpdate{Text: `{"status": "running"}`, Status: scan.StatusRunning})
	term.ShowResults(`"Awaiting results..."`)
	term.ShowResults(`"Awaiting results..."`)
	term.ShowStatus(StatusUpdate{Text: `{"status": "completed"}`, Status: scan.StatusCompleted, Mode: scan.ModeCloud})
	term.ShowMessage("Scan 1 completed successfully.", MessageSuccess)
	term.ShowMessage("Error fetching results: nope. Scan stopped.", MessageError)
	term.SetSubmitting(false)

	got := out.String()
	assert.Equal(t, 1, strings.Count(got, `{"status": "running"}`), "repeated status is printed once")
	assert.Equal(t, 1, strings.Count(got, "Awaiting results..."), "repeated results are printed once")
	assert.Contains(t, got, `{"status": "completed"}`)
	assert.Contains(t, got, "cloud-safe mode")
	assert.Contains(t, got, "✓ Scan 1 completed successfully.")
	assert.Contains(t, got, "✗ Error fetching results: nope. Scan stopped.")
	assert.NotContains(t, got, "\x1b[", "colors are disabled")
}
