// Package view renders the scan client's output regions: the submit control,
// the status region, the results region and the message banner.
package view

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/aiforce-discovery-agent/clients/scan-console/internal/scan"
)

// MessageKind selects how a message is styled.
type MessageKind string

const (
	MessageSuccess MessageKind = "success"
	MessageError   MessageKind = "error"
)

// Button labels of the submit control.
const (
	ButtonIdle     = "Start Scan"
	ButtonScanning = "Scanning..."
)

// EmptyResults is shown in the results region before any results arrive.
const EmptyResults = "[]"

// View receives region updates from the controller. Implementations must not
// call back into the controller.
type View interface {
	SetSubmitting(submitting bool)
	ShowStatus(update StatusUpdate)
	ShowResults(text string)
	ShowMessage(text string, kind MessageKind)
	HideMessage()
}

// StatusUpdate is one rewrite of the status region.
type StatusUpdate struct {
	Text   string
	Status scan.Status
	Mode   scan.Mode
}

// PlaceholderStatus renders a status region that only carries a label, such
// as "Starting scan...".
func PlaceholderStatus(label string) string {
	return indent(map[string]string{"status": label})
}

type statusView struct {
	ScanID    scan.ID     `json:"scan_id"`
	Status    scan.Status `json:"status"`
	Mode      scan.Mode   `json:"mode,omitempty"`
	Gateway   *string     `json:"gateway"`
	CreatedAt string      `json:"created_at,omitempty"`
	Raw       string      `json:"raw,omitempty"`
}

// StatusText renders the status region for a snapshot. id fills in the scan
// id when the service omitted it.
func StatusText(id scan.ID, snap *scan.Snapshot) string {
	sv := statusView{ScanID: id, Status: snap.EffectiveStatus()}
	if snap != nil {
		if snap.ScanID != "" {
			sv.ScanID = snap.ScanID
		}
		sv.Mode = snap.Mode
		sv.Gateway = snap.Gateway
		sv.CreatedAt = snap.CreatedAt
		sv.Raw = snap.Raw
	}
	return indent(sv)
}

// ResultsText renders the results region: the results array indented, or a
// waiting marker when there is no array yet.
func ResultsText(snap *scan.Snapshot) string {
	if !snap.HasResults() {
		return indent("Awaiting results...")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, snap.Results, "", "  "); err != nil {
		return string(snap.Results)
	}
	return buf.String()
}

// StatusClass is the style class for a status, e.g. "status-running".
func StatusClass(status scan.Status) string {
	if status == "" {
		return ""
	}
	return "status-" + strings.ToLower(string(status))
}

func indent(v any) string {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return string(out)
}
