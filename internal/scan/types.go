// Package scan holds the data model shared by the scan client: the request
// sent to the scan service, the identifier it hands back and the status
// snapshot returned while polling.
package scan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Status is a scan status as reported by the scan service.
type Status string

const (
	StatusCreated   Status = "created"
	StatusQueued    Status = "queued"
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status ends polling.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Mode is the execution mode reported by the scan service.
type Mode string

const (
	ModeDemo  Mode = "demo"
	ModeCloud Mode = "cloud"
)

// CloudSafe reports whether the deployment has live scanning disabled.
func (m Mode) CloudSafe() bool { return m == ModeCloud }

// ID identifies a scan. The service may encode it as a JSON number or string.
type ID string

// UnmarshalJSON accepts both numeric and string identifiers.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("scan id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes integer identifiers back as numbers.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) numeric() bool {
	s := string(id)
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (id ID) String() string { return string(id) }

// Request is the body of POST /scan.
type Request struct {
	IPRange string  `json:"ip_range"`
	Gateway *string `json:"gateway"`
	Ports   []int   `json:"ports"`
	Demo    bool    `json:"demo"`
}

// Snapshot is the body of GET /results/{scan_id}.
type Snapshot struct {
	ScanID    ID              `json:"scan_id"`
	Status    Status          `json:"status"`
	Mode      Mode            `json:"mode,omitempty"`
	Gateway   *string         `json:"gateway,omitempty"`
	CreatedAt string          `json:"created_at,omitempty"`
	Results   json.RawMessage `json:"results,omitempty"`

	// Raw holds the response text when the service did not answer with JSON.
	Raw string `json:"-"`
}

// EffectiveStatus returns the reported status, or pending when none was sent.
func (s *Snapshot) EffectiveStatus() Status {
	if s == nil || s.Status == "" {
		return StatusPending
	}
	return Status(strings.ToLower(string(s.Status)))
}

// HasResults reports whether the snapshot carries a results array.
func (s *Snapshot) HasResults() bool {
	if s == nil {
		return false
	}
	trimmed := bytes.TrimSpace(s.Results)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// Host is one record of the results array.
type Host struct {
	IP        string `json:"ip"`
	MAC       string `json:"mac,omitempty"`
	OpenPorts []int  `json:"open_ports"`
}

// Hosts decodes the results array into typed host records.
func (s *Snapshot) Hosts() ([]Host, error) {
	if !s.HasResults() {
		return nil, nil
	}
	var hosts []Host
	if err := json.Unmarshal(s.Results, &hosts); err != nil {
		return nil, fmt.Errorf("failed to decode results: %w", err)
	}
	return hosts, nil
}
