// Package api provides the local HTTP console for the scan client.
package api

import (
	"github.com/aiforce-discovery-agent/clients/scan-console/internal/controller"
	"github.com/aiforce-discovery-agent/clients/scan-console/internal/scan"
	"github.com/aiforce-discovery-agent/clients/scan-console/internal/view"
)

// StartScanRequest is the body of POST /api/v1/scan/start. Ports is the raw
// comma separated list as typed by the user.
type StartScanRequest struct {
	IPRange string `json:"ip_range"`
	Gateway string `json:"gateway"`
	Ports   string `json:"ports"`
	Demo    bool   `json:"demo"`
}

func (r StartScanRequest) form() scan.Form {
	return scan.Form{IPRange: r.IPRange, Gateway: r.Gateway, Ports: r.Ports, Demo: r.Demo}
}

// ScanStatusResponse describes the controller and every output region.
type ScanStatusResponse struct {
	State       controller.State `json:"state"`
	ScanID      scan.ID          `json:"scan_id,omitempty"`
	ActivePolls int              `json:"active_polls"`
	View        view.BoardState  `json:"view"`
}

// ErrorResponse is returned for failed console requests.
type ErrorResponse struct {
	Error string           `json:"error"`
	State controller.State `json:"state,omitempty"`
	View  *view.BoardState `json:"view,omitempty"`
}
