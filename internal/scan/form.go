package scan

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrMissingIPRange is returned when the IP range field is blank.
	ErrMissingIPRange = errors.New("IP range is required")

	// ErrInvalidIPRange is returned by strict validation for a malformed range.
	ErrInvalidIPRange = errors.New("invalid IP range")

	// ErrGatewayOutsideRange is returned by strict validation when the
	// gateway is not inside the IP range.
	ErrGatewayOutsideRange = errors.New("gateway must belong to the IP range")
)

// Form is the raw user input for a scan.
type Form struct {
	IPRange string `json:"ip_range"`
	Gateway string `json:"gateway"`
	Ports   string `json:"ports"`
	Demo    bool   `json:"demo"`
}

// BuildOptions controls how a Form becomes a Request.
type BuildOptions struct {
	DefaultPorts []int
	Strict       bool
}

// BuildRequest validates the form and produces the request body.
func BuildRequest(form Form, opts BuildOptions) (Request, error) {
	ipRange := strings.TrimSpace(form.IPRange)
	if ipRange == "" {
		return Request{}, ErrMissingIPRange
	}

	var gateway *string
	if gw := strings.TrimSpace(form.Gateway); gw != "" {
		gateway = &gw
	}

	if opts.Strict {
		if err := validateRange(ipRange, gateway); err != nil {
			return Request{}, err
		}
	}

	return Request{
		IPRange: ipRange,
		Gateway: gateway,
		Ports:   ParsePorts(form.Ports, opts.DefaultPorts),
		Demo:    form.Demo,
	}, nil
}

// validateRange accepts an IPv4 network in CIDR form, with host bits allowed,
// or a single IPv4 address.
func validateRange(ipRange string, gateway *string) error {
	ipNet, err := parseIPv4Network(ipRange)
	if err != nil {
		return err
	}

	if gateway == nil {
		return nil
	}

	gw := net.ParseIP(*gateway)
	if gw == nil || gw.To4() == nil || !ipNet.Contains(gw) {
		return fmt.Errorf("%w: %s not in %s", ErrGatewayOutsideRange, *gateway, ipNet)
	}
	return nil
}

func parseIPv4Network(s string) (*net.IPNet, error) {
	if !strings.Contains(s, "/") {
		ip := net.ParseIP(s)
		if ip == nil || ip.To4() == nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidIPRange, s)
		}
		return &net.IPNet{IP: ip.To4(), Mask: net.CIDRMask(32, 32)}, nil
	}

	ip, ipNet, err := net.ParseCIDR(s)
	if err != nil || ip.To4() == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidIPRange, s)
	}
	return ipNet, nil
}
