package scan

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequest(t *testing.T) {
	req, err := BuildRequest(Form{
		IPRange: " 192.168.1.0/24 ",
		Gateway: "192.168.1.1",
		Ports:   "22,443",
		Demo:    true,
	}, BuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.0/24", req.IPRange)
	require.NotNil(t, req.Gateway)
	assert.Equal(t, "192.168.1.1", *req.Gateway)
	assert.Equal(t, []int{22, 443}, req.Ports)
	assert.True(t, req.Demo)
}

func TestBuildRequestMissingIPRange(t *testing.T) {
	for _, input := range []string{"", "   ", "\t"} {
		_, err := BuildRequest(Form{IPRange: input}, BuildOptions{})
		assert.ErrorIs(t, err, ErrMissingIPRange)
	}
}

func TestBuildRequestBlankGatewayIsNull(t *testing.T) {
	req, err := BuildRequest(Form{IPRange: "10.0.0.0/8", Gateway: "  "}, BuildOptions{})
	require.NoError(t, err)

	body, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ip_range":"10.0.0.0/8","gateway":null,"ports":[22,80,443],"demo":false}`, string(body))
}

func TestBuildRequestDefaultPorts(t *testing.T) {
	req, err := BuildRequest(Form{IPRange: "10.0.0.1", Ports: "x"}, BuildOptions{DefaultPorts: []int{8080}})
	require.NoError(t, err)
	assert.Equal(t, []int{8080}, req.Ports)
}

func TestBuildRequestStrict(t *testing.T) {
	strict := BuildOptions{Strict: true}

	_, err := BuildRequest(Form{IPRange: "192.168.1.7/24", Gateway: "192.168.1.1"}, strict)
	assert.NoError(t, err, "host bits are allowed")

	_, err = BuildRequest(Form{IPRange: "10.1.2.3"}, strict)
	assert.NoError(t, err, "single address is a /32")

	_, err = BuildRequest(Form{IPRange: "192.168.1.0/33"}, strict)
	assert.ErrorIs(t, err, ErrInvalidIPRange)

	_, err = BuildRequest(Form{IPRange: "not-a-network"}, strict)
	assert.ErrorIs(t, err, ErrInvalidIPRange)

	_, err = BuildRequest(Form{IPRange: "fe80::/64"}, strict)
	assert.ErrorIs(t, err, ErrInvalidIPRange)

	_, err = BuildRequest(Form{IPRange: "192.168.1.0/24", Gateway: "10.0.0.1"}, strict)
	assert.ErrorIs(t, err, ErrGatewayOutsideRange)

	_, err = BuildRequest(Form{IPRange: "192.168.1.0/24", Gateway: "garbage"}, strict)
	assert.ErrorIs(t, err, ErrGatewayOutsideRange)
}

func TestBuildRequestLenientSkipsFormatChecks(t *testing.T) {
	_, err := BuildRequest(Form{IPRange: "not-a-network", Gateway: "x"}, BuildOptions{})
	assert.NoError(t, err)
}
