package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePorts(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []int
	}{
		{"simple list", "22,80,443", []int{22, 80, 443}},
		{"whitespace", " 8080 , 8443 ", []int{8080, 8443}},
		{"keeps order", "443,22", []int{443, 22}},
		{"drops duplicates", "80,80,22,80", []int{80, 22}},
		{"range", "8000-8003", []int{8000, 8001, 8002, 8003}},
		{"mixed", "22, 100-101, abc, 70000", []int{22, 100, 101}},
		{"empty input", "", []int{22, 80, 443}},
		{"only separators", " , ,", []int{22, 80, 443}},
		{"only out of range", "0,65536,-1,99999", []int{22, 80, 443}},
		{"only non-numeric", "ssh,http,8o", []int{22, 80, 443}},
		{"inverted range", "90-80", []int{22, 80, 443}},
		{"range past max", "65530-65540", []int{22, 80, 443}},
		{"boundaries", "1,65535", []int{1, 65535}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePorts(tt.input, nil))
		})
	}
}

func TestParsePortsFallback(t *testing.T) {
	assert.Equal(t, []int{21}, ParsePorts("nope", []int{21}))

	got := ParsePorts("", nil)
	got[0] = 9999
	assert.Equal(t, []int{22, 80, 443}, DefaultPorts, "callers must not be able to mutate the defaults")
}
