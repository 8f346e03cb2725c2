package scan

import (
	"strconv"
	"strings"
)

const (
	minPort = 1
	maxPort = 65535
)

// DefaultPorts is used when a port list parses to nothing.
var DefaultPorts = []int{22, 80, 443}

// ParsePorts turns a comma separated list such as "22, 80, 8000-8010" into
// ports. Tokens that are not numbers or ranges, and values outside 1-65535,
// are dropped. Duplicates keep their first position. When nothing is left
// the fallback list is returned, or DefaultPorts if fallback is empty.
func ParsePorts(input string, fallback []int) []int {
	seen := make(map[int]bool)
	ports := make([]int, 0)

	add := func(p int) {
		if p < minPort || p > maxPort || seen[p] {
			return
		}
		seen[p] = true
		ports = append(ports, p)
	}

	for _, token := range strings.Split(input, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		if lo, hi, ok := parseRange(token); ok {
			for p := lo; p <= hi; p++ {
				add(p)
			}
			continue
		}

		if p, err := strconv.Atoi(token); err == nil {
			add(p)
		}
	}

	if len(ports) == 0 {
		return defaultPorts(fallback)
	}
	return ports
}

// parseRange accepts "a-b" with both ends in range and a <= b.
func parseRange(token string) (int, int, bool) {
	loStr, hiStr, found := strings.Cut(token, "-")
	if !found {
		return 0, 0, false
	}
	lo, err := strconv.Atoi(strings.TrimSpace(loStr))
	if err != nil {
		return 0, 0, false
	}
	hi, err := strconv.Atoi(strings.TrimSpace(hiStr))
	if err != nil {
		return 0, 0, false
	}
	if lo < minPort || hi > maxPort || lo > hi {
		return 0, 0, false
	}
	return lo, hi, true
}

func defaultPorts(fallback []int) []int {
	src := DefaultPorts
	if len(fallback) > 0 {
		src = fallback
	}
	out := make([]int, len(src))
	copy(out, src)
	return out
}
