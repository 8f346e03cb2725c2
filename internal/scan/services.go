package scan

import (
	"net"
	"sort"
)

// wellKnownServices maps common ports to the service usually behind them.
var wellKnownServices = map[int]string{
	21:    "ftp",
	22:    "ssh",
	23:    "telnet",
	25:    "smtp",
	53:    "dns",
	80:    "http",
	110:   "pop3",
	143:   "imap",
	443:   "https",
	445:   "smb",
	465:   "smtps",
	587:   "smtp-submission",
	993:   "imaps",
	995:   "pop3s",
	1433:  "mssql",
	1521:  "oracle",
	3306:  "mysql",
	3389:  "rdp",
	5432:  "postgresql",
	5672:  "amqp",
	6379:  "redis",
	8080:  "http-alt",
	8443:  "https-alt",
	9200:  "elasticsearch",
	15672: "rabbitmq-management",
	27017: "mongodb",
}

// ServiceName guesses the service for an open port. Unknown ports return
// "unknown".
func ServiceName(port int) string {
	if name, ok := wellKnownServices[port]; ok {
		return name
	}
	return "unknown"
}

// HostSummary labels a discovered host.
type HostSummary struct {
	IP       string   `json:"ip"`
	Private  bool     `json:"private"`
	Services []string `json:"services,omitempty"`
}

// Summarize labels each host with the services guessed from its open ports
// and whether its address is private.
func Summarize(hosts []Host) []HostSummary {
	out := make([]HostSummary, 0, len(hosts))
	for _, h := range hosts {
		s := HostSummary{IP: h.IP, Private: isPrivate(h.IP)}

		seen := make(map[string]bool, len(h.OpenPorts))
		for _, p := range h.OpenPorts {
			name := ServiceName(p)
			if !seen[name] {
				seen[name] = true
				s.Services = append(s.Services, name)
			}
		}
		sort.Strings(s.Services)
		out = append(out, s)
	}
	return out
}

func isPrivate(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast()
}
