package notify

import (
	"net"
	"os"
	"strings"
)

// HostFQDN returns this host's fully qualified domain name for alert text.
// Reverse resolution can fail on minimal hosts, so the short hostname is
// the fallback.
func HostFQDN() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown-host"
	}
	addrs, err := net.LookupHost(host)
	if err != nil {
		return host
	}
	for _, addr := range addrs {
		names, err := net.LookupAddr(addr)
		if err != nil || len(names) == 0 {
			continue
		}
		return strings.TrimSuffix(names[0], ".")
	}
	return host
}
