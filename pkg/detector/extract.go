package detector

import (
	"math"
	"strconv"
	"strings"

	"github.com/wsl-tools/wslportd/pkg/portset"
)

// collectPorts walks a decoded JSON document and gathers ports from
// well-known keys and from address-like strings. Values under "port" or
// "listen_port" keys are taken as numeric ports; "listen"/"address"
// string values and any other string in the document go through
// portFromString.
func collectPorts(value any, out portset.Set) {
	switch v := value.(type) {
	case map[string]any:
		for k, child := range v {
			if strings.EqualFold(k, "port") || strings.EqualFold(k, "listen_port") {
				if f, ok := child.(float64); ok {
					if p, ok := validPort(f); ok {
						out.Insert(p)
					}
				}
			}
			if strings.EqualFold(k, "listen") || strings.EqualFold(k, "address") {
				if s, ok := child.(string); ok {
					if p, ok := portFromString(s); ok {
						out.Insert(p)
					}
				}
			}
			collectPorts(child, out)
		}
	case []any:
		for _, item := range v {
			collectPorts(item, out)
		}
	case string:
		if p, ok := portFromString(v); ok {
			out.Insert(p)
		}
	}
}

func validPort(f float64) (uint16, bool) {
	if f != math.Trunc(f) || f < 1 || f > 65535 {
		return 0, false
	}
	return uint16(f), true
}

// portFromString pulls a port out of ":8080" and "host:8080" shaped
// strings. The bare ":port" prefix form wins outright; otherwise the
// substring after the last colon is tried, with trailing slashes
// stripped. Arbitrary colon-containing strings (timestamps, IPv6
// literals) can misfire; that is accepted to keep the rule simple.
func portFromString(s string) (uint16, bool) {
	if rest, ok := strings.CutPrefix(s, ":"); ok {
		if p, err := strconv.ParseUint(rest, 10, 16); err == nil && p != 0 {
			return uint16(p), true
		}
	}

	if idx := strings.LastIndex(s, ":"); idx >= 0 {
		suffix := strings.TrimRight(s[idx+1:], "/")
		if p, err := strconv.ParseUint(suffix, 10, 16); err == nil && p != 0 {
			return uint16(p), true
		}
	}

	return 0, false
}
