package util

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

// MaxRangeWidth is the largest number of ports a single range descriptor
// expands to. Wider ranges expand to nothing, like backwards ones.
const MaxRangeWidth = 1 << 16

var (
	portRangeRegexp  = regexp.MustCompile(`^(.+)/(\d+)-(\d+)$`)
	portSuffixRegexp = regexp.MustCompile(`^(.*?)(\d+)$`)
)

// ParsePortRange expands a port range descriptor into concrete port names.
// Supports formats like:
//   - "E1/49-56" -> ["E1/49", "E1/50", ..., "E1/56"]
//   - "E1/56-49" -> [] (backwards ranges expand to nothing)
//   - "E1/0-100000" -> [] (so do ranges wider than MaxRangeWidth)
//   - "Management0" -> ["Management0"] (anything else is a literal port)
func ParsePortRange(desc string) []string {
	m := portRangeRegexp.FindStringSubmatch(desc)
	if m == nil {
		return []string{desc}
	}

	start, err := strconv.Atoi(m[2])
	if err != nil {
		return []string{desc}
	}
	end, err := strconv.Atoi(m[3])
	if err != nil {
		return []string{desc}
	}

	if start > end || end-start >= MaxRangeWidth {
		return []string{}
	}

	result := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		result = append(result, fmt.Sprintf("%s/%d", m[1], i))
	}
	return result
}

// SortPorts returns a sorted copy of a pre-expanded port list. Nothing is
// expanded or deduplicated.
func SortPorts(ports []string) []string {
	sorted := make([]string, len(ports))
	copy(sorted, ports)
	sort.SliceStable(sorted, func(i, j int) bool {
		return PortLess(sorted[i], sorted[j])
	})
	return sorted
}

// ExpandPortRanges expands every descriptor, then deduplicates and sorts the
// union so that "E1/9" comes before "E1/10".
func ExpandPortRanges(descs []string) []string {
	var ports []string
	for _, d := range descs {
		ports = append(ports, ParsePortRange(d)...)
	}
	return DedupPorts(ports)
}

// DedupPorts removes duplicate port names and sorts the result.
func DedupPorts(ports []string) []string {
	return SortPorts(sets.NewString(ports...).UnsortedList())
}

// PortLess orders ports by non-numeric prefix first, then numeric suffix.
func PortLess(a, b string) bool {
	ap, an := splitPort(a)
	bp, bn := splitPort(b)
	if ap != bp {
		return ap < bp
	}
	if an != bn {
		return an < bn
	}
	return a < b
}

// splitPort splits "E1/10" into ("E1/", 10). Ports without a numeric suffix
// get -1 so they sort ahead of numbered siblings.
func splitPort(port string) (string, int) {
	m := portSuffixRegexp.FindStringSubmatch(port)
	if m == nil {
		return port, -1
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return port, -1
	}
	return m[1], n
}

// NextAvailablePort returns the first candidate not present in used. The
// second return value is false when every candidate is taken.
func NextAvailablePort(used sets.String, candidates []string) (string, bool) {
	for _, c := range candidates {
		if !used.Has(c) {
			return c, true
		}
	}
	return "", false
}

// CompactPorts compacts a list of port names into range notation
// ["E1/49", "E1/50", "E1/51", "E1/55"] -> "E1/49-51,E1/55"
// Ports without a "/" separator are listed one by one, since ParsePortRange
// reads "Ethernet0-3" as a literal.
func CompactPorts(ports []string) string {
	if len(ports) == 0 {
		return ""
	}

	sorted := DedupPorts(ports)

	var parts []string
	startPrefix, start := rangeSuffix(sorted[0])
	end := start
	first := sorted[0]

	flush := func() {
		if start < 0 || start == end {
			parts = append(parts, first)
			return
		}
		parts = append(parts, fmt.Sprintf("%s%d-%d", startPrefix, start, end))
	}

	for _, p := range sorted[1:] {
		prefix, n := rangeSuffix(p)
		if prefix == startPrefix && start >= 0 && n == end+1 && n-start < MaxRangeWidth {
			end = n
			continue
		}
		flush()
		startPrefix, start, end, first = prefix, n, n, p
	}
	flush()

	return strings.Join(parts, ",")
}

// rangeSuffix is splitPort for ports that ParsePortRange can rebuild from
// range notation: a "<prefix>/" head and an unpadded number. Other ports
// get -1.
func rangeSuffix(port string) (string, int) {
	prefix, n := splitPort(port)
	if n < 0 || len(prefix) < 2 || !strings.HasSuffix(prefix, "/") || port != prefix+strconv.Itoa(n) {
		return port, -1
	}
	return prefix, n
}
