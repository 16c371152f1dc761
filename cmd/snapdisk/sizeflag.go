package main

import (
	"fmt"
	"strconv"
	"strings"
)

// parseSize parses a byte count with an optional SI (k, M, G, ...) or
// binary (Ki, Mi, Gi, ...) suffix, e.g. "10Gi", "256Mi", "512000".
func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	units := map[string]int64{
		"":   1,
		"k":  1_000,
		"M":  1_000_000,
		"G":  1_000_000_000,
		"T":  1_000_000_000_000,
		"Ki": 1 << 10,
		"Mi": 1 << 20,
		"Gi": 1 << 30,
		"Ti": 1 << 40,
	}

	cut := len(s)
	for cut > 0 && !(s[cut-1] >= '0' && s[cut-1] <= '9') {
		cut--
	}
	numPart, suffix := s[:cut], s[cut:]

	mult, ok := units[suffix]
	if !ok {
		return 0, fmt.Errorf("unrecognized size suffix %q in %q", suffix, s)
	}

	val, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}

	return int64(val * float64(mult)), nil
}

// formatSI renders n bytes using binary suffixes, for --print-si-units.
func formatSI(n int64) string {
	units := []string{"B", "Ki", "Mi", "Gi", "Ti", "Pi"}
	f := float64(n)
	i := 0
	for f >= 1024 && i < len(units)-1 {
		f /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d %s", n, units[0])
	}
	return fmt.Sprintf("%.2f %s", f, units[i])
}
