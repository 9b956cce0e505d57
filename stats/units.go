package stats

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	kilo = 1000
	mega = 1000 * 1000
	giga = 1000 * 1000 * 1000
	tera = 1000 * 1000 * 1000 * 1000
)

// NumberToUnit renders a count with a K/M/G/T suffix, trimming a trailing
// ".00" so round values stay short.
func NumberToUnit(num uint64) string {
	unit := ""
	value := float64(num)
	switch {
	case num >= tera:
		unit = "T"
		value = value / tera
	case num >= giga:
		unit = "G"
		value = value / giga
	case num >= mega:
		unit = "M"
		value = value / mega
	case num >= kilo:
		unit = "K"
		value = value / kilo
	}
	result := strconv.FormatFloat(value, 'f', 2, 64)
	result = strings.TrimSuffix(result, ".00")
	return result + unit
}

// BytesToRate renders a bytes-per-second value as a bits-per-second rate
// string, e.g. "84.12M" for 84.12 Mbits/s.
func BytesToRate(bytesPerSecond float64) string {
	if bytesPerSecond < 0 {
		bytesPerSecond = 0
	}
	return NumberToUnit(uint64(bytesPerSecond * 8))
}

// UnitToNumber parses a size string such as "64K", "10MB" or "1073741824"
// into a byte count. Returns an error for malformed or non-positive input;
// a literal "0" is accepted.
func UnitToNumber(s string) (uint64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}
	i := strings.IndexFunc(s, unicode.IsLetter)
	if i == -1 {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid size %q", s)
		}
		return uint64(v), nil
	}
	v, err := strconv.ParseFloat(s[:i], 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	switch s[i:] {
	case "T", "TB":
		return uint64(v * tera), nil
	case "G", "GB":
		return uint64(v * giga), nil
	case "M", "MB":
		return uint64(v * mega), nil
	case "K", "KB":
		return uint64(v * kilo), nil
	case "B":
		return uint64(v), nil
	}
	return 0, fmt.Errorf("invalid size suffix in %q", s)
}

// DurationToString renders sub-minute durations with three decimals and a
// compact unit; longer durations fall back to the standard form.
func DurationToString(d time.Duration) string {
	if d < 0 || d >= time.Minute {
		return d.String()
	}
	val := float64(d)
	unit := ""
	switch {
	case d < time.Microsecond:
		unit = "ns"
	case d < time.Millisecond:
		val = val / float64(time.Microsecond)
		unit = "us"
	case d < time.Second:
		val = val / float64(time.Millisecond)
		unit = "ms"
	default:
		val = val / float64(time.Second)
		unit = "s"
	}
	return strconv.FormatFloat(val, 'f', 3, 64) + unit
}
