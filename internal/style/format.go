package style

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var rgbPattern = regexp.MustCompile(`rgb\((\d+),\s*(\d+),\s*(\d+)\)`)

// FormatValue normalizes a CSS value for display: px and % tokens are
// rounded to two decimals, and for color properties rgb(r, g, b) is
// rewritten as lowercase #rrggbb. Other values are returned unchanged.
func FormatValue(prop, value string) string {
	value = strings.TrimSpace(value)
	if strings.Contains(value, "px") || strings.Contains(value, "%") {
		tokens := strings.Fields(value)
		for i, tok := range tokens {
			tokens[i] = formatUnit(tok)
		}
		value = strings.Join(tokens, " ")
	}
	if strings.Contains(prop, "color") || prop == "background" {
		value = RGBToHex(value)
	}
	return value
}

func formatUnit(tok string) string {
	for _, unit := range []string{"px", "%"} {
		num, ok := strings.CutSuffix(tok, unit)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return tok
		}
		return formatNumber(round2(f)) + unit
	}
	return tok
}

// RGBToHex rewrites every rgb(r, g, b) in value as #rrggbb.
func RGBToHex(value string) string {
	return rgbPattern.ReplaceAllStringFunc(value, func(m string) string {
		parts := rgbPattern.FindStringSubmatch(m)
		var b strings.Builder
		b.WriteByte('#')
		for _, p := range parts[1:] {
			n, _ := strconv.Atoi(p)
			fmt.Fprintf(&b, "%02x", n)
		}
		return b.String()
	})
}

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// leadingFloat parses the longest numeric prefix of s, the way
// parseFloat does for "12.5px".
func leadingFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || c == '.' || ((c == '-' || c == '+') && end == 0) {
			end++
			continue
		}
		if (c == 'e' || c == 'E') && end > 0 && end+1 < len(s) {
			next := s[end+1]
			if next >= '0' && next <= '9' || next == '-' || next == '+' {
				end += 2
				continue
			}
		}
		break
	}
	for end > 0 {
		if f, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return f, true
		}
		end--
	}
	return 0, false
}
