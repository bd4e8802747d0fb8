package htmldom

import (
	"sort"
	"strings"

	"github.com/gorilla/css/scanner"
)

// parseDeclarations splits a style attribute into property/value pairs.
// Property names are lowercased, whitespace inside values is collapsed
// and a trailing !important is dropped, as getPropertyValue does.
func parseDeclarations(style string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(style) == "" {
		return out
	}

	var (
		prop    string
		value   strings.Builder
		inValue bool
		depth   int
	)
	commit := func() {
		if prop != "" {
			v := strings.Join(strings.Fields(value.String()), " ")
			v = strings.TrimSpace(strings.TrimSuffix(v, "!important"))
			if v != "" {
				out[prop] = v
			}
		}
		prop, inValue, depth = "", false, 0
		value.Reset()
	}

	s := scanner.New(style)
	for {
		tok := s.Next()
		if tok.Type == scanner.TokenEOF || tok.Type == scanner.TokenError {
			break
		}
		if tok.Type == scanner.TokenComment {
			continue
		}
		if !inValue {
			switch {
			case tok.Type == scanner.TokenIdent && prop == "":
				prop = strings.ToLower(tok.Value)
			case tok.Type == scanner.TokenChar && tok.Value == ":" && prop != "":
				inValue = true
			case tok.Type == scanner.TokenChar && tok.Value == ";":
				commit()
			}
			continue
		}
		switch {
		case tok.Type == scanner.TokenFunction:
			depth++
		case tok.Type == scanner.TokenChar && tok.Value == ")":
			depth--
		case tok.Type == scanner.TokenChar && tok.Value == ";" && depth <= 0:
			commit()
			continue
		}
		value.WriteString(tok.Value)
	}
	commit()
	return out
}

// FormatStyle renders declarations as a style attribute with sorted keys.
func FormatStyle(style map[string]string) string {
	keys := make([]string, 0, len(style))
	for k := range style {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(style[k])
		b.WriteByte(';')
	}
	return b.String()
}
