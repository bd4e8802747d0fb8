package htmldom

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Supported selector grammar, enough to resolve what the selector
// synthesizer produces plus common hand-written selectors:
//
//	tag  #id  .class  [attr]  [attr=val]  :nth-of-type(k)  :nth-child(k)
//	compounds of the above, descendant (" ") and child (">") combinators,
//	and comma-separated groups.
type compound struct {
	tag      string
	id       string
	classes  []string
	attrs    []attrMatch
	nthType  int
	nthChild int
}

type attrMatch struct {
	key, val string
	hasVal   bool
}

type step struct {
	// combinator to the previous step: ' ' descendant, '>' child.
	comb byte
	sel  compound
}

type chain []step

type selectorGroup []chain

func parseSelector(s string) (selectorGroup, error) {
	var group selectorGroup
	for _, part := range strings.Split(s, ",") {
		c, err := parseChain(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("htmldom: invalid selector %q: %w", s, err)
		}
		group = append(group, c)
	}
	return group, nil
}

func parseChain(s string) (chain, error) {
	if s == "" {
		return nil, fmt.Errorf("empty selector")
	}
	s = strings.ReplaceAll(s, ">", " > ")
	var (
		c    chain
		comb byte = ' '
	)
	for _, tok := range strings.Fields(s) {
		if tok == ">" {
			if len(c) == 0 {
				return nil, fmt.Errorf("leading combinator")
			}
			comb = '>'
			continue
		}
		sel, err := parseCompound(tok)
		if err != nil {
			return nil, err
		}
		c = append(c, step{comb: comb, sel: sel})
		comb = ' '
	}
	if comb == '>' {
		return nil, fmt.Errorf("trailing combinator")
	}
	return c, nil
}

func parseCompound(s string) (compound, error) {
	var c compound
	i := identEnd(s, 0)
	c.tag = strings.ToLower(s[:i])
	if c.tag == "*" {
		c.tag = ""
	}
	for i < len(s) {
		switch s[i] {
		case '#':
			j := identEnd(s, i+1)
			if j == i+1 {
				return c, fmt.Errorf("empty id")
			}
			c.id = s[i+1 : j]
			i = j
		case '.':
			j := identEnd(s, i+1)
			if j == i+1 {
				return c, fmt.Errorf("empty class")
			}
			c.classes = append(c.classes, s[i+1:j])
			i = j
		case '[':
			j := strings.IndexByte(s[i:], ']')
			if j < 0 {
				return c, fmt.Errorf("unterminated attribute")
			}
			body := s[i+1 : i+j]
			var m attrMatch
			if k := strings.IndexByte(body, '='); k >= 0 {
				m = attrMatch{key: body[:k], val: strings.Trim(body[k+1:], `"'`), hasVal: true}
			} else {
				m = attrMatch{key: body}
			}
			c.attrs = append(c.attrs, m)
			i += j + 1
		case ':':
			rest := s[i+1:]
			var prefix string
			switch {
			case strings.HasPrefix(rest, "nth-of-type("):
				prefix = "nth-of-type("
			case strings.HasPrefix(rest, "nth-child("):
				prefix = "nth-child("
			default:
				return c, fmt.Errorf("unsupported pseudo-class in %q", s)
			}
			end := strings.IndexByte(rest, ')')
			if end < 0 {
				return c, fmt.Errorf("unterminated pseudo-class")
			}
			k, err := strconv.Atoi(rest[len(prefix):end])
			if err != nil || k < 1 {
				return c, fmt.Errorf("bad index in %q", s)
			}
			if prefix == "nth-of-type(" {
				c.nthType = k
			} else {
				c.nthChild = k
			}
			i += 1 + end + 1
		default:
			return c, fmt.Errorf("unexpected %q", s[i])
		}
	}
	return c, nil
}

// identEnd returns the index just past the identifier starting at i.
func identEnd(s string, i int) int {
	for i < len(s) {
		ch := s[i]
		if ch == '#' || ch == '.' || ch == '[' || ch == ':' {
			break
		}
		i++
	}
	return i
}

func (g selectorGroup) first(root *html.Node) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if g.matches(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

func (g selectorGroup) all(root *html.Node) []*html.Node {
	var out []*html.Node
	walk(root, func(n *html.Node) bool {
		if g.matches(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

func (g selectorGroup) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range g {
		if c.matches(n, len(c)-1) {
			return true
		}
	}
	return false
}

// matches checks steps [0..i] right to left, with n bound to step i.
func (c chain) matches(n *html.Node, i int) bool {
	if !c[i].sel.matches(n) {
		return false
	}
	if i == 0 {
		return true
	}
	if c[i].comb == '>' {
		p := n.Parent
		return p != nil && p.Type == html.ElementNode && c.matches(p, i-1)
	}
	for p := n.Parent; p != nil && p.Type == html.ElementNode; p = p.Parent {
		if c.matches(p, i-1) {
			return true
		}
	}
	return false
}

func (s compound) matches(n *html.Node) bool {
	if s.tag != "" && n.Data != s.tag {
		return false
	}
	if s.id != "" && attr(n, "id") != s.id {
		return false
	}
	if len(s.classes) > 0 {
		have := strings.Fields(attr(n, "class"))
		for _, want := range s.classes {
			if !contains(have, want) {
				return false
			}
		}
	}
	for _, a := range s.attrs {
		if a.hasVal {
			if attr(n, a.key) != a.val {
				return false
			}
		} else if !hasAttr(n, a.key) {
			return false
		}
	}
	if s.nthType > 0 && position(n, true) != s.nthType {
		return false
	}
	if s.nthChild > 0 && position(n, false) != s.nthChild {
		return false
	}
	return true
}

// position returns the 1-based index of n among its element siblings,
// counting only same-tag siblings when sameTag is set.
func position(n *html.Node, sameTag bool) int {
	if n.Parent == nil {
		return 1
	}
	idx := 0
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (sameTag && c.Data != n.Data) {
			continue
		}
		idx++
		if c == n {
			return idx
		}
	}
	return idx
}
