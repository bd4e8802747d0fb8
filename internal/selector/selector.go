// Package selector synthesizes CSS selectors for elements and resolves
// them back against a document.
//
// Synthesized selectors are human-readable and best-effort: they are not
// guaranteed unique, nor stable across structural DOM changes.
package selector

import (
	"fmt"
	"strings"

	"github.com/v0xg/pickmode/internal/dom"
)

// Synthesize returns a selector for el, in priority order:
//
//	#id                      non-empty id
//	tag.class1.class2        non-empty class list
//	tag:nth-of-type(k)       more than one same-tag sibling
//	tag                      otherwise
func Synthesize(el dom.Element) string {
	if el == nil {
		return ""
	}
	if id := el.ID(); id != "" {
		return "#" + id
	}

	tag := strings.ToLower(el.TagName())
	if classes := strings.Fields(el.ClassName()); len(classes) > 0 {
		return tag + "." + strings.Join(classes, ".")
	}

	if parent := el.Parent(); parent != nil {
		pos, same := 0, 0
		for _, sib := range parent.Children() {
			if strings.ToLower(sib.TagName()) != tag {
				continue
			}
			same++
			if sib == el {
				pos = same
			}
		}
		if same > 1 && pos > 0 {
			return fmt.Sprintf("%s:nth-of-type(%d)", tag, pos)
		}
	}

	return tag
}

// Resolve returns the first element matching sel, or nil.
func Resolve(doc dom.Document, sel string) (dom.Element, error) {
	if strings.TrimSpace(sel) == "" {
		return nil, nil
	}
	el, err := doc.QuerySelector(sel)
	if err != nil {
		return nil, fmt.Errorf("selector: resolve %q: %w", sel, err)
	}
	return el, nil
}
