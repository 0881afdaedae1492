package page

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Elements under these tags never take part in layout.
var nonRendered = map[string]bool{
	"head":     true,
	"template": true,
	"script":   true,
	"style":    true,
	"noscript": true,
}

// IsVisible approximates the computed-style test a browser would run: the
// element must not be display:none, visibility:hidden or fully transparent,
// and must have a layout parent. Styles come from inline style attributes
// and the hidden attribute, inherited through the ancestor chain.
func IsVisible(s *goquery.Selection) bool {
	if s == nil || s.Length() == 0 {
		return false
	}
	n := s.Get(0)
	if n.Type != html.ElementNode {
		return false
	}

	visibilityDecided := false
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.DocumentNode {
			return true
		}
		if cur.Type != html.ElementNode {
			continue
		}
		if nonRendered[cur.Data] {
			return false
		}
		if hasAttr(cur, "hidden") {
			return false
		}
		style := inlineStyle(cur)
		if style["display"] == "none" {
			return false
		}
		if op, ok := style["opacity"]; ok && isZero(op) {
			return false
		}
		if v, ok := style["visibility"]; ok && !visibilityDecided {
			// the nearest declaration wins, as with inheritance
			visibilityDecided = true
			if v == "hidden" || v == "collapse" {
				return false
			}
		}
	}
	// detached from the document
	return false
}

func inlineStyle(n *html.Node) map[string]string {
	raw := attr(n, "style")
	if raw == "" {
		return nil
	}
	out := make(map[string]string)
	for _, decl := range strings.Split(raw, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "!important"))
		out[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(v)
	}
	return out
}

func isZero(v string) bool {
	v = strings.TrimSpace(v)
	return v == "0" || v == "0.0" || v == ".0" || v == "0%" || v == "0.00"
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}
