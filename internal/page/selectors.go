package page

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Marker classes painted on highlighted elements. They are never offered as
// selector candidates.
const (
	HighlightClass = "console-nano-highlight"
	PulseClass     = "console-nano-pulse"
)

var identRe = regexp.MustCompile(`^-?[A-Za-z_][A-Za-z0-9_-]*$`)

// Candidates returns every selector that applies to the element, in priority
// order: id, aria-label, name, data-testid, class list (and the first class
// alone when there are several), then a text selector for short labels.
func Candidates(s *goquery.Selection) []string {
	out := []string{}
	if s == nil || s.Length() == 0 {
		return out
	}
	if id, ok := s.Attr("id"); ok && id != "" {
		out = append(out, idSelector(id))
	}
	if v, ok := s.Attr("aria-label"); ok && v != "" {
		out = append(out, attrSelector("aria-label", v))
	}
	if v, ok := s.Attr("name"); ok && v != "" {
		out = append(out, attrSelector("name", v))
	}
	if v, ok := s.Attr("data-testid"); ok && v != "" {
		out = append(out, attrSelector("data-testid", v))
	}
	if classes := classList(s); len(classes) > 0 {
		out = append(out, classSelector(classes))
		if len(classes) > 1 {
			out = append(out, classSelector(classes[:1]))
		}
	}
	text := strings.TrimSpace(s.Text())
	if text != "" && len([]rune(text)) < 50 && !strings.ContainsAny(text, "\n\r\t") {
		out = append(out, fmt.Sprintf("%s:contains(%s)", goquery.NodeName(s), quote(text)))
	}
	return out
}

// BestSelector returns the single most reliable selector for the element,
// falling back to its tag name.
func BestSelector(s *goquery.Selection) string {
	if s == nil || s.Length() == 0 {
		return ""
	}
	if id, ok := s.Attr("id"); ok && id != "" {
		return idSelector(id)
	}
	for _, key := range []string{"aria-label", "name", "data-testid"} {
		if v, ok := s.Attr(key); ok && v != "" {
			return attrSelector(key, v)
		}
	}
	if classes := classList(s); len(classes) > 0 {
		return classSelector(classes[:min(2, len(classes))])
	}
	return goquery.NodeName(s)
}

// PathTo builds a selector addressing exactly this element, usable both
// against the parsed document and in the live page.
func PathTo(s *goquery.Selection) string {
	if s == nil || s.Length() == 0 {
		return ""
	}
	var parts []string
	for n := s.Get(0); n != nil && n.Type == html.ElementNode; n = n.Parent {
		if n.Data == "html" {
			parts = append(parts, "html")
			break
		}
		if id := attr(n, "id"); id != "" && identRe.MatchString(id) && uniqueID(s, id) {
			parts = append(parts, "#"+id)
			break
		}
		parts = append(parts, fmt.Sprintf("%s:nth-child(%d)", n.Data, childIndex(n)))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

// IsPrimaryButton reports whether a button looks like the main call to action.
func IsPrimaryButton(s *goquery.Selection) bool {
	class := s.AttrOr("class", "")
	aria := strings.ToLower(s.AttrOr("aria-label", ""))
	return strings.Contains(class, "primary") ||
		strings.Contains(class, "awsui-button-variant-primary") ||
		strings.Contains(aria, "create") ||
		strings.Contains(aria, "save") ||
		strings.Contains(aria, "submit")
}

// Compile validates a selector. Empty and unparsable selectors return false.
func Compile(sel string) (cascadia.Selector, bool) {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return nil, false
	}
	m, err := cascadia.Compile(sel)
	if err != nil {
		return nil, false
	}
	return m, true
}

func classList(s *goquery.Selection) []string {
	var out []string
	for _, c := range strings.Fields(s.AttrOr("class", "")) {
		if c == HighlightClass || c == PulseClass {
			continue
		}
		out = append(out, c)
	}
	return out
}

func idSelector(id string) string {
	if identRe.MatchString(id) {
		return "#" + id
	}
	return attrSelector("id", id)
}

func attrSelector(key, val string) string {
	return fmt.Sprintf("[%s=%s]", key, quote(val))
}

func classSelector(classes []string) string {
	var b strings.Builder
	for _, c := range classes {
		b.WriteByte('.')
		b.WriteString(escapeIdent(c))
	}
	return b.String()
}

// quote renders a CSS string literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func escapeIdent(s string) string {
	if identRe.MatchString(s) {
		return s
	}
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '-' || r == '_' || r >= 0x80,
			r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				fmt.Fprintf(&b, `\%x `, r)
			} else {
				b.WriteRune(r)
			}
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}

func childIndex(n *html.Node) int {
	i := 1
	for sib := n.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if sib.Type == html.ElementNode {
			i++
		}
	}
	return i
}

func uniqueID(s *goquery.Selection, id string) bool {
	root := s.Parents().Last()
	if root.Length() == 0 {
		return true
	}
	return root.Find("#"+id).Length() == 1
}
