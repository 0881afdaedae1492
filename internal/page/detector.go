package page

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	buttonSelector   = `button:not([disabled]), [role="button"]:not([disabled])`
	inputSelector    = `input:not([type="hidden"]), textarea`
	fieldSelector    = `input:not([type="hidden"]), textarea, select`
	modalSelector    = `[role="dialog"], .modal, .awsui-modal`
	breadcrumbSel    = `.awsui-breadcrumb-item, [aria-label="Breadcrumb"] a`
	genericErrorSel  = `.error-message, .alert-error, [role="alert"][class*="error"]`
	flashAlertSel    = `[data-testid="flash-bar"] [role="alert"]`
	focusedSelector  = `[data-console-nano-focused], [autofocus]`
	readyStateAttr   = "data-console-nano-ready-state"
	unnamedField     = "Unnamed field"
	maxSummary       = 30
	maxModalRunes    = 200
	maxRecentAlerts  = 3
	maxButtonRunes   = 100
	maxLinkTextRunes = 50
)

var serviceFromURL = regexp.MustCompile(`console\.aws\.amazon\.com/([^/?#]+)`)

// Detector turns a parsed console page into a Snapshot.
type Detector struct {
	logger *zap.Logger
}

func NewDetector(logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{logger: logger}
}

// Detect builds a snapshot of doc. It never panics: any failure while
// walking the document yields EmptySnapshot.
func (d *Detector) Detect(doc *goquery.Document, pageURL string) (snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("context detection failed", zap.String("url", pageURL), zap.Any("panic", r))
			snap = EmptySnapshot(pageURL, documentTitle(doc))
		}
	}()
	if doc == nil {
		return EmptySnapshot(pageURL, "")
	}

	snap = EmptySnapshot(pageURL, "")
	snap.Service = detectService(doc, pageURL)
	snap.PageTitle = detectPageTitle(doc)
	snap.Elements = detectElements(doc)
	snap.Breadcrumbs = detectBreadcrumbs(doc)
	snap.Errors = DetectErrors(doc)
	snap.FormState = detectFormState(doc)
	snap.CurrentAction = detectCurrentAction(doc)
	return snap
}

func detectService(doc *goquery.Document, pageURL string) string {
	if m := serviceFromURL.FindStringSubmatch(pageURL); m != nil {
		return strings.ToUpper(m[1])
	}
	if s := text(doc.Find(`[data-testid="awsc-nav-service-name"]`).First()); s != "" {
		return s
	}
	if s := text(doc.Find(".awsui-breadcrumb-item").First()); s != "" {
		return s
	}
	return defaultService
}

func detectPageTitle(doc *goquery.Document) string {
	if h1 := doc.Find("h1").First(); h1.Length() > 0 {
		return text(h1)
	}
	if t := doc.Find(`[data-testid="header-title"]`).First(); t.Length() > 0 {
		return text(t)
	}
	return documentTitle(doc)
}

func documentTitle(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	return text(doc.Find("title").First())
}

func detectElements(doc *goquery.Document) Elements {
	els := Elements{
		Inputs:    []InputDescriptor{},
		Buttons:   []ButtonDescriptor{},
		Dropdowns: []DropdownDescriptor{},
	}
	var summary []string

	doc.Find(buttonSelector).Each(func(_ int, btn *goquery.Selection) {
		if !IsVisible(btn) {
			return
		}
		t := text(btn)
		if t == "" || runeLen(t) >= maxButtonRunes {
			return
		}
		summary = append(summary, "Button: "+t)
		els.Buttons = append(els.Buttons, ButtonDescriptor{
			Text:      t,
			Selector:  Candidates(btn),
			IsPrimary: IsPrimaryButton(btn),
			AriaLabel: btn.AttrOr("aria-label", ""),
			ClassName: btn.AttrOr("class", ""),
		})
	})

	doc.Find(inputSelector).Each(func(_ int, in *goquery.Selection) {
		if !IsVisible(in) {
			return
		}
		label := findLabel(doc, in)
		value := controlValue(in)
		summary = append(summary, `Input: `+label+` = "`+value+`"`)
		els.Inputs = append(els.Inputs, InputDescriptor{
			Label:       label,
			Type:        goquery.NodeName(in),
			InputType:   inputType(in),
			Value:       value,
			Placeholder: in.AttrOr("placeholder", ""),
			IsEmpty:     strings.TrimSpace(value) == "",
			IsRequired:  hasAttribute(in, "required"),
			HasValue:    value != "",
			AriaLabel:   in.AttrOr("aria-label", ""),
			Selector:    Candidates(in),
		})
	})

	doc.Find("select").Each(func(_ int, sel *goquery.Selection) {
		if !IsVisible(sel) {
			return
		}
		options, selected := selectOptions(sel)
		dd := DropdownDescriptor{
			Label:     findLabel(doc, sel),
			Options:   options,
			Selector:  Candidates(sel),
			AriaLabel: sel.AttrOr("aria-label", ""),
		}
		if selected >= 0 {
			dd.Value = options[selected].Value
			dd.SelectedText = options[selected].Text
		}
		els.Dropdowns = append(els.Dropdowns, dd)
	})

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		t := text(a)
		if t != "" && runeLen(t) < maxLinkTextRunes && !strings.HasPrefix(t, "http") {
			summary = append(summary, "Link: "+t)
		}
	})

	els.Summary = dedupe(summary, maxSummary)
	return els
}

func detectFormState(doc *goquery.Document) FormState {
	fs := EmptySnapshot("", "").FormState

	doc.Find(fieldSelector).Each(func(_ int, in *goquery.Selection) {
		if !IsVisible(in) {
			return
		}
		info := FieldInfo{
			Label:       findLabel(doc, in),
			Type:        goquery.NodeName(in),
			InputType:   inputType(in),
			Value:       controlValue(in),
			Placeholder: in.AttrOr("placeholder", ""),
			Required:    hasAttribute(in, "required"),
			Disabled:    hasAttribute(in, "disabled"),
			Selector:    BestSelector(in),
		}
		fs.VisibleFields = append(fs.VisibleFields, info)
		switch {
		case strings.TrimSpace(info.Value) != "":
			fs.FilledFields = append(fs.FilledFields, info)
		case !info.Disabled:
			fs.EmptyFields = append(fs.EmptyFields, info)
		}
	})

	doc.Find("select").Each(func(_ int, sel *goquery.Selection) {
		if !IsVisible(sel) {
			return
		}
		options, selected := selectOptions(sel)
		dd := FormDropdown{
			Label:    findLabel(doc, sel),
			Options:  options,
			Selector: BestSelector(sel),
		}
		if selected >= 0 {
			dd.SelectedValue = options[selected].Value
		}
		fs.Dropdowns = append(fs.Dropdowns, dd)
	})

	doc.Find(buttonSelector).Each(func(_ int, btn *goquery.Selection) {
		if !IsVisible(btn) {
			return
		}
		t := text(btn)
		if t == "" || runeLen(t) >= maxButtonRunes {
			return
		}
		fs.Buttons = append(fs.Buttons, FormButton{
			Text:     t,
			Type:     btn.AttrOr("type", "button"),
			Selector: BestSelector(btn),
			Classes:  btn.AttrOr("class", ""),
		})
	})
	return fs
}

func detectBreadcrumbs(doc *goquery.Document) []string {
	out := []string{}
	doc.Find(breadcrumbSel).Each(func(_ int, item *goquery.Selection) {
		if t := text(item); t != "" {
			out = append(out, t)
		}
	})
	return out
}

// DetectErrors lists the error and warning messages shown on the page:
// flash-bar alerts first, then generic error blocks.
func DetectErrors(doc *goquery.Document) []ErrorDescriptor {
	out := []ErrorDescriptor{}
	seen := make(map[ErrorDescriptor]bool)
	add := func(e ErrorDescriptor) {
		if e.Message == "" || seen[e] {
			return
		}
		seen[e] = true
		out = append(out, e)
	}

	doc.Find(flashAlertSel).Each(func(_ int, alert *goquery.Selection) {
		class := alert.AttrOr("class", "")
		switch {
		case strings.Contains(class, "error"):
			add(ErrorDescriptor{Type: "error", Message: text(alert)})
		case strings.Contains(class, "warning"):
			add(ErrorDescriptor{Type: "warning", Message: text(alert)})
		}
	})
	doc.Find(genericErrorSel).Each(func(_ int, msg *goquery.Selection) {
		add(ErrorDescriptor{Type: "error", Message: text(msg)})
	})
	return out
}

func detectCurrentAction(doc *goquery.Document) ActionDescriptor {
	act := ActionDescriptor{
		ModalContent: []string{},
		RecentAlerts: []string{},
		PageReady:    doc.Find("html").AttrOr(readyStateAttr, "complete") == "complete",
	}

	if focused := doc.Find(focusedSelector).First(); focused.Length() > 0 && goquery.NodeName(focused) != "body" {
		act.FocusedElement = &FocusedElement{
			Tag:   strings.ToUpper(goquery.NodeName(focused)),
			Type:  focused.AttrOr("type", ""),
			Label: findLabel(doc, focused),
			Value: controlValue(focused),
		}
	}

	doc.Find(modalSelector).Each(func(_ int, m *goquery.Selection) {
		if !IsVisible(m) {
			return
		}
		act.HasOpenModal = true
		act.ModalContent = append(act.ModalContent, truncateRunes(m.Text(), maxModalRunes))
	})

	doc.Find(`[role="alert"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		act.RecentAlerts = append(act.RecentAlerts, text(a))
		return len(act.RecentAlerts) < maxRecentAlerts
	})
	return act
}

// findLabel resolves a control's human label: label[for=id], an enclosing
// label, aria-label, placeholder, else "Unnamed field".
func findLabel(doc *goquery.Document, in *goquery.Selection) string {
	if id, ok := in.Attr("id"); ok && id != "" {
		found := ""
		doc.Find("label[for]").EachWithBreak(func(_ int, l *goquery.Selection) bool {
			if l.AttrOr("for", "") == id {
				found = text(l)
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	if parent := in.Closest("label"); parent.Length() > 0 {
		if t := text(parent); t != "" {
			return t
		}
	}
	if v := in.AttrOr("aria-label", ""); v != "" {
		return v
	}
	if v := in.AttrOr("placeholder", ""); v != "" {
		return v
	}
	return unnamedField
}

func controlValue(in *goquery.Selection) string {
	switch goquery.NodeName(in) {
	case "textarea":
		if v, ok := in.Attr("value"); ok {
			return v
		}
		return in.Text()
	case "select":
		options, selected := selectOptions(in)
		if selected >= 0 {
			return options[selected].Value
		}
		return ""
	}
	return in.AttrOr("value", "")
}

func inputType(in *goquery.Selection) string {
	switch goquery.NodeName(in) {
	case "textarea":
		return "textarea"
	case "select":
		if hasAttribute(in, "multiple") {
			return "select-multiple"
		}
		return "select-one"
	}
	if t := strings.ToLower(in.AttrOr("type", "")); t != "" {
		return t
	}
	return "text"
}

// selectOptions lists the options of a select and the index of the selected
// one: the first option carrying the selected attribute, else the first option.
func selectOptions(sel *goquery.Selection) ([]OptionDescriptor, int) {
	options := []OptionDescriptor{}
	selected := -1
	sel.Find("option").Each(func(i int, opt *goquery.Selection) {
		t := text(opt)
		o := OptionDescriptor{Text: t, Value: opt.AttrOr("value", t)}
		if hasAttribute(opt, "selected") && selected < 0 {
			o.Selected = true
			selected = i
		}
		options = append(options, o)
	})
	if selected < 0 && len(options) > 0 && !hasAttribute(sel, "multiple") {
		selected = 0
		options[0].Selected = true
	}
	return options, selected
}

func hasAttribute(s *goquery.Selection, key string) bool {
	_, ok := s.Attr(key)
	return ok
}

// text is the trimmed text content with inner whitespace runs collapsed.
func text(s *goquery.Selection) string {
	if s == nil || s.Length() == 0 {
		return ""
	}
	return strings.Join(strings.Fields(s.Text()), " ")
}

func runeLen(s string) int {
	return len([]rune(s))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func dedupe(items []string, limit int) []string {
	out := []string{}
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
		if len(out) == limit {
			break
		}
	}
	return out
}
