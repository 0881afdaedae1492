package page

import "github.com/rahul/consolenano/internal/bridge"

// Snapshot is a point-in-time description of what the user can see on a
// console page. It is rebuilt on every request and never stored by the page.
type Snapshot struct {
	Service       string            `json:"service"`
	PageTitle     string            `json:"pageTitle"`
	URL           string            `json:"url"`
	Elements      Elements          `json:"elements"`
	Breadcrumbs   []string          `json:"breadcrumbs"`
	Errors        []ErrorDescriptor `json:"errors"`
	FormState     FormState         `json:"formState"`
	CurrentAction ActionDescriptor  `json:"currentAction"`
}

type Elements struct {
	Summary   []string             `json:"summary"`
	Inputs    []InputDescriptor    `json:"inputs"`
	Buttons   []ButtonDescriptor   `json:"buttons"`
	Dropdowns []DropdownDescriptor `json:"dropdowns"`
}

type InputDescriptor struct {
	Label       string   `json:"label"`
	Type        string   `json:"type"`
	InputType   string   `json:"inputType"`
	Value       string   `json:"value"`
	Placeholder string   `json:"placeholder"`
	IsEmpty     bool     `json:"isEmpty"`
	IsRequired  bool     `json:"isRequired"`
	HasValue    bool     `json:"hasValue"`
	AriaLabel   string   `json:"ariaLabel"`
	Selector    []string `json:"selector"`
}

type ButtonDescriptor struct {
	Text      string   `json:"text"`
	Selector  []string `json:"selector"`
	IsPrimary bool     `json:"isPrimary"`
	AriaLabel string   `json:"ariaLabel"`
	ClassName string   `json:"className"`
}

type OptionDescriptor struct {
	Text     string `json:"text"`
	Value    string `json:"value"`
	Selected bool   `json:"selected"`
}

type DropdownDescriptor struct {
	Label        string             `json:"label"`
	Value        string             `json:"value"`
	SelectedText string             `json:"selectedText"`
	Options      []OptionDescriptor `json:"options"`
	Selector     []string           `json:"selector"`
	AriaLabel    string             `json:"ariaLabel"`
}

// ErrorDescriptor is a message shown by the console. Type is "error" or "warning".
type ErrorDescriptor struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// IsError reports whether the descriptor is a hard error rather than a warning.
func (e ErrorDescriptor) IsError() bool {
	return e.Type != "warning"
}

// FieldInfo describes one visible form control with its single best selector.
type FieldInfo struct {
	Label       string `json:"label"`
	Type        string `json:"type"`
	InputType   string `json:"inputType"`
	Value       string `json:"value"`
	Placeholder string `json:"placeholder"`
	Required    bool   `json:"required"`
	Disabled    bool   `json:"disabled"`
	Selector    string `json:"selector"`
}

type FormButton struct {
	Text     string `json:"text"`
	Type     string `json:"type"`
	Selector string `json:"selector"`
	Classes  string `json:"classes"`
}

type FormDropdown struct {
	Label         string             `json:"label"`
	Options       []OptionDescriptor `json:"options"`
	SelectedValue string             `json:"selectedValue"`
	Selector      string             `json:"selector"`
}

// FormState partitions the visible fields into filled and empty ones.
type FormState struct {
	VisibleFields []FieldInfo    `json:"visibleFields"`
	FilledFields  []FieldInfo    `json:"filledFields"`
	EmptyFields   []FieldInfo    `json:"emptyFields"`
	Buttons       []FormButton   `json:"buttons"`
	Dropdowns     []FormDropdown `json:"dropdowns"`
}

type FocusedElement struct {
	Tag   string `json:"tag"`
	Type  string `json:"type"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// ActionDescriptor captures what the user is doing right now.
type ActionDescriptor struct {
	FocusedElement *FocusedElement `json:"focusedElement"`
	HasOpenModal   bool            `json:"hasOpenModal"`
	ModalContent   []string        `json:"modalContent"`
	RecentAlerts   []string        `json:"recentAlerts"`
	PageReady      bool            `json:"pageReady"`
}

// ContextResponse answers GET_PAGE_CONTEXT.
type ContextResponse struct {
	bridge.Status
	Context *Snapshot `json:"context,omitempty"`
}

const defaultService = "AWS Console"

// EmptySnapshot is substituted when detection fails. All lists are empty, not nil.
func EmptySnapshot(url, title string) Snapshot {
	return Snapshot{
		Service:     defaultService,
		PageTitle:   title,
		URL:         url,
		Elements:    Elements{Summary: []string{}, Inputs: []InputDescriptor{}, Buttons: []ButtonDescriptor{}, Dropdowns: []DropdownDescriptor{}},
		Breadcrumbs: []string{},
		Errors:      []ErrorDescriptor{},
		FormState: FormState{
			VisibleFields: []FieldInfo{},
			FilledFields:  []FieldInfo{},
			EmptyFields:   []FieldInfo{},
			Buttons:       []FormButton{},
			Dropdowns:     []FormDropdown{},
		},
		CurrentAction: ActionDescriptor{ModalContent: []string{}, RecentAlerts: []string{}},
	}
}

// FirstError returns the first hard error on the page, if any.
func (s *Snapshot) FirstError() (ErrorDescriptor, bool) {
	if s == nil {
		return ErrorDescriptor{}, false
	}
	for _, e := range s.Errors {
		if e.IsError() {
			return e, true
		}
	}
	return ErrorDescriptor{}, false
}
