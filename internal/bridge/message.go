package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type names a message on the wire between the panel, the background engine
// and the per-tab page observers.
type Type string

const (
	GetPageContext    Type = "GET_PAGE_CONTEXT"
	HighlightElement  Type = "HIGHLIGHT_ELEMENT"
	HighlightMultiple Type = "HIGHLIGHT_MULTIPLE"
	ClearHighlight    Type = "CLEAR_HIGHLIGHT"
	Ping              Type = "PING"
	ElementInteracted Type = "ELEMENT_INTERACTED"
	PageChanged       Type = "PAGE_CHANGED"
	ErrorDetected     Type = "ERROR_DETECTED"

	StartNewTask         Type = "START_NEW_TASK"
	CompleteStep         Type = "COMPLETE_STEP"
	ResetTask            Type = "RESET_TASK"
	ClearSession         Type = "CLEAR_SESSION"
	GetCurrentState      Type = "GET_CURRENT_STATE"
	AdaptPlan            Type = "ADAPT_PLAN"
	AnswerQuestion       Type = "ANSWER_QUESTION"
	AddQuestionHistory   Type = "ADD_QUESTION_HISTORY"
	GetQuestionHistory   Type = "GET_QUESTION_HISTORY"
	DeleteQuestion       Type = "DELETE_QUESTION"
	ClearQuestionHistory Type = "CLEAR_QUESTION_HISTORY"
	ClearTaskHistory     Type = "CLEAR_TASK_HISTORY"
	DeleteCompletedTask  Type = "DELETE_COMPLETED_TASK"

	// DisplayErrorFix is pushed to the panel when the engine produced a fix plan
	// for an error reported by a page.
	DisplayErrorFix Type = "DISPLAY_ERROR_FIX"
)

// Endpoint names.
const (
	Background = "background"
	Panel      = "panel"
)

// TabEndpoint is the endpoint name of the page observer injected into a tab.
func TabEndpoint(tabID string) string {
	return "tab:" + tabID
}

// Message is a single request travelling over the bus. TabID is set by page
// observers so the receiver knows which tab the message came from.
type Message struct {
	Type  Type            `json:"type"`
	TabID string          `json:"tabId,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewMessage builds a message with data encoded as JSON.
func NewMessage(t Type, data any) Message {
	msg := Message{Type: t}
	if data == nil {
		return msg
	}
	raw, err := json.Marshal(data)
	if err == nil {
		msg.Data = raw
	}
	return msg
}

// Decode unmarshals the message payload into v. An empty payload leaves v untouched.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}

// Status is the common part of every response.
type Status struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func OK() Status {
	return Status{Success: true}
}

func Fail(err error) Status {
	if err == nil {
		return Status{Success: false, Error: "unknown error"}
	}
	return Status{Success: false, Error: err.Error()}
}

var errUnknownType = errors.New("Unknown message type")

// Unknown is the response for a message type the receiver does not handle.
func Unknown() Status {
	return Fail(errUnknownType)
}

// Selectors accepts either a single selector string or a list of them.
type Selectors []string

func (s *Selectors) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		if one == "" {
			*s = nil
		} else {
			*s = Selectors{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("selector must be a string or a list of strings: %w", err)
	}
	*s = many
	return nil
}

type HighlightRequest struct {
	Selector Selectors `json:"selector"`
}

type HighlightMultipleRequest struct {
	Selectors []string `json:"selectors"`
}

type HighlightResponse struct {
	Status
	ElementFound bool `json:"elementFound"`
}

type HighlightMultipleResponse struct {
	Status
	ElementsFound bool `json:"elementsFound"`
}

type PingResponse struct {
	Status
	Loaded bool `json:"loaded"`
}

type ElementInteractedEvent struct {
	ElementText string `json:"elementText"`
}

type PageChangedEvent struct {
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

type ErrorEvent struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

type PromptRequest struct {
	UserPrompt string `json:"userPrompt"`
}

type StepRequest struct {
	Step int `json:"step"`
}

type QuestionRequest struct {
	Question string `json:"question"`
}

type IndexRequest struct {
	Index int `json:"index"`
}
