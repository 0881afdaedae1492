package page

import (
	"crypto/sha256"
	"encoding/json"
	"sync"
	"time"

	"github.com/rahul/consolenano/internal/bridge"
)

// DefaultDebounce is how long the document must stay unchanged before a
// structural change is evaluated.
const DefaultDebounce = 2 * time.Second

// ChangeMonitor turns successive document observations into PAGE_CHANGED
// notifications. URL changes are reported at once; other mutations are
// debounced and reported only when the detected element set differs.
type ChangeMonitor struct {
	Debounce time.Duration

	mu           sync.Mutex
	lastURL      string
	lastHTML     [sha256.Size]byte
	lastElements string
	pending      *pendingCheck
	timer        *time.Timer
	notify       func(bridge.PageChangedEvent)
	onNavigate   func()
	now          func() time.Time
}

type pendingCheck struct {
	url      string
	elements string
}

func NewChangeMonitor(notify func(bridge.PageChangedEvent), onNavigate func()) *ChangeMonitor {
	return &ChangeMonitor{
		Debounce:   DefaultDebounce,
		notify:     notify,
		onNavigate: onNavigate,
		now:        time.Now,
	}
}

// Observe feeds one observation. The first one only sets the baseline.
func (m *ChangeMonitor) Observe(doc Document, elements Elements) {
	encoded, err := json.Marshal(elements)
	if err != nil {
		return
	}
	htmlSum := sha256.Sum256([]byte(doc.HTML))

	m.mu.Lock()
	if m.lastURL == "" {
		m.lastURL = doc.URL
		m.lastHTML = htmlSum
		m.lastElements = string(encoded)
		m.mu.Unlock()
		return
	}

	navigated := doc.URL != m.lastURL
	m.lastURL = doc.URL
	if htmlSum != m.lastHTML {
		m.lastHTML = htmlSum
		m.pending = &pendingCheck{url: doc.URL, elements: string(encoded)}
		if m.timer != nil {
			m.timer.Stop()
		}
		m.timer = time.AfterFunc(m.Debounce, m.flush)
	}
	notify, onNavigate := m.notify, m.onNavigate
	m.mu.Unlock()

	if !navigated {
		return
	}
	if onNavigate != nil {
		onNavigate()
	}
	if notify != nil {
		notify(bridge.PageChangedEvent{URL: doc.URL})
	}
}

// Stop cancels a pending debounced check.
func (m *ChangeMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.pending = nil
}

func (m *ChangeMonitor) flush() {
	m.mu.Lock()
	p := m.pending
	m.pending = nil
	m.timer = nil
	changed := p != nil && p.elements != m.lastElements
	if p != nil {
		m.lastElements = p.elements
	}
	notify := m.notify
	now := m.now()
	m.mu.Unlock()

	if changed && notify != nil {
		notify(bridge.PageChangedEvent{URL: p.url, Timestamp: now.UnixMilli()})
	}
}

// ErrorMonitor reports each distinct page error message once.
type ErrorMonitor struct {
	mu       sync.Mutex
	reported map[string]bool
	report   func(bridge.ErrorEvent)
	now      func() time.Time
}

func NewErrorMonitor(report func(bridge.ErrorEvent)) *ErrorMonitor {
	return &ErrorMonitor{
		reported: make(map[string]bool),
		report:   report,
		now:      time.Now,
	}
}

// Check reports the errors not seen before and returns how many were new.
func (m *ErrorMonitor) Check(errs []ErrorDescriptor) int {
	var fresh []ErrorDescriptor
	m.mu.Lock()
	for _, e := range errs {
		if m.reported[e.Message] {
			continue
		}
		m.reported[e.Message] = true
		fresh = append(fresh, e)
	}
	m.mu.Unlock()

	for _, e := range fresh {
		if m.report != nil {
			m.report(bridge.ErrorEvent{
				Type:      e.Type,
				Message:   e.Message,
				Timestamp: m.now().UTC().Format(time.RFC3339),
			})
		}
	}
	return len(fresh)
}
