package page

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// Document is one observation of a tab: its address and serialized DOM.
type Document struct {
	URL  string
	HTML string
}

// Parse builds a goquery document from the observation.
func (d Document) Parse() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(d.HTML))
}

// Source yields the current document of a tab.
type Source interface {
	Document(ctx context.Context) (Document, error)
}

// InteractionSource is implemented by sources that can tell whether the user
// clicked the highlighted element since the last call.
type InteractionSource interface {
	TakeInteraction(ctx context.Context) (selector string, ok bool, err error)
}

// ErrNoDocument is returned by a StaticSource that was never loaded.
var ErrNoDocument = errors.New("no document loaded")

// StaticSource serves a document held in memory. It backs the snapshot
// command and the tests, and lets callers simulate navigation, mutations and
// clicks.
type StaticSource struct {
	mu      sync.Mutex
	doc     Document
	loaded  bool
	clicked []string
}

func NewStaticSource(url, html string) *StaticSource {
	return &StaticSource{doc: Document{URL: url, HTML: html}, loaded: true}
}

func (s *StaticSource) Document(ctx context.Context) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return Document{}, ErrNoDocument
	}
	return s.doc, nil
}

// Load replaces the document, as a navigation or a DOM mutation would.
func (s *StaticSource) Load(url, html string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = Document{URL: url, HTML: html}
	s.loaded = true
}

// Click records a user click on the element addressed by selector.
func (s *StaticSource) Click(selector string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicked = append(s.clicked, selector)
}

func (s *StaticSource) TakeInteraction(ctx context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clicked) == 0 {
		return "", false, nil
	}
	sel := s.clicked[0]
	s.clicked = s.clicked[1:]
	return sel, true, nil
}
