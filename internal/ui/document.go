// Package ui holds the page-side collaborators the services drive: a
// document of addressable elements (text and visibility only) and a
// navigator for messages and redirects.
package ui

import "sync"

// Element ids the storefront writes to.
const (
	ElementCartCount   = "cart-count"
	ElementNavGuest    = "nav-guest"
	ElementNavUser     = "nav-user"
	ElementNavUserName = "nav-user-name"
)

// Element is a single page element.
type Element interface {
	Text() string
	SetText(text string)
	Visible() bool
	SetVisible(visible bool)
}

// Document looks up elements by id. ok is false when the page has no such
// element; callers treat that as a no-op.
type Document interface {
	Element(id string) (el Element, ok bool)
}

// ElementState is a point-in-time copy of an element.
type ElementState struct {
	Text    string `json:"text"`
	Visible bool   `json:"visible"`
}

// MemoryDocument is a Document backed by a map, safe for concurrent use.
type MemoryDocument struct {
	mu       sync.RWMutex
	elements map[string]*memoryElement
}

// NewMemoryDocument creates a document containing the given element ids,
// all empty and hidden.
func NewMemoryDocument(ids ...string) *MemoryDocument {
	d := &MemoryDocument{elements: make(map[string]*memoryElement, len(ids))}
	for _, id := range ids {
		d.elements[id] = &memoryElement{doc: d}
	}
	return d
}

// NewStorefrontDocument creates a document with the badge and navigation
// elements.
func NewStorefrontDocument() *MemoryDocument {
	return NewMemoryDocument(ElementCartCount, ElementNavGuest, ElementNavUser, ElementNavUserName)
}

// Element implements Document.
func (d *MemoryDocument) Element(id string) (Element, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	el, ok := d.elements[id]
	if !ok {
		return nil, false
	}
	return el, true
}

// Snapshot copies the state of every element.
func (d *MemoryDocument) Snapshot() map[string]ElementState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]ElementState, len(d.elements))
	for id, el := range d.elements {
		out[id] = el.state
	}
	return out
}

type memoryElement struct {
	doc   *MemoryDocument
	state ElementState
}

func (e *memoryElement) Text() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.state.Text
}

func (e *memoryElement) SetText(text string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.state.Text = text
}

func (e *memoryElement) Visible() bool {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.state.Visible
}

func (e *memoryElement) SetVisible(visible bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.state.Visible = visible
}
