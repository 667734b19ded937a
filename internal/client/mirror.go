package client

import (
	"sync"

	"collabboard/internal/element"
)

// Mirror: local copy of a room's elements, in order of first creation
type Mirror struct {
	items []element.Element
	index map[string]int
	mu    sync.RWMutex
}

func NewMirror() *Mirror {
	return &Mirror{index: make(map[string]int)}
}

// Upsert: same rule as the server, replace by id or append
func (m *Mirror) Upsert(el element.Element) {
	if el.Degenerate() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if i, ok := m.index[el.ID]; ok {
		m.items[i] = el.Clone()
		return
	}
	m.index[el.ID] = len(m.items)
	m.items = append(m.items, el.Clone())
}

// Delete: absent ids are ignored
func (m *Mirror) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.index[id]
	if !ok {
		return false
	}
	m.items = append(m.items[:i], m.items[i+1:]...)
	delete(m.index, id)
	for j := i; j < len(m.items); j++ {
		m.index[m.items[j].ID] = j
	}
	return true
}

// Replace: drops everything local and takes the snapshot
func (m *Mirror) Replace(snapshot []element.Element) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = m.items[:0]
	m.index = make(map[string]int, len(snapshot))
	for _, el := range snapshot {
		if el.Degenerate() {
			continue
		}
		if i, ok := m.index[el.ID]; ok {
			m.items[i] = el.Clone()
			continue
		}
		m.index[el.ID] = len(m.items)
		m.items = append(m.items, el.Clone())
	}
}

func (m *Mirror) Get(id string) (element.Element, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.index[id]
	if !ok {
		return element.Element{}, false
	}
	return m.items[i].Clone(), true
}

// Elements: copy for the renderer, back to front
func (m *Mirror) Elements() []element.Element {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return element.CloneAll(m.items)
}

func (m *Mirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.items)
}

// HitTest: ids of every element under p, topmost first
func (m *Mirror) HitTest(p element.Point) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []string
	for i := len(m.items) - 1; i >= 0; i-- {
		if m.items[i].Hit(p) {
			hits = append(hits, m.items[i].ID)
		}
	}
	return hits
}
