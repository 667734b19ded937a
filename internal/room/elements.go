package room

import (
	"time"

	"collabboard/internal/element"
)

// ConcurrentWindow: an overwrite of another user's write younger than this is reported as concurrent
const ConcurrentWindow = 500 * time.Millisecond

type editMeta struct {
	version uint64
	editor  string
	at      time.Time
}

// Change: outcome of an upsert
type Change struct {
	Created    bool
	Version    uint64
	// Previous write was by someone else within ConcurrentWindow
	Concurrent bool
	PrevEditor string
}

// Elements: authoritative element collection of a room, in order of first creation.
// Not safe for concurrent use; Room serializes access.
type Elements struct {
	items []element.Element
	index map[string]int
	meta  map[string]editMeta
}

func newElements() *Elements {
	return &Elements{
		index: make(map[string]int),
		meta:  make(map[string]editMeta),
	}
}

// Upsert: replaces the element with the same id or appends it. Last write wins.
func (e *Elements) Upsert(el element.Element, editor string, now time.Time) Change {
	prev := e.meta[el.ID]
	ch := Change{
		Version:    prev.version + 1,
		PrevEditor: prev.editor,
	}

	if i, ok := e.index[el.ID]; ok {
		e.items[i] = el.Clone()
		ch.Concurrent = prev.editor != "" && prev.editor != editor && now.Sub(prev.at) < ConcurrentWindow
	} else {
		e.index[el.ID] = len(e.items)
		e.items = append(e.items, el.Clone())
		ch.Created = true
	}

	e.meta[el.ID] = editMeta{version: ch.Version, editor: editor, at: now}
	return ch
}

// Delete: removes by id, reports whether it was present
func (e *Elements) Delete(id string) bool {
	i, ok := e.index[id]
	if !ok {
		return false
	}

	e.items = append(e.items[:i], e.items[i+1:]...)
	delete(e.index, id)
	delete(e.meta, id)
	for j := i; j < len(e.items); j++ {
		e.index[e.items[j].ID] = j
	}
	return true
}

// Get: copy of the element with id
func (e *Elements) Get(id string) (element.Element, bool) {
	i, ok := e.index[id]
	if !ok {
		return element.Element{}, false
	}
	return e.items[i].Clone(), true
}

// Has: whether id is present
func (e *Elements) Has(id string) bool {
	_, ok := e.index[id]
	return ok
}

// Version: number of upserts applied to id since it was last created
func (e *Elements) Version(id string) uint64 {
	return e.meta[id].version
}

func (e *Elements) Len() int {
	return len(e.items)
}

// Snapshot: deep copy, does not alias the live collection
func (e *Elements) Snapshot() []element.Element {
	return element.CloneAll(e.items)
}
