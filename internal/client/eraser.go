package client

import (
	"collabboard/internal/element"
)

// Eraser deletes whatever is under the pointer without waiting for the server
type Eraser struct {
	r *Reconciler
}

func NewEraser(r *Reconciler) *Eraser {
	return &Eraser{r: r}
}

// EraseAt: one drawing_delete per element hit at p. Returns the erased ids.
func (e *Eraser) EraseAt(p element.Point) ([]string, error) {
	hits := e.r.Mirror().HitTest(p)
	for _, id := range hits {
		if err := e.r.Delete(id); err != nil {
			return hits, err
		}
	}
	return hits, nil
}

// ErasePath: erases along a drag, each element at most once
func (e *Eraser) ErasePath(path []element.Point) ([]string, error) {
	var erased []string
	for _, p := range path {
		ids, err := e.EraseAt(p)
		erased = append(erased, ids...)
		if err != nil {
			return erased, err
		}
	}
	return erased, nil
}
