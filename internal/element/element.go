package element

// Type: kind of drawable unit. Tool modes (select, hand, eraser, laser) are not element types.
type Type string

const (
	Rectangle Type = "rectangle"
	Diamond   Type = "diamond"
	Circle    Type = "circle"
	Arrow     Type = "arrow"
	Line      Type = "line"
	Pencil    Type = "pencil"
	Text      Type = "text"
	Image     Type = "image"
)

var AllowedTypes = map[Type]bool{
	Rectangle: true,
	Diamond:   true,
	Circle:    true,
	Arrow:     true,
	Line:      true,
	Pencil:    true,
	Text:      true,
	Image:     true,
}

type StrokeStyle string

const (
	Solid  StrokeStyle = "solid"
	Dashed StrokeStyle = "dashed"
	Dotted StrokeStyle = "dotted"
)

// Point: single vertex of a freehand path
type Point struct {
	X float64 `json:"x" validate:"min=-1000000,max=1000000"`
	Y float64 `json:"y" validate:"min=-1000000,max=1000000"`
}

// Element: the atomic shared unit of a room.
// Every update carries the full field set; there are no partial updates.
type Element struct {
	ID          string      `json:"id" validate:"required,max=128"`
	Type        Type        `json:"type" validate:"required,oneof=rectangle diamond circle arrow line pencil text image"`
	X           float64     `json:"x" validate:"min=-1000000,max=1000000"`
	Y           float64     `json:"y" validate:"min=-1000000,max=1000000"`
	Width       float64     `json:"width,omitempty" validate:"min=-1000000,max=1000000"`
	Height      float64     `json:"height,omitempty" validate:"min=-1000000,max=1000000"`
	Points      []Point     `json:"points,omitempty" validate:"max=10000,dive"`
	StrokeColor string      `json:"strokeColor" validate:"omitempty,hexcolor|oneof=transparent"`
	StrokeWidth float64     `json:"strokeWidth" validate:"min=0,max=1000"`
	FillColor   string      `json:"fillColor" validate:"omitempty,hexcolor|oneof=transparent"`
	StrokeStyle StrokeStyle `json:"strokeStyle,omitempty" validate:"omitempty,oneof=solid dashed dotted"`
	Text        string      `json:"text,omitempty" validate:"max=10000"`
	ImageData   string      `json:"imageData,omitempty" validate:"max=5242880"`

	// Provenance only. Never used to order or reject updates.
	UserID    string `json:"userId,omitempty" validate:"max=128"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Clone: deep copy, safe to hand out while the original keeps changing
func (e Element) Clone() Element {
	if e.Points != nil {
		pts := make([]Point, len(e.Points))
		copy(pts, e.Points)
		e.Points = pts
	}
	return e
}

// Degenerate: pencil strokes without points carry nothing to draw
func (e Element) Degenerate() bool {
	return e.Type == Pencil && len(e.Points) == 0
}

// CloneAll: deep copies a slice of elements
func CloneAll(elements []Element) []Element {
	out := make([]Element, len(elements))
	for i, el := range elements {
		out[i] = el.Clone()
	}
	return out
}
