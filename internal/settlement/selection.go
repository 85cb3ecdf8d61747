package settlement

import (
	"math"

	"mesa-pos/internal/models"
)

// SelectedLine is one pending line plus the staff-chosen portion of it.
type SelectedLine struct {
	models.PendingLine
	PayableQty int                  `json:"payable_qty"`
	Method     models.PaymentMethod `json:"method,omitempty"`
}

// Selection is the client-local settlement state built from the pending lines
// of one table. It never touches storage; abandoning it has no effect.
type Selection struct {
	lines []SelectedLine
	index map[string]int
}

func NewSelection(pending []models.PendingLine) *Selection {
	s := &Selection{index: make(map[string]int, len(pending))}
	for _, pl := range pending {
		s.index[pl.LineID] = len(s.lines)
		s.lines = append(s.lines, SelectedLine{PendingLine: pl})
	}
	return s
}

// SelectQuantity sets the portion of a line to pay. Out-of-range input is
// clamped rather than rejected, mirroring the dialog's numeric input.
// Fractional input floors, not rounds: a partial unit is never charged.
// Song lines stay at zero.
func (s *Selection) SelectQuantity(lineID string, qty float64) {
	i, ok := s.index[lineID]
	if !ok {
		return
	}
	if !s.lines[i].Payable {
		s.lines[i].PayableQty = 0
		return
	}
	n := int(math.Floor(qty))
	if n < 0 {
		n = 0
	}
	if n > s.lines[i].OrderedQty {
		n = s.lines[i].OrderedQty
	}
	s.lines[i].PayableQty = n
}

// SelectAll selects the full ordered quantity of every payable line, which is
// equivalent to paying the whole table.
func (s *Selection) SelectAll() {
	for i := range s.lines {
		if s.lines[i].Payable {
			s.lines[i].PayableQty = s.lines[i].OrderedQty
		}
	}
}

func (s *Selection) Clear() {
	for i := range s.lines {
		s.lines[i].PayableQty = 0
		s.lines[i].Method = ""
	}
}

// AssignMethod sets the payment method on every line with a selected
// quantity; untouched lines keep whatever they had.
func (s *Selection) AssignMethod(method models.PaymentMethod) {
	for i := range s.lines {
		if s.lines[i].PayableQty > 0 {
			s.lines[i].Method = method
		}
	}
}

// AssignMethodToLine sets the method for one line regardless of quantity.
func (s *Selection) AssignMethodToLine(lineID string, method models.PaymentMethod) {
	if i, ok := s.index[lineID]; ok {
		s.lines[i].Method = method
	}
}

// Selected returns the lines with a positive selected quantity.
func (s *Selection) Selected() []SelectedLine {
	var out []SelectedLine
	for _, l := range s.lines {
		if l.PayableQty > 0 {
			out = append(out, l)
		}
	}
	return out
}

func (s *Selection) Lines() []SelectedLine {
	out := make([]SelectedLine, len(s.lines))
	copy(out, s.lines)
	return out
}

// Total is the sum of payableQty x unitPrice over the selection.
func (s *Selection) Total() float64 {
	var total float64
	for _, l := range s.lines {
		total += float64(l.PayableQty) * l.UnitPrice
	}
	return total
}

// PerMethod returns the selected subtotal per assigned payment method.
func (s *Selection) PerMethod() map[models.PaymentMethod]float64 {
	m := make(map[models.PaymentMethod]float64)
	for _, l := range s.lines {
		if l.PayableQty > 0 && l.Method != "" {
			m[l.Method] += float64(l.PayableQty) * l.UnitPrice
		}
	}
	return m
}
