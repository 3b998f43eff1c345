package guestcart

import "github.com/shopspring/decimal"

// Item is one guest cart entry. UniqueID is its only identity; the same
// product may appear on several entries.
type Item struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	ImageRef  string          `json:"imageRef,omitempty"`
	UniqueID  string          `json:"uniqueId"`
}

// State is an immutable guest cart value. Reducers return a new State.
type State struct {
	items []Item
}

// NewState copies items into a State.
func NewState(items []Item) State {
	return State{items: append([]Item(nil), items...)}
}

// Items returns a copy of the entries in insertion order.
func (s State) Items() []Item {
	return append([]Item{}, s.items...)
}

func (s State) Len() int {
	return len(s.items)
}

// Total sums unit prices; each entry is one unit.
func (s State) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.items {
		total = total.Add(item.UnitPrice)
	}
	return total
}

// Add appends item without merging.
func Add(s State, item Item) State {
	next := make([]Item, 0, len(s.items)+1)
	next = append(next, s.items...)
	return State{items: append(next, item)}
}

// Remove drops the entry with uniqueID. The second result is false when no
// entry matched.
func Remove(s State, uniqueID string) (State, bool) {
	next := make([]Item, 0, len(s.items))
	found := false
	for _, item := range s.items {
		if item.UniqueID == uniqueID {
			found = true
			continue
		}
		next = append(next, item)
	}
	if !found {
		return s, false
	}
	return State{items: next}, true
}

// Clear empties the cart.
func Clear(State) State {
	return State{}
}
