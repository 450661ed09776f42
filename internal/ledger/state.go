package ledger

import (
	"reflect"

	"github.com/noah-isme/backend-liquidacion/internal/liquidation"
	"github.com/noah-isme/backend-liquidacion/internal/rubro"
)

// State holds the three item collections of one shipment. Values are treated
// as immutable: every action produces a new State with fresh slices.
type State struct {
	CompraVenta []liquidation.CompraVentaItem `json:"compraVenta"`
	Deductions  []liquidation.DeductionItem   `json:"deductions"`
	Commissions []liquidation.CommissionItem  `json:"commissions"`
}

// Action is a state transition.
type Action interface {
	apply(State) State
}

// SetAll replaces every collection. Purchase/sale rows are reconciled first.
type SetAll struct {
	CompraVenta []liquidation.CompraVentaItem
	Deductions  []liquidation.DeductionItem
	Commissions []liquidation.CommissionItem
}

// AddItem adds one item to the collection its type names.
type AddItem struct {
	Item liquidation.Item
}

// DeleteItem removes the item with ID from the named collection.
type DeleteItem struct {
	ID   string
	Type liquidation.ItemType
}

// Apply returns the state produced by running action against s.
func Apply(s State, action Action) State {
	if action == nil {
		return s
	}
	return action.apply(s)
}

// New builds a reconciled state from raw upstream collections.
func New(cv []liquidation.CompraVentaItem, ded []liquidation.DeductionItem, com []liquidation.CommissionItem) State {
	return Apply(State{}, SetAll{CompraVenta: cv, Deductions: ded, Commissions: com})
}

func (a SetAll) apply(State) State {
	return State{
		CompraVenta: rubro.MergeAll(a.CompraVenta),
		Deductions:  append([]liquidation.DeductionItem{}, a.Deductions...),
		Commissions: append([]liquidation.CommissionItem{}, a.Commissions...),
	}
}

func (a AddItem) apply(s State) State {
	if a.Item == nil {
		return s
	}
	if id := a.Item.ItemID(); id != "" {
		if _, exists := s.Find(id, a.Item.ItemType()); exists {
			// replayed dispatch of an add that already landed
			return s
		}
	}
	switch item := a.Item.(type) {
	case liquidation.CompraVentaItem:
		s.CompraVenta = rubro.MergeInto(s.CompraVenta, item)
	case liquidation.DeductionItem:
		s.Deductions = append(append([]liquidation.DeductionItem{}, s.Deductions...), item)
	case liquidation.CommissionItem:
		s.Commissions = append(append([]liquidation.CommissionItem{}, s.Commissions...), item)
	}
	return s
}

func (a DeleteItem) apply(s State) State {
	switch a.Type {
	case liquidation.TypeCompraVenta:
		idx := indexOf(len(s.CompraVenta), func(i int) bool { return s.CompraVenta[i].ID == a.ID })
		if idx < 0 {
			return s
		}
		name := s.CompraVenta[idx].Rubro
		s.CompraVenta = rubro.Reconcile(without(s.CompraVenta, idx), name)
	case liquidation.TypeDeductions:
		idx := indexOf(len(s.Deductions), func(i int) bool { return s.Deductions[i].ID == a.ID })
		if idx < 0 {
			return s
		}
		s.Deductions = without(s.Deductions, idx)
	case liquidation.TypeCommissions:
		idx := indexOf(len(s.Commissions), func(i int) bool { return s.Commissions[i].ID == a.ID })
		if idx < 0 {
			return s
		}
		s.Commissions = without(s.Commissions, idx)
	}
	return s
}

// Find looks up an item by id within the named collection.
func (s State) Find(id string, typ liquidation.ItemType) (liquidation.Item, bool) {
	switch typ {
	case liquidation.TypeCompraVenta:
		for _, item := range s.CompraVenta {
			if item.ID == id {
				return item, true
			}
		}
	case liquidation.TypeDeductions:
		for _, item := range s.Deductions {
			if item.ID == id {
				return item, true
			}
		}
	case liquidation.TypeCommissions:
		for _, item := range s.Commissions {
			if item.ID == id {
				return item, true
			}
		}
	}
	return nil, false
}

// Holder returns the stored row an added item ended up in: the row carrying
// its id, or for purchase/sale items the same-named row with the same basis
// it was merged into.
func (s State) Holder(item liquidation.Item) (liquidation.Item, bool) {
	if item == nil {
		return nil, false
	}
	if found, ok := s.Find(item.ItemID(), item.ItemType()); ok {
		return found, true
	}
	cv, ok := item.(liquidation.CompraVentaItem)
	if !ok {
		return nil, false
	}
	for _, row := range s.CompraVenta {
		if row.BaseKey == cv.BaseKey && rubro.SameRubro(row.Rubro, cv.Rubro) {
			return row, true
		}
	}
	return nil, false
}

// Equal reports whether a and b hold the same rows in the same order.
func Equal(a, b State) bool {
	return sameRows(a.CompraVenta, b.CompraVenta) &&
		sameRows(a.Deductions, b.Deductions) &&
		sameRows(a.Commissions, b.Commissions)
}

func sameRows[T any](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Len returns the number of items across all collections.
func (s State) Len() int {
	return len(s.CompraVenta) + len(s.Deductions) + len(s.Commissions)
}

func indexOf(n int, match func(int) bool) int {
	for i := 0; i < n; i++ {
		if match(i) {
			return i
		}
	}
	return -1
}

func without[T any](items []T, idx int) []T {
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:idx]...)
	return append(out, items[idx+1:]...)
}
