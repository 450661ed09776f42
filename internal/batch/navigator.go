package batch

import (
	"errors"
	"fmt"
)

// ErrInvalidView is returned for a navigation step the current view does not allow.
var ErrInvalidView = errors.New("batch: invalid view transition")

// View is the top-level screen of the editor.
type View string

const (
	ViewResumen View = "resumen"
	ViewDetalle View = "detalle"
)

// Tab is a sub-view of the shipment detail.
type Tab string

const (
	TabLiquidacion Tab = "liquidacion"
	TabPoliticas   Tab = "politicas"
)

// Position describes where the navigator currently is.
type Position struct {
	Screen     string `json:"screen"`
	View       View   `json:"view"`
	Tab        Tab    `json:"tab,omitempty"`
	ShipmentID string `json:"shipmentId,omitempty"`
	Index      int    `json:"index"`
	Count      int    `json:"count"`
	Expanded   string `json:"expanded,omitempty"`
}

// Navigator is the view state machine: resumen ⇄ detalle, with the
// liquidacion/politicas tabs inside detalle. Single mode has no resumen.
type Navigator struct {
	ids      []string
	single   bool
	view     View
	tab      Tab
	current  int
	expanded string
}

// NewNavigator starts in resumen for a batch and in liquidacion for a single shipment.
func NewNavigator(ids []string, single bool) *Navigator {
	n := &Navigator{ids: append([]string(nil), ids...), single: single, tab: TabLiquidacion}
	if single {
		n.view = ViewDetalle
	} else {
		n.view = ViewResumen
	}
	return n
}

// Position reports the current state.
func (n *Navigator) Position() Position {
	p := Position{View: n.view, Count: len(n.ids), Expanded: n.expanded}
	if n.view == ViewResumen {
		p.Screen = string(ViewResumen)
		return p
	}
	p.Tab = n.tab
	p.Screen = string(n.tab)
	p.Index = n.current
	if n.current < len(n.ids) {
		p.ShipmentID = n.ids[n.current]
	}
	return p
}

// Open enters the detail view of shipment id.
func (n *Navigator) Open(id string) error {
	if n.single {
		return fmt.Errorf("%w: single mode has no summary", ErrInvalidView)
	}
	for i, candidate := range n.ids {
		if candidate == id {
			n.view, n.tab, n.current = ViewDetalle, TabLiquidacion, i
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownShipment, id)
}

// Back returns from the detail view to the summary.
func (n *Navigator) Back() error {
	if n.single || n.view != ViewDetalle {
		return fmt.Errorf("%w: back from %s", ErrInvalidView, n.view)
	}
	n.view = ViewResumen
	return nil
}

// Next moves to the following shipment, wrapping at the end.
func (n *Navigator) Next() error { return n.step(1) }

// Prev moves to the previous shipment, wrapping at the start.
func (n *Navigator) Prev() error { return n.step(-1) }

func (n *Navigator) step(delta int) error {
	if n.view != ViewDetalle || len(n.ids) == 0 {
		return fmt.Errorf("%w: step outside detail", ErrInvalidView)
	}
	count := len(n.ids)
	n.current = ((n.current+delta)%count + count) % count
	return nil
}

// SelectTab switches between the detail tabs.
func (n *Navigator) SelectTab(tab Tab) error {
	if tab != TabLiquidacion && tab != TabPoliticas {
		return fmt.Errorf("%w: unknown tab %q", ErrInvalidView, tab)
	}
	if n.view != ViewDetalle {
		return fmt.Errorf("%w: tab outside detail", ErrInvalidView)
	}
	n.tab = tab
	return nil
}

// ToggleRow expands or collapses the inline details of a summary row.
func (n *Navigator) ToggleRow(id string) error {
	if n.view != ViewResumen {
		return fmt.Errorf("%w: toggle outside summary", ErrInvalidView)
	}
	for _, candidate := range n.ids {
		if candidate == id {
			if n.expanded == id {
				n.expanded = ""
			} else {
				n.expanded = id
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownShipment, id)
}

// Command is a serialized navigation request.
type Command struct {
	Action     string `json:"action"`
	ShipmentID string `json:"shipmentId,omitempty"`
	Tab        Tab    `json:"tab,omitempty"`
}

// Do dispatches a serialized navigation request.
func (n *Navigator) Do(cmd Command) error {
	switch cmd.Action {
	case "open":
		return n.Open(cmd.ShipmentID)
	case "back":
		return n.Back()
	case "next":
		return n.Next()
	case "prev":
		return n.Prev()
	case "tab":
		return n.SelectTab(cmd.Tab)
	case "toggle":
		return n.ToggleRow(cmd.ShipmentID)
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidView, cmd.Action)
	}
}
