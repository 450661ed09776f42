package batch

import (
	"errors"
	"fmt"

	"github.com/noah-isme/backend-liquidacion/internal/ledger"
	"github.com/noah-isme/backend-liquidacion/internal/liquidation"
	"github.com/noah-isme/backend-liquidacion/internal/totals"
)

// ErrUnknownShipment is returned when a shipment id is not part of the batch.
var ErrUnknownShipment = errors.New("batch: unknown shipment")

// Overlay stores per-shipment item edits apart from the upstream data.
// It is not safe for concurrent use.
type Overlay struct {
	edits map[string]ledger.State
}

// NewOverlay returns an empty overlay.
func NewOverlay() *Overlay {
	return &Overlay{edits: make(map[string]ledger.State)}
}

// Effective returns the edited items of s, or its reconciled upstream items when unedited.
func (o *Overlay) Effective(s liquidation.Shipment) ledger.State {
	if edited, ok := o.edits[s.ID]; ok {
		return edited
	}
	return ledger.New(s.CompraVentaItems, s.DeductionItems, s.CommissionItems)
}

// Apply runs action on the effective items of s and stores the result. An
// action that leaves the items unchanged does not mark s as edited.
func (o *Overlay) Apply(s liquidation.Shipment, action ledger.Action) ledger.State {
	prev := o.Effective(s)
	next := ledger.Apply(prev, action)
	if ledger.Equal(prev, next) {
		return prev
	}
	o.edits[s.ID] = next
	return next
}

// Edited returns the overlay entry for id when one exists.
func (o *Overlay) Edited(id string) (ledger.State, bool) {
	s, ok := o.edits[id]
	return s, ok
}

// Len returns the number of edited shipments.
func (o *Overlay) Len() int { return len(o.edits) }

// Discard drops every edit.
func (o *Overlay) Discard() {
	o.edits = make(map[string]ledger.State)
}

// Row is a summary line of the batch table.
type Row struct {
	Shipment   liquidation.Shipment   `json:"shipment"`
	BaseValues liquidation.BaseValues `json:"baseValues"`
	Totals     liquidation.Totals     `json:"totals"`
	Edited     bool                   `json:"edited"`
	Conflicts  int                    `json:"conflicts"`
}

// Batch is a multi-shipment editing session over a private copy of the
// upstream shipments. It is not safe for concurrent use.
type Batch struct {
	shipments []liquidation.Shipment
	index     map[string]int
	overlay   *Overlay
}

// New copies shipments into a new batch.
func New(shipments []liquidation.Shipment) *Batch {
	b := &Batch{
		shipments: make([]liquidation.Shipment, 0, len(shipments)),
		index:     make(map[string]int, len(shipments)),
		overlay:   NewOverlay(),
	}
	for _, s := range shipments {
		if _, dup := b.index[s.ID]; dup {
			continue
		}
		b.index[s.ID] = len(b.shipments)
		b.shipments = append(b.shipments, s.Clone())
	}
	return b
}

// IDs returns the shipment ids in batch order.
func (b *Batch) IDs() []string {
	ids := make([]string, len(b.shipments))
	for i, s := range b.shipments {
		ids[i] = s.ID
	}
	return ids
}

// Len returns the number of shipments.
func (b *Batch) Len() int { return len(b.shipments) }

// Shipment returns a copy of the upstream shipment id.
func (b *Batch) Shipment(id string) (liquidation.Shipment, error) {
	pos, ok := b.index[id]
	if !ok {
		return liquidation.Shipment{}, fmt.Errorf("%w: %q", ErrUnknownShipment, id)
	}
	return b.shipments[pos].Clone(), nil
}

// Items returns the effective items of shipment id.
func (b *Batch) Items(id string) (ledger.State, error) {
	pos, ok := b.index[id]
	if !ok {
		return ledger.State{}, fmt.Errorf("%w: %q", ErrUnknownShipment, id)
	}
	return b.overlay.Effective(b.shipments[pos]), nil
}

// Apply runs a ledger action against shipment id's overlay entry.
func (b *Batch) Apply(id string, action ledger.Action) (ledger.State, error) {
	pos, ok := b.index[id]
	if !ok {
		return ledger.State{}, fmt.Errorf("%w: %q", ErrUnknownShipment, id)
	}
	return b.overlay.Apply(b.shipments[pos], action), nil
}

// BaseValues resolves shipment id's own basis multipliers.
func (b *Batch) BaseValues(id string) (liquidation.BaseValues, error) {
	pos, ok := b.index[id]
	if !ok {
		return liquidation.BaseValues{}, fmt.Errorf("%w: %q", ErrUnknownShipment, id)
	}
	return liquidation.ResolveBasis(b.shipments[pos].GeneralInfo), nil
}

// Totals recomputes shipment id's totals from its effective items.
func (b *Batch) Totals(id string) (liquidation.Totals, error) {
	items, err := b.Items(id)
	if err != nil {
		return liquidation.Totals{}, err
	}
	values, err := b.BaseValues(id)
	if err != nil {
		return liquidation.Totals{}, err
	}
	return totals.Compute(items, values), nil
}

// Rows builds the summary table with recomputed totals.
func (b *Batch) Rows() []Row {
	rows := make([]Row, 0, len(b.shipments))
	for _, s := range b.shipments {
		items := b.overlay.Effective(s)
		values := liquidation.ResolveBasis(s.GeneralInfo)
		_, edited := b.overlay.Edited(s.ID)
		conflicts := 0
		for _, item := range items.CompraVenta {
			if item.HasConflict {
				conflicts++
			}
		}
		rows = append(rows, Row{
			Shipment:   s.Clone(),
			BaseValues: values,
			Totals:     totals.Compute(items, values),
			Edited:     edited,
			Conflicts:  conflicts,
		})
	}
	return rows
}

// Consolidated rolls up the recomputed totals of every shipment.
func (b *Batch) Consolidated() liquidation.ConsolidatedTotals {
	entries := make([]totals.Entry, 0, len(b.shipments))
	for _, row := range b.Rows() {
		entries = append(entries, totals.Entry{Status: row.Shipment.Status, Totals: row.Totals})
	}
	return totals.Consolidate(entries)
}

// Overlay exposes the edits for the save step.
func (b *Batch) Overlay() *Overlay { return b.overlay }
