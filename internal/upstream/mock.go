package upstream

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/backend-liquidacion/internal/catalog"
	"github.com/noah-isme/backend-liquidacion/internal/liquidation"
	"github.com/noah-isme/backend-liquidacion/internal/payload"
)

// Call records one persistence call received by the mock.
type Call struct {
	Op     string
	ItemID string
	Type   liquidation.ItemType
	At     time.Time
}

// Mock serves demo data with a simulated network delay and acknowledges
// every write. Setting Fail makes every call return that error.
type Mock struct {
	Delay time.Duration
	Fail  error

	mu        sync.Mutex
	shipments map[string]liquidation.Shipment
	calls     []Call
	saved     []payload.Envelope
}

// NewMock builds a mock backed by the demo shipments.
func NewMock(delay time.Duration) *Mock {
	m := &Mock{Delay: delay, shipments: make(map[string]liquidation.Shipment)}
	for _, s := range DemoShipments() {
		m.shipments[s.AWB] = s
	}
	return m
}

func (m *Mock) wait(ctx context.Context) error {
	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}
	return m.Fail
}

func (m *Mock) shipment(awb string) (liquidation.Shipment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shipments[awb]
	if !ok {
		return liquidation.Shipment{}, false
	}
	return s.Clone(), true
}

// GetGeneralInfo returns the general info of awb, or the demo record when
// the AWB is unknown.
func (m *Mock) GetGeneralInfo(ctx context.Context, awb string) (liquidation.GeneralInfo, error) {
	if err := m.wait(ctx); err != nil {
		return liquidation.GeneralInfo{}, err
	}
	if s, ok := m.shipment(awb); ok {
		return s.GeneralInfo, nil
	}
	return DemoGeneralInfo(), nil
}

// GetCompraVentaItems returns the purchase/sale rows of awb.
func (m *Mock) GetCompraVentaItems(ctx context.Context, awb string) ([]liquidation.CompraVentaItem, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if s, ok := m.shipment(awb); ok {
		return s.CompraVentaItems, nil
	}
	return DemoCompraVentaItems(), nil
}

// GetDeductionItems returns the deductions of awb.
func (m *Mock) GetDeductionItems(ctx context.Context, awb string) ([]liquidation.DeductionItem, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if s, ok := m.shipment(awb); ok {
		return s.DeductionItems, nil
	}
	return DemoDeductionItems(), nil
}

// GetCommissionItems returns the commissions of awb.
func (m *Mock) GetCommissionItems(ctx context.Context, awb string) ([]liquidation.CommissionItem, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if s, ok := m.shipment(awb); ok {
		return s.CommissionItems, nil
	}
	return DemoCommissionItems(), nil
}

// UpdateGeneralInfo acknowledges a general info update.
func (m *Mock) UpdateGeneralInfo(ctx context.Context, _ liquidation.GeneralInfo) (Result, error) {
	if err := m.wait(ctx); err != nil {
		return Result{}, err
	}
	m.record(Call{Op: "update_general_info"})
	return Result{Success: true, Message: "Información actualizada correctamente"}, nil
}

// AddItem acknowledges an item add.
func (m *Mock) AddItem(ctx context.Context, item liquidation.Item) (Result, error) {
	if err := m.wait(ctx); err != nil {
		return Result{}, err
	}
	m.record(Call{Op: "add_item", ItemID: item.ItemID(), Type: item.ItemType()})
	return Result{Success: true, Message: "Item agregado correctamente"}, nil
}

// DeleteItem acknowledges an item delete.
func (m *Mock) DeleteItem(ctx context.Context, id string, typ liquidation.ItemType) (Result, error) {
	if err := m.wait(ctx); err != nil {
		return Result{}, err
	}
	m.record(Call{Op: "delete_item", ItemID: id, Type: typ})
	return Result{Success: true, Message: "Item eliminado correctamente"}, nil
}

// SaveLiquidation keeps the envelope for inspection.
func (m *Mock) SaveLiquidation(ctx context.Context, env payload.Envelope) (Result, error) {
	if err := m.wait(ctx); err != nil {
		return Result{}, err
	}
	m.mu.Lock()
	m.saved = append(m.saved, env)
	m.mu.Unlock()
	m.record(Call{Op: "save"})
	return Result{Success: true, Message: "Liquidación guardada correctamente"}, nil
}

// RubroOptions serves the built-in rubro catalog.
func (m *Mock) RubroOptions(ctx context.Context, tab liquidation.ItemType) ([]catalog.RubroOption, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return catalog.Default().RubroOptions(tab)
}

// ExporterOptions serves the built-in exporters plus the remote-only ones.
func (m *Mock) ExporterOptions(ctx context.Context) ([]catalog.ExporterOption, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return append(catalog.Default().Exporters, catalog.ExporterOption{Value: "SEACORP", Text: "SEACORP INTERNATIONAL"}), nil
}

// Ping reports the configured failure, if any.
func (m *Mock) Ping(context.Context) error {
	return m.Fail
}

// Shipments returns the demo batch.
func (m *Mock) Shipments() []liquidation.Shipment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]liquidation.Shipment, 0, len(m.shipments))
	for _, s := range DemoShipments() {
		if cur, ok := m.shipments[s.AWB]; ok {
			out = append(out, cur.Clone())
		}
	}
	return out
}

// Calls returns a copy of the recorded persistence calls.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Saved returns a copy of the received save envelopes.
func (m *Mock) Saved() []payload.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]payload.Envelope(nil), m.saved...)
}

func (m *Mock) record(c Call) {
	c.At = time.Now()
	m.mu.Lock()
	m.calls = append(m.calls, c)
	m.mu.Unlock()
}

var (
	_ Backend        = (*Mock)(nil)
	_ catalog.Source = (*Mock)(nil)
)
