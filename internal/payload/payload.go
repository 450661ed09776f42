package payload

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-liquidacion/internal/batch"
	"github.com/noah-isme/backend-liquidacion/internal/ledger"
	"github.com/noah-isme/backend-liquidacion/internal/liquidation"
	"github.com/noah-isme/backend-liquidacion/internal/totals"
)

// CompraVentaLine is a purchase/sale item enriched with its computed totals.
type CompraVentaLine struct {
	liquidation.CompraVentaItem
	TotalCompra  float64 `json:"totalCompra"`
	TotalVenta   float64 `json:"totalVenta"`
	UtilidadItem float64 `json:"utilidadItem"`
}

// Line is a deduction or commission enriched with its computed total.
type Line struct {
	liquidation.LineItem
	Total float64 `json:"total"`
}

// Single is the save payload of one shipment.
type Single struct {
	GeneralInfo      liquidation.GeneralInfo `json:"generalInfo"`
	BaseValues       liquidation.BaseValues  `json:"baseValues"`
	CompraVentaItems []CompraVentaLine       `json:"compraVentaItems"`
	DeductionItems   []Line                  `json:"deductionItems"`
	CommissionItems  []Line                  `json:"commissionItems"`
	Totals           liquidation.Totals      `json:"totals"`
	PolicyRule       *liquidation.PolicyRule `json:"policyRule,omitempty"`
}

// BatchEntry pairs a shipment's AWB with its payload.
type BatchEntry struct {
	AWB     string `json:"awb"`
	Payload Single `json:"payload"`
}

// Mode values carried by Envelope.
const (
	ModeSingle   = "single"
	ModeMultiple = "multiple"
)

// Envelope is what the editor hands to the save callback.
type Envelope struct {
	Mode   string       `json:"mode"`
	Single *Single      `json:"single,omitempty"`
	Batch  []BatchEntry `json:"batch,omitempty"`
}

// BuildSingle enriches items with per-line totals using info's own basis.
func BuildSingle(info liquidation.GeneralInfo, items ledger.State, rule *liquidation.PolicyRule) Single {
	values := liquidation.ResolveBasis(info)
	out := Single{
		GeneralInfo:      info,
		BaseValues:       values,
		CompraVentaItems: make([]CompraVentaLine, 0, len(items.CompraVenta)),
		DeductionItems:   make([]Line, 0, len(items.Deductions)),
		CommissionItems:  make([]Line, 0, len(items.Commissions)),
		Totals:           totals.Compute(items, values),
	}
	for _, item := range items.CompraVenta {
		compra := totals.LineTotal(item.ValorCompra, item.BaseKey, values)
		venta := totals.LineTotal(item.ValorVenta, item.BaseKey, values)
		out.CompraVentaItems = append(out.CompraVentaItems, CompraVentaLine{
			CompraVentaItem: item,
			TotalCompra:     compra,
			TotalVenta:      venta,
			UtilidadItem:    decimal.NewFromFloat(venta).Sub(decimal.NewFromFloat(compra)).InexactFloat64(),
		})
	}
	for _, item := range items.Deductions {
		out.DeductionItems = append(out.DeductionItems, enrich(item.LineItem, liquidation.TypeDeductions, values))
	}
	for _, item := range items.Commissions {
		out.CommissionItems = append(out.CommissionItems, enrich(item.LineItem, liquidation.TypeCommissions, values))
	}
	if rule != nil {
		clone := rule.Clone()
		out.PolicyRule = &clone
	}
	return out
}

func enrich(item liquidation.LineItem, typ liquidation.ItemType, values liquidation.BaseValues) Line {
	item.Type = typ
	return Line{LineItem: item, Total: totals.LineTotal(item.Valor, item.BaseKey, values)}
}

// BuildBatch builds one payload per shipment from its own basis and effective items.
func BuildBatch(b *batch.Batch) ([]BatchEntry, error) {
	entries := make([]BatchEntry, 0, b.Len())
	for _, id := range b.IDs() {
		s, err := b.Shipment(id)
		if err != nil {
			return nil, err
		}
		items, err := b.Items(id)
		if err != nil {
			return nil, err
		}
		rule := s.PolicyRule
		entries = append(entries, BatchEntry{
			AWB:     s.AWB,
			Payload: BuildSingle(s.GeneralInfo, items, &rule),
		})
	}
	return entries, nil
}
