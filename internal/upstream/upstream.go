// Package upstream talks to the system of record for shipments: it loads
// general info and item collections and mirrors edits back.
package upstream

import (
	"context"

	"github.com/noah-isme/backend-liquidacion/internal/liquidation"
	"github.com/noah-isme/backend-liquidacion/internal/payload"
)

// Result is the acknowledgement returned by every persistence call.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Provider loads a shipment's editable data.
type Provider interface {
	GetGeneralInfo(ctx context.Context, awb string) (liquidation.GeneralInfo, error)
	GetCompraVentaItems(ctx context.Context, awb string) ([]liquidation.CompraVentaItem, error)
	GetDeductionItems(ctx context.Context, awb string) ([]liquidation.DeductionItem, error)
	GetCommissionItems(ctx context.Context, awb string) ([]liquidation.CommissionItem, error)
}

// Sink mirrors individual edits to the system of record.
type Sink interface {
	UpdateGeneralInfo(ctx context.Context, info liquidation.GeneralInfo) (Result, error)
	AddItem(ctx context.Context, item liquidation.Item) (Result, error)
	DeleteItem(ctx context.Context, id string, typ liquidation.ItemType) (Result, error)
}

// SaveSink receives a finished liquidation.
type SaveSink interface {
	SaveLiquidation(ctx context.Context, env payload.Envelope) (Result, error)
}

// Backend is everything an editor needs from upstream.
type Backend interface {
	Provider
	Sink
	SaveSink
}
