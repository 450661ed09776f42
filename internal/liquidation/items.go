package liquidation

import (
	"encoding/json"
	"fmt"
)

// ItemType names one of the three item collections.
type ItemType string

const (
	TypeCompraVenta ItemType = "compraVenta"
	TypeDeductions  ItemType = "deductions"
	TypeCommissions ItemType = "commissions"
)

// ItemTypes lists the collections in display order.
var ItemTypes = []ItemType{TypeCompraVenta, TypeDeductions, TypeCommissions}

// Valid reports whether t names a known collection.
func (t ItemType) Valid() bool {
	return t == TypeCompraVenta || t == TypeDeductions || t == TypeCommissions
}

// RubroType constrains which side of a purchase/sale item may carry a value.
type RubroType string

const (
	RubroCompra RubroType = "compra"
	RubroVenta  RubroType = "venta"
	RubroBoth   RubroType = "both"
)

// Item is implemented by every financial line item variant.
type Item interface {
	ItemID() string
	ItemType() ItemType
}

// CompraVentaItem is a purchase/sale charge.
type CompraVentaItem struct {
	ID             string    `json:"id"`
	Type           ItemType  `json:"type"`
	Rubro          string    `json:"rubro" validate:"required"`
	RubroValue     string    `json:"rubroValue"`
	RubroType      RubroType `json:"rubroType" validate:"required,oneof=compra venta both"`
	BaseKey        Basis     `json:"baseKey" validate:"required,basis"`
	ValorCompra    float64   `json:"valorCompra" validate:"gte=0"`
	ValorVenta     float64   `json:"valorVenta" validate:"gte=0"`
	ChargeID       string    `json:"chargeId,omitempty"`
	IATACode       string    `json:"iataCode,omitempty"`
	HasConflict    bool      `json:"hasConflict,omitempty"`
	ConflictReason string    `json:"conflictReason,omitempty"`
}

// ItemID implements Item.
func (i CompraVentaItem) ItemID() string { return i.ID }

// ItemType implements Item.
func (CompraVentaItem) ItemType() ItemType { return TypeCompraVenta }

// LineItem carries the fields shared by deductions and commissions.
type LineItem struct {
	ID        string   `json:"id"`
	Type      ItemType `json:"type"`
	Rubro     string   `json:"rubro" validate:"required"`
	BaseKey   Basis    `json:"baseKey" validate:"required,basis"`
	Valor     float64  `json:"valor" validate:"gt=0"`
	ExtraInfo string   `json:"extraInfo"`
	ChargeID  string   `json:"chargeId,omitempty"`
	IATACode  string   `json:"iataCode,omitempty"`
}

// ItemID implements Item.
func (i LineItem) ItemID() string { return i.ID }

// DeductionItem is a deduction line; ExtraInfo holds its description.
type DeductionItem struct {
	LineItem
}

// ItemType implements Item.
func (DeductionItem) ItemType() ItemType { return TypeDeductions }

// CommissionItem is a commission line; ExtraInfo holds the agent name.
type CommissionItem struct {
	LineItem
}

// ItemType implements Item.
func (CommissionItem) ItemType() ItemType { return TypeCommissions }

// DecodeItem decodes a JSON item into its variant using the type discriminator.
func DecodeItem(data []byte) (Item, error) {
	var head struct {
		Type ItemType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	switch head.Type {
	case TypeCompraVenta:
		var item CompraVentaItem
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("decode compraVenta item: %w", err)
		}
		return item, nil
	case TypeDeductions:
		var item DeductionItem
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("decode deduction item: %w", err)
		}
		return item, nil
	case TypeCommissions:
		var item CommissionItem
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("decode commission item: %w", err)
		}
		return item, nil
	default:
		return nil, &ValidationError{Field: "type", Message: fmt.Sprintf("unknown item type %q", head.Type)}
	}
}

// WithID returns a copy of item carrying id and its canonical type tag.
func WithID(item Item, id string) Item {
	switch v := item.(type) {
	case CompraVentaItem:
		v.ID, v.Type = id, TypeCompraVenta
		return v
	case DeductionItem:
		v.ID, v.Type = id, TypeDeductions
		return v
	case CommissionItem:
		v.ID, v.Type = id, TypeCommissions
		return v
	default:
		return item
	}
}
