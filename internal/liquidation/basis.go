package liquidation

import "sync"

// Basis selects which shipment attribute multiplies a line item's unit value.
type Basis string

const (
	BasisFijo          Basis = "fijo"
	BasisPesoCobrable  Basis = "peso_cobrable"
	BasisGrossWeight   Basis = "gross_weight"
	BasisPiezas        Basis = "piezas"
	BasisVolumen       Basis = "volumen"
	BasisFreightCharge Basis = "freight_charge"
	BasisDueAgent      Basis = "due_agent"
	BasisDueCarrier    Basis = "due_carrier"
	BasisHijas         Basis = "hijas"
)

// Bases lists every calculation basis in display order.
var Bases = []Basis{
	BasisFijo, BasisPesoCobrable, BasisGrossWeight, BasisPiezas, BasisVolumen,
	BasisFreightCharge, BasisDueAgent, BasisDueCarrier, BasisHijas,
}

// Valid reports whether b is a known basis.
func (b Basis) Valid() bool {
	for _, known := range Bases {
		if b == known {
			return true
		}
	}
	return false
}

// BaseValues holds the resolved multiplier of every basis for one shipment.
type BaseValues struct {
	Fijo          float64 `json:"fijo"`
	PesoCobrable  float64 `json:"peso_cobrable"`
	GrossWeight   float64 `json:"gross_weight"`
	Piezas        float64 `json:"piezas"`
	Volumen       float64 `json:"volumen"`
	FreightCharge float64 `json:"freight_charge"`
	DueAgent      float64 `json:"due_agent"`
	DueCarrier    float64 `json:"due_carrier"`
	Hijas         float64 `json:"hijas"`
}

// Of returns the multiplier for b, or 0 when b is unknown.
func (v BaseValues) Of(b Basis) float64 {
	switch b {
	case BasisFijo:
		return v.Fijo
	case BasisPesoCobrable:
		return v.PesoCobrable
	case BasisGrossWeight:
		return v.GrossWeight
	case BasisPiezas:
		return v.Piezas
	case BasisVolumen:
		return v.Volumen
	case BasisFreightCharge:
		return v.FreightCharge
	case BasisDueAgent:
		return v.DueAgent
	case BasisDueCarrier:
		return v.DueCarrier
	case BasisHijas:
		return v.Hijas
	default:
		return 0
	}
}

// ResolveBasis derives the multiplier of every basis from the shipment's general info.
// Unparseable or negative inputs resolve to 0; fijo is always 1.
func ResolveBasis(info GeneralInfo) BaseValues {
	return BaseValues{
		Fijo:          1,
		PesoCobrable:  nonNegative(info.PesoCobrable),
		GrossWeight:   nonNegative(info.GrossWeight),
		Piezas:        nonNegative(info.Piezas),
		Volumen:       nonNegative(info.Volumen),
		FreightCharge: nonNegative(info.FreightCharge),
		DueAgent:      nonNegative(info.DueAgent),
		DueCarrier:    nonNegative(info.DueCarrier),
		Hijas:         nonNegative(info.TotalHijas),
	}
}

func nonNegative(s Scalar) float64 {
	v := s.Float()
	if v < 0 {
		return 0
	}
	return v
}

type basisInputs [8]Scalar

func inputsOf(info GeneralInfo) basisInputs {
	return basisInputs{
		info.PesoCobrable, info.GrossWeight, info.Piezas, info.Volumen,
		info.FreightCharge, info.DueAgent, info.DueCarrier, info.TotalHijas,
	}
}

// BasisResolver memoizes ResolveBasis on the basis-relevant fields only, so
// edits to unrelated fields such as the route reuse the previous result.
type BasisResolver struct {
	mu     sync.Mutex
	inputs basisInputs
	values BaseValues
	primed bool
}

// Resolve returns the base values for info, recomputing only when a relevant field changed.
func (r *BasisResolver) Resolve(info GeneralInfo) BaseValues {
	key := inputsOf(info)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.primed && r.inputs == key {
		return r.values
	}
	r.inputs = key
	r.values = ResolveBasis(info)
	r.primed = true
	return r.values
}
