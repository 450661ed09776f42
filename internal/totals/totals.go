package totals

import (
	"math"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-liquidacion/internal/ledger"
	"github.com/noah-isme/backend-liquidacion/internal/liquidation"
)

var hundred = decimal.NewFromInt(100)

// LineTotal multiplies a unit value by the multiplier of its basis.
func LineTotal(unit float64, basis liquidation.Basis, values liquidation.BaseValues) float64 {
	return line(unit, basis, values).InexactFloat64()
}

func line(unit float64, basis liquidation.Basis, values liquidation.BaseValues) decimal.Decimal {
	return dec(unit).Mul(dec(values.Of(basis)))
}

func dec(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// Compute derives the totals of one shipment from its items and base values.
func Compute(s ledger.State, values liquidation.BaseValues) liquidation.Totals {
	var cobros, pagos, deducciones, comisiones decimal.Decimal
	for _, item := range s.CompraVenta {
		cobros = cobros.Add(line(item.ValorVenta, item.BaseKey, values))
		pagos = pagos.Add(line(item.ValorCompra, item.BaseKey, values))
	}
	for _, item := range s.Deductions {
		deducciones = deducciones.Add(line(item.Valor, item.BaseKey, values))
	}
	for _, item := range s.Commissions {
		comisiones = comisiones.Add(line(item.Valor, item.BaseKey, values))
	}
	utilidad := cobros.Sub(pagos).Sub(deducciones).Sub(comisiones)
	return liquidation.Totals{
		TotalCobros:      cobros.InexactFloat64(),
		TotalPagos:       pagos.InexactFloat64(),
		TotalDeducciones: deducciones.InexactFloat64(),
		TotalComisiones:  comisiones.InexactFloat64(),
		Utilidad:         utilidad.InexactFloat64(),
		UtilidadPorc:     margin(utilidad, pagos.Add(deducciones).Add(comisiones), cobros).InexactFloat64(),
	}
}

// margin is profit over costs; without costs any revenue counts as 100%.
func margin(utilidad, costs, cobros decimal.Decimal) decimal.Decimal {
	switch {
	case costs.IsPositive():
		return utilidad.Div(costs).Mul(hundred)
	case cobros.IsPositive():
		return hundred
	default:
		return decimal.Zero
	}
}

// Entry is one shipment's contribution to a consolidated view.
type Entry struct {
	Status liquidation.Status
	Totals liquidation.Totals
}

// Consolidate sums recomputed shipment totals and counts upstream statuses.
// The overall margin is profit over revenue.
func Consolidate(entries []Entry) liquidation.ConsolidatedTotals {
	var cobros, pagos, utilidad decimal.Decimal
	out := liquidation.ConsolidatedTotals{TotalShipments: len(entries)}
	for _, e := range entries {
		cobros = cobros.Add(dec(e.Totals.TotalCobros))
		pagos = pagos.Add(dec(e.Totals.TotalPagos))
		utilidad = utilidad.Add(dec(e.Totals.Utilidad))
		switch e.Status {
		case liquidation.StatusValid:
			out.ValidCount++
		case liquidation.StatusWarning:
			out.WarningCount++
		case liquidation.StatusError:
			out.ErrorCount++
		}
	}
	out.TotalCobros = cobros.InexactFloat64()
	out.TotalPagos = pagos.InexactFloat64()
	out.TotalUtilidad = utilidad.InexactFloat64()
	if cobros.IsPositive() {
		out.TotalUtilidadPorc = utilidad.Div(cobros).Mul(hundred).InexactFloat64()
	}
	return out
}

// Memo caches the totals of a state revision so sessions derive totals
// instead of tracking them as separate mutable state.
type Memo struct {
	mu     sync.Mutex
	rev    uint64
	values liquidation.BaseValues
	totals liquidation.Totals
	primed bool
}

// Get returns the totals for rev, computing them only when rev or values changed.
func (m *Memo) Get(rev uint64, s ledger.State, values liquidation.BaseValues) liquidation.Totals {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.primed && m.rev == rev && m.values == values {
		return m.totals
	}
	m.rev, m.values = rev, values
	m.totals = Compute(s, values)
	m.primed = true
	return m.totals
}
