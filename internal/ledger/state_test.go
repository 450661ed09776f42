package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-liquidacion/internal/liquidation"
)

func compraVenta(id, name string, basis liquidation.Basis, compra, venta float64) liquidation.CompraVentaItem {
	return liquidation.CompraVentaItem{
		ID: id, Type: liquidation.TypeCompraVenta, Rubro: name, RubroType: liquidation.RubroBoth,
		BaseKey: basis, ValorCompra: compra, ValorVenta: venta,
	}
}

func deduction(id string, valor float64) liquidation.DeductionItem {
	return liquidation.DeductionItem{LineItem: liquidation.LineItem{
		ID: id, Type: liquidation.TypeDeductions, Rubro: "Ajuste por peso", BaseKey: liquidation.BasisFijo, Valor: valor,
	}}
}

func commission(id string, valor float64) liquidation.CommissionItem {
	return liquidation.CommissionItem{LineItem: liquidation.LineItem{
		ID: id, Type: liquidation.TypeCommissions, Rubro: "Comisión Vendedor", BaseKey: liquidation.BasisFijo, Valor: valor,
	}}
}

func TestSetAllReconcilesCompraVenta(t *testing.T) {
	s := New(
		[]liquidation.CompraVentaItem{
			compraVenta("a", "Handling", liquidation.BasisFijo, 45, 0),
			compraVenta("b", "handling", liquidation.BasisFijo, 0, 65),
		},
		[]liquidation.DeductionItem{deduction("d1", 50)},
		nil,
	)
	require.Len(t, s.CompraVenta, 1)
	require.Equal(t, 65.0, s.CompraVenta[0].ValorVenta)
	require.Len(t, s.Deductions, 1)
	require.NotNil(t, s.Commissions)
}

func TestAddItemDoesNotMutatePrevious(t *testing.T) {
	before := New(nil, []liquidation.DeductionItem{deduction("d1", 50)}, nil)
	after := Apply(before, AddItem{Item: deduction("d2", 10)})
	require.Len(t, before.Deductions, 1)
	require.Len(t, after.Deductions, 2)

	after = Apply(after, AddItem{Item: commission("c1", 75)})
	require.Len(t, after.Commissions, 1)
	require.Empty(t, before.Commissions)
}

func TestAddItemDeductionsAppendEvenWhenNamesMatch(t *testing.T) {
	s := Apply(State{}, AddItem{Item: deduction("d1", 50)})
	s = Apply(s, AddItem{Item: deduction("d2", 50)})
	require.Len(t, s.Deductions, 2)
}

func TestAddItemReplayIsNoop(t *testing.T) {
	s := Apply(State{}, AddItem{Item: deduction("d1", 50)})
	replayed := Apply(s, AddItem{Item: deduction("d1", 50)})
	require.Equal(t, s, replayed)

	s = Apply(State{}, AddItem{Item: compraVenta("a", "Handling", liquidation.BasisFijo, 45, 65)})
	s = Apply(s, AddItem{Item: compraVenta("a", "Handling", liquidation.BasisFijo, 45, 65)})
	s = Apply(s, AddItem{Item: compraVenta("b", "HANDLING", liquidation.BasisFijo, 45, 65)})
	require.Len(t, s.CompraVenta, 1)
}

func TestDeleteMissingIsNoop(t *testing.T) {
	s := New([]liquidation.CompraVentaItem{compraVenta("a", "Handling", liquidation.BasisFijo, 45, 65)}, nil, nil)
	for _, typ := range liquidation.ItemTypes {
		require.NotPanics(t, func() {
			require.Equal(t, s, Apply(s, DeleteItem{ID: "missing", Type: typ}))
		})
	}
	require.Equal(t, s, Apply(s, DeleteItem{ID: "a", Type: liquidation.ItemType("bogus")}))
}

func TestDeleteRecomputesConflicts(t *testing.T) {
	s := New([]liquidation.CompraVentaItem{
		compraVenta("a", "Air Freight", liquidation.BasisFijo, 100, 120),
		compraVenta("b", "Air Freight", liquidation.BasisPesoCobrable, 0.85, 1.05),
		compraVenta("c", "Handling", liquidation.BasisFijo, 45, 65),
	}, nil, nil)
	require.True(t, s.CompraVenta[0].HasConflict)

	after := Apply(s, DeleteItem{ID: "b", Type: liquidation.TypeCompraVenta})
	require.Len(t, after.CompraVenta, 2)
	require.False(t, after.CompraVenta[0].HasConflict)
	require.Empty(t, after.CompraVenta[0].ConflictReason)
	require.True(t, s.CompraVenta[0].HasConflict, "previous state must stay intact")
}

func TestDeleteByType(t *testing.T) {
	s := New(nil, []liquidation.DeductionItem{deduction("x", 1)}, []liquidation.CommissionItem{commission("x", 2)})
	s = Apply(s, DeleteItem{ID: "x", Type: liquidation.TypeCommissions})
	require.Len(t, s.Deductions, 1)
	require.Empty(t, s.Commissions)

	_, ok := s.Find("x", liquidation.TypeDeductions)
	require.True(t, ok)
	require.Equal(t, 1, s.Len())
}

func TestHolderFindsMergedRow(t *testing.T) {
	s := New([]liquidation.CompraVentaItem{compraVenta("a", "Handling", liquidation.BasisFijo, 45, 0)}, nil, nil)
	incoming := compraVenta("b", " HANDLING ", liquidation.BasisFijo, 0, 65)
	s = Apply(s, AddItem{Item: incoming})

	row, ok := s.Holder(incoming)
	require.True(t, ok)
	require.Equal(t, "a", row.ItemID())
	require.Equal(t, 65.0, row.(liquidation.CompraVentaItem).ValorVenta)

	_, ok = s.Holder(compraVenta("c", "Handling", liquidation.BasisPiezas, 1, 1))
	require.False(t, ok, "a row on another basis was never merged into")

	d := deduction("d1", 5)
	s = Apply(s, AddItem{Item: d})
	row, ok = s.Holder(d)
	require.True(t, ok)
	require.Equal(t, "d1", row.ItemID())
}

func TestEqualIgnoresNoopActions(t *testing.T) {
	s := New([]liquidation.CompraVentaItem{compraVenta("a", "Handling", liquidation.BasisFijo, 45, 0)}, []liquidation.DeductionItem{deduction("d1", 5)}, nil)

	require.True(t, Equal(s, Apply(s, DeleteItem{ID: "missing", Type: liquidation.TypeDeductions})))
	require.True(t, Equal(s, Apply(s, AddItem{Item: deduction("d1", 5)})))
	require.True(t, Equal(s, Apply(s, AddItem{Item: compraVenta("x", "handling", liquidation.BasisFijo, 0, 0)})))
	require.False(t, Equal(s, Apply(s, DeleteItem{ID: "d1", Type: liquidation.TypeDeductions})))
	require.False(t, Equal(s, Apply(s, AddItem{Item: compraVenta("y", "Handling", liquidation.BasisFijo, 50, 0)})))
}
