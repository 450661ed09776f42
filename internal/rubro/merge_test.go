package rubro

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-liquidacion/internal/liquidation"
)

func cv(id, name string, basis liquidation.Basis, compra, venta float64) liquidation.CompraVentaItem {
	return liquidation.CompraVentaItem{
		ID:          id,
		Type:        liquidation.TypeCompraVenta,
		Rubro:       name,
		RubroValue:  name,
		RubroType:   liquidation.RubroBoth,
		BaseKey:     basis,
		ValorCompra: compra,
		ValorVenta:  venta,
	}
}

func TestNormalize(t *testing.T) {
	require.Equal(t, "fuel surcharge", Normalize("  Fuel \t  SURCHARGE "))
	require.Equal(t, "security fee (carrier)", Normalize("Security Fee (Carrier)"))
	require.Equal(t, Normalize("Comisión Vendedor"), Normalize("COMISIÓN  vendedor"))
	require.True(t, SameRubro("IT/Customs", "it/customs"))
	require.False(t, SameRubro("IT/Customs", "IT Customs"))
}

func TestMergeAllCollapsesCaseAndSpaceVariants(t *testing.T) {
	items := []liquidation.CompraVentaItem{
		cv("a", "Fuel Surcharge", liquidation.BasisPesoCobrable, 0.15, 0),
		cv("b", "fuel   surcharge", liquidation.BasisPesoCobrable, 0, 0.20),
	}
	items[1].ChargeID = "CHG-002"

	merged := MergeAll(items)
	require.Len(t, merged, 1)
	require.Equal(t, "a", merged[0].ID)
	require.Equal(t, 0.15, merged[0].ValorCompra)
	require.Equal(t, 0.20, merged[0].ValorVenta)
	require.Equal(t, "CHG-002", merged[0].ChargeID)
	require.False(t, merged[0].HasConflict)

	require.Len(t, items, 2, "input must not be modified")
	require.Equal(t, 0.0, items[0].ValorVenta)
}

func TestMergeAllIncomingPositiveValueWins(t *testing.T) {
	merged := MergeAll([]liquidation.CompraVentaItem{
		cv("a", "Handling", liquidation.BasisFijo, 45, 65),
		cv("b", "Handling", liquidation.BasisFijo, 50, 0),
	})
	require.Len(t, merged, 1)
	require.Equal(t, 50.0, merged[0].ValorCompra)
	require.Equal(t, 65.0, merged[0].ValorVenta)
}

func TestMergeAllFlagsBasisConflict(t *testing.T) {
	merged := MergeAll([]liquidation.CompraVentaItem{
		cv("a", "Air Freight", liquidation.BasisFijo, 100, 120),
		cv("b", "air freight", liquidation.BasisPesoCobrable, 0.85, 1.05),
	})
	require.Len(t, merged, 2)
	require.True(t, merged[0].HasConflict)
	require.True(t, merged[1].HasConflict)
	require.Equal(t, `base mismatch: this uses "fijo", other uses "peso_cobrable"`, merged[0].ConflictReason)
	require.Equal(t, `base mismatch: this uses "peso_cobrable", other uses "fijo"`, merged[1].ConflictReason)
}

func TestMergeAllThreeBases(t *testing.T) {
	merged := MergeAll([]liquidation.CompraVentaItem{
		cv("a", "Handling", liquidation.BasisFijo, 1, 1),
		cv("b", "Handling", liquidation.BasisPiezas, 1, 1),
		cv("c", "Handling", liquidation.BasisPesoCobrable, 1, 1),
	})
	require.Len(t, merged, 3)
	require.Equal(t, `base mismatch: this uses "piezas", others use "fijo", "peso_cobrable"`, merged[1].ConflictReason)
}

func TestMergeAllIdempotent(t *testing.T) {
	raw := []liquidation.CompraVentaItem{
		cv("a", "Air Freight", liquidation.BasisPesoCobrable, 0.85, 1.05),
		cv("b", "Handling", liquidation.BasisFijo, 45, 0),
		cv("c", "HANDLING", liquidation.BasisFijo, 0, 65),
		cv("d", "Air  Freight", liquidation.BasisFijo, 10, 0),
		cv("e", "Screening", liquidation.BasisFijo, 0, 35),
	}
	once := MergeAll(raw)
	twice := MergeAll(once)
	require.Equal(t, once, twice)

	seen := map[rowKey]bool{}
	for _, item := range once {
		key := rowKey{Normalize(item.Rubro), item.BaseKey}
		require.False(t, seen[key], "duplicate row %v", key)
		seen[key] = true
	}
}

func TestMergeAllStaleFlagsCleared(t *testing.T) {
	item := cv("a", "Handling", liquidation.BasisFijo, 45, 65)
	item.HasConflict = true
	item.ConflictReason = "stale"
	merged := MergeAll([]liquidation.CompraVentaItem{item})
	require.False(t, merged[0].HasConflict)
	require.Empty(t, merged[0].ConflictReason)
}

func TestMergeIntoMergesMatchingRow(t *testing.T) {
	base := MergeAll([]liquidation.CompraVentaItem{
		cv("a", "Air Freight", liquidation.BasisPesoCobrable, 0.85, 0),
		cv("b", "Handling", liquidation.BasisFijo, 45, 65),
	})
	out := MergeInto(base, cv("x", "air freight", liquidation.BasisPesoCobrable, 0, 1.05))
	require.Len(t, out, 2)
	require.Equal(t, "a", out[0].ID)
	require.Equal(t, 1.05, out[0].ValorVenta)
	require.Equal(t, 0.85, out[0].ValorCompra)
	require.Equal(t, 0.0, base[0].ValorVenta, "input must not be modified")
}

func TestMergeIntoConflictAndAppend(t *testing.T) {
	base := MergeAll([]liquidation.CompraVentaItem{cv("a", "Handling", liquidation.BasisFijo, 45, 65)})

	out := MergeInto(base, cv("b", "Handling", liquidation.BasisPiezas, 2, 3))
	require.Len(t, out, 2)
	require.True(t, out[0].HasConflict)
	require.True(t, out[1].HasConflict)
	require.Contains(t, out[0].ConflictReason, `other uses "piezas"`)
	require.False(t, base[0].HasConflict)

	out = MergeInto(out, cv("c", "Insurance", liquidation.BasisFijo, 5, 0))
	require.Len(t, out, 3)
	require.False(t, out[2].HasConflict)
	require.True(t, out[0].HasConflict)
}

func TestMergeIntoRepeatedAddsDoNotGrow(t *testing.T) {
	var items []liquidation.CompraVentaItem
	for i := 0; i < 5; i++ {
		items = MergeInto(items, cv("same", "Handling", liquidation.BasisFijo, 45, 65))
	}
	require.Len(t, items, 1)
}

func TestReconcileClearsLoneSurvivor(t *testing.T) {
	items := MergeAll([]liquidation.CompraVentaItem{
		cv("a", "Handling", liquidation.BasisFijo, 45, 65),
		cv("b", "Handling", liquidation.BasisPiezas, 2, 3),
	})
	survivors := Reconcile(items[:1], "handling")
	require.False(t, survivors[0].HasConflict)
	require.True(t, items[0].HasConflict)
	require.Len(t, Conflicts(items), 2)
	require.Empty(t, Conflicts(survivors))
}
