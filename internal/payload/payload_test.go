package payload

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-liquidacion/internal/batch"
	"github.com/noah-isme/backend-liquidacion/internal/ledger"
	"github.com/noah-isme/backend-liquidacion/internal/liquidation"
)

func TestBuildSingleEnrichesItems(t *testing.T) {
	info := liquidation.GeneralInfo{PesoCobrable: liquidation.Number(950)}
	items := ledger.New(
		[]liquidation.CompraVentaItem{{
			ID: "cv-3", Type: liquidation.TypeCompraVenta, Rubro: "Handling", RubroType: liquidation.RubroBoth,
			BaseKey: liquidation.BasisFijo, ValorCompra: 45, ValorVenta: 65,
		}},
		[]liquidation.DeductionItem{{LineItem: liquidation.LineItem{ID: "d", Rubro: "Ajuste por peso", BaseKey: liquidation.BasisPesoCobrable, Valor: 0.05}}},
		[]liquidation.CommissionItem{{LineItem: liquidation.LineItem{ID: "c", Rubro: "Comisión Agente Origen", BaseKey: liquidation.BasisFijo, Valor: 75}}},
	)
	rule := &liquidation.PolicyRule{RuleNumber: "R-2024-0847", DaysOfWeek: []string{"Lu"}}

	got := BuildSingle(info, items, rule)
	require.Len(t, got.CompraVentaItems, 1)
	line := got.CompraVentaItems[0]
	require.Equal(t, 45.0, line.TotalCompra)
	require.Equal(t, 65.0, line.TotalVenta)
	require.Equal(t, 20.0, line.UtilidadItem)

	require.Equal(t, 47.5, got.DeductionItems[0].Total)
	require.Equal(t, liquidation.TypeDeductions, got.DeductionItems[0].Type)
	require.Equal(t, 75.0, got.CommissionItems[0].Total)
	require.Equal(t, 950.0, got.BaseValues.PesoCobrable)
	require.Equal(t, -102.5, got.Totals.Utilidad)

	rule.DaysOfWeek[0] = "Do"
	require.Equal(t, "Lu", got.PolicyRule.DaysOfWeek[0])

	raw, err := json.Marshal(got)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	first := decoded["compraVentaItems"].([]any)[0].(map[string]any)
	require.Equal(t, "Handling", first["rubro"])
	require.Equal(t, 20.0, first["utilidadItem"])
}

func TestBuildBatchUsesOwnBasisAndOverlay(t *testing.T) {
	mk := func(id, awb string, peso float64) liquidation.Shipment {
		return liquidation.Shipment{
			ID: id, AWB: awb,
			GeneralInfo: liquidation.GeneralInfo{PesoCobrable: liquidation.Number(peso)},
			CompraVentaItems: []liquidation.CompraVentaItem{{
				ID: id + "-af", Rubro: "Air Freight", RubroType: liquidation.RubroBoth,
				BaseKey: liquidation.BasisPesoCobrable, ValorCompra: 1, ValorVenta: 2,
			}},
			PolicyRule: liquidation.PolicyRule{RuleNumber: "R-" + id},
		}
	}
	b := batch.New([]liquidation.Shipment{mk("A", "230-6584-1226", 100), mk("B", "230-6585-1227", 200)})
	_, err := b.Apply("B", ledger.DeleteItem{ID: "B-af", Type: liquidation.TypeCompraVenta})
	require.NoError(t, err)

	entries, err := BuildBatch(b)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.Equal(t, "230-6584-1226", entries[0].AWB)
	require.Equal(t, 200.0, entries[0].Payload.Totals.TotalCobros)
	require.Equal(t, "R-A", entries[0].Payload.PolicyRule.RuleNumber)

	require.Equal(t, "230-6585-1227", entries[1].AWB)
	require.Empty(t, entries[1].Payload.CompraVentaItems)
	require.Equal(t, 200.0, entries[1].Payload.BaseValues.PesoCobrable)
	require.Zero(t, entries[1].Payload.Totals.TotalCobros)
}
