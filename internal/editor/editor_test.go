package editor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-liquidacion/internal/batch"
	"github.com/noah-isme/backend-liquidacion/internal/catalog"
	"github.com/noah-isme/backend-liquidacion/internal/liquidation"
	"github.com/noah-isme/backend-liquidacion/internal/outbox"
	"github.com/noah-isme/backend-liquidacion/internal/payload"
	"github.com/noah-isme/backend-liquidacion/internal/upstream"
)

func newBatchEditor(t *testing.T, q Enqueuer) (*Editor, []liquidation.Shipment) {
	t.Helper()
	shipments := upstream.DemoShipments()
	e, err := New(context.Background(), Config{Shipments: shipments}, Deps{Outbox: q, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return e, shipments
}

func TestNewDefaultsToBatchMode(t *testing.T) {
	e, _ := newBatchEditor(t, nil)
	require.Equal(t, ModeMultiple, e.Mode())
	require.Nil(t, e.Financials())

	snap := e.Snapshot()
	require.Len(t, snap.Rows, 7)
	require.Equal(t, batch.ViewResumen, snap.Navigation.View)
	require.Equal(t, 7, snap.Consolidated.TotalShipments)
	require.Equal(t, 4, snap.Consolidated.ValidCount)
	require.Equal(t, 3, snap.Consolidated.WarningCount)
	require.NotEmpty(t, snap.RubroOptions[liquidation.TypeCompraVenta])
}

func TestNewRejectsUnknownMode(t *testing.T) {
	_, err := New(context.Background(), Config{Mode: "double"}, Deps{Logger: zerolog.Nop()})
	require.ErrorIs(t, err, liquidation.ErrInvalidItem)
}

func TestConfigOptionsOverrideCatalog(t *testing.T) {
	exporters := []catalog.ExporterOption{{Value: "ONLY", Text: "ONLY S.A."}}
	e, err := New(context.Background(), Config{
		Mode:            ModeSingle,
		DisableAutoLoad: true,
		ExporterOptions: exporters,
		RubroOptions: map[liquidation.ItemType][]catalog.RubroOption{
			liquidation.TypeCommissions: {{Value: "Bono", Text: "Bono Especial"}},
		},
	}, Deps{Logger: zerolog.Nop()})
	require.NoError(t, err)

	cat := e.Catalog()
	require.Equal(t, exporters, cat.Exporters)
	require.Len(t, cat.Rubros[liquidation.TypeCommissions], 1)
	require.Len(t, cat.Rubros[liquidation.TypeCompraVenta], len(catalog.Default().Rubros[liquidation.TypeCompraVenta]))
}

func TestBatchEditsStayInOverlay(t *testing.T) {
	q := &recordingQueue{}
	e, shipments := newBatchEditor(t, q)
	before, err := e.Totals("ship-2")
	require.NoError(t, err)

	_, err = e.AddItem("ship-1", airFreight("", liquidation.BasisFijo, 100, 0))
	require.NoError(t, err)
	require.NoError(t, e.DeleteItem("ship-1", "cv-demo-3", liquidation.TypeCompraVenta))

	items, err := e.Items("ship-1")
	require.NoError(t, err)
	require.Len(t, items.CompraVenta, 5)
	_, found := items.Find("cv-demo-3", liquidation.TypeCompraVenta)
	require.False(t, found)

	after, err := e.Totals("ship-2")
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Len(t, shipments[0].CompraVentaItems, 5)
	require.Equal(t, "cv-demo-3", shipments[0].CompraVentaItems[2].ID)

	rows := e.Rows()
	require.True(t, rows[0].Edited)
	require.Equal(t, 2, rows[0].Conflicts)
	require.False(t, rows[1].Edited)

	cmds := q.commands()
	require.Len(t, cmds, 2)
	require.Equal(t, outbox.KindAddItem, cmds[0].Kind)
	require.Equal(t, outbox.KindDeleteItem, cmds[1].Kind)
	for _, cmd := range cmds {
		require.Equal(t, e.ID(), cmd.SessionID)
		require.Equal(t, "ship-1", cmd.ShipmentID)
	}
}

func TestBatchRejectsGeneralInfoAndUnknownShipment(t *testing.T) {
	e, _ := newBatchEditor(t, nil)

	_, err := e.UpdateGeneralInfo(liquidation.KeyRuta, liquidation.Text("GYE/MIA"))
	require.ErrorIs(t, err, ErrReadOnly)

	_, err = e.AddItem("ship-99", airFreight("", liquidation.BasisFijo, 1, 1))
	require.ErrorIs(t, err, batch.ErrUnknownShipment)
	require.ErrorIs(t, e.DeleteItem("ship-99", "x", liquidation.TypeCompraVenta), batch.ErrUnknownShipment)
}

func TestBatchSaveBuildsEntriesPerShipment(t *testing.T) {
	var got payload.Envelope
	shipments := upstream.DemoShipments()[:2]
	e, err := New(context.Background(), Config{
		Shipments: shipments,
		OnSave: func(_ context.Context, env payload.Envelope) error {
			got = env
			return nil
		},
	}, Deps{Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = e.Save(context.Background())
	require.NoError(t, err)
	require.Equal(t, payload.ModeMultiple, got.Mode)
	require.Len(t, got.Batch, 2)
	require.Equal(t, "230-6584-1226", got.Batch[0].AWB)
	require.Equal(t, 1200.0, got.Batch[1].Payload.BaseValues.PesoCobrable)
	require.True(t, e.Closed())
}

func TestSingleEditorSeedsFromFirstShipment(t *testing.T) {
	shipments := upstream.DemoShipments()
	e, err := New(context.Background(), Config{Mode: ModeSingle, Shipments: shipments}, Deps{Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.False(t, e.Financials().Loading())

	snap := e.Snapshot()
	require.NotNil(t, snap.Single)
	require.Equal(t, batch.TabLiquidacion, snap.Navigation.Tab)
	require.Len(t, snap.Single.Items.CompraVenta, 5)
	require.Equal(t, 1, snap.Consolidated.TotalShipments)

	rows := e.Rows()
	require.Len(t, rows, 1)
	require.Equal(t, "ship-1", rows[0].Shipment.ID)

	_, err = e.Navigate(batch.Command{Action: "back"})
	require.ErrorIs(t, err, batch.ErrInvalidView)
	pos, err := e.Navigate(batch.Command{Action: "tab", Tab: batch.TabPoliticas})
	require.NoError(t, err)
	require.Equal(t, "politicas", pos.Screen)
}

func TestSingleEditorAutoLoads(t *testing.T) {
	e, err := New(context.Background(), Config{Mode: ModeSingle}, Deps{Provider: upstream.NewMock(10 * time.Millisecond), Logger: zerolog.Nop()})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return !e.Financials().Loading() }, time.Second, 5*time.Millisecond)
	require.Len(t, e.Snapshot().Single.Items.CompraVenta, 5)
}

func TestSingleEditorDisableAutoLoad(t *testing.T) {
	e, err := New(context.Background(), Config{Mode: ModeSingle, DisableAutoLoad: true}, Deps{Provider: upstream.NewMock(0), Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.False(t, e.Financials().Loading())
	require.Zero(t, e.Snapshot().Single.Items.Len())
}

func TestSaveFailureKeepsSessionOpen(t *testing.T) {
	calls := 0
	e, err := New(context.Background(), Config{
		Mode:      ModeSingle,
		Shipments: upstream.DemoShipments()[:1],
		OnSave: func(_ context.Context, env payload.Envelope) error {
			calls++
			require.Equal(t, payload.ModeSingle, env.Mode)
			require.Equal(t, "R-2024-0847", env.Single.PolicyRule.RuleNumber)
			if calls == 1 {
				return errors.New("host unavailable")
			}
			return nil
		},
	}, Deps{Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = e.Save(context.Background())
	require.Error(t, err)
	require.False(t, e.Closed())

	env, err := e.Save(context.Background())
	require.NoError(t, err)
	require.Len(t, env.Single.CompraVentaItems, 5)
	require.True(t, e.Closed())

	_, err = e.Save(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestCancelAndEscape(t *testing.T) {
	cancelled := 0
	cfg := Config{Shipments: upstream.DemoShipments(), OnCancel: func() { cancelled++ }}

	e, err := New(context.Background(), cfg, Deps{Logger: zerolog.Nop()})
	require.NoError(t, err)
	_, err = e.AddItem("ship-1", airFreight("", liquidation.BasisFijo, 1, 1))
	require.NoError(t, err)
	require.NoError(t, e.Escape())
	require.Equal(t, 1, cancelled)
	require.True(t, e.Closed())

	_, err = e.AddItem("ship-1", airFreight("", liquidation.BasisFijo, 1, 1))
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, e.Cancel(), ErrClosed)
	require.Equal(t, 1, cancelled)
}

func TestBatchNavigation(t *testing.T) {
	e, _ := newBatchEditor(t, nil)

	pos, err := e.Navigate(batch.Command{Action: "open", ShipmentID: "ship-7"})
	require.NoError(t, err)
	require.Equal(t, "ship-7", pos.ShipmentID)

	pos, err = e.Navigate(batch.Command{Action: "next"})
	require.NoError(t, err)
	require.Equal(t, "ship-1", pos.ShipmentID)

	pos, err = e.Navigate(batch.Command{Action: "back"})
	require.NoError(t, err)
	require.Equal(t, batch.ViewResumen, pos.View)

	_, err = e.Navigate(batch.Command{Action: "open", ShipmentID: "ship-99"})
	require.ErrorIs(t, err, batch.ErrUnknownShipment)
}

func TestReportCoversEveryShipment(t *testing.T) {
	e, _ := newBatchEditor(t, nil)
	report, err := e.Report()
	require.NoError(t, err)
	require.Len(t, report.Rows, 7)
	require.Len(t, report.Payloads, 7)
	require.Equal(t, 7, report.Consolidated.TotalShipments)
}

func TestBatchMergedAddReturnsDeletableRow(t *testing.T) {
	q := &recordingQueue{}
	e, _ := newBatchEditor(t, q)

	first, err := e.AddItem("ship-3", liquidation.CompraVentaItem{
		Rubro: "Handling", RubroType: liquidation.RubroBoth, BaseKey: liquidation.BasisPiezas, ValorCompra: 2,
	})
	require.NoError(t, err)
	second, err := e.AddItem("ship-3", liquidation.CompraVentaItem{
		Rubro: "handling", RubroType: liquidation.RubroBoth, BaseKey: liquidation.BasisPiezas, ValorVenta: 3,
	})
	require.NoError(t, err)
	require.Equal(t, first.ItemID(), second.ItemID())
	require.Equal(t, 3.0, second.(liquidation.CompraVentaItem).ValorVenta)

	cmds := q.commands()
	require.Len(t, cmds, 2)
	require.NotEqual(t, cmds[0].ItemID, cmds[1].ItemID)

	require.NoError(t, e.DeleteItem("ship-3", second.ItemID(), liquidation.TypeCompraVenta))
	items, err := e.Items("ship-3")
	require.NoError(t, err)
	_, found := items.Find(first.ItemID(), liquidation.TypeCompraVenta)
	require.False(t, found)
}
