package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-liquidacion/internal/liquidation"
	"github.com/noah-isme/backend-liquidacion/internal/upstream"
)

func TestCommandsRoundTripThroughJSON(t *testing.T) {
	item := liquidation.CompraVentaItem{
		ID: "cv-1", Type: liquidation.TypeCompraVenta, Rubro: "Handling", RubroType: liquidation.RubroBoth,
		BaseKey: liquidation.BasisFijo, ValorCompra: 45, ValorVenta: 65,
	}
	cmd, err := AddItem(item)
	require.NoError(t, err)
	cmd = cmd.From("sess-1", "ship-1")
	require.NotEmpty(t, cmd.ID)
	require.Equal(t, liquidation.TypeCompraVenta, cmd.ItemType)

	raw, err := json.Marshal(cmd)
	require.NoError(t, err)
	var decoded Command
	require.NoError(t, json.Unmarshal(raw, &decoded))

	m := upstream.NewMock(0)
	res, err := Execute(context.Background(), m, decoded)
	require.NoError(t, err)
	require.True(t, res.Success)
	calls := m.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "cv-1", calls[0].ItemID)
}

func TestExecuteEachKind(t *testing.T) {
	m := upstream.NewMock(0)
	ctx := context.Background()

	_, err := Execute(ctx, m, UpdateGeneralInfo(upstream.DemoGeneralInfo()))
	require.NoError(t, err)
	_, err = Execute(ctx, m, DeleteItem("ded-1", liquidation.TypeDeductions))
	require.NoError(t, err)

	_, err = Execute(ctx, m, Command{ID: "x", Kind: KindUpdateGeneralInfo})
	require.Error(t, err)
	_, err = Execute(ctx, m, Command{ID: "x", Kind: "rename"})
	require.Error(t, err)
	_, err = Execute(ctx, m, Command{ID: "x", Kind: KindAddItem, Item: json.RawMessage(`{"type":"other"}`)})
	require.True(t, errors.Is(err, liquidation.ErrInvalidItem))

	require.Len(t, m.Calls(), 2)
}
