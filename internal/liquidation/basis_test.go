package liquidation

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveBasisFallsBackToZero(t *testing.T) {
	info := GeneralInfo{
		PesoCobrable:  Text("not a number"),
		GrossWeight:   Number(math.NaN()),
		Piezas:        Text(""),
		Volumen:       Number(math.Inf(1)),
		FreightCharge: Number(-12),
		DueAgent:      Text("  350.5 "),
	}
	values := ResolveBasis(info)
	require.Equal(t, 1.0, values.Fijo)
	for _, b := range Bases {
		require.GreaterOrEqual(t, values.Of(b), 0.0, "basis %s", b)
	}
	require.Zero(t, values.PesoCobrable)
	require.Zero(t, values.GrossWeight)
	require.Zero(t, values.Volumen)
	require.Zero(t, values.FreightCharge)
	require.Equal(t, 350.5, values.DueAgent)
}

func TestResolveBasisEmptyInfo(t *testing.T) {
	values := ResolveBasis(GeneralInfo{})
	require.Equal(t, BaseValues{Fijo: 1}, values)
	require.Zero(t, values.Of(Basis("unknown")))
}

func TestBasisResolverIgnoresUnrelatedFields(t *testing.T) {
	var r BasisResolver
	info := GeneralInfo{PesoCobrable: Number(950), Ruta: Text("GYE/PTY/MIA")}
	first := r.Resolve(info)
	require.Equal(t, 950.0, first.PesoCobrable)

	info.Ruta = Text("UIO/MIA")
	require.Equal(t, first, r.Resolve(info))

	info.PesoCobrable = Text("1200")
	require.Equal(t, 1200.0, r.Resolve(info).PesoCobrable)
}

func TestGeneralInfoWith(t *testing.T) {
	info := GeneralInfo{Ruta: Text("GYE/MIA")}
	updated, err := info.With(KeyPesoCobrable, Number(800))
	require.NoError(t, err)
	require.Equal(t, 800.0, updated.PesoCobrable.Float())
	require.Zero(t, info.PesoCobrable.Float())

	_, err = info.With(Key("nope"), Number(1))
	require.ErrorIs(t, err, ErrUnknownField)
}

func TestScalarJSONKeepsKind(t *testing.T) {
	var info GeneralInfo
	require.NoError(t, json.Unmarshal([]byte(`{"piezas":15,"ruta":"GYE/PTY/MIA","volumen":"95000.50","totalHijas":null}`), &info))
	require.True(t, info.Piezas.IsNumber())
	require.False(t, info.Volumen.IsNumber())
	require.Equal(t, 95000.5, info.Volumen.Float())

	raw, err := json.Marshal(info)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, 15.0, decoded["piezas"])
	require.Equal(t, "95000.50", decoded["volumen"])
}
