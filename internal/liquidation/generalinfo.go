package liquidation

import (
	"errors"
	"fmt"
)

// ErrUnknownField is returned when a general-info update names a field that does not exist.
var ErrUnknownField = errors.New("liquidation: unknown general info field")

// Key names a GeneralInfo field using its wire name.
type Key string

const (
	KeyFechaVuelo    Key = "fechaVuelo"
	KeyImportadorAWB Key = "importadorAWB"
	KeyRuta          Key = "ruta"
	KeyPiezas        Key = "piezas"
	KeyGrossWeight   Key = "grossWeight"
	KeyVolumen       Key = "volumen"
	KeyPesoCobrable  Key = "pesoCobrable"
	KeyTipoCorte     Key = "tipoCorte"
	KeyTipoRate      Key = "tipoRate"
	KeyTarifaCompra  Key = "tarifaCompra"
	KeyTarifaVenta   Key = "tarifaVenta"
	KeyRangoPeso     Key = "rangoPeso"
	KeyExporter      Key = "exporter"
	KeyFreightCharge Key = "freightCharge"
	KeyDueAgent      Key = "dueAgent"
	KeyDueCarrier    Key = "dueCarrier"
	KeyTotalHijas    Key = "totalHijas"
)

// Keys lists every GeneralInfo field in display order.
var Keys = []Key{
	KeyFechaVuelo, KeyImportadorAWB, KeyRuta, KeyPiezas, KeyGrossWeight, KeyVolumen,
	KeyPesoCobrable, KeyTipoCorte, KeyTipoRate, KeyTarifaCompra, KeyTarifaVenta,
	KeyRangoPeso, KeyExporter, KeyFreightCharge, KeyDueAgent, KeyDueCarrier, KeyTotalHijas,
}

// GeneralInfo is the flat record of shipment-level cargo data.
type GeneralInfo struct {
	FechaVuelo    Scalar `json:"fechaVuelo"`
	ImportadorAWB Scalar `json:"importadorAWB"`
	Ruta          Scalar `json:"ruta"`
	Piezas        Scalar `json:"piezas"`
	GrossWeight   Scalar `json:"grossWeight"`
	Volumen       Scalar `json:"volumen"`
	PesoCobrable  Scalar `json:"pesoCobrable"`
	TipoCorte     Scalar `json:"tipoCorte"`
	TipoRate      Scalar `json:"tipoRate"`
	TarifaCompra  Scalar `json:"tarifaCompra"`
	TarifaVenta   Scalar `json:"tarifaVenta"`
	RangoPeso     Scalar `json:"rangoPeso"`
	Exporter      Scalar `json:"exporter"`
	FreightCharge Scalar `json:"freightCharge"`
	DueAgent      Scalar `json:"dueAgent"`
	DueCarrier    Scalar `json:"dueCarrier"`
	TotalHijas    Scalar `json:"totalHijas"`
}

func (g *GeneralInfo) field(key Key) *Scalar {
	switch key {
	case KeyFechaVuelo:
		return &g.FechaVuelo
	case KeyImportadorAWB:
		return &g.ImportadorAWB
	case KeyRuta:
		return &g.Ruta
	case KeyPiezas:
		return &g.Piezas
	case KeyGrossWeight:
		return &g.GrossWeight
	case KeyVolumen:
		return &g.Volumen
	case KeyPesoCobrable:
		return &g.PesoCobrable
	case KeyTipoCorte:
		return &g.TipoCorte
	case KeyTipoRate:
		return &g.TipoRate
	case KeyTarifaCompra:
		return &g.TarifaCompra
	case KeyTarifaVenta:
		return &g.TarifaVenta
	case KeyRangoPeso:
		return &g.RangoPeso
	case KeyExporter:
		return &g.Exporter
	case KeyFreightCharge:
		return &g.FreightCharge
	case KeyDueAgent:
		return &g.DueAgent
	case KeyDueCarrier:
		return &g.DueCarrier
	case KeyTotalHijas:
		return &g.TotalHijas
	default:
		return nil
	}
}

// Get returns the value stored under key.
func (g GeneralInfo) Get(key Key) (Scalar, error) {
	f := g.field(key)
	if f == nil {
		return Scalar{}, fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	return *f, nil
}

// With returns a copy of g with key set to value.
func (g GeneralInfo) With(key Key, value Scalar) (GeneralInfo, error) {
	f := g.field(key)
	if f == nil {
		return g, fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	*f = value
	return g, nil
}
