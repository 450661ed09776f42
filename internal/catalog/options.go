package catalog

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/backend-liquidacion/internal/liquidation"
	"github.com/noah-isme/backend-liquidacion/internal/rubro"
)

// ErrUnknownTab is returned for an option list that does not exist.
var ErrUnknownTab = errors.New("catalog: unknown item tab")

// RubroOption is a selectable charge for one item tab.
type RubroOption struct {
	Value    string                `json:"value" yaml:"value"`
	Text     string                `json:"text" yaml:"text"`
	Type     liquidation.RubroType `json:"type,omitempty" yaml:"type,omitempty"`
	ChargeID string                `json:"chargeId,omitempty" yaml:"chargeId,omitempty"`
	IATACode string                `json:"iataCode,omitempty" yaml:"iataCode,omitempty"`
}

// ExporterOption is a selectable exporter.
type ExporterOption struct {
	Value string `json:"value" yaml:"value"`
	Text  string `json:"text" yaml:"text"`
}

// BasisOption labels a calculation basis.
type BasisOption struct {
	Value liquidation.Basis `json:"value"`
	Label string            `json:"label"`
}

// Catalog is the typed option bundle an editor is configured with.
type Catalog struct {
	Rubros    map[liquidation.ItemType][]RubroOption `json:"rubros" yaml:"rubros"`
	Exporters []ExporterOption                       `json:"exporters" yaml:"exporters"`
}

// BasisOptions lists every basis with its display label.
func BasisOptions() []BasisOption {
	return []BasisOption{
		{Value: liquidation.BasisFijo, Label: "Valor Fijo"},
		{Value: liquidation.BasisPesoCobrable, Label: "x Peso Cobrable"},
		{Value: liquidation.BasisGrossWeight, Label: "x Gross Weight"},
		{Value: liquidation.BasisPiezas, Label: "x Piezas"},
		{Value: liquidation.BasisVolumen, Label: "x Volumen"},
		{Value: liquidation.BasisFreightCharge, Label: "x Freight Charge"},
		{Value: liquidation.BasisDueAgent, Label: "x Due Agent"},
		{Value: liquidation.BasisDueCarrier, Label: "x Due Carrier"},
		{Value: liquidation.BasisHijas, Label: "x Hijas"},
	}
}

// Default returns the built-in option lists.
func Default() Catalog {
	return Catalog{
		Rubros: map[liquidation.ItemType][]RubroOption{
			liquidation.TypeCompraVenta: {
				{Value: "Air Freight", Text: "Air Freight", Type: liquidation.RubroBoth, ChargeID: "CHG-001", IATACode: "AF"},
				{Value: "Fuel Surcharge", Text: "Fuel Surcharge", Type: liquidation.RubroBoth, ChargeID: "CHG-002", IATACode: "FS"},
				{Value: "Handling", Text: "Handling", Type: liquidation.RubroBoth, ChargeID: "CHG-003", IATACode: "HD"},
				{Value: "Insurance", Text: "Insurance", Type: liquidation.RubroBoth, ChargeID: "CHG-004", IATACode: "IN"},
				{Value: "Security Fee", Text: "Security Fee (Carrier)", Type: liquidation.RubroCompra, ChargeID: "CHG-005", IATACode: "SF"},
				{Value: "AWB Fee", Text: "AWB Fee", Type: liquidation.RubroVenta, ChargeID: "CHG-006", IATACode: "AW"},
				{Value: "Screening", Text: "Screening", Type: liquidation.RubroVenta, ChargeID: "CHG-007", IATACode: "SC"},
				{Value: "IT/Customs", Text: "IT / Customs", Type: liquidation.RubroCompra, ChargeID: "CHG-008", IATACode: "IT"},
			},
			liquidation.TypeDeductions: {
				{Value: "Descuento por pronto pago", Text: "Descuento por pronto pago", ChargeID: "DED-001", IATACode: "DPP"},
				{Value: "Nota de crédito aplicada", Text: "Nota de crédito aplicada", ChargeID: "DED-002", IATACode: "NCA"},
				{Value: "Ajuste por peso", Text: "Ajuste por peso", ChargeID: "DED-003", IATACode: "APE"},
				{Value: "Reclamo por daño", Text: "Reclamo por daño", ChargeID: "DED-004", IATACode: "RDA"},
			},
			liquidation.TypeCommissions: {
				{Value: "Comisión Agente Origen", Text: "Comisión Agente Origen", ChargeID: "COM-001", IATACode: "CAO"},
				{Value: "Comisión Agente Destino", Text: "Comisión Agente Destino", ChargeID: "COM-002", IATACode: "CAD"},
				{Value: "Comisión Vendedor", Text: "Comisión Vendedor", ChargeID: "COM-003", IATACode: "CVE"},
			},
		},
		Exporters: []ExporterOption{
			{Value: "ODFISH", Text: "ODFISH-ODFISH EXPORT S.A.S."},
			{Value: "PRODUMAR", Text: "PRODUMAR S.A."},
			{Value: "EXPORKLIP", Text: "EXPORKLIP S.A."},
			{Value: "OCEANFISH", Text: "OCEANFISH S.A."},
		},
	}
}

// Load reads a catalog from a YAML file. Tabs missing from the file keep
// their built-in lists.
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (Catalog, error) {
	var parsed Catalog
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	out := Default()
	for tab, options := range parsed.Rubros {
		if !tab.Valid() {
			return Catalog{}, fmt.Errorf("%w: %q", ErrUnknownTab, tab)
		}
		if err := validateOptions(tab, options); err != nil {
			return Catalog{}, err
		}
		out.Rubros[tab] = options
	}
	if len(parsed.Exporters) > 0 {
		out.Exporters = parsed.Exporters
	}
	return out, nil
}

func validateOptions(tab liquidation.ItemType, options []RubroOption) error {
	for i, opt := range options {
		if opt.Value == "" {
			return fmt.Errorf("catalog %s[%d]: value is required", tab, i)
		}
		if tab != liquidation.TypeCompraVenta {
			continue
		}
		switch opt.Type {
		case liquidation.RubroCompra, liquidation.RubroVenta, liquidation.RubroBoth:
		default:
			return fmt.Errorf("catalog %s[%d]: invalid type %q", tab, i, opt.Type)
		}
	}
	return nil
}

// RubroOptions returns the options of one tab.
func (c Catalog) RubroOptions(tab liquidation.ItemType) ([]RubroOption, error) {
	if !tab.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTab, tab)
	}
	return append([]RubroOption(nil), c.Rubros[tab]...), nil
}

// Lookup finds the option of tab whose value or text names the same rubro.
func (c Catalog) Lookup(tab liquidation.ItemType, name string) (RubroOption, bool) {
	for _, opt := range c.Rubros[tab] {
		if rubro.SameRubro(opt.Value, name) || rubro.SameRubro(opt.Text, name) {
			return opt, true
		}
	}
	return RubroOption{}, false
}

// Apply fills catalog metadata into an item selected by option value: the
// display name, the rubro type and the persistence codes. Items that do not
// name a catalog option are returned unchanged.
func (c Catalog) Apply(item liquidation.Item) liquidation.Item {
	switch v := item.(type) {
	case liquidation.CompraVentaItem:
		name := v.RubroValue
		if name == "" {
			name = v.Rubro
		}
		opt, ok := c.Lookup(liquidation.TypeCompraVenta, name)
		if !ok {
			return item
		}
		v.Rubro, v.RubroValue = opt.Text, opt.Value
		if opt.Type != "" {
			v.RubroType = opt.Type
		}
		v.ChargeID = firstNonEmpty(v.ChargeID, opt.ChargeID)
		v.IATACode = firstNonEmpty(v.IATACode, opt.IATACode)
		return v
	case liquidation.DeductionItem:
		v.LineItem = c.applyLine(liquidation.TypeDeductions, v.LineItem)
		return v
	case liquidation.CommissionItem:
		v.LineItem = c.applyLine(liquidation.TypeCommissions, v.LineItem)
		return v
	default:
		return item
	}
}

func (c Catalog) applyLine(tab liquidation.ItemType, item liquidation.LineItem) liquidation.LineItem {
	opt, ok := c.Lookup(tab, item.Rubro)
	if !ok {
		return item
	}
	item.Rubro = opt.Text
	item.ChargeID = firstNonEmpty(item.ChargeID, opt.ChargeID)
	item.IATACode = firstNonEmpty(item.IATACode, opt.IATACode)
	return item
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
