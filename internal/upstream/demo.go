package upstream

import "github.com/noah-isme/backend-liquidacion/internal/liquidation"

// DemoGeneralInfo is the general info of the demo shipment.
func DemoGeneralInfo() liquidation.GeneralInfo {
	return liquidation.GeneralInfo{
		FechaVuelo:    liquidation.Text("2025-11-14"),
		ImportadorAWB: liquidation.Text("230-6584-1226"),
		Ruta:          liquidation.Text("GYE/PTY/MIA"),
		Piezas:        liquidation.Number(15),
		GrossWeight:   liquidation.Number(750),
		Volumen:       liquidation.Number(95000.50),
		PesoCobrable:  liquidation.Number(950),
		TipoCorte:     liquidation.Text("P (Prepaid)"),
		TipoRate:      liquidation.Text("Normal"),
		TarifaCompra:  liquidation.Number(0.85),
		TarifaVenta:   liquidation.Number(1.05),
		RangoPeso:     liquidation.Text("100kg-9000kg"),
		Exporter:      liquidation.Text("ODFISH"),
		FreightCharge: liquidation.Number(285.50),
		DueAgent:      liquidation.Number(350),
		DueCarrier:    liquidation.Number(28),
	}
}

// DemoCompraVentaItems are the demo purchase/sale rows.
func DemoCompraVentaItems() []liquidation.CompraVentaItem {
	cv := func(id, rubro, value string, rt liquidation.RubroType, basis liquidation.Basis, compra, venta float64, charge, iata string) liquidation.CompraVentaItem {
		return liquidation.CompraVentaItem{
			ID: id, Type: liquidation.TypeCompraVenta, Rubro: rubro, RubroValue: value, RubroType: rt,
			BaseKey: basis, ValorCompra: compra, ValorVenta: venta, ChargeID: charge, IATACode: iata,
		}
	}
	return []liquidation.CompraVentaItem{
		cv("cv-demo-1", "Air Freight", "Air Freight", liquidation.RubroBoth, liquidation.BasisPesoCobrable, 0.85, 1.05, "CHG-001", "AF"),
		cv("cv-demo-2", "Fuel Surcharge", "Fuel Surcharge", liquidation.RubroBoth, liquidation.BasisPesoCobrable, 0.15, 0.20, "CHG-002", "FS"),
		cv("cv-demo-3", "Handling", "Handling", liquidation.RubroBoth, liquidation.BasisFijo, 45, 65, "CHG-003", "HD"),
		cv("cv-demo-4", "Security Fee (Carrier)", "Security Fee", liquidation.RubroCompra, liquidation.BasisFijo, 25, 0, "CHG-005", "SF"),
		cv("cv-demo-5", "Screening", "Screening", liquidation.RubroVenta, liquidation.BasisFijo, 0, 35, "CHG-007", "SC"),
	}
}

// DemoDeductionItems are the demo deductions.
func DemoDeductionItems() []liquidation.DeductionItem {
	return []liquidation.DeductionItem{
		{LineItem: liquidation.LineItem{
			ID: "ded-demo-1", Type: liquidation.TypeDeductions, Rubro: "Descuento por pronto pago",
			BaseKey: liquidation.BasisFijo, Valor: 50, ExtraInfo: "Pago dentro de 15 días", ChargeID: "DED-001", IATACode: "DPP",
		}},
		{LineItem: liquidation.LineItem{
			ID: "ded-demo-2", Type: liquidation.TypeDeductions, Rubro: "Ajuste por peso",
			BaseKey: liquidation.BasisPesoCobrable, Valor: 0.05, ExtraInfo: "Recalculo de peso volumétrico", ChargeID: "DED-003", IATACode: "APE",
		}},
	}
}

// DemoCommissionItems are the demo commissions.
func DemoCommissionItems() []liquidation.CommissionItem {
	return []liquidation.CommissionItem{
		{LineItem: liquidation.LineItem{
			ID: "com-demo-1", Type: liquidation.TypeCommissions, Rubro: "Comisión Agente Origen",
			BaseKey: liquidation.BasisFijo, Valor: 75, ExtraInfo: "Agent GYE", ChargeID: "COM-001", IATACode: "CAO",
		}},
		{LineItem: liquidation.LineItem{
			ID: "com-demo-2", Type: liquidation.TypeCommissions, Rubro: "Comisión Vendedor",
			BaseKey: liquidation.BasisPesoCobrable, Valor: 0.08, ExtraInfo: "Comisión sobre peso cobrable", ChargeID: "COM-003", IATACode: "CVE",
		}},
	}
}

// DemoPolicyRule is the pricing rule attached to the demo shipments.
func DemoPolicyRule() liquidation.PolicyRule {
	n := liquidation.Number
	dash := liquidation.Text("-")
	return liquidation.PolicyRule{
		RuleNumber:  "R-2024-0847",
		Consignee:   "KUEHNE + NAGEL N.V",
		Carrier:     "M6 - BOG LLG AMS",
		RuleType:    "Freight",
		Season:      "VALENTINO",
		SalesRep:    "Jorge Gamboa",
		DaysOfWeek:  []string{"Lu", "Ma", "Mi", "Ju", "Vi"},
		WeightRange: "100.00 kg - 1,050.00 kg",
		RatePerKg:   "$2.00",
		Items: []liquidation.PolicyItem{
			{Name: "Air Freight", Charge: n(3.5), Payable: n(2), Diff: n(1.5)},
			{Name: "Cartage at Origin", Charge: n(20), Payable: dash, Diff: n(20)},
			{Name: "Certificados", Charge: n(20), Payable: n(30), Diff: n(-10)},
			{Name: "Freight processing fee", Charge: n(0.25), Payable: dash, Diff: n(0.25)},
			{Name: "Precooling", Charge: dash, Payable: n(0.3), Diff: n(-0.3)},
		},
		Total: liquidation.PolicyTotal{Charge: 43.75, Payable: 32.3, Diff: 11.45},
	}
}

// DemoShipments is the seven-shipment demo batch.
func DemoShipments() []liquidation.Shipment {
	type variant struct {
		id, awb, consignee, rule   string
		weight, gross              float64
		cobros, pagos, utilidad    float64
		porc                       float64
		status                     liquidation.Status
		message, exporter, carrier string
		cvCount                    int
		deductions, commissions    bool
	}
	variants := []variant{
		{"ship-1", "230-6584-1226", "KUEHNE + NAGEL N.V", "R-2024-0847", 950, 750, 1140, 997.5, 142.5, 12.5, liquidation.StatusValid, "", "", "", 5, true, true},
		{"ship-2", "230-6585-1227", "KUEHNE + NAGEL N.V", "R-2024-0847", 1200, 950, 1440, 1200, 240, 16.7, liquidation.StatusValid, "", "", "", 5, false, true},
		{"ship-3", "230-6586-1228", "DHL GLOBAL FORWARDING", "R-2024-0921", 850, 680, 720, 765, -45, -6.25, liquidation.StatusWarning, "Utilidad negativa", "SEAFRESH", "LH - BOG FRA MIA", 3, true, false},
		{"ship-4", "230-6587-1229", "KUEHNE + NAGEL N.V", "R-2024-0847", 1100, 880, 1320, 1045, 275, 20.8, liquidation.StatusValid, "", "", "", 5, true, true},
		{"ship-5", "230-6588-1230", "PANALPINA WORLD TRANSPORT", "R-2024-0847", 1450, 1160, 1740, 1450, 290, 16.7, liquidation.StatusWarning, "Peso > 1000kg - Validar tarifa", "ECUAFISH", "", 5, false, true},
		{"ship-6", "230-6589-1231", "KUEHNE + NAGEL N.V", "R-2024-0847", 780, 624, 936, 780, 156, 16.7, liquidation.StatusValid, "", "", "", 4, false, true},
		{"ship-7", "230-6590-1232", "DB SCHENKER", "R-2024-0921", 1650, 1320, 1980, 1650, 330, 16.7, liquidation.StatusWarning, "Peso > 1000kg - Validar tarifa", "MARINEX", "AA - BOG MIA", 5, true, false},
	}

	out := make([]liquidation.Shipment, 0, len(variants))
	for _, v := range variants {
		info := DemoGeneralInfo()
		info.ImportadorAWB = liquidation.Text(v.awb)
		info.PesoCobrable = liquidation.Number(v.weight)
		info.GrossWeight = liquidation.Number(v.gross)
		if v.exporter != "" {
			info.Exporter = liquidation.Text(v.exporter)
		}
		rule := DemoPolicyRule()
		rule.RuleNumber = v.rule
		rule.Consignee = v.consignee
		if v.carrier != "" {
			rule.Carrier = v.carrier
		}
		porc := v.porc
		s := liquidation.Shipment{
			ID: v.id, AWB: v.awb, Consignee: v.consignee, Weight: v.weight, RuleNumber: v.rule,
			TotalCobros: v.cobros, TotalPagos: v.pagos, Utilidad: v.utilidad, UtilidadPorc: &porc,
			Status: v.status, StatusMessage: v.message,
			GeneralInfo:      info,
			CompraVentaItems: DemoCompraVentaItems()[:v.cvCount],
			PolicyRule:       rule,
		}
		if v.deductions {
			s.DeductionItems = DemoDeductionItems()
		}
		if v.commissions {
			s.CommissionItems = DemoCommissionItems()
		}
		out = append(out, s)
	}
	return out
}
