// Package export renders liquidation reports as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/backend-liquidacion/internal/batch"
	"github.com/noah-isme/backend-liquidacion/internal/liquidation"
	"github.com/noah-isme/backend-liquidacion/internal/payload"
)

// Sheet names.
const (
	SheetResumen = "Resumen"
	SheetDetalle = "Detalle"
)

// Report is everything a spreadsheet export shows.
type Report struct {
	Rows         []batch.Row
	Consolidated liquidation.ConsolidatedTotals
	Payloads     []payload.BatchEntry
}

var (
	summaryHeader = []any{"AWB", "Consignatario", "Peso", "Regla", "Cobros", "Pagos", "Deducciones", "Comisiones", "Utilidad", "Utilidad %", "Estado", "Editado", "Conflictos"}
	detailHeader  = []any{"AWB", "Tipo", "Rubro", "Base", "Valor Compra", "Valor Venta", "Valor", "Total Compra", "Total Venta", "Total"}
)

// WriteXLSX writes r as an xlsx workbook with a summary and a detail sheet.
func WriteXLSX(w io.Writer, r Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetResumen); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetDetalle); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	sw := sheetWriter{f: f}
	sw.row(SheetResumen, summaryHeader...)
	for _, row := range r.Rows {
		s, t := row.Shipment, row.Totals
		sw.row(SheetResumen, s.AWB, s.Consignee, s.Weight, s.RuleNumber,
			t.TotalCobros, t.TotalPagos, t.TotalDeducciones, t.TotalComisiones,
			t.Utilidad, t.UtilidadPorc, string(s.Status), yesNo(row.Edited), row.Conflicts)
	}
	c := r.Consolidated
	sw.row(SheetResumen, fmt.Sprintf("TOTAL (%d)", c.TotalShipments), "", "", "",
		c.TotalCobros, c.TotalPagos, "", "", c.TotalUtilidad, c.TotalUtilidadPorc,
		fmt.Sprintf("%d/%d/%d", c.ValidCount, c.WarningCount, c.ErrorCount), "", "")

	sw.row(SheetDetalle, detailHeader...)
	for _, entry := range r.Payloads {
		p := entry.Payload
		for _, line := range p.CompraVentaItems {
			sw.row(SheetDetalle, entry.AWB, string(liquidation.TypeCompraVenta), line.Rubro, string(line.BaseKey),
				line.ValorCompra, line.ValorVenta, "", line.TotalCompra, line.TotalVenta, line.UtilidadItem)
		}
		for _, line := range p.DeductionItems {
			sw.row(SheetDetalle, entry.AWB, string(liquidation.TypeDeductions), line.Rubro, string(line.BaseKey),
				"", "", line.Valor, "", "", line.Total)
		}
		for _, line := range p.CommissionItems {
			sw.row(SheetDetalle, entry.AWB, string(liquidation.TypeCommissions), line.Rubro, string(line.BaseKey),
				"", "", line.Valor, "", "", line.Total)
		}
	}
	if sw.err != nil {
		return sw.err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

type sheetWriter struct {
	f    *excelize.File
	next map[string]int
	err  error
}

func (s *sheetWriter) row(sheet string, values ...any) {
	if s.err != nil {
		return
	}
	if s.next == nil {
		s.next = make(map[string]int)
	}
	s.next[sheet]++
	r := s.next[sheet]
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, r)
		if err != nil {
			s.err = err
			return
		}
		if err := s.f.SetCellValue(sheet, cell, v); err != nil {
			s.err = fmt.Errorf("set %s!%s: %w", sheet, cell, err)
			return
		}
	}
}

func yesNo(v bool) string {
	if v {
		return "Sí"
	}
	return "No"
}
