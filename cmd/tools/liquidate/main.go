package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/noah-isme/backend-liquidacion/internal/batch"
	"github.com/noah-isme/backend-liquidacion/internal/export"
	"github.com/noah-isme/backend-liquidacion/internal/liquidation"
	"github.com/noah-isme/backend-liquidacion/internal/payload"
	"github.com/noah-isme/backend-liquidacion/internal/upstream"
)

// liquidate builds the batch save payload for a set of shipments without
// going through the API. It reads a JSON array of shipments (or the demo
// data when -in is empty) and writes the payload JSON and an optional
// spreadsheet.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	var (
		inPath   = flag.String("in", "", "JSON file with an array of shipments; defaults to the demo data")
		jsonPath = flag.String("json", "-", "where to write the save payload; - for stdout, empty to skip")
		xlsxPath = flag.String("xlsx", "", "optional path for the spreadsheet export")
	)
	flag.Parse()

	shipments, err := readShipments(*inPath)
	if err != nil {
		log.Fatalf("read shipments: %v", err)
	}
	if len(shipments) == 0 {
		log.Fatal("no shipments to liquidate")
	}

	b := batch.New(shipments)
	entries, err := payload.BuildBatch(b)
	if err != nil {
		log.Fatalf("build payload: %v", err)
	}

	if *jsonPath != "" {
		if err := writeTo(*jsonPath, func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(payload.Envelope{Mode: payload.ModeMultiple, Batch: entries})
		}); err != nil {
			log.Fatalf("write payload: %v", err)
		}
	}

	if *xlsxPath != "" {
		report := export.Report{Rows: b.Rows(), Consolidated: b.Consolidated(), Payloads: entries}
		if err := writeTo(*xlsxPath, func(w io.Writer) error {
			return export.WriteXLSX(w, report)
		}); err != nil {
			log.Fatalf("write spreadsheet: %v", err)
		}
	}

	c := b.Consolidated()
	log.Printf("liquidated %d shipments: cobros=%.2f pagos=%.2f utilidad=%.2f", b.Len(), c.TotalCobros, c.TotalPagos, c.TotalUtilidad)
}

func readShipments(path string) ([]liquidation.Shipment, error) {
	if path == "" {
		return upstream.NewMock(0).Shipments(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var shipments []liquidation.Shipment
	if err := json.Unmarshal(data, &shipments); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return shipments, nil
}

func writeTo(path string, write func(io.Writer) error) error {
	if path == "-" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
