package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/momoworks/momo-ops/internal/adapter/handler"
	"github.com/momoworks/momo-ops/pkg/client"
)

type skuCount struct {
	SKU     string          `yaml:"sku"`
	Counted decimal.Decimal `yaml:"counted"`
}

type countsFile struct {
	Counts []skuCount `yaml:"counts"`
}

func loadCounts(path string) ([]skuCount, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f countsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(f.Counts) == 0 {
		return nil, fmt.Errorf("%s has no counts", path)
	}
	return f.Counts, nil
}

// recalibrate maps SKUs to the location's item ids and submits the counts.
func recalibrate(ctx context.Context, c *client.Client, locationID, month string, counts []skuCount) (*client.Recalibration, error) {
	items, err := c.Items(ctx, locationID)
	if err != nil {
		return nil, err
	}
	bySKU := make(map[string]string, len(items))
	for _, it := range items {
		bySKU[it.SKU] = it.ID
	}
	in := client.RecalibrationInput{LocationID: locationID, Month: month}
	for _, ct := range counts {
		id, ok := bySKU[ct.SKU]
		if !ok {
			return nil, fmt.Errorf("sku %q is not stocked at %s", ct.SKU, locationID)
		}
		in.Counts = append(in.Counts, client.Count{ItemID: id, Counted: ct.Counted})
	}
	return c.SubmitRecalibration(ctx, in)
}

func printRecalibration(out io.Writer, rc *client.Recalibration) {
	fmt.Fprintf(out, "recalibration %s for %s\n", rc.ID, rc.Month)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tCOMPUTED\tCOUNTED\tVARIANCE\t")
	for _, l := range rc.Lines {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", l.ItemID, l.Computed, l.Counted, l.Variance)
	}
	tw.Flush()
}

// parseDispatchLines reads SKU=QTY arguments.
func parseDispatchLines(args []string) ([]handler.DispatchLine, error) {
	var lines []handler.DispatchLine
	for _, a := range args {
		sku, qty, ok := strings.Cut(a, "=")
		if !ok || sku == "" {
			return nil, fmt.Errorf("line %q: want SKU=QTY", a)
		}
		if _, err := decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("line %q: %w", a, err)
		}
		lines = append(lines, handler.DispatchLine{SKU: sku, Quantity: qty})
	}
	return lines, nil
}
