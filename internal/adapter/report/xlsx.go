// Package report reads and writes the spreadsheets exchanged with the back
// office: sales imports, stock summaries and payroll sheets.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/momoworks/momo-ops/internal/apperr"
	"github.com/momoworks/momo-ops/internal/core/domain"
	"github.com/momoworks/momo-ops/internal/core/service"
	"github.com/momoworks/momo-ops/internal/core/stock"
)

const maxImportRows = 10000

var salesColumns = []string{"date", "sku", "quantity", "unit_price", "payment_mode"}

var dateFormats = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006/01/02",
}

func normalizeHeader(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	return strings.ReplaceAll(h, " ", "_")
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseDate(value string) (time.Time, bool) {
	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return domain.DateOnly(t), true
		}
		return time.Time{}, false
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseSales reads the first worksheet of an XLSX upload. The header row must
// name the columns date, sku, quantity, unit_price and payment_mode in any
// order; blank rows are skipped.
func ParseSales(r io.Reader) ([]service.SaleImportRow, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.InvalidErr("file is not a readable xlsx workbook", nil)
	}
	defer func() { _ = file.Close() }()

	sheetName := file.GetSheetName(0)
	if sheetName == "" {
		return nil, apperr.InvalidErr("no worksheet found", nil)
	}
	rows, err := file.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	if len(rows) < 2 {
		return nil, apperr.InvalidErr("worksheet has no data rows", nil)
	}
	if len(rows) > maxImportRows+1 {
		return nil, apperr.InvalidErr(fmt.Sprintf("at most %d rows per import", maxImportRows), nil)
	}

	idx := map[string]int{}
	for i, h := range rows[0] {
		idx[normalizeHeader(h)] = i
	}
	var missing []string
	for _, c := range salesColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, apperr.InvalidErr("missing columns: "+strings.Join(missing, ", "), nil)
	}

	var out []service.SaleImportRow
	fields := map[string]string{}
	for i, row := range rows[1:] {
		line := i + 2
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		key := fmt.Sprintf("row %d", line)

		date, ok := parseDate(cellValue(row, idx["date"]))
		if !ok {
			fields[key] = "invalid date"
			continue
		}
		qty, err := decimal.NewFromString(cellValue(row, idx["quantity"]))
		if err != nil || !qty.IsPositive() {
			fields[key] = "quantity must be a positive number"
			continue
		}
		price, err := decimal.NewFromString(cellValue(row, idx["unit_price"]))
		if err != nil || price.IsNegative() {
			fields[key] = "unit_price must be a non-negative number"
			continue
		}
		mode := domain.PaymentMode(strings.ToLower(cellValue(row, idx["payment_mode"])))
		if !mode.Valid() {
			fields[key] = "payment_mode must be cash, card or upi"
			continue
		}
		sku := cellValue(row, idx["sku"])
		if sku == "" {
			fields[key] = "sku is required"
			continue
		}
		out = append(out, service.SaleImportRow{
			Row:         line,
			Date:        date,
			SKU:         sku,
			Quantity:    qty,
			UnitPrice:   price,
			PaymentMode: mode,
		})
	}
	if len(fields) > 0 {
		return nil, apperr.InvalidErr("import failed", fields)
	}
	return out, nil
}

type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
}

func newSheet(name string) (*sheetWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", name); err != nil {
		f.Close()
		return nil, err
	}
	return &sheetWriter{f: f, sheet: name}, nil
}

func (w *sheetWriter) append(values ...any) error {
	w.row++
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	return w.f.SetSheetRow(w.sheet, cell, &values)
}

func (w *sheetWriter) header(values ...any) error {
	if err := w.append(values...); err != nil {
		return err
	}
	style, err := w.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	return w.f.SetRowStyle(w.sheet, w.row, w.row, style)
}

func (w *sheetWriter) finish(out io.Writer, lastCol string) error {
	defer w.f.Close()
	if err := w.f.SetColWidth(w.sheet, "A", lastCol, 16); err != nil {
		return err
	}
	return w.f.Write(out)
}

func num(d decimal.Decimal) float64 { return d.InexactFloat64() }

// WriteStockReport writes one sheet with a row per item.
func WriteStockReport(out io.Writer, location domain.Location, month domain.Month, rows []stock.Row) error {
	w, err := newSheet("Stock " + month.String())
	if err != nil {
		return err
	}
	if err := w.append("Location", location.Name, "Month", month.String()); err != nil {
		return err
	}
	if err := w.header("SKU", "Name", "Unit", "Opening", "Inward", "Outward", "Closing", "Threshold", "Low"); err != nil {
		return err
	}
	for _, r := range rows {
		low := ""
		if r.Low {
			low = "LOW"
		}
		if err := w.append(r.SKU, r.Name, r.Unit, num(r.Opening), num(r.Inward), num(r.Outward), num(r.Closing), num(r.Threshold), low); err != nil {
			return err
		}
	}
	return w.finish(out, "I")
}

// WritePayroll writes the month's payroll with a totals row.
func WritePayroll(out io.Writer, month domain.Month, lines []domain.PayrollLine) error {
	w, err := newSheet("Payroll " + month.String())
	if err != nil {
		return err
	}
	if err := w.header("Employee", "Approved hours", "Hourly rate", "Gross", "Paid", "Due"); err != nil {
		return err
	}
	gross, paid, due := decimal.Zero, decimal.Zero, decimal.Zero
	for _, l := range lines {
		if err := w.append(l.EmployeeName, num(l.ApprovedHours), num(l.HourlyRate), num(l.Gross), num(l.Paid), num(l.Due)); err != nil {
			return err
		}
		gross, paid, due = gross.Add(l.Gross), paid.Add(l.Paid), due.Add(l.Due)
	}
	if err := w.append("Total", "", "", num(gross), num(paid), num(due)); err != nil {
		return err
	}
	return w.finish(out, "F")
}
