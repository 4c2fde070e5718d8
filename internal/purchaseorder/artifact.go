package purchaseorder

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/gathara/procure-to-pay/internal/models"
)

// renderArtifact builds the printable purchase order workbook: header,
// vendor and dates, line item table, total, terms. issueDate is the
// order's issue date, matching the stored entity.
func renderArtifact(poNumber string, req *models.PurchaseRequest, data models.DocumentData, issueDate time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	tableHeadStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"1F2937"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create table style: %w", err)
	}

	setCell := func(cell string, value interface{}) {
		_ = f.SetCellValue(sheet, cell, value)
	}

	setCell("A1", fmt.Sprintf("Purchase Order #%s", poNumber))
	_ = f.SetCellStyle(sheet, "A1", "A1", headerStyle)

	vendor := data.VendorName
	if vendor == "" {
		vendor = "N/A"
	}
	currency := data.Currency
	if currency == "" {
		currency = "USD"
	}
	setCell("A3", "Vendor:")
	setCell("B3", vendor)
	setCell("A4", "Currency:")
	setCell("B4", currency)
	setCell("A5", "Reference:")
	setCell("B5", req.Reference)
	setCell("A6", "Requested By:")
	setCell("B6", req.CreatedBy)
	setCell("A7", "Issue Date:")
	setCell("B7", issueDate.Format("2006-01-02"))

	const tableStart = 9
	headers := []string{"Item", "Description", "Qty", "Unit Price", "Total"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, tableStart)
		setCell(cell, h)
	}
	first, _ := excelize.CoordinatesToCellName(1, tableStart)
	last, _ := excelize.CoordinatesToCellName(len(headers), tableStart)
	_ = f.SetCellStyle(sheet, first, last, tableHeadStyle)

	row := tableStart + 1
	for _, item := range data.Items {
		values := []interface{}{
			item.Name,
			item.Description,
			item.Quantity,
			fmt.Sprintf("%s %s", currency, item.UnitPrice.StringFixed(2)),
			fmt.Sprintf("%s %s", currency, item.TotalPrice.StringFixed(2)),
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			setCell(cell, v)
		}
		row++
	}

	row++
	totalCell, _ := excelize.CoordinatesToCellName(4, row)
	totalValueCell, _ := excelize.CoordinatesToCellName(5, row)
	setCell(totalCell, "Total:")
	setCell(totalValueCell, fmt.Sprintf("%s %s", currency, data.TotalAmount.StringFixed(2)))

	row += 2
	termsCell, _ := excelize.CoordinatesToCellName(1, row)
	terms := data.Terms
	if terms == "" {
		terms = defaultTerms
	}
	setCell(termsCell, "Terms: "+terms)

	_ = f.SetColWidth(sheet, "A", "B", 30)
	_ = f.SetColWidth(sheet, "C", "E", 16)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf.Bytes(), nil
}
