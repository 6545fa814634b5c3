package invoice

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/orumagideon/morine-gypsum/internal/orders"
)

// Renderer produces the PDF billing artifact for an invoice. Output is keyed
// by invoice id: rendering again overwrites the same file, so a missing
// artifact can always be regenerated.
type Renderer struct {
	Dir string
}

func (r *Renderer) Path(invoiceID int64) string {
	return filepath.Join(r.Dir, fmt.Sprintf("invoice_%d.pdf", invoiceID))
}

func (r *Renderer) Exists(invoiceID int64) bool {
	_, err := os.Stat(r.Path(invoiceID))
	return err == nil
}

// Render writes the artifact and returns its path. The order must carry its
// items and invoice.
func (r *Renderer) Render(o *orders.Order) (string, error) {
	if o.Invoice == nil {
		return "", fmt.Errorf("order %d has no invoice", o.ID)
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return "", err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Morine Gypsum")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, fmt.Sprintf("Invoice ID: #%d", o.Invoice.ID))
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, "Date: "+o.Invoice.InvoiceDate.Format("2006-01-02 15:04"))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 6, "Customer Information")
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 5, "Name: "+o.CustomerName)
	pdf.Ln(5)
	pdf.Cell(0, 5, "Phone: "+o.CustomerPhone)
	pdf.Ln(5)
	pdf.Cell(0, 5, "Address: "+o.DeliveryAddress)
	pdf.Ln(10)

	// Line items table
	header := []string{"Product", "Quantity", "Price (KES)", "Total (KES)"}
	widths := []float64{70, 30, 35, 35}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(46, 139, 87)
	pdf.SetTextColor(255, 255, 255)
	for i, h := range header {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFillColor(245, 245, 245)
	for _, it := range o.Items {
		lineTotal := it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		pdf.CellFormat(widths[0], 6, it.ProductName, "1", 0, "L", true, 0, "")
		pdf.CellFormat(widths[1], 6, fmt.Sprintf("%d", it.Quantity), "1", 0, "C", true, 0, "")
		pdf.CellFormat(widths[2], 6, it.Price.StringFixed(2), "1", 0, "C", true, 0, "")
		pdf.CellFormat(widths[3], 6, lineTotal.StringFixed(2), "1", 0, "C", true, 0, "")
		pdf.Ln(-1)
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(widths[0]+widths[1], 7, "", "1", 0, "L", false, 0, "")
	pdf.CellFormat(widths[2], 7, "Total:", "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[3], 7, o.TotalAmount.StringFixed(2), "1", 0, "C", false, 0, "")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 5, "Remarks: Payment due upon delivery.")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.Cell(0, 5, "Thank you for choosing Morine Gypsum!")

	path := r.Path(o.Invoice.ID)
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", err
	}
	return path, nil
}
