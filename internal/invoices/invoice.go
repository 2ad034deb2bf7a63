package invoices

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/phpdave11/gofpdf"

	"github.com/campusdesk/campusdesk-backend/pkg/db/models"
	"github.com/campusdesk/campusdesk-backend/pkg/enums"
	pkgerrors "github.com/campusdesk/campusdesk-backend/pkg/errors"
)

// Render produces the invoice PDF for a placed cart. Every figure comes
// from the snapshot, never the live catalog, so re-rendering an old invoice
// always reproduces the amounts the user actually paid.
func Render(cart *models.PlacedCart, owner *models.User) ([]byte, error) {
	if cart == nil || owner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart and owner are required")
	}
	if cart.Status < enums.CartStatusProcessing {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invalid status change").
			WithDetails("invoices are available once payment is confirmed")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 12, "CampusDesk Document Services", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 8, "Tax Invoice", "B", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 11)
	pdf.MultiCell(0, 7, fmt.Sprintf(
		"Order: %s\nMember: %s (%s)\nPlaced: %s\nPayment: %s",
		cart.OrderCode,
		owner.Name,
		owner.MemberID,
		cart.PlacedAt.Format("02 Jan 2006 15:04"),
		cart.PaymentType,
	), "", "L", false)
	pdf.Ln(4)

	// line items
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(90, 8, "Service", "1", 0, "L", false, 0, "")
	pdf.CellFormat(20, 8, "Units", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Add-ons", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Amount", "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 11)
	for i := range cart.Orders {
		order := &cart.Orders[i]
		if order.Status == enums.OrderStatusCancelled {
			continue
		}
		pdf.CellFormat(90, 8, order.ServiceName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 8, strconv.Itoa(order.UnitsRequested), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 8, strconv.Itoa(order.ParameterCost), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 8, strconv.Itoa(order.TotalCost), "1", 1, "R", false, 0, "")
	}

	if cart.CollectionType != nil {
		pdf.CellFormat(140, 8, fmt.Sprintf("Collection: %s", cart.CollectionType.Name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 8, strconv.Itoa(cart.CollectionTypeCost), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(140, 8, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, strconv.Itoa(cart.TotalCost), "1", 1, "R", false, 0, "")

	pdf.SetY(-30)
	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(0, 8, fmt.Sprintf("Generated %s. This is a system generated invoice.",
		time.Now().UTC().Format("02 Jan 2006 15:04 MST")), "T", 0, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render invoice")
	}
	return buf.Bytes(), nil
}

// Filename names the downloaded invoice after its order code.
func Filename(cart *models.PlacedCart) string {
	return "invoice-" + cart.OrderCode + ".pdf"
}
