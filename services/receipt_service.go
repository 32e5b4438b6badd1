package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/slack-go/slack"

	"tapkiosk/models"
)

// Receipt is a completed sale.
type Receipt struct {
	AccountID       string
	PaymentIntentID string
	Lines           []models.CartLine
	Currency        string
	Total           int64
	IssuedAt        time.Time
}

// NewReceipt captures the cart as it was paid for.
func NewReceipt(params PaymentScreenParams, cart *models.Cart, issuedAt time.Time) Receipt {
	return Receipt{
		AccountID:       params.ConnectedAccountID,
		PaymentIntentID: params.PaymentIntentID,
		Lines:           cart.Lines(),
		Currency:        params.Currency,
		Total:           params.Amount,
		IssuedAt:        issuedAt,
	}
}

type ReceiptService struct {
	slackClient *slack.Client
	channelID   string
}

// NewReceiptService builds the service. slackClient may be nil when receipts
// are only written to disk.
func NewReceiptService(slackClient *slack.Client, channelID string) *ReceiptService {
	return &ReceiptService{
		slackClient: slackClient,
		channelID:   channelID,
	}
}

func (rs *ReceiptService) GeneratePDF(r Receipt) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	// Core fonts are cp1252, so currency symbols need translating.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 24)
	pdf.Cell(0, 10, "RECEIPT")
	pdf.Ln(15)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Merchant: %s", r.AccountID))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Payment: %s", r.PaymentIntentID))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", r.IssuedAt.Format("January 2, 2006 15:04")))
	pdf.Ln(15)

	// Table headers
	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(100, 8, "Item")
	pdf.Cell(25, 8, "Qty")
	pdf.Cell(35, 8, "Unit Price")
	pdf.Cell(30, 8, "Amount")
	pdf.Ln(10)

	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(10, pdf.GetY(), 200, pdf.GetY())
	pdf.Ln(5)

	pdf.SetFont("Arial", "", 10)
	for _, line := range r.Lines {
		pdf.Cell(100, 6, tr(lineName(line.Price)))
		pdf.Cell(25, 6, strconv.FormatInt(line.Quantity, 10))
		pdf.Cell(35, 6, tr(models.FormatAmount(line.Price.UnitAmount, line.Price.Currency)))
		pdf.Cell(30, 6, tr(models.FormatAmount(line.Amount(), line.Price.Currency)))
		pdf.Ln(8)
	}

	pdf.Ln(10)
	pdf.SetFillColor(245, 245, 245)
	pdf.Rect(110, pdf.GetY(), 90, 15, "F")
	pdf.SetFont("Arial", "B", 14)
	pdf.SetX(115)
	pdf.Cell(35, 15, "Total:")
	pdf.SetTextColor(0, 100, 0)
	pdf.Cell(40, 15, tr(models.FormatAmount(r.Total, r.Currency)))
	pdf.SetTextColor(0, 0, 0)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func lineName(p models.Price) string {
	if p.Product != nil && p.Product.Name != "" {
		return p.Product.Name
	}
	return p.ID
}

// SendToSlack uploads the receipt to the configured channel. When the upload
// is refused a plain message with the failure is posted instead.
func (rs *ReceiptService) SendToSlack(ctx context.Context, r Receipt, pdfBytes []byte) error {
	if rs.slackClient == nil || rs.channelID == "" {
		return fmt.Errorf("slack is not configured")
	}

	message := fmt.Sprintf("🧾 *Receipt* for `%s`\n\n*Total:* %s\n*Items:* %d",
		r.PaymentIntentID, models.FormatAmount(r.Total, r.Currency), len(r.Lines))

	_, err := rs.slackClient.UploadFileContext(ctx, slack.FileUploadParameters{
		Reader:         bytes.NewReader(pdfBytes),
		Filename:       fmt.Sprintf("Receipt_%s.pdf", r.PaymentIntentID),
		Title:          fmt.Sprintf("Receipt %s", r.PaymentIntentID),
		Filetype:       "pdf",
		Channels:       []string{rs.channelID},
		InitialComment: message,
	})
	if err == nil {
		return nil
	}
	log.Printf("[Slack] Error uploading receipt to channel %s: %v", rs.channelID, err)

	fallback := message + fmt.Sprintf("\n\n:warning: _The PDF could not be attached: %v. Perhaps add the bot to the channel?_", err)
	if _, _, postErr := rs.slackClient.PostMessageContext(ctx, rs.channelID, slack.MsgOptionText(fallback, false)); postErr != nil {
		return fmt.Errorf("failed to send receipt: %v (upload error: %v)", postErr, err)
	}
	return nil
}
