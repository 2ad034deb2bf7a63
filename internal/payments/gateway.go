package payments

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/campusdesk/campusdesk-backend/pkg/config"
	"github.com/campusdesk/campusdesk-backend/pkg/types"
)

// CallbackFields are the form values the gateway posts back, named as the
// provider names them. RS carries the signature over the other fields.
type CallbackFields struct {
	MerchantID        string
	ResponseCode      string
	UniqueRef         string
	ServiceTaxAmount  string
	ProcessingFee     string
	TotalAmount       string
	TransactionAmount string
	TransactionDate   string
	InterchangeValue  string
	TDR               string
	PaymentMode       string
	SubMerchantID     string
	ReferenceNo       string
	TPS               string
	RS                string
}

// signatureBase returns the field values in the fixed order the signature is
// computed over. Order is part of the gateway contract; changing it breaks
// verification for every callback.
func (f CallbackFields) signatureBase() []string {
	return []string{
		f.MerchantID,
		f.ResponseCode,
		f.UniqueRef,
		f.ServiceTaxAmount,
		f.ProcessingFee,
		f.TotalAmount,
		f.TransactionAmount,
		f.TransactionDate,
		f.InterchangeValue,
		f.TDR,
		f.PaymentMode,
		f.SubMerchantID,
		f.ReferenceNo,
		f.TPS,
	}
}

// payload renders the raw fields for the audit row.
func (f CallbackFields) payload() types.JSONMap {
	return types.JSONMap{
		"id":                f.MerchantID,
		"responseCode":      f.ResponseCode,
		"uniqueRefNumber":   f.UniqueRef,
		"serviceTaxAmount":  f.ServiceTaxAmount,
		"processingFee":     f.ProcessingFee,
		"totalAmount":       f.TotalAmount,
		"transactionAmount": f.TransactionAmount,
		"transactionDate":   f.TransactionDate,
		"interchangeValue":  f.InterchangeValue,
		"tdr":               f.TDR,
		"paymentMode":       f.PaymentMode,
		"subMerchantId":     f.SubMerchantID,
		"referenceNo":       f.ReferenceNo,
		"tps":               f.TPS,
		"rs":                f.RS,
	}
}

// Gateway builds outbound redirect URLs and verifies callback signatures
// against the shared gateway secrets.
type Gateway struct {
	cfg config.GatewayConfig
}

// NewGateway validates the gateway contract configuration.
func NewGateway(cfg config.GatewayConfig) (*Gateway, error) {
	if cfg.MerchantID == "" || cfg.SubMerchantID == "" {
		return nil, fmt.Errorf("gateway merchant identifiers are required")
	}
	if len(cfg.AESKey) != 16 {
		return nil, fmt.Errorf("gateway AES key must be exactly 16 bytes")
	}
	if cfg.HMACSecret == "" {
		return nil, fmt.Errorf("gateway HMAC secret is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway base URL is required")
	}
	return &Gateway{cfg: cfg}, nil
}

// BuildRedirectURL assembles the hosted-payment-page URL for one cart.
// Every value except the merchant id and the optional-fields blob is
// encrypted under the shared key before it goes on the query string.
func (g *Gateway) BuildRedirectURL(referenceNo string, amount int) (string, error) {
	amountStr := strconv.Itoa(amount)

	values := url.Values{}
	values.Set("merchantid", g.cfg.MerchantID)
	values.Set("optionalfields", "")

	encrypted := map[string]string{
		"mandatoryfields":   fmt.Sprintf("%s|%s|%s", referenceNo, g.cfg.SubMerchantID, amountStr),
		"returnurl":         g.cfg.ReturnURL,
		"referenceno":       referenceNo,
		"submerchantid":     g.cfg.SubMerchantID,
		"transactionamount": amountStr,
		"paymode":           g.cfg.PaymentModeAll,
	}
	for key, value := range encrypted {
		enc, err := encryptField(value, g.cfg.AESKey)
		if err != nil {
			return "", err
		}
		values.Set(key, enc)
	}

	return g.cfg.BaseURL + "?" + values.Encode(), nil
}

// VerifyCallback checks RS against the recomputed signature.
func (g *Gateway) VerifyCallback(f CallbackFields) bool {
	return verifySignature(f.signatureBase(), g.cfg.HMACSecret, f.RS)
}

// IsSuccessCode reports whether the gateway's response code is the
// distinguished captured-payment code.
func (g *Gateway) IsSuccessCode(responseCode string) bool {
	return responseCode == g.cfg.SuccessCode
}

// MerchantMatches checks the callback's merchant identity against the
// configured identifiers.
func (g *Gateway) MerchantMatches(f CallbackFields) bool {
	return f.MerchantID == g.cfg.MerchantID && f.SubMerchantID == g.cfg.SubMerchantID
}
