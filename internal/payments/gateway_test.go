package payments

import (
	"net/url"
	"strings"
	"testing"
)

func TestNewGatewayRejectsShortKey(t *testing.T) {
	cfg := testGatewayConfig()
	cfg.AESKey = "too-short"
	if _, err := NewGateway(cfg); err == nil {
		t.Fatal("expected error for non-16-byte AES key")
	}
}

func TestBuildRedirectURLEncryptsEverythingButMerchantID(t *testing.T) {
	gw, err := NewGateway(testGatewayConfig())
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}

	raw, err := gw.BuildRedirectURL("6cdd2a30-8f6e-4c43-9d2b-111111111111", 60)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	values := parsed.Query()

	if got := values.Get("merchantid"); got != "100234" {
		t.Fatalf("merchant id must stay plaintext, got %q", got)
	}
	for _, key := range []string{"referenceno", "submerchantid", "transactionamount", "paymode", "returnurl", "mandatoryfields"} {
		value := values.Get(key)
		if value == "" {
			t.Fatalf("missing %s", key)
		}
		if strings.Contains(value, "6cdd2a30") || value == "60" || value == "45" || value == "9" {
			t.Fatalf("%s leaked plaintext: %q", key, value)
		}
	}
}

func TestVerifyCallbackMatchesSignedFields(t *testing.T) {
	gw, err := NewGateway(testGatewayConfig())
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}

	fields := CallbackFields{
		MerchantID:        "100234",
		ResponseCode:      "E000",
		UniqueRef:         "2200821765",
		TotalAmount:       "60",
		TransactionAmount: "60",
		SubMerchantID:     "45",
		ReferenceNo:       "ref-1",
	}
	fields.RS = signPayload(fields.signatureBase(), testGatewayConfig().HMACSecret)

	if !gw.VerifyCallback(fields) {
		t.Fatal("valid signature rejected")
	}
	fields.TotalAmount = "61"
	if gw.VerifyCallback(fields) {
		t.Fatal("tampered payload accepted")
	}
}
