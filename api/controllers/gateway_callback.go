package controllers

import (
	"html/template"
	"net/http"

	"github.com/campusdesk/campusdesk-backend/internal/payments"
	pkgerrors "github.com/campusdesk/campusdesk-backend/pkg/errors"
	"github.com/campusdesk/campusdesk-backend/pkg/logger"
)

// The gateway redirects the payer's browser here, so the reply is a page,
// not JSON. Failures never leak internals; the correlation id is enough for
// support to find the audit row.
var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{if .OrderCode}}<p>Order: <strong>{{.OrderCode}}</strong></p>{{end}}
{{if .Amount}}<p>Amount: {{.Amount}}</p>{{end}}
{{if .ReferenceNo}}<p>Reference: {{.ReferenceNo}}</p>{{end}}
{{if .CorrelationID}}<p>Support reference: {{.CorrelationID}}</p>{{end}}
</body>
</html>
`))

type callbackPageData struct {
	Title         string
	Message       string
	OrderCode     string
	Amount        string
	ReferenceNo   string
	CorrelationID string
}

// GatewayCallback receives the bank gateway's form post after a hosted
// payment attempt and renders the outcome page.
func GatewayCallback(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			renderCallbackPage(w, http.StatusBadRequest, callbackPageData{
				Title:         "Payment Failed",
				Message:       "The payment response could not be read.",
				CorrelationID: w.Header().Get("X-Request-Id"),
			})
			return
		}

		fields := payments.CallbackFields{
			MerchantID:        r.PostFormValue("ID"),
			ResponseCode:      r.PostFormValue("Response Code"),
			UniqueRef:         r.PostFormValue("Unique Ref Number"),
			ServiceTaxAmount:  r.PostFormValue("Service Tax Amount"),
			ProcessingFee:     r.PostFormValue("Processing Fee Amount"),
			TotalAmount:       r.PostFormValue("Total Amount"),
			TransactionAmount: r.PostFormValue("Transaction Amount"),
			TransactionDate:   r.PostFormValue("Transaction Date"),
			InterchangeValue:  r.PostFormValue("Interchange Value"),
			TDR:               r.PostFormValue("TDR"),
			PaymentMode:       r.PostFormValue("Payment Mode"),
			SubMerchantID:     r.PostFormValue("SubMerchantId"),
			ReferenceNo:       r.PostFormValue("ReferenceNo"),
			TPS:               r.PostFormValue("TPS"),
			RS:                r.PostFormValue("RS"),
		}

		result, err := svc.HandleCallback(r.Context(), fields)
		if err != nil {
			typed := pkgerrors.As(err)
			if typed == nil {
				typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "gateway callback")
			}
			logg.Error(r.Context(), "gateway callback rejected", typed)
			renderCallbackPage(w, pkgerrors.MetadataFor(typed.Code()).HTTPStatus, callbackPageData{
				Title:         "Payment Failed",
				Message:       "This payment could not be verified. If money left your account, contact support with the reference below.",
				ReferenceNo:   fields.ReferenceNo,
				CorrelationID: w.Header().Get("X-Request-Id"),
			})
			return
		}

		data := callbackPageData{
			OrderCode:   result.OrderCode,
			Amount:      result.Amount,
			ReferenceNo: result.ReferenceNo,
			Message:     result.Message,
		}
		status := http.StatusOK
		if result.Outcome == payments.CallbackOutcomeSuccess {
			data.Title = "Payment Successful"
		} else {
			data.Title = "Payment Failed"
			data.CorrelationID = w.Header().Get("X-Request-Id")
		}
		renderCallbackPage(w, status, data)
	}
}

func renderCallbackPage(w http.ResponseWriter, status int, data callbackPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = callbackPage.Execute(w, data)
}
