package payments

import (
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/foodway/foodway-backend/pkg/db/models"
	pkgerrors "github.com/foodway/foodway-backend/pkg/errors"
)

const (
	Currency        = "INR"
	DefaultNote     = "Delivery Order"
	FallbackPayee   = "FoodWay"
	upiScheme       = "upi"
	upiHost         = "pay"
	amountPrecision = 2
)

// ErrUnavailable means the shop has no payee identity; the worker collects cash instead.
var ErrUnavailable = pkgerrors.New(pkgerrors.CodePaymentUnavailable, "shop has no payee configured")

// Request is the payable tuple derived from an assignment's stored cost fields.
type Request struct {
	Amount    string `json:"amount"`
	PayeeVPA  string `json:"payeeVpa"`
	PayeeName string `json:"payeeName"`
	Note      string `json:"note"`
	Currency  string `json:"currency"`
}

// Total sums subtotal, delivery share and both fees, rounded half away from zero to paise.
func Total(a models.DeliveryAssignment) decimal.Decimal {
	return a.Subtotal.
		Add(a.DeliveryShare).
		Add(a.PlatformFee).
		Add(a.PaymentFee).
		Round(amountPrecision)
}

// BuildRequest is deterministic: the same stored assignment always yields the same request.
func BuildRequest(a models.DeliveryAssignment) (*Request, error) {
	vpa := strings.TrimSpace(a.PayeeVPA)
	if vpa == "" {
		return nil, ErrUnavailable
	}
	return &Request{
		Amount:    Total(a).StringFixed(amountPrecision),
		PayeeVPA:  vpa,
		PayeeName: payeeName(a),
		Note:      DefaultNote,
		Currency:  Currency,
	}, nil
}

func payeeName(a models.DeliveryAssignment) string {
	if name := strings.TrimSpace(a.PayeeName); name != "" {
		return name
	}
	if name := strings.TrimSpace(a.ShopName); name != "" {
		return name
	}
	return FallbackPayee
}

// Link renders the request as a upi://pay URI suitable for a QR code.
func (r Request) Link() string {
	q := url.Values{}
	q.Set("pa", r.PayeeVPA)
	q.Set("pn", r.PayeeName)
	q.Set("tn", r.Note)
	q.Set("am", r.Amount)
	q.Set("cu", r.Currency)
	u := url.URL{Scheme: upiScheme, Host: upiHost, RawQuery: encodeOrdered(q, "pa", "pn", "tn", "am", "cu")}
	return u.String()
}

// encodeOrdered keeps the parameter order UPI apps expect; url.Values.Encode sorts keys.
func encodeOrdered(q url.Values, keys ...string) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+strings.ReplaceAll(url.QueryEscape(q.Get(k)), "+", "%20"))
	}
	return strings.Join(parts, "&")
}
