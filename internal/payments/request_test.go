package payments

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodway/foodway-backend/pkg/db/models"
	pkgerrors "github.com/foodway/foodway-backend/pkg/errors"
)

func costed(subtotal, share, platform, payment string) models.DeliveryAssignment {
	return models.DeliveryAssignment{
		ShopName:      "Spice Route",
		PayeeVPA:      "spiceroute@upi",
		Subtotal:      decimal.RequireFromString(subtotal),
		DeliveryShare: decimal.RequireFromString(share),
		PlatformFee:   decimal.RequireFromString(platform),
		PaymentFee:    decimal.RequireFromString(payment),
	}
}

func TestBuildRequestSumsCostFields(t *testing.T) {
	req, err := BuildRequest(costed("240", "40", "10", "5"))
	require.NoError(t, err)
	assert.Equal(t, "295.00", req.Amount)
	assert.Equal(t, "spiceroute@upi", req.PayeeVPA)
	assert.Equal(t, "Spice Route", req.PayeeName)
	assert.Equal(t, "INR", req.Currency)
}

func TestBuildRequestRoundsHalfUp(t *testing.T) {
	req, err := BuildRequest(costed("100.005", "0", "0", "0"))
	require.NoError(t, err)
	assert.Equal(t, "100.01", req.Amount)

	req, err = BuildRequest(costed("99.994", "0", "0", "0"))
	require.NoError(t, err)
	assert.Equal(t, "99.99", req.Amount)
}

func TestBuildRequestIsDeterministic(t *testing.T) {
	a := costed("199.99", "35.50", "9.99", "4.52")
	first, err := BuildRequest(a)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := BuildRequest(a)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, "250.00", first.Amount)
}

func TestBuildRequestUnavailableWithoutPayee(t *testing.T) {
	a := costed("240", "40", "10", "5")
	a.PayeeVPA = "   "
	_, err := BuildRequest(a)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePaymentUnavailable))
}

func TestPayeeNameFallbacks(t *testing.T) {
	a := costed("1", "0", "0", "0")
	a.PayeeName = "Spice Route Pvt Ltd"
	req, err := BuildRequest(a)
	require.NoError(t, err)
	assert.Equal(t, "Spice Route Pvt Ltd", req.PayeeName)

	a.PayeeName = ""
	a.ShopName = ""
	req, err = BuildRequest(a)
	require.NoError(t, err)
	assert.Equal(t, "FoodWay", req.PayeeName)
}

func TestLinkEncoding(t *testing.T) {
	req := Request{Amount: "295.00", PayeeVPA: "spice&route@upi", PayeeName: "Spice Route", Note: DefaultNote, Currency: Currency}
	assert.Equal(t,
		"upi://pay?pa=spice%26route%40upi&pn=Spice%20Route&tn=Delivery%20Order&am=295.00&cu=INR",
		req.Link())
}
