package lib

import (
	"context"
	"fmt"
	"math"
	"strings"
	"tix/src/config"
	"tix/src/types"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v82"
)

// Payment is the gateway-side record of a purchase attempt. Completion
// arrives asynchronously through the payment webhook.
type Payment struct {
	ID     string
	Status types.PaymentStatus
}

type CreatePaymentParams struct {
	Amount        float32
	Currency      string
	CustomerID    uint
	CustomerEmail string
	Metadata      map[string]string
}

type PaymentGateway interface {
	CreatePayment(ctx context.Context, params *CreatePaymentParams) (*Payment, error)
}

var paymentGateway PaymentGateway

func GetPaymentGateway() PaymentGateway {
	if paymentGateway != nil {
		return paymentGateway
	}
	paymentGateway = &StripeGateway{client: getStripeClient()}
	return paymentGateway
}

// NewPaymentGateway replaces the gateway implementation (tests).
func NewPaymentGateway(g PaymentGateway) PaymentGateway {
	paymentGateway = g
	return paymentGateway
}

var stripeClient *stripe.Client

func getStripeClient() *stripe.Client {
	if stripeClient != nil {
		return stripeClient
	}
	sc := stripe.NewClient(config.Get().Stripe.SecretKey)
	stripeClient = sc
	return sc
}

// NewStripeClient replaces the stripe client (tests).
func NewStripeClient(c *stripe.Client) {
	stripeClient = c
}

type StripeGateway struct {
	client *stripe.Client
}

const minorUnits float64 = 100

// toMinorUnits converts a decimal amount into the gateway's integer minor
// units, rounding so prices like 19.99 do not lose a cent to float
// truncation. Zero-decimal currencies pass through unchanged.
func toMinorUnits(amount float32, currency string) int64 {
	a := float64(amount)
	if strings.ToLower(currency) == "usd" {
		a = a * minorUnits
	}
	return int64(math.Round(a))
}

func (g *StripeGateway) CreatePayment(ctx context.Context, params *CreatePaymentParams) (*Payment, error) {
	createParams := &stripe.PaymentIntentCreateParams{
		Amount:       stripe.Int64(toMinorUnits(params.Amount, params.Currency)),
		Currency:     stripe.String(strings.ToLower(params.Currency)),
		ReceiptEmail: stripe.String(params.CustomerEmail),
		Metadata:     map[string]string{"customer_id": fmt.Sprint(params.CustomerID)},
	}
	for k, v := range params.Metadata {
		createParams.Metadata[k] = v
	}
	intent, err := g.client.V1PaymentIntents.Create(ctx, createParams)
	if err != nil {
		logrus.Errorf("Error creating PaymentIntent: %s", err.Error())
		return nil, err
	}
	logrus.Infof("Created PaymentIntent %s with status %s", intent.ID, intent.Status)
	return &Payment{ID: intent.ID, Status: mapIntentStatus(intent.Status)}, nil
}

func mapIntentStatus(s stripe.PaymentIntentStatus) types.PaymentStatus {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return types.PAYMENT_COMPLETED
	case stripe.PaymentIntentStatusCanceled:
		return types.PAYMENT_CANCELLED
	default:
		return types.PAYMENT_PENDING
	}
}
