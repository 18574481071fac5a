package main

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"tix/src/config"
	"tix/src/types"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

func stripeWebhookRoute(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/webhook/stripe", func(ctx *gin.Context) {
		payload, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			logrus.Errorf("Error reading request body: %s", err.Error())
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		whsecret := config.Get().Stripe.WebhookSecret
		event, err := webhook.ConstructEvent(payload, ctx.GetHeader("Stripe-Signature"), whsecret)
		if err != nil {
			logrus.Errorf("Error verifying webhook signature: %s", err.Error())
			ctx.Status(http.StatusBadRequest)
			return
		}
		logrus.Infof("[StripeEvent] %s", event.Type)
		switch event.Type {
		case "payment_intent.succeeded":
			pi, ok := parseIntent(event)
			if !ok {
				break
			}
			if !handlePaymentSignal(ctx, pi.ID, types.PAYMENT_COMPLETED) {
				return
			}
			if pi.PaymentMethod != nil {
				if cid, err := strconv.ParseUint(pi.Metadata["customer_id"], 10, 64); err == nil {
					getService().RecordPaymentFingerprint(ctx.Copy(), uint(cid), pi.PaymentMethod.ID)
				}
			}
		case "payment_intent.payment_failed":
			pi, ok := parseIntent(event)
			if !ok {
				break
			}
			if !handlePaymentSignal(ctx, pi.ID, types.PAYMENT_FAILED) {
				return
			}
		case "payment_intent.canceled":
			pi, ok := parseIntent(event)
			if !ok {
				break
			}
			if !handlePaymentSignal(ctx, pi.ID, types.PAYMENT_CANCELLED) {
				return
			}
		default:
			logrus.Infof("Unhandled event type: %s", event.Type)
		}
		ctx.Status(http.StatusOK)
	})
	return apiv1
}

func parseIntent(event stripe.Event) (*stripe.PaymentIntent, bool) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		logrus.Errorf("[Stripe] Error parsing PaymentIntent: %s", err.Error())
		return nil, false
	}
	return &pi, true
}

// handlePaymentSignal applies a gateway signal and reports whether the
// request can be acknowledged. An unknown payment id usually means the
// signal raced ahead of the purchase commit, so a non-2xx response lets the
// gateway redeliver.
func handlePaymentSignal(ctx *gin.Context, paymentID string, status types.PaymentStatus) bool {
	if err := getService().HandlePaymentWebhook(ctx.Copy(), paymentID, status); err != nil {
		logrus.Errorf("Error handling payment signal [%s -> %s]: %s", paymentID, status, err.Error())
		respondError(ctx, err)
		return false
	}
	return true
}
