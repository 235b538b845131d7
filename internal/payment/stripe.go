package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
	"github.com/stripe/stripe-go/v80/webhook"
)

type StripeGateway struct {
	webhookKey string
	successURL string
	cancelURL  string
	newSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

func NewStripeGateway(secretKey, webhookKey, successURL, cancelURL string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{
		webhookKey: webhookKey,
		successURL: successURL,
		cancelURL:  cancelURL,
		newSession: session.New,
	}
}

// CreatePreference opens a Stripe Checkout session keyed by the order id.
func (g *StripeGateway) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	currency := strings.ToLower(req.Currency)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.OrderID),
		SuccessURL:        stripe.String(g.successURL),
		CancelURL:         stripe.String(g.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(ToMinorUnits(req.UnitPrice, currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Title),
					},
				},
				Quantity: stripe.Int64(req.Quantity),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID)
	params.AddMetadata("user_id", req.CustomerUID)

	sess, err := g.newSession(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}
	return &Preference{ID: sess.ID, CheckoutURL: sess.URL}, nil
}

// ParseWebhook verifies the signature and converts the event into a callback.
// ok is false for event types that carry no order payment information.
func (g *StripeGateway) ParseWebhook(payload []byte, sigHeader string) (cb Callback, ok bool, err error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, g.webhookKey)
	if err != nil {
		return Callback{}, false, err
	}
	return CallbackFromEvent(event)
}

func CallbackFromEvent(event stripe.Event) (Callback, bool, error) {
	var status string
	switch event.Type {
	case "checkout.session.completed":
		// status follows the session payment status
	case "checkout.session.async_payment_succeeded":
		status = StatusApproved
	case "checkout.session.async_payment_failed":
		status = StatusRejected
	case "checkout.session.expired":
		status = StatusCancelled
	default:
		return Callback{}, false, nil
	}
	if event.Data == nil {
		return Callback{}, false, fmt.Errorf("stripe event %s has no data", event.ID)
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return Callback{}, false, fmt.Errorf("decode checkout session: %w", err)
	}
	if status == "" {
		if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
			status = StatusApproved
		} else {
			status = StatusInProcess
		}
	}

	ref := sess.ClientReferenceID
	if ref == "" {
		ref = sess.Metadata["order_id"]
	}
	if ref == "" {
		return Callback{}, false, fmt.Errorf("checkout session %s has no order reference", sess.ID)
	}

	paymentID := sess.ID
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		paymentID = sess.PaymentIntent.ID
	}
	method := "card"
	if len(sess.PaymentMethodTypes) > 0 {
		method = sess.PaymentMethodTypes[0]
	}
	return Callback{
		ExternalReference: ref,
		PaymentID:         paymentID,
		Status:            status,
		Method:            method,
		Amount:            FromMinorUnits(sess.AmountTotal, string(sess.Currency)),
	}, true, nil
}
