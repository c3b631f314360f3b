package handlers

import (
	"context"
	"log"
	"net/url"
	"strconv"
	"time"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
)

// OrderEffects runs the side effects that follow an order change: the
// confirmation email, the admin notification and the order event. They run
// in the background unless InlineEffects is set, and their failures are
// only logged.
type OrderEffects struct {
	mailer        Mailer
	notifier      Notifier
	events        services.EventPublisher
	currency      string
	publicBaseURL string
	timeout       time.Duration
	run           func(func())
}

// EffectsOption configures OrderEffects.
type EffectsOption func(*OrderEffects)

// InlineEffects runs the effects on the request goroutine before the
// response is sent. Runtimes that freeze the process between requests
// need it.
func InlineEffects() EffectsOption {
	return func(e *OrderEffects) {
		e.run = func(f func()) { f() }
	}
}

// NewOrderEffects constructs OrderEffects. Any collaborator may be nil.
func NewOrderEffects(mailer Mailer, notifier Notifier, events services.EventPublisher, currency, publicBaseURL string, opts ...EffectsOption) *OrderEffects {
	if events == nil {
		events = services.NopPublisher{}
	}
	e := &OrderEffects{
		mailer:        mailer,
		notifier:      notifier,
		events:        events,
		currency:      currency,
		publicBaseURL: publicBaseURL,
		timeout:       30 * time.Second,
		run:           func(f func()) { go f() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TrackingURL is the storefront page where a customer follows an order.
func (e *OrderEffects) TrackingURL(token string) string {
	if e.publicBaseURL == "" || token == "" {
		return ""
	}
	return e.publicBaseURL + "/track?token=" + url.QueryEscape(token)
}

// OrderCreated announces a new order. Orders waiting on a Mercado Pago
// payment get their confirmation email once the payment is approved.
func (e *OrderEffects) OrderCreated(order models.Order) {
	e.run(func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()

		if !awaitingGateway(order) {
			e.sendConfirmation(ctx, order)
		}

		if e.notifier != nil {
			if err := e.notifier.NotifyNewOrder(ctx, e.orderNotification(order)); err != nil {
				log.Printf("[Order] Telegram notification failed for order %s: %v", order.ID, err)
			}
		}

		items := make([]services.EventItem, 0, len(order.Items))
		for _, item := range order.Items {
			ev := services.EventItem{Name: item.Name, Quantity: item.Quantity, Price: item.UnitPrice}
			if item.ProductID != nil {
				ev.ProductID = item.ProductID.String()
			}
			items = append(items, ev)
		}
		e.events.Publish(ctx, services.EventOrderCreated, order.ID.String(), services.OrderCreatedPayload{
			OrderID:       order.ID.String(),
			Email:         order.Email,
			Total:         order.Total,
			PaymentMethod: order.PaymentMethod,
			PaymentStatus: order.PaymentStatus,
			Items:         items,
		})
	})
}

// OrderPaid announces the first approved payment of an order.
func (e *OrderEffects) OrderPaid(order models.Order, paymentID string, amount float64) {
	e.run(func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()

		if order.PaymentMethod == models.MethodMercadoPago {
			e.sendConfirmation(ctx, order)
		}

		if e.notifier != nil {
			err := e.notifier.NotifyPaymentSuccess(ctx, services.PaymentSuccessNotification{
				OrderID:   order.ID.String(),
				PaymentID: paymentID,
				Amount:    amount,
				Currency:  e.currency,
			})
			if err != nil {
				log.Printf("[Payment] Telegram notification failed for order %s: %v", order.ID, err)
			}
		}

		e.events.Publish(ctx, services.EventOrderPaid, order.ID.String(), services.OrderPaidPayload{
			OrderID:   order.ID.String(),
			PaymentID: paymentID,
			Amount:    amount,
		})
	})
}

// StatusChanged announces a fulfillment status change.
func (e *OrderEffects) StatusChanged(orderID, from, to string) {
	e.run(func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		e.events.Publish(ctx, services.EventOrderStatusChanged, orderID, services.OrderStatusChangedPayload{
			OrderID: orderID,
			From:    from,
			To:      to,
		})
	})
}

func (e *OrderEffects) sendConfirmation(ctx context.Context, order models.Order) {
	if e.mailer == nil {
		return
	}
	err := e.mailer.SendOrderConfirmation(ctx, services.OrderConfirmation{
		To:          order.Email,
		OrderID:     order.ID.String(),
		Total:       strconv.FormatFloat(order.Total, 'f', -1, 64),
		Address:     order.Address,
		City:        order.City,
		Region:      order.Region,
		TrackingURL: e.TrackingURL(order.TrackingToken),
	})
	if err != nil {
		log.Printf("[Mail] confirmation for order %s failed: %v", order.ID, err)
	}
}

func (e *OrderEffects) orderNotification(order models.Order) services.OrderNotification {
	items := make([]services.OrderItemNotification, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, services.OrderItemNotification{
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.UnitPrice,
		})
	}
	return services.OrderNotification{
		OrderID:       order.ID.String(),
		Email:         order.Email,
		Phone:         order.Phone,
		Address:       order.Address,
		City:          order.City,
		Region:        order.Region,
		Items:         items,
		Total:         order.Total,
		Currency:      e.currency,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
	}
}

func awaitingGateway(order models.Order) bool {
	return order.PaymentMethod == models.MethodMercadoPago && order.PaymentStatus != models.PaymentPaid
}
