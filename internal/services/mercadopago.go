package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	mpconfig "github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
)

var ErrPaymentsNotConfigured = errors.New("payment gateway is not configured")

const defaultItemTitle = "Producto"

// PreferenceItem is one line of a hosted checkout.
type PreferenceItem struct {
	Title     string
	Quantity  int
	UnitPrice float64
}

// PreferenceInput describes the hosted checkout to create.
type PreferenceInput struct {
	Items             []PreferenceItem
	ExternalReference string
	PayerEmail        string
}

// Preference is a created hosted checkout. InitPoint already points at the
// sandbox checkout when the gateway runs in sandbox mode.
type Preference struct {
	ID        string
	InitPoint string
}

// Payment is the gateway's view of a payment.
type Payment struct {
	ID                string
	Status            string
	StatusDetail      string
	ExternalReference string
	Amount            float64
}

// MercadoPagoConfig holds gateway settings.
type MercadoPagoConfig struct {
	AccessToken     string
	Sandbox         bool
	PublicBaseURL   string
	NotificationURL string
	Currency        string
}

// MercadoPagoService talks to Mercado Pago through the official SDK.
type MercadoPagoService struct {
	cfg         MercadoPagoConfig
	preferences preference.Client
	payments    payment.Client
}

// NewMercadoPagoService creates a new MercadoPagoService. Without an access
// token every call fails with ErrPaymentsNotConfigured.
func NewMercadoPagoService(cfg MercadoPagoConfig) (*MercadoPagoService, error) {
	svc := &MercadoPagoService{cfg: cfg}
	if cfg.AccessToken == "" {
		return svc, nil
	}

	sdkCfg, err := mpconfig.New(cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("mercadopago config: %w", err)
	}
	svc.preferences = preference.NewClient(sdkCfg)
	svc.payments = payment.NewClient(sdkCfg)
	return svc, nil
}

// CreatePreference creates a hosted checkout for the given items.
func (s *MercadoPagoService) CreatePreference(ctx context.Context, in PreferenceInput) (*Preference, error) {
	if s.preferences == nil {
		return nil, ErrPaymentsNotConfigured
	}

	res, err := s.preferences.Create(ctx, s.buildPreferenceRequest(in))
	if err != nil {
		return nil, fmt.Errorf("create preference: %w", err)
	}

	initPoint := res.InitPoint
	if s.cfg.Sandbox && res.SandboxInitPoint != "" {
		initPoint = res.SandboxInitPoint
	}
	return &Preference{ID: res.ID, InitPoint: initPoint}, nil
}

// GetPayment fetches a payment by its gateway id.
func (s *MercadoPagoService) GetPayment(ctx context.Context, id string) (*Payment, error) {
	if s.payments == nil {
		return nil, ErrPaymentsNotConfigured
	}

	numericID, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("invalid payment id %q: %w", id, err)
	}

	res, err := s.payments.Get(ctx, numericID)
	if err != nil {
		return nil, fmt.Errorf("get payment %d: %w", numericID, err)
	}

	return &Payment{
		ID:                strconv.Itoa(res.ID),
		Status:            res.Status,
		StatusDetail:      res.StatusDetail,
		ExternalReference: res.ExternalReference,
		Amount:            res.TransactionAmount,
	}, nil
}

func (s *MercadoPagoService) buildPreferenceRequest(in PreferenceInput) preference.Request {
	items := make([]preference.ItemRequest, 0, len(in.Items))
	for _, item := range in.Items {
		item = NormalizeItem(item)
		items = append(items, preference.ItemRequest{
			Title:      item.Title,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			CurrencyID: s.cfg.Currency,
		})
	}

	base := strings.TrimRight(s.cfg.PublicBaseURL, "/")
	req := preference.Request{
		Items: items,
		BackURLs: &preference.BackURLsRequest{
			Success: base + "/success",
			Failure: base + "/",
			Pending: base + "/",
		},
		AutoReturn:        "approved",
		ExternalReference: in.ExternalReference,
		NotificationURL:   s.cfg.NotificationURL,
	}
	if in.PayerEmail != "" {
		req.Payer = &preference.PayerRequest{Email: in.PayerEmail}
	}
	return req
}

// NormalizeItem fills the defaults the gateway requires: a title, a
// positive price and a quantity of at least one.
func NormalizeItem(item PreferenceItem) PreferenceItem {
	if strings.TrimSpace(item.Title) == "" {
		item.Title = defaultItemTitle
	}
	if item.UnitPrice <= 0 {
		item.UnitPrice = 1
	}
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	return item
}
