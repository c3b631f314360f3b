package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
	"time"
)

const defaultTelegramAPI = "https://api.telegram.org"

// TelegramService sends admin notifications to a Telegram chat.
type TelegramService struct {
	botToken    string
	adminChatID string
	apiURL      string
	client      *http.Client
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		apiURL:      defaultTelegramAPI,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends an HTML formatted message to chatID.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) error {
	if s.botToken == "" {
		log.Println("[Telegram] Bot token not configured")
		return nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiURL, s.botToken)

	body, err := json.Marshal(telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("[Telegram] Failed to send message: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Telegram] Unexpected status: %d", resp.StatusCode)
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(ctx context.Context, text string) error {
	if s.adminChatID == "" {
		log.Println("[Telegram] Admin chat ID not configured")
		return nil
	}
	return s.SendMessage(ctx, s.adminChatID, text)
}

// OrderNotification contains order data for Telegram notification.
type OrderNotification struct {
	OrderID       string
	Email         string
	Phone         string
	Address       string
	City          string
	Region        string
	Items         []OrderItemNotification
	Total         float64
	Currency      string
	PaymentMethod string
	PaymentStatus string
}

// OrderItemNotification contains order item data.
type OrderItemNotification struct {
	Name     string
	Quantity int
	Price    float64
}

// FormatPrice formats an amount with dot thousand separators and the
// currency code, e.g. "12.990 CLP".
func FormatPrice(amount float64, currency string) string {
	if currency == "" {
		currency = "CLP"
	}
	intAmount := int64(amount + 0.5)
	sign := ""
	if intAmount < 0 {
		sign = "-"
		intAmount = -intAmount
	}
	str := fmt.Sprintf("%d", intAmount)

	var result strings.Builder
	length := len(str)
	for i, digit := range str {
		if i > 0 && (length-i)%3 == 0 {
			result.WriteString(".")
		}
		result.WriteRune(digit)
	}

	return sign + result.String() + " " + currency
}

var paymentMethodLabels = map[string]string{
	"debit":       "Débito",
	"credit":      "Crédito",
	"mercadopago": "Mercado Pago",
	"transfer":    "Transferencia",
	"cash":        "Efectivo",
}

// NotifyNewOrder tells the admin chat about a new order.
func (s *TelegramService) NotifyNewOrder(ctx context.Context, order OrderNotification) error {
	if s.adminChatID == "" {
		return nil
	}

	var itemsList strings.Builder
	for i, item := range order.Items {
		itemsList.WriteString(fmt.Sprintf("%d. <b>%s</b>\n   %d x %s = %s\n",
			i+1,
			html.EscapeString(item.Name),
			item.Quantity,
			FormatPrice(item.Price, order.Currency),
			FormatPrice(item.Price*float64(item.Quantity), order.Currency),
		))
	}

	method, ok := paymentMethodLabels[order.PaymentMethod]
	if !ok {
		method = order.PaymentMethod
	}

	statusText := "⏳ Pendiente"
	if order.PaymentStatus == "paid" {
		statusText = "✅ Pagado"
	}

	message := fmt.Sprintf(`<b>🛒 NUEVO PEDIDO</b>
<b>📋 Pedido:</b> %s
<b>📧 Cliente:</b> %s
<b>📞 Teléfono:</b> %s
<b>📍 Envío:</b> %s, %s, %s
<b>📦 Productos:</b>
%s
<b>💰 Total:</b> %s
<b>💳 Pago:</b> %s
<b>📌 Estado:</b> %s
━━━━━━━━━━━━━━━━━━`,
		order.OrderID,
		html.EscapeString(order.Email),
		html.EscapeString(order.Phone),
		html.EscapeString(order.Address),
		html.EscapeString(order.City),
		html.EscapeString(order.Region),
		itemsList.String(),
		FormatPrice(order.Total, order.Currency),
		method,
		statusText,
	)

	return s.SendToAdmin(ctx, strings.TrimSpace(message))
}

// PaymentSuccessNotification contains payment success data.
type PaymentSuccessNotification struct {
	OrderID   string
	PaymentID string
	Amount    float64
	Currency  string
}

// NotifyPaymentSuccess tells the admin chat that an order was paid.
func (s *TelegramService) NotifyPaymentSuccess(ctx context.Context, payment PaymentSuccessNotification) error {
	if s.adminChatID == "" {
		return nil
	}

	message := fmt.Sprintf(`<b>✅ PAGO RECIBIDO</b>
<b>📋 Pedido:</b> %s
<b>🧾 Pago Mercado Pago:</b> %s
<b>💰 Monto:</b> %s
━━━━━━━━━━━━━━━━━━`,
		payment.OrderID,
		payment.PaymentID,
		FormatPrice(payment.Amount, payment.Currency),
	)

	return s.SendToAdmin(ctx, strings.TrimSpace(message))
}
