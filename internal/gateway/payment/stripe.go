// Package payment адаптер платёжного шлюза Stripe: авторизация без списания,
// списание, отмена и частичный возврат, подключение выплат учителей.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

const (
	requestTimeout = 10 * time.Second

	eventPaymentFailed = "payment_intent.payment_failed"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	ReturnURL     string
	RefreshURL    string
	// BaseURL переопределяет адрес API, пусто - боевой адрес Stripe
	BaseURL string
}

// Stripe реализует service.PaymentGateway
type Stripe struct {
	api    *client.API
	cfg    Config
	logger *zap.Logger
}

func NewStripe(cfg Config, logger *zap.Logger) *Stripe {
	backendCfg := &stripe.BackendConfig{
		HTTPClient: &http.Client{Timeout: requestTimeout},
		// Повторы делает очередь расчётов
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     logger.Sugar(),
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripe.String(cfg.BaseURL)
	}

	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
	}

	return &Stripe{
		api:    client.New(cfg.SecretKey, backends),
		cfg:    cfg,
		logger: logger,
	}
}

// CheckCredentials проверяет секретный ключ запросом баланса, вызывается при старте
func (s *Stripe) CheckCredentials(ctx context.Context) error {
	params := &stripe.BalanceParams{}
	params.Context = ctx
	if _, err := s.api.Balance.Get(params); err != nil {
		return fmt.Errorf("check stripe credentials: %w", err)
	}
	return nil
}

// Authorize создаёт PaymentIntent с ручным списанием и переводом учителю за вычетом комиссии
func (s *Stripe) Authorize(ctx context.Context, req model.AuthorizeRequest) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:               stripe.Int64(req.AmountCents),
		Currency:             stripe.String(s.cfg.Currency),
		CaptureMethod:        stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		ApplicationFeeAmount: stripe.Int64(req.PlatformFeeCents),
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(req.PayoutDestination),
		},
	}
	params.Context = ctx
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}
	if bookingID, ok := req.Metadata["booking_id"]; ok {
		params.SetIdempotencyKey("authorize-" + bookingID)
	}

	intent, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return "", fmt.Errorf("create payment intent: %w", err)
	}

	return intent.ID, nil
}

// Capture списывает авторизованную сумму полностью
func (s *Stripe) Capture(ctx context.Context, intentRef string) error {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	params.SetIdempotencyKey("capture-" + intentRef)

	if _, err := s.api.PaymentIntents.Capture(intentRef, params); err != nil {
		return fmt.Errorf("capture payment intent: %w", err)
	}
	return nil
}

// Cancel снимает авторизацию, деньги не списываются
func (s *Stripe) Cancel(ctx context.Context, intentRef string) error {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonRequestedByCustomer)),
	}
	params.Context = ctx
	params.SetIdempotencyKey("cancel-" + intentRef)

	if _, err := s.api.PaymentIntents.Cancel(intentRef, params); err != nil {
		return fmt.Errorf("cancel payment intent: %w", err)
	}
	return nil
}

// RefundPartial возвращает часть суммы. Несписанный платёж списывается за вычетом возврата,
// уже списанный возвращается через Refund.
func (s *Stripe) RefundPartial(ctx context.Context, intentRef string, amountCents int64) error {
	getParams := &stripe.PaymentIntentParams{}
	getParams.Context = ctx
	intent, err := s.api.PaymentIntents.Get(intentRef, getParams)
	if err != nil {
		return fmt.Errorf("get payment intent: %w", err)
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusRequiresCapture:
		toCapture := intent.Amount - amountCents
		if toCapture <= 0 {
			return s.Cancel(ctx, intentRef)
		}
		params := &stripe.PaymentIntentCaptureParams{
			AmountToCapture:      stripe.Int64(toCapture),
			ApplicationFeeAmount: stripe.Int64(scaledFee(intent.ApplicationFeeAmount, intent.Amount, toCapture)),
		}
		params.Context = ctx
		params.SetIdempotencyKey("refund-partial-capture-" + intentRef)
		if _, err := s.api.PaymentIntents.Capture(intentRef, params); err != nil {
			return fmt.Errorf("capture payment intent partially: %w", err)
		}
		return nil

	case stripe.PaymentIntentStatusSucceeded:
		if intent.AmountReceived < intent.Amount {
			// Уже списано за вычетом возврата
			return nil
		}
		params := &stripe.RefundParams{
			PaymentIntent: stripe.String(intentRef),
			Amount:        stripe.Int64(amountCents),
		}
		params.Context = ctx
		params.SetIdempotencyKey("refund-partial-" + intentRef)
		if _, err := s.api.Refunds.New(params); err != nil {
			return fmt.Errorf("refund payment intent: %w", err)
		}
		return nil

	case stripe.PaymentIntentStatusCanceled:
		return nil

	default:
		return fmt.Errorf("payment intent %s is %s, cannot refund", intentRef, intent.Status)
	}
}

// scaledFee комиссия платформы пропорционально фактически списанной сумме
func scaledFee(fee, amount, captured int64) int64 {
	if amount <= 0 || fee <= 0 {
		return 0
	}
	return captured * fee / amount
}

// VerifyWebhookSignature проверяет заголовок Stripe-Signature
func (s *Stripe) VerifyWebhookSignature(payload []byte, signature string) bool {
	if signature == "" {
		return false
	}
	if err := webhook.ValidatePayload(payload, signature, s.cfg.WebhookSecret); err != nil {
		s.logger.Debug("Stripe signature mismatch", zap.Error(err))
		return false
	}
	return true
}

// ParseWebhookEvent разбирает уже проверенное тело события
func (s *Stripe) ParseWebhookEvent(payload []byte) (*model.PaymentEvent, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode stripe event: %w", err)
	}

	result := &model.PaymentEvent{ID: event.ID, Kind: model.PaymentEventOther}
	if event.Type != eventPaymentFailed {
		return result, nil
	}
	if event.Data == nil {
		return nil, fmt.Errorf("stripe event %s has no data", event.ID)
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}

	result.Kind = model.PaymentEventFailed
	result.IntentRef = intent.ID
	return result, nil
}

// CreatePayoutOnboardingLink создаёт Express-аккаунт при необходимости и ссылку на анкету
func (s *Stripe) CreatePayoutOnboardingLink(ctx context.Context, teacherID int64, accountID string) (*model.PayoutLink, error) {
	if accountID == "" {
		params := &stripe.AccountParams{
			Type: stripe.String(string(stripe.AccountTypeExpress)),
			Capabilities: &stripe.AccountCapabilitiesParams{
				Transfers: &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
			},
		}
		params.Context = ctx
		params.AddMetadata("teacher_id", strconv.FormatInt(teacherID, 10))
		params.SetIdempotencyKey("account-teacher-" + strconv.FormatInt(teacherID, 10))

		account, err := s.api.Accounts.New(params)
		if err != nil {
			return nil, fmt.Errorf("create connected account: %w", err)
		}
		accountID = account.ID
	}

	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(s.cfg.RefreshURL),
		ReturnURL:  stripe.String(s.cfg.ReturnURL),
		Type:       stripe.String(string(stripe.AccountLinkTypeAccountOnboarding)),
	}
	params.Context = ctx

	link, err := s.api.AccountLinks.New(params)
	if err != nil {
		return nil, fmt.Errorf("create account link: %w", err)
	}

	return &model.PayoutLink{URL: link.URL, AccountID: accountID}, nil
}
