package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arkai-assistant/backend/internal/auth"
	"github.com/arkai-assistant/backend/internal/models"
)

// Omise charge statuses.
const (
	ChargeSuccessful = "successful"
	ChargePending    = "pending"
	ChargeFailed     = "failed"
	ChargeExpired    = "expired"
	ChargeReversed   = "reversed"
)

const omiseChargeComplete = "charge.complete"

// Charge is the subset of an Omise charge object used here.
type Charge struct {
	ID             string            `json:"id"`
	Status         string            `json:"status"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Metadata       map[string]string `json:"metadata"`
	AuthorizeURI   string            `json:"authorize_uri"`
	FailureCode    string            `json:"failure_code"`
	FailureMessage string            `json:"failure_message"`
	Source         *struct {
		Type          string `json:"type"`
		ScannableCode *struct {
			Image struct {
				DownloadURI string `json:"download_uri"`
			} `json:"image"`
		} `json:"scannable_code"`
	} `json:"source"`
}

// QRCodeURL returns the PromptPay QR image link, if any.
func (c *Charge) QRCodeURL() string {
	if c.Source == nil || c.Source.ScannableCode == nil {
		return ""
	}
	return c.Source.ScannableCode.Image.DownloadURI
}

// ChargeParams creates a card or PromptPay charge. Exactly one of Card and SourceType is set.
type ChargeParams struct {
	AmountSatang int64
	Card         string
	SourceType   string
	ReturnURI    string
	Metadata     map[string]string
}

// OmiseConfig configures the Omise REST client.
type OmiseConfig struct {
	SecretKey     string
	WebhookSecret string
	APIBaseURL    string
	Timeout       time.Duration
}

// Omise is a minimal Omise REST client and webhook adapter.
type Omise struct {
	secretKey     string
	webhookSecret string
	baseURL       string
	http          *http.Client
	logger        *zap.Logger
}

// NewOmise returns nil when no secret key is configured.
func NewOmise(cfg OmiseConfig, logger *zap.Logger) *Omise {
	if cfg.SecretKey == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.omise.co"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Omise{
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		baseURL:       strings.TrimRight(cfg.APIBaseURL, "/"),
		http:          &http.Client{Timeout: cfg.Timeout},
		logger:        logger,
	}
}

func (o *Omise) Name() string { return models.PaymentProviderOmise }

// CreateCharge creates a THB charge.
func (o *Omise) CreateCharge(ctx context.Context, p ChargeParams) (*Charge, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(p.AmountSatang, 10))
	form.Set("currency", "thb")
	if p.Card != "" {
		form.Set("card", p.Card)
	} else {
		form.Set("source[type]", p.SourceType)
	}
	if p.ReturnURI != "" {
		form.Set("return_uri", p.ReturnURI)
	}
	for k, v := range p.Metadata {
		form.Set("metadata["+k+"]", v)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/charges", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return o.do(req)
}

// RetrieveCharge fetches the current state of a charge.
func (o *Omise) RetrieveCharge(ctx context.Context, id string) (*Charge, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/charges/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	return o.do(req)
}

type omiseError struct {
	Object  string `json:"object"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OmiseAPIError is a non-2xx answer from the Omise API.
type OmiseAPIError struct {
	Status  int
	Code    string
	Message string
}

func (e *OmiseAPIError) Error() string {
	return fmt.Sprintf("omise api: status %d: %s: %s", e.Status, e.Code, e.Message)
}

// Retryable reports whether the failure is worth another attempt.
func (e *OmiseAPIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

func (o *Omise) do(req *http.Request) (*Charge, error) {
	req.SetBasicAuth(o.secretKey, "")
	req.Header.Set("Accept", "application/json")
	resp, err := o.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("omise request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read omise response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var e omiseError
		_ = json.Unmarshal(body, &e)
		return nil, &OmiseAPIError{Status: resp.StatusCode, Code: e.Code, Message: e.Message}
	}
	var ch Charge
	if err := json.Unmarshal(body, &ch); err != nil {
		return nil, fmt.Errorf("decode omise charge: %w", err)
	}
	return &ch, nil
}

// Verify checks Omise-Signature over the timestamped body. No webhook secret disables the check;
// Normalize never trusts the delivered body and always re-fetches the charge.
func (o *Omise) Verify(body []byte, header http.Header) error {
	if o.webhookSecret == "" {
		return nil
	}
	if !auth.VerifyOmiseSignature(body, header.Get("Omise-Signature"), header.Get("Omise-Signature-Timestamp"), o.webhookSecret) {
		return ErrInvalidSignature
	}
	return nil
}

type omiseEvent struct {
	Object string `json:"object"`
	Key    string `json:"key"`
	Data   struct {
		Object string `json:"object"`
		ID     string `json:"id"`
	} `json:"data"`
}

// Normalize handles charge.complete events.
func (o *Omise) Normalize(ctx context.Context, body []byte) (*Event, error) {
	var ev omiseEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.Key != omiseChargeComplete || ev.Data.Object != "charge" {
		o.logger.Debug("omise event ignored", zap.String("key", ev.Key))
		return nil, nil
	}
	if ev.Data.ID == "" {
		return nil, fmt.Errorf("%w: charge id missing", ErrMalformedEvent)
	}
	ch, err := o.RetrieveCharge(ctx, ev.Data.ID)
	if err != nil {
		return nil, fmt.Errorf("retrieve charge %s: %w", ev.Data.ID, err)
	}
	return NormalizeCharge(ch), nil
}

// NormalizeCharge maps a charge onto the payment tuple. Pending charges yield nil.
func NormalizeCharge(ch *Charge) *Event {
	var outcome Outcome
	switch ch.Status {
	case ChargeSuccessful:
		outcome = OutcomeSuccess
	case ChargeFailed, ChargeExpired, ChargeReversed:
		outcome = OutcomeFailure
	default:
		return nil
	}
	ev := eventFromMetadata(models.PaymentProviderOmise, ch.ID, ch.Metadata)
	ev.AmountSatang = ch.Amount
	ev.Outcome = outcome
	return ev
}
