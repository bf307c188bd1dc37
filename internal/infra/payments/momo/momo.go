// Package momo talks to the MoMo wallet gateway: signed payment creation,
// IPN verification and on-demand status queries.
package momo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"hotelbooking/internal/app/policies"
	domainbooking "hotelbooking/internal/domain/booking"
)

const (
	Provider = "momo"

	createPath = "/v2/gateway/api/create"
	queryPath  = "/v2/gateway/api/query"

	defaultRequestType = "captureWallet"
	defaultLang        = "vi"
)

var (
	ErrNotConfigured  = errors.New("momo: gateway not configured")
	ErrCreateRejected = errors.New("momo: create payment rejected")
)

// Config holds the merchant credentials and endpoints issued by MoMo.
type Config struct {
	PartnerCode string
	AccessKey   string
	SecretKey   string
	Endpoint    string
	RedirectURL string
	IPNURL      string
	RequestType string
	Lang        string
	Timeout     time.Duration
}

func (c Config) Validate() error {
	var missing []string
	if c.PartnerCode == "" {
		missing = append(missing, "partner code")
	}
	if c.AccessKey == "" {
		missing = append(missing, "access key")
	}
	if c.SecretKey == "" {
		missing = append(missing, "secret key")
	}
	if c.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(missing, ", "))
	}
	return nil
}

// Gateway implements the dispatcher, callback verifier and status checker
// ports for MoMo.
type Gateway struct {
	Config       Config
	Client       *http.Client
	Logger       *slog.Logger
	NewRequestID func() string
}

func New(cfg Config, logger *slog.Logger) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{
		Config: cfg,
		Client: &http.Client{Timeout: timeout},
		Logger: logger,
	}, nil
}

type createRequest struct {
	PartnerCode string `json:"partnerCode"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IPNURL      string `json:"ipnUrl"`
	RequestType string `json:"requestType"`
	ExtraData   string `json:"extraData"`
	Lang        string `json:"lang"`
	Signature   string `json:"signature"`
}

type createResponse struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	ResponseTime int64  `json:"responseTime"`
	Message      string `json:"message"`
	ResultCode   int    `json:"resultCode"`
	PayURL       string `json:"payUrl"`
	Deeplink     string `json:"deeplink"`
	QRCodeURL    string `json:"qrCodeUrl"`
}

type extraData struct {
	BookingID string `json:"bookingId"`
}

func encodeExtraData(id domainbooking.BookingID) (string, error) {
	raw, err := json.Marshal(extraData{BookingID: string(id)})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func decodeExtraData(blob string) (domainbooking.BookingID, bool) {
	if blob == "" {
		return "", false
	}
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", false
	}
	var data extraData
	if err := json.Unmarshal(raw, &data); err != nil || data.BookingID == "" {
		return "", false
	}
	return domainbooking.BookingID(data.BookingID), true
}

// Dispatch creates a wallet payment. The outcome is always pending: the
// result arrives through the IPN or a status query.
func (g *Gateway) Dispatch(ctx context.Context, req policies.DispatchRequest) (policies.DispatchResult, error) {
	blob, err := encodeExtraData(req.BookingID)
	if err != nil {
		return policies.DispatchResult{}, err
	}
	body := createRequest{
		PartnerCode: g.Config.PartnerCode,
		RequestID:   g.requestID(),
		Amount:      req.Amount.Amount,
		OrderID:     req.OrderID,
		OrderInfo:   req.Description,
		RedirectURL: g.Config.RedirectURL,
		IPNURL:      g.Config.IPNURL,
		RequestType: g.requestType(),
		ExtraData:   blob,
		Lang:        g.lang(),
	}
	body.Signature = sign(g.Config.SecretKey, createSignaturePayload(g.Config.AccessKey, body))

	var resp createResponse
	if err := g.post(ctx, createPath, body, &resp); err != nil {
		g.logger().Error("momo create payment failed", "order_id", req.OrderID, "booking_id", req.BookingID, "error", err)
		return policies.DispatchResult{}, err
	}
	if resp.ResultCode != 0 {
		g.logger().Warn("momo create payment rejected", "order_id", req.OrderID, "result_code", resp.ResultCode, "message", resp.Message)
		return policies.DispatchResult{}, fmt.Errorf("%w: result code %d: %s", ErrCreateRejected, resp.ResultCode, resp.Message)
	}
	return policies.DispatchResult{
		Outcome:     domainbooking.OutcomePending,
		RequestID:   body.RequestID,
		RedirectURL: resp.PayURL,
		Message:     resp.Message,
	}, nil
}

type queryRequest struct {
	PartnerCode string `json:"partnerCode"`
	RequestID   string `json:"requestId"`
	OrderID     string `json:"orderId"`
	Lang        string `json:"lang"`
	Signature   string `json:"signature"`
}

type queryResponse struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	ExtraData    string `json:"extraData"`
	Amount       int64  `json:"amount"`
	TransID      int64  `json:"transId"`
	PayType      string `json:"payType"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	ResponseTime int64  `json:"responseTime"`
}

func (g *Gateway) QueryStatus(ctx context.Context, orderID string) (policies.StatusReport, error) {
	body := queryRequest{
		PartnerCode: g.Config.PartnerCode,
		RequestID:   g.requestID(),
		OrderID:     orderID,
		Lang:        g.lang(),
	}
	body.Signature = sign(g.Config.SecretKey, querySignaturePayload(g.Config.AccessKey, body.PartnerCode, orderID, body.RequestID))
	var resp queryResponse
	if err := g.post(ctx, queryPath, body, &resp); err != nil {
		return policies.StatusReport{}, err
	}
	report := policies.StatusReport{
		Outcome:    outcomeFor(resp.ResultCode),
		ResultCode: resp.ResultCode,
		Amount:     resp.Amount,
		Message:    resp.Message,
	}
	if resp.TransID != 0 {
		report.ExternalTransactionID = strconv.FormatInt(resp.TransID, 10)
	}
	return report, nil
}

// outcomeFor maps MoMo result codes. 1000, 7000 and 7002 mean the payer has
// not finished yet.
func outcomeFor(code int) domainbooking.Outcome {
	switch code {
	case 0, 9000:
		return domainbooking.OutcomeSucceeded
	case 1000, 7000, 7002:
		return domainbooking.OutcomePending
	default:
		return domainbooking.OutcomeFailed
	}
}

func (g *Gateway) post(ctx context.Context, path string, payload, out any) error {
	if g.Client == nil {
		return ErrNotConfigured
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := strings.TrimRight(g.Config.Endpoint, "/") + path
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	resp, err := g.Client.Do(request)
	if err != nil {
		return fmt.Errorf("momo: post %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("momo: %s returned status %d: %s", path, resp.StatusCode, string(snippet))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("momo: decode %s response: %w", path, err)
	}
	return nil
}

func (g *Gateway) requestID() string {
	if g.NewRequestID != nil {
		return g.NewRequestID()
	}
	return uuid.NewString()
}

func (g *Gateway) requestType() string {
	if g.Config.RequestType != "" {
		return g.Config.RequestType
	}
	return defaultRequestType
}

func (g *Gateway) lang() string {
	if g.Config.Lang != "" {
		return g.Config.Lang
	}
	return defaultLang
}

func (g *Gateway) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

var (
	_ policies.PaymentDispatcher = (*Gateway)(nil)
	_ policies.StatusChecker     = (*Gateway)(nil)
	_ policies.CallbackVerifier  = (*Gateway)(nil)
)
