package momo

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"hotelbooking/internal/app/policies"
	domainbooking "hotelbooking/internal/domain/booking"
)

type ipnBody struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	OrderInfo    string `json:"orderInfo"`
	OrderType    string `json:"orderType"`
	TransID      int64  `json:"transId"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType"`
	ResponseTime int64  `json:"responseTime"`
	ExtraData    string `json:"extraData"`
	Signature    string `json:"signature"`
}

// VerifyCallback checks the IPN signature before reading any field. The
// booking id comes from extraData, falling back to the order id pattern.
func (g *Gateway) VerifyCallback(ctx context.Context, body []byte) (policies.CallbackNotice, error) {
	var n ipnBody
	if err := json.Unmarshal(body, &n); err != nil {
		return policies.CallbackNotice{}, fmt.Errorf("momo: decode ipn: %w", err)
	}
	if n.Signature == "" {
		return policies.CallbackNotice{}, fmt.Errorf("%w: signature missing", domainbooking.ErrSignatureInvalid)
	}
	if !verify(g.Config.SecretKey, ipnSignaturePayload(g.Config.AccessKey, n), n.Signature) {
		return policies.CallbackNotice{}, fmt.Errorf("%w: order %s", domainbooking.ErrSignatureInvalid, n.OrderID)
	}
	if n.PartnerCode != g.Config.PartnerCode {
		return policies.CallbackNotice{}, fmt.Errorf("%w: unexpected partner code %q", domainbooking.ErrSignatureInvalid, n.PartnerCode)
	}
	bookingID, ok := decodeExtraData(n.ExtraData)
	if !ok {
		bookingID, _ = domainbooking.BookingIDFromOrderID(n.OrderID)
	}
	notice := policies.CallbackNotice{
		Provider:   Provider,
		OrderID:    n.OrderID,
		RequestID:  n.RequestID,
		BookingID:  bookingID,
		Amount:     n.Amount,
		Outcome:    outcomeFor(n.ResultCode),
		ResultCode: n.ResultCode,
		Message:    n.Message,
	}
	if n.TransID != 0 {
		notice.ExternalTransactionID = strconv.FormatInt(n.TransID, 10)
	}
	return notice, nil
}

// SignIPN produces the signature MoMo would attach to body. Sandbox tooling
// and tests use it to build valid callbacks.
func SignIPN(cfg Config, body map[string]any) (string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	var n ipnBody
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return sign(cfg.SecretKey, ipnSignaturePayload(cfg.AccessKey, n)), nil
}
