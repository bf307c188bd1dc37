package momo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

type field struct {
	key   string
	value string
}

// canonical joins fields as key=value pairs with '&' in the given order.
// The provider defines the order per message type.
func canonical(fields ...field) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(f.key)
		b.WriteByte('=')
		b.WriteString(f.value)
	}
	return b.String()
}

func sign(secret, raw string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

func verify(secret, raw, signature string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(raw))
	return hmac.Equal(mac.Sum(nil), got)
}

func createSignaturePayload(accessKey string, req createRequest) string {
	return canonical(
		field{"accessKey", accessKey},
		field{"amount", strconv.FormatInt(req.Amount, 10)},
		field{"extraData", req.ExtraData},
		field{"ipnUrl", req.IPNURL},
		field{"orderId", req.OrderID},
		field{"orderInfo", req.OrderInfo},
		field{"partnerCode", req.PartnerCode},
		field{"redirectUrl", req.RedirectURL},
		field{"requestId", req.RequestID},
		field{"requestType", req.RequestType},
	)
}

func ipnSignaturePayload(accessKey string, n ipnBody) string {
	return canonical(
		field{"accessKey", accessKey},
		field{"amount", strconv.FormatInt(n.Amount, 10)},
		field{"extraData", n.ExtraData},
		field{"message", n.Message},
		field{"orderId", n.OrderID},
		field{"orderInfo", n.OrderInfo},
		field{"orderType", n.OrderType},
		field{"partnerCode", n.PartnerCode},
		field{"payType", n.PayType},
		field{"requestId", n.RequestID},
		field{"responseTime", strconv.FormatInt(n.ResponseTime, 10)},
		field{"resultCode", strconv.Itoa(n.ResultCode)},
		field{"transId", strconv.FormatInt(n.TransID, 10)},
	)
}

func querySignaturePayload(accessKey, partnerCode, orderID, requestID string) string {
	return canonical(
		field{"accessKey", accessKey},
		field{"orderId", orderID},
		field{"partnerCode", partnerCode},
		field{"requestId", requestID},
	)
}
