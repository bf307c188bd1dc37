package dto

// CallbackAck summarises what a verified callback did. The HTTP layer
// answers the provider with 204 whatever the fields say.
type CallbackAck struct {
	BookingID     string `json:"booking_id,omitempty"`
	Applied       bool   `json:"applied"`
	BookingStatus string `json:"booking_status,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

type ReconcileResult struct {
	BookingID     string `json:"booking_id"`
	Applied       bool   `json:"applied"`
	BookingStatus string `json:"booking_status"`
	PaymentStatus string `json:"payment_status"`
	GatewayStatus string `json:"gateway_status,omitempty"`
}

type StalePayment struct {
	BookingID string `json:"booking_id"`
	OrderID   string `json:"order_id"`
	Method    string `json:"method"`
}
