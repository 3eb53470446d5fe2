package models

import (
	"fmt"
	"time"
)

// Order kinds
const (
	KindContractEdit   = "contract_edit"
	KindContractCancel = "contract_cancel"
	KindMNP            = "mnp"
	KindFixPayMove     = "fixpay_move"
	KindFixPayRefund   = "fixpay_refund"
	KindChangeNumber   = "change_number"
	KindFeedback       = "feedback"
)

// MNP app API versions
const (
	MNPAPIVersionV1 = 1
	MNPAPIVersionV2 = 2
)

// Order is a persisted multi-step user request. The payload accumulates
// across requests: Data holds operational fields kept in cleartext,
// SData holds the sensitive sub-document (signature, identity data,
// secrets) which the store encrypts at rest.
type Order struct {
	ID       int64
	Kind     string
	ClientID string
	UID      int64
	Data     map[string]any
	SData    map[string]any

	Created   time.Time
	Completed *time.Time
	Deleted   *time.Time
}

// IsCompleted reports whether the order has been finalized.
func (o *Order) IsCompleted() bool { return o.Completed != nil }

// Field returns a string value from the cleartext payload.
func (o *Order) Field(key string) string {
	return stringValue(o.Data, key)
}

// SetField stores a string value in the cleartext payload.
func (o *Order) SetField(key, value string) {
	if o.Data == nil {
		o.Data = map[string]any{}
	}
	o.Data[key] = value
}

// Secret returns a string value from the encrypted payload.
func (o *Order) Secret(key string) string {
	return stringValue(o.SData, key)
}

// SetSecret stores a string value in the encrypted payload.
func (o *Order) SetSecret(key, value string) {
	if o.SData == nil {
		o.SData = map[string]any{}
	}
	o.SData[key] = value
}

// OrderData returns the kind-specific sub-document of the encrypted
// payload, never nil.
func (o *Order) OrderData() map[string]any {
	if o.SData == nil {
		o.SData = map[string]any{}
	}
	sub, _ := o.SData["order_data"].(map[string]any)
	if sub == nil {
		sub = map[string]any{}
		o.SData["order_data"] = sub
	}
	return sub
}

// MergeOrderData copies fields into the kind-specific sub-document.
func (o *Order) MergeOrderData(fields map[string]any) {
	sub := o.OrderData()
	for k, v := range fields {
		sub[k] = v
	}
}

func (o *Order) ContactPhone() string  { return o.Field("contact_phone") }
func (o *Order) ContactEmail() string  { return o.Field("contact_email") }
func (o *Order) Signature() string     { return o.Secret("signature") }
func (o *Order) SetSignature(s string) { o.SetSecret("signature", s) }

// MNPConfirmed reports whether the v2 MNP flow has already passed code
// verification for this order.
func (o *Order) MNPConfirmed() bool {
	v, _ := o.Data["mnp_confirmed"].(bool)
	return v
}

func (o *Order) SetMNPConfirmed() {
	if o.Data == nil {
		o.Data = map[string]any{}
	}
	o.Data["mnp_confirmed"] = true
}

// MNPAPIVersion returns the MNP app API version the order was created
// under, defaulting to v1 for orders predating the field.
func (o *Order) MNPAPIVersion() int {
	switch v := o.Data["mnp_app_api_version"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return MNPAPIVersionV1
}

func (o *Order) SetMNPAPIVersion(version int) {
	if o.Data == nil {
		o.Data = map[string]any{}
	}
	o.Data["mnp_app_api_version"] = version
}

// Confirmation is a one-time SMS-delivered secret code bound to one
// order (ConfirmItem kind + ConfirmItemID) and one contact phone.
// The code itself lives in the encrypted payload.
type Confirmation struct {
	ID            int64
	ClientID      string
	ConfirmItem   string
	ConfirmItemID int64
	ContactPhone  string
	Data          map[string]any
	SData         map[string]any

	Created time.Time
	Deleted *time.Time
}

// ReadCount is the audit counter of verification fetches.
func (c *Confirmation) ReadCount() int {
	switch v := c.Data["read_count"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func (c *Confirmation) SetReadCount(n int) {
	if c.Data == nil {
		c.Data = map[string]any{}
	}
	c.Data["read_count"] = n
}

func (c *Confirmation) SecretCode() string { return stringValue(c.SData, "secret_code") }

func (c *Confirmation) SetSecretCode(code string) {
	if c.SData == nil {
		c.SData = map[string]any{}
	}
	c.SData["secret_code"] = code
}

// SetCodeValue records the value the user submitted for comparison.
func (c *Confirmation) SetCodeValue(value string) {
	if c.SData == nil {
		c.SData = map[string]any{}
	}
	c.SData["code_value"] = value
}

func (c *Confirmation) FormattedContactPhone() string {
	return FormatNumber(c.ContactPhone)
}

// Port records a completed number porting, used for the re-port
// cool-off gate.
type Port struct {
	ID       int64     `db:"id"`
	Number   string    `db:"number"`
	PortDate time.Time `db:"port_date"`
}

// Cashback statuses
const (
	CashbackStatusReject   = -1
	CashbackStatusOpen     = 0
	CashbackStatusApproved = 1
)

var CashbackStatusText = map[int]string{
	CashbackStatusReject:   "Rejected",
	CashbackStatusOpen:     "Open",
	CashbackStatusApproved: "Approved",
}

// Cashback is a local record of a tracked cashback offer.
type Cashback struct {
	ID       int64
	ClientID string
	StatusID int
	Data     map[string]any

	Created time.Time
	Deleted *time.Time
}

// FormatNumber renders a 10-digit MSISDN as +7 (XXX) XXX-XX-XX.
// Short or empty input falls back to a placeholder mask.
func FormatNumber(number string) string {
	if number == "" {
		number = "7__________"
	}
	msisdn := number
	if msisdn[0] != '7' {
		msisdn = "7" + msisdn
	}
	if len(msisdn) < 11 {
		msisdn = msisdn + "___________"[:11-len(msisdn)]
	}
	return fmt.Sprintf("+%c (%s) %s-%s-%s",
		msisdn[0], msisdn[1:4], msisdn[4:7], msisdn[7:9], msisdn[9:11])
}

func stringValue(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
