package model

import "fmt"

// CallbackEnvelope is the provider's asynchronous result envelope
type CallbackEnvelope struct {
	Body CallbackBody `json:"Body"`
}

// CallbackBody wraps the STK callback payload
type CallbackBody struct {
	StkCallback *StkCallback `json:"stkCallback"`
}

// StkCallback is the provider's push-payment result
type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

// CallbackMetadata is the optional item list attached to a successful result
type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

// MetadataItem is a single name/value pair in the callback metadata
type MetadataItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value,omitempty"`
}

// Lookup returns the value of the named metadata item. Nil-safe: a missing
// metadata block behaves like an empty one.
func (m *CallbackMetadata) Lookup(name string) (any, bool) {
	if m == nil {
		return nil, false
	}
	for _, item := range m.Item {
		if item.Name == name {
			return item.Value, true
		}
	}
	return nil, false
}

// Amount extracts the Amount item, defaulting to 0 when absent
func (m *CallbackMetadata) Amount() float64 {
	v, ok := m.Lookup("Amount")
	if !ok {
		return 0
	}
	f, ok := Number(v)
	if !ok {
		return 0
	}
	return f
}

// String extracts the named item as a string, defaulting to empty when absent
func (m *CallbackMetadata) String(name string) string {
	v, ok := m.Lookup(name)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
