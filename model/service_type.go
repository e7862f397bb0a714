package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ServiceType CDR 服務類型
type ServiceType string

const (
	ServiceTypeVoice ServiceType = "VOICE" // 語音，用量單位為分鐘
	ServiceTypeSMS   ServiceType = "SMS"   // 簡訊，用量單位為則
	ServiceTypeData  ServiceType = "DATA"  // 數據，用量單位為 MB
)

// DefaultServiceType is applied when an inbound message has no usable service value.
const DefaultServiceType = ServiceTypeVoice

// DefaultUsageUnit labels usage of a service type that has no policy.
const DefaultUsageUnit = "units"

func (s ServiceType) String() string {
	return string(s)
}

// IsValid reports whether s is one of VOICE, SMS, DATA.
func (s ServiceType) IsValid() bool {
	_, ok := usagePolicies[s]
	return ok
}

// AllServiceTypes returns the service types in declaration order.
func AllServiceTypes() []ServiceType {
	return []ServiceType{ServiceTypeVoice, ServiceTypeSMS, ServiceTypeData}
}

// ParseServiceType matches value case-insensitively against the known service types.
func ParseServiceType(value string) (ServiceType, bool) {
	st := ServiceType(strings.ToUpper(value))
	if !st.IsValid() {
		return "", false
	}
	return st, true
}

// UsagePolicy is the per-service-type rounding precision and unit label.
type UsagePolicy struct {
	Places int32
	Unit   string
}

var usagePolicies = map[ServiceType]UsagePolicy{
	ServiceTypeVoice: {Places: 2, Unit: "minutes"},
	ServiceTypeData:  {Places: 2, Unit: "MB"},
	ServiceTypeSMS:   {Places: 0, Unit: "messages"},
}

// UsagePolicyFor looks up the policy of a service-type label, ignoring case.
func UsagePolicyFor(label string) (UsagePolicy, bool) {
	p, ok := usagePolicies[ServiceType(strings.ToUpper(label))]
	return p, ok
}

// FormatUsage rounds a group total half-up to the label's precision. Unknown labels are returned
// unchanged.
func FormatUsage(total decimal.Decimal, label string) float64 {
	if p, ok := UsagePolicyFor(label); ok {
		return total.Round(p.Places).InexactFloat64()
	}
	return total.InexactFloat64()
}

// UsageUnit returns the unit label of a service type, or "units" when it has no policy.
func UsageUnit(label string) string {
	if p, ok := UsagePolicyFor(label); ok {
		return p.Unit
	}
	return DefaultUsageUnit
}
