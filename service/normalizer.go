package service

import (
	"strconv"

	"cdr-backend/model"
)

// FallbackReason 正規化時套用預設值的原因
type FallbackReason string

const (
	FallbackMissing      FallbackReason = "missing"
	FallbackUnparsable   FallbackReason = "unparsable"
	FallbackUnrecognized FallbackReason = "unrecognized"
	FallbackNegative     FallbackReason = "negative"
)

// 會產生 fallback 的 inbound 欄位
const (
	InboundFieldStartTime = "starttime"
	InboundFieldService   = "service"
	InboundFieldUsage     = "usage"
)

// FallbackEvent records one defaulting decision taken while normalizing an inbound message.
type FallbackEvent struct {
	Field    string         `json:"field"`
	Reason   FallbackReason `json:"reason"`
	RawValue string         `json:"rawValue,omitempty"`
	Applied  string         `json:"applied"`
}

// NormalizeInbound converts an inbound message into a Cdr. It never fails: defective fields are
// replaced with defaults and each replacement is reported as a FallbackEvent.
func NormalizeInbound(msg model.InboundMessage, now model.LocalDateTime) (*model.Cdr, []FallbackEvent) {
	var events []FallbackEvent

	cdr := &model.Cdr{
		Source:      msg.Source,
		Destination: msg.Destination,
		FileName:    msg.FileName,
	}

	startTime, event := normalizeStartTime(msg.StartTime, now)
	cdr.StartTime = &startTime
	if event != nil {
		events = append(events, *event)
	}

	cdr.ServiceType, event = normalizeServiceType(msg.Service)
	if event != nil {
		events = append(events, *event)
	}

	cdr.Usage, event = normalizeUsage(msg.Usage, msg.UsageRaw)
	if event != nil {
		events = append(events, *event)
	}

	return cdr, events
}

func normalizeStartTime(raw string, now model.LocalDateTime) (model.LocalDateTime, *FallbackEvent) {
	if raw == "" {
		return now, &FallbackEvent{Field: InboundFieldStartTime, Reason: FallbackMissing, Applied: now.String()}
	}

	parsed, err := model.ParseLocalDateTime(raw)
	if err != nil {
		return now, &FallbackEvent{Field: InboundFieldStartTime, Reason: FallbackUnparsable, RawValue: raw, Applied: now.String()}
	}
	return parsed, nil
}

func normalizeServiceType(raw string) (model.ServiceType, *FallbackEvent) {
	if raw == "" {
		return model.DefaultServiceType, &FallbackEvent{Field: InboundFieldService, Reason: FallbackMissing, Applied: model.DefaultServiceType.String()}
	}

	st, ok := model.ParseServiceType(raw)
	if !ok {
		return model.DefaultServiceType, &FallbackEvent{Field: InboundFieldService, Reason: FallbackUnrecognized, RawValue: raw, Applied: model.DefaultServiceType.String()}
	}
	return st, nil
}

func normalizeUsage(raw *float64, text string) (float64, *FallbackEvent) {
	if raw == nil && text != "" {
		return 0, &FallbackEvent{Field: InboundFieldUsage, Reason: FallbackUnparsable, RawValue: text, Applied: "0"}
	}
	if raw == nil {
		return 0, &FallbackEvent{Field: InboundFieldUsage, Reason: FallbackMissing, Applied: "0"}
	}
	if *raw < 0 {
		return 0, &FallbackEvent{Field: InboundFieldUsage, Reason: FallbackNegative, RawValue: strconv.FormatFloat(*raw, 'f', -1, 64), Applied: "0"}
	}
	return *raw, nil
}
