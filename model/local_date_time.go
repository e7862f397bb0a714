package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

const (
	// LocalDateLayout ISO 日期格式 (YYYY-MM-DD)
	LocalDateLayout = "2006-01-02"
	// LocalDateTimeLayout ISO 本地時間輸出格式，秒以下的小數位數為零時省略
	LocalDateTimeLayout = "2006-01-02T15:04:05.999999999"
)

// 接受的輸入格式：秒與小數秒皆可省略，不接受時區偏移
var localDateTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
}

// LocalDateTime is a wall-clock date-time without a zone. The wall clock is kept in UTC so that
// date extraction and comparisons never shift across zones.
type LocalDateTime struct {
	time.Time
}

// NewLocalDateTime keeps the wall clock of t and drops its location.
func NewLocalDateTime(t time.Time) LocalDateTime {
	return LocalDateTime{Time: time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)}
}

// ParseLocalDateTime parses an ISO-8601 local date-time such as 2024-01-01T10:00:00.
func ParseLocalDateTime(value string) (LocalDateTime, error) {
	var lastErr error
	for _, layout := range localDateTimeLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return LocalDateTime{Time: t}, nil
		}
		lastErr = err
	}
	return LocalDateTime{}, fmt.Errorf("invalid local date-time %q: %w", value, lastErr)
}

// DateString returns the calendar date part as YYYY-MM-DD.
func (t LocalDateTime) DateString() string {
	return t.Format(LocalDateLayout)
}

func (t LocalDateTime) String() string {
	return t.Format(LocalDateTimeLayout)
}

func (t LocalDateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *LocalDateTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("local date-time must be a string: %w", err)
	}
	parsed, err := ParseLocalDateTime(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalBSONValue 以 BSON datetime 存入 MongoDB
func (t LocalDateTime) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(t.Time)
}

func (t *LocalDateTime) UnmarshalBSONValue(typ bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: typ, Value: data}
	dt, ok := raw.TimeOK()
	if !ok {
		return fmt.Errorf("cannot decode BSON %s into LocalDateTime", typ)
	}
	t.Time = dt.UTC()
	return nil
}

// Schema 提供給 huma 的 OpenAPI 描述
func (LocalDateTime) Schema(r huma.Registry) *huma.Schema {
	return &huma.Schema{
		Type:        huma.TypeString,
		Description: "ISO-8601 local date-time without zone offset",
		Examples:    []any{"2024-01-01T10:00:00"},
	}
}
