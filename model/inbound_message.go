package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// InboundMessage is the loosely typed CDR payload published on the ingestion queue.
type InboundMessage struct {
	Source      string   `json:"source" yaml:"source"`
	Destination string   `json:"destination" yaml:"destination"`
	StartTime   string   `json:"starttime" yaml:"starttime"`
	Service     string   `json:"service" yaml:"service"`
	Usage       *float64 `json:"usage" yaml:"usage"`
	// UsageRaw 保留無法轉為數字的 usage 原始值，Usage 此時為 nil
	UsageRaw string `json:"-" yaml:"-"`
	FileName string `json:"file_name" yaml:"file_name"`
}

// UnmarshalJSON accepts strings, numbers and booleans for every field. Objects, arrays and null
// are treated as absent. Only a malformed document is an error.
func (m *InboundMessage) UnmarshalJSON(data []byte) error {
	var raw struct {
		Source      json.RawMessage `json:"source"`
		Destination json.RawMessage `json:"destination"`
		StartTime   json.RawMessage `json:"starttime"`
		Service     json.RawMessage `json:"service"`
		Usage       json.RawMessage `json:"usage"`
		FileName    json.RawMessage `json:"file_name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = InboundMessage{
		Source:      scalarText(raw.Source),
		Destination: scalarText(raw.Destination),
		StartTime:   scalarText(raw.StartTime),
		Service:     scalarText(raw.Service),
		FileName:    scalarText(raw.FileName),
	}

	usage := strings.TrimSpace(scalarText(raw.Usage))
	if usage == "" {
		return nil
	}
	v, err := strconv.ParseFloat(usage, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		m.UsageRaw = usage
		return nil
	}
	m.Usage = &v
	return nil
}

func scalarText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
