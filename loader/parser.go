package loader

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cdr-backend/model"

	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat 不支援的檔案副檔名
var ErrUnsupportedFormat = errors.New("unsupported cdr file format")

// 支援的副檔名
var supportedExtensions = map[string]func(io.Reader) ([]rawRecord, error){
	".csv":  parseCSV,
	".json": parseJSON,
	".yaml": parseYAML,
	".yml":  parseYAML,
	".xml":  parseXML,
}

// SupportedExtension reports whether the loader can parse files with this name.
func SupportedExtension(name string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Record 檔案中的一筆 CDR；UsageText 保留原始用量字串供驗證
type Record struct {
	Message   model.InboundMessage
	UsageText string
}

type rawRecord map[string]string

// ParseFile 依副檔名解析檔案，每筆紀錄的 file_name 為檔案名稱
func ParseFile(path string) ([]Record, error) {
	parse, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raws, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	fileName := filepath.Base(path)
	records := make([]Record, 0, len(raws))
	for _, raw := range raws {
		records = append(records, raw.toRecord(fileName))
	}
	return records, nil
}

func (r rawRecord) toRecord(fileName string) Record {
	usageText := strings.TrimSpace(r["usage"])

	msg := model.InboundMessage{
		Source:      strings.TrimSpace(r["source"]),
		Destination: strings.TrimSpace(r["destination"]),
		StartTime:   strings.TrimSpace(r["starttime"]),
		Service:     strings.TrimSpace(r["service"]),
		FileName:    fileName,
	}
	if st, err := model.ParseLocalDateTime(msg.StartTime); err == nil {
		msg.StartTime = st.String()
	}
	if usage, err := strconv.ParseFloat(usageText, 64); err == nil {
		msg.Usage = &usage
	}

	return Record{Message: msg, UsageText: usageText}
}

// parseCSV 第一列為欄位名稱
func parseCSV(r io.Reader) ([]rawRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	records := make([]rawRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(rawRecord, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// parseJSON 檔案內容為物件陣列
func parseJSON(r io.Reader) ([]rawRecord, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	var items []map[string]any
	if err := decoder.Decode(&items); err != nil {
		return nil, err
	}
	return fromMaps(items), nil
}

// parseYAML 檔案內容為物件清單，空檔回傳空結果
func parseYAML(r io.Reader) ([]rawRecord, error) {
	var items []map[string]any
	if err := yaml.NewDecoder(r).Decode(&items); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return fromMaps(items), nil
}

type xmlField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type xmlRecord struct {
	Fields []xmlField `xml:",any"`
}

// parseXML 讀取任意層級的 <record> 元素，子元素名稱即欄位名稱
func parseXML(r io.Reader) ([]rawRecord, error) {
	decoder := xml.NewDecoder(r)

	var records []rawRecord
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "record" {
			continue
		}

		var rec xmlRecord
		if err := decoder.DecodeElement(&rec, &start); err != nil {
			return nil, err
		}
		raw := make(rawRecord, len(rec.Fields))
		for _, f := range rec.Fields {
			raw[strings.ToLower(f.XMLName.Local)] = f.Value
		}
		records = append(records, raw)
	}
}

func fromMaps(items []map[string]any) []rawRecord {
	records := make([]rawRecord, 0, len(items))
	for _, item := range items {
		rec := make(rawRecord, len(item))
		for k, v := range item {
			rec[strings.ToLower(k)] = stringify(v)
		}
		records = append(records, rec)
	}
	return records
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case time.Time:
		return model.NewLocalDateTime(val).String()
	default:
		return fmt.Sprint(val)
	}
}
