package loader

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cdr-backend/model"
)

// 各服務類型的合理用量上限
const (
	MaxVoiceMinutes = 1440
	MaxDataMB       = 100000
	SMSUsage        = 1
)

var (
	ErrFileNotFound = errors.New("cdr file does not exist")
	ErrFileEmpty    = errors.New("cdr file is empty")

	phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
	urlPattern   = regexp.MustCompile(`^(http|https)://[a-zA-Z0-9]+([\-\.]{1}[a-zA-Z0-9]+)*\.[a-zA-Z]{2,}(:[0-9]{1,5})?(\/.*)?$`)
)

// ValidationErrors 單筆紀錄的所有驗證問題
type ValidationErrors []string

func (v ValidationErrors) Error() string {
	return strings.Join(v, "; ")
}

// ValidateFile 檢查檔案存在、副檔名受支援且非空
func ValidateFile(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if err != nil {
		return err
	}
	if !SupportedExtension(path) {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrFileEmpty, path)
	}
	return nil
}

// ValidateRecord returns nil for a well-formed record, otherwise ValidationErrors listing every
// problem found. now bounds the start time (not in the future, not older than ten years).
func ValidateRecord(rec Record, now time.Time) error {
	msg := rec.Message
	var problems ValidationErrors

	required := []struct {
		name  string
		value string
	}{
		{"source", msg.Source},
		{"destination", msg.Destination},
		{"starttime", msg.StartTime},
		{"service", msg.Service},
		{"usage", rec.UsageText},
	}
	for _, f := range required {
		if f.value == "" {
			problems = append(problems, "Missing required field: "+f.name)
		}
	}
	if len(problems) > 0 {
		return problems
	}

	if !phonePattern.MatchString(msg.Source) {
		problems = append(problems, fmt.Sprintf("Invalid source format: %s", msg.Source))
	}

	service, ok := model.ParseServiceType(msg.Service)
	if !ok {
		problems = append(problems, fmt.Sprintf("Invalid service type: %s. Must be one of: VOICE, SMS, DATA", msg.Service))
	} else {
		problems = append(problems, validateDestination(service, msg.Destination)...)
		problems = append(problems, validateUsage(service, rec.UsageText)...)
	}

	if st, err := model.ParseLocalDateTime(msg.StartTime); err != nil {
		problems = append(problems, fmt.Sprintf("Invalid datetime format: %s", msg.StartTime))
	} else {
		wallNow := model.NewLocalDateTime(now).Time
		if st.After(wallNow) {
			problems = append(problems, fmt.Sprintf("StartTime cannot be in the future: %s", msg.StartTime))
		}
		if st.Before(wallNow.AddDate(-10, 0, 0)) {
			problems = append(problems, fmt.Sprintf("StartTime is unreasonably old: %s", msg.StartTime))
		}
	}

	if ok && service != model.ServiceTypeData && msg.Source == msg.Destination {
		problems = append(problems, fmt.Sprintf("Source and destination cannot be identical for %s", service))
	}

	if len(problems) > 0 {
		return problems
	}
	return nil
}

func validateDestination(service model.ServiceType, destination string) []string {
	if service != model.ServiceTypeData {
		if !phonePattern.MatchString(destination) {
			return []string{fmt.Sprintf("Invalid destination format for %s: %s. Should be a phone number.", service, destination)}
		}
		return nil
	}

	if urlPattern.MatchString(destination) {
		return nil
	}
	if u, err := url.Parse(destination); err == nil && u.Scheme != "" && u.Host != "" {
		return nil
	}
	return []string{fmt.Sprintf("Invalid URL format for DATA service: %s", destination)}
}

func validateUsage(service model.ServiceType, text string) []string {
	usage, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return []string{fmt.Sprintf("Usage must be a number: %s", text)}
	}

	var problems []string
	if usage < 0 {
		problems = append(problems, fmt.Sprintf("Usage must be positive: %g", usage))
	}
	switch service {
	case model.ServiceTypeVoice:
		if usage > MaxVoiceMinutes {
			problems = append(problems, fmt.Sprintf("Voice call duration (%g minutes) exceeds reasonable limit", usage))
		}
	case model.ServiceTypeData:
		if usage > MaxDataMB {
			problems = append(problems, fmt.Sprintf("Data usage (%g MB) exceeds reasonable limit", usage))
		}
	case model.ServiceTypeSMS:
		if usage != SMSUsage {
			problems = append(problems, fmt.Sprintf("SMS usage must be exactly 1, got: %g", usage))
		}
	}
	return problems
}
