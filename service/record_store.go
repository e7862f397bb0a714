package service

import (
	"context"
	"errors"

	"cdr-backend/model"
)

var (
	// ErrRecordNotFound 查無此 CDR 紀錄
	ErrRecordNotFound = errors.New("cdr record not found")
	// ErrUnsupportedField 不支援的查詢欄位
	ErrUnsupportedField = errors.New("unsupported cdr lookup field")
)

// RecordField 可用於 FindByField 的欄位 (與 MongoDB 欄位名稱相同)
type RecordField string

const (
	FieldSource      RecordField = "source"
	FieldServiceType RecordField = "service_type"
)

// RecordStore is the persistence capability the CDR core depends on.
type RecordStore interface {
	// Save inserts the record when its ID is zero and assigns a new ID, otherwise it replaces the
	// record stored under that ID.
	Save(ctx context.Context, cdr *model.Cdr) (*model.Cdr, error)
	FindByID(ctx context.Context, id int64) (*model.Cdr, error)
	FindByField(ctx context.Context, field RecordField, value string) ([]*model.Cdr, error)
	// FindAll returns every stored record ordered by ID.
	FindAll(ctx context.Context) ([]*model.Cdr, error)
	DeleteByID(ctx context.Context, id int64) error
	ExistsByID(ctx context.Context, id int64) (bool, error)
}

func fieldValue(c *model.Cdr, field RecordField) (string, error) {
	switch field {
	case FieldSource:
		return c.Source, nil
	case FieldServiceType:
		return string(c.ServiceType), nil
	default:
		return "", ErrUnsupportedField
	}
}
