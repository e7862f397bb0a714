package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cdr-backend/metrics"
	"cdr-backend/model"

	"github.com/rs/zerolog"
)

// CdrService CDR 紀錄的增刪改查
type CdrService struct {
	logger zerolog.Logger
	store  RecordStore
}

func NewCdrService(logger zerolog.Logger, store RecordStore) *CdrService {
	return &CdrService{
		logger: logger.With().Str("module", "cdr_service").Logger(),
		store:  store,
	}
}

// SaveCdr 新增紀錄，ID 一律由儲存層分配
func (s *CdrService) SaveCdr(ctx context.Context, cdr *model.Cdr) (*model.Cdr, error) {
	start := time.Now()

	record := cdr.Clone()
	record.ID = 0

	saved, err := s.store.Save(ctx, record)
	if err != nil {
		metrics.RecordCdrOperation(metrics.OperationSave, metrics.StatusError, metrics.SourceAPI, time.Since(start))
		s.logger.Error().Err(err).Str("source", cdr.Source).Msg("新增 CDR 失敗 (Failed to save cdr)")
		return nil, err
	}

	metrics.RecordCdrOperation(metrics.OperationSave, metrics.StatusSuccess, metrics.SourceAPI, time.Since(start))
	s.logger.Info().Int64("cdr_id", saved.ID).Msg("新增 CDR 成功 (Cdr saved)")
	return saved, nil
}

// GetCdrByID 找不到時回傳 ErrRecordNotFound
func (s *CdrService) GetCdrByID(ctx context.Context, id int64) (*model.Cdr, error) {
	cdr, err := s.store.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrRecordNotFound) {
			s.logger.Error().Err(err).Int64("cdr_id", id).Msg("查詢 CDR 失敗 (Failed to get cdr)")
		}
		return nil, err
	}
	return cdr, nil
}

func (s *CdrService) GetAllCdrs(ctx context.Context) ([]*model.Cdr, error) {
	cdrs, err := s.store.FindAll(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("查詢全部 CDR 失敗 (Failed to list cdrs)")
		return nil, err
	}
	return cdrs, nil
}

// DeleteCdr 刪除不存在的 ID 視為成功
func (s *CdrService) DeleteCdr(ctx context.Context, id int64) error {
	start := time.Now()

	if err := s.store.DeleteByID(ctx, id); err != nil {
		metrics.RecordCdrOperation(metrics.OperationDelete, metrics.StatusError, metrics.SourceAPI, time.Since(start))
		s.logger.Error().Err(err).Int64("cdr_id", id).Msg("刪除 CDR 失敗 (Failed to delete cdr)")
		return err
	}

	metrics.RecordCdrOperation(metrics.OperationDelete, metrics.StatusSuccess, metrics.SourceAPI, time.Since(start))
	return nil
}

// UpdateCdr 以完整紀錄覆寫既有資料；ID 為 0 或不存在時回傳 ErrRecordNotFound
func (s *CdrService) UpdateCdr(ctx context.Context, cdr *model.Cdr) (*model.Cdr, error) {
	start := time.Now()

	if cdr.ID == 0 {
		return nil, fmt.Errorf("update without id: %w", ErrRecordNotFound)
	}

	exists, err := s.store.ExistsByID(ctx, cdr.ID)
	if err != nil {
		metrics.RecordCdrOperation(metrics.OperationUpdate, metrics.StatusError, metrics.SourceAPI, time.Since(start))
		s.logger.Error().Err(err).Int64("cdr_id", cdr.ID).Msg("檢查 CDR 失敗 (Failed to check cdr)")
		return nil, err
	}
	if !exists {
		s.logger.Warn().Int64("cdr_id", cdr.ID).Msg("更新不存在的 CDR (Cdr to update not found)")
		return nil, fmt.Errorf("cdr %d: %w", cdr.ID, ErrRecordNotFound)
	}

	updated, err := s.store.Save(ctx, cdr.Clone())
	if err != nil {
		metrics.RecordCdrOperation(metrics.OperationUpdate, metrics.StatusError, metrics.SourceAPI, time.Since(start))
		s.logger.Error().Err(err).Int64("cdr_id", cdr.ID).Msg("更新 CDR 失敗 (Failed to update cdr)")
		return nil, err
	}

	metrics.RecordCdrOperation(metrics.OperationUpdate, metrics.StatusSuccess, metrics.SourceAPI, time.Since(start))
	return updated, nil
}

// GetCdrsBySource 來源號碼完全相符
func (s *CdrService) GetCdrsBySource(ctx context.Context, source string) ([]*model.Cdr, error) {
	cdrs, err := s.store.FindByField(ctx, FieldSource, source)
	if err != nil {
		s.logger.Error().Err(err).Str("source", source).Msg("依來源查詢 CDR 失敗 (Failed to find cdrs by source)")
		return nil, err
	}
	return cdrs, nil
}

// GetCdrsByServiceType 服務類型不分大小寫；未知類型回傳空結果
func (s *CdrService) GetCdrsByServiceType(ctx context.Context, serviceType string) ([]*model.Cdr, error) {
	st, ok := model.ParseServiceType(serviceType)
	if !ok {
		return []*model.Cdr{}, nil
	}

	cdrs, err := s.store.FindByField(ctx, FieldServiceType, st.String())
	if err != nil {
		s.logger.Error().Err(err).Str("service_type", serviceType).Msg("依服務類型查詢 CDR 失敗 (Failed to find cdrs by service type)")
		return nil, err
	}
	return cdrs, nil
}

// GetCdrsByUsageRange 用量介於 min 與 max 之間（含邊界）
func (s *CdrService) GetCdrsByUsageRange(ctx context.Context, minUsage, maxUsage float64) ([]*model.Cdr, error) {
	all, err := s.store.FindAll(ctx)
	if err != nil {
		s.logger.Error().Err(err).Float64("min_usage", minUsage).Float64("max_usage", maxUsage).Msg("依用量查詢 CDR 失敗 (Failed to find cdrs by usage range)")
		return nil, err
	}

	cdrs := make([]*model.Cdr, 0)
	for _, c := range all {
		if c.Usage >= minUsage && c.Usage <= maxUsage {
			cdrs = append(cdrs, c)
		}
	}
	return cdrs, nil
}
