package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cdr-backend/model"
)

// MemoryRecordStore 記憶體內的 RecordStore，供本機開發 (store.driver: memory) 與測試使用
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[int64]*model.Cdr
	lastID  int64
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		records: make(map[int64]*model.Cdr),
	}
}

func (s *MemoryRecordStore) Save(ctx context.Context, cdr *model.Cdr) (*model.Cdr, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cdr.ID == 0 {
		s.lastID++
		cdr.ID = s.lastID
	} else if cdr.ID > s.lastID {
		s.lastID = cdr.ID
	}
	s.records[cdr.ID] = cdr.Clone()
	return cdr, nil
}

func (s *MemoryRecordStore) FindByID(ctx context.Context, id int64) (*model.Cdr, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("cdr %d: %w", id, ErrRecordNotFound)
	}
	return c.Clone(), nil
}

func (s *MemoryRecordStore) FindByField(ctx context.Context, field RecordField, value string) ([]*model.Cdr, error) {
	if _, err := fieldValue(&model.Cdr{}, field); err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}

	all, err := s.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]*model.Cdr, 0)
	for _, c := range all {
		if v, _ := fieldValue(c, field); v == value {
			matched = append(matched, c)
		}
	}
	return matched, nil
}

func (s *MemoryRecordStore) FindAll(ctx context.Context) ([]*model.Cdr, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]*model.Cdr, 0, len(s.records))
	for _, c := range s.records {
		out = append(out, c.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryRecordStore) DeleteByID(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.records, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryRecordStore) ExistsByID(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[id]
	return ok, nil
}
