// 文件: pkg/refprice/memory_store.go
// 内存实现，测试和 dry-run 用

package refprice

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

type memKey struct {
	symbol string
	date   time.Time
}

// MemoryStore 并发安全
type MemoryStore struct {
	mu   sync.RWMutex
	data map[memKey]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[memKey]Record)}
}

func (m *MemoryStore) Get(ctx context.Context, symbol string, date time.Time) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.data[memKey{symbol, date}]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *MemoryStore) Range(ctx context.Context, symbol string, from, to time.Time) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for k, r := range m.data {
		if k.symbol == symbol && !k.date.Before(from) && !k.date.After(to) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TradeDate.Before(out[j].TradeDate) })
	return out, nil
}

func (m *MemoryStore) Bounds(ctx context.Context, symbol string) (time.Time, time.Time, error) {
	recs, _ := m.Range(ctx, symbol, MinDate, MaxDate)
	if len(recs) == 0 {
		return time.Time{}, time.Time{}, ErrNotFound
	}
	return recs[0].TradeDate, recs[len(recs)-1].TradeDate, nil
}

func (m *MemoryStore) Candidates(ctx context.Context, minRows int64) ([]Candidate, error) {
	m.mu.RLock()
	bySymbol := make(map[string]*Candidate)
	for k := range m.data {
		c, ok := bySymbol[k.symbol]
		if !ok {
			c = &Candidate{SymbolCode: k.symbol, MinDate: k.date, MaxDate: k.date}
			bySymbol[k.symbol] = c
		}
		c.Rows++
		if k.date.Before(c.MinDate) {
			c.MinDate = k.date
		}
		if k.date.After(c.MaxDate) {
			c.MaxDate = k.date
		}
	}
	m.mu.RUnlock()

	var out []Candidate
	for _, c := range bySymbol {
		if c.Rows >= minRows {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SymbolCode < out[j].SymbolCode })
	return out, nil
}

func (m *MemoryStore) Upsert(ctx context.Context, records ...Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.data[memKey{r.SymbolCode, r.TradeDate}] = r
	}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, symbol string, date time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, memKey{symbol, date})
	return nil
}
