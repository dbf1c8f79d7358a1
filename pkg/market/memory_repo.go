// 文件: pkg/market/memory_repo.go
// 内存版存储，实现全部三个接口
// 用于单元测试和离线回放，数据量不大时也可以直接用

package market

import (
	"context"
	"sort"
	"sync"
	"time"
)

var (
	_ ContractRepository = (*MemoryRepository)(nil)
	_ BarRepository      = (*MemoryRepository)(nil)
	_ RuleRepository     = (*MemoryRepository)(nil)
)

// MemoryRepository 内存存储
type MemoryRepository struct {
	mu        sync.RWMutex
	symbols   map[string]Symbol
	contracts map[int64]Contract
	bars      map[int64][]Bar // contractID -> 按时间升序
	rules     map[string]RolloverRule
	nextID    int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		symbols:   make(map[string]Symbol),
		contracts: make(map[int64]Contract),
		bars:      make(map[int64][]Bar),
		rules:     make(map[string]RolloverRule),
	}
}

// =============================================================================
// 测试数据装载
// =============================================================================

// AddContract 直接放入合约 (ID 为 0 时自动分配)，品种不存在时一并创建
func (m *MemoryRepository) AddContract(c Contract) Contract {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.symbols[c.SymbolCode]; !ok {
		m.symbols[c.SymbolCode] = Symbol{Code: c.SymbolCode, Description: c.SymbolCode}
	}
	if c.ID == 0 {
		m.nextID++
		c.ID = m.nextID
	} else if c.ID > m.nextID {
		m.nextID = c.ID
	}
	m.contracts[c.ID] = c
	return c
}

// AddBars 追加K线，同一时间戳后写覆盖 (与主键语义一致)
func (m *MemoryRepository) AddBars(bars ...Bar) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range bars {
		list := m.bars[b.ContractID]
		i := sort.Search(len(list), func(i int) bool { return !list[i].Timestamp.Before(b.Timestamp) })
		if i < len(list) && list[i].Timestamp.Equal(b.Timestamp) {
			list[i] = b
		} else {
			list = append(list, Bar{})
			copy(list[i+1:], list[i:])
			list[i] = b
		}
		m.bars[b.ContractID] = list
	}
}

// SetRule 设置展期规则
func (m *MemoryRepository) SetRule(r RolloverRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[r.SymbolCode] = r
}

// =============================================================================
// ContractRepository
// =============================================================================

func (m *MemoryRepository) Symbols(ctx context.Context) ([]Symbol, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Symbol, 0, len(m.symbols))
	for _, s := range m.symbols {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *MemoryRepository) GetSymbol(ctx context.Context, code string) (*Symbol, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.symbols[code]
	if !ok {
		return nil, ErrUnknownSymbol
	}
	return &s, nil
}

func (m *MemoryRepository) ContractsBySymbol(ctx context.Context, code string) ([]Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Contract
	for _, c := range m.contracts {
		if c.SymbolCode == code {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepository) EnsureSymbol(ctx context.Context, sym *Symbol) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.symbols[sym.Code]; ok {
		return nil
	}
	if sym.Description == "" {
		sym.Description = sym.Code
	}
	m.symbols[sym.Code] = *sym
	return nil
}

func (m *MemoryRepository) EnsureContract(ctx context.Context, c *Contract) error {
	m.mu.Lock()
	for id, existing := range m.contracts {
		if existing.SourceFile == c.SourceFile {
			existing.SymbolCode, existing.MonthCode, existing.Year = c.SymbolCode, c.MonthCode, c.Year
			m.contracts[id] = existing
			c.ID = id
			m.mu.Unlock()
			return nil
		}
	}
	m.mu.Unlock()

	saved := m.AddContract(*c)
	c.ID = saved.ID
	return nil
}

func (m *MemoryRepository) RefreshTradeDates(ctx context.Context, code string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, c := range m.contracts {
		if c.SymbolCode != code {
			continue
		}
		c.FirstTradeDate, c.LastTradeDate = nil, nil
		if bars := m.bars[id]; len(bars) > 0 {
			first := DateOf(bars[0].Timestamp)
			last := DateOf(bars[len(bars)-1].Timestamp)
			c.FirstTradeDate, c.LastTradeDate = &first, &last
		}
		m.contracts[id] = c
		n++
	}
	return n, nil
}

// =============================================================================
// BarRepository
// =============================================================================

func (m *MemoryRepository) Bars(ctx context.Context, contractID int64, from, to time.Time) ([]Bar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Bar
	for _, b := range m.bars[contractID] {
		if !b.Timestamp.Before(from) && b.Timestamp.Before(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

// =============================================================================
// RuleRepository
// =============================================================================

func (m *MemoryRepository) Rules(ctx context.Context) (map[string]RolloverRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]RolloverRule, len(m.rules))
	for k, v := range m.rules {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryRepository) UpsertRules(ctx context.Context, rules []RolloverRule) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range rules {
		m.rules[r.SymbolCode] = r
	}
	return int64(len(rules)), nil
}
