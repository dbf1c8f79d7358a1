// 文件: pkg/refprice/mysql_store_test.go
// 参考价 MySQL 集成测试，连不上数据库时跳过

package refprice

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"overnight.com/pkg/market"
)

const defaultTestDSN = "root:123456@tcp(127.0.0.1:3307)/overnight_test?charset=utf8mb4&parseTime=True&loc=UTC"

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("OVN_TEST_DSN")
	if dsn == "" {
		dsn = defaultTestDSN
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("skipping test; mysql not available: %v", err)
	}
	require.NoError(t, AutoMigrate(db))

	cleanup := func() { db.Exec("DELETE FROM daily_reference_prices WHERE symbol_code LIKE 'TEST%'") }
	cleanup()
	t.Cleanup(func() {
		cleanup()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestMySQLStore_UpsertGetRange(t *testing.T) {
	store := NewMySQLStore(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx,
		Record{SymbolCode: "TESTES", TradeDate: date("2024-03-14"), ContractID: 1, Open: f(100), Close: f(101)},
		Record{SymbolCode: "TESTES", TradeDate: date("2024-03-15"), ContractID: 1, Open: f(102), Close: f(103), PrevClose: f(101)},
	))
	// 整行覆盖: 收盘变了，换了合约
	require.NoError(t, store.Upsert(ctx,
		Record{SymbolCode: "TESTES", TradeDate: date("2024-03-15"), ContractID: 2, Open: f(202), Close: f(203)},
	))

	rec, err := store.Get(ctx, "TESTES", date("2024-03-15"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.ContractID)
	require.NotNil(t, rec.Close)
	assert.Equal(t, 203.0, *rec.Close)
	assert.Nil(t, rec.PrevClose)

	recs, err := store.Range(ctx, "TESTES", MinDate, MaxDate)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, date("2024-03-14"), market.DateOf(recs[0].TradeDate))

	require.NoError(t, store.Delete(ctx, "TESTES", date("2024-03-14")))
	_, err = store.Get(ctx, "TESTES", date("2024-03-14"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMySQLStore_BoundsAndCandidates(t *testing.T) {
	store := NewMySQLStore(setupTestDB(t))
	ctx := context.Background()

	_, _, err := store.Bounds(ctx, "TESTES")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Upsert(ctx,
		Record{SymbolCode: "TESTES", TradeDate: date("2024-03-14"), ContractID: 1, Close: f(101)},
		Record{SymbolCode: "TESTES", TradeDate: date("2024-03-15"), ContractID: 1, Close: f(103)},
		Record{SymbolCode: "TESTES", TradeDate: date("2024-03-18"), ContractID: 2, Close: f(104)},
		Record{SymbolCode: "TESTNQ", TradeDate: date("2024-03-18"), ContractID: 3, Close: f(18000)},
	))

	lo, hi, err := store.Bounds(ctx, "TESTES")
	require.NoError(t, err)
	assert.Equal(t, date("2024-03-14"), market.DateOf(lo))
	assert.Equal(t, date("2024-03-18"), market.DateOf(hi))

	// `rows` 是 MySQL 8 的保留字，别名必须能被正确扫描
	cands, err := store.Candidates(ctx, 3)
	require.NoError(t, err)
	var mine []Candidate
	for _, c := range cands {
		if c.SymbolCode == "TESTES" || c.SymbolCode == "TESTNQ" {
			mine = append(mine, c)
		}
	}
	require.Len(t, mine, 1)
	assert.Equal(t, "TESTES", mine[0].SymbolCode)
	assert.Equal(t, int64(3), mine[0].Rows)
	assert.Equal(t, date("2024-03-14"), market.DateOf(mine[0].MinDate))
	assert.Equal(t, date("2024-03-18"), market.DateOf(mine[0].MaxDate))
}
