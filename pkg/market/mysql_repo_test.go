// 文件: pkg/market/mysql_repo_test.go
// MySQL 存储集成测试，连不上数据库时跳过

package market

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// =============================================================================
// 测试配置
// =============================================================================

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

	cleanupTestData(db)
	t.Cleanup(func() {
		cleanupTestData(db)
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func cleanupTestData(db *gorm.DB) {
	db.Exec("DELETE FROM bars_5min WHERE contract_id IN (SELECT contract_id FROM contracts WHERE symbol_code LIKE 'TEST%')")
	db.Exec("DELETE FROM contracts WHERE symbol_code LIKE 'TEST%'")
	db.Exec("DELETE FROM rollover_rules WHERE symbol_code LIKE 'TEST%'")
	db.Exec("DELETE FROM symbols WHERE symbol_code LIKE 'TEST%'")
}

func testContract(month string, year int) *Contract {
	return &Contract{SymbolCode: "TESTES", MonthCode: month, Year: year, SourceFile: "TESTES" + month + ".txt"}
}

// =============================================================================
// ContractRepository
// =============================================================================

func TestMySQLRepository_EnsureIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMySQLRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.EnsureSymbol(ctx, &Symbol{Code: "TESTES", Description: "E-mini S&P 500"}))
	require.NoError(t, repo.EnsureSymbol(ctx, &Symbol{Code: "TESTES", Description: "other"}))
	sym, err := repo.GetSymbol(ctx, "TESTES")
	require.NoError(t, err)
	assert.Equal(t, "E-mini S&P 500", sym.Description)

	first := testContract("H", 2024)
	require.NoError(t, repo.EnsureContract(ctx, first))
	require.NotZero(t, first.ID)

	// 重复注册: 冲突更新后回查，拿到同一个 ID
	again := testContract("H", 2024)
	require.NoError(t, repo.EnsureContract(ctx, again))
	assert.Equal(t, first.ID, again.ID)

	other := testContract("M", 2024)
	require.NoError(t, repo.EnsureContract(ctx, other))
	assert.NotEqual(t, first.ID, other.ID)

	contracts, err := repo.ContractsBySymbol(ctx, "TESTES")
	require.NoError(t, err)
	require.Len(t, contracts, 2)
	assert.Equal(t, first.ID, contracts[0].ID)

	_, err = repo.GetSymbol(ctx, "TESTZZ")
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestMySQLRepository_RefreshTradeDates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMySQLRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.EnsureSymbol(ctx, &Symbol{Code: "TESTES"}))
	withBars := testContract("H", 2024)
	require.NoError(t, repo.EnsureContract(ctx, withBars))
	// 以前有过K线，后来被清掉的合约
	first, last := d("2024-01-02"), d("2024-01-03")
	stale := testContract("M", 2024)
	stale.FirstTradeDate, stale.LastTradeDate = &first, &last
	require.NoError(t, repo.EnsureContract(ctx, stale))

	vol := int64(10)
	bars := []Bar{
		{ContractID: withBars.ID, Timestamp: ts("2024-03-14 09:30"), Volume: &vol},
		{ContractID: withBars.ID, Timestamp: ts("2024-03-15 15:55"), Volume: &vol},
	}
	require.NoError(t, db.Create(&bars).Error)

	_, err := repo.RefreshTradeDates(ctx, "TESTES")
	require.NoError(t, err)

	contracts, err := repo.ContractsBySymbol(ctx, "TESTES")
	require.NoError(t, err)
	require.Len(t, contracts, 2)
	require.NotNil(t, contracts[0].FirstTradeDate)
	require.NotNil(t, contracts[0].LastTradeDate)
	assert.Equal(t, d("2024-03-14"), DateOf(*contracts[0].FirstTradeDate))
	assert.Equal(t, d("2024-03-15"), DateOf(*contracts[0].LastTradeDate))
	assert.Nil(t, contracts[1].FirstTradeDate)
	assert.Nil(t, contracts[1].LastTradeDate)

	// 后到的K线: 再刷新一次才会前移末交易日
	late := Bar{ContractID: withBars.ID, Timestamp: ts("2024-03-18 09:30"), Volume: &vol}
	require.NoError(t, db.Create(&late).Error)
	_, err = repo.RefreshTradeDates(ctx, "TESTES")
	require.NoError(t, err)
	contracts, err = repo.ContractsBySymbol(ctx, "TESTES")
	require.NoError(t, err)
	assert.Equal(t, d("2024-03-18"), DateOf(*contracts[0].LastTradeDate))

	got, err := repo.Bars(ctx, withBars.ID, d("2024-03-14"), d("2024-03-16"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Timestamp.Before(got[1].Timestamp))
}

// =============================================================================
// RuleRepository
// =============================================================================

func TestMySQLRepository_UpsertRules(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMySQLRepository(db)
	ctx := context.Background()

	_, err := repo.UpsertRules(ctx, []RolloverRule{{SymbolCode: "TESTES", Description: "E-mini", Type: RuleOnExpiry}})
	require.NoError(t, err)
	_, err = repo.UpsertRules(ctx, []RolloverRule{{SymbolCode: "TESTES", Description: "E-mini S&P 500", Type: RuleBeforeExpiry, Days: 5}})
	require.NoError(t, err)

	rules, err := repo.Rules(ctx)
	require.NoError(t, err)
	r, ok := rules["TESTES"]
	require.True(t, ok)
	assert.Equal(t, "E-mini S&P 500", r.Description)
	assert.Equal(t, RuleBeforeExpiry, r.Type)
	assert.Equal(t, 5, r.Days)
}
