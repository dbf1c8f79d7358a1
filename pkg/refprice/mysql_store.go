// 文件: pkg/refprice/mysql_store.go
// 参考价 MySQL 实现

package refprice

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ Store = (*MySQLStore)(nil)

// MySQLStore GORM 实现
type MySQLStore struct {
	db *gorm.DB
}

// NewMySQLStore 创建
func NewMySQLStore(db *gorm.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

// AutoMigrate 建表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Record{})
}

// UpsertClause 参考价整行覆盖，单元写入事务里复用
func UpsertClause() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol_code"}, {Name: "trade_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"contract_id", "price_open", "price_close", "prev_close"}),
	}
}

func (s *MySQLStore) Get(ctx context.Context, symbol string, date time.Time) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).
		Where("symbol_code = ? AND trade_date = ?", symbol, date).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *MySQLStore) Range(ctx context.Context, symbol string, from, to time.Time) ([]Record, error) {
	var recs []Record
	err := s.db.WithContext(ctx).
		Where("symbol_code = ? AND trade_date BETWEEN ? AND ?", symbol, from, to).
		Order("trade_date").
		Find(&recs).Error
	return recs, err
}

func (s *MySQLStore) Bounds(ctx context.Context, symbol string) (time.Time, time.Time, error) {
	var row struct {
		MinDate *time.Time
		MaxDate *time.Time
	}
	err := s.db.WithContext(ctx).
		Model(&Record{}).
		Select("MIN(trade_date) AS min_date, MAX(trade_date) AS max_date").
		Where("symbol_code = ?", symbol).
		Scan(&row).Error
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if row.MinDate == nil || row.MaxDate == nil {
		return time.Time{}, time.Time{}, ErrNotFound
	}
	return *row.MinDate, *row.MaxDate, nil
}

func (s *MySQLStore) Candidates(ctx context.Context, minRows int64) ([]Candidate, error) {
	var out []Candidate
	err := s.db.WithContext(ctx).
		Model(&Record{}).
		Select("symbol_code, COUNT(*) AS `rows`, MIN(trade_date) AS min_date, MAX(trade_date) AS max_date").
		Group("symbol_code").
		Having("COUNT(*) >= ?", minRows).
		Order("symbol_code").
		Scan(&out).Error
	return out, err
}

func (s *MySQLStore) Upsert(ctx context.Context, records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Clauses(UpsertClause()).
		Create(&records).Error
}

func (s *MySQLStore) Delete(ctx context.Context, symbol string, date time.Time) error {
	return s.db.WithContext(ctx).
		Where("symbol_code = ? AND trade_date = ?", symbol, date).
		Delete(&Record{}).Error
}
