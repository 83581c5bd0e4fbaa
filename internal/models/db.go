package models

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite" // 纯 Go SQLite 驱动（基于 modernc.org/sqlite）
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// DBPoolConfig 数据库连接池配置
type DBPoolConfig struct {
	MaxOpenConns           int
	MaxIdleConns           int
	ConnMaxLifetimeSeconds int
	ConnMaxIdleTimeSeconds int
}

// InitDB 初始化数据库连接
func InitDB(driver, dsn string, pool DBPoolConfig) error {
	var err error
	normalized := strings.ToLower(strings.TrimSpace(driver))
	var dialector gorm.Dialector
	switch normalized {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", driver)
	}
	DB, err = gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return err
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	applyDBPool(sqlDB, pool)
	return nil
}

func applyDBPool(sqlDB *sql.DB, pool DBPoolConfig) {
	if sqlDB == nil {
		return
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns >= 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetimeSeconds > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetimeSeconds) * time.Second)
	}
	if pool.ConnMaxIdleTimeSeconds > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(pool.ConnMaxIdleTimeSeconds) * time.Second)
	}
}

// AutoMigrate 自动迁移所有数据库表并补建守卫索引
func AutoMigrate() error {
	if err := DB.AutoMigrate(
		&Identity{},
		&Listing{},
		&ReferralRecord{},
		&ReferralEvent{},
		&CommissionEntry{},
		&PayoutBatch{},
		&APIKey{},
		&SignatureAuditLog{},
	); err != nil {
		return err
	}
	return EnsureGuardIndexes(DB)
}

// EnsureGuardIndexes 创建部分唯一索引：
// 同一被推荐人最多一条未终态推荐记录；同一 (推荐人, 被推荐邮箱) 最多一条未终态记录。
// GORM 的 tag 不支持部分索引，这里用原生 SQL（sqlite/postgres 语法一致）。
func EnsureGuardIndexes(db *gorm.DB) error {
	statements := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_referral_records_open_referred
			ON referral_records (referred_id)
			WHERE state IN ('referred', 'signed_up') AND referred_id IS NOT NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_referral_records_open_email
			ON referral_records (referrer_id, referred_email)
			WHERE state IN ('referred', 'signed_up') AND referred_email <> ''`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
