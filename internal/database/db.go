package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// PoolOptions はコネクションプールの設定を表す。ゼロ値の項目はdatabase/sqlの既定値を使う。
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RetryOptions はConnectの接続確認の再試行設定。
type RetryOptions struct {
	Attempts int
	Interval time.Duration
}

// DefaultRetry はコンテナ起動直後にDBがまだ受け付けていない場合を想定した既定値。
var DefaultRetry = RetryOptions{Attempts: 5, Interval: 2 * time.Second}

// Open はPostgreSQLのコネクションプールを作成する。
// sql.Openは接続を試行しないため、疎通確認が必要な場合はConnectを使うこと。
func Open(databaseURL string, opts PoolOptions) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	return db, nil
}

// Connect はプールを作成し、疎通するまでretry.Attempts回までPingを再試行する。
// 最後まで失敗した場合やctxが終了した場合はプールを閉じてエラーを返す。
func Connect(ctx context.Context, databaseURL string, opts PoolOptions, retry RetryOptions) (*sql.DB, error) {
	db, err := Open(databaseURL, opts)
	if err != nil {
		return nil, err
	}

	attempts := max(retry.Attempts, 1)
	var pingErr error
	for i := 1; i <= attempts; i++ {
		if pingErr = db.PingContext(ctx); pingErr == nil {
			return db, nil
		}
		if i == attempts {
			break
		}
		slog.Warn("database not ready, retrying",
			slog.Int("attempt", i),
			slog.String("error", pingErr.Error()),
		)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", ctx.Err())
		case <-time.After(retry.Interval):
		}
	}

	db.Close()
	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, pingErr)
}
