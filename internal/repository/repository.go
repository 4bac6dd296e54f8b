// Package repository 提供数据访问层
package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kebiao/kebiao/internal/database"
)

// queryer 同时支持 *sqlx.DB 和 *sqlx.Tx
type queryer interface {
	sqlx.ExtContext
	sqlx.QueryerContext
}

// timed 执行并记录慢查询
func timed(query string, fn func() error) error {
	start := time.Now()
	defer database.Observe(query, start)
	return fn()
}

// exec 在事务或连接上执行
func exec(ctx context.Context, q queryer, query string, args ...interface{}) error {
	return timed(query, func() error {
		_, err := q.ExecContext(ctx, query, args...)
		return err
	})
}
