package database

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// Migrate creates the portfolio/risk schemas if they do not exist
// 모든 문장이 IF NOT EXISTS라 반복 실행해도 안전
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Schema returns the embedded DDL (CLI 출력용)
func Schema() string {
	return schemaSQL
}
