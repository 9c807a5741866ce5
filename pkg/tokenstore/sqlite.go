package tokenstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/nao1215/investapp/pkg/migration"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLite はSQLiteファイルにトークンを永続化するストア。
type SQLite struct {
	db *sql.DB
}

// OpenSQLite はpathのSQLiteデータベースを開き、スキーマを適用する。
// pathに ":memory:" を指定するとインメモリで動作する。
func OpenSQLite(ctx context.Context, path string, log logrus.FieldLogger) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// 同一ファイルへの書き込みを直列化する
	db.SetMaxOpenConns(1)

	if err := migration.Run(ctx, db, migrations, "migrations", log); err != nil {
		db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Token は保存されているトークンを返す。なければ空文字列。
func (s *SQLite) Token(ctx context.Context) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx, "SELECT token FROM session_token WHERE id = 1").Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("トークンの取得に失敗: %w", err)
	}
	return token, nil
}

// SetToken はトークンを保存する。既存のトークンは置き換える。
func (s *SQLite) SetToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_token (id, token, updated_at) VALUES (1, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at
	`, token)
	if err != nil {
		return fmt.Errorf("トークンの保存に失敗: %w", err)
	}
	return nil
}

// RemoveToken はトークンを削除する。保存されていなくてもエラーにしない。
func (s *SQLite) RemoveToken(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM session_token WHERE id = 1"); err != nil {
		return fmt.Errorf("トークンの削除に失敗: %w", err)
	}
	return nil
}

// Close はデータベース接続を閉じる。
func (s *SQLite) Close() error {
	return s.db.Close()
}
