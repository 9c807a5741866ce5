package stubapi

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nao1215/investapp/pkg/migration"
)

//go:embed migrations/*.sql
var migrations embed.FS

// initSchema はSQLiteデータベースにテーブルと初期プランを適用する。
func initSchema(ctx context.Context, db *sql.DB, log logrus.FieldLogger) error {
	if err := migration.Run(ctx, db, migrations, "migrations", log); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
