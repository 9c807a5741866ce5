// Package middleware は開発用バックエンドのGinルーターで使うミドルウェアを提供する。
//
// JWT認証、パニックリカバリ、CORSを含む。応答はすべて
// {status, status_code, message, data} のエンベロープ形式で返す。
package middleware
