// Package stubapi は投資アプリのバックエンドを模した開発用HTTPサーバーを提供する。
//
// すべての応答は {status, status_code, message, data} のエンベロープ形式で返す。
// ユーザー登録・ログイン・プラン契約・出金をSQLite上で扱い、
// 認証にはHS256で署名したJWTを使う。クライアントの結合テストとローカル実行に使用する。
package stubapi
