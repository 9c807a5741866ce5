// Package httpclient はモバイル投資アプリのバックエンドAPIを呼び出すクライアントを提供する。
//
// すべてのバックエンド呼び出しはこのクライアントを経由する。リクエスト送信前に
// 永続化されたセッショントークンを読み出してBearerヘッダーを付与し、レスポンス受信後は
// エンベロープ（status / status_code / message / data）を検査して、セッション切れの
// 検出・ログイン画面への遷移・汎用エラーアラートの表示を一貫して行う。
//
// トークンストア、アラート表示、画面遷移、テレメトリはすべて外部の協調者として
// コンストラクタで注入する。
package httpclient
