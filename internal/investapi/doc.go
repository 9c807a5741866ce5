// Package investapi は投資アプリのバックエンドが提供する操作を型付きで呼び出す。
//
// 送信・ログ・アラート・セッション切れの処理はすべてhttpclient.Clientに任せ、
// このパッケージは入力の検証、パスの選択、dataの型変換、セッション状態の更新だけを行う。
// 認証が必要な操作は、トークンが保存されていなければ送信せずにErrNotAuthenticatedを返す。
package investapi
