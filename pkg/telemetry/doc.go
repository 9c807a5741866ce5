// Package telemetry はAPIクライアントの構造化ログの送信先を提供する。
//
// ローカルのlogrus出力とSentryへの送信を組み合わせて使う。どの実装も
// 呼び出し元にパニックを伝播させないよう、Safeで包んで使うことを想定している。
package telemetry
