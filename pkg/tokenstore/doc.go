// Package tokenstore はセッショントークンの保存先を提供する。
//
// どの実装も保持するトークンは高々1件で、書き込みは既存のトークンを置き換える。
package tokenstore
