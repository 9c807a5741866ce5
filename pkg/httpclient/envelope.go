package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// EnvelopeStatus はエンベロープのstatusフィールドが取りうる既知の状態。
type EnvelopeStatus int

const (
	// StatusUnknown は既知の値に一致しない状態。失敗として扱う。
	StatusUnknown EnvelopeStatus = iota
	// StatusSuccess は処理が成功したことを表す。
	StatusSuccess
	// StatusFailed はアプリケーションレベルの失敗を表す。
	StatusFailed
	// StatusError はサーバー側のエラーを表す。
	StatusError
)

// ParseEnvelopeStatus はstatus文字列を大文字小文字を区別せずに解釈する。
func ParseEnvelopeStatus(s string) EnvelopeStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "success":
		return StatusSuccess
	case "failed", "failure", "fail":
		return StatusFailed
	case "error":
		return StatusError
	default:
		return StatusUnknown
	}
}

// String はステータスの正規化された文字列表現を返す。
func (s EnvelopeStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// StatusCode はstatus_codeフィールド。数値と数値文字列の両方を受け付ける。
type StatusCode int

// UnmarshalJSON はstatus_codeを数値または数値文字列から読み取る。
func (c *StatusCode) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*c = 0
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*c = StatusCode(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("status_codeの形式が不正: %s", string(b))
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("status_codeが数値ではない: %q", s)
	}
	*c = StatusCode(n)
	return nil
}

// Envelope はバックエンドがすべてのレスポンスで返すJSONラッパー。
type Envelope struct {
	// Status は処理結果を表す文字列。
	Status string `json:"status"`
	// StatusCode はアプリケーションレベルのステータスコード。
	StatusCode StatusCode `json:"status_code"`
	// Message はサーバーが提供するメッセージ。
	Message string `json:"message,omitempty"`
	// Data はレスポンス固有のデータ。
	Data json.RawMessage `json:"data,omitempty"`
}

// State はStatusを既知の状態に分類する。
func (e *Envelope) State() EnvelopeStatus {
	return ParseEnvelopeStatus(e.Status)
}

// Succeeded はエンベロープが成功を示す場合にtrueを返す。
func (e *Envelope) Succeeded() bool {
	return e.State() == StatusSuccess
}

// DecodeData はdataフィールドをoutにデシリアライズする。
// dataが存在しない場合は何もしない。
func (e *Envelope) DecodeData(out any) error {
	if len(e.Data) == 0 || bytes.Equal(e.Data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("dataフィールドのデシリアライズに失敗: %w", err)
	}
	return nil
}

// decodeEnvelope はレスポンスボディをエンベロープとして解釈する。
// JSONオブジェクトでない場合やstatusフィールドを持たない場合はnilを返す。
func decodeEnvelope(body []byte) *Envelope {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var head struct {
		Status *string `json:"status"`
	}
	if err := json.Unmarshal(trimmed, &head); err != nil || head.Status == nil {
		return nil
	}
	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		// status_codeだけが壊れている場合でもstatusとmessageは使う
		var loose struct {
			Status  string          `json:"status"`
			Message string          `json:"message"`
			Data    json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &loose); err != nil {
			return nil
		}
		return &Envelope{Status: loose.Status, Message: loose.Message, Data: loose.Data}
	}
	return &env
}
