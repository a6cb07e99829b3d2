package model

// Outcome はベストエフォートな書き込み処理の結果分類。
// 呼び出し元はUIをブロックせず、テストは失敗経路をこの値で検証する。
type Outcome string

const (
	// OutcomeSuccess は書き込みが完了したことを示す。
	OutcomeSuccess Outcome = "success"
	// OutcomeRecoverable は一時的な障害で書き込めなかったことを示す。
	// ユーザーが再操作すれば成功し得る。
	OutcomeRecoverable Outcome = "recoverable_error"
	// OutcomeFatal は入力や権限の問題で再操作しても成功しないことを示す。
	OutcomeFatal Outcome = "fatal_error"
)

// SyncResult はプロフィール同期の結果。
type SyncResult struct {
	Outcome Outcome
	Profile *Profile // 成功時のみ設定される
	Err     error    // 失敗時の原因。UIには表示しない
}

// OK は同期が成功したかを返す。
func (r SyncResult) OK() bool {
	return r.Outcome == OutcomeSuccess
}

// SendResult は通知送信の結果。
type SendResult struct {
	Outcome      Outcome
	Notification *Notification
	Err          error
}

// OK は送信が成功したかを返す。
func (r SendResult) OK() bool {
	return r.Outcome == OutcomeSuccess
}
