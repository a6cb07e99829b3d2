package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// MessageとActionはユーザーの言語（ガリシア語）で記述する。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, match, lineup, notification, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeEmailTaken           = "EMAIL_TAKEN"
	ErrCodeAuthUnavailable      = "AUTH_UNAVAILABLE"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeMatchNotFound        = "MATCH_NOT_FOUND"
	ErrCodeInvalidScope         = "INVALID_SCOPE"
	ErrCodeLineupLocked         = "LINEUP_LOCKED"
	ErrCodeInvalidLineup        = "INVALID_LINEUP"
	ErrCodeNotificationNotFound = "NOTIFICATION_NOT_FOUND"
	ErrCodeInvalidURL           = "INVALID_URL"
	ErrCodeSSRFBlocked          = "SSRF_BLOCKED"
	ErrCodeFetchFailed          = "FETCH_FAILED"
	ErrCodeParseFailed          = "PARSE_FAILED"
	ErrCodeWriteFailed          = "WRITE_FAILED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeUnauthenticated      = "UNAUTHENTICATED"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// NewValidationError は入力検証エラーを生成する。
// fieldはエラーの対象となったフォーム項目名。
func NewValidationError(field, message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   fmt.Sprintf("Revisa o campo %q e téntao de novo.", field),
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "O correo ou o contrasinal non son correctos.",
		Category: "auth",
		Action:   "Comproba os datos e volve iniciar sesión.",
	}
}

// NewEmailTakenError は登録済みメールアドレスエラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "Xa existe unha conta con ese correo.",
		Category: "auth",
		Action:   "Inicia sesión ou usa outro correo.",
	}
}

// NewAuthUnavailableError は認証サービス到達不能エラーを生成する。
func NewAuthUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthUnavailable,
		Message:  "O servizo de acceso non está dispoñible.",
		Category: "auth",
		Action:   "Agarda un momento e téntao de novo.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "Non se atopou o usuario.",
		Category: "auth",
		Action:   "Volve iniciar sesión.",
	}
}

// NewMatchNotFoundError は試合未検出エラーを生成する。
func NewMatchNotFoundError(matchID string) *APIError {
	return &APIError{
		Code:     ErrCodeMatchNotFound,
		Message:  fmt.Sprintf("Non se atopou o partido: %s", matchID),
		Category: "match",
		Action:   "Volve ao calendario e escolle outro partido.",
	}
}

// NewInvalidScopeError は無効な試合一覧スコープエラーを生成する。
func NewInvalidScopeError(scope string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidScope,
		Message:  fmt.Sprintf("Filtro non válido: %s", scope),
		Category: "validation",
		Action:   "Usa upcoming ou past.",
	}
}

// NewLineupLockedError はキックオフ後のラインナップ変更エラーを生成する。
func NewLineupLockedError() *APIError {
	return &APIError{
		Code:     ErrCodeLineupLocked,
		Message:  "O partido xa comezou e a aliñación está pechada.",
		Category: "lineup",
		Action:   "Escolle a aliñación do próximo partido.",
	}
}

// NewInvalidLineupError は無効なラインナップエラーを生成する。
func NewInvalidLineupError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLineup,
		Message:  fmt.Sprintf("Aliñación non válida: %s", reason),
		Category: "validation",
		Action:   "Escolle once xogadores distintos.",
	}
}

// NewNotificationNotFoundError は通知未検出エラーを生成する。
func NewNotificationNotFoundError(notificationID string) *APIError {
	return &APIError{
		Code:     ErrCodeNotificationNotFound,
		Message:  fmt.Sprintf("Non se atopou a notificación: %s", notificationID),
		Category: "notification",
		Action:   "Actualiza a lista de notificacións.",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("Ligazón non válida: %s", reason),
		Category: "validation",
		Action:   "Introduce unha ligazón que comece por http:// ou https://.",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "A ligazón apunta a un enderezo non permitido.",
		Category: "validation",
		Action:   "Usa unha ligazón a un sitio web público.",
	}
}

// NewFetchFailedError は外部取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("Non se puido obter o recurso: %s", reason),
		Category: "system",
		Action:   "Téntao de novo máis tarde.",
	}
}

// NewParseFailedError はフィードのパース失敗エラーを生成する。
func NewParseFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeParseFailed,
		Message:  "Non se puido ler a fonte de novas.",
		Category: "system",
		Action:   "Comproba que a fonte sexa RSS ou Atom válida.",
	}
}

// NewWriteFailedError は書き込み失敗エラーを生成する。
// 自動リトライは行わず、ユーザーの再操作に任せる。
func NewWriteFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeWriteFailed,
		Message:  "Non se puideron gardar os cambios.",
		Category: "system",
		Action:   "Téntao de novo nuns segundos.",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "Non tes permiso para esta acción.",
		Category: "auth",
		Action:   "Contacta coa administración do club.",
	}
}

// NewUnauthenticatedError は未ログインエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "Tes que iniciar sesión.",
		Category: "auth",
		Action:   "Inicia sesión para continuar.",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Demasiadas peticións.",
		Category: "system",
		Action:   "Agarda un momento antes de tentalo de novo.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ残す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Produciuse un erro interno.",
		Category: "system",
		Action:   "Téntao de novo máis tarde.",
	}
}
