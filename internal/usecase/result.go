package usecase

// ドメイン失敗の種類。handlerがHTTPステータスに変換する
type ErrorKind string

const (
	KindNone ErrorKind = ""
	//400 入力不正
	KindValidation ErrorKind = "VALIDATION_ERROR"
	//存在しない or 他人の明細（区別しない）
	KindNotFoundOrNotOwned ErrorKind = "NOT_FOUND_OR_NOT_OWNED"
	//400 外部IDのclaim不足・不正
	KindAuthClaims ErrorKind = "AUTH_CLAIMS_ERROR"
	//400 プロバイダ側で失敗
	KindAuthProvider ErrorKind = "AUTH_PROVIDER_FAILURE"
)

// 更新系の戻り値。
// Success=false はドメイン失敗、想定外の失敗は error で返す（500）
type Result[T any] struct {
	Data    T
	Success bool
	Message string
	Kind    ErrorKind
	//バリデーションで引っかかった項目
	Fields []string
}

func succeed[T any](data T, message string) Result[T] {
	return Result[T]{Data: data, Success: true, Message: message}
}

func failWith[T any](kind ErrorKind, message string) Result[T] {
	return Result[T]{Success: false, Kind: kind, Message: message}
}

// 入力チェックで見つかった1項目分の違反
type FieldViolation struct {
	Field   string
	Message string
}

func invalidInput[T any](violations []FieldViolation) Result[T] {
	r := failWith[T](KindValidation, "")
	for i, v := range violations {
		if i > 0 {
			r.Message += " "
		}
		r.Message += v.Message
		r.Fields = append(r.Fields, v.Field)
	}
	return r
}
