package usecase

import (
	"context"
	"crypto/subtle"
	"errors"

	"shoppingcart/internal/domain/model"
	"shoppingcart/internal/repository"

	"go.uber.org/zap"
)

// ログインの状態
type LoginState string

const (
	StateAnonymous               LoginState = "ANONYMOUS"
	StateChallenged              LoginState = "CHALLENGED"
	StateExternalCallbackPending LoginState = "EXTERNAL_CALLBACK_PENDING"
	StateAuthenticated           LoginState = "AUTHENTICATED"
	StateLoggedOut               LoginState = "LOGGED_OUT"
)

// プロバイダが認可を拒否した（codeが無効など）。通信エラーとは区別する
var ErrProviderRejected = errors.New("identity provider rejected the authorization")

const msgUnknownAuthFailure = "Authentication failed for an unknown reason."

// 外部IDプロバイダ（Google）の約束
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) ([]Claim, error)
}

// ランダムなIDを作る
type IDGenerator interface {
	NewID() string
}

// LoginFlow は challenge → callback → session の流れを受け持つ
type LoginFlow struct {
	provider IdentityProvider
	auth     *AuthUsecase
	users    repository.UserRepository
	idGen    IDGenerator
	log      *zap.Logger
}

func NewLoginFlow(
	provider IdentityProvider,
	auth *AuthUsecase,
	users repository.UserRepository,
	idGen IDGenerator,
	log *zap.Logger,
) *LoginFlow {
	return &LoginFlow{
		provider: provider,
		auth:     auth,
		users:    users,
		idGen:    idGen,
		log:      log,
	}
}

// handlerがstate cookieとredirectに使う
type Challenge struct {
	State       string
	RedirectURL string
	Status      LoginState
}

// Begin はプロバイダへのredirect先を作る。DBは触らない
func (f *LoginFlow) Begin() Challenge {
	state := f.idGen.NewID()
	return Challenge{
		State:       state,
		RedirectURL: f.provider.AuthCodeURL(state),
		Status:      StateChallenged,
	}
}

// callbackのクエリとstate cookie
type CallbackInput struct {
	State         string
	ExpectedState string
	Code          string
	ProviderError string
}

type CallbackOutput struct {
	User   *model.User
	Status LoginState
}

// Callback はプロバイダの結果を検証してUserを確定する。
// 成功したときだけhandlerがセッションcookieを発行する
func (f *LoginFlow) Callback(ctx context.Context, in CallbackInput) (Result[CallbackOutput], error) {
	//プロバイダ側で失敗
	if in.ProviderError != "" {
		return failWith[CallbackOutput](KindAuthProvider, "Authentication failed: "+in.ProviderError), nil
	}

	//state不一致・code無しは結果不明として扱う
	if in.ExpectedState == "" || in.Code == "" ||
		subtle.ConstantTimeCompare([]byte(in.State), []byte(in.ExpectedState)) != 1 {
		return failWith[CallbackOutput](KindAuthProvider, msgUnknownAuthFailure), nil
	}

	claims, err := f.provider.Exchange(ctx, in.Code)
	if errors.Is(err, ErrProviderRejected) {
		return failWith[CallbackOutput](KindAuthProvider, "Authentication failed: "+err.Error()), nil
	}
	if err != nil {
		return Result[CallbackOutput]{}, err
	}

	//ExternalCallbackPending: claimをAuthUsecaseに渡す
	res, err := f.auth.HandleExternalLogin(ctx, claims)
	if err != nil {
		return Result[CallbackOutput]{}, err
	}
	if !res.Success {
		return failWith[CallbackOutput](res.Kind, res.Message), nil
	}

	return succeed(CallbackOutput{User: res.Data, Status: StateAuthenticated}, res.Message), nil
}

// Logout はsession_versionを上げて発行済みcookieを無効にする
func (f *LoginFlow) Logout(ctx context.Context, userID int64) (Result[LoginState], error) {
	if userID <= 0 {
		return Result[LoginState]{}, ErrNoUser
	}

	if err := f.users.IncrementSessionVersion(ctx, userID); err != nil {
		//既にユーザーが無いならcookieを消すだけでよい
		if !errors.Is(err, repository.ErrUserNotFound) {
			return Result[LoginState]{}, err
		}
		f.log.Warn("logout for missing user", zap.Int64("user_id", userID))
	}

	return succeed(StateLoggedOut, "Logged out"), nil
}
