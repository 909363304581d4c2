package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"shoppingcart/internal/domain/model"
	"shoppingcart/internal/repository"

	"go.uber.org/zap"
)

// 外部プロバイダが主張するclaim（OIDCの名前）
const (
	ClaimSubject = "sub"
	ClaimEmail   = "email"
	ClaimName    = "name"
)

// Claim は (type, value) の組
type Claim struct {
	Type  string
	Value string
}

// 現在時刻（テストで固定する）
type Clock interface {
	Now() time.Time
}

// AuthUsecase は外部ログインのclaimをローカルのUserに対応付けます。
// cookieの発行はしません（LoginFlow/handlerの役割）。
type AuthUsecase struct {
	tx        repository.TransactionManager
	validator InputValidator
	clock     Clock
	log       *zap.Logger
}

func NewAuthUsecase(
	tx repository.TransactionManager,
	validator InputValidator,
	clock Clock,
	log *zap.Logger,
) *AuthUsecase {
	return &AuthUsecase{
		tx:        tx,
		validator: validator,
		clock:     clock,
		log:       log,
	}
}

// HandleExternalLogin はclaimからUserを探し、無ければ作る。
// 既存ユーザーはusernameだけ更新し、emailは変えない
func (u *AuthUsecase) HandleExternalLogin(ctx context.Context, claims []Claim) (Result[*model.User], error) {
	email := strings.ToLower(strings.TrimSpace(claimValue(claims, ClaimEmail)))
	if email == "" {
		return failWith[*model.User](KindAuthClaims, "Email claim is missing."), nil
	}
	if !u.validator.ValidateEmail(email) {
		return failWith[*model.User](KindAuthClaims, "Email claim is invalid."), nil
	}

	subject := strings.TrimSpace(claimValue(claims, ClaimSubject))
	name := strings.TrimSpace(claimValue(claims, ClaimName))

	user, err := u.resolve(ctx, subject, email, name)
	if errors.Is(err, repository.ErrDuplicate) {
		//初回ログインが同時に来た。先に作られた方を読み直す
		u.log.Info("concurrent first login, retrying", zap.String("email", email))
		user, err = u.resolve(ctx, subject, email, name)
	}
	if err != nil {
		return Result[*model.User]{}, err
	}

	return succeed(user, "Welcome, "+user.Username+"!"), nil
}

func (u *AuthUsecase) resolve(ctx context.Context, subject string, email string, name string) (*model.User, error) {
	var out *model.User

	err := u.tx.WithinTx(ctx, func(r repository.TxRepos) error {
		users := r.Users()

		var existing *model.User
		var err error

		//subjectの紐付けを優先、無ければemail
		if subject != "" {
			existing, err = users.FindByGoogleSubject(ctx, subject)
			if err != nil {
				return err
			}
		}
		if existing == nil {
			existing, err = users.FindByEmail(ctx, email)
			if err != nil {
				return err
			}
		}

		now := u.clock.Now()

		if existing == nil {
			created := &model.User{
				Username:    usernameOrDefault(name, email),
				Email:       email,
				LastLoginAt: &now,
			}
			if subject != "" {
				created.GoogleSubject = &subject
			}
			if err := users.Create(ctx, created); err != nil {
				return err
			}
			u.log.Info("user created from external login", zap.Int64("user_id", created.ID))
			out = created
			return r.AuditLogs().Create(ctx, loginAudit(created, "", now))
		}

		before := existing.Username
		if name != "" {
			existing.Username = name
		}
		if subject != "" {
			if existing.GoogleSubject == nil {
				existing.GoogleSubject = &subject
			} else if *existing.GoogleSubject != subject {
				u.log.Warn("email already linked to another subject", zap.Int64("user_id", existing.ID))
			}
		}
		existing.LastLoginAt = &now

		if err := users.Update(ctx, existing); err != nil {
			return err
		}
		out = existing
		return r.AuditLogs().Create(ctx, loginAudit(existing, before, now))
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// before/afterはusernameだけ
func loginAudit(user *model.User, beforeName string, at time.Time) model.AuditLog {
	log := model.AuditLog{
		ActorUserID:  user.ID,
		Action:       model.AuditActionLogin,
		ResourceType: model.AuditResourceUser,
		ResourceID:   user.ID,
		AfterJSON:    usernameJSON(user.Username),
		CreatedAt:    at,
	}
	if beforeName != "" {
		log.BeforeJSON = usernameJSON(beforeName)
	}
	return log
}

func usernameJSON(name string) string {
	b, err := json.Marshal(struct {
		Username string `json:"username"`
	}{Username: name})
	if err != nil {
		return ""
	}
	return string(b)
}

func claimValue(claims []Claim, claimType string) string {
	for _, c := range claims {
		if c.Type == claimType {
			return c.Value
		}
	}
	return ""
}

// nameが無ければemailの@より前
func usernameOrDefault(name string, email string) string {
	if name != "" {
		return name
	}
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
