// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\auth\service.go
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
	"tsusho/database"
	"tsusho/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// LockAfter 回連続で失敗するとアカウントをロックします。
const LockAfter = 5

var (
	ErrInvalidCredentials = errors.New("ログインIDまたはパスワードが違います")
	ErrAccountLocked      = errors.New("アカウントがロックされています。管理者に連絡してください")
	ErrNoSession          = errors.New("ログインが必要です")
)

// Identity はログイン中の職員です。
type Identity struct {
	StaffID string `json:"staffId"`
	LoginID string `json:"loginId"`
}

type Claims struct {
	LoginID string `json:"loginId"`
	jwt.RegisteredClaims
}

type Service struct {
	db     *sqlx.DB
	secret []byte
	ttl    time.Duration
	logger *logrus.Logger
	now    func() time.Time
}

// NewService は認証サービスを生成します。secret が空の場合は起動ごとの一時鍵を使います。
func NewService(db *sqlx.DB, secret string, ttl time.Duration, logger *logrus.Logger) *Service {
	key := []byte(secret)
	if len(key) == 0 {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			panic(fmt.Sprintf("auth: failed to generate signing key: %v", err))
		}
		key = []byte(hex.EncodeToString(buf))
		logger.Warn("TSUSHO_JWT_SECRET is not set; using a temporary signing key (sessions end on restart)")
	}
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Service{db: db, secret: key, ttl: ttl, logger: logger, now: time.Now}
}

// SetClock はテスト用に現在時刻の取得方法を差し替えます。
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Login はパスワードを検証し、成功すればトークンを発行します。
func (s *Service) Login(ctx context.Context, loginID, password string) (string, time.Time, error) {
	staff, err := database.GetStaffByLoginID(ctx, s.db, loginID)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return "", time.Time{}, ErrInvalidCredentials
		}
		return "", time.Time{}, err
	}
	if staff.AccountStatus == model.AccountStatusLocked {
		return "", time.Time{}, ErrAccountLocked
	}

	nowText := s.now().Format(time.RFC3339)
	if err := bcrypt.CompareHashAndPassword([]byte(staff.PasswordHash), []byte(password)); err != nil {
		if err := database.RecordLoginFailure(ctx, s.db, staff.StaffID, LockAfter, nowText); err != nil {
			return "", time.Time{}, err
		}
		if staff.FailedLoginAttempts+1 >= LockAfter {
			s.logger.WithField("loginId", loginID).Warn("account locked after repeated login failures")
			return "", time.Time{}, ErrAccountLocked
		}
		return "", time.Time{}, ErrInvalidCredentials
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if err := database.RecordLoginSuccess(ctx, tx, staff, nowText); err != nil {
		return "", time.Time{}, err
	}
	if err := tx.Commit(); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to commit login: %w", err)
	}

	return s.IssueToken(Identity{StaffID: staff.StaffID, LoginID: staff.LoginID})
}

func (s *Service) IssueToken(id Identity) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := Claims{
		LoginID: id.LoginID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.StaffID,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expires, nil
}

// ParseToken は署名と有効期限を検証します。
func (s *Service) ParseToken(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrNoSession
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return Identity{}, ErrNoSession
	}
	return Identity{StaffID: claims.Subject, LoginID: claims.LoginID}, nil
}

// EnsureAdmin は職員が1人も登録されていない場合に初期アカウントを作成します。
func (s *Service) EnsureAdmin(ctx context.Context, loginID, password string) error {
	n, err := database.CountStaff(ctx, s.db)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if loginID == "" || password == "" {
		s.logger.Warn("no staff account exists; set TSUSHO_ADMIN_LOGIN_ID and TSUSHO_ADMIN_PASSWORD to create one")
		return nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	nowText := s.now().Format(time.RFC3339)
	staff := &model.Staff{
		StaffID:       uuid.NewString(),
		LoginID:       loginID,
		PasswordHash:  hash,
		AccountStatus: model.AccountStatusActive,
		CreatedAt:     nowText,
		UpdatedAt:     nowText,
	}
	staff.PasswordUpdatedAt.String, staff.PasswordUpdatedAt.Valid = nowText, true
	if err := database.CreateStaff(ctx, s.db, staff); err != nil {
		return err
	}
	s.logger.WithField("loginId", loginID).Info("initial staff account created")
	return nil
}
