// Package auth содержит регистрацию, вход и определение текущего пользователя.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/streamvault/internal/lib/age"
	"github.com/magabrotheeeer/streamvault/internal/lib/apperr"
	"github.com/magabrotheeeer/streamvault/internal/lib/jwt"
	"github.com/magabrotheeeer/streamvault/internal/lib/password"
	"github.com/magabrotheeeer/streamvault/internal/lib/sl"
	"github.com/magabrotheeeer/streamvault/internal/models"
	"github.com/magabrotheeeer/streamvault/internal/storage/repository"
)

// MinAge минимальный возраст для регистрации.
const MinAge = 22

// DateLayout формат даты рождения в форме регистрации.
const DateLayout = "2006-01-02"

// UserRepository описывает контракт хранилища пользователей.
type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// RegisterInput поля формы регистрации.
type RegisterInput struct {
	Username        string `form:"username" validate:"required,min=2,max=20"`
	Email           string `form:"email" validate:"required,email,max=255"`
	DateOfBirth     string `form:"date_of_birth" validate:"required"`
	Password        string `form:"password" validate:"required"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
}

// LoginInput поля формы входа.
type LoginInput struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

// Service отвечает за регистрацию, вход и сессии.
type Service struct {
	log      *slog.Logger
	users    UserRepository
	jwtMaker jwt.Maker
	validate *validator.Validate
	now      func() time.Time
}

// New создаёт Service.
func New(log *slog.Logger, users UserRepository, jwtMaker jwt.Maker) *Service {
	return &Service{
		log:      log,
		users:    users,
		jwtMaker: jwtMaker,
		validate: newValidator(),
		now:      time.Now,
	}
}

// WithClock подменяет источник текущего времени.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// SessionTTL время жизни сессии.
func (s *Service) SessionTTL() time.Duration {
	return s.jwtMaker.TTL()
}

// Register создаёт пользователя. Пароль сохраняется только в виде bcrypt-хэша,
// подписка выключена. Любая ошибка входных данных возвращается как
// *apperr.ValidationError.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	const op = "auth.Register"

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%s: %w", op, validationError(err))
	}

	if len(in.Password) > password.MaxLength {
		return nil, fmt.Errorf("%s: %w", op,
			apperr.Validation("password", fmt.Sprintf("Password must be at most %d bytes long.", password.MaxLength)))
	}

	dob, err := time.Parse(DateLayout, strings.TrimSpace(in.DateOfBirth))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.Validation("date_of_birth", "Not a valid date value."))
	}
	if !age.AtLeast(dob, s.now(), MinAge) {
		return nil, fmt.Errorf("%s: %w", op,
			apperr.Validation("date_of_birth", fmt.Sprintf("You must be at least %d years old to register.", MinAge)))
	}

	hash, err := password.GetHash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user := models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		DateOfBirth:  dob,
		IsSubscribed: false,
	}
	id, err := s.users.CreateUser(ctx, user)
	if err != nil {
		var conflict *repository.ConflictError
		if errors.As(err, &conflict) {
			return nil, fmt.Errorf("%s: %w", op, apperr.Validation(conflict.Field,
				fmt.Sprintf("That %s is taken. Please choose a different one.", conflict.Field)))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user.ID = id
	return &user, nil
}

// Login проверяет email и пароль и выпускает токен сессии.
// Неизвестный email и неверный пароль возвращаются одинаково, как apperr.ErrAuth;
// различие видно только в логе.
func (s *Service) Login(ctx context.Context, in LoginInput) (string, *models.User, error) {
	const op = "auth.Login"
	log := s.log.With(slog.String("op", op))

	if err := s.validate.Struct(in); err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, apperr.ErrAuth)
	}

	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(in.Email))
	if errors.Is(err, repository.ErrNotFound) {
		log.Info("login failed", slog.String("reason", "unknown_email"))
		return "", nil, fmt.Errorf("%s: %w", op, apperr.ErrAuth)
	}
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := password.CompareHash(user.PasswordHash, in.Password); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			log.Info("login failed", slog.String("reason", "wrong_password"), sl.UserID(user.ID))
		} else {
			log.Error("failed to compare password hash", sl.Err(err), sl.UserID(user.ID))
		}
		return "", nil, fmt.Errorf("%s: %w", op, apperr.ErrAuth)
	}

	token, err := s.jwtMaker.GenerateToken(user.ID, user.Username)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	return token, user, nil
}

// CurrentUser возвращает пользователя по токену сессии, перечитывая его из
// хранилища. Невалидный токен или удалённый пользователь дают apperr.ErrAuth.
func (s *Service) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	const op = "auth.CurrentUser"
	if token == "" {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrAuth)
	}

	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, apperr.ErrAuth, err)
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrAuth)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}
