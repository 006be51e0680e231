package auth

import (
	"context"
	"errors"
	"time"

	"github.com/creatorlink/core/internal/models"
	jwtpkg "github.com/creatorlink/core/internal/pkg/jwt"
	sessionpkg "github.com/creatorlink/core/internal/pkg/session"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	errUserNotFound  = errors.New("user not found")
	errWrongPassword = errors.New("wrong password")
	errEmailTaken    = errors.New("email already registered")
	errInvalidRole   = errors.New("role must be brand or creator")
)

type Service struct {
	db       *gorm.DB
	sessions *sessionpkg.Store
}

func NewService(db *gorm.DB, sessions *sessionpkg.Store) *Service {
	return &Service{db: db, sessions: sessions}
}

// LoginResult carries everything a successful credential check produces: a
// server-side session and a stateless token for clients that prefer bearers.
type LoginResult struct {
	User    *models.UserModel
	Session *sessionpkg.Session
	Token   string
}

func (s *Service) Login(ctx context.Context, email, password, ip, ua string) (*LoginResult, error) {
	var u models.UserModel
	if err := s.db.Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errUserNotFound
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, errWrongPassword
	}

	sess, err := s.sessions.Create(ctx, sessionpkg.CreateOptions{
		UserID:    u.ID,
		Email:     u.Email,
		Role:      u.Role,
		TenantID:  u.TenantID,
		UserAgent: ua,
		IPAddress: ip,
	})
	if err != nil {
		return nil, err
	}

	token, err := jwtpkg.Sign(u.ID, u.Email, u.Role, u.TenantID, s.sessions.TTL())
	if err != nil {
		return nil, err
	}

	// Bookkeeping only; the session is already minted.
	now := time.Now()
	_ = s.db.Model(&u).Updates(map[string]interface{}{
		"last_login_at": &now,
		"last_login_ip": ip,
	}).Error

	return &LoginResult{User: &u, Session: sess, Token: token}, nil
}

func (s *Service) Register(ctx context.Context, dto *RegisterDTO, ip, ua string) (*LoginResult, error) {
	if dto.Role != models.RoleBrand && dto.Role != models.RoleCreator {
		return nil, errInvalidRole
	}

	var count int64
	if err := s.db.Model(&models.UserModel{}).Where("email = ?", dto.Email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := models.UserModel{
		Email:    dto.Email,
		Password: string(hash),
		Name:     dto.Name,
		Role:     dto.Role,
		TenantID: dto.TenantID,
	}
	if err := s.db.Create(&u).Error; err != nil {
		return nil, err
	}

	sess, err := s.sessions.Create(ctx, sessionpkg.CreateOptions{
		UserID:    u.ID,
		Email:     u.Email,
		Role:      u.Role,
		TenantID:  u.TenantID,
		UserAgent: ua,
		IPAddress: ip,
	})
	if err != nil {
		return nil, err
	}

	token, err := jwtpkg.Sign(u.ID, u.Email, u.Role, u.TenantID, s.sessions.TTL())
	if err != nil {
		return nil, err
	}

	return &LoginResult{User: &u, Session: sess, Token: token}, nil
}
