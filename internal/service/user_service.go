package service

import (
	"context"
	"errors"
	"log"
	"time"

	"poscore/internal/model"
	"poscore/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

type LoginResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type UserService interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	SeedAdmin(ctx context.Context) error
}

type userService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
}

func NewUserService(userRepo repository.UserRepository, jwtSecret []byte) UserService {
	return &userService{userRepo: userRepo, jwtSecret: jwtSecret}
}

func (s *userService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	claims := jwt.MapClaims{
		"sub":      user.ID.String(),
		"username": user.Username,
		"role":     user.Role,
		"exp":      time.Now().Add(24 * time.Hour).Unix(),
		"iat":      time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: signed, User: user}, nil
}

// SeedAdmin creates the default admin account on first boot so a fresh
// terminal is usable before any users exist.
func (s *userService) SeedAdmin(ctx context.Context) error {
	count, err := s.userRepo.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := &model.User{
		Username: "admin",
		Password: string(hash),
		Role:     model.RoleAdmin,
	}
	if err := s.userRepo.Create(ctx, admin); err != nil {
		return err
	}
	log.Println("Seeded default admin user (username: admin)")
	return nil
}
