package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"

	"neighborhood/db"
	"neighborhood/models"

	"golang.org/x/crypto/argon2"
	"gorm.io/gorm"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

func hashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(hash), nil
}

func verifyPassword(stored, password string) bool {
	parts := strings.Split(stored, "$")
	if len(parts) != 2 {
		return false
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return false
	}
	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	return hex.EncodeToString(hash) == parts[1]
}

// RegisterUser создает пользователя с argon2id-хешем пароля
func RegisterUser(ctx context.Context, user *models.User) (int64, error) {
	if user.Nickname == "" || user.Password == "" {
		return 0, &ValidationError{Field: "nickname"}
	}

	var exists int64
	err := db.GetReadOnlyDB(ctx).
		Model(&models.User{}).
		Where("nickname = ?", user.Nickname).
		Count(&exists).Error
	if err != nil {
		return 0, storeErr("register", err)
	}
	if exists > 0 {
		return 0, ErrUserExists
	}

	hashed, err := hashPassword(user.Password)
	if err != nil {
		return 0, err
	}
	user.Password = hashed

	if err := db.GetWriteDB(ctx).Create(user).Error; err != nil {
		return 0, storeErr("register", err)
	}
	return user.ID, nil
}

// LoginUser проверяет пароль и выдает новый токен, старые токены
// пользователя сбрасываются
func LoginUser(ctx context.Context, nickname, password string) (string, error) {
	if nickname == "" || password == "" {
		return "", &ValidationError{Field: "nickname"}
	}

	var user models.User
	err := db.GetReadOnlyDB(ctx).Where("nickname = ?", nickname).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", storeErr("login", err)
	}
	if !verifyPassword(user.Password, password) {
		return "", ErrInvalidCredentials
	}

	if err := LogoutUser(ctx, user.ID); err != nil {
		return "", err
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	err = db.GetWriteDB(ctx).Create(&models.UserTokens{
		UserID: user.ID,
		Token:  token,
	}).Error
	if err != nil {
		return "", storeErr("login", err)
	}
	return token, nil
}

// LogoutUser удаляет все токены пользователя
func LogoutUser(ctx context.Context, userID int64) error {
	err := db.GetWriteDB(ctx).
		Where("user_id = ?", userID).
		Delete(&models.UserTokens{}).Error
	if err != nil {
		return storeErr("logout", err)
	}
	return nil
}

// ResolveToken возвращает id пользователя по токену
func ResolveToken(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, &ValidationError{Field: "token"}
	}
	var userToken models.UserTokens
	err := db.GetReadOnlyDB(ctx).Where("token = ?", token).First(&userToken).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrInvalidCredentials
		}
		return 0, storeErr("resolve_token", err)
	}
	return userToken.UserID, nil
}

// GetUser возвращает пользователя по id
func GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	err := db.GetReadOnlyDB(ctx).First(&user, userID).Error
	if err != nil {
		return nil, storeErr("get_user", err)
	}
	return &user, nil
}

// SearchUsers ищет соседей по имени и фамилии (префиксное совпадение)
func SearchUsers(ctx context.Context, firstName, lastName string, limit, offset int) ([]models.User, error) {
	if limit <= 0 || limit > 1000 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	query := db.GetReadOnlyDB(ctx).Model(&models.User{})
	if firstName != "" {
		query = query.Where("first_name LIKE ?", firstName+"%")
	}
	if lastName != "" {
		query = query.Where("last_name LIKE ?", lastName+"%")
	}

	var users []models.User
	err := query.Order("id ASC").Limit(limit).Offset(offset).Find(&users).Error
	if err != nil {
		return nil, storeErr("search_users", err)
	}
	return users, nil
}
