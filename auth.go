package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lppm/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	errUserExists         = errors.New("user already exists")
	errInvalidCredentials = errors.New("invalid credentials")
)

// defaultAkses is granted to self-registered accounts.
const defaultAkses = "Dosen"

// RegisterUser creates a lecturer account with an empty profile.
func RegisterUser(username, password, name string) (models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.User{}, fmt.Errorf("username required")
	}
	if len(password) < 6 { // basic password policy
		return models.User{}, fmt.Errorf("password too short (min 6)")
	}
	var existing models.User
	if err := db.Where("username = ?", username).First(&existing).Error; err == nil {
		return models.User{}, errUserExists
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}
	user := models.User{Username: username, HashedPassword: hashedPassword}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.HakAkses{UserID: user.ID, Akses: defaultAkses}).Error; err != nil {
			return err
		}
		return tx.Create(&models.Profile{UserID: user.ID, Name: strings.TrimSpace(name)}).Error
	})
	if err != nil {
		if isUniqueConstraintError(err) { // lost a race with a concurrent register
			return models.User{}, errUserExists
		}
		return models.User{}, err
	}
	return user, nil
}

func Authenticate(username, password string) (models.User, error) {
	username = strings.TrimSpace(username)
	var user models.User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		return models.User{}, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.HashedPassword, []byte(password)); err != nil {
		return models.User{}, errInvalidCredentials
	}
	return user, nil
}

// issueToken signs an HS256 token whose subject is the user id.
func issueToken(user models.User) (string, time.Time, error) {
	exp := time.Now().Add(tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(user.ID), 10),
		"username": user.Username,
		"exp":      exp.Unix(),
	})
	s, err := token.SignedString(jwtSecret)
	return s, exp, err
}

// isUniqueConstraintError reports a unique violation (SQLSTATE 23505). The
// string match covers drivers that do not surface a *pgconn.PgError.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "UNIQUE constraint") || strings.Contains(s, "unique constraint")
}
