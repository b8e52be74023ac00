package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/arnavshah/study-planner-api/pkg/database"
)

var jwtAlgorithm = jwt.SigningMethodHS256

// PasswordCost is the bcrypt cost used for admin passwords
var PasswordCost = 12

// ErrInvalidKey is returned for API keys that are malformed or not signed by the master secret
var ErrInvalidKey = errors.New("invalid api key")

// Claims represents the JWT claims
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Authenticator signs admin tokens and student API keys
type Authenticator struct {
	jwtSecret    []byte
	masterSecret []byte
	tokenTTL     time.Duration
}

// New creates an authenticator from the configured secrets
func New(jwtSecret, apiMasterSecret string) *Authenticator {
	return &Authenticator{
		jwtSecret:    []byte(jwtSecret),
		masterSecret: []byte(apiMasterSecret),
		tokenTTL:     24 * time.Hour,
	}
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with its hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CreateToken creates a new JWT token for an admin
func (a *Authenticator) CreateToken(username string) (string, error) {
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwtAlgorithm, claims)
	return token.SignedString(a.jwtSecret)
}

// VerifyToken verifies a JWT token
func (a *Authenticator) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// GenerateStudentKey creates a signed API key for a student: <studentID>.<hmac>
func (a *Authenticator) GenerateStudentKey(studentID string) string {
	return studentID + "." + a.sign(studentID)
}

// VerifyStudentKey validates an API key and returns the student it was minted for
func (a *Authenticator) VerifyStudentKey(key string) (string, error) {
	idx := strings.LastIndex(key, ".")
	if idx <= 0 || idx == len(key)-1 {
		return "", fmt.Errorf("%w: bad format", ErrInvalidKey)
	}
	studentID, provided := key[:idx], key[idx+1:]

	if !hmac.Equal([]byte(provided), []byte(a.sign(studentID))) {
		return "", fmt.Errorf("%w: bad signature", ErrInvalidKey)
	}
	return studentID, nil
}

func (a *Authenticator) sign(studentID string) string {
	h := hmac.New(sha256.New, a.masterSecret)
	h.Write([]byte(studentID))
	return hex.EncodeToString(h.Sum(nil))
}

// EnsureAdminExists creates the first admin from the given credentials when none exists
func EnsureAdminExists(db *gorm.DB, username, password string, logger zerolog.Logger) error {
	var count int64
	if err := db.Model(&database.MasterUser{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if err := db.Create(&database.MasterUser{Username: username, PasswordHash: hash}).Error; err != nil {
		return err
	}
	logger.Info().Str("username", username).Msg("default admin user created")
	return nil
}
