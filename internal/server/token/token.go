package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iudanet/usermgmt/internal/models"
)

// Ошибки декодирования access токена.
// Три вида ошибок различаются намеренно: expired, malformed и invalid
// ведут себя одинаково для клиента, но тестируются по отдельности.
var (
	// ErrTokenExpired означает, что срок действия токена истек
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenMalformed означает, что строка токена не парсится как JWT
	ErrTokenMalformed = errors.New("token malformed")

	// ErrTokenInvalid означает, что подпись не проходит проверку
	// или отсутствуют обязательные claims
	ErrTokenInvalid = errors.New("token invalid")
)

const tokenTypeAccess = "access"

// Claims представляет JWT claims для access токена
type Claims struct {
	Role      models.Role `json:"role"`
	GroupID   *int64      `json:"group_id,omitempty"`
	TokenType string      `json:"token_type"`
	jwt.RegisteredClaims
}

// Pair содержит пару выданных токенов
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Manager выпускает и проверяет токены доступа
type Manager struct {
	secret          []byte
	accessTokenTTL  time.Duration
	refreshTokenLen int
}

// NewManager создает новый token manager
// secret должен быть криптографически стойкой случайной строкой
// refreshTokenLen — длина refresh токена в байтах до hex-кодирования
func NewManager(secret string, accessTokenTTL time.Duration, refreshTokenLen int) *Manager {
	return &Manager{
		secret:          []byte(secret),
		accessTokenTTL:  accessTokenTTL,
		refreshTokenLen: refreshTokenLen,
	}
}

// Issue выпускает пару токенов для пользователя.
// Access токен несет актуальные на момент выпуска username, роль и группу.
// Refresh токен — непрозрачная случайная строка без встроенных claims.
func (m *Manager) Issue(user *models.User) (Pair, error) {
	accessToken, err := m.issueAccess(user)
	if err != nil {
		return Pair{}, err
	}

	refreshToken, err := m.issueRefresh()
	if err != nil {
		return Pair{}, err
	}

	return Pair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (m *Manager) issueAccess(user *models.User) (string, error) {
	now := time.Now()

	claims := Claims{
		Role:      user.Role,
		GroupID:   user.GroupID,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "usermgmt",
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return signed, nil
}

func (m *Manager) issueRefresh() (string, error) {
	buf := make([]byte, m.refreshTokenLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Decode валидирует access токен и возвращает его claims.
// Возвращает ровно одну из ошибок ErrTokenExpired, ErrTokenMalformed,
// ErrTokenInvalid.
func (m *Manager) Decode(tokenString string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// Принимаем только HMAC, иначе токен с alg=none или RS256
		// прошел бы проверку с ключом как с публичным параметром
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %s", ErrTokenExpired, err)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: %s", ErrTokenMalformed, err)
		default:
			return nil, fmt.Errorf("%w: %s", ErrTokenInvalid, err)
		}
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" || claims.TokenType != tokenTypeAccess {
		return nil, fmt.Errorf("%w: required claims missing", ErrTokenInvalid)
	}

	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role claim", ErrTokenInvalid)
	}

	return claims, nil
}
