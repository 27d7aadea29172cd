package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ошибки ротации refresh токена
var (
	// ErrTokenRevoked означает, что токен уже был использован
	// и находится в blacklist
	ErrTokenRevoked = errors.New("refresh token revoked")

	// ErrTokenUnknown означает, что прямого соответствия токену нет.
	// Сюда же попадает окно сбоя между удалением и blacklist:
	// отсутствует и mapping, и blacklist-метка — безопасный ответ отказ
	ErrTokenUnknown = errors.New("refresh token unknown")
)

const (
	refreshKeyPrefix   = "refresh_token:"
	blacklistKeyPrefix = "blacklist:"
	blacklistValue     = "blacklisted"
)

// redisCmdable покрывает используемое подмножество команд go-redis.
// Узкий интерфейс позволяет подменять клиент в тестах через
// redis.New*Result конструкторы.
type redisCmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetEx(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// Store хранит состояние refresh токенов в Redis.
// Ключи: refresh_token:<token> -> user_id (TTL = время жизни refresh)
// и blacklist:<token> -> sentinel (короткий grace TTL).
type Store struct {
	rdb          redisCmdable
	logger       *slog.Logger
	blacklistTTL time.Duration
	timeout      time.Duration
}

// NewStore создает session store поверх redis клиента.
// timeout ограничивает каждую отдельную операцию Redis:
// зависший вызов должен завершаться ошибкой, а не держать запрос.
func NewStore(rdb redisCmdable, blacklistTTL, timeout time.Duration, logger *slog.Logger) *Store {
	return &Store{
		rdb:          rdb,
		logger:       logger,
		blacklistTTL: blacklistTTL,
		timeout:      timeout,
	}
}

// Register сохраняет соответствие refresh токена и пользователя
func (s *Store) Register(ctx context.Context, refreshToken, userID string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.rdb.SetEx(ctx, refreshKeyPrefix+refreshToken, userID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to register refresh token: %w", err)
	}

	return nil
}

// IsBlacklisted сообщает, находится ли токен в blacklist
func (s *Store) IsBlacklisted(ctx context.Context, refreshToken string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.rdb.Exists(ctx, blacklistKeyPrefix+refreshToken).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}

	return n > 0, nil
}

// Rotate выполняет одноразовое использование refresh токена:
// проверяет blacklist, находит владельца, удаляет прямое соответствие
// и помещает токен в blacklist на grace-период.
// Возвращает ErrTokenRevoked для токена из blacklist и ErrTokenUnknown,
// если прямого соответствия нет. Любая ошибка Redis возвращается
// как есть: вызывающая сторона обязана отказать (fail closed).
func (s *Store) Rotate(ctx context.Context, refreshToken string) (string, error) {
	blacklisted, err := s.IsBlacklisted(ctx, refreshToken)
	if err != nil {
		return "", err
	}
	if blacklisted {
		return "", ErrTokenRevoked
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	userID, err := s.rdb.Get(opCtx, refreshKeyPrefix+refreshToken).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrTokenUnknown
		}
		return "", fmt.Errorf("failed to look up refresh token: %w", err)
	}

	// Удаление и blacklist не обернуты в транзакцию: сбой между ними
	// оставляет токен без mapping и без метки, что при повторном
	// предъявлении дает ErrTokenUnknown
	if err := s.rdb.Del(opCtx, refreshKeyPrefix+refreshToken).Err(); err != nil {
		return "", fmt.Errorf("failed to delete refresh token: %w", err)
	}

	if err := s.rdb.SetEx(opCtx, blacklistKeyPrefix+refreshToken, blacklistValue, s.blacklistTTL).Err(); err != nil {
		return "", fmt.Errorf("failed to blacklist refresh token: %w", err)
	}

	s.logger.DebugContext(ctx, "refresh token rotated", slog.String("user_id", userID))

	return userID, nil
}
