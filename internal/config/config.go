// Пакет config — загрузка и валидация конфигурации Access Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Access Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Сессии ---

	// TTL бездействия сессии: отсчитывается от последнего обращения
	SessionTTL time.Duration

	// --- OIDC (опциональный SSO-источник) ---

	// Включение OIDC-источника
	OIDCEnabled bool
	// URL JWKS endpoint провайдера
	OIDCJWKSURL string
	// Ожидаемый issuer JWT-утверждения
	OIDCIssuer string
	// Claim с именем пользователя (по умолчанию preferred_username)
	OIDCUsernameClaim string
	// TTL кэша проверенных утверждений
	OIDCCacheTTL time.Duration
	// Ёмкость кэша проверенных утверждений
	OIDCCacheSize int

	// --- Наблюдаемость ---

	// Имя группы в метриках topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// ACM_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("ACM_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("ACM_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("ACM_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// ACM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("ACM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("ACM_LOG_LEVEL: %w", err)
	}

	// ACM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("ACM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("ACM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// ACM_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("ACM_DB_HOST")
	if err != nil {
		return nil, err
	}

	// ACM_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("ACM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("ACM_DB_PORT: %w", err)
	}

	// ACM_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("ACM_DB_NAME")
	if err != nil {
		return nil, err
	}

	// ACM_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("ACM_DB_USER")
	if err != nil {
		return nil, err
	}

	// ACM_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("ACM_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// ACM_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("ACM_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("ACM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Сессии ---

	// ACM_SESSION_TTL — TTL бездействия сессии (по умолчанию 60m)
	cfg.SessionTTL, err = getEnvDuration("ACM_SESSION_TTL", 60*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("ACM_SESSION_TTL: %w", err)
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("ACM_SESSION_TTL: значение должно быть положительным")
	}

	// --- OIDC ---

	// ACM_OIDC_ENABLED — включение SSO-источника (по умолчанию false)
	cfg.OIDCEnabled, err = getEnvBool("ACM_OIDC_ENABLED", false)
	if err != nil {
		return nil, fmt.Errorf("ACM_OIDC_ENABLED: %w", err)
	}

	if cfg.OIDCEnabled {
		// ACM_OIDC_JWKS_URL — обязательный при включённом OIDC
		cfg.OIDCJWKSURL, err = getEnvRequired("ACM_OIDC_JWKS_URL")
		if err != nil {
			return nil, err
		}
		cfg.OIDCJWKSURL = strings.TrimRight(cfg.OIDCJWKSURL, "/")

		// ACM_OIDC_ISSUER — обязательный при включённом OIDC
		cfg.OIDCIssuer, err = getEnvRequired("ACM_OIDC_ISSUER")
		if err != nil {
			return nil, err
		}
	}

	// ACM_OIDC_USERNAME_CLAIM — claim имени пользователя (по умолчанию preferred_username)
	cfg.OIDCUsernameClaim = getEnvDefault("ACM_OIDC_USERNAME_CLAIM", "preferred_username")

	// ACM_OIDC_CACHE_TTL — TTL кэша проверенных утверждений (по умолчанию 5m)
	cfg.OIDCCacheTTL, err = getEnvDuration("ACM_OIDC_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("ACM_OIDC_CACHE_TTL: %w", err)
	}

	// ACM_OIDC_CACHE_SIZE — ёмкость кэша (по умолчанию 1024)
	cfg.OIDCCacheSize, err = getEnvInt("ACM_OIDC_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("ACM_OIDC_CACHE_SIZE: %w", err)
	}
	if cfg.OIDCCacheSize < 1 {
		return nil, fmt.Errorf("ACM_OIDC_CACHE_SIZE: значение должно быть положительным")
	}

	// --- Наблюдаемость ---

	// ACM_DEPHEALTH_GROUP — имя группы в метриках topologymetrics (по умолчанию remgate)
	cfg.DephealthGroup = getEnvDefault("ACM_DEPHEALTH_GROUP", "remgate")

	// ACM_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("ACM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("ACM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	// ACM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("ACM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("ACM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL.
// Используется topologymetrics для лейблов метрик, не для подключения.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
