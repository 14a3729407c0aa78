// Пакет oidc — SSO-источник идентификации на основе подписанных
// JWT-утверждений. Подпись проверяется по JWKS внешнего IdP (с фоновым
// обновлением ключей), имя пользователя извлекается из настраиваемого
// claim. Каталоги источника — in-memory: система записи для SSO-пользователей
// не ведётся, права им выдаются в рамках сессии.
package oidc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/remgate/access-module/internal/auth"
	"github.com/bigkaa/remgate/access-module/internal/domain/model"
	"github.com/bigkaa/remgate/access-module/internal/provider/memory"
)

// Prometheus-метрики кэша проверенных утверждений.
var (
	tokenCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "acm_oidc_token_cache_hits_total",
		Help: "Общее количество попаданий в кэш проверенных JWT-утверждений.",
	})
	tokenCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "acm_oidc_token_cache_misses_total",
		Help: "Общее количество промахов кэша проверенных JWT-утверждений.",
	})
)

// Options — параметры SSO-источника.
type Options struct {
	// JWKSURL — URL JWKS endpoint внешнего IdP.
	JWKSURL string
	// Issuer — ожидаемый issuer утверждения.
	Issuer string
	// UsernameClaim — claim с именем пользователя (обычно preferred_username).
	UsernameClaim string
	// CacheTTL — время жизни записи в кэше проверенных утверждений.
	CacheTTL time.Duration
	// CacheSize — максимальный размер кэша проверенных утверждений.
	CacheSize int
}

// Provider — SSO-источник идентификации.
type Provider struct {
	id            string
	jwks          keyfunc.Keyfunc
	issuer        string
	usernameClaim string

	// backing хранит каталоги и наборы прав SSO-пользователей
	backing *memory.Provider
	// cache — проверенное утверждение → имя пользователя
	cache  *expirable.LRU[string, string]
	logger *slog.Logger
}

// New создаёт SSO-источник с JWKS из внешнего IdP.
// JWKS Storage обновляется в фоне; старт не блокируется, даже если IdP
// ещё недоступен (NoErrorReturnFirstHTTPReq).
func New(id string, opts Options, logger *slog.Logger) (*Provider, error) {
	storage, err := jwkset.NewStorageFromHTTP(opts.JWKSURL, jwkset.HTTPClientStorageOptions{
		NoErrorReturnFirstHTTPReq: true,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", opts.JWKSURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return newWithKeyfunc(id, k, opts, logger), nil
}

// NewWithKeyfunc создаёт SSO-источник с предоставленной keyfunc.
// Используется в тестах для подстановки mock JWKS.
func NewWithKeyfunc(id string, kf keyfunc.Keyfunc, opts Options, logger *slog.Logger) *Provider {
	return newWithKeyfunc(id, kf, opts, logger)
}

func newWithKeyfunc(id string, kf keyfunc.Keyfunc, opts Options, logger *slog.Logger) *Provider {
	return &Provider{
		id:            id,
		jwks:          kf,
		issuer:        opts.Issuer,
		usernameClaim: opts.UsernameClaim,
		backing:       memory.New(id),
		cache:         expirable.NewLRU[string, string](opts.CacheSize, nil, opts.CacheTTL),
		logger:        logger.With(slog.String("component", "oidc_provider")),
	}
}

// Identifier возвращает идентификатор источника.
func (p *Provider) Identifier() string {
	return p.id
}

// Authenticate проверяет JWT-утверждение и возвращает контекст пользователя.
// Повторное предъявление того же утверждения в пределах TTL обслуживается
// из кэша без криптографической проверки.
func (p *Provider) Authenticate(ctx context.Context, creds *auth.Credentials) (auth.UserContext, error) {
	if creds.Token == "" {
		return nil, auth.ErrInvalidCredentials
	}

	if username, ok := p.cache.Get(creds.Token); ok {
		tokenCacheHitsTotal.Inc()
		return p.contextFor(username)
	}
	tokenCacheMissesTotal.Inc()

	username, err := p.verify(ctx, creds.Token)
	if err != nil {
		p.logger.Debug("JWT валидация не пройдена",
			slog.String("error", err.Error()),
			slog.String("remote_addr", creds.RemoteAddr),
		)
		return nil, auth.ErrInvalidCredentials
	}

	p.cache.Add(creds.Token, username)
	return p.contextFor(username)
}

// verify проверяет подпись, срок действия и issuer утверждения
// и извлекает имя пользователя из настроенного claim.
func (p *Provider) verify(ctx context.Context, tokenString string) (string, error) {
	claims := jwt.MapClaims{}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
	}
	if p.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(p.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, p.jwks.KeyfuncCtx(ctx), parserOpts...)
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("невалидный токен")
	}

	username, _ := claims[p.usernameClaim].(string)
	if username == "" {
		return "", fmt.Errorf("отсутствует claim %q в токене", p.usernameClaim)
	}
	return username, nil
}

// contextFor возвращает контекст для имени пользователя, регистрируя
// пользователя в каталоге источника при первом входе.
func (p *Provider) contextFor(username string) (auth.UserContext, error) {
	user, err := p.backing.Users().Get(context.Background(), username)
	if err != nil {
		user = &model.User{Username: username}
		if err := p.backing.AddUser(user); err != nil {
			return nil, fmt.Errorf("регистрация SSO-пользователя %q: %w", username, err)
		}
		p.logger.Info("Первый вход SSO-пользователя",
			slog.String("username", username),
		)
	}
	return memory.NewUserContext(p.backing, user), nil
}
