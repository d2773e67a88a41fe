// Пакет keyset — кэш публичных ключей подписи Identity Provider.
// Ключи загружаются с realm certs endpoint (JWKS); каждый ключ строится
// из x5c[0] — base64 DER сертификата, оборачиваемого в PEM перед разбором.
// Эвикции по TTL нет — только реактивное обновление при неизвестном kid.
package keyset

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrKeyNotFound — kid отсутствует в key set даже после одного обновления.
var ErrKeyNotFound = errors.New("ключ подписи не найден в key set")

// jwksResponse — ответ certs endpoint.
type jwksResponse struct {
	Keys []jwkEntry `json:"keys"`
}

// jwkEntry — одна запись JWKS. Используется только x5c[0];
// служебные поля нужны для фильтрации ключей подписи.
type jwkEntry struct {
	Kid string   `json:"kid"`
	Use string   `json:"use"`
	X5c []string `json:"x5c"`
}

// Cache — кэш ключей подписи с обновлением по промаху.
// Явно владеемый объект: создаётся при старте сервиса, передаётся
// верификатору, умирает вместе с сервисом. Не синглтон.
type Cache struct {
	certsURL   string
	httpClient *http.Client
	logger     *slog.Logger

	mu   sync.RWMutex
	keys map[string]*rsa.PublicKey

	// группа для коалесцирования конкурентных обновлений:
	// не более одного запроса к IdP в полёте.
	refresh singleflight.Group
}

// New создаёт кэш ключей.
// certsURL — realm certs endpoint IdP.
// httpClient — HTTP-клиент (nil — клиент с таймаутом по умолчанию).
func New(certsURL string, httpClient *http.Client, logger *slog.Logger) *Cache {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Cache{
		certsURL:   certsURL,
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "keyset")),
		keys:       make(map[string]*rsa.PublicKey),
	}
}

// Warm выполняет best-effort предзагрузку key set при старте процесса.
// Ошибка логируется и возвращается, но не должна быть фатальной для вызывающего.
func (c *Cache) Warm(ctx context.Context) error {
	if err := c.doRefresh(ctx); err != nil {
		c.logger.Warn("Предзагрузка key set не удалась, ключи будут загружены по требованию",
			slog.String("url", c.certsURL),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// Key возвращает публичный ключ для kid.
// При промахе выполняется РОВНО одна попытка обновления key set;
// если kid по-прежнему отсутствует — ErrKeyNotFound.
func (c *Cache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key, ok := c.lookup(kid); ok {
		return key, nil
	}

	// Коалесцируем конкурентные обновления: все ожидающие получают
	// результат одного fetch.
	if _, err, _ := c.refresh.Do("refresh", func() (any, error) {
		return nil, c.doRefresh(ctx)
	}); err != nil {
		return nil, fmt.Errorf("обновление key set: %w", err)
	}

	if key, ok := c.lookup(kid); ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: kid=%q", ErrKeyNotFound, kid)
}

// lookup — поиск ключа под read-lock.
func (c *Cache) lookup(kid string) (*rsa.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok := c.keys[kid]
	return key, ok
}

// doRefresh загружает key set с certs endpoint и атомарно заменяет кэш.
func (c *Cache) doRefresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.certsURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("создание запроса к certs endpoint: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("запрос к certs endpoint %s: %w", c.certsURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("certs endpoint вернул статус %d: %s", resp.StatusCode, string(body))
	}

	var jwks jwksResponse
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return fmt.Errorf("декодирование JWKS: %w", err)
	}

	fresh := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, entry := range jwks.Keys {
		if entry.Kid == "" || len(entry.X5c) == 0 {
			continue
		}
		// Ключи шифрования (use=enc) для проверки подписи не годятся.
		if entry.Use != "" && entry.Use != "sig" {
			continue
		}

		key, keyErr := publicKeyFromX5c(entry.X5c[0])
		if keyErr != nil {
			c.logger.Warn("Пропуск некорректной записи JWKS",
				slog.String("kid", entry.Kid),
				slog.String("error", keyErr.Error()),
			)
			continue
		}
		fresh[entry.Kid] = key
	}

	c.mu.Lock()
	c.keys = fresh
	c.mu.Unlock()

	c.logger.Debug("Key set обновлён",
		slog.Int("keys", len(fresh)),
		slog.String("url", c.certsURL),
	)
	return nil
}

// publicKeyFromX5c строит RSA публичный ключ из x5c[0]:
// base64 DER сертификат оборачивается PEM-армированием CERTIFICATE
// и разбирается как X.509.
func publicKeyFromX5c(cert string) (*rsa.PublicKey, error) {
	pemData := "-----BEGIN CERTIFICATE-----\n" + cert + "\n-----END CERTIFICATE-----"

	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("x5c не является корректным base64 DER")
	}

	parsed, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("разбор сертификата: %w", err)
	}

	rsaKey, ok := parsed.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("неподдерживаемый тип ключа %T, ожидался RSA", parsed.PublicKey)
	}
	return rsaKey, nil
}
