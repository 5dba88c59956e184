package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/foodbowl/foodbowl-backend/api/responses"
	pkgerrors "github.com/foodbowl/foodbowl-backend/pkg/errors"
	"github.com/foodbowl/foodbowl-backend/pkg/logger"
	pkgredis "github.com/foodbowl/foodbowl-backend/pkg/redis"
)

const (
	defaultIdempotencyTTL = 24 * time.Hour
	// inFlightTTL bounds how long a crashed request blocks its key.
	inFlightTTL          = time.Minute
	idempotencyHeader    = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 200
)

// Only routes that create state a retry could duplicate.
var idempotentRoutes = map[string]bool{
	http.MethodPost + " /api/order":                 true,
	http.MethodPost + " /api/delivery/accept-order": true,
	http.MethodPost + " /api/orders/payment/create": true,
}

type recordState string

const (
	stateInFlight recordState = "in_flight"
	stateDone     recordState = "done"
)

type idempotencyRecord struct {
	State       recordState `json:"state"`
	RequestHash string      `json:"request_hash"`
	Status      int         `json:"status,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
	Body        []byte      `json:"body,omitempty"`
}

// Idempotency replays the stored response for a repeated Idempotency-Key on
// covered routes. The key is reserved before the handler runs, so a duplicate
// that arrives mid-flight gets 409 instead of a second execution. Server
// errors release the key so the client may retry. Requests without the
// header pass through untouched.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if store == nil || clientKey == "" || !coveredRoute(r.Method, requestPath(r)) {
				next.ServeHTTP(w, r)
				return
			}
			if len(clientKey) > maxIdempotencyKeyLen {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key too long"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			g := &guard{
				store: store,
				key:   store.IdempotencyKey(scopeOf(r), clientKey),
				hash:  fingerprint(body),
				ttl:   ttl,
				logg:  logg,
			}
			reserved, err := g.reserve(r.Context())
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				g.replay(w, r)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			completed := false
			defer func() {
				if !completed {
					g.release(r.Context())
				}
			}()
			next.ServeHTTP(capture, r)

			if capture.statusCode() >= http.StatusInternalServerError {
				return
			}
			completed = true
			g.complete(r.Context(), capture)
		})
	}
}

type guard struct {
	store pkgredis.IdempotencyStore
	key   string
	hash  string
	ttl   time.Duration
	logg  *logger.Logger
}

func (g *guard) reserve(ctx context.Context) (bool, error) {
	marker, err := json.Marshal(idempotencyRecord{State: stateInFlight, RequestHash: g.hash})
	if err != nil {
		return false, err
	}
	return g.store.SetNX(ctx, g.key, string(marker), inFlightTTL)
}

func (g *guard) replay(w http.ResponseWriter, r *http.Request) {
	raw, err := g.store.Get(r.Context(), g.key)
	if errors.Is(err, redis.Nil) {
		// released between our SETNX and GET
		responses.WriteError(r.Context(), g.logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is being retried, try again"))
		return
	}
	if err != nil {
		responses.WriteError(r.Context(), g.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}
	var rec idempotencyRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		responses.WriteError(r.Context(), g.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}

	switch {
	case rec.RequestHash != g.hash:
		responses.WriteError(r.Context(), g.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case rec.State != stateDone:
		responses.WriteError(r.Context(), g.logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is still in progress"))
	default:
		if rec.ContentType != "" {
			w.Header().Set("Content-Type", rec.ContentType)
		}
		w.Header().Set(replayedHeader, "true")
		w.WriteHeader(rec.Status)
		_, _ = w.Write(rec.Body)
	}
}

func (g *guard) complete(ctx context.Context, capture *responseCapture) {
	payload, err := json.Marshal(idempotencyRecord{
		State:       stateDone,
		RequestHash: g.hash,
		Status:      capture.statusCode(),
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
	})
	if err == nil {
		err = g.store.Set(ctx, g.key, string(payload), g.ttl)
	}
	if err != nil && g.logg != nil {
		g.logg.Error(ctx, "persist idempotency record", err)
	}
}

func (g *guard) release(ctx context.Context) {
	// the request context may already be cancelled
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := g.store.Del(ctx, g.key); err != nil && g.logg != nil {
		g.logg.Error(ctx, "release idempotency key", err)
	}
}

func scopeOf(r *http.Request) string {
	return strings.Join([]string{UserIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Middleware mounted on a sub-router runs before the final route pattern is
// known, so covered routes are matched on the concrete path.
func requestPath(r *http.Request) string {
	if r.URL.Path == "/" {
		return r.URL.Path
	}
	return strings.TrimSuffix(r.URL.Path, "/")
}

func coveredRoute(method, path string) bool {
	return idempotentRoutes[method+" "+path]
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
