package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openaid/aid-inventory/api/responses"
	pkgerrors "github.com/openaid/aid-inventory/pkg/errors"
	"github.com/openaid/aid-inventory/pkg/logger"
	pkgredis "github.com/openaid/aid-inventory/pkg/redis"
)

const (
	defaultIdempotencyTTL = 24 * time.Hour
	// A claim outlives any sane handler run but frees the key soon after a crash.
	pendingClaimTTL   = 2 * time.Minute
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
)

// Stock-writing endpoints, as path.Match globs over the request path.
var idempotentRoutes = map[string][]string{
	http.MethodPost: {
		"/api/quick/*",
		"/api/kits/assemble",
		"/api/items/*/adjust",
	},
}

// IdempotencyStore claims keys with SetNX and overwrites the claim with the
// final response.
type IdempotencyStore interface {
	pkgredis.IdempotencyStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// storedResponse is both the in-flight claim (Status 0) and the replayable
// result.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body,omitempty"`
	RequestHash string `json:"request_hash"`
}

func (s *storedResponse) pending() bool {
	return s.Status == 0
}

type idempotencyGuard struct {
	store IdempotencyStore
	ttl   time.Duration
	logg  *logger.Logger
}

// Idempotency replays the first response recorded for an Idempotency-Key on
// stock-writing routes. The key is claimed before the handler runs, so a
// concurrent retry gets a conflict instead of a second write. Requests
// without the header pass through untouched.
func Idempotency(store IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	guard := &idempotencyGuard{store: store, ttl: ttl, logg: logg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if store == nil || clientKey == "" || !idempotent(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			guard.serve(w, r, next, clientKey)
		})
	}
}

func (g *idempotencyGuard) serve(w http.ResponseWriter, r *http.Request, next http.Handler, clientKey string) {
	ctx := r.Context()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		responses.WriteError(ctx, g.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	digest := sha256.Sum256(body)
	requestHash := base64.StdEncoding.EncodeToString(digest[:])
	key := g.store.IdempotencyKey(UserIDFromContext(ctx)+"|"+r.Method+"|"+r.URL.Path, clientKey)

	claimed, prior, err := g.claim(ctx, key, requestHash)
	if err != nil {
		responses.WriteError(ctx, g.logg, w, err)
		return
	}
	if !claimed {
		switch {
		case prior.RequestHash != requestHash:
			responses.WriteError(ctx, g.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "Idempotency key reused with a different request body"))
		case prior.pending():
			responses.WriteError(ctx, g.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "A request with this Idempotency key is still in progress, retry shortly"))
		default:
			prior.replay(w)
		}
		return
	}

	// The claim must not outlive a failed or panicking handler. Cleanup runs
	// even when the client has gone away.
	cleanupCtx := context.WithoutCancel(ctx)
	stored := false
	defer func() {
		if !stored {
			g.release(cleanupCtx, key)
		}
	}()

	capture := &responseCapture{ResponseWriter: w}
	next.ServeHTTP(capture, r)
	if capture.status >= http.StatusInternalServerError {
		return
	}
	stored = g.remember(cleanupCtx, key, storedResponse{
		Status:      capture.statusOrOK(),
		ContentType: capture.Header().Get("Content-Type"),
		Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
		RequestHash: requestHash,
	})
}

// claim takes the key for this request. When someone else holds it, the
// holder's record is returned instead. A key that vanishes between SetNX and
// Get (a released claim) is claimed again once.
func (g *idempotencyGuard) claim(ctx context.Context, key, requestHash string) (bool, *storedResponse, error) {
	marker, err := json.Marshal(storedResponse{RequestHash: requestHash})
	if err != nil {
		return false, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode idempotency claim")
	}
	claimTTL := min(pendingClaimTTL, g.ttl)
	for range 2 {
		ok, err := g.store.SetNX(ctx, key, string(marker), claimTTL)
		if err != nil {
			return false, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key")
		}
		if ok {
			return true, nil, nil
		}
		prior, err := g.lookup(ctx, key)
		if err != nil {
			return false, nil, err
		}
		if prior != nil {
			return false, prior, nil
		}
	}
	return false, &storedResponse{RequestHash: requestHash}, nil
}

func (g *idempotencyGuard) lookup(ctx context.Context, key string) (*storedResponse, error) {
	raw, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	case raw == "":
		return nil, nil
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return &stored, nil
}

// remember replaces the claim with the final response. On failure the claim
// is released so the client can retry.
func (g *idempotencyGuard) remember(ctx context.Context, key string, resp storedResponse) bool {
	payload, err := json.Marshal(resp)
	if err == nil {
		err = g.store.Set(ctx, key, string(payload), g.ttl)
	}
	if err != nil {
		g.logg.Error(ctx, "persist idempotency record", err)
		return false
	}
	return true
}

func (g *idempotencyGuard) release(ctx context.Context, key string) {
	if err := g.store.Del(ctx, key); err != nil {
		g.logg.Error(ctx, "release idempotency claim", err)
	}
}

func (s *storedResponse) replay(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(s.Status)
	if body, err := base64.StdEncoding.DecodeString(s.Body); err == nil {
		_, _ = w.Write(body)
	}
}

func idempotent(method, requestPath string) bool {
	for _, glob := range idempotentRoutes[method] {
		if ok, _ := path.Match(glob, requestPath); ok {
			return true
		}
	}
	return false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
