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
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/livebag-backend/api/responses"
	pkgerrors "github.com/angelmondragon/livebag-backend/pkg/errors"
	"github.com/angelmondragon/livebag-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/livebag-backend/pkg/redis"
)

const (
	idempotencyHeader      = "Idempotency-Key"
	replayHeader           = "Idempotent-Replay"
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	inFlightTTL            = time.Minute
	bagsPrefix             = "/api/v1/bags/"
)

// bagActionTTL maps the part of a bag write route after the bag id to how
// long its replay record lives. Money-moving and aggregator-billing actions
// keep theirs for a week.
var bagActionTTL = map[string]time.Duration{
	"/handler":            defaultIdempotencyTTL,
	"/delivery":           defaultIdempotencyTTL,
	"/address":            defaultIdempotencyTTL,
	"/payment/manual":     defaultIdempotencyTTL,
	"/payment/reject":     defaultIdempotencyTTL,
	"/tracking/sync":      defaultIdempotencyTTL,
	"/status/advance":     defaultIdempotencyTTL,
	"/status/revert":      defaultIdempotencyTTL,
	"/payment/confirm":    criticalIdempotencyTTL,
	"/payment/approve":    criticalIdempotencyTTL,
	"/payment/revalidate": criticalIdempotencyTTL,
	"/charges":            criticalIdempotencyTTL,
	"/label":              criticalIdempotencyTTL,
}

// storedResponse is what Redis holds under an idempotency key. A claim with
// Status zero marks a request that is still executing.
type storedResponse struct {
	Status      int    `json:"status,omitempty"`
	Body        string `json:"body,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	RequestHash string `json:"request_hash"`
}

func (s storedResponse) inFlight() bool { return s.Status == 0 }

// Idempotency makes bag writes safe to retry. The first request with a key
// claims it, runs, and on a 2xx stores its response; retries with the same
// body get that response back, retries with another body are rejected, and a
// retry that races the first one is told to wait. Failed requests release the
// key so the client can try again.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, r.URL.Path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			k := idemKey{
				store: store,
				key:   store.IdempotencyKey(buildScope(r), clientKey),
				hash:  hashBody(body),
			}

			claimed, err := k.claim(ctx)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				k.replay(ctx, logg, w)
				return
			}

			committed := false
			defer func() {
				if !committed {
					k.release(ctx, logg)
				}
			}()

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := rec.statusOrOK()
			if status < 200 || status >= 300 {
				return
			}
			committed = k.commit(ctx, logg, storedResponse{
				Status:      status,
				Body:        base64.StdEncoding.EncodeToString(rec.body.Bytes()),
				ContentType: rec.Header().Get("Content-Type"),
				RequestHash: k.hash,
			}, ttl)
		})
	}
}

// idemKey is one idempotency key bound to the hash of the request using it.
type idemKey struct {
	store pkgredis.IdempotencyStore
	key   string
	hash  string
}

func (k idemKey) claim(ctx context.Context) (bool, error) {
	marker, err := json.Marshal(storedResponse{RequestHash: k.hash})
	if err != nil {
		return false, err
	}
	return k.store.SetNX(ctx, k.key, string(marker), inFlightTTL)
}

func (k idemKey) replay(ctx context.Context, logg *logger.Logger, w http.ResponseWriter) {
	raw, err := k.store.Get(ctx, k.key)
	if errors.Is(err, redis.Nil) {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "idempotency key released, retry the request"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency record"))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case stored.RequestHash != k.hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case stored.inFlight():
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is still in progress"))
	default:
		w.Header().Set(replayHeader, "true")
		if stored.ContentType != "" {
			w.Header().Set("Content-Type", stored.ContentType)
		}
		w.WriteHeader(stored.Status)
		if decoded, err := base64.StdEncoding.DecodeString(stored.Body); err == nil {
			_, _ = w.Write(decoded)
		}
	}
}

// commit swaps the in-flight claim for the finished response. It reports
// false when the record could not be written, in which case the claim is
// released by the caller.
func (k idemKey) commit(ctx context.Context, logg *logger.Logger, resp storedResponse, ttl time.Duration) bool {
	payload, err := json.Marshal(resp)
	if err != nil {
		logError(ctx, logg, "idempotency.marshal_failed", err)
		return false
	}
	if err := k.store.Del(ctx, k.key); err != nil {
		logError(ctx, logg, "idempotency.persist_failed", err)
		return false
	}
	if _, err := k.store.SetNX(ctx, k.key, string(payload), ttl); err != nil {
		logError(ctx, logg, "idempotency.persist_failed", err)
	}
	return true
}

func (k idemKey) release(ctx context.Context, logg *logger.Logger) {
	if err := k.store.Del(context.WithoutCancel(ctx), k.key); err != nil {
		logError(ctx, logg, "idempotency.release_failed", err)
	}
}

func buildScope(r *http.Request) string {
	return UserIDFromContext(r.Context()) + "|" + r.Method + "|" + r.URL.Path
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// routeTTL reports whether method and path name an idempotent bag write,
// that is POST /api/v1/bags/{bagId}<action> with a single id segment.
func routeTTL(method, path string) (time.Duration, bool) {
	if method != http.MethodPost {
		return 0, false
	}
	rest, ok := strings.CutPrefix(path, bagsPrefix)
	if !ok {
		return 0, false
	}
	id, action, ok := strings.Cut(rest, "/")
	if !ok || id == "" {
		return 0, false
	}
	ttl, ok := bagActionTTL["/"+action]
	return ttl, ok
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusOrOK() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
