package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"gopkg.in/yaml.v3"

	"github.com/open-sspm/open-idm/internal/connectors/framework"
	"github.com/open-sspm/open-idm/internal/connectors/local"
	"github.com/open-sspm/open-idm/internal/connectors/registry"
	"github.com/open-sspm/open-idm/internal/metrics"
)

const defaultSessionIdle = 10 * time.Minute

type ServerConfig struct {
	// KeyHash is the argon2id hash of the shared key clients present.
	KeyHash     string
	SessionIdle time.Duration
}

// Server hosts registered bundles for remote callers. Each session owns
// one initialized connector instance; calls on a session are serialized.
type Server struct {
	registry *registry.ConnectorRegistry
	keyHash  string
	idle     time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*hostSession

	e *echo.Echo
}

type hostSession struct {
	mu       sync.Mutex
	key      framework.ConnectorKey
	facade   *local.Facade
	lastUsed time.Time
}

func NewServer(reg *registry.ConnectorRegistry, cfg ServerConfig) (*Server, error) {
	if reg == nil {
		return nil, errors.New("connector registry is nil")
	}
	if strings.TrimSpace(cfg.KeyHash) == "" {
		return nil, errors.New("connector server key hash is required")
	}
	idle := cfg.SessionIdle
	if idle <= 0 {
		idle = defaultSessionIdle
	}
	s := &Server{
		registry: reg,
		keyHash:  strings.TrimSpace(cfg.KeyHash),
		idle:     idle,
		now:      time.Now,
		sessions: make(map[string]*hostSession),
		e:        echo.New(),
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.e.Use(middleware.Recover())
	s.e.GET("/healthz", func(c *echo.Context) error { return c.String(http.StatusOK, "ok") })
	s.e.POST(pathSessions, s.handleCreateSession)

	g := s.e.Group(pathSessions + "/:id")
	g.GET("", s.handleSessionAlive)
	g.DELETE("", s.handleCloseSession)
	g.POST("/create", s.handleCreate)
	g.POST("/get", s.handleGet)
	g.POST("/update", s.handleUpdate)
	g.POST("/delete", s.handleDelete)
	g.POST("/schema", s.handleSchema)
	g.POST("/sync", s.handleSync)
	g.POST("/latest-sync-token", s.handleLatestSyncToken)
	g.POST("/search", s.handleSearch)
	g.POST("/test", s.handleTest)
}

// Handler exposes the routes for an http.Server or httptest.
func (s *Server) Handler() http.Handler { return s.e }

// Run reaps idle sessions until ctx is done, then closes every session.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case <-ticker.C:
			s.reap()
		}
	}
}

func (s *Server) reap() {
	cutoff := s.now().Add(-s.idle)
	var expired []*hostSession
	s.mu.Lock()
	for id, hs := range s.sessions {
		// A locked session is serving a call.
		if !hs.mu.TryLock() {
			continue
		}
		idle := hs.lastUsed.Before(cutoff)
		hs.mu.Unlock()
		if idle {
			expired = append(expired, hs)
			delete(s.sessions, id)
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()
	for _, hs := range expired {
		_ = hs.facade.Close()
	}
	if len(expired) > 0 {
		slog.Info("closed idle connector sessions", "count", len(expired))
	}
	metrics.ConnectorServerSessions.Set(float64(n))
}

func (s *Server) closeAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*hostSession)
	s.mu.Unlock()
	for _, hs := range sessions {
		_ = hs.facade.Close()
	}
	metrics.ConnectorServerSessions.Set(0)
}

func writeError(c *echo.Context, err error) error {
	w, status := toWireError(err)
	if status >= http.StatusInternalServerError {
		slog.Warn("connector server request failed", "path", c.Request().URL.Path, "err", err)
	}
	return c.JSON(status, w)
}

func badRequest(c *echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, wireError{Kind: errKindBadRequest, Message: err.Error()})
}

func bearerKey(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

func (s *Server) handleCreateSession(c *echo.Context) error {
	key := bearerKey(c.Request())
	ok, err := argon2id.ComparePasswordAndHash(key, s.keyHash)
	if err != nil {
		slog.Error("connector server key hash is invalid", "err", err)
		return writeError(c, errors.New("connector server misconfigured"))
	}
	if key == "" || !ok {
		return writeError(c, ErrUnauthorized)
	}

	var req sessionRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return badRequest(c, err)
	}
	ck, err := framework.ParseConnectorKey(req.ConnectorKey)
	if err != nil {
		return badRequest(c, err)
	}
	bundle, found := s.registry.Get(ck)
	if !found {
		return badRequest(c, fmt.Errorf("connector %s is not hosted here", ck.FullName()))
	}
	props, err := decodeProperties(req.Properties)
	if err != nil {
		return badRequest(c, err)
	}
	opts, err := decodeOptions(req.DefaultOptions)
	if err != nil {
		return badRequest(c, err)
	}

	id := uuid.NewString()
	f, err := local.NewFacade(bundle, framework.APIConfiguration{
		Properties:                props,
		ConnectorPoolingSupported: true,
		PoolConfiguration:         &framework.ObjectPoolConfiguration{MaxObjects: 1, MaxIdle: 1},
		ProducerBufferSize:        req.ProducerBufferSize,
		DefaultOperationOptions:   opts,
	}, "")
	if err != nil {
		return badRequest(c, err)
	}
	// Initialize now so configuration errors surface on the handshake.
	if err := f.Warm(c.Request().Context()); err != nil {
		_ = f.Close()
		return writeError(c, err)
	}

	ops := f.SupportedOperations()
	names := make([]string, 0, len(ops))
	for _, op := range ops {
		names = append(names, string(op))
	}

	s.mu.Lock()
	s.sessions[id] = &hostSession{key: ck, facade: f, lastUsed: s.now()}
	n := len(s.sessions)
	s.mu.Unlock()
	metrics.ConnectorServerSessions.Set(float64(n))
	slog.Debug("opened connector session", "connector", ck.FullName(), "session", id)

	return c.JSON(http.StatusCreated, sessionResponse{SessionID: id, Operations: names})
}

// session looks the session up, locks it and returns an unlock func.
func (s *Server) session(c *echo.Context) (*hostSession, func(), error) {
	s.mu.Lock()
	hs, ok := s.sessions[c.Param("id")]
	s.mu.Unlock()
	if !ok {
		return nil, nil, errSessionNotFound
	}
	hs.mu.Lock()
	hs.lastUsed = s.now()
	return hs, func() {
		hs.lastUsed = s.now()
		hs.mu.Unlock()
	}, nil
}

func (s *Server) handleSessionAlive(c *echo.Context) error {
	_, done, err := s.session(c)
	if err != nil {
		return writeError(c, err)
	}
	done()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleCloseSession(c *echo.Context) error {
	s.mu.Lock()
	hs, ok := s.sessions[c.Param("id")]
	delete(s.sessions, c.Param("id"))
	n := len(s.sessions)
	s.mu.Unlock()
	if ok {
		hs.mu.Lock()
		_ = hs.facade.Close()
		hs.mu.Unlock()
	}
	metrics.ConnectorServerSessions.Set(float64(n))
	return c.NoContent(http.StatusNoContent)
}

// operation decodes the request and runs fn on the session's facade.
func (s *Server) operation(c *echo.Context, fn func(ctx context.Context, f *local.Facade, req opRequest) (opResponse, error)) error {
	var req opRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return badRequest(c, err)
	}
	hs, done, err := s.session(c)
	if err != nil {
		return writeError(c, err)
	}
	defer done()
	resp, err := fn(c.Request().Context(), hs.facade, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCreate(c *echo.Context) error {
	return s.operation(c, func(ctx context.Context, f *local.Facade, req opRequest) (opResponse, error) {
		attrs, opts, err := attributesAndOptions(req)
		if err != nil {
			return opResponse{}, err
		}
		uid, err := f.Create(ctx, req.ObjectClass.objectClass(), attrs, opts)
		if err != nil {
			return opResponse{}, err
		}
		w := encodeUid(uid)
		return opResponse{Uid: &w}, nil
	})
}

func (s *Server) handleGet(c *echo.Context) error {
	return s.operation(c, func(ctx context.Context, f *local.Facade, req opRequest) (opResponse, error) {
		opts, err := decodeOptions(req.Options)
		if err != nil {
			return opResponse{}, err
		}
		obj, err := f.Get(ctx, req.ObjectClass.objectClass(), requestUid(req), opts)
		if err != nil {
			return opResponse{}, err
		}
		w, err := encodeObject(obj)
		if err != nil {
			return opResponse{}, err
		}
		return opResponse{Object: &w}, nil
	})
}

func (s *Server) handleUpdate(c *echo.Context) error {
	return s.operation(c, func(ctx context.Context, f *local.Facade, req opRequest) (opResponse, error) {
		attrs, opts, err := attributesAndOptions(req)
		if err != nil {
			return opResponse{}, err
		}
		uid, err := f.Update(ctx, req.ObjectClass.objectClass(), requestUid(req), attrs, opts)
		if err != nil {
			return opResponse{}, err
		}
		w := encodeUid(uid)
		return opResponse{Uid: &w}, nil
	})
}

func (s *Server) handleDelete(c *echo.Context) error {
	return s.operation(c, func(ctx context.Context, f *local.Facade, req opRequest) (opResponse, error) {
		opts, err := decodeOptions(req.Options)
		if err != nil {
			return opResponse{}, err
		}
		return opResponse{}, f.Delete(ctx, req.ObjectClass.objectClass(), requestUid(req), opts)
	})
}

func (s *Server) handleSchema(c *echo.Context) error {
	return s.operation(c, func(ctx context.Context, f *local.Facade, _ opRequest) (opResponse, error) {
		schema, err := f.Schema(ctx)
		if err != nil {
			return opResponse{}, err
		}
		w, err := encodeSchema(schema)
		if err != nil {
			return opResponse{}, err
		}
		return opResponse{Schema: &w}, nil
	})
}

func (s *Server) handleLatestSyncToken(c *echo.Context) error {
	return s.operation(c, func(ctx context.Context, f *local.Facade, req opRequest) (opResponse, error) {
		token, err := f.LatestSyncToken(ctx, req.ObjectClass.objectClass())
		if err != nil {
			return opResponse{}, err
		}
		w, err := encodeSyncToken(token)
		if err != nil {
			return opResponse{}, err
		}
		return opResponse{Token: w}, nil
	})
}

func (s *Server) handleTest(c *echo.Context) error {
	return s.operation(c, func(ctx context.Context, f *local.Facade, _ opRequest) (opResponse, error) {
		return opResponse{}, f.Test(ctx)
	})
}

func (s *Server) handleSync(c *echo.Context) error {
	return s.stream(c, func(ctx context.Context, f *local.Facade, req opRequest, emit func(streamLine) bool) error {
		token, err := decodeSyncToken(req.Token)
		if err != nil {
			return err
		}
		opts, err := decodeOptions(req.Options)
		if err != nil {
			return err
		}
		var encodeErr error
		err = f.Sync(ctx, req.ObjectClass.objectClass(), token, func(d framework.SyncDelta) bool {
			w, err := encodeSyncDelta(d)
			if err != nil {
				encodeErr = err
				return false
			}
			return emit(streamLine{Delta: &w})
		}, opts)
		return errors.Join(err, encodeErr)
	})
}

func (s *Server) handleSearch(c *echo.Context) error {
	return s.stream(c, func(ctx context.Context, f *local.Facade, req opRequest, emit func(streamLine) bool) error {
		filter, err := decodeFilter(req.Filter)
		if err != nil {
			return err
		}
		opts, err := decodeOptions(req.Options)
		if err != nil {
			return err
		}
		var encodeErr error
		err = f.Search(ctx, req.ObjectClass.objectClass(), filter, func(o framework.ConnectorObject) bool {
			w, err := encodeObject(o)
			if err != nil {
				encodeErr = err
				return false
			}
			return emit(streamLine{Object: &w})
		}, opts)
		return errors.Join(err, encodeErr)
	})
}

// stream writes NDJSON lines as fn emits them. emit returns false once the
// client has gone away, which stops the connector.
func (s *Server) stream(c *echo.Context, fn func(ctx context.Context, f *local.Facade, req opRequest, emit func(streamLine) bool) error) error {
	var req opRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return badRequest(c, err)
	}
	hs, done, err := s.session(c)
	if err != nil {
		return writeError(c, err)
	}
	defer done()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, contentTypeNDJSON)
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)
	ctx := c.Request().Context()

	emit := func(line streamLine) bool {
		if ctx.Err() != nil {
			return false
		}
		if err := enc.Encode(line); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	if err := fn(ctx, hs.facade, req, emit); err != nil {
		we, _ := toWireError(err)
		emit(streamLine{Error: &we})
		return nil
	}
	emit(streamLine{Done: true})
	return nil
}

func requestUid(req opRequest) framework.Uid {
	if req.Uid == nil {
		return framework.Uid{}
	}
	return req.Uid.uid()
}

func attributesAndOptions(req opRequest) ([]framework.Attribute, framework.OperationOptions, error) {
	attrs, err := decodeAttributes(req.Attributes)
	if err != nil {
		return nil, nil, err
	}
	opts, err := decodeOptions(req.Options)
	if err != nil {
		return nil, nil, err
	}
	return attrs, opts, nil
}

// AllowList is the YAML file naming the bundles a connector server hosts.
type AllowList struct {
	Bundles []string `yaml:"bundles"`
}

// LoadAllowList reads an allow-list file.
func LoadAllowList(path string) (AllowList, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return AllowList{}, err
	}
	var out AllowList
	if err := yaml.Unmarshal(b, &out); err != nil {
		return AllowList{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(out.Bundles) == 0 {
		return AllowList{}, fmt.Errorf("%s lists no bundles", path)
	}
	return out, nil
}
