package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/open-sspm/open-idm/internal/connectors/framework"
	"github.com/open-sspm/open-idm/internal/connectors/pool"
)

// Facade runs operations on a connector server. Sessions on the server are
// pooled: opening one authenticates the key and initializes the connector.
type Facade struct {
	key     framework.ConnectorKey
	cfg     framework.APIConfiguration
	info    framework.RemoteFrameworkConnectionInfo
	baseURL string
	client  *http.Client
	ops     []framework.OperationType
	pool    *pool.Pool[*session]
}

type session struct {
	id string
}

type DialOption func(*Facade)

// WithHTTPClient replaces the default client, for custom TLS roots.
func WithHTTPClient(c *http.Client) DialOption {
	return func(f *Facade) { f.client = c }
}

// Dial opens the first session, which also learns the operations the
// connector supports.
func Dial(ctx context.Context, info framework.RemoteFrameworkConnectionInfo, key framework.ConnectorKey, cfg framework.APIConfiguration, poolName string, opts ...DialOption) (*Facade, error) {
	scheme := "http"
	if info.UseSSL {
		scheme = "https"
	}
	f := &Facade{
		key:     key,
		cfg:     cfg,
		info:    info,
		baseURL: scheme + "://" + net.JoinHostPort(info.Host, strconv.Itoa(info.Port)),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = info.Timeout
		f.client = &http.Client{Transport: transport}
	}
	if !info.UseSSL {
		slog.Warn("connector server connection is not encrypted", "host", info.Host, "port", info.Port)
	}

	pc := framework.DefaultObjectPoolConfiguration()
	if cfg.PoolConfiguration != nil {
		pc = *cfg.PoolConfiguration
	}
	p, err := pool.New(pool.Config{
		Name:             poolName,
		MaxObjects:       pc.MaxObjects,
		MinIdle:          pc.MinIdle,
		MaxIdle:          pc.MaxIdle,
		MaxWait:          pc.MaxWait,
		MinEvictableIdle: pc.MinEvictableIdleTime,
		EvictionInterval: 30 * time.Second,
	}, pool.Factory[*session]{
		New:      f.openSession,
		Validate: f.checkSession,
		Destroy:  f.closeSession,
	})
	if err != nil {
		return nil, err
	}
	f.pool = p

	s, err := p.Borrow(ctx)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.Return(s)
	return f, nil
}

func (f *Facade) url(parts ...string) string {
	u := f.baseURL + pathSessions
	for _, p := range parts {
		u += "/" + p
	}
	return u
}

func (f *Facade) unaryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.info.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.info.Timeout)
}

// do sends body as JSON and returns the response when its status is
// wantStatus; any other status is decoded as a wireError.
func (f *Facade) do(ctx context.Context, method, url string, body any, wantStatus int, auth bool) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		clear, err := f.info.Key.Reveal()
		if err != nil {
			return nil, fmt.Errorf("connector server key: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+clear)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", framework.ErrConnectionFailed, err)
	}
	if resp.StatusCode == wantStatus {
		return resp, nil
	}
	defer resp.Body.Close()
	var we wireError
	if err := json.NewDecoder(resp.Body).Decode(&we); err != nil || we.Kind == "" {
		return nil, fmt.Errorf("%w: unexpected status %s", framework.ErrConnectionFailed, resp.Status)
	}
	return nil, fromWireError(we)
}

func (f *Facade) openSession(ctx context.Context) (*session, error) {
	props, err := encodeProperties(f.cfg.Properties)
	if err != nil {
		return nil, err
	}
	opts, err := encodeOptions(f.cfg.DefaultOperationOptions)
	if err != nil {
		return nil, err
	}
	ctx, cancel := f.unaryContext(ctx)
	defer cancel()
	resp, err := f.do(ctx, http.MethodPost, f.url(), sessionRequest{
		ConnectorKey:       f.key.FullName(),
		Properties:         props,
		ProducerBufferSize: f.cfg.ProducerBufferSize,
		DefaultOptions:     opts,
	}, http.StatusCreated, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if f.ops == nil {
		ops := make([]framework.OperationType, 0, len(out.Operations))
		for _, op := range out.Operations {
			ops = append(ops, framework.OperationType(op))
		}
		f.ops = ops
	}
	return &session{id: out.SessionID}, nil
}

func (f *Facade) checkSession(ctx context.Context, s *session) error {
	ctx, cancel := f.unaryContext(ctx)
	defer cancel()
	resp, err := f.do(ctx, http.MethodGet, f.url(s.id), nil, http.StatusNoContent, false)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (f *Facade) closeSession(s *session) {
	ctx, cancel := f.unaryContext(context.Background())
	defer cancel()
	resp, err := f.do(ctx, http.MethodDelete, f.url(s.id), nil, http.StatusNoContent, false)
	if err != nil {
		slog.Debug("failed to close connector session", "host", f.info.Host, "err", err)
		return
	}
	_ = resp.Body.Close()
}

// withSession runs fn on a pooled session. A session the server no longer
// knows is replaced once.
func (f *Facade) withSession(ctx context.Context, fn func(*session) error) error {
	for attempt := 0; ; attempt++ {
		s, err := f.pool.Borrow(ctx)
		if err != nil {
			return err
		}
		err = fn(s)
		switch {
		case errors.Is(err, errSessionNotFound):
			f.pool.Invalidate(s)
			if attempt == 0 {
				continue
			}
			return fmt.Errorf("%w: %w", framework.ErrConnectionFailed, err)
		case errors.Is(err, framework.ErrConnectionFailed):
			f.pool.Invalidate(s)
		default:
			f.pool.Return(s)
		}
		return err
	}
}

func (f *Facade) unary(ctx context.Context, op string, req opRequest) (opResponse, error) {
	var out opResponse
	err := f.withSession(ctx, func(s *session) error {
		ctx, cancel := f.unaryContext(ctx)
		defer cancel()
		resp, err := f.do(ctx, http.MethodPost, f.url(s.id, op), req, http.StatusOK, false)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return json.NewDecoder(resp.Body).Decode(&out)
	})
	return out, err
}

// stream delivers NDJSON lines to fn until the server ends the stream or fn
// returns false. Returning false drops the connection, which stops the
// connector on the server.
func (f *Facade) stream(ctx context.Context, op string, req opRequest, fn func(streamLine) (bool, error)) error {
	return f.withSession(ctx, func(s *session) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		resp, err := f.do(ctx, http.MethodPost, f.url(s.id, op), req, http.StatusOK, false)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		dec := json.NewDecoder(resp.Body)
		for {
			var line streamLine
			if err := dec.Decode(&line); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("%w: %s stream ended early: %w", framework.ErrConnectionFailed, op, err)
			}
			switch {
			case line.Error != nil:
				return fromWireError(*line.Error)
			case line.Done:
				return nil
			}
			more, err := fn(line)
			if err != nil || !more {
				return err
			}
		}
	})
}

func (f *Facade) supports(op framework.OperationType) error {
	for _, o := range f.ops {
		if o == op {
			return nil
		}
	}
	return fmt.Errorf("%s: %w", op, framework.ErrUnsupportedOperation)
}

func (f *Facade) SupportedOperations() []framework.OperationType {
	return append([]framework.OperationType(nil), f.ops...)
}

func (f *Facade) Create(ctx context.Context, oc framework.ObjectClass, attrs []framework.Attribute, opts framework.OperationOptions) (framework.Uid, error) {
	if err := f.supports(framework.CreateOperation); err != nil {
		return framework.Uid{}, err
	}
	req, err := writeRequest(oc, nil, attrs, opts)
	if err != nil {
		return framework.Uid{}, err
	}
	resp, err := f.unary(ctx, "create", req)
	if err != nil {
		return framework.Uid{}, err
	}
	return responseUid(resp)
}

func (f *Facade) Get(ctx context.Context, oc framework.ObjectClass, uid framework.Uid, opts framework.OperationOptions) (framework.ConnectorObject, error) {
	if err := f.supports(framework.GetOperation); err != nil {
		return framework.ConnectorObject{}, err
	}
	req, err := writeRequest(oc, &uid, nil, opts)
	if err != nil {
		return framework.ConnectorObject{}, err
	}
	resp, err := f.unary(ctx, "get", req)
	if err != nil {
		return framework.ConnectorObject{}, err
	}
	if resp.Object == nil {
		return framework.ConnectorObject{}, errors.New("connector server returned no object")
	}
	return decodeObject(*resp.Object)
}

func (f *Facade) Update(ctx context.Context, oc framework.ObjectClass, uid framework.Uid, attrs []framework.Attribute, opts framework.OperationOptions) (framework.Uid, error) {
	if err := f.supports(framework.UpdateOperation); err != nil {
		return framework.Uid{}, err
	}
	req, err := writeRequest(oc, &uid, attrs, opts)
	if err != nil {
		return framework.Uid{}, err
	}
	resp, err := f.unary(ctx, "update", req)
	if err != nil {
		return framework.Uid{}, err
	}
	return responseUid(resp)
}

func (f *Facade) Delete(ctx context.Context, oc framework.ObjectClass, uid framework.Uid, opts framework.OperationOptions) error {
	if err := f.supports(framework.DeleteOperation); err != nil {
		return err
	}
	req, err := writeRequest(oc, &uid, nil, opts)
	if err != nil {
		return err
	}
	_, err = f.unary(ctx, "delete", req)
	return err
}

func (f *Facade) Schema(ctx context.Context) (framework.Schema, error) {
	if err := f.supports(framework.SchemaOperation); err != nil {
		return framework.Schema{}, err
	}
	resp, err := f.unary(ctx, "schema", opRequest{})
	if err != nil {
		return framework.Schema{}, err
	}
	if resp.Schema == nil {
		return framework.Schema{}, errors.New("connector server returned no schema")
	}
	return decodeSchema(*resp.Schema)
}

func (f *Facade) Sync(ctx context.Context, oc framework.ObjectClass, token *framework.SyncToken, handler framework.SyncResultsHandler, opts framework.OperationOptions) error {
	if err := f.supports(framework.SyncOperation); err != nil {
		return err
	}
	wt, err := encodeSyncToken(token)
	if err != nil {
		return err
	}
	wo, err := encodeOptions(opts)
	if err != nil {
		return err
	}
	req := opRequest{ObjectClass: encodeObjectClass(oc), Token: wt, Options: wo}
	return f.stream(ctx, "sync", req, func(line streamLine) (bool, error) {
		if line.Delta == nil {
			return true, nil
		}
		d, err := decodeSyncDelta(*line.Delta)
		if err != nil {
			return false, err
		}
		return handler(d), nil
	})
}

func (f *Facade) LatestSyncToken(ctx context.Context, oc framework.ObjectClass) (*framework.SyncToken, error) {
	if err := f.supports(framework.SyncOperation); err != nil {
		return nil, err
	}
	resp, err := f.unary(ctx, "latest-sync-token", opRequest{ObjectClass: encodeObjectClass(oc)})
	if err != nil {
		return nil, err
	}
	return decodeSyncToken(resp.Token)
}

func (f *Facade) Search(ctx context.Context, oc framework.ObjectClass, filter framework.Filter, handler framework.ResultsHandler, opts framework.OperationOptions) error {
	if err := f.supports(framework.SearchOperation); err != nil {
		return err
	}
	wf, err := encodeFilter(filter)
	if err != nil {
		return err
	}
	wo, err := encodeOptions(opts)
	if err != nil {
		return err
	}
	req := opRequest{ObjectClass: encodeObjectClass(oc), Filter: wf, Options: wo}
	return f.stream(ctx, "search", req, func(line streamLine) (bool, error) {
		if line.Object == nil {
			return true, nil
		}
		o, err := decodeObject(*line.Object)
		if err != nil {
			return false, err
		}
		return handler(o), nil
	})
}

func (f *Facade) Test(ctx context.Context) error {
	if err := f.supports(framework.TestOperation); err != nil {
		return err
	}
	_, err := f.unary(ctx, "test", opRequest{})
	return err
}

// Close ends every pooled session.
func (f *Facade) Close() error {
	f.pool.Close()
	return nil
}

func writeRequest(oc framework.ObjectClass, uid *framework.Uid, attrs []framework.Attribute, opts framework.OperationOptions) (opRequest, error) {
	req := opRequest{ObjectClass: encodeObjectClass(oc)}
	if uid != nil {
		w := encodeUid(*uid)
		req.Uid = &w
	}
	var err error
	if req.Attributes, err = encodeAttributes(attrs); err != nil {
		return opRequest{}, err
	}
	if req.Options, err = encodeOptions(opts); err != nil {
		return opRequest{}, err
	}
	return req, nil
}

func responseUid(resp opResponse) (framework.Uid, error) {
	if resp.Uid == nil {
		return framework.Uid{}, errors.New("connector server returned no uid")
	}
	return resp.Uid.uid(), nil
}

var _ framework.Facade = (*Facade)(nil)
