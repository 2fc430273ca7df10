package remote

import (
	"errors"
	"net/http"

	"github.com/open-sspm/open-idm/internal/connectors/framework"
)

const (
	pathSessions = "/v1/sessions"
	// ndjson carries search results and sync deltas, one JSON value per line.
	contentTypeNDJSON = "application/x-ndjson"
)

type sessionRequest struct {
	ConnectorKey       string               `json:"connector_key"`
	Properties         []wireProperty       `json:"properties"`
	ProducerBufferSize int                  `json:"producer_buffer_size,omitempty"`
	DefaultOptions     map[string]wireValue `json:"default_options,omitempty"`
}

type sessionResponse struct {
	SessionID  string   `json:"session_id"`
	Operations []string `json:"operations"`
}

type opRequest struct {
	ObjectClass wireObjectClass      `json:"object_class"`
	Uid         *wireUid             `json:"uid,omitempty"`
	Attributes  []wireAttribute      `json:"attributes,omitempty"`
	Options     map[string]wireValue `json:"options,omitempty"`
	Token       *wireSyncToken       `json:"token,omitempty"`
	Filter      []wireFilterNode     `json:"filter,omitempty"`
}

type opResponse struct {
	Uid    *wireUid       `json:"uid,omitempty"`
	Object *wireObject    `json:"object,omitempty"`
	Schema *wireSchema    `json:"schema,omitempty"`
	Token  *wireSyncToken `json:"token,omitempty"`
}

// streamLine is one NDJSON line. The last line of a complete stream has
// Done or Error set.
type streamLine struct {
	Delta  *wireSyncDelta `json:"delta,omitempty"`
	Object *wireObject    `json:"object,omitempty"`
	Error  *wireError     `json:"error,omitempty"`
	Done   bool           `json:"done,omitempty"`
}

type wireError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

const (
	errKindUnknownUID        = "unknown_uid"
	errKindAlreadyExists     = "already_exists"
	errKindUnsupported       = "unsupported_operation"
	errKindInvalidCredential = "invalid_credential"
	errKindConnectionFailed  = "connection_failed"
	errKindUnauthorized      = "unauthorized"
	errKindSessionNotFound   = "session_not_found"
	errKindBadRequest        = "bad_request"
	errKindInternal          = "internal"
)

var (
	// ErrUnauthorized is returned when the host rejects the shared key.
	ErrUnauthorized    = errors.New("connector server rejected the key")
	errSessionNotFound = errors.New("connector server session not found")
)

var errorKinds = []struct {
	kind   string
	err    error
	status int
}{
	{errKindUnknownUID, framework.ErrUnknownUID, http.StatusNotFound},
	{errKindAlreadyExists, framework.ErrAlreadyExists, http.StatusConflict},
	{errKindUnsupported, framework.ErrUnsupportedOperation, http.StatusNotImplemented},
	{errKindInvalidCredential, framework.ErrInvalidCredential, http.StatusUnprocessableEntity},
	{errKindConnectionFailed, framework.ErrConnectionFailed, http.StatusBadGateway},
	{errKindUnauthorized, ErrUnauthorized, http.StatusUnauthorized},
	{errKindSessionNotFound, errSessionNotFound, http.StatusGone},
}

func toWireError(err error) (wireError, int) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return wireError{Kind: k.kind, Message: err.Error()}, k.status
		}
	}
	return wireError{Kind: errKindInternal, Message: err.Error()}, http.StatusInternalServerError
}

// remoteError keeps the host's message while matching the sentinel for its
// kind under errors.Is.
type remoteError struct {
	kind    string
	message string
	err     error
}

func (e *remoteError) Error() string { return e.message }
func (e *remoteError) Unwrap() error { return e.err }

func fromWireError(w wireError) error {
	for _, k := range errorKinds {
		if k.kind == w.Kind {
			return &remoteError{kind: w.Kind, message: w.Message, err: k.err}
		}
	}
	return &remoteError{kind: w.Kind, message: w.Message}
}
