package framework

// SyncToken is the connector's resume point.
type SyncToken struct {
	Value any
}

type SyncDeltaType string

const (
	DeltaCreate         SyncDeltaType = "CREATE"
	DeltaUpdate         SyncDeltaType = "UPDATE"
	DeltaCreateOrUpdate SyncDeltaType = "CREATE_OR_UPDATE"
	DeltaDelete         SyncDeltaType = "DELETE"
)

// SyncDelta is one change. Object is nil for deletes and for connectors that
// only report identifiers.
type SyncDelta struct {
	Token       SyncToken
	DeltaType   SyncDeltaType
	Uid         Uid
	PreviousUid *Uid
	ObjectClass ObjectClass
	Object      *ConnectorObject
}

// SyncResultsHandler returns false to stop delivery.
type SyncResultsHandler func(SyncDelta) bool

// ResultsHandler returns false to stop a search.
type ResultsHandler func(ConnectorObject) bool
