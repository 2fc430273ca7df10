// Package memory is a connector bundle that keeps accounts and groups in
// process. Every change is journaled so Sync can resume from any token the
// connector handed out.
package memory

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/open-sspm/open-idm/internal/connectors/framework"
)

const (
	BundleName    = "open-idm-memory"
	BundleVersion = "1.0"
	ConnectorName = "MemoryConnector"

	// PropertyDirectory selects the shared directory an instance works on.
	// Instances configured with the same name see the same objects.
	PropertyDirectory = "directory"
	// PropertyCredential, when set, must match on Test.
	PropertyCredential = "credential"
)

// Key identifies the memory connector.
var Key = framework.ConnectorKey{BundleName: BundleName, BundleVersion: BundleVersion, ConnectorName: ConnectorName}

// Bundle returns the memory bundle definition.
func Bundle() framework.Bundle {
	return framework.Bundle{
		Key:         Key,
		DisplayName: "In-memory directory",
		ConfigurationProperties: []framework.ConfigurationProperty{
			{Name: PropertyDirectory, Type: "string", Required: true, DisplayName: "Directory", Order: 1, Values: []any{"default"}},
			{Name: PropertyCredential, Type: "secret", Confidential: true, DisplayName: "Credential", Order: 2},
		},
		New: func() framework.Connector { return &Connector{} },
	}
}

var (
	directoriesMu sync.Mutex
	directories   = map[string]*Directory{}
)

// Open returns the shared directory called name, creating it if needed.
func Open(name string) *Directory {
	directoriesMu.Lock()
	defer directoriesMu.Unlock()
	d, ok := directories[name]
	if !ok {
		d = NewDirectory()
		directories[name] = d
	}
	return d
}

type entry struct {
	uid      string
	revision int64
	attrs    []framework.Attribute
}

type change struct {
	seq      int64
	class    string
	kind     framework.SyncDeltaType
	uid      string
	previous string
	object   *framework.ConnectorObject
}

// Directory is the object store behind connector instances.
type Directory struct {
	mu      sync.Mutex
	classes map[string]map[string]*entry
	order   map[string][]string
	journal []change
	seq     int64
	// unavailable makes every operation fail with ErrConnectionFailed.
	unavailable bool
	credential  *framework.GuardedString
}

func NewDirectory() *Directory {
	return &Directory{
		classes: map[string]map[string]*entry{},
		order:   map[string][]string{},
	}
}

// SetUnavailable toggles simulated connection failures.
func (d *Directory) SetUnavailable(v bool) {
	d.mu.Lock()
	d.unavailable = v
	d.mu.Unlock()
}

func (d *Directory) check() error {
	if d.unavailable {
		return framework.ErrConnectionFailed
	}
	return nil
}

func (d *Directory) class(name string) map[string]*entry {
	c, ok := d.classes[name]
	if !ok {
		c = map[string]*entry{}
		d.classes[name] = c
	}
	return c
}

func (d *Directory) object(oc string, e *entry) framework.ConnectorObject {
	attrs := make([]framework.Attribute, len(e.attrs))
	for i, a := range e.attrs {
		a.Values = slices.Clone(a.Values)
		attrs[i] = a
	}
	return framework.ConnectorObject{
		ObjectClass: framework.ObjectClass{Type: oc},
		Uid:         framework.Uid{Value: e.uid, Revision: fmt.Sprint(e.revision)},
		Attributes:  attrs,
	}
}

func (d *Directory) record(oc string, kind framework.SyncDeltaType, uid, previous string, e *entry) {
	d.seq++
	c := change{seq: d.seq, class: oc, kind: kind, uid: uid, previous: previous}
	if e != nil {
		obj := d.object(oc, e)
		c.object = &obj
	}
	d.journal = append(d.journal, c)
}

func nameOf(attrs []framework.Attribute) string {
	for _, a := range attrs {
		if a.Name == framework.NameName {
			s, _ := a.SingleValue().(string)
			return s
		}
	}
	return ""
}

// Seed stores an object directly, bypassing validation, and journals it as
// a create.
func (d *Directory) Seed(oc, uid string, attrs []framework.Attribute) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e := &entry{uid: uid, revision: 1, attrs: attrs}
	d.class(oc)[uid] = e
	d.order[oc] = append(d.order[oc], uid)
	d.record(oc, framework.DeltaCreate, uid, "", e)
}

func (d *Directory) create(oc string, attrs []framework.Attribute) (framework.Uid, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return framework.Uid{}, err
	}
	name := nameOf(attrs)
	objects := d.class(oc)
	for _, e := range objects {
		if name != "" && strings.EqualFold(nameOf(e.attrs), name) {
			return framework.Uid{}, fmt.Errorf("%s %q: %w", oc, name, framework.ErrAlreadyExists)
		}
	}
	uid := name
	if uid == "" {
		uid = uuid.NewString()
	}
	if _, taken := objects[uid]; taken {
		uid = uuid.NewString()
	}
	e := &entry{uid: uid, revision: 1, attrs: stored(attrs)}
	objects[uid] = e
	d.order[oc] = append(d.order[oc], uid)
	d.record(oc, framework.DeltaCreate, uid, "", e)
	return framework.Uid{Value: uid, Revision: "1"}, nil
}

// stored drops attributes a directory never keeps and copies value slices.
func stored(attrs []framework.Attribute) []framework.Attribute {
	out := make([]framework.Attribute, 0, len(attrs))
	for _, a := range attrs {
		if a.Name == framework.UIDName {
			continue
		}
		a.Values = slices.Clone(a.Values)
		out = append(out, a)
	}
	return out
}

func (d *Directory) get(oc, uid string) (framework.ConnectorObject, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return framework.ConnectorObject{}, err
	}
	e, ok := d.class(oc)[uid]
	if !ok {
		return framework.ConnectorObject{}, fmt.Errorf("%s %q: %w", oc, uid, framework.ErrUnknownUID)
	}
	return d.object(oc, e), nil
}

// update replaces the given attributes. A new __NAME__ renames the object,
// which changes its uid.
func (d *Directory) update(oc, uid string, attrs []framework.Attribute) (framework.Uid, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return framework.Uid{}, err
	}
	objects := d.class(oc)
	e, ok := objects[uid]
	if !ok {
		return framework.Uid{}, fmt.Errorf("%s %q: %w", oc, uid, framework.ErrUnknownUID)
	}
	rename := nameOf(attrs)
	if rename == uid {
		rename = ""
	}
	if _, taken := objects[rename]; rename != "" && taken {
		return framework.Uid{}, fmt.Errorf("%s %q: %w", oc, rename, framework.ErrAlreadyExists)
	}
	for _, a := range stored(attrs) {
		idx := slices.IndexFunc(e.attrs, func(x framework.Attribute) bool { return x.Name == a.Name })
		if idx < 0 {
			e.attrs = append(e.attrs, a)
		} else {
			e.attrs[idx] = a
		}
	}
	e.revision++

	previous := ""
	if rename != "" {
		delete(objects, uid)
		e.uid = rename
		objects[rename] = e
		order := d.order[oc]
		order[slices.Index(order, uid)] = rename
		previous = uid
	}
	d.record(oc, framework.DeltaUpdate, e.uid, previous, e)
	return framework.Uid{Value: e.uid, Revision: fmt.Sprint(e.revision)}, nil
}

func (d *Directory) delete(oc, uid string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	objects := d.class(oc)
	if _, ok := objects[uid]; !ok {
		return fmt.Errorf("%s %q: %w", oc, uid, framework.ErrUnknownUID)
	}
	delete(objects, uid)
	d.order[oc] = slices.DeleteFunc(d.order[oc], func(s string) bool { return s == uid })
	d.record(oc, framework.DeltaDelete, uid, "", nil)
	return nil
}

// snapshot returns the objects of oc in insertion order.
func (d *Directory) snapshot(oc string) ([]framework.ConnectorObject, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return nil, err
	}
	var out []framework.ConnectorObject
	objects := d.class(oc)
	for _, uid := range d.order[oc] {
		out = append(out, d.object(oc, objects[uid]))
	}
	return out, nil
}

// changesAfter returns journal entries of oc newer than seq.
func (d *Directory) changesAfter(oc string, seq int64) ([]change, int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return nil, 0, err
	}
	var out []change
	for _, c := range d.journal {
		if c.seq > seq && (oc == framework.AllClass || c.class == oc) {
			out = append(out, c)
		}
	}
	return out, d.seq, nil
}

func (d *Directory) latest() (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return 0, err
	}
	return d.seq, nil
}

func (d *Directory) alive() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.check()
}

// SetCredential makes Test require instances to be configured with cred.
func (d *Directory) SetCredential(cred *framework.GuardedString) {
	d.mu.Lock()
	d.credential = cred
	d.mu.Unlock()
}

func (d *Directory) Credential() *framework.GuardedString {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.credential
}
