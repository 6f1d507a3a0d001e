// Package cistron implements a single-threaded, in-process
// entity-component messaging bus: composite Objects assembled from
// Components that communicate exclusively through typed notifications
// (component creation, component destruction, named messages) routed
// by a World.
package cistron

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
)

// WorldOption customizes a World at construction time.
type WorldOption func(*World)

// WithLogger sets the *slog.Logger the World uses for diagnostic trace
// lines. A nil logger (or omitting this option) falls back to
// slog.Default().
func WithLogger(logger *slog.Logger) WorldOption {
	return func(w *World) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// World is the top-level registry: it creates and destroys objects,
// adds and removes components, owns the subscription tables,
// implements the re-entrancy lock protocol, and dispatches
// creation/destruction notifications and messages. It is the sole
// mutator of global bus state and must not be shared across
// goroutines: every operation assumes single-threaded, synchronous
// callers.
type World struct {
	id     uuid.UUID
	logger *slog.Logger

	nextObjectID    ObjectId
	nextComponentID ComponentId
	nextRequestID   RequestId

	objects    []*object
	components []*componentEntry

	componentNames map[string]RequestId
	messageNames   map[string]RequestId

	locks      []requestLock
	globalSubs [][]subscription

	activeLockCount int
	deferredDestroy []ComponentId

	reverse        map[ComponentId][]regRef
	requiredLedger map[ObjectId][]string
	nameDirectory  map[string]ObjectId
}

type componentEntry struct {
	id        ComponentId
	owner     ObjectId
	name      string
	destroyed bool
}

// NewWorld constructs an empty World, ready for use.
func NewWorld(opts ...WorldOption) *World {
	w := &World{
		id:             uuid.New(),
		logger:         slog.Default(),
		componentNames: make(map[string]RequestId),
		messageNames:   make(map[string]RequestId),
		reverse:        make(map[ComponentId][]regRef),
		requiredLedger: make(map[ObjectId][]string),
		nameDirectory:  make(map[string]ObjectId),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ID returns the World's instance-correlation id, useful for log
// lines when a process hosts more than one World.
func (w *World) ID() uuid.UUID { return w.id }

// Close releases no resources today; it exists so World usage can
// follow the familiar New/Close bracket idiom, and as the hook future
// bridge resources (see internal/bridge/mqtt) attach cleanup to.
func (w *World) Close() error { return nil }

// ---- object lifecycle -------------------------------------------------

// CreateObject allocates a fresh ObjectId, constructs an empty object,
// and returns its id. Never fails.
func (w *World) CreateObject() ObjectId {
	w.nextObjectID++
	id := w.nextObjectID
	w.objects = append(w.objects, newObject(id))
	return id
}

// FinalizeObject marks an object finalized and checks its
// required-components ledger once: if any required name has zero live
// components, the object (and everything it owns) is destroyed.
// Subsequent removal of a required component after finalization does
// not retroactively destroy the object.
func (w *World) FinalizeObject(oid ObjectId) error {
	obj, err := w.mustLiveObject(oid)
	if err != nil {
		return err
	}
	obj.finalized = true
	for _, name := range w.requiredLedger[oid] {
		if len(obj.liveComponentsNamed(w, name)) == 0 {
			return w.DestroyObject(oid)
		}
	}
	return nil
}

// DestroyObject marks the object slot destroyed, so further operations
// on oid fail with ErrUnknownObject, then destroys every component it
// owns (through DestroyComponent, respecting the lock protocol).
func (w *World) DestroyObject(oid ObjectId) error {
	obj, err := w.mustLiveObject(oid)
	if err != nil {
		return err
	}
	var ids []ComponentId
	for _, list := range obj.byName {
		ids = append(ids, list...)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	obj.destroyed = true
	for _, cid := range ids {
		if err := w.DestroyComponent(cid); err != nil {
			return err
		}
	}
	return nil
}

// RegisterName registers a process-wide unique name for oid. Fails
// with ErrDuplicateName if name is already registered to any object.
func (w *World) RegisterName(oid ObjectId, name string) error {
	if _, exists := w.nameDirectory[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	if _, err := w.mustLiveObject(oid); err != nil {
		return err
	}
	w.nameDirectory[name] = oid
	return nil
}

// ResolveName looks up an object id previously registered with
// RegisterName.
func (w *World) ResolveName(name string) (ObjectId, bool) {
	id, ok := w.nameDirectory[name]
	return id, ok
}

// ---- component lifecycle ----------------------------------------------

// AddComponent adopts c into oid: it sets the component's owner,
// inserts it into the object's name index, runs the component's
// activation hook, then — if a global COMPONENT subscription slot has
// ever materialized for c.Name() — delivers a CREATE envelope to every
// global subscriber (excluding c itself) and to every co-object local
// subscriber.
func (w *World) AddComponent(oid ObjectId, c Component) (ComponentHandle, error) {
	obj, err := w.mustLiveObject(oid)
	if err != nil {
		return ComponentHandle{}, err
	}
	name := c.Name()
	if name == "" {
		return ComponentHandle{}, fmt.Errorf("%w: component name must not be empty", ErrAddFailure)
	}

	w.nextComponentID++
	id := w.nextComponentID
	entry := &componentEntry{id: id, owner: oid, name: name}
	w.components = append(w.components, entry)
	obj.addComponentEntry(name, id)

	handle := w.handle(id)
	c.Activate(handle)

	rid, ok := w.lookupMaterialized(domainComponent, name)
	if !ok {
		return handle, nil
	}
	if err := w.activateLock(rid); err != nil {
		return handle, err
	}
	env := Envelope{Kind: EnvelopeCreate, Sender: handle}
	for _, s := range w.globalSubs[rid-1] {
		w.deliver(s, env, KindComponent, name)
	}
	obj.dispatchLocal(w, rid, env, KindComponent, name)
	w.releaseLock(rid)
	return handle, nil
}

// DestroyComponent destroys id, subject to the lock protocol: if any
// lock is active it is enqueued on the deferred-destruction list and
// actually destroyed once every active lock has released. Idempotent
// on an already-destroyed component.
func (w *World) DestroyComponent(id ComponentId) error {
	entry, err := w.mustComponent(id)
	if err != nil {
		return err
	}
	if entry.destroyed {
		return nil
	}
	if w.activeLockCount > 0 {
		w.deferredDestroy = append(w.deferredDestroy, id)
		return nil
	}
	return w.destroyComponentNow(entry)
}

func (w *World) destroyComponentNow(entry *componentEntry) error {
	for _, ref := range w.reverse[entry.id] {
		w.evict(ref, entry.id)
	}
	delete(w.reverse, entry.id)

	obj := w.objects[entry.owner-1]
	obj.removeComponent(entry.name, entry.id)
	entry.destroyed = true

	handle := w.handle(entry.id)
	env := Envelope{Kind: EnvelopeDestroy, Sender: handle}

	rid, ok := w.lookupMaterialized(domainComponent, entry.name)
	if !ok {
		return nil
	}
	if err := w.activateLock(rid); err != nil {
		return err
	}
	for _, s := range w.globalSubs[rid-1] {
		w.deliver(s, env, KindComponent, entry.name)
	}
	obj.dispatchLocal(w, rid, env, KindComponent, entry.name)
	w.releaseLock(rid)
	return nil
}

func (w *World) evict(ref regRef, cid ComponentId) {
	switch ref.scope {
	case scopeGlobal:
		if int(ref.id) <= len(w.globalSubs) {
			w.globalSubs[ref.id-1] = removeSubscriber(w.globalSubs[ref.id-1], cid)
		}
	case scopeLocal:
		obj := w.objects[ref.owner-1]
		if int(ref.id) <= len(obj.localSubs) {
			obj.localSubs[ref.id-1] = removeSubscriber(obj.localSubs[ref.id-1], cid)
		}
	}
}

func removeSubscriber(subs []subscription, cid ComponentId) []subscription {
	if len(subs) == 0 {
		return subs
	}
	filtered := subs[:0:0]
	for _, s := range subs {
		if s.subscriber != cid {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// ---- lookup / Lookup ----------------------------------------------------

// Lookup returns the interned RequestId for (kind, name), or 0 if the
// name is unknown or no global subscription slot has yet materialized
// for it. A name interned only through a local-scope registration
// reports 0 until the global table has grown to cover its id. The
// table is dense, so a global registration of any name interned later
// also materializes the slot.
func (w *World) Lookup(kind RequestKind, name string) RequestId {
	id, ok := w.lookupMaterialized(domainForKind(kind), name)
	if !ok {
		return 0
	}
	return id
}

func (w *World) lookupMaterialized(domain reqDomain, name string) (RequestId, bool) {
	id, ok := w.nameMap(domain)[name]
	if !ok {
		return 0, false
	}
	if int(id) > len(w.globalSubs) {
		return 0, false
	}
	return id, true
}

func (w *World) nameMap(domain reqDomain) map[string]RequestId {
	if domain == domainMessage {
		return w.messageNames
	}
	return w.componentNames
}

func (w *World) intern(domain reqDomain, name string) RequestId {
	m := w.nameMap(domain)
	if id, ok := m[name]; ok {
		return id
	}
	w.nextRequestID++
	id := w.nextRequestID
	m[name] = id
	w.locks = append(w.locks, requestLock{})
	return id
}

func (w *World) ensureGlobalSlot(id RequestId) {
	for len(w.globalSubs) < int(id) {
		w.globalSubs = append(w.globalSubs, nil)
	}
}

// ---- registration --------------------------------------------------------

// requestInternal interns (domain, name), then either queues the
// registration (if the request id's lock is currently held) or
// commits it immediately.
func (w *World) requestInternal(domain reqDomain, name string, scope registrationScope, owner ObjectId, sub subscription, oneOff bool) error {
	id := w.intern(domain, name)
	lock := &w.locks[id-1]
	if lock.locked {
		pr := pendingRegistration{domain: domain, name: name, scope: scope, owner: owner, sub: sub, oneOff: oneOff}
		if scope == scopeGlobal {
			lock.pendingGlobal = append(lock.pendingGlobal, pr)
		} else {
			lock.pendingLocal = append(lock.pendingLocal, pr)
		}
		return nil
	}
	return w.commitRegistration(id, domain, name, scope, owner, sub, oneOff)
}

func (w *World) commitRegistration(id RequestId, domain reqDomain, name string, scope registrationScope, owner ObjectId, sub subscription, oneOff bool) error {
	if !oneOff {
		w.persistRegistration(id, domain, name, scope, owner, sub)
	}
	if domain != domainComponent {
		// MESSAGE subscriptions never late-join sweep, so there is
		// nothing to protect with a lock.
		return nil
	}
	if err := w.activateLock(id); err != nil {
		return err
	}
	w.sweepLateJoin(id, name, scope, owner, sub)
	w.releaseLock(id)
	return nil
}

func (w *World) persistRegistration(id RequestId, domain reqDomain, name string, scope registrationScope, owner ObjectId, sub subscription) {
	switch domain {
	case domainComponent:
		switch scope {
		case scopeGlobal:
			w.ensureGlobalSlot(id)
			w.globalSubs[id-1] = append(w.globalSubs[id-1], sub)
			w.addReverse(sub.subscriber, regRef{domain: domain, id: id, scope: scopeGlobal})
		case scopeLocal:
			obj := w.objects[owner-1]
			obj.ensureLocalSlot(id)
			obj.localSubs[id-1] = append(obj.localSubs[id-1], sub)
			w.addReverse(sub.subscriber, regRef{domain: domain, id: id, scope: scopeLocal, owner: owner})
		}
	case domainMessage:
		// A MESSAGE subscription is always global, and always
		// mirrored into the owning object's local table so
		// SendToObject/SendLocalMessage can reach it too.
		w.ensureGlobalSlot(id)
		w.globalSubs[id-1] = append(w.globalSubs[id-1], sub)
		w.addReverse(sub.subscriber, regRef{domain: domain, id: id, scope: scopeGlobal})

		obj := w.objects[owner-1]
		obj.ensureLocalSlot(id)
		obj.localSubs[id-1] = append(obj.localSubs[id-1], sub)
		w.addReverse(sub.subscriber, regRef{domain: domain, id: id, scope: scopeLocal, owner: owner})
	}

	if sub.required {
		obj := w.objects[owner-1]
		if !obj.finalized {
			w.requiredLedger[owner] = append(w.requiredLedger[owner], name)
		}
	}
}

func (w *World) addReverse(cid ComponentId, ref regRef) {
	w.reverse[cid] = append(w.reverse[cid], ref)
}

// sweepLateJoin delivers synthetic CREATE envelopes, for name, to sub,
// for every currently-live matching component in scope (excluding the
// subscriber itself): objects in creation order, components within an
// object in insertion order.
func (w *World) sweepLateJoin(id RequestId, name string, scope registrationScope, owner ObjectId, sub subscription) {
	deliverFor := func(obj *object) {
		for _, cid := range obj.liveComponentsNamed(w, name) {
			if cid == sub.subscriber {
				continue
			}
			env := Envelope{Kind: EnvelopeCreate, Sender: w.handle(cid)}
			w.deliver(sub, env, KindComponent, name)
		}
	}
	if scope == scopeLocal {
		deliverFor(w.objects[owner-1])
		return
	}
	for _, obj := range w.objects {
		if obj.destroyed {
			continue
		}
		deliverFor(obj)
	}
}

// ---- sending --------------------------------------------------------------

func (w *World) sendGlobalMessage(senderID ComponentId, name string, payload any) error {
	if _, err := w.mustLiveComponent(senderID); err != nil {
		return err
	}
	rid, ok := w.lookupMaterialized(domainMessage, name)
	if !ok {
		return nil
	}
	if err := w.activateLock(rid); err != nil {
		return err
	}
	env := Envelope{Kind: EnvelopeMessage, Sender: w.handle(senderID), Payload: payload}
	for _, s := range w.globalSubs[rid-1] {
		w.deliver(s, env, KindMessage, name)
	}
	w.releaseLock(rid)
	return nil
}

func (w *World) sendToObjectMessage(senderID ComponentId, oid ObjectId, name string, payload any) error {
	if _, err := w.mustLiveComponent(senderID); err != nil {
		return err
	}
	obj, err := w.mustLiveObject(oid)
	if err != nil {
		return err
	}
	rid, ok := w.lookupMaterialized(domainMessage, name)
	if !ok {
		return nil
	}
	if err := w.activateLock(rid); err != nil {
		return err
	}
	env := Envelope{Kind: EnvelopeMessage, Sender: w.handle(senderID), Payload: payload}
	obj.dispatchLocal(w, rid, env, KindMessage, name)
	w.releaseLock(rid)
	return nil
}

// deliver is the single chokepoint every fan-out path (global or
// local, CREATE/DESTROY/MESSAGE) routes through: it enforces that a
// component never receives a notification about itself, and emits a
// trace log line for tracked subscriptions.
func (w *World) deliver(sub subscription, env Envelope, kind RequestKind, name string) {
	if sub.subscriber == env.Sender.id {
		return
	}
	if sub.tracked {
		w.traceDelivery(kind, name, env, sub.subscriber)
	}
	sub.callback(env)
}

// ---- lock protocol ---------------------------------------------------------

func (w *World) activateLock(id RequestId) error {
	lock := &w.locks[id-1]
	if lock.locked {
		return fmt.Errorf("%w: request %d", ErrReentrantSelfDispatch, id)
	}
	lock.locked = true
	w.activeLockCount++
	return nil
}

func (w *World) releaseLock(id RequestId) {
	lock := &w.locks[id-1]
	lock.locked = false
	w.activeLockCount--

	pendingGlobal := lock.pendingGlobal
	pendingLocal := lock.pendingLocal
	lock.pendingGlobal = nil
	lock.pendingLocal = nil

	for _, p := range pendingGlobal {
		if err := w.requestInternal(p.domain, p.name, p.scope, p.owner, p.sub, p.oneOff); err != nil {
			w.logger.Error("replay of queued global subscription failed", "error", err)
		}
	}
	for _, p := range pendingLocal {
		if err := w.requestInternal(p.domain, p.name, p.scope, p.owner, p.sub, p.oneOff); err != nil {
			w.logger.Error("replay of queued local subscription failed", "error", err)
		}
	}

	if w.activeLockCount == 0 {
		w.drainDeferredDestructions()
	}
}

// drainDeferredDestructions drains until the list is empty, a stronger
// guarantee than a single pass, which can strand newly-deferred
// destructions triggered by the destructions it just processed.
func (w *World) drainDeferredDestructions() {
	for len(w.deferredDestroy) > 0 {
		pending := w.deferredDestroy
		w.deferredDestroy = nil
		for _, id := range pending {
			if err := w.DestroyComponent(id); err != nil {
				w.logger.Error("deferred component destruction failed", "error", err, "component", int(id))
			}
		}
	}
}

// ---- accessors & guards -----------------------------------------------------

func (w *World) handle(id ComponentId) ComponentHandle {
	return ComponentHandle{world: w, id: id}
}

func (w *World) component(id ComponentId) (*componentEntry, bool) {
	if id <= 0 || int(id) > len(w.components) {
		return nil, false
	}
	return w.components[id-1], true
}

func (w *World) mustComponent(id ComponentId) (*componentEntry, error) {
	entry, ok := w.component(id)
	if !ok {
		return nil, fmt.Errorf("%w: component %d", ErrInvalidComponent, id)
	}
	return entry, nil
}

func (w *World) mustLiveComponent(id ComponentId) (*componentEntry, error) {
	entry, err := w.mustComponent(id)
	if err != nil {
		return nil, err
	}
	if entry.destroyed {
		return nil, fmt.Errorf("%w: component %d destroyed", ErrInvalidComponent, id)
	}
	return entry, nil
}

func (w *World) objectByID(id ObjectId) (*object, bool) {
	if id <= 0 || int(id) > len(w.objects) {
		return nil, false
	}
	return w.objects[id-1], true
}

func (w *World) mustLiveObject(id ObjectId) (*object, error) {
	obj, ok := w.objectByID(id)
	if !ok || obj.destroyed {
		return nil, fmt.Errorf("%w: object %d", ErrUnknownObject, id)
	}
	return obj, nil
}
