package cistron

// Callback is invoked with the delivered Envelope whenever a
// subscription it is bound to fires.
type Callback func(Envelope)

// Component is the base contract implemented by user-defined component
// types. Activate is called exactly once, immediately after the
// component is adopted by a World via AddComponent; it is the
// component's only opportunity to learn its own handle and declare
// subscriptions through it.
type Component interface {
	// Name is matched verbatim for subscription purposes. It must be
	// non-empty and is read once, at adoption time.
	Name() string

	// Activate runs once, right after the component's owner is set and
	// it has been inserted into the owning object's name index, but
	// before any CREATE notification for it is dispatched.
	Activate(handle ComponentHandle)
}

// subscribeConfig accumulates SubscribeOption values.
type subscribeConfig struct {
	tracked bool
}

// SubscribeOption customizes a subscription at registration time.
type SubscribeOption func(*subscribeConfig)

// WithTrack marks a subscription as tracked: every delivery to it
// emits a trace-level diagnostic log line (see LevelTrace). The exact
// textual format is not part of this package's API contract.
func WithTrack() SubscribeOption {
	return func(c *subscribeConfig) { c.tracked = true }
}

func applySubscribeOptions(opts []SubscribeOption) subscribeConfig {
	var cfg subscribeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// ComponentHandle is a lightweight, non-owning reference to a
// component managed by a World. It is the only way user code addresses
// a component: there are no direct pointers or references into the
// World's internal tables. A zero-value ComponentHandle is never
// valid.
type ComponentHandle struct {
	world *World
	id    ComponentId
}

// ID returns the handle's component id.
func (h ComponentHandle) ID() ComponentId { return h.id }

// OwnerID returns the owning object's id, or -1 if the handle does not
// refer to a component adopted by its World. A destroyed component
// keeps reporting the object that owned it.
func (h ComponentHandle) OwnerID() ObjectId {
	entry, ok := h.entry()
	if !ok {
		return -1
	}
	return entry.owner
}

// Name returns the component's name, or "" if the handle does not
// refer to a component adopted by its World. A destroyed component
// keeps reporting its name.
func (h ComponentHandle) Name() string {
	entry, ok := h.entry()
	if !ok {
		return ""
	}
	return entry.name
}

// IsValid reports whether the handle still refers to a live (adopted,
// not destroyed) component.
func (h ComponentHandle) IsValid() bool {
	entry, ok := h.entry()
	return ok && !entry.destroyed
}

// IsDestroyed reports whether the handle refers to a component that
// existed but has since been destroyed.
func (h ComponentHandle) IsDestroyed() bool {
	entry, ok := h.entry()
	return ok && entry.destroyed
}

func (h ComponentHandle) entry() (*componentEntry, bool) {
	if h.world == nil || h.id == 0 {
		return nil, false
	}
	return h.world.component(h.id)
}

// RequestMessage declares a global MESSAGE subscription, mirrored into
// the owning object's local table so SendToObject/SendLocalMessage can
// also reach it.
func (h ComponentHandle) RequestMessage(name string, fn Callback, opts ...SubscribeOption) error {
	entry, err := h.world.mustLiveComponent(h.id)
	if err != nil {
		return err
	}
	cfg := applySubscribeOptions(opts)
	sub := subscription{subscriber: h.id, callback: fn, tracked: cfg.tracked}
	return h.world.requestInternal(domainMessage, name, scopeGlobal, entry.owner, sub, false)
}

// RequestComponent declares a COMPONENT subscription. If local is
// true, it is stored in the owning object's local table and only ever
// sees components owned by the same object; otherwise it is stored
// globally. Registration immediately synthesizes CREATE notifications
// for every already-existing matching component in scope.
func (h ComponentHandle) RequestComponent(name string, fn Callback, local bool, opts ...SubscribeOption) error {
	entry, err := h.world.mustLiveComponent(h.id)
	if err != nil {
		return err
	}
	scope := scopeGlobal
	if local {
		scope = scopeLocal
	}
	cfg := applySubscribeOptions(opts)
	sub := subscription{subscriber: h.id, callback: fn, tracked: cfg.tracked}
	return h.world.requestInternal(domainComponent, name, scope, entry.owner, sub, false)
}

// RequireComponent is a local COMPONENT subscription with the required
// flag set: if the owning object is not yet finalized, name is added
// to its required-components ledger, checked once at FinalizeObject.
func (h ComponentHandle) RequireComponent(name string, fn Callback, opts ...SubscribeOption) error {
	entry, err := h.world.mustLiveComponent(h.id)
	if err != nil {
		return err
	}
	cfg := applySubscribeOptions(opts)
	sub := subscription{subscriber: h.id, callback: fn, required: true, tracked: cfg.tracked}
	return h.world.requestInternal(domainComponent, name, scopeLocal, entry.owner, sub, false)
}

// RequestAllExistingComponents is a one-shot catch-up: it synthesizes
// CREATE notifications for every currently-live component named name,
// across the whole World, and then delivers nothing further.
func (h ComponentHandle) RequestAllExistingComponents(name string, fn Callback, opts ...SubscribeOption) error {
	entry, err := h.world.mustLiveComponent(h.id)
	if err != nil {
		return err
	}
	cfg := applySubscribeOptions(opts)
	sub := subscription{subscriber: h.id, callback: fn, tracked: cfg.tracked}
	return h.world.requestInternal(domainComponent, name, scopeGlobal, entry.owner, sub, true)
}

// SendMessage delivers a MESSAGE envelope to every global subscriber
// of name. A no-op if name has no subscribers.
func (h ComponentHandle) SendMessage(name string, payload any) error {
	return h.world.sendGlobalMessage(h.id, name, payload)
}

// SendLocalMessage delivers a MESSAGE envelope to subscribers of name
// in the sender's own object only.
func (h ComponentHandle) SendLocalMessage(name string, payload any) error {
	entry, err := h.world.mustLiveComponent(h.id)
	if err != nil {
		return err
	}
	return h.world.sendToObjectMessage(h.id, entry.owner, name, payload)
}

// SendToObject delivers a MESSAGE envelope to subscribers of name in
// the given object only.
func (h ComponentHandle) SendToObject(oid ObjectId, name string, payload any) error {
	return h.world.sendToObjectMessage(h.id, oid, name, payload)
}

// RegisterName registers a process-wide unique name for the handle's
// owning object. Fails with ErrDuplicateName if name is already taken.
func (h ComponentHandle) RegisterName(name string) error {
	entry, err := h.world.mustLiveComponent(h.id)
	if err != nil {
		return err
	}
	return h.world.RegisterName(entry.owner, name)
}

// Destroy destroys the handle's component, subject to the World's lock
// protocol (it may be deferred until quiescent).
func (h ComponentHandle) Destroy() error {
	return h.world.DestroyComponent(h.id)
}
