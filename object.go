package cistron

// object is a container for components that share an identity. It is
// never constructed directly by user code; the World creates, mutates
// and destroys it on behalf of World operations.
type object struct {
	id        ObjectId
	destroyed bool
	finalized bool

	// byName holds, for each component name, the ordered list of
	// currently-alive components of that name owned by this object.
	byName map[string][]ComponentId

	// localSubs is a dense table indexed by RequestId-1, shared by
	// both the COMPONENT and MESSAGE id namespaces.
	localSubs [][]subscription
}

func newObject(id ObjectId) *object {
	return &object{id: id, byName: make(map[string][]ComponentId)}
}

func (o *object) ensureLocalSlot(id RequestId) {
	for len(o.localSubs) < int(id) {
		o.localSubs = append(o.localSubs, nil)
	}
}

func (o *object) addComponentEntry(name string, cid ComponentId) {
	o.byName[name] = append(o.byName[name], cid)
}

// removeComponent drops cid from its name index and from every local
// subscription slot it appears in as a subscriber.
func (o *object) removeComponent(name string, cid ComponentId) {
	list := o.byName[name]
	for i, id := range list {
		if id == cid {
			o.byName[name] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	for i, subs := range o.localSubs {
		if len(subs) == 0 {
			continue
		}
		filtered := subs[:0:0]
		for _, s := range subs {
			if s.subscriber != cid {
				filtered = append(filtered, s)
			}
		}
		o.localSubs[i] = filtered
	}
}

// dispatchLocal forwards env to every local subscriber of rid, via
// w.deliver (which enforces self-exclusion and trace logging).
func (o *object) dispatchLocal(w *World, rid RequestId, env Envelope, kind RequestKind, name string) {
	if int(rid) > len(o.localSubs) {
		return
	}
	for _, s := range o.localSubs[rid-1] {
		w.deliver(s, env, kind, name)
	}
}

// liveComponentsNamed returns the currently-alive component ids of a
// given name, in insertion order, filtering out any component already
// flagged destroyed (defensive: byName is normally pruned eagerly on
// destroy, but late-join sweeps read it while a destroy may be
// deferred).
func (o *object) liveComponentsNamed(w *World, name string) []ComponentId {
	ids := o.byName[name]
	if len(ids) == 0 {
		return nil
	}
	out := make([]ComponentId, 0, len(ids))
	for _, id := range ids {
		if entry, ok := w.component(id); ok && !entry.destroyed {
			out = append(out, id)
		}
	}
	return out
}
