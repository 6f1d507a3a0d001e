package cistron

// subscription is one entry in a global or local dispatch slot.
type subscription struct {
	subscriber ComponentId
	callback   Callback
	required   bool
	tracked    bool
}

// regRef is one entry in the World's reverse index: a single
// subscription a component registered, wherever it lives, so that
// destruction can evict it in one pass.
type regRef struct {
	domain reqDomain
	id     RequestId
	scope  registrationScope
	owner  ObjectId // meaningful only when scope == scopeLocal
}

// pendingRegistration is a registration request stashed on a
// RequestLock because the lock for its request id was held when it
// arrived. It is replayed, in order, when the lock releases.
type pendingRegistration struct {
	domain reqDomain
	name   string
	scope  registrationScope
	owner  ObjectId
	sub    subscription
	oneOff bool
}

// requestLock is the re-entrancy guard for one RequestId, shared
// across both the COMPONENT and MESSAGE id namespaces (they never
// collide, since both domains mint ids from the same counter).
type requestLock struct {
	locked        bool
	pendingGlobal []pendingRegistration
	pendingLocal  []pendingRegistration
}
