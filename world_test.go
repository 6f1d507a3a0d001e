package cistron

import "testing"

type stubComponent struct {
	name   string
	onAct  func(h ComponentHandle)
	handle ComponentHandle
}

func newStub(name string, onAct func(ComponentHandle)) *stubComponent {
	return &stubComponent{name: name, onAct: onAct}
}

func (s *stubComponent) Name() string { return s.name }

func (s *stubComponent) Activate(h ComponentHandle) {
	s.handle = h
	if s.onAct != nil {
		s.onAct(h)
	}
}

func TestBasicAdoptionNoSubscribers(t *testing.T) {
	w := NewWorld()
	oid := w.CreateObject()

	a1 := newStub("A", nil)
	handle, err := w.AddComponent(oid, a1)
	if err != nil {
		t.Fatalf("AddComponent: %v", err)
	}
	if handle.OwnerID() != oid {
		t.Fatalf("ownerID = %d, want %d", handle.OwnerID(), oid)
	}
}

func TestLateJoinGlobalSubscription(t *testing.T) {
	w := NewWorld()
	oid1 := w.CreateObject()
	a1 := newStub("A", nil)
	aHandle, err := w.AddComponent(oid1, a1)
	if err != nil {
		t.Fatalf("AddComponent A: %v", err)
	}

	var received []ComponentHandle
	oid2 := w.CreateObject()
	b1 := newStub("B", func(h ComponentHandle) {
		if err := h.RequestComponent("A", func(env Envelope) {
			received = append(received, env.Sender)
		}, false); err != nil {
			t.Fatalf("RequestComponent: %v", err)
		}
	})
	if _, err := w.AddComponent(oid2, b1); err != nil {
		t.Fatalf("AddComponent B: %v", err)
	}

	if len(received) != 1 {
		t.Fatalf("received %d CREATE envelopes, want 1", len(received))
	}
	if received[0].ID() != aHandle.ID() {
		t.Fatalf("CREATE sender = %d, want %d", received[0].ID(), aHandle.ID())
	}
}

func TestLocalScopeIsolation(t *testing.T) {
	w := NewWorld()
	oid1 := w.CreateObject()
	oid2 := w.CreateObject()

	p1, err := w.AddComponent(oid1, newStub("Person", nil))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.AddComponent(oid2, newStub("Person", nil)); err != nil {
		t.Fatal(err)
	}

	var received []ComponentHandle
	watcher := newStub("Watcher", func(h ComponentHandle) {
		if err := h.RequestComponent("Person", func(env Envelope) {
			received = append(received, env.Sender)
		}, true); err != nil {
			t.Fatal(err)
		}
	})
	if _, err := w.AddComponent(oid1, watcher); err != nil {
		t.Fatal(err)
	}

	if len(received) != 1 || received[0].ID() != p1.ID() {
		t.Fatalf("local subscriber saw %v, want only P1 (%d)", received, p1.ID())
	}
}

func TestReentrantCreationOrdering(t *testing.T) {
	w := NewWorld()

	var jobCreates []ComponentHandle
	jobWatcher := newStub("JobWatcher", func(h ComponentHandle) {
		_ = h.RequestComponent("Job", func(env Envelope) {
			jobCreates = append(jobCreates, env.Sender)
		}, false)
	})
	watcherObj := w.CreateObject()
	if _, err := w.AddComponent(watcherObj, jobWatcher); err != nil {
		t.Fatal(err)
	}

	var order []string
	personSubscriber := newStub("PersonWatcher", func(h ComponentHandle) {
		_ = h.RequestComponent("Person", func(env Envelope) {
			order = append(order, "person-create")
			// Re-entrant: add a Job to the sender's object from inside
			// the Person CREATE callback.
			if _, err := w.AddComponent(env.Sender.OwnerID(), newStub("Job", nil)); err != nil {
				t.Fatal(err)
			}
			order = append(order, "person-create-done")
		}, false)
	})
	watcherObj2 := w.CreateObject()
	if _, err := w.AddComponent(watcherObj2, personSubscriber); err != nil {
		t.Fatal(err)
	}

	personObj := w.CreateObject()
	if _, err := w.AddComponent(personObj, newStub("Person", nil)); err != nil {
		t.Fatal(err)
	}

	if len(order) != 2 || order[0] != "person-create" || order[1] != "person-create-done" {
		t.Fatalf("unexpected ordering: %v", order)
	}
	if len(jobCreates) != 1 {
		t.Fatalf("job watcher saw %d CREATEs, want 1", len(jobCreates))
	}
}

func TestDeferredDestruction(t *testing.T) {
	w := NewWorld()
	oid := w.CreateObject()

	var tickCount int
	x := newStub("X", func(h ComponentHandle) {
		_ = h.RequestMessage("Tick", func(env Envelope) {
			tickCount++
			if err := h.Destroy(); err != nil {
				t.Fatal(err)
			}
		})
	})
	xHandle, err := w.AddComponent(oid, x)
	if err != nil {
		t.Fatal(err)
	}

	sender := newStub("Sender", nil)
	senderHandle, err := w.AddComponent(w.CreateObject(), sender)
	if err != nil {
		t.Fatal(err)
	}

	if err := senderHandle.SendMessage("Tick", nil); err != nil {
		t.Fatal(err)
	}
	if !xHandle.IsDestroyed() {
		t.Fatalf("X should be destroyed after the Tick dispatch returns")
	}
	if tickCount != 1 {
		t.Fatalf("tickCount = %d, want 1", tickCount)
	}

	if err := senderHandle.SendMessage("Tick", nil); err != nil {
		t.Fatal(err)
	}
	if tickCount != 1 {
		t.Fatalf("destroyed X should not receive a second Tick, tickCount = %d", tickCount)
	}
}

func TestRequiredComponentFinalization(t *testing.T) {
	w := NewWorld()
	oid := w.CreateObject()

	c := newStub("C", func(h ComponentHandle) {
		_ = h.RequireComponent("Needed", func(Envelope) {})
	})
	if _, err := w.AddComponent(oid, c); err != nil {
		t.Fatal(err)
	}

	if err := w.FinalizeObject(oid); err != nil {
		t.Fatal(err)
	}
	if _, err := w.mustLiveObject(oid); err == nil {
		t.Fatalf("object %d should have been destroyed by failed finalization", oid)
	}
}

func TestRequiredComponentSatisfiedSurvivesFinalization(t *testing.T) {
	w := NewWorld()
	oid := w.CreateObject()

	if _, err := w.AddComponent(oid, newStub("Needed", nil)); err != nil {
		t.Fatal(err)
	}
	c := newStub("C", func(h ComponentHandle) {
		_ = h.RequireComponent("Needed", func(Envelope) {})
	})
	if _, err := w.AddComponent(oid, c); err != nil {
		t.Fatal(err)
	}

	if err := w.FinalizeObject(oid); err != nil {
		t.Fatal(err)
	}
	if _, err := w.mustLiveObject(oid); err != nil {
		t.Fatalf("object should survive finalization: %v", err)
	}
}

func TestLookupReturnsZeroUntilGlobalSlotMaterializes(t *testing.T) {
	w := NewWorld()
	if id := w.Lookup(KindComponent, "Ghost"); id != 0 {
		t.Fatalf("Lookup on unknown name = %d, want 0", id)
	}

	oid := w.CreateObject()
	watcher := newStub("Watcher", func(h ComponentHandle) {
		// local-only registration must not materialize a global slot
		_ = h.RequestComponent("Ghost", func(Envelope) {}, true)
	})
	if _, err := w.AddComponent(oid, watcher); err != nil {
		t.Fatal(err)
	}
	if id := w.Lookup(KindComponent, "Ghost"); id != 0 {
		t.Fatalf("Lookup after local-only registration = %d, want 0 (global slot not materialized)", id)
	}
}

func TestSelfNotificationExcluded(t *testing.T) {
	w := NewWorld()
	oid := w.CreateObject()

	var sawSelf bool
	self := newStub("Self", func(h ComponentHandle) {
		_ = h.RequestComponent("Self", func(env Envelope) {
			if env.Sender.ID() == h.ID() {
				sawSelf = true
			}
		}, false)
	})
	if _, err := w.AddComponent(oid, self); err != nil {
		t.Fatal(err)
	}
	if sawSelf {
		t.Fatalf("component must never receive its own CREATE notification")
	}
}

func TestDestroyObjectDeliversDestroyToSubscribers(t *testing.T) {
	w := NewWorld()
	oid := w.CreateObject()
	target, err := w.AddComponent(oid, newStub("Widget", nil))
	if err != nil {
		t.Fatal(err)
	}

	var destroyedIDs []ComponentId
	watcherObj := w.CreateObject()
	watcher := newStub("Watcher", func(h ComponentHandle) {
		_ = h.RequestComponent("Widget", func(env Envelope) {
			if env.Kind == EnvelopeDestroy {
				destroyedIDs = append(destroyedIDs, env.Sender.ID())
			}
		}, false)
	})
	if _, err := w.AddComponent(watcherObj, watcher); err != nil {
		t.Fatal(err)
	}

	if err := w.DestroyObject(oid); err != nil {
		t.Fatal(err)
	}
	if len(destroyedIDs) != 1 || destroyedIDs[0] != target.ID() {
		t.Fatalf("destroyedIDs = %v, want [%d]", destroyedIDs, target.ID())
	}
}

func TestRegisterNameDuplicateFails(t *testing.T) {
	w := NewWorld()
	oid1 := w.CreateObject()
	oid2 := w.CreateObject()

	if err := w.RegisterName(oid1, "unique"); err != nil {
		t.Fatal(err)
	}
	if err := w.RegisterName(oid2, "unique"); err == nil {
		t.Fatalf("expected ErrDuplicateName")
	}
	if got, ok := w.ResolveName("unique"); !ok || got != oid1 {
		t.Fatalf("ResolveName = %d,%v want %d,true", got, ok, oid1)
	}
}

func TestQueuedSubscriptionNotInvokedForInFlightMessage(t *testing.T) {
	w := NewWorld()
	oid := w.CreateObject()

	var calls int
	var reentrantRegistered bool
	c := newStub("C", func(h ComponentHandle) {
		_ = h.RequestMessage("Ping", func(env Envelope) {
			calls++
			if !reentrantRegistered {
				reentrantRegistered = true
				// Registering for the same message from within its own
				// dispatch must not see this in-flight send.
				_ = h.RequestMessage("Ping", func(Envelope) { calls++ })
			}
		})
	})
	if _, err := w.AddComponent(oid, c); err != nil {
		t.Fatal(err)
	}

	sender, err := w.AddComponent(w.CreateObject(), newStub("Sender", nil))
	if err != nil {
		t.Fatal(err)
	}

	if err := sender.SendMessage("Ping", nil); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("calls after first send = %d, want 1 (reentrant registration must not fire mid-dispatch)", calls)
	}

	if err := sender.SendMessage("Ping", nil); err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Fatalf("calls after second send = %d, want 3 (original + newly-registered callback)", calls)
	}
}
