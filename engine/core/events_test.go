package core

import "testing"

func TestEventRegisterFireUnregister(t *testing.T) {
	EventInitialize()

	listener := &struct{ hits int }{}
	var gotWidth uint32
	callback := func(code SystemEventCode, sender interface{}, listenerInst interface{}, data EventContext) bool {
		listener.hits++
		gotWidth = data.Data.U32[0]
		return true
	}

	if !EventRegister(EVENT_CODE_RESIZED, listener, callback) {
		t.Fatal("registration failed")
	}
	// The same listener cannot register twice for one code.
	if EventRegister(EVENT_CODE_RESIZED, listener, callback) {
		t.Error("duplicate registration accepted")
	}

	context := EventContext{}
	context.Data.U32[0] = 640
	if !EventFire(EVENT_CODE_RESIZED, nil, context) {
		t.Fatal("fire reported unhandled")
	}
	if listener.hits != 1 || gotWidth != 640 {
		t.Fatalf("handler ran %d times with width %d, want 1 and 640", listener.hits, gotWidth)
	}

	if !EventUnregister(EVENT_CODE_RESIZED, listener) {
		t.Fatal("unregister failed")
	}
	if EventFire(EVENT_CODE_RESIZED, nil, context) {
		t.Error("fire handled after unregister")
	}
	if EventUnregister(EVENT_CODE_RESIZED, listener) {
		t.Error("second unregister succeeded")
	}
}

func TestEventFireStopsAtFirstHandler(t *testing.T) {
	EventInitialize()

	first := &struct{}{}
	second := &struct{}{}
	secondRan := false
	EventRegister(EVENT_CODE_KEY_PRESSED, first, func(SystemEventCode, interface{}, interface{}, EventContext) bool {
		return true
	})
	EventRegister(EVENT_CODE_KEY_PRESSED, second, func(SystemEventCode, interface{}, interface{}, EventContext) bool {
		secondRan = true
		return true
	})
	defer EventUnregister(EVENT_CODE_KEY_PRESSED, first)
	defer EventUnregister(EVENT_CODE_KEY_PRESSED, second)

	if !EventFire(EVENT_CODE_KEY_PRESSED, nil, EventContext{}) {
		t.Fatal("fire reported unhandled")
	}
	if secondRan {
		t.Error("handled event was passed on to a later listener")
	}
}
