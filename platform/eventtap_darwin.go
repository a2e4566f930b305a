//go:build darwin

package platform

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework ApplicationServices -framework CoreFoundation

#include <ApplicationServices/ApplicationServices.h>
#include <stdint.h>

#ifndef kCGEventSystemDefined
#define kCGEventSystemDefined 14
#endif

extern CGEventRef goTapCallback(CGEventTapProxy proxy, CGEventType type, CGEventRef event, uintptr_t handle);

static CGEventRef tapCallback(CGEventTapProxy proxy, CGEventType type, CGEventRef event, void *refcon) {
    return goTapCallback(proxy, type, event, (uintptr_t)refcon);
}

static int processTrusted() {
    return AXIsProcessTrusted() ? 1 : 0;
}

static CFMachPortRef createTap(uintptr_t handle) {
    CGEventMask mask = CGEventMaskBit(kCGEventKeyDown) |
                       CGEventMaskBit(kCGEventKeyUp) |
                       CGEventMaskBit(kCGEventFlagsChanged) |
                       CGEventMaskBit(kCGEventSystemDefined);
    return CGEventTapCreate(kCGSessionEventTap, kCGHeadInsertEventTap, kCGEventTapOptionDefault,
                            mask, tapCallback, (void *)handle);
}

static CFRunLoopSourceRef attachTap(CFMachPortRef tap) {
    CFRunLoopSourceRef source = CFMachPortCreateRunLoopSource(kCFAllocatorDefault, tap, 0);
    CFRunLoopAddSource(CFRunLoopGetCurrent(), source, kCFRunLoopCommonModes);
    CGEventTapEnable(tap, true);
    return source;
}

static CFRunLoopRef retainCurrentRunLoop() {
    CFRunLoopRef loop = CFRunLoopGetCurrent();
    CFRetain(loop);
    return loop;
}

static void runLoopOnce() {
    CFRunLoopRunInMode(kCFRunLoopDefaultMode, 0.25, false);
}

static void enableTap(CFMachPortRef tap, int on) {
    CGEventTapEnable(tap, on ? true : false);
}

static void stopLoop(CFRunLoopRef loop) {
    CFRunLoopStop(loop);
    CFRunLoopWakeUp(loop);
}

static void releaseTap(CFMachPortRef tap, CFRunLoopSourceRef source, CFRunLoopRef loop) {
    CFRunLoopRemoveSource(loop, source, kCFRunLoopCommonModes);
    CFRelease(source);
    CFMachPortInvalidate(tap);
    CFRelease(tap);
    CFRelease(loop);
}

static int64_t eventKeyCode(CGEventRef event) {
    return CGEventGetIntegerValueField(event, kCGKeyboardEventKeycode);
}
*/
import "C"

import (
	"errors"
	"log/slog"
	"runtime"
	"runtime/cgo"
	"sync"
	"sync/atomic"
)

// DarwinEventTap implements EventTap with a CoreGraphics session event tap
type DarwinEventTap struct {
	mu      sync.Mutex
	handler Handler
	handle  cgo.Handle
	done    chan struct{}
	stopped atomic.Bool

	// Owned by the tap thread once Start has returned.
	tap    C.CFMachPortRef
	source C.CFRunLoopSourceRef
	loop   C.CFRunLoopRef
}

// NewEventTap creates a new event tap for macOS
func NewEventTap() EventTap {
	return &DarwinEventTap{}
}

// Start creates the tap on a dedicated OS thread and runs its run loop until
// Stop is called
func (t *DarwinEventTap) Start(h Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done != nil {
		return errors.New("event tap already started")
	}

	if C.processTrusted() == 0 {
		return ErrPermissionDenied
	}

	t.handler = h
	t.handle = cgo.NewHandle(t)
	t.stopped.Store(false)

	errCh := make(chan error, 1)
	done := make(chan struct{})
	go t.run(errCh, done)

	if err := <-errCh; err != nil {
		<-done
		t.handle.Delete()
		t.handle = 0
		t.handler = nil
		return err
	}

	t.done = done
	return nil
}

func (t *DarwinEventTap) run(errCh chan<- error, done chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(done)

	tap := C.createTap(C.uintptr_t(t.handle))
	if tap == 0 {
		errCh <- errors.New("CGEventTapCreate returned NULL")
		return
	}

	t.tap = tap
	t.source = C.attachTap(tap)
	t.loop = C.retainCurrentRunLoop()
	slog.Debug("Event tap created", "thread", "locked")

	errCh <- nil

	for !t.stopped.Load() {
		C.runLoopOnce()
	}

	C.releaseTap(t.tap, t.source, t.loop)
}

// Stop disables the tap, stops its run loop and waits for the tap thread to
// exit. It must not be called from inside the handler.
func (t *DarwinEventTap) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done == nil {
		return nil
	}

	t.stopped.Store(true)
	C.enableTap(t.tap, 0)
	C.stopLoop(t.loop)
	<-t.done

	t.handle.Delete()
	t.handle = 0
	t.handler = nil
	t.done = nil
	t.tap, t.source, t.loop = 0, 0, 0
	return nil
}

func translateEventType(eventType C.CGEventType) EventType {
	switch eventType {
	case C.kCGEventKeyDown:
		return KeyDown
	case C.kCGEventKeyUp:
		return KeyUp
	case C.kCGEventFlagsChanged:
		return FlagsChanged
	case C.kCGEventSystemDefined:
		return SystemDefined
	default:
		return Other
	}
}

//export goTapCallback
func goTapCallback(proxy C.CGEventTapProxy, eventType C.CGEventType, event C.CGEventRef, handle C.uintptr_t) C.CGEventRef {
	t, ok := cgo.Handle(handle).Value().(*DarwinEventTap)
	if !ok {
		return event
	}

	// The OS disables a tap whose callback is too slow or when secure input
	// toggles; turn it back on.
	if eventType == C.kCGEventTapDisabledByTimeout || eventType == C.kCGEventTapDisabledByUserInput {
		if !t.stopped.Load() {
			slog.Warn("Event tap disabled by the system, re-enabling", "type", uint32(eventType))
			C.enableTap(t.tap, 1)
		}
		return event
	}

	evt := Event{
		Type:  translateEventType(eventType),
		Flags: uint64(C.CGEventGetFlags(event)),
	}
	if evt.Type != SystemDefined {
		evt.KeyCode = uint16(C.eventKeyCode(event))
	}

	if t.handler(evt) == Suppress {
		return C.CGEventRef(0)
	}
	return event
}
