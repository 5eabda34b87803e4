// Package widget is the engine's client-embedded runtime: the trigger
// evaluator that decides when a popup appears, and the flow controller that
// drives the conversation against the engine API. Host environments inject
// rendering, storage, and time so the runtime stays testable.
package widget

import (
	"sync"
	"time"

	"github.com/popforge/popforge-go/internal/domain/popup"
)

// Clock abstracts time for trigger scheduling and close grace periods.
type Clock interface {
	Now() time.Time
	// AfterFunc schedules fn after d and returns a cancel function.
	AfterFunc(d time.Duration, fn func()) (cancel func())
}

// RealClock is the production Clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) AfterFunc(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// fallbackDelay is used when the trigger config carries an unknown type.
const fallbackDelay = 2 * time.Second

// TriggerEvaluator arms one popup trigger and fires its callback exactly
// once. Callers check their own already-shown flag before arming at all;
// the evaluator only guarantees single firing per arming.
type TriggerEvaluator struct {
	config popup.TriggerConfig
	clock  Clock
	fire   func()

	mu     sync.Mutex
	fired  bool
	cancel func()
}

// NewTriggerEvaluator builds an evaluator for one trigger config. Out of
// range values are clamped rather than rejected; a bad merchant config must
// not break the storefront.
func NewTriggerEvaluator(config popup.TriggerConfig, clock Clock, fire func()) *TriggerEvaluator {
	return &TriggerEvaluator{config: config.Clamped(), clock: clock, fire: fire}
}

// Arm starts delay-based triggers. Scroll triggers arm passively; the host
// feeds Observe instead.
func (t *TriggerEvaluator) Arm() {
	switch t.config.Type {
	case popup.TriggerScroll:
		// Nothing to schedule; Observe drives it.
	case popup.TriggerDelay:
		t.schedule(time.Duration(t.config.Value) * time.Second)
	default:
		t.schedule(fallbackDelay)
	}
}

func (t *TriggerEvaluator) schedule(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || t.cancel != nil {
		return
	}
	t.cancel = t.clock.AfterFunc(d, t.fireOnce)
}

// Observe feeds one scroll measurement. Percent scrolled is the scroll
// offset against the scrollable range, document height minus viewport; an
// unscrolled page is 0% no matter how tall the viewport is. At or past the
// configured threshold the trigger fires once and detaches.
func (t *TriggerEvaluator) Observe(scrollTop, docHeight, viewport float64) {
	if t.config.Type != popup.TriggerScroll {
		return
	}
	if docHeight <= 0 {
		return
	}

	scrollable := docHeight - viewport
	if scrollable <= 0 {
		// Nothing to scroll; the visitor already sees the whole page.
		t.fireOnce()
		return
	}

	percent := scrollTop / scrollable * 100
	if percent >= float64(t.config.Value) {
		t.fireOnce()
	}
}

// Fired reports whether the trigger has fired.
func (t *TriggerEvaluator) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

// Disarm cancels a pending delay trigger and detaches scroll observation.
func (t *TriggerEvaluator) Disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.fired = true
}

func (t *TriggerEvaluator) fireOnce() {
	t.mu.Lock()
	if t.fired {
		t.mu.Unlock()
		return
	}
	t.fired = true
	t.cancel = nil
	t.mu.Unlock()

	t.fire()
}
