package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

type Toast struct {
	ID        string
	Level     Level
	Text      string
	CreatedAt time.Time
}

// Tray holds the notifications currently on screen. Each toast removes
// itself after the dismiss delay; a delay of zero keeps toasts until
// Dismiss is called.
type Tray struct {
	mu       sync.Mutex
	toasts   []Toast
	timers   map[string]*time.Timer
	delay    time.Duration
	onChange func()
}

func NewTray(dismissAfter time.Duration) *Tray {
	return &Tray{
		timers: make(map[string]*time.Timer),
		delay:  dismissAfter,
	}
}

// OnChange sets a callback run, outside the tray lock, whenever a toast is
// added or removed.
func (t *Tray) OnChange(fn func()) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

func (t *Tray) Push(level Level, text string) Toast {
	toast := Toast{
		ID:        uuid.NewString(),
		Level:     level,
		Text:      text,
		CreatedAt: time.Now(),
	}

	t.mu.Lock()
	t.toasts = append(t.toasts, toast)
	if t.delay > 0 {
		id := toast.ID
		t.timers[id] = time.AfterFunc(t.delay, func() { t.Dismiss(id) })
	}
	changed := t.onChange
	t.mu.Unlock()

	if changed != nil {
		changed()
	}
	return toast
}

func (t *Tray) Dismiss(id string) {
	t.mu.Lock()
	found := false
	for i, toast := range t.toasts {
		if toast.ID == id {
			t.toasts = append(t.toasts[:i:i], t.toasts[i+1:]...)
			found = true
			break
		}
	}
	if timer, ok := t.timers[id]; ok {
		timer.Stop()
		delete(t.timers, id)
	}
	changed := t.onChange
	t.mu.Unlock()

	if found && changed != nil {
		changed()
	}
}

// Active returns the visible toasts, oldest first.
func (t *Tray) Active() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Toast, len(t.toasts))
	copy(out, t.toasts)
	return out
}

// Close stops all pending dismiss timers.
func (t *Tray) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}

// Listener turns failures into error toasts and render events carrying a
// message into info toasts.
func (t *Tray) Listener() Listener {
	return func(e Event) {
		if e.Message == "" {
			return
		}
		switch e.Kind {
		case Failure:
			t.Push(LevelError, e.Message)
		case Render:
			t.Push(LevelInfo, e.Message)
		}
	}
}
