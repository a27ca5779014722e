package notify

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus()
	var got []string

	bus.Subscribe(func(e Event) { got = append(got, "a:"+e.Source) })
	unsubscribe := bus.Subscribe(func(e Event) { got = append(got, "b:"+e.Source) })

	bus.Changed("sessions")
	unsubscribe()
	unsubscribe()
	bus.Changed("transcript")

	assert.Equal(t, []string{"a:sessions", "b:sessions", "a:transcript"}, got)
}

func TestBusAllowsPublishFromListener(t *testing.T) {
	bus := NewBus()
	var kinds []Kind

	bus.Subscribe(func(e Event) {
		kinds = append(kinds, e.Kind)
		if e.Kind == Selected {
			bus.Changed("transcript")
		}
	})

	bus.Publish(Event{Kind: Selected, SessionID: "s1"})
	assert.Equal(t, []Kind{Selected, Render}, kinds)
}

func TestBusSurvivesPanickingListener(t *testing.T) {
	bus := NewBus()
	reached := false

	bus.Subscribe(func(Event) { panic("boom") })
	bus.Subscribe(func(Event) { reached = true })

	assert.NotPanics(t, func() { bus.Changed("sessions") })
	assert.True(t, reached)
}

func TestNilBusIgnoresPublish(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() { bus.Fail("upload", "nope", errors.New("x")) })
}

func TestTrayListener(t *testing.T) {
	tray := NewTray(0)
	bus := NewBus()
	bus.Subscribe(tray.Listener())

	bus.Changed("sessions")
	bus.Info("upload", `Document "a.txt" uploaded successfully`)
	bus.Fail("upload", "Unsupported file type", errors.New("service refused"))
	bus.Publish(Event{Kind: Selected, SessionID: "s1", Message: "ignored"})

	toasts := tray.Active()
	require.Len(t, toasts, 2)
	assert.Equal(t, LevelInfo, toasts[0].Level)
	assert.Equal(t, LevelError, toasts[1].Level)
	assert.Equal(t, "Unsupported file type", toasts[1].Text)

	tray.Dismiss(toasts[0].ID)
	assert.Len(t, tray.Active(), 1)
}

func TestTrayAutoDismiss(t *testing.T) {
	tray := NewTray(20 * time.Millisecond)
	defer tray.Close()

	changes := make(chan struct{}, 4)
	tray.OnChange(func() { changes <- struct{}{} })

	tray.Push(LevelError, "Failed to delete session")
	require.Len(t, tray.Active(), 1)

	require.Eventually(t, func() bool { return len(changes) == 2 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, tray.Active())
}
