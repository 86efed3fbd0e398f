// Package hotkey registers the global shortcut that toggles monitoring.
package hotkey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.design/x/hotkey"
)

// stopWait bounds how long Stop waits for the listener to exit.
const stopWait = 100 * time.Millisecond

// Manager listens for a global hotkey and calls onPress for each keydown.
type Manager struct {
	mu      sync.Mutex
	hk      *hotkey.Hotkey
	onPress func()
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewManager creates a Manager that calls onPress on every keydown.
func NewManager(onPress func()) *Manager {
	return &Manager{onPress: onPress}
}

// Start registers combo (for example "ctrl+shift+h") and begins listening
// until ctx is cancelled or Stop is called.
func (m *Manager) Start(ctx context.Context, combo string) error {
	mods, key, err := Parse(combo)
	if err != nil {
		return fmt.Errorf("invalid hotkey %q: %w", combo, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hk != nil {
		return errors.New("hotkey already registered")
	}

	hk := hotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("failed to register hotkey: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	m.hk = hk
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.listen(ctx, hk, m.done)

	slog.Info("global hotkey registered", "hotkey", combo)
	return nil
}

func (m *Manager) listen(ctx context.Context, hk *hotkey.Hotkey, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-hk.Keydown():
			if !ok {
				return
			}
			slog.Debug("hotkey pressed")
			if m.onPress != nil {
				m.onPress()
			}
		}
	}
}

// Stop unregisters the hotkey. It is a no-op when nothing is registered.
func (m *Manager) Stop() {
	m.mu.Lock()
	hk, cancel, done := m.hk, m.cancel, m.done
	m.hk, m.cancel, m.done = nil, nil, nil
	m.mu.Unlock()

	if hk == nil {
		return
	}
	cancel()
	if err := hk.Unregister(); err != nil {
		slog.Debug("hotkey unregister failed", "error", err)
	}
	select {
	case <-done:
	case <-time.After(stopWait):
	}
}

// Parse parses a hotkey string like "ctrl+shift+h" into modifiers and key.
func Parse(s string) ([]hotkey.Modifier, hotkey.Key, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return nil, 0, errors.New("empty hotkey string")
	}

	var mods []hotkey.Modifier
	var key hotkey.Key
	var keyFound bool

	for part := range strings.SplitSeq(s, "+") {
		part = strings.TrimSpace(part)
		switch part {
		case "ctrl", "control":
			mods = append(mods, hotkey.ModCtrl)
		case "shift":
			mods = append(mods, hotkey.ModShift)
		case "alt", "option":
			mods = append(mods, modAlt())
		case "cmd", "command", "super", "win":
			mods = append(mods, modSuper())
		default:
			if keyFound {
				return nil, 0, errors.New("multiple keys specified")
			}
			k, err := parseKey(part)
			if err != nil {
				return nil, 0, err
			}
			key = k
			keyFound = true
		}
	}

	if !keyFound {
		return nil, 0, errors.New("no key specified")
	}
	return mods, key, nil
}

var namedKeys = map[string]hotkey.Key{
	"space": hotkey.KeySpace, "return": hotkey.KeyReturn, "enter": hotkey.KeyReturn,
	"tab": hotkey.KeyTab, "escape": hotkey.KeyEscape, "esc": hotkey.KeyEscape,
	"f1": hotkey.KeyF1, "f2": hotkey.KeyF2, "f3": hotkey.KeyF3, "f4": hotkey.KeyF4,
	"f5": hotkey.KeyF5, "f6": hotkey.KeyF6, "f7": hotkey.KeyF7, "f8": hotkey.KeyF8,
	"f9": hotkey.KeyF9, "f10": hotkey.KeyF10, "f11": hotkey.KeyF11, "f12": hotkey.KeyF12,
}

var letterKeys = [26]hotkey.Key{
	hotkey.KeyA, hotkey.KeyB, hotkey.KeyC, hotkey.KeyD, hotkey.KeyE, hotkey.KeyF,
	hotkey.KeyG, hotkey.KeyH, hotkey.KeyI, hotkey.KeyJ, hotkey.KeyK, hotkey.KeyL,
	hotkey.KeyM, hotkey.KeyN, hotkey.KeyO, hotkey.KeyP, hotkey.KeyQ, hotkey.KeyR,
	hotkey.KeyS, hotkey.KeyT, hotkey.KeyU, hotkey.KeyV, hotkey.KeyW, hotkey.KeyX,
	hotkey.KeyY, hotkey.KeyZ,
}

var digitKeys = [10]hotkey.Key{
	hotkey.Key0, hotkey.Key1, hotkey.Key2, hotkey.Key3, hotkey.Key4,
	hotkey.Key5, hotkey.Key6, hotkey.Key7, hotkey.Key8, hotkey.Key9,
}

// parseKey parses a key name to hotkey.Key
func parseKey(s string) (hotkey.Key, error) {
	if k, ok := namedKeys[s]; ok {
		return k, nil
	}
	if len(s) == 1 {
		switch c := s[0]; {
		case c >= 'a' && c <= 'z':
			return letterKeys[c-'a'], nil
		case c >= '0' && c <= '9':
			return digitKeys[c-'0'], nil
		}
	}
	return 0, fmt.Errorf("unknown key: %s", s)
}
