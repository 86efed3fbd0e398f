package hotkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.design/x/hotkey"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		combo   string
		mods    []hotkey.Modifier
		key     hotkey.Key
		wantErr string
	}{
		{"default", "ctrl+shift+h", []hotkey.Modifier{hotkey.ModCtrl, hotkey.ModShift}, hotkey.KeyH, ""},
		{"case and spaces", " Ctrl + F9 ", []hotkey.Modifier{hotkey.ModCtrl}, hotkey.KeyF9, ""},
		{"platform alt", "alt+1", []hotkey.Modifier{modAlt()}, hotkey.Key1, ""},
		{"platform super", "super+space", []hotkey.Modifier{modSuper()}, hotkey.KeySpace, ""},
		{"bare key", "esc", nil, hotkey.KeyEscape, ""},
		{"empty", "", nil, 0, "empty hotkey string"},
		{"modifiers only", "ctrl+shift", nil, 0, "no key specified"},
		{"two keys", "ctrl+a+b", nil, 0, "multiple keys specified"},
		{"unknown key", "ctrl+pageup", nil, 0, "unknown key: pageup"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mods, key, err := Parse(tt.combo)
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.mods, mods)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestStartRejectsInvalidCombo(t *testing.T) {
	m := NewManager(func() {})
	err := m.Start(t.Context(), "ctrl+")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid hotkey")

	// Stop without a registration is a no-op.
	m.Stop()
}
