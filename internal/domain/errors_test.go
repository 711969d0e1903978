package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("permission denied")
	err := fmt.Errorf("start: %w", Wrap(KindDeviceUnavailable, "acquire", cause))

	assert.Equal(t, KindDeviceUnavailable, KindOf(err))
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrTransportUnavailable)
	assert.Equal(t, KindUnknown, KindOf(cause))
	assert.Nil(t, Wrap(KindProtocolAnomaly, "x", nil))
}

func TestParsePeerID(t *testing.T) {
	_, err := ParsePeerID("")
	assert.ErrorIs(t, err, ErrPeerIDEmpty)

	long := make([]byte, MaxPeerIDLen+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = ParsePeerID(string(long))
	assert.ErrorIs(t, err, ErrPeerIDTooLong)

	id, err := ParsePeerID("X")
	assert.NoError(t, err)
	assert.Equal(t, PeerID("X"), id)
	assert.NotEqual(t, NewPeerID(), NewPeerID())
}

func TestThemeToggle(t *testing.T) {
	assert.Equal(t, ThemeDark, ThemeLight.Toggle())
	assert.Equal(t, ThemeLight, ThemeDark.Toggle())
	assert.Equal(t, Preferences{AutoReconnect: true, Theme: ThemeLight}, DefaultPreferences())
}
