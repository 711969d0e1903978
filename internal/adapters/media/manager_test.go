package media

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dkeye/randomic/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCapture struct {
	once   sync.Once
	closed chan struct{}
}

func (c *fakeCapture) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, errors.New("closed")
	}
}

func (c *fakeCapture) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeCapture) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type fakeDevice struct {
	mu       sync.Mutex
	captures []*fakeCapture
	opened   atomic.Int32
}

func (d *fakeDevice) Open(context.Context) (Capture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened.Add(1)
	c := &fakeCapture{closed: make(chan struct{})}
	d.captures = append(d.captures, c)
	return c, nil
}

func TestAcquireRelease(t *testing.T) {
	dev := &fakeDevice{}
	m := NewManager(dev)
	assert.False(t, m.Active())

	s, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, m.Active())
	assert.True(t, s.Enabled())
	assert.NotNil(t, s.Track())

	m.Release()
	assert.False(t, m.Active())
	assert.True(t, s.Stopped())
	assert.True(t, dev.captures[0].isClosed())

	m.Release()
}

func TestAcquireStopsPreviousStream(t *testing.T) {
	dev := &fakeDevice{}
	m := NewManager(dev)

	first, err := m.Acquire(context.Background())
	require.NoError(t, err)
	second, err := m.Acquire(context.Background())
	require.NoError(t, err)

	assert.True(t, first.Stopped())
	assert.True(t, dev.captures[0].isClosed())
	assert.False(t, second.Stopped())
	assert.NotEqual(t, first.ID(), second.ID())
	m.Release()
}

func TestCanceledAcquireKeepsLiveStream(t *testing.T) {
	dev := &fakeDevice{}
	m := NewManager(dev)

	live, err := m.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, err := m.Acquire(ctx)
	assert.Nil(t, s)
	require.Error(t, err)
	assert.Equal(t, domain.KindDeviceUnavailable, domain.KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)

	assert.False(t, live.Stopped())
	assert.True(t, m.Active())
	assert.Equal(t, int32(1), dev.opened.Load())
	m.Release()
}

// cancelingDevice cancels the caller while the device is opening.
type cancelingDevice struct {
	fakeDevice
	cancel context.CancelFunc
}

func (d *cancelingDevice) Open(ctx context.Context) (Capture, error) {
	c, err := d.fakeDevice.Open(ctx)
	d.cancel()
	return c, err
}

func TestAcquireCanceledDuringOpenClosesCapture(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	dev := &cancelingDevice{cancel: cancel}
	m := NewManager(dev)

	s, err := m.Acquire(ctx)
	assert.Nil(t, s)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, dev.captures[0].isClosed())
	assert.False(t, m.Active())
}

func TestAcquireDenied(t *testing.T) {
	m := NewManager(DeniedDevice{})
	s, err := m.Acquire(context.Background())
	assert.Nil(t, s)
	require.Error(t, err)
	assert.Equal(t, domain.KindDeviceUnavailable, domain.KindOf(err))
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.False(t, m.Active())
}

func TestStaleStreamStopDeactivatesManager(t *testing.T) {
	m := NewManager(&fakeDevice{})
	s, err := m.Acquire(context.Background())
	require.NoError(t, err)
	s.Stop()
	assert.False(t, m.Active())
}

func TestMuteState(t *testing.T) {
	m := NewManager(&fakeDevice{})
	ls, err := m.Acquire(context.Background())
	require.NoError(t, err)
	s := ls.(*Stream)

	s.SetEnabled(false)
	assert.Equal(t, TrackStateMuted, s.State())
	assert.False(t, s.Enabled())
	s.SetEnabled(true)
	assert.Equal(t, TrackStateLive, s.State())

	s.Stop()
	s.SetEnabled(true)
	assert.Equal(t, TrackStateStopped, s.State())
}

func TestSilenceDevice(t *testing.T) {
	c, err := SilenceDevice{}.Open(context.Background())
	require.NoError(t, err)
	frame, err := c.ReadFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, opusSilence, frame)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	_, err = c.ReadFrame(context.Background())
	assert.Error(t, err)
}
