package device

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHID replays a fixed sequence of reports, then behaves like a device
// that times out on every poll.
type fakeHID struct {
	reports  [][FrameSize]byte
	idx      int
	readErr  error
	features [][]byte
	closed   bool
}

func (f *fakeHID) ReadWithTimeout(b []byte, _ time.Duration) (int, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	if f.idx >= len(f.reports) {
		return 0, nil // poll timeout
	}
	copy(b, f.reports[f.idx][:])
	f.idx++
	return FrameSize, nil
}

func (f *fakeHID) SendFeatureReport(b []byte) (int, error) {
	f.features = append(f.features, append([]byte(nil), b...))
	return len(b), nil
}

func (f *fakeHID) Close() error {
	f.closed = true
	return nil
}

func newTestSession(t *testing.T, dev *fakeHID) *Session {
	t.Helper()
	s := &Session{
		pollTimeout: time.Millisecond,
		open:        func() (hidDevice, error) { return dev, nil },
		now:         time.Now,
	}
	require.NoError(t, s.Connect())
	return s
}

func TestConnect_SendsInitReport(t *testing.T) {
	dev := &fakeHID{}
	s := newTestSession(t, dev)

	require.Len(t, dev.features, 1)
	assert.Len(t, dev.features[0], 9)
	assert.Equal(t, byte(0x00), dev.features[0][0])
	assert.True(t, s.IsConnected())

	// Connecting again is a no-op.
	require.NoError(t, s.Connect())
	assert.Len(t, dev.features, 1)
}

func TestConnect_OpenFails(t *testing.T) {
	s := &Session{
		pollTimeout: time.Millisecond,
		open:        func() (hidDevice, error) { return nil, errors.New("no such device") },
		now:         time.Now,
	}
	assert.Error(t, s.Connect())
	assert.False(t, s.IsConnected())
}

func TestDisconnect(t *testing.T) {
	dev := &fakeHID{}
	s := newTestSession(t, dev)

	s.Disconnect()
	assert.True(t, dev.closed)
	assert.False(t, s.IsConnected())

	_, err := s.Read(10 * time.Millisecond)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestRead_CompleteReading(t *testing.T) {
	dev := &fakeHID{reports: [][FrameSize]byte{
		encodeReport(validFrame(opCO2, 842)),
		encodeReport(validFrame(opTemperature, 4727)),
	}}
	s := newTestSession(t, dev)

	r, err := s.Read(200 * time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, r.CO2PPM)
	require.NotNil(t, r.Temperature)
	assert.Equal(t, 842, *r.CO2PPM)
	assert.InDelta(t, 22.3, *r.Temperature, 0.001)
	assert.False(t, r.Timestamp.IsZero())
}

func TestRead_IgnoresGarbledAndUnknownFrames(t *testing.T) {
	bad := validFrame(opCO2, 9999)
	bad[3]++ // break the checksum

	dev := &fakeHID{reports: [][FrameSize]byte{
		encodeReport(bad),
		encodeReport(validFrame(0x6D, 1234)), // opcode of no interest
		encodeReport(validFrame(opCO2, 651)),
		encodeReport(validFrame(opTemperature, 4727)),
	}}
	s := newTestSession(t, dev)

	r, err := s.Read(200 * time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, r.CO2PPM)
	assert.Equal(t, 651, *r.CO2PPM)
}

func TestRead_CarriesForwardMissingField(t *testing.T) {
	dev := &fakeHID{reports: [][FrameSize]byte{
		encodeReport(validFrame(opCO2, 500)),
		encodeReport(validFrame(opTemperature, 4727)),
		encodeReport(validFrame(opCO2, 520)),
	}}
	s := newTestSession(t, dev)

	first, err := s.Read(200 * time.Millisecond)
	require.NoError(t, err)
	require.True(t, first.Complete())

	// Second window only sees a CO2 frame; temperature carries forward and
	// the reading completes immediately.
	second, err := s.Read(200 * time.Millisecond)
	require.NoError(t, err)
	require.True(t, second.Complete())
	assert.Equal(t, 520, *second.CO2PPM)
	assert.InDelta(t, 22.3, *second.Temperature, 0.001)
	assert.False(t, second.Timestamp.Before(first.Timestamp))
}

func TestRead_NoNewData_KeepsTimestamp(t *testing.T) {
	dev := &fakeHID{reports: [][FrameSize]byte{
		encodeReport(validFrame(opCO2, 500)),
		encodeReport(validFrame(opTemperature, 4727)),
	}}
	s := newTestSession(t, dev)

	first, err := s.Read(100 * time.Millisecond)
	require.NoError(t, err)

	// Device yields nothing in this window: same values, same timestamp.
	second, err := s.Read(20 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRead_DeviceError(t *testing.T) {
	dev := &fakeHID{readErr: errors.New("usb: transfer failed")}
	s := newTestSession(t, dev)

	_, err := s.Read(50 * time.Millisecond)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotConnected)
}
