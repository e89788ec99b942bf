package device

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marcuspuchalla/co2-monitor/internal/model"
	"github.com/sstallion/go-hid"
)

// USB identifiers of the AirControl Mini.
const (
	VendorID  = 0x04D9
	ProductID = 0xA052
)

// ErrNotConnected is returned by Read when no device handle is open.
var ErrNotConnected = errors.New("device not connected")

// defaultPollTimeout bounds one HID poll inside Read so the outer deadline
// and shutdown are honored promptly.
const defaultPollTimeout = 100 * time.Millisecond

// hidDevice is the subset of the HID handle the session uses. The concrete
// type is *hid.Device; tests substitute a fake.
type hidDevice interface {
	ReadWithTimeout(b []byte, timeout time.Duration) (int, error)
	SendFeatureReport(b []byte) (int, error)
	Close() error
}

// Session owns exactly one handle to the sensor and assembles readings from
// its frames. All methods are safe for use from a single goroutine at a time;
// the ingestion loop is the only intended caller.
type Session struct {
	mu          sync.Mutex
	dev         hidDevice
	last        model.Reading
	pollTimeout time.Duration
	open        func() (hidDevice, error)
	now         func() time.Time
}

// NewSession returns a session that opens the real hardware on Connect.
func NewSession() *Session {
	return &Session{
		pollTimeout: defaultPollTimeout,
		open:        openHardware,
		now:         time.Now,
	}
}

func openHardware() (hidDevice, error) {
	if err := hid.Init(); err != nil {
		return nil, fmt.Errorf("initializing hidapi: %w", err)
	}
	dev, err := hid.OpenFirst(VendorID, ProductID)
	if err != nil {
		return nil, fmt.Errorf("opening device %04x:%04x: %w", VendorID, ProductID, err)
	}
	return dev, nil
}

// Connect opens the device and issues the initialization feature report.
// Calling Connect on an already connected session is a no-op.
func (s *Session) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dev != nil {
		return nil
	}

	dev, err := s.open()
	if err != nil {
		return err
	}

	// 9-byte feature report: report selector 0x00 followed by the key the
	// decoder expects the device to scramble with.
	report := append([]byte{0x00}, maskKey[:]...)
	if _, err := dev.SendFeatureReport(report); err != nil {
		dev.Close()
		return fmt.Errorf("sending init report: %w", err)
	}

	s.dev = dev
	return nil
}

// IsConnected reports whether a device handle is open.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dev != nil
}

// Disconnect closes the device handle if one is open.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev != nil {
		s.dev.Close()
		s.dev = nil
	}
}

// Read polls the device for up to timeout and returns the best reading
// assembled in that window. Fields are seeded from the last known reading, so
// a window only needs the missing frame type to complete; as soon as both
// fields are populated by fresh frames the call returns early. If nothing new
// arrived, the carried-forward reading is returned with its old timestamp.
func (s *Session) Read(timeout time.Duration) (model.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dev == nil {
		return model.Reading{}, ErrNotConnected
	}

	reading := s.last
	changed := false
	deadline := s.now().Add(timeout)
	buf := make([]byte, FrameSize)

	for s.now().Before(deadline) {
		n, err := s.dev.ReadWithTimeout(buf, s.pollTimeout)
		if err != nil {
			return reading, fmt.Errorf("reading report: %w", err)
		}
		if n < FrameSize {
			continue
		}

		frame := Decode([FrameSize]byte(buf))
		op, value, ok := parseFrame(frame)
		if !ok {
			// Checksum mismatch: garbled report, drop it.
			continue
		}

		switch op {
		case opCO2:
			v := int(value)
			reading.CO2PPM = &v
			changed = true
		case opTemperature:
			t := temperatureFromRaw(value)
			reading.Temperature = &t
			changed = true
		}

		if changed && reading.Complete() {
			break
		}
	}

	if changed {
		reading.Timestamp = s.now()
	}
	s.last = reading
	return reading, nil
}
