package sensors

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/gekkolab/vivarium/internal/monitoring"
	"github.com/gekkolab/vivarium/internal/timeutil"
)

// ClimateSensor reads one environmental sample per call.
type ClimateSensor interface {
	// Read returns the current sample, ErrUnavailable when the sensor is
	// absent, or another error for a transient read failure.
	Read(ctx context.Context) (*ClimateSample, error)
}

// SerialClimateSensor reads temperature/humidity/pressure lines from a
// serial-attached bridge MCU. The wire format is one CSV line per reading:
//
//	28.4,61.2,1012.8
type SerialClimateSensor struct {
	mu      sync.Mutex
	port    serial.Port
	scanner *bufio.Scanner
	clock   timeutil.Clock
}

// NewSerialClimateSensor opens the serial port. An open failure is not fatal:
// the sensor is returned in an unavailable state and every Read reports
// ErrUnavailable, so the poller keeps running and the dashboard shows the gap.
func NewSerialClimateSensor(portName string, baud int, clock timeutil.Clock) *SerialClimateSensor {
	s := &SerialClimateSensor{clock: clock}
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		monitoring.Logf("climate sensor: cannot open %s: %v (running without hardware)", portName, err)
		return s
	}
	if err := port.SetReadTimeout(5 * time.Second); err != nil {
		monitoring.Logf("climate sensor: cannot set read timeout on %s: %v", portName, err)
	}
	s.port = port
	s.scanner = bufio.NewScanner(port)
	return s
}

// Read blocks for the next complete line from the bridge and parses it.
func (s *SerialClimateSensor) Read(ctx context.Context) (*ClimateSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return nil, ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading serial line: %w", err)
		}
		return nil, ErrUnavailable
	}
	sample, err := parseClimateLine(s.scanner.Text())
	if err != nil {
		return nil, err
	}
	sample.Timestamp = s.clock.Now()
	return sample, nil
}

// Close releases the serial port.
func (s *SerialClimateSensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

func parseClimateLine(line string) (*ClimateSample, error) {
	segments := strings.Split(strings.TrimSpace(line), ",")
	if len(segments) != 3 {
		return nil, fmt.Errorf("malformed climate line %q: want 3 fields, got %d", line, len(segments))
	}

	temperature, err := strconv.ParseFloat(segments[0], 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse temperature: %v", err)
	}
	humidity, err := strconv.ParseFloat(segments[1], 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse humidity: %v", err)
	}
	pressure, err := strconv.ParseFloat(segments[2], 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pressure: %v", err)
	}

	return &ClimateSample{
		TemperatureC: temperature,
		HumidityPct:  humidity,
		PressureHPa:  pressure,
	}, nil
}

// SimClimateSensor produces slowly drifting synthetic readings for dev mode.
type SimClimateSensor struct {
	mu    sync.Mutex
	tick  float64
	clock timeutil.Clock
}

// NewSimClimateSensor creates a simulator.
func NewSimClimateSensor(clock timeutil.Clock) *SimClimateSensor {
	return &SimClimateSensor{clock: clock}
}

// Read returns the next synthetic sample.
func (s *SimClimateSensor) Read(ctx context.Context) (*ClimateSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick++
	return &ClimateSample{
		TemperatureC: 28.0 + 2.0*math.Sin(s.tick/20),
		HumidityPct:  60.0 + 5.0*math.Sin(s.tick/35),
		PressureHPa:  1013.0 + math.Sin(s.tick/50),
		Timestamp:    s.clock.Now(),
	}, nil
}
