package sensor

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/xtxerr/heatwatch/internal/errors"
	"github.com/xtxerr/heatwatch/internal/loader"
	"github.com/xtxerr/heatwatch/internal/reading"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func failureKind(t *testing.T, err error) errors.SensorFailureKind {
	t.Helper()
	var f *errors.SensorFailure
	if !errors.As(err, &f) {
		t.Fatalf("error %v is not a SensorFailure", err)
	}
	return f.Kind
}

func TestFileRead(t *testing.T) {
	dir := t.TempDir()
	s := NewFile(loader.FileSensorConfig{
		TemperaturePath: writeFile(t, dir, "temp1_input", "27000\n"),
		MoisturePath:    writeFile(t, dir, "moisture", "380\n"),
	}, reading.Celsius)
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }

	r, err := s.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := reading.Reading{RawTemperature: 27.0, Unit: reading.Celsius, Moisture: 380, CapturedAt: 1700000000000}
	if r != want {
		t.Errorf("Read = %+v, want %+v", r, want)
	}
}

func TestFileReadFailures(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good", "21000")

	tests := []struct {
		name     string
		temp     string
		moisture string
		want     errors.SensorFailureKind
	}{
		{"missing temperature", filepath.Join(dir, "gone"), good, errors.SensorDisconnected},
		{"missing moisture", good, filepath.Join(dir, "gone"), errors.SensorDisconnected},
		{"garbage", writeFile(t, dir, "garbage", "hot"), good, errors.SensorInvalidValue},
		{"nan", writeFile(t, dir, "nan", "NaN"), good, errors.SensorInvalidValue},
		{"inf", good, writeFile(t, dir, "inf", "+Inf"), errors.SensorInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewFile(loader.FileSensorConfig{TemperaturePath: tt.temp, MoisturePath: tt.moisture}, reading.Celsius)
			_, err := s.Read(context.Background())
			if err == nil {
				t.Fatal("expected failure")
			}
			if got := failureKind(t, err); got != tt.want {
				t.Errorf("kind = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReadCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snmp, err := NewSNMP(loader.SNMPSensorConfig{
		Host:           "192.0.2.1",
		Community:      "public",
		TemperatureOID: ".1.3.6.1.4.1.3854.1.2.2.1.16.1.3.0",
		MoistureOID:    ".1.3.6.1.4.1.3854.1.2.2.1.17.1.3.0",
	}, reading.Celsius, time.Second)
	if err != nil {
		t.Fatalf("NewSNMP: %v", err)
	}

	ports := map[string]Port{
		"snmp": snmp,
		"file": NewFile(loader.FileSensorConfig{TemperaturePath: "x", MoisturePath: "y"}, reading.Celsius),
		"sim":  NewSim(1),
	}
	for name, p := range ports {
		_, err := p.Read(ctx)
		if err == nil {
			t.Errorf("%s: expected failure on cancelled context", name)
			continue
		}
		if !errors.Is(err, errors.ErrSensorTimeout) {
			t.Errorf("%s: err = %v, want sensor timeout", name, err)
		}
	}
}

func TestSimRange(t *testing.T) {
	s := NewSim(42)
	for i := 0; i < 500; i++ {
		r, err := s.Read(context.Background())
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if r.Unit != reading.Celsius {
			t.Fatalf("unit = %v", r.Unit)
		}
		if r.RawTemperature < SimMinTemperatureC || r.RawTemperature > SimMaxTemperatureC {
			t.Fatalf("temperature %v out of range", r.RawTemperature)
		}
		if r.Moisture < SimMinMoisture || r.Moisture > SimMaxMoisture {
			t.Fatalf("moisture %v out of range", r.Moisture)
		}
	}
}

func TestNewSNMPValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  loader.SNMPSensorConfig
	}{
		{"no host", loader.SNMPSensorConfig{Community: "public", TemperatureOID: ".1", MoistureOID: ".2"}},
		{"no oid", loader.SNMPSensorConfig{Host: "h", Community: "public", MoistureOID: ".2"}},
		{"v2c without community", loader.SNMPSensorConfig{Host: "h", TemperatureOID: ".1", MoistureOID: ".2"}},
	}

	for _, tt := range tests {
		if _, err := NewSNMP(tt.cfg, reading.Celsius, time.Second); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}

	v3 := loader.SNMPSensorConfig{Host: "h", SecurityName: "monitor", TemperatureOID: ".1", MoistureOID: ".2"}
	s, err := NewSNMP(v3, reading.Fahrenheit, 0)
	if err != nil {
		t.Fatalf("v3 config rejected: %v", err)
	}
	if s.cfg.Port != 161 || s.cfg.Divisor != 1 || s.timeout != 2*time.Second {
		t.Errorf("defaults not applied: port=%d divisor=%v timeout=%s", s.cfg.Port, s.cfg.Divisor, s.timeout)
	}

	client := s.createClient(context.Background())
	if client.Version != gosnmp.Version3 {
		t.Errorf("version = %v, want v3", client.Version)
	}
}

func TestCreateClientFitsDeadline(t *testing.T) {
	s, err := NewSNMP(loader.SNMPSensorConfig{
		Host: "h", Community: "public", TemperatureOID: ".1", MoistureOID: ".2", Retries: 1,
	}, reading.Celsius, 10*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client := s.createClient(ctx)
	if client.Timeout > time.Second {
		t.Errorf("per-try timeout %s exceeds deadline share", client.Timeout)
	}
	if client.Version != gosnmp.Version2c || client.Community != "public" {
		t.Errorf("client = %+v", client)
	}
}

func TestNumericValue(t *testing.T) {
	tests := []struct {
		name    string
		pdu     gosnmp.SnmpPDU
		want    float64
		wantErr bool
	}{
		{"integer", gosnmp.SnmpPDU{Type: gosnmp.Integer, Value: 235}, 235, false},
		{"gauge", gosnmp.SnmpPDU{Type: gosnmp.Gauge32, Value: uint(400)}, 400, false},
		{"string", gosnmp.SnmpPDU{Type: gosnmp.OctetString, Value: []byte(" 23.5 ")}, 23.5, false},
		{"double", gosnmp.SnmpPDU{Type: gosnmp.OpaqueDouble, Value: 21.25}, 21.25, false},
		{"float", gosnmp.SnmpPDU{Type: gosnmp.OpaqueFloat, Value: float32(19.5)}, 19.5, false},
		{"text", gosnmp.SnmpPDU{Type: gosnmp.OctetString, Value: []byte("n/a")}, 0, true},
		{"no such object", gosnmp.SnmpPDU{Type: gosnmp.NoSuchObject}, 0, true},
		{"ip address", gosnmp.SnmpPDU{Type: gosnmp.IPAddress, Value: "10.0.0.1"}, 0, true},
	}

	for _, tt := range tests {
		got, err := numericValue(tt.pdu)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIsTimeoutError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("request timeout (after 1 retries)"), true},
		{context.DeadlineExceeded, true},
		{errors.Wrap(context.DeadlineExceeded, "get"), true},
		{errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		if got := isTimeoutError(tt.err); got != tt.want {
			t.Errorf("isTimeoutError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestNew(t *testing.T) {
	cfg := loader.DefaultConfig().Sensor

	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New(sim): %v", err)
	}
	if _, ok := p.(*Sim); !ok {
		t.Errorf("New(sim) = %T", p)
	}

	cfg.Driver = "i2c"
	if _, err := New(cfg); !errors.Is(err, errors.ErrUnknownDriver) {
		t.Errorf("New(i2c) err = %v", err)
	}

	cfg.Driver = "sim"
	cfg.Unit = "kelvin"
	if _, err := New(cfg); err == nil {
		t.Error("expected unit error")
	}
}
