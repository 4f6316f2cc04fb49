package sensor

import (
	"context"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/xtxerr/heatwatch/config"
	"github.com/xtxerr/heatwatch/internal/errors"
	"github.com/xtxerr/heatwatch/internal/loader"
	"github.com/xtxerr/heatwatch/internal/reading"
)

// =============================================================================
// SNMP Sensor
// =============================================================================

// SNMP reads temperature and moisture from an SNMP environmental probe.
//
// Both OIDs are fetched in a single GET. A fresh UDP session is opened per
// read so a probe that reboots between ticks is picked up again.
type SNMP struct {
	cfg     loader.SNMPSensorConfig
	unit    reading.Unit
	timeout time.Duration
	now     func() time.Time
}

// NewSNMP creates an SNMP sensor.
func NewSNMP(cfg loader.SNMPSensorConfig, unit reading.Unit, timeout time.Duration) (*SNMP, error) {
	if err := validateSNMP(&cfg); err != nil {
		return nil, err
	}
	if cfg.Port == 0 {
		cfg.Port = config.DefaultSNMPPort
	}
	if cfg.Divisor == 0 {
		cfg.Divisor = 1
	}
	if timeout <= 0 {
		timeout = config.DefaultSensorTimeout
	}

	return &SNMP{
		cfg:     cfg,
		unit:    unit,
		timeout: timeout,
		now:     time.Now,
	}, nil
}

// Read executes one SNMP GET for both OIDs.
func (s *SNMP) Read(ctx context.Context) (reading.Reading, error) {
	if err := cancelled(ctx); err != nil {
		return reading.Reading{}, err
	}

	client := s.createClient(ctx)

	if err := client.Connect(); err != nil {
		return reading.Reading{}, errors.NewSensorFailure(errors.SensorDisconnected, fmt.Errorf("connect %s: %w", s.cfg.Host, err))
	}
	defer client.Conn.Close()

	pdu, err := client.Get([]string{s.cfg.TemperatureOID, s.cfg.MoistureOID})
	if err != nil {
		if isTimeoutError(err) || ctx.Err() != nil {
			return reading.Reading{}, errors.NewSensorFailure(errors.SensorTimeout, fmt.Errorf("get: %w", err))
		}
		return reading.Reading{}, errors.NewSensorFailure(errors.SensorDisconnected, fmt.Errorf("get: %w", err))
	}

	if len(pdu.Variables) != 2 {
		return reading.Reading{}, errors.NewSensorFailure(errors.SensorInvalidValue,
			fmt.Errorf("expected 2 variables, got %d", len(pdu.Variables)))
	}

	temp, err := numericValue(pdu.Variables[0])
	if err != nil {
		return reading.Reading{}, errors.NewSensorFailure(errors.SensorInvalidValue, fmt.Errorf("temperature: %w", err))
	}
	moisture, err := numericValue(pdu.Variables[1])
	if err != nil {
		return reading.Reading{}, errors.NewSensorFailure(errors.SensorInvalidValue, fmt.Errorf("moisture: %w", err))
	}

	temp /= s.cfg.Divisor
	if err := checkFinite("temperature", temp); err != nil {
		return reading.Reading{}, err
	}
	if err := checkFinite("moisture", moisture); err != nil {
		return reading.Reading{}, err
	}

	log.Debug("snmp read", "host", s.cfg.Host, "temperature", temp, "moisture", moisture)

	return reading.Reading{
		RawTemperature: temp,
		Unit:           s.unit,
		Moisture:       int64(math.Round(moisture)),
		CapturedAt:     s.now().UnixMilli(),
	}, nil
}

// Close implements Port. Sessions are per read, so there is nothing to release.
func (s *SNMP) Close() error {
	return nil
}

// =============================================================================
// Configuration Validation
// =============================================================================

func validateSNMP(cfg *loader.SNMPSensorConfig) error {
	if cfg.Host == "" {
		return errors.NewMissingField("sensor.snmp.host")
	}
	if cfg.TemperatureOID == "" {
		return errors.NewMissingField("sensor.snmp.temperature_oid")
	}
	if cfg.MoistureOID == "" {
		return errors.NewMissingField("sensor.snmp.moisture_oid")
	}

	isV3 := cfg.SecurityName != ""
	if !isV3 && cfg.Community == "" {
		return errors.NewValidation("sensor.snmp.community", "SNMP v2c requires a community string")
	}

	return nil
}

// =============================================================================
// SNMP Client Creation
// =============================================================================

func (s *SNMP) createClient(ctx context.Context) *gosnmp.GoSNMP {
	retries := s.cfg.Retries
	if retries < 0 {
		retries = 0
	}

	// Fit all attempts into the caller's deadline.
	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if perTry := time.Until(deadline) / time.Duration(retries+1); perTry < timeout {
			timeout = perTry
		}
	}

	client := &gosnmp.GoSNMP{
		Context: ctx,
		Target:  s.cfg.Host,
		Port:    s.cfg.Port,
		Timeout: timeout,
		Retries: retries,
	}

	// Configure version based on presence of security name
	if s.cfg.SecurityName != "" {
		client.Version = gosnmp.Version3
		client.SecurityModel = gosnmp.UserSecurityModel
		client.MsgFlags = getMsgFlags(s.cfg.SecurityLevel)
		client.SecurityParameters = &gosnmp.UsmSecurityParameters{
			UserName:                 s.cfg.SecurityName,
			AuthenticationProtocol:   getAuthProtocol(s.cfg.AuthProtocol),
			AuthenticationPassphrase: s.cfg.AuthPassword,
			PrivacyProtocol:          getPrivProtocol(s.cfg.PrivProtocol),
			PrivacyPassphrase:        s.cfg.PrivPassword,
		}
		if s.cfg.ContextName != "" {
			client.ContextName = s.cfg.ContextName
		}
	} else {
		client.Version = gosnmp.Version2c
		client.Community = s.cfg.Community
	}

	return client
}

// =============================================================================
// SNMPv3 Protocol Helpers
// =============================================================================

func getMsgFlags(level string) gosnmp.SnmpV3MsgFlags {
	switch level {
	case "authNoPriv":
		return gosnmp.AuthNoPriv
	case "authPriv":
		return gosnmp.AuthPriv
	default:
		return gosnmp.NoAuthNoPriv
	}
}

func getAuthProtocol(protocol string) gosnmp.SnmpV3AuthProtocol {
	switch protocol {
	case "MD5":
		return gosnmp.MD5
	case "SHA":
		return gosnmp.SHA
	case "SHA224":
		return gosnmp.SHA224
	case "SHA256":
		return gosnmp.SHA256
	case "SHA384":
		return gosnmp.SHA384
	case "SHA512":
		return gosnmp.SHA512
	default:
		return gosnmp.NoAuth
	}
}

func getPrivProtocol(protocol string) gosnmp.SnmpV3PrivProtocol {
	switch protocol {
	case "DES":
		return gosnmp.DES
	case "AES":
		return gosnmp.AES
	case "AES192":
		return gosnmp.AES192
	case "AES256":
		return gosnmp.AES256
	default:
		return gosnmp.NoPriv
	}
}

// =============================================================================
// Value Helpers
// =============================================================================

// numericValue extracts a number from a variable. Probes that report
// readings as strings ("23.5") are accepted.
func numericValue(v gosnmp.SnmpPDU) (float64, error) {
	switch v.Type {
	case gosnmp.Integer:
		return float64(v.Value.(int)), nil

	case gosnmp.Counter32, gosnmp.Counter64, gosnmp.Gauge32, gosnmp.Uinteger32, gosnmp.TimeTicks:
		return float64(gosnmp.ToBigInt(v.Value).Int64()), nil

	case gosnmp.OpaqueFloat:
		return float64(v.Value.(float32)), nil

	case gosnmp.OpaqueDouble:
		return v.Value.(float64), nil

	case gosnmp.OctetString:
		s := strings.TrimSpace(string(v.Value.([]byte)))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: not a number: %q", v.Name, s)
		}
		return f, nil

	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
		return 0, fmt.Errorf("%s: OID not found", v.Name)

	default:
		return 0, fmt.Errorf("%s: unsupported type %v", v.Name, v.Type)
	}
}

// =============================================================================
// Error Helpers
// =============================================================================

func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// gosnmp reports "request timeout (after N retries)"
	return strings.Contains(err.Error(), "request timeout")
}
