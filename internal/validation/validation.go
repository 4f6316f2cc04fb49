// Package validation provides input validation for configuration values
// that end up on the wire: sensor names, OIDs, topics and broker URLs.
package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// =============================================================================
// Name Validation
// =============================================================================

// NameRules defines the validation rules for names.
type NameRules struct {
	MinLength    int
	MaxLength    int
	AllowDots    bool
	AllowHyphens bool
	AllowUnders  bool
}

// SensorNameRules returns the rules for sensor names. Sensor names seed
// record ids and become Kafka message keys.
func SensorNameRules() NameRules {
	return NameRules{
		MinLength:    1,
		MaxLength:    128,
		AllowDots:    true,
		AllowHyphens: true,
		AllowUnders:  true,
	}
}

// ValidateName validates a name according to the given rules.
func ValidateName(name string, rules NameRules) error {
	if len(name) < rules.MinLength {
		return fmt.Errorf("name too short: minimum %d characters required", rules.MinLength)
	}
	if len(name) > rules.MaxLength {
		return fmt.Errorf("name too long: maximum %d characters allowed", rules.MaxLength)
	}

	if name == "." || name == ".." {
		return fmt.Errorf("name cannot be '.' or '..'")
	}

	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("name cannot start with '.'")
	}

	for i, r := range name {
		if r < 32 || r == 127 {
			return fmt.Errorf("name cannot contain control characters at position %d", i)
		}
		if r == '/' || r == '\\' {
			return fmt.Errorf("name cannot contain path separators at position %d", i)
		}
		if !isAllowedNameChar(r, rules) {
			return fmt.Errorf("invalid character '%c' at position %d", r, i)
		}
	}

	return nil
}

func isAllowedNameChar(r rune, rules NameRules) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '.':
		return rules.AllowDots
	case '-':
		return rules.AllowHyphens
	case '_':
		return rules.AllowUnders
	}
	return false
}

// ValidateSensorName validates a sensor name with SensorNameRules.
func ValidateSensorName(name string) error {
	return ValidateName(name, SensorNameRules())
}

// =============================================================================
// OID Validation
// =============================================================================

// ValidateOID validates a numeric object identifier such as
// ".1.3.6.1.4.1.3854.1.2.2.1.16.1.3.0". The leading dot is optional.
func ValidateOID(oid string) error {
	trimmed := strings.TrimPrefix(oid, ".")
	if trimmed == "" {
		return fmt.Errorf("empty OID")
	}

	arcs := strings.Split(trimmed, ".")
	if len(arcs) < 2 {
		return fmt.Errorf("OID %q needs at least two arcs", oid)
	}

	for i, arc := range arcs {
		if arc == "" {
			return fmt.Errorf("OID %q has an empty arc at position %d", oid, i)
		}
		for _, r := range arc {
			if r < '0' || r > '9' {
				return fmt.Errorf("OID %q has a non-numeric arc %q", oid, arc)
			}
		}
	}

	switch arcs[0] {
	case "0", "1", "2":
	default:
		return fmt.Errorf("OID %q must start with 0, 1 or 2", oid)
	}

	return nil
}

// =============================================================================
// Topic Validation
// =============================================================================

// ValidateMQTTTopic validates a topic alerts are published to. Publish
// topics must not contain wildcards.
func ValidateMQTTTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}
	if len(topic) > 65535 {
		return fmt.Errorf("topic too long: maximum 65535 bytes")
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("topic %q cannot contain wildcards", topic)
	}
	if strings.ContainsRune(topic, 0) {
		return fmt.Errorf("topic cannot contain NUL")
	}
	return nil
}

// ValidateKafkaTopic validates a Kafka topic name.
func ValidateKafkaTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}
	if len(topic) > 249 {
		return fmt.Errorf("topic too long: maximum 249 characters")
	}
	if topic == "." || topic == ".." {
		return fmt.Errorf("topic cannot be '.' or '..'")
	}
	for i, r := range topic {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '.' || r == '_' || r == '-') {
			return fmt.Errorf("invalid character '%c' at position %d", r, i)
		}
	}
	return nil
}

// =============================================================================
// Broker Validation
// =============================================================================

// ValidateBrokerURL validates an MQTT broker URL such as
// "tcp://localhost:1883".
func ValidateBrokerURL(broker string) error {
	u, err := url.Parse(broker)
	if err != nil {
		return fmt.Errorf("invalid broker URL: %w", err)
	}

	switch u.Scheme {
	case "tcp", "mqtt", "ssl", "tls", "mqtts", "ws", "wss":
	default:
		return fmt.Errorf("broker URL %q: unsupported scheme %q", broker, u.Scheme)
	}

	if u.Hostname() == "" {
		return fmt.Errorf("broker URL %q has no host", broker)
	}
	return nil
}

// ValidateHostPort validates a "host:port" Kafka broker address.
func ValidateHostPort(addr string) error {
	i := strings.LastIndexByte(addr, ':')
	if i <= 0 || i == len(addr)-1 {
		return fmt.Errorf("address %q must be host:port", addr)
	}
	for _, r := range addr[i+1:] {
		if r < '0' || r > '9' {
			return fmt.Errorf("address %q has a non-numeric port", addr)
		}
	}
	return nil
}
