package constants

import "testing"

func TestIsValid(t *testing.T) {
	tests := []struct {
		value string
		valid []string
		want  bool
	}{
		{"snmp", SensorDrivers, true},
		{"i2c", SensorDrivers, false},
		{"duckdb", StoreDrivers, true},
		{"", StoreDrivers, false},
		{"mqtt", AlertSinks, true},
		{"json", ValidLogFormats, true},
		{"xml", ValidLogFormats, false},
	}

	for _, tt := range tests {
		if got := IsValid(tt.value, tt.valid); got != tt.want {
			t.Errorf("IsValid(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
