package reading

import (
	"math"
	"math/rand"
	"testing"
)

func TestToCanonicalFCelsius(t *testing.T) {
	tests := []struct {
		c    float64
		want float64
	}{
		{-40, -40},
		{0, 32},
		{25, 77},
		{100, 212},
	}

	for _, tt := range tests {
		if got := ToCanonicalF(tt.c, Celsius); got != tt.want {
			t.Errorf("ToCanonicalF(%v, Celsius) = %v, want %v", tt.c, got, tt.want)
		}
	}
}

func TestToCanonicalFProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 1000; i++ {
		v := (rng.Float64() - 0.5) * 400

		if got, want := ToCanonicalF(v, Celsius), v*9/5+32; got != want {
			t.Fatalf("ToCanonicalF(%v, Celsius) = %v, want %v", v, got, want)
		}
		if got := ToCanonicalF(v, Fahrenheit); got != v {
			t.Fatalf("ToCanonicalF(%v, Fahrenheit) = %v, want identity", v, got)
		}

		// Same input, same output.
		if ToCanonicalF(v, Celsius) != ToCanonicalF(v, Celsius) {
			t.Fatalf("ToCanonicalF(%v) not deterministic", v)
		}
	}
}

func TestNormalize(t *testing.T) {
	r := Reading{RawTemperature: 27.0, Unit: Celsius, Moisture: 380, CapturedAt: 1700000000000}
	n := Normalize(r)

	if math.Abs(n.TemperatureF-80.6) > 1e-9 {
		t.Errorf("TemperatureF = %v, want 80.6", n.TemperatureF)
	}
	if n.Moisture != 380 || n.CapturedAt != r.CapturedAt {
		t.Errorf("Normalize lost fields: %+v", n)
	}

	f := Normalize(Reading{RawTemperature: 80.6, Unit: Fahrenheit, Moisture: 1})
	if f.TemperatureF != 80.6 {
		t.Errorf("Fahrenheit reading converted: %v", f.TemperatureF)
	}
}

func TestParseUnit(t *testing.T) {
	tests := []struct {
		in      string
		want    Unit
		wantErr bool
	}{
		{"", Celsius, false},
		{"C", Celsius, false},
		{"celsius", Celsius, false},
		{"Fahrenheit", Fahrenheit, false},
		{"f", Fahrenheit, false},
		{"kelvin", Celsius, true},
	}

	for _, tt := range tests {
		got, err := ParseUnit(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseUnit(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseUnit(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRecordID(t *testing.T) {
	a := RecordID("probe-1", 1700000000000)
	b := RecordID("probe-1", 1700000000000)
	if a != b {
		t.Errorf("RecordID not deterministic: %s != %s", a, b)
	}
	if a == RecordID("probe-1", 1700000000001) {
		t.Error("different timestamps share an id")
	}
	if a == RecordID("probe-2", 1700000000000) {
		t.Error("different sensors share an id")
	}
}

func TestRecordWithID(t *testing.T) {
	rec := NewRecord(Normalized{TemperatureF: 77, Moisture: 400, CapturedAt: 5})
	if rec.ID != "" {
		t.Fatalf("NewRecord assigned id %q", rec.ID)
	}

	withID := rec.WithID("probe-1")
	if withID.ID != RecordID("probe-1", 5) {
		t.Errorf("WithID = %q", withID.ID)
	}
	if rec.ID != "" {
		t.Error("WithID mutated the original")
	}
	if again := withID.WithID("other"); again.ID != withID.ID {
		t.Error("WithID replaced an existing id")
	}
	if withID.Temperature != 77 || withID.Moisture != 400 || withID.TimestampMs != 5 {
		t.Errorf("record fields = %+v", withID)
	}
}
