package validation

import (
	"strings"
	"testing"
)

func TestIsValidPhone(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		valid bool
	}{
		{
			name:  "local number",
			phone: "03001234567",
			valid: true,
		},
		{
			name:  "international prefix",
			phone: "+923001234567",
			valid: true,
		},
		{
			name:  "too short",
			phone: "12345",
			valid: false,
		},
		{
			name:  "contains letters",
			phone: "0300abc4567",
			valid: false,
		},
		{
			name:  "empty string",
			phone: "",
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidPhone(tt.phone)
			if got != tt.valid {
				t.Fatalf("IsValidPhone(%q) = %v, want %v", tt.phone, got, tt.valid)
			}
		})
	}
}

func TestCoordinates(t *testing.T) {
	tests := []struct {
		name    string
		coords  []float64
		wantErr bool
	}{
		{name: "empty", coords: nil, wantErr: false},
		{name: "valid", coords: []float64{67.0011, 24.8607}, wantErr: false},
		{name: "single value", coords: []float64{67.0}, wantErr: true},
		{name: "longitude out of range", coords: []float64{181, 0}, wantErr: true},
		{name: "latitude out of range", coords: []float64{0, -91}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Coordinates(tt.coords)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Coordinates(%v) error = %v, wantErr %v", tt.coords, err, tt.wantErr)
			}
		})
	}
}

type sample struct {
	Name   string    `json:"name" validate:"required"`
	Phone  string    `json:"phone" validate:"omitempty,phone"`
	Coords []float64 `json:"coordinates" validate:"coords"`
	Rate   int       `json:"rate" validate:"min=1,max=5"`
}

func TestStruct(t *testing.T) {
	ok := sample{Name: "x", Phone: "03001234567", Coords: []float64{1, 2}, Rate: 3}
	if err := Struct(ok); err != nil {
		t.Fatalf("Struct(valid) error: %v", err)
	}

	bad := sample{Phone: "abc", Coords: []float64{500, 0}, Rate: 9}
	err := Struct(bad)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, field := range []string{"name", "phone", "coordinates", "rate"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("error %q does not mention %s", err.Error(), field)
		}
	}
}
