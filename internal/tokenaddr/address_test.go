package tokenaddr

import "testing"

// Base58 encoding of the ed25519 generator point, guaranteed on-curve.
const validAddress = "6x5SYnLroiN7WYq8NQYU9KHcH4YjpBbwpUfVu3EB7ieH"

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{name: "valid address", addr: validAddress, wantErr: false},
		{name: "empty", addr: "", wantErr: true},
		{name: "bad base58", addr: "0OIl+/=", wantErr: true},
		{name: "too short", addr: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.addr)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	got, err := Normalize(validAddress)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got != validAddress {
		t.Errorf("Normalize() = %s, want %s", got, validAddress)
	}

	if _, err := Normalize("abc"); err == nil {
		t.Error("Normalize should reject short addresses")
	}
}
