package validation

import (
	"testing"
)

func TestValidateProviderName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "etherscan", false},
		{"with hyphen", "base-sepolia", false},
		{"with underscore", "zksync_era", false},
		{"digits", "01scan", false},
		{"uppercase", "Etherscan", true},
		{"slash", "ether/scan", true},
		{"dot", "..", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProviderName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProviderName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestCanonicalAddress(t *testing.T) {
	const checksummed = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"already checksummed", checksummed, checksummed, false},
		{"lowercase", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", checksummed, false},
		{"uppercase", "0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED", checksummed, false},
		{"no prefix", "5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", checksummed, false},
		{"surrounding space", " " + checksummed + " ", checksummed, false},
		{"too short", "0x1234", "", true},
		{"too long", checksummed + "00", "", true},
		{"non hex", "0xZZZeb6053f3e94c9b9a09f33669435e7ef1beaed", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalAddress(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CanonicalAddress(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("CanonicalAddress(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateTxHash(t *testing.T) {
	valid := "0x" + "ab12" + "00000000000000000000000000000000000000000000000000000000000f"
	if err := ValidateTxHash(valid); err != nil {
		t.Errorf("ValidateTxHash(%q) unexpected error: %v", valid, err)
	}
	for _, bad := range []string{"", "0x", "0x1234", valid + "0", "0x" + "zz" + valid[4:]} {
		if err := ValidateTxHash(bad); err == nil {
			t.Errorf("ValidateTxHash(%q) expected error", bad)
		}
	}
}

func TestValidateBytecode(t *testing.T) {
	for _, ok := range []string{"aabbcc", "0x6080", "0XAB"} {
		if err := ValidateBytecode(ok); err != nil {
			t.Errorf("ValidateBytecode(%q) unexpected error: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "0x", "xyz"} {
		if err := ValidateBytecode(bad); err == nil {
			t.Errorf("ValidateBytecode(%q) expected error", bad)
		}
	}
}
