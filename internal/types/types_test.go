package types

import "testing"

func TestNewMetricName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid name", "fbx_wan_rx_bytes", false},
		{"valid with leading underscore", "_internal", false},
		{"empty", "", true},
		{"leading digit", "1_bad", true},
		{"invalid characters", "fbx-wan.rx", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMetricName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewMetricName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeMetricName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already valid", "rate_down", "rate_down"},
		{"mixed case", "RateDown", "ratedown"},
		{"dashes and dots", "temp-cpu.b", "temp_cpu_b"},
		{"repeated separators", "a--b__c", "a_b_c"},
		{"leading digit", "5ghz_stations", "_5ghz_stations"},
		{"trimmed underscores", "_-value-_", "value"},
		{"nothing left", "---", "unnamed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeMetricName(tt.input); got != tt.want {
				t.Errorf("SanitizeMetricName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeMetricNameDeterministic(t *testing.T) {
	for _, raw := range []string{"bytes_down", "Temp CPU-B", "fan0.rpm"} {
		first := SanitizeMetricName(raw)
		second := SanitizeMetricName(raw)
		if first != second {
			t.Errorf("SanitizeMetricName(%q) not deterministic: %q vs %q", raw, first, second)
		}
	}
}

func TestNewAppID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"freebox style", "fr.freebox.fbxmetrics", false},
		{"simple", "fbxmetrics", false},
		{"empty", "", true},
		{"uppercase", "FbxMetrics", true},
		{"leading digit", "1app", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAppID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewAppID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestNewTrackID(t *testing.T) {
	if _, err := NewTrackID(42); err != nil {
		t.Errorf("NewTrackID(42) unexpected error: %v", err)
	}
	if _, err := NewTrackID(0); err == nil {
		t.Error("NewTrackID(0) expected error, got nil")
	}
	if _, err := NewTrackID(-1); err == nil {
		t.Error("NewTrackID(-1) expected error, got nil")
	}
}
