package sample

import (
	"testing"
	"time"
)

func TestNewCopiesLabels(t *testing.T) {
	labels := map[string]string{"host": "freebox"}
	s := New("fbx_wan_rx_bytes", 1024, labels, time.Now())

	labels["host"] = "mutated"

	if s.Labels["host"] != "freebox" {
		t.Errorf("Expected label 'freebox', got %s", s.Labels["host"])
	}
}

func TestLabelString(t *testing.T) {
	tests := []struct {
		name   string
		labels map[string]string
		want   string
	}{
		{
			name:   "empty labels",
			labels: nil,
			want:   "",
		},
		{
			name:   "single label",
			labels: map[string]string{"port": "1"},
			want:   `port="1"`,
		},
		{
			name:   "sorted keys",
			labels: map[string]string{"zone": "lan", "host": "pc"},
			want:   `host="pc",zone="lan"`,
		},
		{
			name:   "escaped value",
			labels: map[string]string{"name": `a"b\c`},
			want:   `name="a\"b\\c"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Sample{Name: "m", Labels: tt.labels}
			if got := s.LabelString(); got != tt.want {
				t.Errorf("LabelString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSortStable(t *testing.T) {
	samples := []Sample{
		{Name: "fbx_system_uptime"},
		{Name: "fbx_lan_host_active", Labels: map[string]string{"host": "b"}},
		{Name: "fbx_lan_host_active", Labels: map[string]string{"host": "a"}},
	}

	Sort(samples)

	if samples[0].Name != "fbx_lan_host_active" || samples[0].Labels["host"] != "a" {
		t.Errorf("Expected fbx_lan_host_active{host=a} first, got %s{%s}", samples[0].Name, samples[0].LabelString())
	}
	if samples[2].Name != "fbx_system_uptime" {
		t.Errorf("Expected fbx_system_uptime last, got %s", samples[2].Name)
	}
}
