package caret

import "testing"

func TestSnapshotZero(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want bool
	}{
		{"empty", Snapshot{}, true},
		{"block only", Snapshot{BlockID: "a"}, false},
		{"offset only", Snapshot{Offset: 3}, false},
		{"both", Snapshot{BlockID: "a", Offset: 3}, false},
	}

	for _, tt := range tests {
		if got := tt.snap.Zero(); got != tt.want {
			t.Errorf("%s: Zero() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
