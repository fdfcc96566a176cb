package gcal

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"inboxmind/internal/capability"
)

func at(h, m int) time.Time {
	return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
}

func TestFreeGaps(t *testing.T) {
	tests := []struct {
		name string
		busy []capability.TimeSlot
		min  int
		want []capability.TimeSlot
	}{
		{
			name: "empty calendar is one big slot",
			min:  30,
			want: []capability.TimeSlot{{Start: at(9, 0), End: at(17, 0)}},
		},
		{
			name: "gaps around one meeting",
			busy: []capability.TimeSlot{{Start: at(10, 0), End: at(11, 0)}},
			min:  30,
			want: []capability.TimeSlot{
				{Start: at(9, 0), End: at(10, 0)},
				{Start: at(11, 0), End: at(17, 0)},
			},
		},
		{
			name: "short gap dropped",
			busy: []capability.TimeSlot{
				{Start: at(9, 15), End: at(12, 0)},
				{Start: at(12, 20), End: at(17, 0)},
			},
			min: 30,
			// 9:00-9:15 and 12:00-12:20 are both under 30 minutes.
			want: nil,
		},
		{
			name: "overlapping and unsorted busy periods",
			busy: []capability.TimeSlot{
				{Start: at(13, 0), End: at(14, 0)},
				{Start: at(9, 0), End: at(10, 30)},
				{Start: at(10, 0), End: at(11, 0)},
			},
			min: 30,
			want: []capability.TimeSlot{
				{Start: at(11, 0), End: at(13, 0)},
				{Start: at(14, 0), End: at(17, 0)},
			},
		},
		{
			name: "busy swallows whole window",
			busy: []capability.TimeSlot{{Start: at(8, 0), End: at(18, 0)}},
			min:  30,
			want: nil,
		},
		{
			name: "exact minimum length kept",
			busy: []capability.TimeSlot{{Start: at(9, 30), End: at(17, 0)}},
			min:  30,
			want: []capability.TimeSlot{{Start: at(9, 0), End: at(9, 30)}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := freeGaps(at(9, 0), at(17, 0), tt.busy, tt.min)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("freeGaps mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFreeGapsDoesNotMutateInput(t *testing.T) {
	busy := []capability.TimeSlot{
		{Start: at(13, 0), End: at(14, 0)},
		{Start: at(9, 0), End: at(10, 0)},
	}
	freeGaps(at(9, 0), at(17, 0), busy, 30)
	if !busy[0].Start.Equal(at(13, 0)) {
		t.Error("input slice reordered")
	}
}
