package twin

import (
	"math"
	"testing"
	"time"
)

func TestNextModelValue(t *testing.T) {
	base := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		previous float64
		prevTime time.Time
		measured float64
		evtTime  time.Time
		k        float64
		want     float64
	}{
		{
			name:     "moves toward warmer measurement",
			previous: 20.0,
			prevTime: base,
			measured: 25.0,
			evtTime:  base.Add(time.Minute),
			k:        0.5,
			// 20 + (-0.5 * (20-25)) * 1 = 22.5
			want: 22.5,
		},
		{
			name:     "moves toward colder measurement",
			previous: 25.0,
			prevTime: base,
			measured: 20.0,
			evtTime:  base.Add(time.Minute),
			k:        0.5,
			want:     22.5,
		},
		{
			name:     "longer elapsed time moves further",
			previous: 20.0,
			prevTime: base,
			measured: 25.0,
			evtTime:  base.Add(2 * time.Minute),
			k:        0.5,
			want:     25.0,
		},
		{
			name:     "zero coefficient holds the value",
			previous: 20.0,
			prevTime: base,
			measured: 25.0,
			evtTime:  base.Add(time.Minute),
			k:        0.0,
			want:     20.0,
		},
		{
			name:     "zero elapsed time holds the value",
			previous: 20.0,
			prevTime: base,
			measured: 25.0,
			evtTime:  base,
			k:        0.5,
			want:     20.0,
		},
		{
			name:     "equilibrium when modeled equals measured",
			previous: 22.0,
			prevTime: base,
			measured: 22.0,
			evtTime:  base.Add(10 * time.Minute),
			k:        0.5,
			want:     22.0,
		},
		{
			name:     "sub-minute interval scales fractionally",
			previous: 20.0,
			prevTime: base,
			measured: 22.0,
			evtTime:  base.Add(30 * time.Second),
			k:        1.0,
			// 20 + (-1 * (20-22)) * 0.5 = 21
			want: 21.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextModelValue(tt.previous, tt.prevTime, tt.measured, tt.evtTime, tt.k)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("NextModelValue() = %v, want %v", got, tt.want)
			}
		})
	}
}
