package runs

import (
	"math"
	"testing"

	"tomoseq/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindRuns(t *testing.T) {
	tests := []struct {
		name      string
		row       []float64
		threshold float64
		minLength int
		want      []Run
	}{
		{
			name:      "short run dropped, long run kept",
			row:       []float64{0, 0, 2, 2, 2, 0, 0, 2, 2, 2, 2, 0},
			threshold: 1,
			minLength: 4,
			want:      []Run{{Start: 8, End: 11, Center: 8, Statistic: 4}},
		},
		{
			name:      "values equal to threshold never qualify",
			row:       []float64{1, 1, 1, 1},
			threshold: 1,
			minLength: 1,
			want:      nil,
		},
		{
			name:      "run touching both ends",
			row:       []float64{3, 2, 4, 2},
			threshold: 1,
			minLength: 2,
			want:      []Run{{Start: 1, End: 4, Center: 3, Statistic: 7}},
		},
		{
			name:      "two qualifying runs in order",
			row:       []float64{2, 2, 0, 5, 6},
			threshold: 1,
			minLength: 2,
			want: []Run{
				{Start: 1, End: 2, Center: 1, Statistic: 2},
				{Start: 4, End: 5, Center: 5, Statistic: 9},
			},
		},
		{
			name:      "center takes the lowest index on ties",
			row:       []float64{0, 3, 5, 5, 0},
			threshold: 0.5,
			minLength: 3,
			want:      []Run{{Start: 2, End: 4, Center: 3, Statistic: 11.5}},
		},
		{
			name:      "negative threshold",
			row:       []float64{-2, -0.5, 0, -3},
			threshold: -1,
			minLength: 2,
			want:      []Run{{Start: 2, End: 3, Center: 3, Statistic: 1.5}},
		},
		{
			name:      "min length longer than row",
			row:       []float64{5, 5},
			threshold: 1,
			minLength: 3,
			want:      nil,
		},
		{
			name:      "NaN breaks a run",
			row:       []float64{2, 2, math.NaN(), 2, 2},
			threshold: 1,
			minLength: 3,
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindRuns(tt.row, tt.threshold, tt.minLength)
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.Equal(t, tt.want[i].Start, got[i].Start)
				assert.Equal(t, tt.want[i].End, got[i].End)
				assert.Equal(t, tt.want[i].Center, got[i].Center)
				assert.InDelta(t, tt.want[i].Statistic, got[i].Statistic, 1e-12)
			}
		})
	}
}

func TestFindRuns_Errors(t *testing.T) {
	_, err := FindRuns([]float64{1, 2}, 1, 0)
	assert.True(t, core.IsInvalidParameter(err))

	_, err = FindRuns([]float64{1, 2}, math.NaN(), 1)
	assert.True(t, core.IsInvalidParameter(err))

	_, err = FindRuns([]float64{1, 2}, math.Inf(1), 1)
	assert.True(t, core.IsInvalidParameter(err))

	_, err = FindRuns(nil, 1, 1)
	assert.True(t, core.IsInvalidInput(err))

	_, err = FindRuns([]float64{math.NaN(), math.Inf(-1)}, 1, 1)
	assert.True(t, core.IsInvalidInput(err))
}

func TestBestRun(t *testing.T) {
	row := []float64{2, 2, 0, 5, 6, 0, 1.5, 1.5}
	best, ok, err := BestRun(row, 1, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, best.Start)
	assert.Equal(t, 5, best.End)
	assert.Equal(t, 2, best.Length())

	_, ok, err = BestRun([]float64{0, 0, 0}, 1, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBestRun_TieGoesToEarliest(t *testing.T) {
	row := []float64{3, 3, 0, 3, 3}
	best, ok, err := BestRun(row, 1, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, best.Start)
}

func TestDetector_BestStatistic(t *testing.T) {
	d, err := NewDetector(1, 2)
	require.NoError(t, err)

	assert.Equal(t, 0.0, d.BestStatistic([]float64{0, 2, 0, 2}))
	assert.InDelta(t, 3.0, d.BestStatistic([]float64{0, 2, 3, 0}), 1e-12)
}
