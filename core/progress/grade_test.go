package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvora/edvora/core"
	"github.com/edvora/edvora/core/catalog"
)

func TestGrade(t *testing.T) {
	questions := []catalog.Question{
		{ID: "q1", CorrectOption: catalog.OptionA},
		{ID: "q2", CorrectOption: catalog.OptionC},
		{ID: "q3", CorrectOption: catalog.OptionD},
	}

	tests := []struct {
		name      string
		answers   map[string]string
		wantScore int
		wantErr   bool
	}{
		{name: "no answers", wantScore: 0},
		{name: "all correct", answers: map[string]string{"q1": "a", "q2": "c", "q3": "d"}, wantScore: 3},
		{name: "partially correct", answers: map[string]string{"q1": "a", "q2": "b"}, wantScore: 1},
		{name: "blank answer", answers: map[string]string{"q1": "", "q3": "d"}, wantScore: 1},
		{name: "unknown question", answers: map[string]string{"q9": "a"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := Grade(questions, tt.answers)
			if tt.wantErr {
				require.Error(t, err)
				_, ok := err.(*core.ValidationError)
				assert.True(t, ok, "want a *core.ValidationError, got %T", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantScore, score)
			assert.LessOrEqual(t, score, len(questions))
		})
	}
}
