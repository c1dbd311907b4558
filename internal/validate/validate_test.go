package validate

import (
	"testing"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2026-03-14", want: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)},
		{in: "2026-03-14T09:30:00+02:00", want: time.Date(2026, 3, 14, 7, 30, 0, 0, time.UTC)},
		{in: " 2026-03-14 ", want: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)},
		{in: "next friday", wantErr: true},
		{in: "14/03/2026", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestPriorityField(t *testing.T) {
	assert.NoError(t, PriorityField("priority", ""))
	assert.NoError(t, PriorityField("priority", "high"))

	err := criterio.ValidateStruct(PriorityField("priority", "urgent"))
	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Equal(t, "priority", fieldErrs[0].Field)
}

func TestRequiredField(t *testing.T) {
	assert.NoError(t, RequiredField("title", "Read"))
	assert.Error(t, RequiredField("title", "   "))
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, "medium", OrDefault("", "medium"))
	assert.Equal(t, "low", OrDefault("low", "medium"))
}
