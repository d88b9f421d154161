package api

import (
	"errors"
	"testing"
	"time"
)

func TestValidateRange(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		from    time.Time
		to      time.Time
		wantErr bool
	}{
		{
			name:    "valid range",
			from:    now.Add(-24 * time.Hour),
			to:      now,
			wantErr: false,
		},
		{
			name:    "empty range",
			from:    now,
			to:      now,
			wantErr: false,
		},
		{
			name:    "inverted range",
			from:    now,
			to:      now.Add(-time.Second),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRange(testDatasource, "https://host", tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRange() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidRange) {
				t.Errorf("ValidateRange() error = %v, want kind %v", err, KindInvalidRange)
			}
		})
	}
}
