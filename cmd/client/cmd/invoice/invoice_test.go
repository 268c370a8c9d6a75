package invoice

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantCode string
		wantQty  string
		wantRate string
		wantErr  bool
	}{
		{name: "code and qty", raw: "COFFEE:2", wantCode: "COFFEE", wantQty: "2", wantRate: "0"},
		{name: "with rate", raw: "BUN:1.5:3.50", wantCode: "BUN", wantQty: "1.5", wantRate: "3.5"},
		{name: "missing qty", raw: "COFFEE", wantErr: true},
		{name: "zero qty", raw: "COFFEE:0", wantErr: true},
		{name: "bad rate", raw: "COFFEE:1:abc", wantErr: true},
		{name: "empty code", raw: ":1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := ParseLine(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, line.ItemCode)
			assert.True(t, decimal.RequireFromString(tt.wantQty).Equal(line.Qty))
			assert.True(t, decimal.RequireFromString(tt.wantRate).Equal(line.Rate))
		})
	}
}
