package bridge

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nerrad567/sunbridge/internal/modbus"
)

func TestIsConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transaction mismatch sentinel", modbus.ErrTransactionMismatch, true},
		{"wrapped mismatch", fmt.Errorf("read active_power: %w", modbus.ErrTransactionMismatch), true},
		{"closed mid-request", modbus.ErrClosedMidRequest, true},
		{"no response", modbus.ErrNoResponse, true},
		{"os reset", errors.New("write tcp 10.0.0.2:502: connection reset by peer"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"plain exception", errors.New("modbus exception 0x02 (illegal data address)"), false},
		{"unknown register", errors.New("unknown register \"bogus\""), false},
		{"decode error", errors.New("register active_power: payload 2 bytes, want 4"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConflict(tt.err); got != tt.want {
				t.Errorf("IsConflict(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
