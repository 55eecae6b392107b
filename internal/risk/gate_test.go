package risk

import (
	"strings"
	"testing"

	"github.com/tradecopier/copier/internal/apperr"
)

func TestDailyLossGate_Evaluate(t *testing.T) {
	tests := []struct {
		name         string
		limit        *float64
		realizedPnL  float64
		wantTripped  bool
		wantRejected bool
	}{
		{"no limit configured", nil, -10000, false, false},
		{"profit never trips", floatPtr(500), 120, false, false},
		{"loss below limit", floatPtr(500), -100, false, false},
		{"loss exactly at limit trips (>= not >)", floatPtr(500), -500, true, true},
		{"loss beyond limit trips", floatPtr(500), -600, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := DailyLossGate{DailyLossLimit: tt.limit}
			tripped, err := gate.Evaluate(tt.realizedPnL)
			if tripped != tt.wantTripped {
				t.Fatalf("tripped=%v want=%v", tripped, tt.wantTripped)
			}
			if tt.wantRejected {
				if err == nil || !apperr.Is(err, apperr.KindRiskRejected) {
					t.Fatalf("expected RiskRejected error, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestDailyLossGate_Evaluate_MessageCarriesThePnLFigure(t *testing.T) {
	gate := DailyLossGate{DailyLossLimit: floatPtr(500), AutoDisable: true}
	tripped, err := gate.Evaluate(-500)
	if !tripped || err == nil {
		t.Fatalf("expected the gate to trip, got tripped=%v err=%v", tripped, err)
	}
	if !strings.Contains(err.Error(), "-500") {
		t.Fatalf("expected disabledReason to contain the exceeding value -500, got %q", err.Error())
	}
}

func TestDailyLossGate_ShouldDisable(t *testing.T) {
	gate := DailyLossGate{AutoDisable: true}
	if !gate.ShouldDisable(true) {
		t.Fatal("expected disable when tripped and autoDisable")
	}
	if gate.ShouldDisable(false) {
		t.Fatal("expected no disable when not tripped")
	}

	gate2 := DailyLossGate{AutoDisable: false}
	if gate2.ShouldDisable(true) {
		t.Fatal("expected no disable when autoDisable is off")
	}
}
