// internal/models/payment_test.go
package models

import (
	"reflect"
	"sort"
	"testing"
)

func TestCanTransition(t *testing.T) {
	allowed := map[PaymentStatus][]PaymentStatus{
		StatusPending:    {StatusProcessing, StatusFailed, StatusCancelled, StatusExpired},
		StatusProcessing: {StatusCompleted, StatusFailed, StatusCancelled},
		StatusCompleted:  {StatusRefunded},
	}

	isAllowed := func(from, to PaymentStatus) bool {
		for _, target := range allowed[from] {
			if target == to {
				return true
			}
		}
		return false
	}

	// Every (from, to) pair outside the table must be rejected.
	for _, from := range AllStatuses() {
		for _, to := range AllStatuses() {
			got := CanTransition(from, to)
			want := isAllowed(from, to)
			if got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestAllowedSources(t *testing.T) {
	tests := []struct {
		target PaymentStatus
		want   []PaymentStatus
	}{
		{StatusProcessing, []PaymentStatus{StatusPending}},
		{StatusCompleted, []PaymentStatus{StatusProcessing}},
		{StatusRefunded, []PaymentStatus{StatusCompleted}},
		{StatusExpired, []PaymentStatus{StatusPending}},
		{StatusFailed, []PaymentStatus{StatusPending, StatusProcessing}},
		{StatusCancelled, []PaymentStatus{StatusPending, StatusProcessing}},
		{StatusPending, nil},
	}

	for _, tt := range tests {
		got := AllowedSources(tt.target)
		sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
		want := append([]PaymentStatus(nil), tt.want...)
		sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
		if !reflect.DeepEqual(got, want) {
			t.Errorf("AllowedSources(%s) = %v, want %v", tt.target, got, want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := map[PaymentStatus]bool{
		StatusFailed:    true,
		StatusCancelled: true,
		StatusRefunded:  true,
		StatusExpired:   true,
	}
	for _, status := range AllStatuses() {
		if got := IsTerminal(status); got != terminal[status] {
			t.Errorf("IsTerminal(%s) = %v, want %v", status, got, terminal[status])
		}
	}
}

func TestValidMethod(t *testing.T) {
	for _, method := range []PaymentMethod{MethodOrangeMoney, MethodBankTransfer, MethodCashOnDelivery} {
		if !ValidMethod(method) {
			t.Errorf("ValidMethod(%s) = false, want true", method)
		}
	}
	if ValidMethod("paypal") {
		t.Error("ValidMethod(paypal) = true, want false")
	}
}

func TestCanRetry(t *testing.T) {
	tests := []struct {
		status PaymentStatus
		want   bool
	}{
		{StatusFailed, true},
		{StatusExpired, true},
		{StatusCancelled, true},
		{StatusPending, false},
		{StatusProcessing, false},
		{StatusCompleted, false},
		{StatusRefunded, false},
	}
	for _, tt := range tests {
		p := &Payment{Status: tt.status}
		if got := p.CanRetry(); got != tt.want {
			t.Errorf("CanRetry() with status %s = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestJSONMapRoundTrip(t *testing.T) {
	m := JSONMap{"code": "insufficient_balance", "attempt": float64(2)}

	value, err := m.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}

	var scanned JSONMap
	if err := scanned.Scan(value); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if !reflect.DeepEqual(scanned, m) {
		t.Errorf("round trip = %v, want %v", scanned, m)
	}

	var empty JSONMap
	if err := empty.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error: %v", err)
	}
	if empty != nil {
		t.Errorf("Scan(nil) = %v, want nil", empty)
	}
}
