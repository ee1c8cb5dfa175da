package assets

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"xau-usd", "XAU/USD"},
		{"usd_mxn", "USD/MXN"},
		{"EURUSD", "EUR/USD"},
		{"gold", "XAU/USD"},
		{"silver", "XAG/USD"},
		{"copper", "HG/USD"},
		{"platinum", "XPT/USD"},
		{"palladium", "XPD/USD"},
		{"wti", "CL/USD"},
		{"oil", "CL/USD"},
		{"CL/USD", "CL/USD"},
		{"  aapl ", "AAPL"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%s)=%s want %s", tt.in, got, tt.want)
		}
	}
}
