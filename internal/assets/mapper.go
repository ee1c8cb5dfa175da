package assets

import "strings"

// aliases maps common display names onto the pair the rate tables key on.
var aliases = map[string]string{
	"GOLD":      "XAU/USD",
	"SILVER":    "XAG/USD",
	"COPPER":    "HG/USD",
	"PLATINUM":  "XPT/USD",
	"PALLADIUM": "XPD/USD",
	"WTI":       "CL/USD",
	"OIL":       "CL/USD",
	"CRUDE":     "CL/USD",
}

// Normalize converts client-supplied asset identifiers to the BASE/QUOTE form
// the rate tables use. It uppercases, maps dashes and underscores to slashes
// and resolves common display names. Examples:
//
//	xau-usd   -> XAU/USD
//	usd_mxn   -> USD/MXN
//	gold      -> XAU/USD
//	EURUSD    -> EUR/USD
func Normalize(asset string) string {
	sym := strings.ToUpper(strings.TrimSpace(asset))
	if sym == "" {
		return ""
	}

	sym = strings.ReplaceAll(sym, "-", "/")
	sym = strings.ReplaceAll(sym, "_", "/")

	if mapped, ok := aliases[sym]; ok {
		return mapped
	}

	// Six-letter pairs without a separator split down the middle.
	if !strings.Contains(sym, "/") && len(sym) == 6 {
		sym = sym[:3] + "/" + sym[3:]
	}

	return sym
}
