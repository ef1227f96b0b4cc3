package app

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var brl = message.NewPrinter(language.BrazilianPortuguese)

// FormatPrice renders cents as Brazilian reais, e.g. "R$ 450.000,00".
func FormatPrice(cents int64) string {
	return brl.Sprintf("R$ %.2f", float64(cents)/100)
}

// ParsePrice reads a price typed in Brazilian notation: "." groups thousands
// and "," separates centavos. "R$" and spaces are ignored.
func ParsePrice(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ".", "")
	if s == "" {
		return 0, fmt.Errorf("empty price")
	}

	whole, frac, hasFrac := strings.Cut(s, ",")
	if hasFrac {
		if len(frac) == 0 || len(frac) > 2 {
			return 0, fmt.Errorf("invalid centavos in %q", raw)
		}
		if len(frac) == 1 {
			frac += "0"
		}
	} else {
		frac = "00"
	}

	reais, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || reais < 0 {
		return 0, fmt.Errorf("invalid price %q", raw)
	}
	centavos, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || centavos < 0 {
		return 0, fmt.Errorf("invalid price %q", raw)
	}
	if reais > (math.MaxInt64-centavos)/100 {
		return 0, fmt.Errorf("price %q out of range", raw)
	}
	return reais*100 + centavos, nil
}
