package notify

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DeadlineLayout = "02/01/2006 15:04"

// FormatBRL форматирует сумму в реалах: разделитель тысяч - точка, дробной части - запятая.
// Считает по десятичной строке, поэтому точность не теряется на любых суммах.
func FormatBRL(v decimal.Decimal) string {
	s := v.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return "R$ " + sign + b.String() + "," + frac
}

func FormatDeadline(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(DeadlineLayout)
}
