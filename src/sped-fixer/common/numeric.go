/*******************************************************************************
*
* Copyright 2024 Marcos Madeira <marcosmadeira@gmx.net>
*
* This file is part of SPED Fixer.
*
* SPED Fixer is free software: you can redistribute it and/or modify it under
* the terms of the GNU General Public License as published by the Free Software
* Foundation, either version 3 of the License, or (at your option) any later
* version.
*
* SPED Fixer is distributed in the hope that it will be useful, but WITHOUT ANY
* WARRANTY; without even the implied warranty of MERCHANTABILITY or FITNESS FOR
* A PARTICULAR PURPOSE. See the GNU General Public License for more details.
*
* You should have received a copy of the GNU General Public License along with
* SPED Fixer. If not, see <http://www.gnu.org/licenses/>.
*
*******************************************************************************/

package common

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var nonDigitsRx = regexp.MustCompile(`\D+`)

//OnlyDigits strips every non-digit character from a string. CNPJ, CPF, IE
//and CFOP normalizations are all built on this.
func OnlyDigits(s string) string {
	return nonDigitsRx.ReplaceAllString(s, "")
}

//ParseDate parses a SPED date in the ddMMyyyy layout.
func ParseDate(s string) (time.Time, bool) {
	t, err := time.Parse("02012006", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

//ParseNumeric converts a SPED numeric field into a decimal. SPED files mix
//Brazilian formatting ("1.234,56") with plain dot decimals ("1234.56"); when
//both separators appear the dot is taken as the thousands separator. The
//second return value is false when the field does not parse; rules branch on
//it instead of trapping errors.
func ParseNumeric(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	if strings.Contains(s, ".") && strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

//ParseNumericLoose is ParseNumeric with the comparator's forgiving contract:
//every character except digits, comma, dot and minus is discarded first, and
//a parse failure yields zero.
func ParseNumericLoose(s string) decimal.Decimal {
	var sb strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' || c == ',' || c == '.' || c == '-' {
			sb.WriteRune(c)
		}
	}
	d, ok := ParseNumeric(sb.String())
	if !ok {
		return decimal.Zero
	}
	return d
}

//FormatMoney renders a decimal with two decimal places and a dot separator,
//the format the repair actions write back into monetary fields.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

//FormatQuantity renders a decimal with three decimal places.
func FormatQuantity(d decimal.Decimal) string {
	return d.StringFixed(3)
}

//MoneyTolerance is the divergence allowed between two monetary amounts
//before a rule or the comparator reports them as different (one centavo).
var MoneyTolerance = decimal.NewFromFloat(0.01)

//QuantityTolerance is the divergence allowed between two quantities.
var QuantityTolerance = decimal.NewFromFloat(0.001)

//WithinTolerance reports whether two amounts are equal up to the given
//tolerance.
func WithinTolerance(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().Cmp(tolerance) <= 0
}
