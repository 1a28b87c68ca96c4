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
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseNumeric(t *testing.T) {
	testCases := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"26,24", "26.24", true},
		{"1.234,56", "1234.56", true},
		{"1234.56", "1234.56", true},
		{"-10,5", "-10.5", true},
		{"0", "0", true},
		{" 100,00 ", "100", true},
		{"", "0", false},
		{"abc", "0", false},
		{"12a34", "0", false},
	}
	for _, tc := range testCases {
		got, ok := ParseNumeric(tc.input)
		if ok != tc.wantOK {
			t.Errorf("ParseNumeric(%q): got ok=%v, want %v", tc.input, ok, tc.wantOK)
			continue
		}
		if !got.Equal(mustDecimal(t, tc.want)) {
			t.Errorf("ParseNumeric(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestParseNumericLoose(t *testing.T) {
	testCases := []struct {
		input string
		want  string
	}{
		{"R$ 1.234,56", "1234.56"},
		{"100,00", "100"},
		{"garbage", "0"},
		{"", "0"},
	}
	for _, tc := range testCases {
		if got := ParseNumericLoose(tc.input); !got.Equal(mustDecimal(t, tc.want)) {
			t.Errorf("ParseNumericLoose(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestOnlyDigits(t *testing.T) {
	if got := OnlyDigits("12.345.678/0001-90"); got != "12345678000190" {
		t.Errorf("got %q", got)
	}
	if got := OnlyDigits("ACME LTDA"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestParseDate(t *testing.T) {
	if _, ok := ParseDate("31012024"); !ok {
		t.Error("31012024 should parse")
	}
	if _, ok := ParseDate("32012024"); ok {
		t.Error("32012024 should not parse")
	}
	if _, ok := ParseDate("2024-01-31"); ok {
		t.Error("ISO dates are not the SPED layout")
	}
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	value, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad test literal %q: %v", s, err)
	}
	return value
}
