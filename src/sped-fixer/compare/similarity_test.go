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

package compare

import (
	"math"
	"testing"
)

func TestLCSRatio(t *testing.T) {
	testCases := []struct {
		a    string
		b    string
		want float64
	}{
		{"", "", 1.0},
		{"abc", "", 0.0},
		{"abc", "abc", 1.0},
		{"abcd", "abce", 0.75}, //LCS "abc" = 3, 2*3/8
		{"abc", "xyz", 0.0},
	}
	for _, tc := range testCases {
		if got := lcsRatio(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("lcsRatio(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestSimilarityIdenticalFiles(t *testing.T) {
	input := "|0000|017|0|01012024|31012024|\n|C100|0|1|NFE1|\n"
	reference, audit := contexts(input, input)
	result := Similarity(reference, audit, SimilarityThreshold)
	if result.Similarity != 1.0 {
		t.Errorf("got similarity %v, want 1.0", result.Similarity)
	}
	if len(result.Divergences) != 0 {
		t.Errorf("got %v, want no divergences", result.Divergences)
	}
}

func TestSimilarityFindsBestMatch(t *testing.T) {
	reference := "|C100|0|1|NFE1||55|00|1|CHAVE1|100,00|\n"
	//two candidates of the same type: one close, one far
	audit := "|C100|0|1|NFE1||55|00|1|CHAVE1|100,01|\n" +
		"|C100|9|9|XXXX||99|99|9|YYYYYY|999,99|\n"
	reference2, audit2 := contexts(reference, audit)
	result := Similarity(reference2, audit2, SimilarityThreshold)
	if result.Matched != 1 {
		t.Errorf("the near-identical candidate should match, got %+v", result)
	}
}

func TestSimilarityReportsDivergence(t *testing.T) {
	reference := "|C100|0|1|NFE1||55|00|1|CHAVE1|100,00|\n"
	audit := "|C100|9|9|XXXX||99|99|9|YYYYYY|999,99|\n"
	reference2, audit2 := contexts(reference, audit)
	result := Similarity(reference2, audit2, SimilarityThreshold)
	if result.Matched != 0 || len(result.Divergences) != 1 {
		t.Fatalf("got %+v, want one divergence", result)
	}
	d := result.Divergences[0]
	if d.AuditLineNo != 1 || d.Ratio >= SimilarityThreshold {
		t.Errorf("unexpected divergence: %+v", d)
	}
}

func TestSimilarityMissingRecordType(t *testing.T) {
	reference := "|H010|A10|UN|1,000|1,00|100,00|0|\n"
	audit := "|C100|0|1|NFE1|\n"
	reference2, audit2 := contexts(reference, audit)
	result := Similarity(reference2, audit2, SimilarityThreshold)
	if len(result.Divergences) != 1 || result.Divergences[0].Message != "Não encontrado" {
		t.Fatalf("got %+v, want the not-found divergence", result)
	}
}
