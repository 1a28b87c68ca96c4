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
	"strings"

	"github.com/spedtools/sped-fixer/src/sped-fixer/common"
)

//SimilarityThreshold is the default ratio below which the best match of a
//record counts as a divergence.
const SimilarityThreshold = 0.95

//Divergence is one reference record whose best audit-side counterpart was
//not similar enough, or was not found at all.
type Divergence struct {
	ReferenceLineNo int      `json:"reference_line_no"`
	Reg             string   `json:"reg"`
	ReferenceFields []string `json:"reference_fields,omitempty"`
	AuditLineNo     int      `json:"audit_line_no,omitempty"`
	AuditFields     []string `json:"audit_fields,omitempty"`
	Ratio           float64  `json:"ratio"`
	Message         string   `json:"message"`
}

//SimilarityResult is the outcome of the heuristic matcher.
type SimilarityResult struct {
	Similarity  float64      `json:"similarity"`
	Matched     int          `json:"matched"`
	Total       int          `json:"total"`
	Divergences []Divergence `json:"divergences"`
}

//Similarity is the string-based fallback matcher for files whose structural
//keys do not apply. For every reference record it finds the audit record of
//the same type maximizing the longest-common-subsequence ratio over the
//pipe-joined fields, and reports the pair as divergent when the best ratio
//stays below the threshold.
func Similarity(reference, audit *common.Context, threshold float64) *SimilarityResult {
	if threshold <= 0 {
		threshold = SimilarityThreshold
	}
	result := &SimilarityResult{Total: len(reference.Records)}

	byReg := make(map[string][]*common.Record)
	for _, rec := range audit.Records {
		byReg[rec.Reg] = append(byReg[rec.Reg], rec)
	}

	for _, refRec := range reference.Records {
		candidates := byReg[refRec.Reg]
		if len(candidates) == 0 {
			result.Divergences = append(result.Divergences, Divergence{
				ReferenceLineNo: refRec.LineNo,
				Reg:             refRec.Reg,
				Message:         "Não encontrado",
			})
			continue
		}

		refText := strings.Join(refRec.Fields, "|")
		var best *common.Record
		bestRatio := -1.0
		for _, candidate := range candidates {
			ratio := lcsRatio(refText, strings.Join(candidate.Fields, "|"))
			if ratio > bestRatio {
				best = candidate
				bestRatio = ratio
			}
		}

		if bestRatio < threshold {
			result.Divergences = append(result.Divergences, Divergence{
				ReferenceLineNo: refRec.LineNo,
				Reg:             refRec.Reg,
				ReferenceFields: refRec.Fields,
				AuditLineNo:     best.LineNo,
				AuditFields:     best.Fields,
				Ratio:           bestRatio,
				Message:         "Registro divergente",
			})
		} else {
			result.Matched++
		}
	}

	if result.Total > 0 {
		result.Similarity = float64(result.Matched) / float64(result.Total)
	}
	return result
}

//lcsRatio computes 2*LCS(a,b) / (len(a)+len(b)) over runes. 1.0 means the
//strings are identical, 0.0 that they share nothing.
func lcsRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra)+len(rb) == 0 {
		return 1.0
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}

	//single-row dynamic program: prev holds the LCS lengths of the previous
	//row of the classic table
	prev := make([]int, len(rb)+1)
	row := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				row[j] = prev[j-1] + 1
			} else if prev[j] >= row[j-1] {
				row[j] = prev[j]
			} else {
				row[j] = row[j-1]
			}
		}
		prev, row = row, prev
	}
	lcs := prev[len(rb)]
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}
