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

//Package compare matches the records of a reference SPED file against an
//audit file and reports the objective differences between them.
package compare

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spedtools/sped-fixer/src/sped-fixer/common"
)

//Difference categories.
const (
	DifferenceMissing   = "missing_record"
	DifferenceExtra     = "extra_record"
	DifferenceDuplicate = "duplicate_record"
	DifferenceValue     = "value_difference"
	DifferenceQuantity  = "quantity_difference"
	DifferenceField     = "field_difference"
)

//Difference is one divergence between the two files.
type Difference struct {
	Type           string            `json:"type"`
	RecordType     string            `json:"record_type"`
	Key            string            `json:"key"`
	ReferenceData  map[string]string `json:"reference_data"`
	AuditData      map[string]string `json:"audit_data"`
	Field          string            `json:"field,omitempty"`
	ReferenceValue *float64          `json:"reference_value,omitempty"`
	AuditValue     *float64          `json:"audit_value,omitempty"`
	Difference     *float64          `json:"difference,omitempty"`
	Severity       common.Severity   `json:"severity"`
	Message        string            `json:"message"`
	DuplicateCount int               `json:"duplicate_count,omitempty"`
}

//Summary holds the quantitative result of a comparison. The record totals
//only count the matched record kinds.
type Summary struct {
	TotalRecordsRef     int `json:"total_records_ref"`
	TotalRecordsAud     int `json:"total_records_aud"`
	MissingRecords      int `json:"missing_records"`
	ExtraRecords        int `json:"extra_records"`
	DuplicateRecords    int `json:"duplicate_records"`
	ValueDifferences    int `json:"value_differences"`
	QuantityDifferences int `json:"quantity_differences"`
	FieldDifferences    int `json:"field_differences"`
}

//Result is the full outcome of a comparison.
type Result struct {
	Summary     Summary      `json:"summary"`
	Differences []Difference `json:"differences"`
}

//Tolerances parameterizes the numeric comparisons.
type Tolerances struct {
	Money    decimal.Decimal
	Quantity decimal.Decimal
}

//DefaultTolerances allows one centavo on monetary fields and a thousandth
//on quantities.
func DefaultTolerances() Tolerances {
	return Tolerances{Money: common.MoneyTolerance, Quantity: common.QuantityTolerance}
}

//valueCheck describes one numeric field compared between matched records.
type valueCheck struct {
	idx      int
	name     string
	quantity bool
}

//dataField describes one field carried into the ReferenceData / AuditData
//snapshots of a Difference.
type dataField struct {
	name string
	idx  int
}

//comparedKind describes how one record type is matched: which fields build
//its semantic key, which fields are snapshotted, which values are compared,
//and which field feeds the block total.
type comparedKind struct {
	reg       string
	label     string
	keyFields []int
	data      []dataField
	checks    []valueCheck
	totalIdx  int
}

var comparedKinds = []comparedKind{
	{
		reg:       "C100",
		label:     "Nota fiscal",
		keyFields: []int{3, 5, 6, 7, 8},
		data: []dataField{
			{"cnpj", 3}, {"modelo", 5}, {"serie", 6}, {"numero", 7}, {"data", 8}, {"vl_doc", 10},
		},
		checks: []valueCheck{
			{10, "VL_DOC", false},
			{11, "VL_ICMS", false},
			{14, "VL_IPI", false},
			{15, "VL_PIS", false},
			{16, "VL_COFINS", false},
		},
		totalIdx: 10,
	},
	{
		reg:       "C170",
		label:     "Item de nota fiscal",
		keyFields: []int{3, 5, 6, 7, 8, 2},
		data: []dataField{
			{"cnpj", 3}, {"modelo", 5}, {"serie", 6}, {"numero", 7}, {"data", 8}, {"item", 2}, {"vl_item", 12},
		},
		checks: []valueCheck{
			{4, "QTD", true},
			{5, "VL_UNIT", false},
			{12, "VL_ITEM", false},
		},
		totalIdx: 12,
	},
	{
		reg:       "H010",
		label:     "Item de estoque",
		keyFields: []int{1},
		data: []dataField{
			{"cod_item", 1}, {"unid", 2}, {"vl_item", 5},
		},
		checks: []valueCheck{
			{3, "QTD", true},
			{4, "VL_UNIT", false},
			{5, "VL_ITEM", false},
		},
		totalIdx: 5,
	},
}

//blockTotals lists the block totals emitted as BLOCK_<X>.TOTAL differences.
var blockTotals = []struct {
	block string
	kinds []string
}{
	{"C", []string{"C100", "C170"}},
	{"H", []string{"H010"}},
}

//Comparator matches two record collections. The zero value is not usable;
//construct it with NewComparator.
type Comparator struct {
	tolerances  Tolerances
	summary     Summary
	differences []Difference
}

//NewComparator creates a Comparator with the given tolerances.
func NewComparator(tolerances Tolerances) *Comparator {
	return &Comparator{tolerances: tolerances}
}

//Files parses both inputs and compares them with the default tolerances.
func Files(reference, audit []byte) *Result {
	ref := common.NewContext(common.Parse(string(reference)))
	aud := common.NewContext(common.Parse(string(audit)))
	return NewComparator(DefaultTolerances()).Compare(ref, aud)
}

//Compare runs the structural comparison and returns its result.
func (c *Comparator) Compare(reference, audit *common.Context) *Result {
	c.summary = Summary{}
	c.differences = nil

	c.countTotals(reference, audit)
	for _, kind := range comparedKinds {
		c.compareKind(kind, reference.ByReg(kind.reg), audit.ByReg(kind.reg))
	}
	c.compareAppraisal(reference.ByReg("E200"), audit.ByReg("E200"))
	c.compareBlockTotals(reference, audit)

	return &Result{Summary: c.summary, Differences: c.differences}
}

//countTotals counts the records of the matched kinds on each side.
func (c *Comparator) countTotals(reference, audit *common.Context) {
	counted := map[string]bool{"C100": true, "C170": true, "H010": true, "E200": true}
	for _, r := range reference.Records {
		if counted[r.Reg] {
			c.summary.TotalRecordsRef++
		}
	}
	for _, r := range audit.Records {
		if counted[r.Reg] {
			c.summary.TotalRecordsAud++
		}
	}
}

//semanticKey joins the key fields of a record, or "" when the record is too
//short to carry them all.
func semanticKey(kind comparedKind, rec *common.Record) string {
	parts := make([]string, 0, len(kind.keyFields))
	for _, idx := range kind.keyFields {
		if idx >= len(rec.Fields) {
			return ""
		}
		parts = append(parts, rec.Field(idx))
	}
	return strings.Join(parts, "|")
}

//snapshot builds the data map shown for one side of a Difference.
func snapshot(kind comparedKind, rec *common.Record) map[string]string {
	data := map[string]string{"line_no": strconv.Itoa(rec.LineNo)}
	for _, f := range kind.data {
		data[f.name] = rec.Field(f.idx)
	}
	return data
}

func (c *Comparator) compareKind(kind comparedKind, refRecords, audRecords []*common.Record) {
	refByKey := keyMap(kind, refRecords)
	audByKey := keyMap(kind, audRecords)

	//duplicates are detected in the audit file only, before map matching;
	//every occurrence beyond the first is reported
	audCounts := make(map[string]int)
	for _, rec := range audRecords {
		key := semanticKey(kind, rec)
		if key == "" {
			continue
		}
		audCounts[key]++
		if audCounts[key] > 1 {
			c.differences = append(c.differences, Difference{
				Type:           DifferenceDuplicate,
				RecordType:     kind.reg,
				Key:            key,
				AuditData:      snapshot(kind, rec),
				Severity:       common.SeverityWarn,
				Message:        fmt.Sprintf("Registro %s duplicado no arquivo auditado: %s", kind.reg, key),
				DuplicateCount: audCounts[key],
			})
			c.summary.DuplicateRecords++
		}
	}

	for _, key := range sortedKeys(refByKey) {
		if _, ok := audByKey[key]; ok {
			continue
		}
		c.differences = append(c.differences, Difference{
			Type:          DifferenceMissing,
			RecordType:    kind.reg,
			Key:           key,
			ReferenceData: snapshot(kind, refByKey[key]),
			Severity:      common.SeverityError,
			Message:       fmt.Sprintf("%s não encontrado no arquivo auditado: %s", kind.label, key),
		})
		c.summary.MissingRecords++
	}

	for _, key := range sortedKeys(audByKey) {
		if _, ok := refByKey[key]; ok {
			continue
		}
		if audCounts[key] > 1 {
			//already reported as a duplicate
			continue
		}
		c.differences = append(c.differences, Difference{
			Type:       DifferenceExtra,
			RecordType: kind.reg,
			Key:        key,
			AuditData:  snapshot(kind, audByKey[key]),
			Severity:   common.SeverityWarn,
			Message:    fmt.Sprintf("%s excedente no arquivo auditado: %s", kind.label, key),
		})
		c.summary.ExtraRecords++
	}

	for _, key := range sortedKeys(refByKey) {
		audRec, ok := audByKey[key]
		if !ok {
			continue
		}
		c.compareValues(kind, key, refByKey[key], audRec)
	}
}

//keyMap indexes records by semantic key; on key collisions the last record
//wins, matching the duplicate policy of the repair rules.
func keyMap(kind comparedKind, records []*common.Record) map[string]*common.Record {
	result := make(map[string]*common.Record)
	for _, rec := range records {
		if key := semanticKey(kind, rec); key != "" {
			result[key] = rec
		}
	}
	return result
}

//sortedKeys returns the map keys in a stable order so that two runs emit
//byte-identical difference lists.
func sortedKeys(m map[string]*common.Record) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (c *Comparator) compareValues(kind comparedKind, key string, refRec, audRec *common.Record) {
	for _, check := range kind.checks {
		if check.idx >= len(refRec.Fields) || check.idx >= len(audRec.Fields) {
			continue
		}
		refValue := common.ParseNumericLoose(refRec.Field(check.idx))
		audValue := common.ParseNumericLoose(audRec.Field(check.idx))

		tolerance := c.tolerances.Money
		diffType := DifferenceValue
		if check.quantity {
			tolerance = c.tolerances.Quantity
			diffType = DifferenceQuantity
		}
		if common.WithinTolerance(refValue, audValue, tolerance) {
			continue
		}

		var message string
		if check.quantity {
			message = fmt.Sprintf("Diferença na quantidade (%s): %s vs %s", kind.label, refValue, audValue)
		} else {
			message = fmt.Sprintf("Diferença no campo %s (%s): R$ %s vs R$ %s",
				check.name, kind.label, common.FormatMoney(refValue), common.FormatMoney(audValue))
		}
		c.differences = append(c.differences, Difference{
			Type:           diffType,
			RecordType:     kind.reg,
			Key:            key,
			Field:          check.name,
			ReferenceValue: floatPtr(refValue),
			AuditValue:     floatPtr(audValue),
			Difference:     floatPtr(refValue.Sub(audValue)),
			Severity:       common.SeverityError,
			Message:        message,
		})
		if check.quantity {
			c.summary.QuantityDifferences++
		} else {
			c.summary.ValueDifferences++
		}
	}
}

//compareAppraisal compares the single E200 appraisal record of each side.
func (c *Comparator) compareAppraisal(refRecords, audRecords []*common.Record) {
	if len(refRecords) == 0 || len(audRecords) == 0 {
		return
	}
	refRec, audRec := refRecords[0], audRecords[0]
	checks := []struct {
		idx  int
		key  string
		name string
	}{
		{2, "TOTAL_DEBITOS", "VL_DEBITOS"},
		{3, "TOTAL_CREDITOS", "VL_CREDITOS"},
	}
	for _, check := range checks {
		if check.idx >= len(refRec.Fields) || check.idx >= len(audRec.Fields) {
			continue
		}
		refValue := common.ParseNumericLoose(refRec.Field(check.idx))
		audValue := common.ParseNumericLoose(audRec.Field(check.idx))
		if common.WithinTolerance(refValue, audValue, c.tolerances.Money) {
			continue
		}
		c.differences = append(c.differences, Difference{
			Type:           DifferenceValue,
			RecordType:     "E200",
			Key:            check.key,
			Field:          check.name,
			ReferenceValue: floatPtr(refValue),
			AuditValue:     floatPtr(audValue),
			Difference:     floatPtr(refValue.Sub(audValue)),
			Severity:       common.SeverityError,
			Message: fmt.Sprintf("Diferença na apuração (%s): R$ %s vs R$ %s",
				check.name, common.FormatMoney(refValue), common.FormatMoney(audValue)),
		})
		c.summary.ValueDifferences++
	}
}

//compareBlockTotals sums the canonical value field of each matched kind per
//block and reports totals drifting beyond the money tolerance. Block totals
//are aggregate echoes of the itemized differences, so they do not bump the
//value_differences counter.
func (c *Comparator) compareBlockTotals(reference, audit *common.Context) {
	for _, block := range blockTotals {
		refTotal := blockTotal(reference, block.kinds)
		audTotal := blockTotal(audit, block.kinds)
		if common.WithinTolerance(refTotal, audTotal, c.tolerances.Money) {
			continue
		}
		c.differences = append(c.differences, Difference{
			Type:           DifferenceValue,
			RecordType:     "BLOCK_" + block.block,
			Key:            "TOTAL",
			Field:          "VL_TOTAL",
			ReferenceValue: floatPtr(refTotal),
			AuditValue:     floatPtr(audTotal),
			Difference:     floatPtr(refTotal.Sub(audTotal)),
			Severity:       common.SeverityError,
			Message: fmt.Sprintf("Diferença no total do Bloco %s: R$ %s vs R$ %s",
				block.block, common.FormatMoney(refTotal), common.FormatMoney(audTotal)),
		})
	}
}

//blockTotal sums the canonical value field of the given kinds.
func blockTotal(ctx *common.Context, kinds []string) decimal.Decimal {
	total := decimal.Zero
	for _, reg := range kinds {
		kind := kindByReg(reg)
		for _, rec := range ctx.ByReg(reg) {
			if kind.totalIdx < len(rec.Fields) {
				total = total.Add(common.ParseNumericLoose(rec.Field(kind.totalIdx)))
			}
		}
	}
	return total
}

func kindByReg(reg string) comparedKind {
	for _, kind := range comparedKinds {
		if kind.reg == reg {
			return kind
		}
	}
	return comparedKind{}
}

func floatPtr(d decimal.Decimal) *float64 {
	f, _ := d.Float64()
	return &f
}
