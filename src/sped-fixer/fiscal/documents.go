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

package fiscal

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spedtools/sped-fixer/src/sped-fixer/common"
)

//duplicateDocumentItem removes C170 records that repeat the same item inside
//the same document. Two items are duplicates when the owning C100's access
//key, the item code and the normalized item value all coincide; the last
//occurrence in file order survives.
type duplicateDocumentItem struct{ common.RuleInfo }

//itemKey builds the composite duplicate key of a C170, or "" when the
//record lacks a parent, an item code or a value.
func itemKey(rec *common.Record) string {
	if rec.Parent == nil || rec.Parent.Reg != "C100" {
		return ""
	}
	docKey := rec.Parent.Field(8)
	itemCode := strings.TrimSpace(rec.Field(2))
	if docKey == "" || itemCode == "" {
		return ""
	}
	value, ok := common.ParseNumeric(rec.Field(6))
	if !ok {
		return ""
	}
	return docKey + "|" + itemCode + "|" + value.String()
}

func (r *duplicateDocumentItem) occurrences(rec *common.Record, ctx *common.Context) []*common.Record {
	key := itemKey(rec)
	var result []*common.Record
	for _, other := range ctx.ByReg("C170") {
		if itemKey(other) == key {
			result = append(result, other)
		}
	}
	return result
}

func (r *duplicateDocumentItem) Validate(rec *common.Record, ctx *common.Context) []common.Issue {
	if !ctx.AppliesToFiscal() || rec.Reg != "C170" {
		return nil
	}
	if itemKey(rec) == "" {
		return nil
	}
	occ := r.occurrences(rec, ctx)
	if len(occ) <= 1 || occ[len(occ)-1] == rec {
		return nil
	}
	return []common.Issue{common.NewIssue(r, rec,
		fmt.Sprintf("Item duplicado na nota %s: código=%s, valor=%s",
			rec.Parent.Field(8), rec.Field(2), rec.Field(6)),
		"Manter apenas última ocorrência")}
}

func (r *duplicateDocumentItem) Fix(rec *common.Record, ctx *common.Context) {
	if rec.Reg != "C170" || itemKey(rec) == "" {
		return
	}
	occ := r.occurrences(rec, ctx)
	if len(occ) > 1 && occ[len(occ)-1] != rec {
		ctx.Remove(rec)
	}
}

//cupomFiscalItems validates the C850 analytic records of a CF-e SAT cupom
//(C800). It checks three things: a cancelled cupom must not carry C850
//records, the composite key (cupom number, SAT serial, date, CST, CFOP,
//aliquota) must be unique, and the C850 sums must close against the cupom
//totals. The sum checks anchor their Issues at the C800.
type cupomFiscalItems struct{ common.RuleInfo }

//cupomItemKey builds the composite duplicate key of a C850, or "" when the
//record has no usable parent.
func cupomItemKey(rec *common.Record) string {
	parent := rec.Parent
	if parent == nil || parent.Reg != "C800" {
		return ""
	}
	return strings.Join([]string{
		parent.Field(3), parent.Field(4), parent.Field(5),
		rec.Field(1), rec.Field(2), rec.Field(3),
	}, "|")
}

func (r *cupomFiscalItems) occurrences(rec *common.Record, ctx *common.Context) []*common.Record {
	key := cupomItemKey(rec)
	var result []*common.Record
	for _, other := range ctx.ByReg("C850") {
		if cupomItemKey(other) == key {
			result = append(result, other)
		}
	}
	return result
}

func (r *cupomFiscalItems) Validate(rec *common.Record, ctx *common.Context) []common.Issue {
	if !ctx.AppliesToFiscal() {
		return nil
	}
	switch rec.Reg {
	case "C850":
		return r.validateItem(rec, ctx)
	case "C800":
		return r.validateTotals(rec, ctx)
	}
	return nil
}

func (r *cupomFiscalItems) validateItem(rec *common.Record, ctx *common.Context) []common.Issue {
	parent := rec.Parent
	if parent == nil || parent.Reg != "C800" {
		return nil
	}

	//a cancelled cupom (COD_SIT 02/03) may not carry analytic records
	if codSit := parent.Field(2); codSit == "02" || codSit == "03" {
		return []common.Issue{common.NewIssue(r, rec,
			fmt.Sprintf("C800 cancelado (COD_SIT=%s) não pode possuir C850", codSit),
			"Remover C850 vinculado")}
	}

	if cupomItemKey(rec) == "" {
		return nil
	}
	occ := r.occurrences(rec, ctx)
	if len(occ) <= 1 || occ[len(occ)-1] == rec {
		return nil
	}
	return []common.Issue{common.NewIssue(r, rec,
		fmt.Sprintf("Duplicidade no cupom %s: CST=%s, CFOP=%s, ALIQ=%s",
			parent.Field(3), rec.Field(1), rec.Field(2), rec.Field(3)),
		"Manter apenas última ocorrência")}
}

func (r *cupomFiscalItems) validateTotals(cupom *common.Record, ctx *common.Context) []common.Issue {
	sumOpr := decimal.Zero
	sumICMS := decimal.Zero
	hasItems := false
	for _, item := range ctx.ByReg("C850") {
		if item.Parent != cupom {
			continue
		}
		hasItems = true
		if value, ok := common.ParseNumeric(item.Field(4)); ok {
			sumOpr = sumOpr.Add(value)
		}
		if value, ok := common.ParseNumeric(item.Field(6)); ok {
			sumICMS = sumICMS.Add(value)
		}
	}
	if !hasItems {
		return nil
	}

	var issues []common.Issue
	vlCfe, _ := common.ParseNumeric(cupom.Field(6))
	if !common.WithinTolerance(sumOpr, vlCfe, common.MoneyTolerance) {
		issues = append(issues, common.NewIssue(r, cupom,
			fmt.Sprintf("Soma VL_OPR dos C850 (%s) difere do VL_CFE do C800 (%s)",
				common.FormatMoney(sumOpr), common.FormatMoney(vlCfe)),
			"Ajustar valores"))
	}
	vlICMS, _ := common.ParseNumeric(cupom.Field(8))
	if !common.WithinTolerance(sumICMS, vlICMS, common.MoneyTolerance) {
		issues = append(issues, common.NewIssue(r, cupom,
			fmt.Sprintf("Soma VL_ICMS dos C850 (%s) difere do VL_ICMS do C800 (%s)",
				common.FormatMoney(sumICMS), common.FormatMoney(vlICMS)),
			"Ajustar valores"))
	}
	return issues
}

func (r *cupomFiscalItems) Fix(rec *common.Record, ctx *common.Context) {
	if rec.Reg != "C850" {
		return
	}
	parent := rec.Parent
	if parent == nil || parent.Reg != "C800" {
		return
	}
	if codSit := parent.Field(2); codSit == "02" || codSit == "03" {
		ctx.Remove(rec)
		return
	}
	if cupomItemKey(rec) == "" {
		return
	}
	occ := r.occurrences(rec, ctx)
	if len(occ) > 1 && occ[len(occ)-1] != rec {
		ctx.Remove(rec)
	}
}
