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

package contrib

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spedtools/sped-fixer/src/sped-fixer/common"
)

//Rules returns the SPED Contribuições rule set in declared order.
func Rules() []common.Rule {
	return []common.Rule{
		&cstPis{common.RuleInfo{RuleID: "R101", Desc: "CST de PIS inválido para a operação", Level: common.SeverityError}},
		&cstCofins{common.RuleInfo{RuleID: "R102", Desc: "CST de COFINS inválido para a operação", Level: common.SeverityError}},
		&pisCredit{common.RuleInfo{RuleID: "R103", Desc: "Valor do crédito de PIS divergente de base × alíquota", Level: common.SeverityError, Fixable: true}},
		&cofinsCredit{common.RuleInfo{RuleID: "R104", Desc: "Valor do crédito de COFINS divergente de base × alíquota", Level: common.SeverityError, Fixable: true}},
		&pisAliquota{common.RuleInfo{RuleID: "R105", Desc: "Alíquota de PIS fora do intervalo permitido", Level: common.SeverityError, Fixable: true}},
		&cofinsAliquota{common.RuleInfo{RuleID: "R106", Desc: "Alíquota de COFINS fora do intervalo permitido", Level: common.SeverityError, Fixable: true}},
	}
}

//C170 PIS/COFINS column layout (shared with the fiscal rules).
const (
	c170CSTPis     = 29
	c170AliqPis    = 30
	c170CSTCofins  = 32
	c170AliqCofins = 33
)

//validEntryCST is the CST set accepted on entries (50-56, 60-67, 70-75), validExitCST
//the range accepted on exits (01-09). Both apply equally to PIS and COFINS.
var validEntryCST = map[string]bool{
	"50": true, "51": true, "52": true, "53": true, "54": true, "55": true, "56": true,
	"60": true, "61": true, "62": true, "63": true, "64": true, "65": true, "66": true, "67": true,
	"70": true, "71": true, "72": true, "73": true, "74": true, "75": true,
}
var validExitCST = map[string]bool{
	"01": true, "02": true, "03": true, "04": true, "05": true, "06": true,
	"07": true, "08": true, "09": true,
}

//CST positions per record type for R101/R102. The analytic records carry
//their CSTs at the same columns as the document item.
var pisCSTIndex = map[string]int{
	"C170": c170CSTPis,
	"C190": 29,
	"D190": 29,
}
var cofinsCSTIndex = map[string]int{
	"C170": c170CSTCofins,
	"C190": 32,
	"D190": 32,
}

//operationDirection returns the tp_op governing a record ("0" entry, "1"
//exit). A document item inherits it from the owning C100; the analytic
//records carry it in their own field 2. An item without a usable parent
//yields "".
func operationDirection(rec *common.Record) string {
	if rec.Reg == "C170" {
		if rec.Parent == nil || rec.Parent.Reg != "C100" {
			return ""
		}
		return rec.Parent.Field(2)
	}
	return rec.Field(2)
}

//validateDirectionalCST implements the shared logic of R101/R102.
func validateDirectionalCST(r common.Rule, rec *common.Record, cstIdx int, tax string) []common.Issue {
	cst := rec.Field(cstIdx)
	if cst == "" {
		return nil
	}
	switch operationDirection(rec) {
	case "0":
		if !validEntryCST[cst] {
			return []common.Issue{common.NewIssue(r, rec,
				fmt.Sprintf("CST %s %s inválido para entrada", tax, cst),
				fmt.Sprintf("Ajustar CST %s para entrada", tax))}
		}
	case "1":
		if !validExitCST[cst] {
			return []common.Issue{common.NewIssue(r, rec,
				fmt.Sprintf("CST %s %s inválido para saída", tax, cst),
				fmt.Sprintf("Ajustar CST %s para saída", tax))}
		}
	}
	return nil
}

type cstPis struct{ common.RuleInfo }

func (r *cstPis) Validate(rec *common.Record, ctx *common.Context) []common.Issue {
	if !ctx.AppliesToContrib() {
		return nil
	}
	idx, ok := pisCSTIndex[rec.Reg]
	if !ok {
		return nil
	}
	return validateDirectionalCST(r, rec, idx, "PIS")
}

type cstCofins struct{ common.RuleInfo }

func (r *cstCofins) Validate(rec *common.Record, ctx *common.Context) []common.Issue {
	if !ctx.AppliesToContrib() {
		return nil
	}
	idx, ok := cofinsCSTIndex[rec.Reg]
	if !ok {
		return nil
	}
	return validateDirectionalCST(r, rec, idx, "COFINS")
}

//M100/M500 column layout: base at 5, aliquota at 6, credit at 7.
const (
	creditBase  = 5
	creditAliq  = 6
	creditValue = 7
)

//creditMismatch implements the shared logic of R103/R104: the credit must
//equal base × aliquota / 100 within one centavo.
func creditMismatch(r common.Rule, rec *common.Record, tax string) []common.Issue {
	if len(rec.Fields) < 8 {
		return nil
	}
	base, okBase := common.ParseNumeric(rec.Field(creditBase))
	aliq, okAliq := common.ParseNumeric(rec.Field(creditAliq))
	credit, okCredit := common.ParseNumeric(rec.Field(creditValue))
	if !okBase || !okAliq || !okCredit {
		return []common.Issue{common.NewIssue(r, rec,
			fmt.Sprintf("Valores inválidos no registro %s", rec.Reg),
			"Verificar valores numéricos")}
	}
	calculated := base.Mul(aliq).Div(decimal.NewFromInt(100))
	if common.WithinTolerance(calculated, credit, common.MoneyTolerance) {
		return nil
	}
	return []common.Issue{common.NewIssue(r, rec,
		fmt.Sprintf("Valor do crédito de %s (%s) ≠ base × alíquota (%s)",
			tax, common.FormatMoney(credit), common.FormatMoney(calculated)),
		"Ajustar valor do crédito")}
}

//recomputeCredit rewrites the credit field from base × aliquota / 100.
func recomputeCredit(rec *common.Record) {
	base, okBase := common.ParseNumeric(rec.Field(creditBase))
	aliq, okAliq := common.ParseNumeric(rec.Field(creditAliq))
	if !okBase || !okAliq {
		return
	}
	rec.SetField(creditValue, common.FormatMoney(base.Mul(aliq).Div(decimal.NewFromInt(100))))
}

type pisCredit struct{ common.RuleInfo }

func (r *pisCredit) Validate(rec *common.Record, ctx *common.Context) []common.Issue {
	if !ctx.AppliesToContrib() || rec.Reg != "M100" {
		return nil
	}
	return creditMismatch(r, rec, "PIS")
}

func (r *pisCredit) Fix(rec *common.Record, ctx *common.Context) {
	if rec.Reg == "M100" && len(rec.Fields) >= 8 {
		recomputeCredit(rec)
	}
}

type cofinsCredit struct{ common.RuleInfo }

func (r *cofinsCredit) Validate(rec *common.Record, ctx *common.Context) []common.Issue {
	if !ctx.AppliesToContrib() || rec.Reg != "M500" {
		return nil
	}
	return creditMismatch(r, rec, "COFINS")
}

func (r *cofinsCredit) Fix(rec *common.Record, ctx *common.Context) {
	if rec.Reg == "M500" && len(rec.Fields) >= 8 {
		recomputeCredit(rec)
	}
}

//aliquota positions per record type for PIS and COFINS.
var pisAliqIndex = map[string]int{
	"M100": 6,
	"C170": c170AliqPis,
	"C190": 11,
	"D190": 11,
}
var cofinsAliqIndex = map[string]int{
	"M500": 6,
	"C170": c170AliqCofins,
	"C190": 14,
	"D190": 14,
}

//validPisAliquotas and validCofinsAliquotas are the legally possible rates
//in percent.
var validPisAliquotas = []decimal.Decimal{
	decimal.Zero,
	decimal.NewFromFloat(0.65),
	decimal.NewFromFloat(1.65),
}
var validCofinsAliquotas = []decimal.Decimal{
	decimal.Zero,
	decimal.NewFromInt(3),
	decimal.NewFromFloat(7.6),
}

//positionalErrorLimit: any aliquota above this is a value that slipped into
//the wrong column, not a mistyped rate.
var positionalErrorLimit = decimal.NewFromInt(10)

//validAliquota reports whether the rate is one of the allowed values.
func validAliquota(aliq decimal.Decimal, valid []decimal.Decimal) bool {
	for _, v := range valid {
		if aliq.Equal(v) {
			return true
		}
	}
	return false
}

//closestAliquota returns the allowed value nearest to the given rate.
func closestAliquota(aliq decimal.Decimal, valid []decimal.Decimal) decimal.Decimal {
	closest := valid[0]
	distance := aliq.Sub(closest).Abs()
	for _, v := range valid[1:] {
		if d := aliq.Sub(v).Abs(); d.Cmp(distance) < 0 {
			closest = v
			distance = d
		}
	}
	return closest
}

//validateAliquota implements the shared logic of R105/R106.
func validateAliquota(r common.Rule, rec *common.Record, idx int, tax string, valid []decimal.Decimal) []common.Issue {
	raw := rec.Field(idx)
	if raw == "" {
		return nil
	}
	aliq, ok := common.ParseNumeric(raw)
	if !ok {
		return []common.Issue{common.NewIssue(r, rec,
			fmt.Sprintf("Alíquota de %s inválida", tax), "Verificar valor numérico")}
	}
	if aliq.Cmp(positionalErrorLimit) > 0 {
		return []common.Issue{common.NewIssue(r, rec,
			fmt.Sprintf("Alíquota de %s %s%% claramente inválida", tax, aliq),
			"Verificar se o valor está na posição correta")}
	}
	if !validAliquota(aliq, valid) {
		return []common.Issue{common.NewIssue(r, rec,
			fmt.Sprintf("Alíquota de %s %s%% inválida", tax, aliq),
			fmt.Sprintf("Ajustar alíquota de %s para valor válido", tax))}
	}
	return nil
}

//fixAliquota snaps an invalid rate to the nearest allowed value; rates above
//the positional-error limit are zeroed instead of snapped.
func fixAliquota(rec *common.Record, idx int, valid []decimal.Decimal) {
	raw := rec.Field(idx)
	if raw == "" {
		return
	}
	aliq, ok := common.ParseNumeric(raw)
	if !ok {
		return
	}
	if aliq.Cmp(positionalErrorLimit) > 0 {
		rec.SetField(idx, "0")
		return
	}
	if !validAliquota(aliq, valid) {
		rec.SetField(idx, closestAliquota(aliq, valid).StringFixed(2))
	}
}

type pisAliquota struct{ common.RuleInfo }

func (r *pisAliquota) Validate(rec *common.Record, ctx *common.Context) []common.Issue {
	if !ctx.AppliesToContrib() {
		return nil
	}
	idx, ok := pisAliqIndex[rec.Reg]
	if !ok || idx >= len(rec.Fields) {
		return nil
	}
	return validateAliquota(r, rec, idx, "PIS", validPisAliquotas)
}

func (r *pisAliquota) Fix(rec *common.Record, ctx *common.Context) {
	if idx, ok := pisAliqIndex[rec.Reg]; ok && idx < len(rec.Fields) {
		fixAliquota(rec, idx, validPisAliquotas)
	}
}

type cofinsAliquota struct{ common.RuleInfo }

func (r *cofinsAliquota) Validate(rec *common.Record, ctx *common.Context) []common.Issue {
	if !ctx.AppliesToContrib() {
		return nil
	}
	idx, ok := cofinsAliqIndex[rec.Reg]
	if !ok || idx >= len(rec.Fields) {
		return nil
	}
	return validateAliquota(r, rec, idx, "COFINS", validCofinsAliquotas)
}

func (r *cofinsAliquota) Fix(rec *common.Record, ctx *common.Context) {
	if idx, ok := cofinsAliqIndex[rec.Reg]; ok && idx < len(rec.Fields) {
		fixAliquota(rec, idx, validCofinsAliquotas)
	}
}
