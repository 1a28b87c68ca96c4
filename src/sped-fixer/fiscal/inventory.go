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
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spedtools/sped-fixer/src/sped-fixer/common"
)

//Block H column layout used by the inventory rules.
const (
	h005ValueInv  = 1 //VL_INV
	h005DateInv   = 2 //DT_INV
	h005MotiveInv = 3 //MOT_INV

	h010ItemCode  = 1 //COD_ITEM
	h010Unit      = 2 //UNID
	h010Quantity  = 3 //QTD
	h010UnitValue = 4 //VL_UNIT
	h010ItemValue = 5 //VL_ITEM
	h010Ownership = 6 //IND_PROP
	h010Partner   = 7 //COD_PART
)

//inventoryItemsTotal sums VL_ITEM over every H010 of the context.
func inventoryItemsTotal(ctx *common.Context) decimal.Decimal {
	total := decimal.Zero
	for _, item := range ctx.ByReg("H010") {
		if value, ok := common.ParseNumeric(item.Field(h010ItemValue)); ok {
			total = total.Add(value)
		}
	}
	return total
}

type inventoryItemWithoutProduct struct{ common.RuleInfo }

//productExists reports whether an item code is registered in the 0200 table.
func productExists(code string, ctx *common.Context) bool {
	for _, product := range ctx.ByReg("0200") {
		if product.Field(1) == code {
			return true
		}
	}
	return false
}

func (r *inventoryItemWithoutProduct) Validate(rec *common.Record, ctx *common.Context) []common.Issue {
	if !ctx.AppliesToFiscal() || rec.Reg != "H020" {
		return nil
	}
	code := rec.Field(1)
	if productExists(code, ctx) {
		return nil
	}
	return []common.Issue{common.NewIssue(r, rec,
		fmt.Sprintf("Item %s sem cadastro no 0200", code),
		"Remover item ou criar cadastro")}
}

func (r *inventoryItemWithoutProduct) Fix(rec *common.Record, ctx *common.Context) {
	if rec.Reg != "H020" {
		return
	}
	if !productExists(rec.Field(1), ctx) {
		ctx.Remove(rec)
	}
}

type inventoryValueMismatch struct{ common.RuleInfo }

func (r *inventoryValueMismatch) Validate(rec *common.Record, ctx *common.Context) []common.Issue {
	if !ctx.AppliesToFiscal() || rec.Reg != "H005" {
		return nil
	}
	total, _ := common.ParseNumeric(rec.Field(h005ValueInv))
	itemsSum := inventoryItemsTotal(ctx)
	if common.WithinTolerance(total, itemsSum, common.MoneyTolerance) {
		return nil
	}
	return []common.Issue{common.NewIssue(r, rec,
		fmt.Sprintf("Valor do inventário (%s) ≠ soma dos itens (%s)",
			common.FormatMoney(total), common.FormatMoney(itemsSum)),
		"Ajustar valor total")}
}

func (r *inventoryValueMismatch) Fix(rec *common.Record, ctx *common.Context) {
	if rec.Reg != "H005" {
		return
	}
	rec.SetField(h005ValueInv, common.FormatMoney(inventoryItemsTotal(ctx)))
}

type inventoryOpening struct{ common.RuleInfo }

func (r *inventoryOpening) Validate(rec *common.Record, ctx *common.Context) []common.Issue {
	if !ctx.AppliesToFiscal() || rec.Reg != "H001" {
		return nil
	}
	if len(rec.Fields) < 2 {
		return []common.Issue{common.NewIssue(r, rec,
			"Registro H001 com quantidade de campos inferior ao esperado",
			"O registro H001 deve ter pelo menos 2 campos")}
	}

	var issues []common.Issue
	if indMov := rec.Field(1); indMov != "0" && indMov != "1" {
		issues = append(issues, common.NewIssue(r, rec,
			fmt.Sprintf("Valor inválido para IND_MOV: %s", indMov),
			"O campo IND_MOV deve ser '0' (bloco com dados) ou '1' (bloco sem dados)"))
	}

	//the February submission must restate the year-end inventory of the
	//previous year (DT_INV = 31/12, MOT_INV = 01)
	if ctx.Period != nil &&
		ctx.Period.Start.Month() == time.February && ctx.Period.End.Month() == time.February {
		wanted := fmt.Sprintf("3112%04d", ctx.Period.Start.Year()-1)
		found := false
		for _, h005 := range ctx.ByReg("H005") {
			if h005.Field(h005DateInv) == wanted && h005.Field(h005MotiveInv) == "01" {
				found = true
				break
			}
		}
		if !found {
			issues = append(issues, common.NewIssue(r, rec,
				"Período de fevereiro não contém registro H005 com data de 31/12 do ano anterior e MOT_INV=01",
				fmt.Sprintf("Incluir registro H005 com DT_INV=%s e MOT_INV=01", wanted)))
		}
	}
	return issues
}

func (r *inventoryOpening) Fix(rec *common.Record, ctx *common.Context) {
	if rec.Reg != "H001" || len(rec.Fields) < 2 {
		return
	}
	if indMov := rec.Field(1); indMov == "0" || indMov == "1" {
		return
	}
	hasOthers := false
	for _, other := range ctx.Records {
		if other.Block() == "H" && other.Reg != "H001" && other.Reg != "H990" {
			hasOthers = true
			break
		}
	}
	if hasOthers {
		rec.SetField(1, "0")
	} else {
		rec.SetField(1, "1")
	}
}

//validInventoryMotives are the accepted MOT_INV codes.
var validInventoryMotives = map[string]bool{
	"01": true, "02": true, "03": true, "04": true, "05": true, "06": true,
}

type inventoryTotals struct{ common.RuleInfo }

func (r *inventoryTotals) Validate(rec *common.Record, ctx *common.Context) []common.Issue {
	if !ctx.AppliesToFiscal() || rec.Reg != "H005" {
		return nil
	}
	if len(rec.Fields) < 4 {
		return []common.Issue{common.NewIssue(r, rec,
			"Registro H005 com quantidade de campos inferior ao esperado",
			"O registro H005 deve ter pelo menos 4 campos")}
	}

	var issues []common.Issue

	dtInvStr := rec.Field(h005DateInv)
	dtInv, okDate := common.ParseDate(dtInvStr)
	if len(dtInvStr) != 8 || !okDate {
		issues = append(issues, common.NewIssue(r, rec,
			fmt.Sprintf("Formato inválido para DT_INV: %s", dtInvStr),
			"O campo DT_INV deve ser uma data no formato ddmmaaaa"))
	} else if ctx.Period != nil {
		if dtInv.After(ctx.Period.End) {
			issues = append(issues, common.NewIssue(r, rec,
				fmt.Sprintf("Data do inventário (%s) é maior que a data final do período", dtInvStr),
				"A data do inventário deve ser menor ou igual à data final do período"))
		}
		//an end-of-period inventory must be presented until the second month
		//after it was taken
		if rec.Field(h005MotiveInv) == "01" && ctx.Period.Start.After(dtInv.AddDate(0, 2, 0)) {
			issues = append(issues, common.NewIssue(r, rec,
				"Inventário com MOT_INV=01 apresentado após o 2º mês subsequente à data do inventário",
				"O inventário deve ser apresentado até o 2º mês subsequente à sua data"))
		}
	}

	if _, ok := common.ParseNumeric(rec.Field(h005ValueInv)); !ok {
		issues = append(issues, common.NewIssue(r, rec,
			fmt.Sprintf("Formato inválido para VL_INV: %s", rec.Field(h005ValueInv)),
			"O campo VL_INV deve ser um valor numérico com 2 casas decimais"))
	}

	motInv := rec.Field(h005MotiveInv)
	if !validInventoryMotives[motInv] {
		issues = append(issues, common.NewIssue(r, rec,
			fmt.Sprintf("Valor inválido para MOT_INV: %s", motInv),
			"O campo MOT_INV deve ser '01' a '06'"))
	}
	//substituição tributária inventories carry their complement in H030
	if motInv == "06" && ctx.First("H030") == nil {
		issues = append(issues, common.NewIssue(r, rec,
			"Registro H005 com MOT_INV=06 não possui registro H030 associado",
			"Incluir registro H030 para informações de substituição tributária"))
	}
	return issues
}

func (r *inventoryTotals) Fix(rec *common.Record, ctx *common.Context) {
	if rec.Reg != "H005" || len(rec.Fields) < 4 {
		return
	}
	if !validInventoryMotives[rec.Field(h005MotiveInv)] {
		rec.SetField(h005MotiveInv, "01")
	}
}

type inventoryItems struct{ common.RuleInfo }

func (r *inventoryItems) Validate(rec *common.Record, ctx *common.Context) []common.Issue {
	if !ctx.AppliesToFiscal() || rec.Reg != "H010" {
		return nil
	}
	if len(rec.Fields) < 7 {
		return []common.Issue{common.NewIssue(r, rec,
			"Registro H010 com quantidade de campos inferior ao esperado",
			"O registro H010 deve ter pelo menos 7 campos")}
	}

	var issues []common.Issue

	codItem := rec.Field(h010ItemCode)
	if codItem == "" {
		issues = append(issues, common.NewIssue(r, rec,
			"Campo COD_ITEM não informado", "O campo COD_ITEM é obrigatório"))
	} else if !productExists(codItem, ctx) {
		issues = append(issues, common.NewIssue(r, rec,
			fmt.Sprintf("Código do item %s não encontrado no registro 0200", codItem),
			"Verificar se o código do item está cadastrado no registro 0200"))
	}

	unit := rec.Field(h010Unit)
	if unit == "" {
		issues = append(issues, common.NewIssue(r, rec,
			"Campo UNID não informado", "O campo UNID é obrigatório"))
	} else if codItem != "" {
		unitMatches := false
		for _, product := range ctx.ByReg("0200") {
			if product.Field(1) == codItem && product.Field(4) == unit {
				unitMatches = true
				break
			}
		}
		if !unitMatches {
			issues = append(issues, common.NewIssue(r, rec,
				fmt.Sprintf("Unidade %s não encontrada para o item %s no registro 0200", unit, codItem),
				"Verificar se a unidade está cadastrada corretamente no registro 0200"))
		}
	}

	numericChecks := []struct {
		idx    int
		name   string
		places string
	}{
		{h010Quantity, "QTD", "3"},
		{h010UnitValue, "VL_UNIT", "6"},
		{h010ItemValue, "VL_ITEM", "2"},
	}
	for _, check := range numericChecks {
		value, ok := common.ParseNumeric(rec.Field(check.idx))
		if !ok {
			issues = append(issues, common.NewIssue(r, rec,
				fmt.Sprintf("Formato inválido para %s: %s", check.name, rec.Field(check.idx)),
				fmt.Sprintf("O campo %s deve ser um valor numérico com %s casas decimais", check.name, check.places)))
			continue
		}
		if value.Sign() < 0 {
			issues = append(issues, common.NewIssue(r, rec,
				fmt.Sprintf("%s negativo: %s", check.name, rec.Field(check.idx)),
				fmt.Sprintf("O campo %s deve ser maior ou igual a zero", check.name)))
		}
	}

	indProp := rec.Field(h010Ownership)
	switch indProp {
	case "0", "1", "2":
	default:
		issues = append(issues, common.NewIssue(r, rec,
			fmt.Sprintf("Valor inválido para IND_PROP: %s", indProp),
			"O campo IND_PROP deve ser '0', '1' ou '2'"))
	}
	//goods held by or belonging to third parties need the partner reference
	if indProp == "1" || indProp == "2" {
		codPart := rec.Field(h010Partner)
		if codPart == "" {
			issues = append(issues, common.NewIssue(r, rec,
				"Campo COD_PART não informado para IND_PROP=1 ou 2",
				"O campo COD_PART é obrigatório quando IND_PROP é '1' ou '2'"))
		} else {
			partnerExists := false
			for _, partner := range ctx.ByReg("0150") {
				if partner.Field(2) == codPart {
					partnerExists = true
					break
				}
			}
			if !partnerExists {
				issues = append(issues, common.NewIssue(r, rec,
					fmt.Sprintf("Código do participante %s não encontrado no registro 0150", codPart),
					"Verificar se o participante está cadastrado no registro 0150"))
			}
		}
	}
	return issues
}

func (r *inventoryItems) Fix(rec *common.Record, ctx *common.Context) {
	if rec.Reg != "H010" || len(rec.Fields) < 7 {
		return
	}
	fixNegative(rec, h010Quantity, 3)
	fixNegative(rec, h010UnitValue, 6)
	fixNegative(rec, h010ItemValue, 2)
	switch rec.Field(h010Ownership) {
	case "0", "1", "2":
	default:
		rec.SetField(h010Ownership, "0")
	}
}

//fixNegative rewrites a numeric field as its absolute value with the given
//number of decimal places. Unparseable values become zero; valid
//non-negative values are left untouched.
func fixNegative(rec *common.Record, idx int, places int32) {
	raw := rec.Field(idx)
	value, ok := common.ParseNumeric(raw)
	switch {
	case !ok:
		rec.SetField(idx, decimal.Zero.StringFixed(places))
	case value.Sign() < 0:
		rec.SetField(idx, value.Abs().StringFixed(places))
	}
}

type inventoryICMSInfo struct{ common.RuleInfo }

func (r *inventoryICMSInfo) Validate(rec *common.Record, ctx *common.Context) []common.Issue {
	if !ctx.AppliesToFiscal() || rec.Reg != "H020" {
		return nil
	}
	if len(rec.Fields) < 4 {
		return []common.Issue{common.NewIssue(r, rec,
			"Registro H020 com quantidade de campos inferior ao esperado",
			"O registro H020 deve ter pelo menos 4 campos")}
	}

	var issues []common.Issue
	if cst := rec.Field(1); len(cst) != 3 || common.OnlyDigits(cst) != cst {
		issues = append(issues, common.NewIssue(r, rec,
			fmt.Sprintf("Formato inválido para CST_ICMS: %s", cst),
			"O campo CST_ICMS deve ser um código numérico de 3 dígitos"))
	}
	for _, check := range []struct {
		idx  int
		name string
	}{{2, "BC_ICMS"}, {3, "VL_ICMS"}} {
		value, ok := common.ParseNumeric(rec.Field(check.idx))
		if !ok {
			issues = append(issues, common.NewIssue(r, rec,
				fmt.Sprintf("Formato inválido para %s: %s", check.name, rec.Field(check.idx)),
				fmt.Sprintf("O campo %s deve ser um valor numérico com 2 casas decimais", check.name)))
			continue
		}
		if value.Sign() < 0 {
			issues = append(issues, common.NewIssue(r, rec,
				fmt.Sprintf("%s negativo: %s", check.name, rec.Field(check.idx)),
				fmt.Sprintf("O campo %s deve ser maior ou igual a zero", check.name)))
		}
	}
	return issues
}

func (r *inventoryICMSInfo) Fix(rec *common.Record, ctx *common.Context) {
	if rec.Reg != "H020" || len(rec.Fields) < 4 {
		return
	}
	fixNegative(rec, 2, 2)
	fixNegative(rec, 3, 2)
}

type inventoryICMSSTInfo struct{ common.RuleInfo }

//h030Fields names the monetary columns of the H030 record.
var h030Fields = []struct {
	idx  int
	name string
}{
	{1, "VL_ICMS_OP"},
	{2, "VL_BC_ICMS_ST"},
	{3, "VL_ICMS_ST"},
	{4, "VL_FCP"},
}

func (r *inventoryICMSSTInfo) Validate(rec *common.Record, ctx *common.Context) []common.Issue {
	if !ctx.AppliesToFiscal() || rec.Reg != "H030" {
		return nil
	}
	if len(rec.Fields) < 5 {
		return []common.Issue{common.NewIssue(r, rec,
			"Registro H030 com quantidade de campos inferior ao esperado",
			"O registro H030 deve ter pelo menos 5 campos")}
	}

	var issues []common.Issue
	for _, check := range h030Fields {
		value, ok := common.ParseNumeric(rec.Field(check.idx))
		if !ok {
			issues = append(issues, common.NewIssue(r, rec,
				fmt.Sprintf("Formato inválido para %s: %s", check.name, rec.Field(check.idx)),
				fmt.Sprintf("O campo %s deve ser um valor numérico com 6 casas decimais", check.name)))
			continue
		}
		if value.Sign() < 0 {
			issues = append(issues, common.NewIssue(r, rec,
				fmt.Sprintf("%s negativo: %s", check.name, rec.Field(check.idx)),
				fmt.Sprintf("O campo %s deve ser maior ou igual a zero", check.name)))
		}
	}
	return issues
}

func (r *inventoryICMSSTInfo) Fix(rec *common.Record, ctx *common.Context) {
	if rec.Reg != "H030" || len(rec.Fields) < 5 {
		return
	}
	for _, check := range h030Fields {
		fixNegative(rec, check.idx, 6)
	}
}

//countBlockH counts the records of block H still present in the context.
func countBlockH(ctx *common.Context) int {
	count := 0
	for _, r := range ctx.Records {
		if strings.HasPrefix(r.Reg, "H") {
			count++
		}
	}
	return count
}

type inventoryClosing struct{ common.RuleInfo }

func (r *inventoryClosing) Validate(rec *common.Record, ctx *common.Context) []common.Issue {
	if !ctx.AppliesToFiscal() || rec.Reg != "H990" {
		return nil
	}
	if len(rec.Fields) < 2 {
		return []common.Issue{common.NewIssue(r, rec,
			"Registro H990 com quantidade de campos inferior ao esperado",
			"O registro H990 deve ter pelo menos 2 campos")}
	}
	declared, err := strconv.Atoi(rec.Field(1))
	if err != nil {
		return []common.Issue{common.NewIssue(r, rec,
			fmt.Sprintf("Formato inválido para QTD_LIN_H: %s", rec.Field(1)),
			"O campo QTD_LIN_H deve ser um número inteiro")}
	}
	if actual := countBlockH(ctx); declared != actual {
		return []common.Issue{common.NewIssue(r, rec,
			fmt.Sprintf("Quantidade de linhas do Bloco H (%d) não corresponde ao total de registros (%d)", declared, actual),
			"O campo QTD_LIN_H deve refletir a quantidade total de registros do Bloco H")}
	}
	return nil
}

func (r *inventoryClosing) Fix(rec *common.Record, ctx *common.Context) {
	if rec.Reg != "H990" || len(rec.Fields) < 2 {
		return
	}
	rec.SetField(1, strconv.Itoa(countBlockH(ctx)))
}

//inventoryBlock checks the block-level invariants of block H. It anchors at
//the first H record so that each invariant is reported exactly once.
type inventoryBlock struct{ common.RuleInfo }

func (r *inventoryBlock) Validate(rec *common.Record, ctx *common.Context) []common.Issue {
	if !ctx.AppliesToFiscal() || !strings.HasPrefix(rec.Reg, "H") {
		return nil
	}
	for _, other := range ctx.Records {
		if strings.HasPrefix(other.Reg, "H") {
			if other != rec {
				return nil
			}
			break
		}
	}

	var issues []common.Issue
	opening := ctx.First("H001")
	if opening == nil {
		issues = append(issues, common.NewIssue(r, rec,
			"Bloco H não possui registro H001", "Incluir registro H001 de abertura do Bloco H"))
		return issues
	}
	if ctx.First("H990") == nil {
		issues = append(issues, common.NewIssue(r, rec,
			"Bloco H não possui registro H990", "Incluir registro H990 de encerramento do Bloco H"))
		return issues
	}

	total := countBlockH(ctx)
	switch opening.Field(1) {
	case "1":
		if total > 2 {
			issues = append(issues, common.NewIssue(r, rec,
				"Bloco H com IND_MOV=1 possui registros além de H001 e H990",
				"Remover registros do Bloco H ou alterar IND_MOV para 0"))
		}
	case "0":
		if total <= 2 {
			issues = append(issues, common.NewIssue(r, rec,
				"Bloco H com IND_MOV=0 não possui registros além de H001 e H990",
				"Incluir registros do Bloco H ou alterar IND_MOV para 1"))
		}
		if ctx.First("H005") == nil {
			issues = append(issues, common.NewIssue(r, rec,
				"Bloco H com IND_MOV=0 não possui registro H005",
				"Incluir registro H005 com informações do inventário"))
		}
		//a valued inventory must be detailed item by item
		if ctx.First("H010") == nil {
			for _, h005 := range ctx.ByReg("H005") {
				if value, ok := common.ParseNumeric(h005.Field(h005ValueInv)); ok && value.Sign() > 0 {
					issues = append(issues, common.NewIssue(r, rec,
						"Registro H005 com VL_INV > 0 não possui registros H010 associados",
						"Incluir registros H010 com o detalhamento dos itens do inventário"))
					break
				}
			}
		}
	}
	return issues
}
