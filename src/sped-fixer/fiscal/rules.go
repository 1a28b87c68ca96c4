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

	"github.com/shopspring/decimal"
	"github.com/spedtools/sped-fixer/src/sped-fixer/common"
)

//Rules returns the SPED Fiscal rule set in declared order. Every rule guards
//on the context's SPED type, so running the set against a contributions-only
//file is harmless.
func Rules() []common.Rule {
	return []common.Rule{
		&headerCNPJ{common.RuleInfo{RuleID: "R003", Desc: "CNPJ no 0000 deve ter 14 dígitos", Level: common.SeverityError, Fixable: true}},
		&periodDates{common.RuleInfo{RuleID: "R005", Desc: "Data de início <= data fim (0000)", Level: common.SeverityError}},
		&inventoryItemWithoutProduct{common.RuleInfo{RuleID: "R013", Desc: "Remove itens de inventário sem cadastro no 0200", Level: common.SeverityError, Fixable: true}},
		&inventoryValueMismatch{common.RuleInfo{RuleID: "R014", Desc: "Ajusta valor total do inventário (H005)", Level: common.SeverityError, Fixable: true}},
		&duplicateDocument{common.RuleInfo{RuleID: "R015", Desc: "Remove documentos fiscais duplicados", Level: common.SeverityError, Fixable: true}},
		&cfopOperation{common.RuleInfo{RuleID: "R017", Desc: "Corrige CFOP incompatível com a operação", Level: common.SeverityError, Fixable: true}},
		&duplicateDocumentItem{common.RuleInfo{RuleID: "RC170", Desc: "Remove itens duplicados dentro do mesmo documento (C100)", Level: common.SeverityError, Fixable: true}},
		&cupomFiscalItems{common.RuleInfo{RuleID: "RC850", Desc: "Valida duplicidade e consistência dos registros C850 (filho de C800)", Level: common.SeverityError, Fixable: true}},
		&simplesNacionalCredit{common.RuleInfo{RuleID: "R021", Desc: "Zera crédito de ICMS para Simples Nacional", Level: common.SeverityError, Fixable: true}},
		&debitTotalMismatch{common.RuleInfo{RuleID: "R025", Desc: "Ajusta total de débitos (E200) para coincidir com os documentos", Level: common.SeverityError, Fixable: true}},
		&blockCVsBlockE{common.RuleInfo{RuleID: "RE110", Desc: "Valida consistência entre totais do Bloco C e Bloco E", Level: common.SeverityError}},
		&itemsVsDocument{common.RuleInfo{RuleID: "RC100", Desc: "Valida soma de itens (C170) vs total das mercadorias (C100)", Level: common.SeverityError}},
		&pisCofinsFiscal{common.RuleInfo{RuleID: "R110", Desc: "Verifica valores de PIS/COFINS no SPED Fiscal", Level: common.SeverityError, Fixable: true}},
		&inventoryOpening{common.RuleInfo{RuleID: "RH001", Desc: "Validação do registro H001: abertura do Bloco H", Level: common.SeverityError, Fixable: true}},
		&inventoryTotals{common.RuleInfo{RuleID: "RH005", Desc: "Validação do registro H005: totais do inventário", Level: common.SeverityError, Fixable: true}},
		&inventoryItems{common.RuleInfo{RuleID: "RH010", Desc: "Validação do registro H010: inventário", Level: common.SeverityError, Fixable: true}},
		&inventoryICMSInfo{common.RuleInfo{RuleID: "RH020", Desc: "Validação do registro H020: informação complementar do inventário", Level: common.SeverityError, Fixable: true}},
		&inventoryICMSSTInfo{common.RuleInfo{RuleID: "RH030", Desc: "Validação do registro H030: inventário sob substituição tributária", Level: common.SeverityError, Fixable: true}},
		&inventoryClosing{common.RuleInfo{RuleID: "RH990", Desc: "Validação do registro H990: encerramento do Bloco H", Level: common.SeverityError, Fixable: true}},
		&inventoryBlock{common.RuleInfo{RuleID: "RHBLOCK", Desc: "Validação do Bloco H como um todo", Level: common.SeverityError}},
	}
}

type headerCNPJ struct{ common.RuleInfo }

func (r *headerCNPJ) Validate(rec *common.Record, ctx *common.Context) []common.Issue {
	if !ctx.AppliesToFiscal() || rec.Reg != "0000" {
		return nil
	}
	if len(rec.Fields) < 7 {
		return []common.Issue{common.NewIssue(r, rec,
			"Registro 0000 incompleto (menos de 7 campos)", "Verificar estrutura do registro")}
	}
	cnpj := rec.Field(6)
	if cnpj == "" {
		//an absent CNPJ is R034's business and needs manual intervention
		return nil
	}
	if digits := common.OnlyDigits(cnpj); cnpj == digits && len(digits) == 14 {
		return nil
	}
	return []common.Issue{common.NewIssue(r, rec,
		fmt.Sprintf("CNPJ inválido: %s", cnpj), "Normalizar para 14 dígitos")}
}

func (r *headerCNPJ) Fix(rec *common.Record, ctx *common.Context) {
	if rec.Reg != "0000" || len(rec.Fields) < 7 || rec.Field(6) == "" {
		return
	}
	digits := common.OnlyDigits(rec.Field(6))
	if len(digits) > 14 {
		digits = digits[:14]
	}
	for len(digits) < 14 {
		digits = "0" + digits
	}
	rec.SetField(6, digits)
}

type periodDates struct{ common.RuleInfo }

func (r *periodDates) Validate(rec *common.Record, ctx *common.Context) []common.Issue {
	if !ctx.AppliesToFiscal() || rec.Reg != "0000" {
		return nil
	}
	if len(rec.Fields) < 5 {
		return []common.Issue{common.NewIssue(r, rec,
			"Registro 0000 incompleto (menos de 5 campos)", "Verificar estrutura do registro")}
	}
	start, okStart := common.ParseDate(rec.Field(3))
	end, okEnd := common.ParseDate(rec.Field(4))
	if !okStart || !okEnd {
		return []common.Issue{common.NewIssue(r, rec, "Datas inválidas no 0000", "")}
	}
	if start.After(end) {
		return []common.Issue{common.NewIssue(r, rec, "Data inicial maior que final", "")}
	}
	return nil
}

type duplicateDocument struct{ common.RuleInfo }

//occurrences collects the documents of the same type sharing this record's
//access key.
func (r *duplicateDocument) occurrences(rec *common.Record, ctx *common.Context) []*common.Record {
	key := rec.Field(8)
	var result []*common.Record
	for _, other := range ctx.ByReg(rec.Reg) {
		if other.Field(8) == key {
			result = append(result, other)
		}
	}
	return result
}

func (r *duplicateDocument) Validate(rec *common.Record, ctx *common.Context) []common.Issue {
	if !ctx.AppliesToFiscal() {
		return nil
	}
	if rec.Reg != "C100" && rec.Reg != "C500" {
		return nil
	}
	if rec.Field(8) == "" {
		return nil
	}
	occ := r.occurrences(rec, ctx)
	if len(occ) <= 1 || occ[len(occ)-1] == rec {
		return nil
	}
	return []common.Issue{common.NewIssue(r, rec,
		fmt.Sprintf("Documento %s duplicado", rec.Field(8)),
		"Manter apenas última ocorrência")}
}

func (r *duplicateDocument) Fix(rec *common.Record, ctx *common.Context) {
	if rec.Reg != "C100" && rec.Reg != "C500" {
		return
	}
	if rec.Field(8) == "" {
		return
	}
	occ := r.occurrences(rec, ctx)
	if len(occ) > 1 && occ[len(occ)-1] != rec {
		ctx.Remove(rec)
	}
}

//cfopIndex gives the CFOP position per document record type (the C100
//carries it further right than the item and transport records).
var cfopIndex = map[string]int{
	"C100": 11,
	"C170": 9,
	"D100": 9,
}

//entryPrefixFor maps an exit CFOP prefix to its entry counterpart, and
//exitPrefixFor the inverse.
var entryPrefixFor = map[byte]byte{'5': '1', '6': '2', '7': '3'}
var exitPrefixFor = map[byte]byte{'1': '5', '2': '6', '3': '7'}

type cfopOperation struct{ common.RuleInfo }

func (r *cfopOperation) Validate(rec *common.Record, ctx *common.Context) []common.Issue {
	if !ctx.AppliesToFiscal() {
		return nil
	}
	idx, ok := cfopIndex[rec.Reg]
	if !ok {
		return nil
	}
	if len(rec.Fields) < 3 {
		return []common.Issue{common.NewIssue(r, rec,
			fmt.Sprintf("Registro %s incompleto (menos de 3 campos)", rec.Reg),
			"Verificar estrutura do registro")}
	}
	if idx >= len(rec.Fields) {
		return []common.Issue{common.NewIssue(r, rec,
			fmt.Sprintf("Registro %s incompleto (campo CFOP ausente)", rec.Reg),
			"Verificar estrutura do registro")}
	}
	cfop := rec.Field(idx)
	if cfop == "" {
		return nil
	}
	switch rec.Field(2) {
	case "0": //entrada
		if cfop[0] != '1' && cfop[0] != '2' && cfop[0] != '3' {
			return []common.Issue{common.NewIssue(r, rec,
				fmt.Sprintf("CFOP %s inválido para entrada", cfop), "Ajustar CFOP para entrada")}
		}
	case "1": //saída
		if cfop[0] != '5' && cfop[0] != '6' && cfop[0] != '7' {
			return []common.Issue{common.NewIssue(r, rec,
				fmt.Sprintf("CFOP %s inválido para saída", cfop), "Ajustar CFOP para saída")}
		}
	}
	return nil
}

func (r *cfopOperation) Fix(rec *common.Record, ctx *common.Context) {
	idx, ok := cfopIndex[rec.Reg]
	if !ok || idx >= len(rec.Fields) || len(rec.Fields) < 3 {
		return
	}
	cfop := rec.Field(idx)
	if cfop == "" {
		return
	}
	switch rec.Field(2) {
	case "0":
		if mapped, ok := entryPrefixFor[cfop[0]]; ok {
			rec.SetField(idx, string(mapped)+cfop[1:])
		}
	case "1":
		if mapped, ok := exitPrefixFor[cfop[0]]; ok {
			rec.SetField(idx, string(mapped)+cfop[1:])
		}
	}
}

type simplesNacionalCredit struct{ common.RuleInfo }

//isSimplesNacional reports whether the 0000 record declares the entity as
//Simples Nacional.
func isSimplesNacional(ctx *common.Context) bool {
	for _, r := range ctx.ByReg("0000") {
		if len(r.Fields) > 18 && r.Field(18) == "1" {
			return true
		}
	}
	return false
}

func (r *simplesNacionalCredit) Validate(rec *common.Record, ctx *common.Context) []common.Issue {
	if !ctx.AppliesToFiscal() || rec.Reg != "E110" {
		return nil
	}
	if len(rec.Fields) < 6 {
		return []common.Issue{common.NewIssue(r, rec,
			"Registro E110 incompleto (menos de 6 campos)", "Verificar estrutura do registro")}
	}
	if !isSimplesNacional(ctx) {
		return nil
	}
	credit, ok := common.ParseNumeric(rec.Field(5))
	if !ok || credit.Sign() <= 0 {
		return nil
	}
	return []common.Issue{common.NewIssue(r, rec,
		"Crédito de ICMS para empresa do Simples Nacional", "Zerar valor do crédito")}
}

func (r *simplesNacionalCredit) Fix(rec *common.Record, ctx *common.Context) {
	if rec.Reg != "E110" || len(rec.Fields) < 6 {
		return
	}
	if isSimplesNacional(ctx) {
		rec.SetField(5, "0.00")
	}
}

type debitTotalMismatch struct{ common.RuleInfo }

//outboundICMSTotal sums the ICMS of the outbound C100/C500 documents.
func outboundICMSTotal(ctx *common.Context) decimal.Decimal {
	total := decimal.Zero
	for _, doc := range ctx.Records {
		if doc.Reg != "C100" && doc.Reg != "C500" {
			continue
		}
		if len(doc.Fields) < 15 || doc.Field(2) != "1" {
			continue
		}
		if value, ok := common.ParseNumeric(doc.Field(14)); ok {
			total = total.Add(value)
		}
	}
	return total
}

func (r *debitTotalMismatch) Validate(rec *common.Record, ctx *common.Context) []common.Issue {
	if !ctx.AppliesToFiscal() || rec.Reg != "E200" {
		return nil
	}
	if len(rec.Fields) < 3 {
		return []common.Issue{common.NewIssue(r, rec,
			"Registro E200 incompleto (menos de 3 campos)", "Verificar estrutura do registro")}
	}
	total, _ := common.ParseNumeric(rec.Field(2))
	docsSum := outboundICMSTotal(ctx)
	if common.WithinTolerance(total, docsSum, common.MoneyTolerance) {
		return nil
	}
	return []common.Issue{common.NewIssue(r, rec,
		fmt.Sprintf("Total de débitos (%s) diferente da soma dos documentos (%s)",
			common.FormatMoney(total), common.FormatMoney(docsSum)),
		"Ajustar total de débitos")}
}

func (r *debitTotalMismatch) Fix(rec *common.Record, ctx *common.Context) {
	if rec.Reg != "E200" || len(rec.Fields) < 3 {
		return
	}
	rec.SetField(2, common.FormatMoney(outboundICMSTotal(ctx)))
}

type blockCVsBlockE struct{ common.RuleInfo }

func (r *blockCVsBlockE) Validate(rec *common.Record, ctx *common.Context) []common.Issue {
	if !ctx.AppliesToFiscal() || rec.Reg != "E110" {
		return nil
	}
	totalC190 := decimal.Zero
	for _, c190 := range ctx.ByReg("C190") {
		if value, ok := common.ParseNumeric(c190.Field(6)); ok {
			totalC190 = totalC190.Add(value)
		}
	}
	debits, _ := common.ParseNumeric(rec.Field(1))
	credits, _ := common.ParseNumeric(rec.Field(5))
	totalE110 := debits.Add(credits)
	if common.WithinTolerance(totalC190, totalE110, common.MoneyTolerance) {
		return nil
	}
	return []common.Issue{common.NewIssue(r, rec,
		fmt.Sprintf("Divergência de ICMS: Bloco C (R$ %s) vs Bloco E (R$ %s)",
			common.FormatMoney(totalC190), common.FormatMoney(totalE110)),
		"Verificar registros C100/C170 com valores de ICMS divergentes")}
}

type itemsVsDocument struct{ common.RuleInfo }

func (r *itemsVsDocument) Validate(rec *common.Record, ctx *common.Context) []common.Issue {
	if !ctx.AppliesToFiscal() || rec.Reg != "C100" {
		return nil
	}
	itemsTotal := decimal.Zero
	hasItems := false
	for _, item := range ctx.ByReg("C170") {
		if item.Parent != rec {
			continue
		}
		hasItems = true
		if value, ok := common.ParseNumeric(item.Field(6)); ok {
			itemsTotal = itemsTotal.Add(value)
		}
	}
	if !hasItems {
		return nil
	}
	vlMerc, _ := common.ParseNumeric(rec.Field(15))
	if common.WithinTolerance(itemsTotal, vlMerc, common.MoneyTolerance) {
		return nil
	}
	return []common.Issue{common.NewIssue(r, rec,
		fmt.Sprintf("Soma de itens (R$ %s) diverge do total das mercadorias (R$ %s)",
			common.FormatMoney(itemsTotal), common.FormatMoney(vlMerc)),
		"Verificar itens C170 com valores incorretos")}
}

//C170 PIS/COFINS column layout.
const (
	c170CSTPis      = 29
	c170AliqPis     = 30
	c170ValuePis    = 31
	c170CSTCofins   = 32
	c170AliqCofins  = 33
	c170ValueCofins = 34
)

//nonIncidenceCST is the CST range (50-56) that forbids any PIS/COFINS
//credit value.
var nonIncidenceCST = map[string]bool{
	"50": true, "51": true, "52": true, "53": true, "54": true, "55": true, "56": true,
}

type pisCofinsFiscal struct{ common.RuleInfo }

func (r *pisCofinsFiscal) Validate(rec *common.Record, ctx *common.Context) []common.Issue {
	if !ctx.AppliesToFiscal() || rec.Reg != "C170" {
		return nil
	}
	var issues []common.Issue

	cstPis := rec.Field(c170CSTPis)
	if cstPis != "" && !common.IsFiscalCST(cstPis) {
		issues = append(issues, common.NewIssue(r, rec,
			fmt.Sprintf("CST PIS %s inválido para SPED Fiscal", cstPis),
			"Ajustar para CST válido (50-75)"))
	}
	cstCofins := rec.Field(c170CSTCofins)
	if cstCofins != "" && !common.IsFiscalCST(cstCofins) {
		issues = append(issues, common.NewIssue(r, rec,
			fmt.Sprintf("CST COFINS %s inválido para SPED Fiscal", cstCofins),
			"Ajustar para CST válido (50-75)"))
	}

	if nonIncidenceCST[cstPis] {
		if value, ok := common.ParseNumeric(rec.Field(c170ValuePis)); ok && !value.IsZero() {
			issues = append(issues, common.NewIssue(r, rec,
				fmt.Sprintf("Valor crédito PIS (%s) deve ser zero para CST %s", rec.Field(c170ValuePis), cstPis),
				"Zerar valor do crédito"))
		}
	}
	if nonIncidenceCST[cstCofins] {
		if value, ok := common.ParseNumeric(rec.Field(c170ValueCofins)); ok && !value.IsZero() {
			issues = append(issues, common.NewIssue(r, rec,
				fmt.Sprintf("Valor crédito COFINS (%s) deve ser zero para CST %s", rec.Field(c170ValueCofins), cstCofins),
				"Zerar valor do crédito"))
		}
	}
	return issues
}

func (r *pisCofinsFiscal) Fix(rec *common.Record, ctx *common.Context) {
	if rec.Reg != "C170" {
		return
	}
	cstPis := rec.Field(c170CSTPis)
	if cstPis != "" && !common.IsFiscalCST(cstPis) {
		cstPis = "50"
		rec.SetField(c170CSTPis, cstPis)
	}
	cstCofins := rec.Field(c170CSTCofins)
	if cstCofins != "" && !common.IsFiscalCST(cstCofins) {
		cstCofins = "50"
		rec.SetField(c170CSTCofins, cstCofins)
	}
	if nonIncidenceCST[cstPis] {
		if value, ok := common.ParseNumeric(rec.Field(c170ValuePis)); ok && !value.IsZero() {
			rec.SetField(c170ValuePis, "0.00")
		}
	}
	if nonIncidenceCST[cstCofins] {
		if value, ok := common.ParseNumeric(rec.Field(c170ValueCofins)); ok && !value.IsZero() {
			rec.SetField(c170ValueCofins, "0.00")
		}
	}
}
