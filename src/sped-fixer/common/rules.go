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
	"fmt"
	"strings"
	"unicode"
)

//Rules returns the rule set that applies to every SPED flavour, in declared
//order. Rule-major execution makes this order part of the engine contract.
func Rules() []Rule {
	return []Rule{
		&firstRecordHeader{RuleInfo{"R001", "Registro 0000 deve existir como primeira linha", SeverityError, false}},
		&layoutVersion{RuleInfo{"R002", "Campo versão do layout no 0000 deve estar presente", SeverityError, false}},
		&ieFormat{RuleInfo{"R004", "IE deve conter somente dígitos (quando informada)", SeverityWarn, true}},
		&excessSpaces{RuleInfo{"R006", "Campos não devem ter espaços em excesso", SeverityWarn, true}},
		&duplicateCadastro{RuleInfo{"R007", "Remove registros 0150 com CNPJ duplicado", SeverityError, true}},
		&orphanedCadastro{RuleInfo{"R008", "Remove cadastros 0150 sem referência em documentos", SeverityError, true}},
		&invalidIE{RuleInfo{"R009", "IE do cadastro deve conter somente dígitos", SeverityWarn, true}},
		&numericFormat{RuleInfo{"R028", "Corrige formatação de campos numéricos", SeverityError, true}},
		&emptyBlocks{RuleInfo{"R031", "Remove abertura de bloco declarado com movimento mas vazio", SeverityWarn, true}},
		&cnpjNameMismatch{RuleInfo{"R032", "Corrige CNPJ quando o campo contém nome em vez de número", SeverityError, true}},
		&ieNameMismatch{RuleInfo{"R033", "Corrige IE quando o campo contém nome em vez de número", SeverityWarn, true}},
		&emptyCNPJ{RuleInfo{"R034", "CNPJ vazio no registro 0000", SeverityError, false}},
		&header0000Width{RuleInfo{"R035", "Corrige estrutura do registro 0000", SeverityError, true}},
		&header0000Mandatory{RuleInfo{"R036", "Verifica campos obrigatórios do registro 0000", SeverityError, false}},
		&cfopFormat{RuleInfo{"R107", "CFOP com formatação inválida", SeverityError, true}},
	}
}

//looksLikeName reports whether a field that should hold an identifier looks
//like a misplaced person or company name.
func looksLikeName(s string) bool {
	hasAlpha := false
	for _, c := range s {
		if unicode.IsLetter(c) {
			hasAlpha = true
			break
		}
	}
	return hasAlpha && strings.Contains(s, " ")
}

//allDigits reports whether a non-empty string consists of digits only.
func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

type firstRecordHeader struct{ RuleInfo }

func (r *firstRecordHeader) Validate(rec *Record, ctx *Context) []Issue {
	if rec.LineNo != 1 || rec.Reg == "0000" {
		return nil
	}
	return []Issue{NewIssue(r, rec, "Primeira linha não é 0000", "")}
}

type layoutVersion struct{ RuleInfo }

func (r *layoutVersion) Validate(rec *Record, ctx *Context) []Issue {
	if rec.Reg != "0000" {
		return nil
	}
	if strings.TrimSpace(rec.Field(1)) != "" {
		return nil
	}
	return []Issue{NewIssue(r, rec, "Versão do layout ausente no 0000", "")}
}

//ieFieldIndex gives the position of the Inscrição Estadual per record type.
//The 0000 is deliberately absent: its field 6 holds the CNPJ (owned by R003
//and R032), and its IE at field 9 is covered by the mandatory-field checks.
var ieFieldIndex = map[string]int{
	"0100": 2,
	"C100": 2,
	"0150": 2,
}

type ieFormat struct{ RuleInfo }

func (r *ieFormat) Validate(rec *Record, ctx *Context) []Issue {
	idx, ok := ieFieldIndex[rec.Reg]
	if !ok {
		return nil
	}
	ie := rec.Field(idx)
	if ie == "" || ie == OnlyDigits(ie) {
		return nil
	}
	return []Issue{NewIssue(r, rec,
		fmt.Sprintf("IE %s com caracteres inválidos", ie), "Remover não-dígitos")}
}

func (r *ieFormat) Fix(rec *Record, ctx *Context) {
	idx, ok := ieFieldIndex[rec.Reg]
	if !ok {
		return
	}
	if ie := rec.Field(idx); ie != "" {
		rec.SetField(idx, OnlyDigits(ie))
	}
}

type excessSpaces struct{ RuleInfo }

func (r *excessSpaces) Validate(rec *Record, ctx *Context) []Issue {
	for _, f := range rec.Fields {
		if f != strings.TrimSpace(f) {
			return []Issue{NewIssue(r, rec, "Espaços extras nos campos", "Aplicar strip")}
		}
	}
	return nil
}

func (r *excessSpaces) Fix(rec *Record, ctx *Context) {
	for i, f := range rec.Fields {
		rec.Fields[i] = strings.TrimSpace(f)
	}
}

type duplicateCadastro struct{ RuleInfo }

//occurrences collects the 0150 records sharing this record's CNPJ.
func (r *duplicateCadastro) occurrences(rec *Record, ctx *Context) []*Record {
	cnpj := OnlyDigits(rec.Field(1))
	var result []*Record
	for _, other := range ctx.ByReg("0150") {
		if OnlyDigits(other.Field(1)) == cnpj {
			result = append(result, other)
		}
	}
	return result
}

func (r *duplicateCadastro) Validate(rec *Record, ctx *Context) []Issue {
	if rec.Reg != "0150" {
		return nil
	}
	occ := r.occurrences(rec, ctx)
	if len(occ) <= 1 || occ[len(occ)-1] == rec {
		return nil
	}
	return []Issue{NewIssue(r, rec,
		fmt.Sprintf("CNPJ %s duplicado", OnlyDigits(rec.Field(1))),
		"Manter apenas última ocorrência")}
}

func (r *duplicateCadastro) Fix(rec *Record, ctx *Context) {
	if rec.Reg != "0150" {
		return
	}
	occ := r.occurrences(rec, ctx)
	if len(occ) > 1 && occ[len(occ)-1] != rec {
		ctx.Remove(rec)
	}
}

type orphanedCadastro struct{ RuleInfo }

//referenced reports whether any document points at this cadastro's CNPJ.
func (r *orphanedCadastro) referenced(rec *Record, ctx *Context) bool {
	cnpj := OnlyDigits(rec.Field(1))
	for _, doc := range ctx.Records {
		switch doc.Reg {
		case "C100", "C500", "D100":
			if len(doc.Fields) > 9 && OnlyDigits(doc.Field(9)) == cnpj {
				return true
			}
		}
	}
	return false
}

func (r *orphanedCadastro) Validate(rec *Record, ctx *Context) []Issue {
	if rec.Reg != "0150" {
		return nil
	}
	if len(rec.Fields) < 2 {
		return []Issue{NewIssue(r, rec,
			"Registro 0150 incompleto (menos de 2 campos)", "Verificar estrutura do registro")}
	}
	if r.referenced(rec, ctx) {
		return nil
	}
	return []Issue{NewIssue(r, rec,
		fmt.Sprintf("Cadastro 0150 CNPJ %s não referenciado", OnlyDigits(rec.Field(1))),
		"Remover cadastro órfão")}
}

func (r *orphanedCadastro) Fix(rec *Record, ctx *Context) {
	if rec.Reg != "0150" || len(rec.Fields) < 2 {
		return
	}
	if !r.referenced(rec, ctx) {
		ctx.Remove(rec)
	}
}

//cadastroIEIndex gives the IE position for the cadastro record types checked
//by R009 and R033 (0150 carries the IE further right than the 0190 unit
//record).
var cadastroIEIndex = map[string]int{
	"0150": 6,
	"0190": 2,
}

type invalidIE struct{ RuleInfo }

func (r *invalidIE) Validate(rec *Record, ctx *Context) []Issue {
	idx, ok := cadastroIEIndex[rec.Reg]
	if !ok {
		return nil
	}
	ie := rec.Field(idx)
	if ie == "" || ie == OnlyDigits(ie) {
		return nil
	}
	return []Issue{NewIssue(r, rec,
		fmt.Sprintf("IE %s com caracteres inválidos", ie), "Remover não-dígitos")}
}

func (r *invalidIE) Fix(rec *Record, ctx *Context) {
	idx, ok := cadastroIEIndex[rec.Reg]
	if !ok {
		return
	}
	if ie := rec.Field(idx); ie != "" {
		rec.SetField(idx, OnlyDigits(ie))
	}
}

//numericFieldIndexes lists the positions that must hold numbers, per record
//type.
var numericFieldIndexes = map[string][]int{
	"C100": {10, 11, 12, 13, 14},
	"C170": {6, 7, 8, 9, 10},
	"H020": {2, 3, 4},
}

type numericFormat struct{ RuleInfo }

func (r *numericFormat) Validate(rec *Record, ctx *Context) []Issue {
	indexes, ok := numericFieldIndexes[rec.Reg]
	if !ok {
		return nil
	}
	var issues []Issue
	for _, idx := range indexes {
		value := rec.Field(idx)
		if value == "" {
			continue
		}
		if _, ok := ParseNumeric(value); !ok {
			issues = append(issues, NewIssue(r, rec,
				fmt.Sprintf("Campo %d com formato inválido: %s", idx, value),
				"Converter para formato numérico"))
		}
	}
	return issues
}

func (r *numericFormat) Fix(rec *Record, ctx *Context) {
	indexes, ok := numericFieldIndexes[rec.Reg]
	if !ok {
		return
	}
	for _, idx := range indexes {
		value := rec.Field(idx)
		if value == "" {
			continue
		}
		if _, ok := ParseNumeric(value); ok {
			continue
		}
		if OnlyDigits(value) == "" {
			//nothing numeric to salvage
			continue
		}
		//a letter O typed in place of a zero is read as the digit
		value = strings.NewReplacer("O", "0", "o", "0").Replace(value)
		rec.SetField(idx, FormatMoney(ParseNumericLoose(value)))
	}
}

type emptyBlocks struct{ RuleInfo }

//blockIsEmpty reports whether the block holds nothing besides its opener and
//closer.
func blockIsEmpty(opener *Record, ctx *Context) bool {
	block := opener.Block()
	closer := block + "990"
	for _, other := range ctx.Records {
		if other == opener || other.Block() != block {
			continue
		}
		if other.Reg == closer {
			continue
		}
		return false
	}
	return true
}

func (r *emptyBlocks) Validate(rec *Record, ctx *Context) []Issue {
	switch rec.Reg {
	case "C001", "D001", "H001":
	default:
		return nil
	}
	if rec.Field(1) != "0" || !blockIsEmpty(rec, ctx) {
		return nil
	}
	return []Issue{NewIssue(r, rec,
		fmt.Sprintf("Bloco %s declarado com movimento mas sem registros", rec.Block()),
		"Remover bloco")}
}

func (r *emptyBlocks) Fix(rec *Record, ctx *Context) {
	switch rec.Reg {
	case "C001", "D001", "H001":
	default:
		return
	}
	if rec.Field(1) == "0" && blockIsEmpty(rec, ctx) {
		ctx.Remove(rec)
	}
}

type cnpjNameMismatch struct{ RuleInfo }

func (r *cnpjNameMismatch) Validate(rec *Record, ctx *Context) []Issue {
	if rec.Reg != "0000" || len(rec.Fields) < 7 {
		return nil
	}
	if !looksLikeName(rec.Field(6)) {
		return nil
	}
	return []Issue{NewIssue(r, rec,
		fmt.Sprintf("CNPJ parece ser um nome: %s", rec.Field(6)),
		"Remover nome ou verificar CNPJ correto")}
}

func (r *cnpjNameMismatch) Fix(rec *Record, ctx *Context) {
	if rec.Reg != "0000" || len(rec.Fields) < 7 {
		return
	}
	value := rec.Field(6)
	if !looksLikeName(value) {
		return
	}
	digits := OnlyDigits(value)
	switch {
	case len(digits) == 14, len(digits) == 11:
		//a complete CNPJ or CPF was buried in the text
		rec.SetField(6, digits)
	case digits == "":
		rec.SetField(6, "")
	default:
		rec.SetField(6, leftPadZeros(digits, 14))
	}
}

//leftPadZeros pads a digit string to the given width.
func leftPadZeros(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}

type ieNameMismatch struct{ RuleInfo }

func (r *ieNameMismatch) Validate(rec *Record, ctx *Context) []Issue {
	idx, ok := cadastroIEIndex[rec.Reg]
	if !ok {
		return nil
	}
	if !looksLikeName(rec.Field(idx)) {
		return nil
	}
	return []Issue{NewIssue(r, rec,
		fmt.Sprintf("IE %s com caracteres inválidos", rec.Field(idx)),
		"Remover não-dígitos")}
}

func (r *ieNameMismatch) Fix(rec *Record, ctx *Context) {
	idx, ok := cadastroIEIndex[rec.Reg]
	if !ok {
		return
	}
	if looksLikeName(rec.Field(idx)) {
		rec.SetField(idx, OnlyDigits(rec.Field(idx)))
	}
}

type emptyCNPJ struct{ RuleInfo }

func (r *emptyCNPJ) Validate(rec *Record, ctx *Context) []Issue {
	if rec.Reg != "0000" || len(rec.Fields) < 7 {
		return nil
	}
	if strings.TrimSpace(rec.Field(6)) != "" {
		return nil
	}
	return []Issue{NewIssue(r, rec,
		"CNPJ vazio no registro 0000", "Preencher CNPJ corretamente")}
}

//header0000FieldCount is the canonical field count of the 0000 record, the record
//type code included.
const header0000FieldCount = 15

type header0000Width struct{ RuleInfo }

func (r *header0000Width) Validate(rec *Record, ctx *Context) []Issue {
	if rec.Reg != "0000" || len(rec.Fields) <= header0000FieldCount {
		return nil
	}
	return []Issue{NewIssue(r, rec,
		fmt.Sprintf("Registro 0000 com %d campos (deveria ter %d)", len(rec.Fields), header0000FieldCount),
		"Remover campos extras")}
}

func (r *header0000Width) Fix(rec *Record, ctx *Context) {
	if rec.Reg == "0000" && len(rec.Fields) > header0000FieldCount {
		rec.Fields = rec.Fields[:header0000FieldCount]
	}
}

//header0000MandatoryFields maps mandatory 0000 positions to their layout
//names.
var header0000MandatoryFields = map[int]string{
	1:  "COD_VER",
	2:  "COD_FIN",
	3:  "DT_INI",
	4:  "DT_FIN",
	5:  "NOME",
	8:  "UF",
	9:  "IE",
	10: "COD_MUN",
	13: "IND_PERFIL",
	14: "IND_ATIV",
}

//header0000MandatoryOrder fixes the reporting order of the map above.
var header0000MandatoryOrder = []int{1, 2, 3, 4, 5, 8, 9, 10, 13, 14}

type header0000Mandatory struct{ RuleInfo }

func (r *header0000Mandatory) Validate(rec *Record, ctx *Context) []Issue {
	if rec.Reg != "0000" {
		return nil
	}
	if len(rec.Fields) < header0000FieldCount {
		return []Issue{NewIssue(r, rec,
			fmt.Sprintf("Registro 0000 incompleto (%d campos, deveria ter %d)", len(rec.Fields), header0000FieldCount),
			"Completar campos obrigatórios")}
	}

	var issues []Issue
	for _, idx := range header0000MandatoryOrder {
		if strings.TrimSpace(rec.Field(idx)) == "" {
			name := header0000MandatoryFields[idx]
			issues = append(issues, NewIssue(r, rec,
				fmt.Sprintf("Campo obrigatório %s vazio", name),
				fmt.Sprintf("Preencher campo %s", name)))
		}
	}

	cnpj := rec.Field(6)
	cpf := rec.Field(7)
	if cnpj == "" && cpf == "" {
		issues = append(issues, NewIssue(r, rec, "CNPJ e CPF vazios", "Informar CNPJ ou CPF"))
	}
	if cnpj != "" && cpf != "" {
		issues = append(issues, NewIssue(r, rec,
			"CNPJ e CPF preenchidos (deve ser apenas um)", "Informar apenas CNPJ ou CPF"))
	}
	if cpf != "" && rec.Field(14) != "1" {
		issues = append(issues, NewIssue(r, rec,
			fmt.Sprintf("IND_ATIV deve ser '1' quando CPF é informado (valor: %s)", rec.Field(14)),
			"Alterar IND_ATIV para '1'"))
	}
	switch rec.Field(13) {
	case "A", "B", "C":
	default:
		issues = append(issues, NewIssue(r, rec,
			fmt.Sprintf("IND_PERFIL inválido: %s (deve ser A, B ou C)", rec.Field(13)),
			"Corrigir IND_PERFIL para valor válido"))
	}
	switch rec.Field(2) {
	case "0", "1":
	default:
		issues = append(issues, NewIssue(r, rec,
			fmt.Sprintf("COD_FIN inválido: %s (deve ser 0 ou 1)", rec.Field(2)),
			"Corrigir COD_FIN para valor válido"))
	}
	return issues
}

//cfopFieldIndex gives the CFOP position per document record type.
var cfopFieldIndex = map[string]int{
	"C100": 11,
	"C170": 9,
	"D100": 9,
}

type cfopFormat struct{ RuleInfo }

func (r *cfopFormat) Validate(rec *Record, ctx *Context) []Issue {
	idx, ok := cfopFieldIndex[rec.Reg]
	if !ok {
		return nil
	}
	cfop := rec.Field(idx)
	if cfop == "" || allDigits(cfop) {
		return nil
	}
	return []Issue{NewIssue(r, rec,
		fmt.Sprintf("CFOP %s com formatação inválida", cfop),
		"Remover caracteres não numéricos")}
}

func (r *cfopFormat) Fix(rec *Record, ctx *Context) {
	idx, ok := cfopFieldIndex[rec.Reg]
	if !ok {
		return
	}
	cfop := rec.Field(idx)
	if cfop == "" || allDigits(cfop) {
		return
	}
	if digits := OnlyDigits(cfop); digits != "" {
		rec.SetField(idx, digits)
	}
}
