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
	"strings"
	"testing"
)

//c100Doc builds a C100 whose access key sits at field 8.
func c100Doc(key string) string {
	fields := make([]string, 16)
	fields[0] = "C100"
	fields[8] = key
	return "|" + strings.Join(fields, "|") + "|\n"
}

//c170Item builds a C170 with the item code at field 2 and the value at
//field 6.
func c170Item(code, value string) string {
	fields := make([]string, 8)
	fields[0] = "C170"
	fields[2] = code
	fields[6] = value
	return "|" + strings.Join(fields, "|") + "|\n"
}

func TestDuplicateDocumentItem(t *testing.T) {
	input := c100Doc("NFE1") +
		c170Item("A10", "100,00") +
		c170Item("A10", "100,00")
	ctx := fiscalContext(input)
	rule := ruleByID(t, "RC170")

	issues := runRule(t, rule, ctx)
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(issues))
	}
	//the first occurrence is the duplicate; the last one survives
	if issues[0].LineNo != 2 {
		t.Errorf("the issue should point at the first occurrence, got line %d", issues[0].LineNo)
	}
	if got := len(ctx.ByReg("C170")); got != 1 {
		t.Fatalf("got %d C170 records after fix, want 1", got)
	}
	//re-running produces no issues
	if issues := runRule(t, rule, ctx); len(issues) != 0 {
		t.Errorf("rule is not idempotent: %v", issues)
	}
}

func TestDuplicateDocumentItemDistinguishesDocuments(t *testing.T) {
	//the same item code and value under different documents is no duplicate
	input := c100Doc("NFE1") + c170Item("A10", "100,00") +
		c100Doc("NFE2") + c170Item("A10", "100,00")
	ctx := fiscalContext(input)
	if issues := runRule(t, ruleByID(t, "RC170"), ctx); len(issues) != 0 {
		t.Errorf("got %v, want no issues", issues)
	}
	//different normalized values under the same document differ as well
	input = c100Doc("NFE1") + c170Item("A10", "100,00") + c170Item("A10", "100,01")
	ctx = fiscalContext(input)
	if issues := runRule(t, ruleByID(t, "RC170"), ctx); len(issues) != 0 {
		t.Errorf("got %v, want no issues", issues)
	}
}

func TestDuplicateDocumentItemNormalizesValues(t *testing.T) {
	//"1.234,56" and "1234.56" are the same amount in different notations
	input := c100Doc("NFE1") + c170Item("A10", "1.234,56") + c170Item("A10", "1234.56")
	ctx := fiscalContext(input)
	issues := runRule(t, ruleByID(t, "RC170"), ctx)
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(issues))
	}
}

//c800Cupom builds a C800 with COD_SIT at 2, the cupom identity at 3..5 and
//the totals VL_CFE / VL_ICMS at 6 and 8.
func c800Cupom(codSit, vlCfe, vlICMS string) string {
	fields := make([]string, 10)
	fields[0] = "C800"
	fields[1] = "59"
	fields[2] = codSit
	fields[3] = "123"
	fields[4] = "900004510"
	fields[5] = "01012024"
	fields[6] = vlCfe
	fields[8] = vlICMS
	return "|" + strings.Join(fields, "|") + "|\n"
}

//c850Item builds a C850 with CST/CFOP/ALIQ at 1..3 and VL_OPR / VL_ICMS at
//4 and 6.
func c850Item(cst, cfop, aliq, vlOpr, vlICMS string) string {
	fields := make([]string, 8)
	fields[0] = "C850"
	fields[1] = cst
	fields[2] = cfop
	fields[3] = aliq
	fields[4] = vlOpr
	fields[6] = vlICMS
	return "|" + strings.Join(fields, "|") + "|\n"
}

func TestCupomCancelledMayNotHaveItems(t *testing.T) {
	input := c800Cupom("02", "100,00", "18,00") + c850Item("000", "5102", "18,00", "100,00", "18,00")
	ctx := fiscalContext(input)
	rule := ruleByID(t, "RC850")
	issues := runRule(t, rule, ctx)

	found := false
	for _, issue := range issues {
		if strings.Contains(issue.Message, "cancelado") {
			found = true
		}
	}
	if !found {
		t.Fatalf("a cancelled cupom with items should be flagged, got %v", issues)
	}
	if got := len(ctx.ByReg("C850")); got != 0 {
		t.Errorf("got %d C850 records after fix, want 0", got)
	}
}

func TestCupomDuplicateItemKeepsLast(t *testing.T) {
	input := c800Cupom("00", "200,00", "36,00") +
		c850Item("000", "5102", "18,00", "100,00", "18,00") +
		c850Item("000", "5102", "18,00", "100,00", "18,00")
	ctx := fiscalContext(input)
	issues := runRule(t, ruleByID(t, "RC850"), ctx)

	duplicates := 0
	for _, issue := range issues {
		if strings.Contains(issue.Message, "Duplicidade") {
			duplicates++
		}
	}
	if duplicates != 1 {
		t.Fatalf("got %d duplicate issues, want 1: %v", duplicates, issues)
	}
	if got := len(ctx.ByReg("C850")); got != 1 {
		t.Errorf("got %d C850 records after fix, want 1", got)
	}
}

func TestCupomTotalsMustClose(t *testing.T) {
	//VL_OPR sums to 150 but the cupom declares 200; VL_ICMS closes fine
	input := c800Cupom("00", "200,00", "27,00") +
		c850Item("000", "5102", "18,00", "100,00", "18,00") +
		c850Item("000", "5405", "12,00", "50,00", "9,00")
	ctx := fiscalContext(input)
	issues := runRule(t, ruleByID(t, "RC850"), ctx)

	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1: %v", len(issues), issues)
	}
	issue := issues[0]
	if issue.Reg != "C800" || !strings.Contains(issue.Message, "VL_OPR") {
		t.Errorf("the sum issue should anchor at the C800, got %+v", issue)
	}
}

func TestCupomTotalsClose(t *testing.T) {
	input := c800Cupom("00", "150,00", "27,00") +
		c850Item("000", "5102", "18,00", "100,00", "18,00") +
		c850Item("000", "5405", "12,00", "50,00", "9,00")
	ctx := fiscalContext(input)
	if issues := runRule(t, ruleByID(t, "RC850"), ctx); len(issues) != 0 {
		t.Errorf("got %v, want no issues", issues)
	}
}
