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

//h010Item builds an H010 with the canonical column layout.
func h010Item(code, unit, qty, unitValue, itemValue, indProp string) string {
	fields := []string{"H010", code, unit, qty, unitValue, itemValue, indProp, ""}
	return "|" + strings.Join(fields, "|") + "|\n"
}

func TestInventoryValueMismatch(t *testing.T) {
	input := "|H005|500,00|31122023|01|\n" +
		h010Item("A10", "UN", "1,000", "100,00", "100,00", "0") +
		h010Item("B20", "UN", "1,000", "150,00", "150,00", "0")
	ctx := fiscalContext(input)
	rule := ruleByID(t, "R014")

	issues := runRule(t, rule, ctx)
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(issues))
	}
	if issues[0].Reg != "H005" {
		t.Errorf("the issue should anchor at the H005, got %q", issues[0].Reg)
	}
	if got := ctx.First("H005").Field(1); got != "250.00" {
		t.Errorf("got VL_INV %q after fix, want \"250.00\"", got)
	}
	if issues := runRule(t, rule, ctx); len(issues) != 0 {
		t.Errorf("rule is not idempotent: %v", issues)
	}
}

func TestInventoryItemWithoutProduct(t *testing.T) {
	input := "|0200|A10|PRODUTO A|AAA|UN|\n" +
		"|H020|A10|50,00|9,00|\n" +
		"|H020|Z99|10,00|1,80|\n"
	ctx := fiscalContext(input)
	issues := runRule(t, ruleByID(t, "R013"), ctx)
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(issues))
	}
	survivors := ctx.ByReg("H020")
	if len(survivors) != 1 || survivors[0].Field(1) != "A10" {
		t.Errorf("only the registered item should survive")
	}
}

func TestInventoryOpeningIndMov(t *testing.T) {
	//an invalid IND_MOV is flagged and derived from the block content
	ctx := fiscalContext("|H001|X|\n|H005|100,00|31122023|01|\n|H990|3|\n")
	rule := ruleByID(t, "RH001")
	issues := runRule(t, rule, ctx)
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1: %v", len(issues), issues)
	}
	if got := ctx.First("H001").Field(1); got != "0" {
		t.Errorf("got IND_MOV %q after fix, want \"0\" (block has data)", got)
	}

	ctx = fiscalContext("|H001|X|\n|H990|2|\n")
	runRule(t, rule, ctx)
	if got := ctx.First("H001").Field(1); got != "1" {
		t.Errorf("got IND_MOV %q after fix, want \"1\" (block is empty)", got)
	}
}

func TestInventoryOpeningFebruaryRestatement(t *testing.T) {
	header := "|0000|017|0|01022024|29022024|ACME|\n"

	//February period without the year-end inventory restated
	ctx := fiscalContext(header + "|H001|0|\n|H005|100,00|31012024|02|\n|H990|3|\n")
	issues := runRule(t, ruleByID(t, "RH001"), ctx)
	if len(issues) != 1 || !strings.Contains(issues[0].Message, "fevereiro") {
		t.Fatalf("got %v, want the February restatement warning", issues)
	}

	//with DT_INV=31/12 of the previous year and MOT_INV=01 all is well
	ctx = fiscalContext(header + "|H001|0|\n|H005|100,00|31122023|01|\n|H990|3|\n")
	if issues := runRule(t, ruleByID(t, "RH001"), ctx); len(issues) != 0 {
		t.Errorf("got %v, want no issues", issues)
	}
}

func TestInventoryTotalsDateAndMotive(t *testing.T) {
	header := "|0000|017|0|01012024|31012024|ACME|\n"

	//DT_INV beyond the period end
	ctx := fiscalContext(header + "|H005|100,00|15022024|01|\n")
	issues := runRule(t, ruleByID(t, "RH005"), ctx)
	if len(issues) != 1 || !strings.Contains(issues[0].Message, "maior que a data final") {
		t.Fatalf("got %v, want the date range issue", issues)
	}

	//an end-of-period inventory presented too late
	ctx = fiscalContext(header + "|H005|100,00|30092023|01|\n")
	issues = runRule(t, ruleByID(t, "RH005"), ctx)
	if len(issues) != 1 || !strings.Contains(issues[0].Message, "2º mês subsequente") {
		t.Fatalf("got %v, want the presentation window issue", issues)
	}

	//an invalid motive is snapped to 01
	ctx = fiscalContext(header + "|H005|100,00|31122023|99|\n")
	issues = runRule(t, ruleByID(t, "RH005"), ctx)
	if len(issues) != 1 {
		t.Fatalf("got %v, want the motive issue", issues)
	}
	if got := ctx.First("H005").Field(3); got != "01" {
		t.Errorf("got MOT_INV %q after fix, want \"01\"", got)
	}

	//substituição tributária demands the H030 complement
	ctx = fiscalContext(header + "|H005|100,00|31122023|06|\n")
	issues = runRule(t, ruleByID(t, "RH005"), ctx)
	if len(issues) != 1 || !strings.Contains(issues[0].Message, "H030") {
		t.Fatalf("got %v, want the missing H030 issue", issues)
	}
	ctx = fiscalContext(header + "|H005|100,00|31122023|06|\n|H030|1,00|2,00|3,00|4,00|\n")
	if issues := runRule(t, ruleByID(t, "RH005"), ctx); len(issues) != 0 {
		t.Errorf("got %v, want no issues with the H030 present", issues)
	}
}

func TestInventoryItemsChecks(t *testing.T) {
	registry := "|0200|A10|PRODUTO A|AAA|UN|\n|0150|11222333000181|FORN A|P001|\n"

	//a fully consistent item
	ctx := fiscalContext(registry + h010Item("A10", "UN", "1,000", "100,00", "100,00", "0"))
	if issues := runRule(t, ruleByID(t, "RH010"), ctx); len(issues) != 0 {
		t.Fatalf("valid item flagged: %v", issues)
	}

	//unregistered item, unit mismatch, negative quantity
	ctx = fiscalContext(registry + h010Item("Z99", "KG", "-1,000", "100,00", "100,00", "0"))
	issues := runRule(t, ruleByID(t, "RH010"), ctx)
	if len(issues) != 3 {
		t.Fatalf("got %d issues, want 3: %v", len(issues), issues)
	}
	if got := ctx.First("H010").Field(3); got != "1.000" {
		t.Errorf("got QTD %q after fix, want \"1.000\"", got)
	}

	//third-party stock needs a registered partner
	ctx = fiscalContext(registry + h010Item("A10", "UN", "1,000", "100,00", "100,00", "1"))
	issues = runRule(t, ruleByID(t, "RH010"), ctx)
	if len(issues) != 1 || !strings.Contains(issues[0].Message, "COD_PART") {
		t.Fatalf("got %v, want the missing COD_PART issue", issues)
	}
}

func TestInventoryClosingCount(t *testing.T) {
	ctx := fiscalContext("|H001|0|\n|H005|100,00|31122023|01|\n|H990|9|\n")
	rule := ruleByID(t, "RH990")
	issues := runRule(t, rule, ctx)
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(issues))
	}
	if got := ctx.First("H990").Field(1); got != "3" {
		t.Errorf("got QTD_LIN_H %q after fix, want \"3\"", got)
	}
	if issues := runRule(t, rule, ctx); len(issues) != 0 {
		t.Errorf("rule is not idempotent: %v", issues)
	}
}

func TestInventoryBlockInvariants(t *testing.T) {
	rule := ruleByID(t, "RHBLOCK")

	//IND_MOV=1 but the block carries data
	ctx := fiscalContext("|H001|1|\n|H005|100,00|31122023|01|\n|H990|3|\n")
	issues := runRule(t, rule, ctx)
	if len(issues) != 1 || !strings.Contains(issues[0].Message, "IND_MOV=1") {
		t.Fatalf("got %v, want the IND_MOV=1 issue", issues)
	}

	//IND_MOV=0 but only opener and closer exist
	ctx = fiscalContext("|H001|0|\n|H990|2|\n")
	issues = runRule(t, rule, ctx)
	if len(issues) != 2 {
		t.Fatalf("got %d issues, want 2 (no data, no H005): %v", len(issues), issues)
	}

	//a valued inventory without H010 detail
	ctx = fiscalContext("|H001|0|\n|H005|100,00|31122023|01|\n|H990|3|\n")
	issues = runRule(t, rule, ctx)
	if len(issues) != 1 || !strings.Contains(issues[0].Message, "H010") {
		t.Fatalf("got %v, want the missing H010 issue", issues)
	}

	//the closer is mandatory
	ctx = fiscalContext("|H001|0|\n|H005|100,00|31122023|01|\n")
	issues = runRule(t, rule, ctx)
	if len(issues) != 1 || !strings.Contains(issues[0].Message, "H990") {
		t.Fatalf("got %v, want the missing H990 issue", issues)
	}

	//each invariant is reported once even though every H record is visited
	ctx = fiscalContext("|H001|0|\n|H990|2|\n")
	perRecord := 0
	for _, rec := range ctx.Snapshot() {
		perRecord += len(rule.Validate(rec, ctx))
	}
	if perRecord != 2 {
		t.Errorf("got %d issues across all records, want 2 (anchored at the first H record)", perRecord)
	}
}
