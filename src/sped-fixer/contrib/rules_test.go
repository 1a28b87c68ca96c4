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
	"strings"
	"testing"

	"github.com/spedtools/sped-fixer/src/sped-fixer/common"
)

//contribContext parses the input and marks it as a contributions file.
func contribContext(input string) *common.Context {
	ctx := common.NewContext(common.Parse(input))
	ctx.SpedType = common.SpedContrib
	return ctx
}

func runRule(t *testing.T, rule common.Rule, ctx *common.Context) []common.Issue {
	t.Helper()
	var issues []common.Issue
	for _, rec := range ctx.Snapshot() {
		if !ctx.Contains(rec) {
			continue
		}
		recIssues := rule.Validate(rec, ctx)
		issues = append(issues, recIssues...)
		if len(recIssues) > 0 && rule.AutoFix() {
			rule.Fix(rec, ctx)
		}
	}
	return issues
}

func ruleByID(t *testing.T, id string) common.Rule {
	t.Helper()
	for _, rule := range Rules() {
		if rule.ID() == id {
			return rule
		}
	}
	t.Fatalf("no rule %s in the contributions set", id)
	return nil
}

//c100WithOp builds a C100 whose operation direction sits at field 2.
func c100WithOp(tpOp string) string {
	fields := make([]string, 10)
	fields[0] = "C100"
	fields[2] = tpOp
	return "|" + strings.Join(fields, "|") + "|\n"
}

//c170WithCST builds a C170 with the PIS CST at 29 and the COFINS CST at 32.
func c170WithCST(cstPis, cstCofins string) string {
	fields := make([]string, 35)
	fields[0] = "C170"
	fields[29] = cstPis
	fields[32] = cstCofins
	return "|" + strings.Join(fields, "|") + "|\n"
}

func TestCSTPisDirection(t *testing.T) {
	rule := ruleByID(t, "R101")

	//an exit CST on an entry document
	ctx := contribContext(c100WithOp("0") + c170WithCST("01", "50"))
	issues := runRule(t, rule, ctx)
	if len(issues) != 1 || !strings.Contains(issues[0].Message, "entrada") {
		t.Fatalf("got %v, want the entry-direction issue", issues)
	}

	//an entry CST on an exit document
	ctx = contribContext(c100WithOp("1") + c170WithCST("50", "01"))
	issues = runRule(t, rule, ctx)
	if len(issues) != 1 || !strings.Contains(issues[0].Message, "saída") {
		t.Fatalf("got %v, want the exit-direction issue", issues)
	}

	//matching directions pass
	ctx = contribContext(c100WithOp("0") + c170WithCST("50", "50"))
	if issues := runRule(t, rule, ctx); len(issues) != 0 {
		t.Errorf("got %v, want no issues", issues)
	}

	//an orphan item cannot be judged
	ctx = contribContext(c170WithCST("01", "50"))
	if issues := runRule(t, rule, ctx); len(issues) != 0 {
		t.Errorf("got %v, want no issues for an orphan item", issues)
	}
}

//analyticRecord builds a C190/D190 carrying tp_op at field 2 and the
//PIS/COFINS CSTs at 29/32.
func analyticRecord(reg, tpOp, cstPis, cstCofins string) string {
	fields := make([]string, 35)
	fields[0] = reg
	fields[2] = tpOp
	fields[29] = cstPis
	fields[32] = cstCofins
	return "|" + strings.Join(fields, "|") + "|\n"
}

func TestCSTDirectionOnAnalyticRecords(t *testing.T) {
	pis := ruleByID(t, "R101")
	cofins := ruleByID(t, "R102")

	for _, reg := range []string{"C190", "D190"} {
		//an exit CST on an entry-side analytic record
		ctx := contribContext(analyticRecord(reg, "0", "01", "50"))
		issues := runRule(t, pis, ctx)
		if len(issues) != 1 || !strings.Contains(issues[0].Message, "entrada") {
			t.Fatalf("%s: got %v, want the entry-direction issue", reg, issues)
		}

		//the COFINS column is judged independently
		ctx = contribContext(analyticRecord(reg, "1", "01", "50"))
		issues = runRule(t, cofins, ctx)
		if len(issues) != 1 || !strings.Contains(issues[0].Message, "saída") {
			t.Fatalf("%s: got %v, want the exit-direction issue", reg, issues)
		}

		//a truncated analytic record carries no CST columns and is skipped
		ctx = contribContext("|" + reg + "|CST|5102|18,00|\n")
		if issues := runRule(t, pis, ctx); len(issues) != 0 {
			t.Errorf("%s: got %v, want no issues for a short record", reg, issues)
		}
	}
}

//m100Credit builds an M100 with base, aliquota and credit at 5..7.
func m100Credit(base, aliq, credit string) string {
	fields := make([]string, 9)
	fields[0] = "M100"
	fields[5] = base
	fields[6] = aliq
	fields[7] = credit
	return "|" + strings.Join(fields, "|") + "|\n"
}

func TestPisCreditRecomputed(t *testing.T) {
	rule := ruleByID(t, "R103")

	//1000.00 × 1.65% = 16.50, but the file declares 20.00
	ctx := contribContext(m100Credit("1000,00", "1,65", "20,00"))
	issues := runRule(t, rule, ctx)
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(issues))
	}
	if got := ctx.First("M100").Field(7); got != "16.50" {
		t.Errorf("got credit %q after fix, want \"16.50\"", got)
	}
	if issues := runRule(t, rule, ctx); len(issues) != 0 {
		t.Errorf("rule is not idempotent: %v", issues)
	}

	//a correct credit passes
	ctx = contribContext(m100Credit("1000,00", "1,65", "16,50"))
	if issues := runRule(t, rule, ctx); len(issues) != 0 {
		t.Errorf("got %v, want no issues", issues)
	}

	//unparseable values are flagged, not repaired into garbage
	ctx = contribContext(m100Credit("abc", "1,65", "16,50"))
	issues = runRule(t, rule, ctx)
	if len(issues) != 1 || !strings.Contains(issues[0].Message, "inválidos") {
		t.Fatalf("got %v, want the invalid-values issue", issues)
	}
}

func TestPisAliquotaValidation(t *testing.T) {
	rule := ruleByID(t, "R105")

	//a value far above any PIS rate is a positional error and is zeroed
	ctx := contribContext(m100Credit("1000,00", "50,00", "0"))
	issues := runRule(t, rule, ctx)
	if len(issues) != 1 || !strings.Contains(issues[0].Message, "claramente") {
		t.Fatalf("got %v, want the positional-error issue", issues)
	}
	if got := ctx.First("M100").Field(6); got != "0" {
		t.Errorf("got aliquota %q after fix, want \"0\"", got)
	}

	//a near-miss is snapped to the closest legal rate
	ctx = contribContext(m100Credit("1000,00", "1,60", "16,00"))
	issues = runRule(t, rule, ctx)
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(issues))
	}
	if got := ctx.First("M100").Field(6); got != "1.65" {
		t.Errorf("got aliquota %q after fix, want \"1.65\"", got)
	}

	//legal rates pass untouched
	for _, aliq := range []string{"0", "0,65", "1,65"} {
		ctx = contribContext(m100Credit("1000,00", aliq, "0"))
		if issues := runRule(t, rule, ctx); len(issues) != 0 {
			t.Errorf("aliquota %s flagged: %v", aliq, issues)
		}
	}
}

func TestCofinsAliquotaValidation(t *testing.T) {
	rule := ruleByID(t, "R106")

	m500 := func(aliq string) string {
		fields := make([]string, 9)
		fields[0] = "M500"
		fields[5] = "1000,00"
		fields[6] = aliq
		fields[7] = "0"
		return "|" + strings.Join(fields, "|") + "|\n"
	}

	ctx := contribContext(m500("7,00"))
	issues := runRule(t, rule, ctx)
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(issues))
	}
	if got := ctx.First("M500").Field(6); got != "7.60" {
		t.Errorf("got aliquota %q after fix, want \"7.60\"", got)
	}

	for _, aliq := range []string{"0", "3", "7,6"} {
		ctx = contribContext(m500(aliq))
		if issues := runRule(t, rule, ctx); len(issues) != 0 {
			t.Errorf("aliquota %s flagged: %v", aliq, issues)
		}
	}
}

func TestContribRulesAreScoped(t *testing.T) {
	//the same defects in a fiscal-only file are none of this set's business
	ctx := common.NewContext(common.Parse(m100Credit("1000,00", "50,00", "0")))
	ctx.SpedType = common.SpedFiscal
	for _, id := range []string{"R103", "R105"} {
		if issues := runRule(t, ruleByID(t, id), ctx); len(issues) != 0 {
			t.Errorf("rule %s fired outside contributions scope: %v", id, issues)
		}
	}
}
