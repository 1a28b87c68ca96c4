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
	stdcontext "context"
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
)

//Engine runs a rule set over a context. Rules execute in declared order; for
//each rule the records are visited in file order over a snapshot taken at
//the start of the rule, so a fix that removes records never disturbs the
//iteration. This nesting order is a contract: it makes duplicate and orphan
//removers see the mutations of earlier rules, and it makes the observable
//behaviour deterministic.
type Engine struct {
	Rules []Rule
	//ApplyFixes enables the repair actions of rules whose AutoFix is true.
	ApplyFixes bool
	//Disabled holds rule IDs to skip.
	Disabled map[string]bool
}

//Run executes the engine over the context and returns all Issues found.
//Issues are deduplicated by (line number, rule id) and enriched with the
//impacted-record analysis before being returned.
//
//Cancellation is cooperative at rule boundaries: when the stdlib context is
//cancelled the engine returns the issues collected so far together with the
//cancellation error. Partial fixes of already-completed rules remain
//applied.
//
//A rule that panics is a programmer error, not a data defect: the engine
//logs the rule id and the full record before re-panicking.
func (e *Engine) Run(cancel stdcontext.Context, ctx *Context) ([]Issue, error) {
	analyzer := NewImpactAnalyzer(ctx)
	var issues []Issue
	seen := make(map[string]bool)

	for _, rule := range e.Rules {
		if e.Disabled[rule.ID()] {
			continue
		}
		if err := cancel.Err(); err != nil {
			return issues, err
		}
		for _, rec := range ctx.Snapshot() {
			if !ctx.Contains(rec) {
				continue
			}
			recIssues := e.applyRule(rule, rec, ctx)
			if len(recIssues) == 0 {
				continue
			}
			//Deduplicate by (line number, rule id) across invocations. A
			//single Validate call may legitimately report several defects of
			//the same line (e.g. the mandatory-field checks of the 0000), so
			//the keys of this batch are only marked once the batch has been
			//admitted.
			var admitted []Issue
			for _, issue := range recIssues {
				key := fmt.Sprintf("%d/%s", issue.LineNo, issue.RuleID)
				if seen[key] {
					continue
				}
				e.enrich(&issue, rec, analyzer)
				admitted = append(admitted, issue)
			}
			for _, issue := range admitted {
				seen[fmt.Sprintf("%d/%s", issue.LineNo, issue.RuleID)] = true
			}
			issues = append(issues, admitted...)
			if e.ApplyFixes && rule.AutoFix() {
				e.applyFix(rule, rec, ctx)
			}
		}
	}
	return issues, nil
}

//applyRule invokes Validate with the engine's panic protocol.
func (e *Engine) applyRule(rule Rule, rec *Record, ctx *Context) []Issue {
	defer logRulePanic(rule, rec)
	return rule.Validate(rec, ctx)
}

//applyFix invokes Fix with the engine's panic protocol.
func (e *Engine) applyFix(rule Rule, rec *Record, ctx *Context) {
	defer logRulePanic(rule, rec)
	rule.Fix(rec, ctx)
}

//logRulePanic dumps the failing rule and record on stderr and lets the panic
//continue. Rule authors are expected to fully defend their index accesses;
//the engine is deliberately not resilient to buggy rules.
func logRulePanic(rule Rule, rec *Record) {
	if r := recover(); r != nil {
		fmt.Fprintf(os.Stderr, "rule %s panicked on %s (linha %d): %v\n",
			rule.ID(), rec.Reg, rec.LineNo, r)
		fmt.Fprint(os.Stderr, spew.Sdump(rec.Fields))
		panic(r)
	}
}

//enrich attaches the impacted-record walk to an issue. Only the defect's
//downstream records are listed; the defective record itself is not its own
//impact.
func (e *Engine) enrich(issue *Issue, rec *Record, analyzer *ImpactAnalyzer) {
	if _, hasEdges := impactEdges[rec.Reg]; !hasEdges {
		return
	}
	for _, impacted := range analyzer.Trace(rec) {
		if impacted == rec {
			continue
		}
		issue.ImpactedRecords = append(issue.ImpactedRecords, RecordRef{
			Reg:    impacted.Reg,
			LineNo: impacted.LineNo,
		})
		if detail, ok := DetailFor(impacted); ok {
			issue.ImpactDetails = append(issue.ImpactDetails, detail)
		}
	}
}
