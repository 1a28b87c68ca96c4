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

//Package repair wires the rule packages into the single-file
//validate-and-repair operation. This is the API the embedding surface (CLI,
//HTTP) calls into.
package repair

import (
	stdcontext "context"

	"github.com/spedtools/sped-fixer/src/sped-fixer/common"
	"github.com/spedtools/sped-fixer/src/sped-fixer/contrib"
	"github.com/spedtools/sped-fixer/src/sped-fixer/fiscal"
)

//Options parameterizes one repair run.
type Options struct {
	//TypeHint forces the SPED flavour instead of auto-detecting it. Leave
	//empty (or SpedUnknown) to let the type identifier decide.
	TypeHint common.SpedType
	//ApplyFixes enables the automatic corrections.
	ApplyFixes bool
	//Disabled lists rule IDs that must not run.
	Disabled map[string]bool
}

//Summary is the quantitative outcome of a repair run.
type Summary struct {
	SpedType       common.SpedType `json:"sped_type"`
	TotalRecords   int             `json:"total_records"`
	RecordsRemoved int             `json:"records_removed"`
	TotalIssues    int             `json:"total_issues"`
	Errors         int             `json:"errors"`
	Warnings       int             `json:"warnings"`
}

//Result carries everything a repair run produces.
type Result struct {
	Corrected []byte          `json:"-"`
	Issues    []common.Issue  `json:"issues"`
	Summary   Summary         `json:"summary"`
	SpedType  common.SpedType `json:"sped_type"`
}

//File validates one SPED file and, when Options.ApplyFixes is set, rewrites
//it with the automatic corrections applied. The rule set is selected by the
//identified (or hinted) SPED type: the common rules always run, the fiscal
//and contributions sets only for their flavour (and both for "both").
//
//Cancellation through the stdlib context is cooperative at rule boundaries;
//a cancelled run returns the context's error.
func File(cancel stdcontext.Context, input []byte, opts Options) (*Result, error) {
	ctx := common.NewContext(common.Parse(string(input)))

	spedType := common.IdentifyType(ctx)
	switch opts.TypeHint {
	case common.SpedFiscal, common.SpedContrib, common.SpedBoth:
		spedType = opts.TypeHint
		ctx.SpedType = spedType
	}

	engine := &common.Engine{
		Rules:      RuleSet(spedType),
		ApplyFixes: opts.ApplyFixes,
		Disabled:   opts.Disabled,
	}
	totalBefore := len(ctx.Records)
	issues, err := engine.Run(cancel, ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Corrected: []byte(common.Reassemble(ctx.Records)),
		Issues:    issues,
		SpedType:  spedType,
		Summary: Summary{
			SpedType:       spedType,
			TotalRecords:   len(ctx.Records),
			RecordsRemoved: totalBefore - len(ctx.Records),
			TotalIssues:    len(issues),
		},
	}
	for _, issue := range issues {
		switch issue.Severity {
		case common.SeverityError:
			result.Summary.Errors++
		case common.SeverityWarn:
			result.Summary.Warnings++
		}
	}
	return result, nil
}

//RuleSet assembles the rules that run for the given SPED type, in declared
//order: common rules first, then the fiscal set, then the contributions set.
func RuleSet(spedType common.SpedType) []common.Rule {
	rules := common.Rules()
	switch spedType {
	case common.SpedFiscal:
		rules = append(rules, fiscal.Rules()...)
	case common.SpedContrib:
		rules = append(rules, contrib.Rules()...)
	case common.SpedBoth:
		rules = append(rules, fiscal.Rules()...)
		rules = append(rules, contrib.Rules()...)
	}
	return rules
}
