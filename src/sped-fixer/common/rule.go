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

//Rule is a generic interface for every validation rule. One value exists per
//check; the engine iterates rules in declared order and records in file
//order within each rule.
//
//Validate inspects a single record in the context of the whole file and
//returns zero or more Issues. It must not mutate anything. Fix repairs the
//record (or removes it from the context) and is only invoked when AutoFix is
//true and Validate returned at least one Issue for that record.
type Rule interface {
	//ID is the stable public identifier of the rule (e.g. "R003").
	ID() string
	//Description is a short human-readable summary of the check.
	Description() string
	//Severity is the default severity of Issues this rule produces.
	Severity() Severity
	//AutoFix reports whether the engine may invoke Fix.
	AutoFix() bool
	Validate(rec *Record, ctx *Context) []Issue
	Fix(rec *Record, ctx *Context)
}

//RuleInfo carries the static metadata shared by every rule and provides a
//no-op Fix for rules that only report. Concrete rules embed it and implement
//Validate (and Fix, when they repair).
type RuleInfo struct {
	RuleID  string
	Desc    string
	Level   Severity
	Fixable bool
}

//ID implements the Rule interface.
func (i RuleInfo) ID() string { return i.RuleID }

//Description implements the Rule interface.
func (i RuleInfo) Description() string { return i.Desc }

//Severity implements the Rule interface.
func (i RuleInfo) Severity() Severity { return i.Level }

//AutoFix implements the Rule interface.
func (i RuleInfo) AutoFix() bool { return i.Fixable }

//Fix implements the Rule interface with a no-op repair.
func (i RuleInfo) Fix(rec *Record, ctx *Context) {}

//NewIssue builds an Issue for the given record with the rule's identity and
//default severity filled in.
func NewIssue(r Rule, rec *Record, message, suggestion string) Issue {
	return Issue{
		LineNo:     rec.LineNo,
		Reg:        rec.Reg,
		RuleID:     r.ID(),
		Severity:   r.Severity(),
		Message:    message,
		Suggestion: suggestion,
	}
}
