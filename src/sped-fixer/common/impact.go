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

import "fmt"

//impactEdges is the static dependency graph of the SPED aggregates: an edge
//from A to B means "a defect in A invalidates B". Records carrying a parent
//pointer (C170 of a C100, C850 of a C800) are also reached as structural
//children in Trace, and the C100 edge to C170 only reaches the document's own
//items. The H005 edge reaches every H010/H020/H030 of the file.
var impactEdges = map[string][]string{
	"C100": {"C170", "C190", "E110"},
	"C170": {"C190", "E110"},
	"C190": {"E110"},
	"H005": {"H010", "H020", "H030"},
}

//ImpactAnalyzer walks the dependency graph from a defective record to every
//downstream record whose aggregate it invalidates.
type ImpactAnalyzer struct {
	ctx *Context
}

//NewImpactAnalyzer creates an analyzer over the given context.
func NewImpactAnalyzer(ctx *Context) *ImpactAnalyzer {
	return &ImpactAnalyzer{ctx: ctx}
}

//Trace performs a breadth-first walk from the defective record and returns
//all reached records present in the context, the defective record first.
//A C190 is only reached when it belongs to the same document as the
//defective record; the E110 is the single appraisal of the period and is
//always considered related.
func (a *ImpactAnalyzer) Trace(defective *Record) []*Record {
	var impacts []*Record
	visited := make(map[*Record]bool)
	queue := []*Record{defective}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true
		impacts = append(impacts, current)

		//structural children first
		for _, r := range a.ctx.Records {
			if r.Parent == current && !visited[r] {
				queue = append(queue, r)
			}
		}

		for _, impactedReg := range impactEdges[current.Reg] {
			for _, r := range a.ctx.Records {
				if r.Reg != impactedReg || visited[r] {
					continue
				}
				if impactedReg == "C190" && !a.relatedToDocument(r, defective) {
					continue
				}
				if impactedReg == "C170" && current.Reg == "C100" && r.Parent != current {
					continue
				}
				queue = append(queue, r)
			}
		}
	}
	return impacts
}

//relatedToDocument reports whether a totalizer record belongs to the same
//document as the defective record. C190 carries its document key at field
//index 2; the defective record's key is the C100 access key, reached through
//parent pointers for item records.
func (a *ImpactAnalyzer) relatedToDocument(totalizer, defective *Record) bool {
	docKey := documentKey(defective)
	if docKey == "" {
		return false
	}
	return totalizer.Field(2) == docKey
}

//documentKey extracts the access key of the document a record belongs to.
func documentKey(rec *Record) string {
	switch rec.Reg {
	case "C100":
		return rec.Field(8)
	case "C170":
		if rec.Parent != nil {
			return documentKey(rec.Parent)
		}
	}
	return ""
}

//impactProfiles maps each aggregate record type to the block it lives in,
//what it totals, and how grave an inconsistency there is.
var impactProfiles = map[string]ImpactDetail{
	"E110": {Block: "E", Reg: "E110", Impact: "Apuração de ICMS/IPI", Gravity: "critical"},
	"C190": {Block: "C", Reg: "C190", Impact: "Totalizador por CST", Gravity: "high"},
	"H010": {Block: "H", Reg: "H010", Impact: "Inventário", Gravity: "medium"},
	"C800": {Block: "C", Reg: "C800", Impact: "Documentos de serviço", Gravity: "high"},
	"C850": {Block: "C", Reg: "C850", Impact: "Documentos fiscais", Gravity: "high"},
	"C170": {Block: "C", Reg: "C170", Impact: "Item de documento", Gravity: "medium"},
}

//DetailFor converts an impacted record into its ImpactDetail, or ok=false
//when the record type carries no aggregate profile.
func DetailFor(rec *Record) (ImpactDetail, bool) {
	profile, ok := impactProfiles[rec.Reg]
	if !ok {
		return ImpactDetail{}, false
	}
	profile.Message = fmt.Sprintf("%s (linha %d) precisa ser reavaliado", rec.Reg, rec.LineNo)
	return profile, true
}
