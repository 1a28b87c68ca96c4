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

import "strings"

//pisCofinsAppraisalRegs are the PIS/COFINS appraisal record types that only
//appear in SPED Contribuições files.
var pisCofinsAppraisalRegs = map[string]bool{
	"M100": true, "M200": true, "M500": true, "M600": true,
	"M110": true, "M210": true, "M510": true, "M610": true,
}

//contribOpeningRegs are block openers exclusive to SPED Contribuições.
var contribOpeningRegs = map[string]bool{
	"1001": true, "1010": true, "9001": true,
}

//fiscalCSTValues is the CST range a SPED Fiscal file may carry in the
//PIS/COFINS columns of C170 (50-56, 60-67, 70-75). Anything else in those
//columns is a contributions marker.
var fiscalCSTValues = map[string]bool{
	"50": true, "51": true, "52": true, "53": true, "54": true, "55": true, "56": true,
	"60": true, "61": true, "62": true, "63": true, "64": true, "65": true, "66": true, "67": true,
	"70": true, "71": true, "72": true, "73": true, "74": true, "75": true,
}

//IsFiscalCST reports whether a PIS/COFINS tax situation code is within the
//range a SPED Fiscal file may use.
func IsFiscalCST(cst string) bool {
	return fiscalCSTValues[cst]
}

//IdentifyType classifies the context's file by the presence of marker record
//types and of out-of-range tax situation codes, and stores the result on the
//context. The decision:
//
//    fiscal side  = any record in block E or H
//    contrib side = any record in block M or 1, any PIS/COFINS appraisal
//                   record, any contributions opener, or a C170 CST outside
//                   the fiscal range
//    both         = fiscal side and contrib side
//    unknown      = neither
func IdentifyType(ctx *Context) SpedType {
	hasFiscal := false
	hasContribBlock := false
	hasPisCofinsAppraisal := false
	hasContribOpening := false
	hasInvalidFiscalCST := false

	for _, r := range ctx.Records {
		switch {
		case strings.HasPrefix(r.Reg, "E"), strings.HasPrefix(r.Reg, "H"):
			hasFiscal = true
		case strings.HasPrefix(r.Reg, "M"), strings.HasPrefix(r.Reg, "1"):
			hasContribBlock = true
		}
		if pisCofinsAppraisalRegs[r.Reg] {
			hasPisCofinsAppraisal = true
		}
		if contribOpeningRegs[r.Reg] {
			hasContribOpening = true
		}
		if r.Reg == "C170" && !hasInvalidFiscalCST {
			cstPis := r.Field(29)
			cstCofins := r.Field(32)
			if cstPis != "" && !IsFiscalCST(cstPis) {
				hasInvalidFiscalCST = true
			}
			if cstCofins != "" && !IsFiscalCST(cstCofins) {
				hasInvalidFiscalCST = true
			}
		}
	}

	hasContrib := hasContribBlock || hasPisCofinsAppraisal || hasContribOpening || hasInvalidFiscalCST

	var result SpedType
	switch {
	case hasFiscal && hasContrib:
		result = SpedBoth
	case hasFiscal:
		result = SpedFiscal
	case hasContrib:
		result = SpedContrib
	default:
		result = SpedUnknown
	}
	ctx.SpedType = result
	return result
}

//AppliesToFiscal reports whether fiscal-scoped rules run for this context.
func (c *Context) AppliesToFiscal() bool {
	return c.SpedType == SpedFiscal || c.SpedType == SpedBoth
}

//AppliesToContrib reports whether contributions-scoped rules run for this
//context.
func (c *Context) AppliesToContrib() bool {
	return c.SpedType == SpedContrib || c.SpedType == SpedBoth
}
