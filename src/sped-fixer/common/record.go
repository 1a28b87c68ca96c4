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

import "time"

//Record is a single line of a SPED file. Fields[0] always holds the record
//type code (the same value as Reg); Fields[1] is the first data field. LineNo
//is the 1-based position in the source file and is preserved across repairs
//even though line numbers after reassembly may differ.
type Record struct {
	LineNo int
	Reg    string
	Fields []string
	//Parent is the owning container record for item records (C170 inside
	//C100, C850 inside C800). It is assigned once during parsing and never
	//mutated afterwards.
	Parent *Record

	removed bool
}

//Field returns Fields[idx], or "" when the record is too short. Rules use
//this to defend their index accesses against truncated records.
func (r *Record) Field(idx int) string {
	if idx < 0 || idx >= len(r.Fields) {
		return ""
	}
	return r.Fields[idx]
}

//SetField assigns Fields[idx] if the record is long enough. Assignments
//beyond the record's width are silently dropped.
func (r *Record) SetField(idx int, value string) {
	if idx >= 0 && idx < len(r.Fields) {
		r.Fields[idx] = value
	}
}

//Block returns the block letter of this record (the first character of the
//record type code).
func (r *Record) Block() string {
	if r.Reg == "" {
		return ""
	}
	return r.Reg[:1]
}

//SpedType classifies a file as SPED Fiscal, SPED Contribuições, both, or
//neither. The tag gates rule selection and per-rule guards.
type SpedType string

const (
	//SpedFiscal marks an EFD ICMS/IPI file.
	SpedFiscal SpedType = "fiscal"
	//SpedContrib marks an EFD PIS/COFINS file.
	SpedContrib SpedType = "contrib"
	//SpedBoth marks a file carrying markers of both flavours.
	SpedBoth SpedType = "both"
	//SpedUnknown marks a file without recognizable markers.
	SpedUnknown SpedType = "unknown"
)

//Period is the date range declared by the 0000 record.
type Period struct {
	Start time.Time
	End   time.Time
}

//Context owns the records of one processing request. Rules read and mutate
//it; it is never shared between requests.
type Context struct {
	Records  []*Record
	SpedType SpedType
	Period   *Period
}

//NewContext wraps a record sequence. The SpedType starts out as SpedUnknown
//until IdentifyType has run; the period is extracted from the 0000 record if
//one is present.
func NewContext(records []*Record) *Context {
	ctx := &Context{Records: records, SpedType: SpedUnknown}
	if first := ctx.First("0000"); first != nil {
		start, okStart := ParseDate(first.Field(3))
		end, okEnd := ParseDate(first.Field(4))
		if okStart && okEnd {
			ctx.Period = &Period{Start: start, End: end}
		}
	}
	return ctx
}

//Remove deletes a record from the context. Removing a container record
//cascade-removes its item records, so parent pointers never dangle.
func (c *Context) Remove(rec *Record) {
	if rec == nil || rec.removed {
		return
	}
	rec.removed = true
	kept := c.Records[:0]
	for _, r := range c.Records {
		if r == rec {
			continue
		}
		if r.Parent == rec {
			r.removed = true
			continue
		}
		kept = append(kept, r)
	}
	c.Records = kept
}

//Contains reports whether the record is still part of the context. The rule
//engine iterates over snapshots and uses this to skip records that an earlier
//fix of the same rule already removed.
func (c *Context) Contains(rec *Record) bool {
	return rec != nil && !rec.removed
}

//ByReg returns all records of the given type, in file order.
func (c *Context) ByReg(reg string) []*Record {
	var result []*Record
	for _, r := range c.Records {
		if r.Reg == reg {
			result = append(result, r)
		}
	}
	return result
}

//First returns the first record of the given type, or nil.
func (c *Context) First(reg string) *Record {
	for _, r := range c.Records {
		if r.Reg == reg {
			return r
		}
	}
	return nil
}

//Snapshot returns a copy of the current record list. The engine hands each
//rule a snapshot so that in-rule removals do not disturb the iteration.
func (c *Context) Snapshot() []*Record {
	snapshot := make([]*Record, len(c.Records))
	copy(snapshot, c.Records)
	return snapshot
}
