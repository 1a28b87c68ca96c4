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

//Parse splits SPED text into records. The canonical framing of a line is
//
//    |REG|campo1|campo2|...|campoN|
//
//so after splitting on "|" the first and last tokens are empty and are
//stripped. Lines missing the leading or trailing pipe are recovered as-is;
//blank lines and lines without any token are skipped. Parse never fails on
//malformed input — the record just does not materialize.
func Parse(text string) []*Record {
	var records []*Record
	lineNo := 0
	for _, line := range strings.Split(text, "\n") {
		lineNo++
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) > 0 && parts[0] == "" {
			parts = parts[1:]
		}
		if len(parts) > 0 && parts[len(parts)-1] == "" {
			parts = parts[:len(parts)-1]
		}
		if len(parts) == 0 || parts[0] == "" {
			continue
		}
		records = append(records, &Record{
			LineNo: lineNo,
			Reg:    parts[0],
			Fields: parts,
		})
	}
	assignParents(records)
	return records
}

//assignParents walks the record sequence once and links each item record to
//its container by the last-seen-parent rule. This runs at parse time so that
//rules can rely on Parent without recomputing it.
func assignParents(records []*Record) {
	var lastC100, lastC800 *Record
	for _, r := range records {
		switch r.Reg {
		case "C100":
			lastC100 = r
		case "C800":
			lastC800 = r
		case "C170":
			r.Parent = lastC100
		case "C850":
			r.Parent = lastC800
		}
	}
}

//Reassemble serializes records back into SPED text, restoring the
//|REG|...| framing. Fields[0] is the record type code itself and is emitted
//through Reg, so the on-disk form is identical to the input for unmodified
//records. The output is LF-terminated including a trailing newline.
func Reassemble(records []*Record) string {
	var sb strings.Builder
	for _, r := range records {
		sb.WriteString("|")
		sb.WriteString(r.Reg)
		if len(r.Fields) > 1 {
			sb.WriteString("|")
			sb.WriteString(strings.Join(r.Fields[1:], "|"))
		}
		sb.WriteString("|\n")
	}
	return sb.String()
}
