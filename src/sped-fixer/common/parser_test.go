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
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseFraming(t *testing.T) {
	testCases := []struct {
		name       string
		input      string
		wantReg    string
		wantFields []string
	}{
		{
			name:       "canonical",
			input:      "|0000|017|0|01012024|31012024|\n",
			wantReg:    "0000",
			wantFields: []string{"0000", "017", "0", "01012024", "31012024"},
		},
		{
			name:       "missing leading pipe",
			input:      "0000|017|0|\n",
			wantReg:    "0000",
			wantFields: []string{"0000", "017", "0"},
		},
		{
			name:       "missing trailing pipe",
			input:      "|0000|017|0\n",
			wantReg:    "0000",
			wantFields: []string{"0000", "017", "0"},
		},
		{
			name:       "empty embedded fields survive",
			input:      "|C100|0|1||55|\n",
			wantReg:    "C100",
			wantFields: []string{"C100", "0", "1", "", "55"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			records := Parse(tc.input)
			if len(records) != 1 {
				t.Fatalf("got %d records, want 1", len(records))
			}
			if records[0].Reg != tc.wantReg {
				t.Errorf("got reg %q, want %q", records[0].Reg, tc.wantReg)
			}
			if diff := cmp.Diff(tc.wantFields, records[0].Fields); diff != "" {
				t.Errorf("fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseSkipsBlankAndEmptyLines(t *testing.T) {
	input := "|0000|017|\n\n   \n||\n|C100|0|\n"
	records := Parse(input)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	//line numbers count source lines, not record positions
	if records[0].LineNo != 1 || records[1].LineNo != 5 {
		t.Errorf("got line numbers %d and %d, want 1 and 5", records[0].LineNo, records[1].LineNo)
	}
}

func TestParseAssignsParents(t *testing.T) {
	input := "|0000|017|\n" +
		"|C100|0|1|NFE1|\n" +
		"|C170|1|A10|\n" +
		"|C100|0|1|NFE2|\n" +
		"|C170|1|B20|\n" +
		"|C800|59|1|00|\n" +
		"|C850|000|5102|18,00|\n"
	records := Parse(input)

	byReg := func(reg string) (result []*Record) {
		for _, r := range records {
			if r.Reg == reg {
				result = append(result, r)
			}
		}
		return
	}
	c100s, c170s := byReg("C100"), byReg("C170")
	if c170s[0].Parent != c100s[0] {
		t.Errorf("first C170 should be owned by the first C100")
	}
	if c170s[1].Parent != c100s[1] {
		t.Errorf("second C170 should be owned by the second C100")
	}
	if c850 := byReg("C850")[0]; c850.Parent != byReg("C800")[0] {
		t.Errorf("C850 should be owned by the preceding C800")
	}
	if c100s[0].Parent != nil {
		t.Errorf("container records must not have parents")
	}
}

func TestParseOrphanItemHasNoParent(t *testing.T) {
	records := Parse("|0000|017|\n|C170|1|A10|\n")
	if records[1].Parent != nil {
		t.Errorf("a C170 without a preceding C100 must have a nil parent")
	}
}

func TestReassembleRoundTrip(t *testing.T) {
	input := "|0000|017|0|01012024|31012024|ACME||12345678000190|SP|\n" +
		"|C001|0|\n" +
		"|C100|0|1|NFE1||55|00|1|123|\n" +
		"|C170|1|A10||2,000|UN|100,00|\n" +
		"|C990|4|\n"
	records := Parse(input)
	if got := Reassemble(records); got != input {
		t.Errorf("round trip mismatch:\ngot  %q\nwant %q", got, input)
	}
	//a second parse of the output yields the same record sequence
	reparsed := Parse(Reassemble(records))
	if len(reparsed) != len(records) {
		t.Fatalf("got %d records after round trip, want %d", len(reparsed), len(records))
	}
	for i := range records {
		if diff := cmp.Diff(records[i].Fields, reparsed[i].Fields); diff != "" {
			t.Errorf("record %d fields mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestContextRemoveCascades(t *testing.T) {
	ctx := NewContext(Parse("|C100|0|1|NFE1|\n|C170|1|A10|\n|C170|2|B20|\n|C100|0|1|NFE2|\n|C170|1|C30|\n"))
	first := ctx.First("C100")
	ctx.Remove(first)

	if len(ctx.ByReg("C100")) != 1 {
		t.Fatalf("got %d C100 records, want 1", len(ctx.ByReg("C100")))
	}
	//removing the container removes its items, but not the other document's
	c170s := ctx.ByReg("C170")
	if len(c170s) != 1 {
		t.Fatalf("got %d C170 records, want 1", len(c170s))
	}
	if c170s[0].Field(2) != "C30" {
		t.Errorf("the surviving C170 should belong to the second document")
	}
	if ctx.Contains(first) {
		t.Errorf("removed record must not be contained anymore")
	}
}

func TestNewContextExtractsPeriod(t *testing.T) {
	ctx := NewContext(Parse("|0000|017|0|01012024|31012024|ACME|\n"))
	if ctx.Period == nil {
		t.Fatal("period should have been extracted from the 0000 record")
	}
	if ctx.Period.Start.Format("02012006") != "01012024" || ctx.Period.End.Format("02012006") != "31012024" {
		t.Errorf("unexpected period: %v", ctx.Period)
	}
}
