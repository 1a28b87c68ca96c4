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

package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/spedtools/sped-fixer/src/sped-fixer/common"
)

//This program is used by the sped-fixer tests (and by hand, when debugging a
//customer file) to render a textual representation of a parsed SPED file:
//the identified type, the block structure, and the parent links of the item
//records. The program is called like
//
//    ./build/dump-sped < $spedfile
//
//And renders output like this:
//
//    sped type: fiscal (período 01012024 - 31012024)
//    0000 (linha 1) 15 campos
//    C001 (linha 2) 2 campos
//    C100 (linha 3) 29 campos
//        C170 (linha 4) 38 campos -> C100 linha 3
//
//With --fields, the raw field list of every record is dumped as well.

func main() {
	withFields := len(os.Args) > 1 && os.Args[1] == "--fields"

	//read the input from stdin
	data, err := ioutil.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	ctx := common.NewContext(common.Parse(string(data)))
	spedType := common.IdentifyType(ctx)

	if ctx.Period != nil {
		fmt.Printf("sped type: %s (período %s - %s)\n", spedType,
			ctx.Period.Start.Format("02012006"), ctx.Period.End.Format("02012006"))
	} else {
		fmt.Printf("sped type: %s\n", spedType)
	}

	for _, rec := range ctx.Records {
		indent := ""
		parentNote := ""
		if rec.Parent != nil {
			indent = "    "
			parentNote = fmt.Sprintf(" -> %s linha %d", rec.Parent.Reg, rec.Parent.LineNo)
		}
		fmt.Printf("%s%s (linha %d) %d campos%s\n", indent, rec.Reg, rec.LineNo, len(rec.Fields), parentNote)
		if withFields {
			dump := spew.Sdump(rec.Fields)
			for _, line := range strings.Split(strings.TrimRight(dump, "\n"), "\n") {
				fmt.Printf("%s    %s\n", indent, line)
			}
		}
	}
}
