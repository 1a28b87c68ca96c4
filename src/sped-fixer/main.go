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
	"bytes"
	stdcontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/ogier/pflag"
	"github.com/spedtools/sped-fixer/src/sped-fixer/common"
	"github.com/spedtools/sped-fixer/src/sped-fixer/compare"
	"github.com/spedtools/sped-fixer/src/sped-fixer/repair"
)

const version = "1.2.0"

type options struct {
	compareMode    bool
	similarityMode bool
	spedType       string
	configPath     string
	outputPath     string
	reportPath     string
	printToStdout  bool
	withForce      bool
	noFix          bool
}

func main() {
	opts, args := parseArgs()

	cfg := DefaultConfig()
	if opts.configPath != "" {
		var errs []error
		cfg, errs = ReadConfig(opts.configPath)
		if len(errs) > 0 {
			for _, err := range errs {
				ShowError(err)
			}
			os.Exit(1)
		}
	}
	if opts.noFix {
		cfg.Autofix = false
	}
	if opts.printToStdout {
		cfg.Stdout = true
	}

	if opts.compareMode || opts.similarityMode {
		if len(args) != 2 {
			ShowError(errors.New("comparison needs exactly two files: <reference> <audit>"))
			os.Exit(1)
		}
		os.Exit(runCompare(opts, cfg, args[0], args[1]))
	}

	if len(args) != 1 {
		ShowError(errors.New("exactly one SPED file must be given (or use --compare with two files)"))
		printHelp()
		os.Exit(1)
	}
	os.Exit(runRepair(opts, cfg, args[0]))
}

func parseArgs() (options, []string) {
	var opts options
	showVersion := flag.BoolP("version", "V", false, "Print version and exit")
	flag.BoolVar(&opts.compareMode, "compare", false, "Compare a reference file against an audit file")
	flag.BoolVar(&opts.similarityMode, "similarity", false, "Compare with the string-similarity fallback matcher")
	flag.StringVarP(&opts.spedType, "type", "t", "", "SPED type hint (fiscal, contrib, both)")
	flag.StringVarP(&opts.configPath, "config", "c", "", "Path to a TOML configuration file")
	flag.StringVarP(&opts.outputPath, "output", "o", "", "Path of the corrected file (\"-\" for stdout)")
	flag.StringVarP(&opts.reportPath, "report", "r", "", "Write the issue report as JSON to this path (\"-\" for stdout)")
	flag.BoolVar(&opts.printToStdout, "stdout", false, "Print the corrected file on stdout")
	flag.BoolVar(&opts.withForce, "force", false, "Overwrite an existing output file")
	flag.BoolVar(&opts.noFix, "no-fix", false, "Only report issues, do not apply corrections")
	flag.Usage = printHelp
	flag.Parse()

	if *showVersion {
		fmt.Println("sped-fixer " + version)
		os.Exit(0)
	}

	switch opts.spedType {
	case "", "fiscal", "contrib", "both":
	default:
		ShowError(fmt.Errorf("unknown SPED type \"%s\" (valid: fiscal, contrib, both)", opts.spedType))
		os.Exit(1)
	}
	return opts, flag.Args()
}

func printHelp() {
	program := os.Args[0]
	fmt.Printf("Usage: %s <options> <spedfile>\n", program)
	fmt.Printf("       %s --compare <reference> <audit>\n\nOptions:\n", program)
	fmt.Println("  -t, --type <type>\tSPED type hint: fiscal, contrib or both (default: autodetect)")
	fmt.Println("  -c, --config <file>\tRead tolerances and rule toggles from a TOML file")
	fmt.Println("  -o, --output <file>\tWhere to write the corrected file (default: <name>_corrigido<ext>)")
	fmt.Println("  -r, --report <file>\tWrite the issue report as JSON (\"-\" for stdout)")
	fmt.Println("      --stdout\t\tPrint the corrected file on stdout")
	fmt.Println("      --force\t\tOverwrite an existing output file")
	fmt.Println("      --no-fix\t\tOnly report issues, do not apply corrections")
	fmt.Println("      --compare\t\tStructurally compare two files by semantic keys")
	fmt.Println("      --similarity\tCompare two files with the similarity fallback matcher")
}

//readInput reads a SPED file, with "-" standing for stdin.
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return ioutil.ReadAll(io.Reader(os.Stdin))
	}
	return ioutil.ReadFile(path)
}

func runRepair(opts options, cfg *Config, inputPath string) int {
	input, err := readInput(inputPath)
	if err != nil {
		ShowError(err)
		return 1
	}

	result, err := repair.File(stdcontext.Background(), input, repair.Options{
		TypeHint:   common.SpedType(opts.spedType),
		ApplyFixes: cfg.Autofix,
		Disabled:   cfg.DisabledRules,
	})
	if err != nil {
		ShowError(err)
		return 1
	}

	if result.SpedType == common.SpedUnknown {
		ShowWarning("could not identify the SPED type; only the common rules were applied")
	}
	for _, issue := range result.Issues {
		msg := fmt.Sprintf("linha %d [%s] %s: %s", issue.LineNo, issue.RuleID, issue.Severity, issue.Message)
		if issue.Suggestion != "" {
			msg += " (" + issue.Suggestion + ")"
		}
		if issue.Severity == common.SeverityError {
			ShowError(errors.New(msg))
		} else {
			ShowWarning(msg)
		}
	}

	if opts.reportPath != "" {
		if err := writeJSON(opts.reportPath, result); err != nil {
			ShowError(err)
			return 1
		}
	}

	outputPath := opts.outputPath
	if cfg.Stdout {
		outputPath = "-"
	}
	if outputPath == "" {
		outputPath = correctedFileName(inputPath, cfg.Suffix)
	}
	wasWritten, err := writeCorrected(result.Corrected, input, outputPath, opts.withForce)
	if err != nil {
		ShowError(err)
		return 1
	}
	if !wasWritten && outputPath != "-" {
		ShowWarning("no corrections were applied; " + outputPath + " was not written")
	}

	if result.Summary.Errors > 0 {
		return 2
	}
	return 0
}

//writeCorrected writes the repaired SPED text. On stdout ("-") the text is
//always emitted so the command composes in pipelines. On disk, nothing is
//written when the repair pass left the records untouched (the corrected text
//equals the input up to trailing-newline normalization), and an existing
//output file is only clobbered when withForce is set.
func writeCorrected(corrected, input []byte, fileName string, withForce bool) (wasWritten bool, e error) {
	if fileName == "-" {
		_, err := os.Stdout.Write(corrected)
		return false, err
	}

	if bytes.Equal(corrected, normalizeTrailingNewline(input)) {
		return false, nil
	}

	if !withForce {
		_, err := os.Stat(fileName)
		switch {
		case err == nil:
			return false, errors.New(fileName + " already exists; won't overwrite without --force")
		case !os.IsNotExist(err):
			return false, err
		}
	}
	return true, ioutil.WriteFile(fileName, corrected, 0666)
}

//normalizeTrailingNewline appends the final LF the reassembler always emits,
//so an input lacking one still compares equal when no rule changed it.
func normalizeTrailingNewline(text []byte) []byte {
	if len(text) == 0 || text[len(text)-1] == '\n' {
		return text
	}
	return append(append([]byte(nil), text...), '\n')
}

//correctedFileName derives the output name of a repaired file, e.g.
//"efd.txt" becomes "efd_corrigido.txt".
func correctedFileName(inputPath, suffix string) string {
	if inputPath == "-" {
		return "-"
	}
	ext := filepath.Ext(inputPath)
	return strings.TrimSuffix(inputPath, ext) + suffix + ext
}

func runCompare(opts options, cfg *Config, referencePath, auditPath string) int {
	referenceBytes, err := readInput(referencePath)
	if err != nil {
		ShowError(err)
		return 1
	}
	auditBytes, err := readInput(auditPath)
	if err != nil {
		ShowError(err)
		return 1
	}

	reference := common.NewContext(common.Parse(string(referenceBytes)))
	audit := common.NewContext(common.Parse(string(auditBytes)))

	var report interface{}
	if opts.similarityMode {
		report = compare.Similarity(reference, audit, cfg.Similarity)
	} else {
		report = compare.NewComparator(cfg.Tolerances).Compare(reference, audit)
	}

	if err := writeJSON("-", report); err != nil {
		ShowError(err)
		return 1
	}
	return 0
}

//writeJSON marshals a report with indentation, to stdout when path is "-".
func writeJSON(path string, report interface{}) error {
	blob, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	blob = append(blob, '\n')
	if path == "-" {
		_, err := os.Stdout.Write(blob)
		return err
	}
	return ioutil.WriteFile(path, blob, 0666)
}
