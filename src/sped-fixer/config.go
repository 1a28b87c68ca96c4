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

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
	"github.com/spedtools/sped-fixer/src/sped-fixer/compare"
)

//ConfigFile only needs a nice exported name for the TOML parser to produce
//more meaningful error messages on malformed input data.
type ConfigFile struct {
	Rules      RulesSection
	Tolerances TolerancesSection
	Output     OutputSection
}

//RulesSection only needs a nice exported name for the TOML parser to produce
//more meaningful error messages on malformed input data.
type RulesSection struct {
	Disabled []string
	Autofix  *bool
}

//TolerancesSection only needs a nice exported name for the TOML parser to
//produce more meaningful error messages on malformed input data.
type TolerancesSection struct {
	Money      string //TOML has no decimal type, so tolerances are strings: money = "0.01"
	Quantity   string
	Similarity float64
}

//OutputSection only needs a nice exported name for the TOML parser to
//produce more meaningful error messages on malformed input data.
type OutputSection struct {
	Suffix string
	Stdout bool
}

//Config is the validated runtime configuration.
type Config struct {
	DisabledRules map[string]bool
	Autofix       bool
	Tolerances    compare.Tolerances
	Similarity    float64
	Suffix        string
	Stdout        bool
}

//DefaultConfig returns the configuration used when no config file is given:
//every rule enabled, fixes applied, canonical tolerances, the "_corrigido"
//suffix on corrected files.
func DefaultConfig() *Config {
	return &Config{
		DisabledRules: map[string]bool{},
		Autofix:       true,
		Tolerances:    compare.DefaultTolerances(),
		Similarity:    compare.SimilarityThreshold,
		Suffix:        "_corrigido",
	}
}

//ReadConfig parses a TOML configuration file. The operation is successful if
//the returned []error is empty.
func ReadConfig(path string) (*Config, []error) {
	blob, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, []error{err}
	}
	var file ConfigFile
	if _, err := toml.Decode(string(blob), &file); err != nil {
		return nil, []error{err}
	}

	var errs []error
	cfg := DefaultConfig()

	for _, id := range file.Rules.Disabled {
		cfg.DisabledRules[id] = true
	}
	if file.Rules.Autofix != nil {
		cfg.Autofix = *file.Rules.Autofix
	}

	if file.Tolerances.Money != "" {
		if value, err := decimal.NewFromString(file.Tolerances.Money); err == nil {
			cfg.Tolerances.Money = value
		} else {
			errs = append(errs, fmt.Errorf("invalid tolerances.money \"%s\"", file.Tolerances.Money))
		}
	}
	if file.Tolerances.Quantity != "" {
		if value, err := decimal.NewFromString(file.Tolerances.Quantity); err == nil {
			cfg.Tolerances.Quantity = value
		} else {
			errs = append(errs, fmt.Errorf("invalid tolerances.quantity \"%s\"", file.Tolerances.Quantity))
		}
	}
	if file.Tolerances.Similarity != 0 {
		if file.Tolerances.Similarity > 0 && file.Tolerances.Similarity <= 1 {
			cfg.Similarity = file.Tolerances.Similarity
		} else {
			errs = append(errs, fmt.Errorf("invalid tolerances.similarity %g (must be in (0, 1])", file.Tolerances.Similarity))
		}
	}

	if file.Output.Suffix != "" {
		cfg.Suffix = file.Output.Suffix
	}
	cfg.Stdout = file.Output.Stdout

	return cfg, errs
}
