// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/a2achat/pkg/config"
)

// ValidateCmd validates a configuration file.
type ValidateCmd struct {
	File        string `arg:"" optional:"" name:"file" help:"Configuration file path (defaults to --config)." placeholder:"PATH"`
	Format      string `short:"f" help:"Output format: compact, verbose, json." default:"compact" enum:"compact,verbose,json"`
	PrintConfig bool   `short:"p" name:"print-config" help:"Print the expanded configuration (defaults applied, env vars resolved)."`
}

func (c *ValidateCmd) Run(ctx context.Context, cli *CLI) error {
	file := c.File
	if file == "" {
		file = cli.Config
	}
	if file == "" {
		return errors.New("no configuration file given")
	}
	return validateFile(ctx, stdout, file, c.Format, c.PrintConfig)
}

// problem is one entry of the validation report.
type problem struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type report struct {
	Valid  bool      `json:"valid"`
	File   string    `json:"file"`
	Errors []problem `json:"errors,omitempty"`
}

func validateFile(ctx context.Context, w io.Writer, file, format string, printConfig bool) error {
	cfg, err := config.LoadConfigFile(ctx, file)
	if err != nil {
		writeReport(w, format, report{File: file, Errors: problemsOf(err)})
		return errors.New("configuration is invalid")
	}

	if printConfig {
		return printExpandedConfig(w, format, file, cfg)
	}
	writeReport(w, format, report{Valid: true, File: file})
	return nil
}

func problemsOf(err error) []problem {
	var verr *config.ValidationError
	if errors.As(err, &verr) {
		out := make([]problem, len(verr.Problems))
		for i, p := range verr.Problems {
			out[i] = problem{Type: "validation", Message: p}
		}
		return out
	}
	return []problem{{Type: "load", Message: err.Error()}}
}

func writeReport(w io.Writer, format string, r report) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(r)
	case "verbose":
		if r.Valid {
			fmt.Fprintf(w, "Configuration Validation Successful\n")
			fmt.Fprintf(w, "===================================\n\n")
			fmt.Fprintf(w, "File:   %s\n", r.File)
			fmt.Fprintf(w, "Status: OK\n")
			return
		}
		fmt.Fprintf(w, "Configuration Validation Failed\n")
		fmt.Fprintf(w, "===============================\n\n")
		fmt.Fprintf(w, "File:   %s\n", r.File)
		for _, p := range r.Errors {
			fmt.Fprintf(w, "  - [%s] %s\n", p.Type, p.Message)
		}
	default:
		if r.Valid {
			fmt.Fprintf(w, "%s: valid\n", r.File)
			return
		}
		for _, p := range r.Errors {
			fmt.Fprintf(w, "%s: %s error: %s\n", r.File, p.Type, p.Message)
		}
	}
}

func printExpandedConfig(w io.Writer, format, file string, cfg *config.Config) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config as JSON: %w", err)
		}
		return nil
	}

	fmt.Fprintf(w, "# Expanded configuration from: %s\n", file)
	fmt.Fprintf(w, "# (defaults applied, env vars resolved)\n\n")
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config as YAML: %w", err)
	}
	return enc.Close()
}

// SchemaCmd prints the JSON Schema of the configuration file.
type SchemaCmd struct {
	Compact bool `help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run() error {
	enc := json.NewEncoder(stdout)
	if !c.Compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(config.Schema()); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return nil
}
