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

package history

import (
	"fmt"
	"strings"
)

// Config selects the database that keeps session transcripts. An empty
// Driver disables persistence.
//
//	history:
//	  driver: sqlite
//	  database: ./.a2achat/history.db
type Config struct {
	Driver   string `yaml:"driver,omitempty" json:"driver,omitempty"`
	Host     string `yaml:"host,omitempty" json:"host,omitempty"`
	Port     int    `yaml:"port,omitempty" json:"port,omitempty"`
	Database string `yaml:"database,omitempty" json:"database,omitempty"`
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
	SSLMode  string `yaml:"ssl_mode,omitempty" json:"ssl_mode,omitempty"`
	MaxConns int    `yaml:"max_conns,omitempty" json:"max_conns,omitempty"`
	MaxIdle  int    `yaml:"max_idle,omitempty" json:"max_idle,omitempty"`
}

// Enabled reports whether a database is configured.
func (c *Config) Enabled() bool { return c.Driver != "" }

func (c *Config) SetDefaults() {
	if !c.Enabled() {
		return
	}
	if c.MaxConns == 0 {
		c.MaxConns = 10
	}
	if c.MaxIdle == 0 {
		c.MaxIdle = 2
	}
	if c.Port == 0 {
		switch c.Driver {
		case "postgres":
			c.Port = 5432
		case "mysql":
			c.Port = 3306
		}
	}
	if c.Driver == "postgres" && c.SSLMode == "" {
		c.SSLMode = "disable"
	}
}

func (c *Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	switch c.Driver {
	case "postgres", "mysql", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("invalid driver %q (valid: postgres, mysql, sqlite)", c.Driver)
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	if c.Dialect() != "sqlite" && c.Host == "" {
		return fmt.Errorf("host is required for %s", c.Driver)
	}
	if c.MaxConns < 0 || c.MaxIdle < 0 {
		return fmt.Errorf("max_conns and max_idle must be non-negative")
	}
	return nil
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	switch c.Dialect() {
	case "postgres":
		parts := []string{
			fmt.Sprintf("host=%s", c.Host),
			fmt.Sprintf("port=%d", c.Port),
			fmt.Sprintf("dbname=%s", c.Database),
		}
		if c.Username != "" {
			parts = append(parts, "user="+c.Username)
		}
		if c.Password != "" {
			parts = append(parts, "password="+c.Password)
		}
		if c.SSLMode != "" {
			parts = append(parts, "sslmode="+c.SSLMode)
		}
		return strings.Join(parts, " ")
	case "mysql":
		if c.Username != "" {
			return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", c.Username, c.Password, c.Host, c.Port, c.Database)
		}
		return fmt.Sprintf("tcp(%s:%d)/%s?parseTime=true", c.Host, c.Port, c.Database)
	case "sqlite":
		return c.Database
	default:
		return ""
	}
}

// DriverName is the database/sql driver to open.
func (c *Config) DriverName() string {
	if c.Driver == "sqlite" {
		return "sqlite3"
	}
	return c.Driver
}

// Dialect is the SQL flavor used to build queries.
func (c *Config) Dialect() string {
	if c.Driver == "sqlite3" {
		return "sqlite"
	}
	return c.Driver
}
