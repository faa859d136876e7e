// Copyright 2025 go-oaipmh contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cnf

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/rs/zerolog/log"
)

const (
	dfltServerWriteTimeoutSecs = 30
	dfltTimeZone               = "Europe/Prague"
	dfltBatchSize              = 100
)

// Conf is the global configuration of the oaipmhserver binary.
type Conf struct {
	ListenAddress          string              `json:"listenAddress"`
	ListenPort             int                 `json:"listenPort"`
	ServerReadTimeoutSecs  int                 `json:"serverReadTimeoutSecs"`
	ServerWriteTimeoutSecs int                 `json:"serverWriteTimeoutSecs"`
	Logging                logging.LoggingConf `json:"logging"`
	TimeZone               string              `json:"timeZone"`

	RepositoryInfo    RepositoryInfo `json:"repositoryInfo"`
	Backend           BackendSetup   `json:"backend"`
	BatchSize         int            `json:"batchSize"`
	EnableGetMetadata bool           `json:"enableGetMetadata"`
}

// RepositoryInfo configures the Identify verb's static fields.
type RepositoryInfo struct {
	Name       string   `json:"name"`
	BaseURL    string   `json:"baseUrl"`
	AdminEmail []string `json:"adminEmail"`
}

// BackendSetup selects and configures one of the reference Repository
// backends (mysqlrepo, sqliterepo or memrepo). Kind is one of "mysql",
// "sqlite" or "memory"; only the matching sub-struct is consulted.
type BackendSetup struct {
	Kind   string      `json:"kind"`
	MySQL  MySQLSetup  `json:"mysql"`
	SQLite SQLiteSetup `json:"sqlite"`
}

type MySQLSetup struct {
	Host   string `json:"host"`
	User   string `json:"user"`
	Pass   string `json:"pass"`
	DBName string `json:"dbName"`
}

type SQLiteSetup struct {
	Root string `json:"root"`
}

func (conf *Conf) TimezoneLocation() *time.Location {
	loc, _ := time.LoadLocation(conf.TimeZone)
	return loc
}

func LoadConfig(path string) *Conf {
	if path == "" {
		log.Fatal().Msg("Cannot load config - path not specified")
	}
	rawData, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot load config")
	}
	var conf Conf
	if err := json.Unmarshal(rawData, &conf); err != nil {
		log.Fatal().Err(err).Msg("Cannot load config")
	}
	return &conf
}

// GetAbsPath resolves a possibly relative path (e.g. Backend.SQLite.Root)
// against the process working directory.
func GetAbsPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return filepath.Join(cwd, p)
}

func ValidateAndDefaults(conf *Conf) {
	if conf.ServerWriteTimeoutSecs == 0 {
		conf.ServerWriteTimeoutSecs = dfltServerWriteTimeoutSecs
		log.Warn().Msgf(
			"serverWriteTimeoutSecs not specified, using default: %d",
			dfltServerWriteTimeoutSecs,
		)
	}
	if conf.BatchSize <= 0 {
		conf.BatchSize = dfltBatchSize
		log.Warn().Msgf("batchSize not specified, using default: %d", dfltBatchSize)
	}
	if conf.TimeZone == "" {
		conf.TimeZone = dfltTimeZone
		log.Warn().
			Str("timeZone", dfltTimeZone).
			Msg("time zone not specified, using default")
	}
	if _, err := time.LoadLocation(conf.TimeZone); err != nil {
		log.Fatal().Err(err).Msg("invalid time zone")
	}
	switch conf.Backend.Kind {
	case "mysql", "sqlite", "memory":
	default:
		log.Fatal().Msgf("unknown backend kind %q, expected mysql, sqlite or memory", conf.Backend.Kind)
	}
}
