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

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/czcorpus/cnc-gokit/uniresp"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/czcorpus/go-oaipmh/cnf"
	"github.com/czcorpus/go-oaipmh/memrepo"
	"github.com/czcorpus/go-oaipmh/mysqlrepo"
	"github.com/czcorpus/go-oaipmh/oaipmh"
	"github.com/czcorpus/go-oaipmh/oaipmh/formats"
	"github.com/czcorpus/go-oaipmh/sqliterepo"
)

var (
	version   string
	buildDate string
	gitCommit string
)

func buildRepository(conf *cnf.Conf, reg *oaipmh.MetadataRegistry) oaipmh.Repository {
	switch conf.Backend.Kind {
	case "mysql":
		repo, err := mysqlrepo.New(mysqlrepo.Config{
			Host:           conf.Backend.MySQL.Host,
			User:           conf.Backend.MySQL.User,
			Pass:           conf.Backend.MySQL.Pass,
			DBName:         conf.Backend.MySQL.DBName,
			RepositoryName: conf.RepositoryInfo.Name,
			AdminEmails:    conf.RepositoryInfo.AdminEmail,
			DeletedRecord:  "persistent",
		}, reg, reg.Prefixes())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open mysql backend")
		}
		return repo

	case "sqlite":
		repo, err := sqliterepo.Open(
			cnf.GetAbsPath(conf.Backend.SQLite.Root),
			conf.RepositoryInfo.Name,
			conf.RepositoryInfo.AdminEmail,
			reg.Prefixes(),
			reg,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open sqlite backend")
		}
		return repo

	default:
		return memrepo.New(oaipmh.Identify{
			RepositoryName:    conf.RepositoryInfo.Name,
			AdminEmails:       conf.RepositoryInfo.AdminEmail,
			EarliestDatestamp: time.Unix(0, 0).UTC(),
			DeletedRecord:     "persistent",
			Granularity:       oaipmh.GranularitySecond,
			Compression:       []string{"identity"},
		}, reg.Prefixes())
	}
}

func runAPIServer(conf *cnf.Conf, syscallChan chan os.Signal, exitEvent chan os.Signal) {
	if conf.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := oaipmh.NewMetadataRegistry()
	formats.RegisterDefaults(reg)

	repo := buildRepository(conf, reg)
	server := oaipmh.NewServer(repo, reg, conf.RepositoryInfo.BaseURL, oaipmh.ServerOptions{
		BatchSize:         conf.BatchSize,
		EnableGetMetadata: conf.EnableGetMetadata,
	})

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logging.GinMiddleware())
	engine.NoMethod(uniresp.NoMethodHandler)
	engine.NoRoute(uniresp.NotFoundHandler)

	engine.GET("/oai", server.HandleGet)
	engine.POST("/oai", server.HandlePost)
	engine.GET("/record/:recordId", server.HandleRecordLink)

	log.Info().Msgf("starting to listen at %s:%d", conf.ListenAddress, conf.ListenPort)
	srv := &http.Server{
		Handler:      engine,
		Addr:         fmt.Sprintf("%s:%d", conf.ListenAddress, conf.ListenPort),
		WriteTimeout: time.Duration(conf.ServerWriteTimeoutSecs) * time.Second,
		ReadTimeout:  time.Duration(conf.ServerReadTimeoutSecs) * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("")
		}
		syscallChan <- syscall.SIGTERM
	}()

	<-exitEvent
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Info().Err(err).Msg("shutdown request error")
	}
}

func cleanVersionInfo(v string) string {
	return strings.TrimLeft(strings.Trim(v, "'"), "v")
}

func main() {
	cleanVersion := cleanVersionInfo(version)
	cleanBuildDate := cleanVersionInfo(buildDate)
	cleanGitCommit := cleanVersionInfo(gitCommit)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "go-oaipmh repository server\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n\t%s [options] start [config.json]\n\t", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "%s [options] version\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	action := flag.Arg(0)
	if action == "version" {
		fmt.Printf("oaipmhserver %s\nbuild date: %s\nlast commit: %s\n", cleanVersion, cleanBuildDate, cleanGitCommit)
		return
	}

	conf := cnf.LoadConfig(flag.Arg(1))
	logging.SetupLogging(conf.Logging)
	log.Info().Msg("starting go-oaipmh server")
	cnf.ValidateAndDefaults(conf)

	syscallChan := make(chan os.Signal, 1)
	signal.Notify(syscallChan, os.Interrupt)
	signal.Notify(syscallChan, syscall.SIGTERM)
	exitEvent := make(chan os.Signal)
	go func() {
		evt := <-syscallChan
		exitEvent <- evt
		close(exitEvent)
	}()

	switch action {
	case "start":
		runAPIServer(conf, syscallChan, exitEvent)
	default:
		log.Fatal().Msgf("unknown action %s", action)
	}
}
