/*
packsightd - battery telemetry analysis daemon.
Copyright (C) 2025, The Packsight Project

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package main

import (
	arg "github.com/alexflint/go-arg"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/packsight/packsight/engine"
	"github.com/packsight/packsight/internal/api"
	"github.com/packsight/packsight/internal/config"
)

var version = "No version provided"

var log = logrus.New()

type argSpec struct {
	Config   string `arg:"-c,--config" default:"/etc/packsight/packsight.ini" help:"Path to the configuration file"`
	Workbook string `arg:"positional" help:"Workbook to load on startup (optional)"`
	LogLevel string `arg:"-l,--log-level" default:"info" help:"Set the logging level (debug, info, warn, error)"`
}

func (argSpec) Version() string {
	return version
}

func procArgs() argSpec {
	args := argSpec{}
	arg.MustParse(&args)
	return args
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
		log.Warn("Unknown log level, defaulting to info")
	}
}

func main() {
	err := runMain()
	if err != nil {
		log.Fatal(err.Error())
	}
}

func runMain() error {
	args := procArgs()
	setLogLevel(args.LogLevel)

	log.Info("Running version: ", version)

	cfg, err := config.Load(args.Config)
	if err != nil {
		return err
	}

	session := engine.NewSession(engine.Options{AnomalyWindow: cfg.Analysis.AnomalyWindow}, log)
	defer session.Close()

	if args.Workbook != "" {
		session.Load(args.Workbook)
	}

	if args.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	return api.NewServer(cfg, session, log).Run()
}
