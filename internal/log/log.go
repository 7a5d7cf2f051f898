// Copyright 2019 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides the process-wide zap logger.
package log

import (
	"fmt"

	"go.uber.org/zap"
)

var (
	baseLogger *zap.Logger
	log        *zap.SugaredLogger
	// wrapped skips the package-level helpers below when reporting callers.
	wrapped *zap.SugaredLogger
)

// Init initializes the package-level logger.  Debug selects zap's
// development configuration, which is human readable and logs at debug level.
func Init(debug bool) error {
	var (
		zapLogger *zap.Logger
		err       error
	)
	if debug {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %v", err)
	}

	setLogger(zapLogger)
	return nil
}

func setLogger(l *zap.Logger) {
	baseLogger = l
	log = l.Sugar()
	wrapped = l.WithOptions(zap.AddCallerSkip(1)).Sugar()
}

// GetSugaredLogger returns the sugared logger, initializing a production
// logger if Init was never called.
func GetSugaredLogger() *zap.SugaredLogger {
	if log == nil {
		l, _ := zap.NewProduction()
		setLogger(l)
	}
	return log
}

func helper() *zap.SugaredLogger {
	GetSugaredLogger()
	return wrapped
}

// Sync flushes any buffered log entries.
func Sync() {
	if log != nil {
		log.Sync()
	}
}

func Debugw(msg string, keysAndValues ...interface{}) {
	helper().Debugw(msg, keysAndValues...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	helper().Infow(msg, keysAndValues...)
}

func Warnw(msg string, keysAndValues ...interface{}) {
	helper().Warnw(msg, keysAndValues...)
}

func Errorw(msg string, keysAndValues ...interface{}) {
	helper().Errorw(msg, keysAndValues...)
}

func Fatalf(template string, args ...interface{}) {
	helper().Fatalf(template, args...)
}
