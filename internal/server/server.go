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

// Package server exposes coverage reports over HTTP.
package server

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/googlegenomics/covstats/internal/coverage"
	"github.com/googlegenomics/covstats/internal/depth"
	"github.com/googlegenomics/covstats/internal/report"
)

const runHeader = "X-Covstats-Run"

// NewRouter returns a gin engine serving GET /coverage/:genome for the BAM
// files in directory.
func NewRouter(directory string, g *report.Generator, logger *zap.SugaredLogger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	router.GET("/coverage/:genome", NewCoverageHandler(directory, g))
	return router
}

// NewCoverageHandler builds a gin handler that renders the coverage report of
// the samples named by the repeated "sample" query parameter.  Each sample is
// read from <directory>/<sample>.bam.
func NewCoverageHandler(directory string, g *report.Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		genome := c.Param("genome")
		names := c.QueryArray("sample")
		if len(names) == 0 {
			c.String(http.StatusBadRequest, "no samples specified")
			return
		}

		var samples []report.Sample
		for _, name := range names {
			if !validSampleName(name) {
				c.String(http.StatusBadRequest, "invalid sample name %q", name)
				return
			}
			path := filepath.Join(directory, name+".bam")
			if _, err := os.Stat(path); err != nil {
				c.String(http.StatusNotFound, "no alignment file for sample %q", name)
				return
			}
			samples = append(samples, report.Sample{Name: name, Path: path})
		}

		rep, err := g.Build(c.Request.Context(), genome, samples)
		if err != nil {
			c.String(statusForError(err), "%v", err)
			return
		}

		var body bytes.Buffer
		if err := rep.Write(&body); err != nil {
			c.String(http.StatusInternalServerError, "Error generating result")
			return
		}
		c.Header(runHeader, rep.RunID)
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", genome+".csv"))
		c.Data(http.StatusOK, "text/csv; charset=utf-8", body.Bytes())
	}
}

func validSampleName(name string) bool {
	return name != "" && !strings.HasPrefix(name, ".") && !strings.ContainsAny(name, `/\`)
}

func statusForError(err error) int {
	var (
		parseErr *coverage.ParseError
		toolErr  *depth.ExternalToolError
	)
	switch {
	case errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.As(err, &toolErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func requestLogger(logger *zap.SugaredLogger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Infow("Handled request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", c.Request.URL.RawQuery,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"size", c.Writer.Size(),
			"remote_addr", c.ClientIP(),
			"run", c.Writer.Header().Get(runHeader),
		)
	}
}
