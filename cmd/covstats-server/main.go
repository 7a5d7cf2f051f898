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

// This binary serves coverage reports for the BAM files of a local directory.
package main

import (
	"flag"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/googlegenomics/covstats/internal/depth"
	"github.com/googlegenomics/covstats/internal/log"
	"github.com/googlegenomics/covstats/internal/report"
	"github.com/googlegenomics/covstats/internal/server"
	"github.com/googlegenomics/covstats/internal/storage"
)

var (
	port      = flag.String("port", "8080", "HTTP service port")
	directory = flag.String("directory", "", "directory that contains <sample>.bam files")

	depthSource = flag.String("depth_source", depth.KindSamtools, "depth source: samtools or bam")
	samtools    = flag.String("samtools", "samtools", "samtools binary")
	timeout     = flag.Duration("timeout", 0, "per-sample depth timeout (0 for none)")

	debug = flag.Bool("debug", false, "enable debug logging")
)

func main() {
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		panic(err)
	}
	defer log.Sync()

	if *directory == "" {
		log.Fatalf("no directory specified")
	}

	source, err := depth.New(*depthSource, *samtools, &storage.Store{})
	if err != nil {
		log.Fatalf("creating depth source: %v", err)
	}
	generator := &report.Generator{
		Source:  source,
		Timeout: *timeout,
		Logger:  log.GetSugaredLogger(),
	}

	if !*debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := server.NewRouter(*directory, generator, log.GetSugaredLogger())

	log.Infow("serving coverage reports", "port", *port, "directory", *directory, "depth_source", *depthSource)
	if err := http.ListenAndServe(":"+*port, router); err != nil {
		log.Fatalf("serving: %v", err)
	}
}
