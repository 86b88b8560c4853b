package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	get "github.com/hashicorp/go-getter"
)

// presetdl fetches a directory of YAML generation presets from a
// remote source into a local directory, using go-getter URL syntax
// (git::, http::, s3:: and friends all work).
func main() {
	var (
		src = flag.String("src", "", "go-getter source URL of the preset pack")
		out = flag.String("o", "./presets", "output dir path")
	)
	flag.Parse()

	if *src == "" {
		fmt.Fprintln(os.Stderr, "usage: presetdl -src <url> [-o dir]")
		os.Exit(2)
	}

	if err := os.RemoveAll(*out); err != nil {
		panic(err)
	}

	log.Default().Printf("start downloading presets to %s", *out)

	if err := get.Get(*out, *src); err != nil {
		panic(err)
	}

	log.Default().Printf("done downloading presets to %s", *out)
}
