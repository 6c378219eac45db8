package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/google/subcommands"

	"github.com/iwpnd/mosaic/archive"
)

type infoCmd struct {
	inputPath string
}

func (c *infoCmd) Name() string     { return "info" }
func (c *infoCmd) Synopsis() string { return "print header, metadata and scales of an archive" }
func (c *infoCmd) Usage() string {
	return "mosaic info -i <path>\n"
}
func (c *infoCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input archive path")
}

func (c *infoCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.inputPath == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}

	src, err := archive.Open(ctx, c.inputPath)
	if err != nil {
		log.Printf("opening archive: %v", err)
		return subcommands.ExitFailure
	}
	defer src.Close()

	h := src.Header()
	fmt.Printf("header:   %v\n", h)
	fmt.Printf("metadata: %v\n", src.Meta())

	catalog, err := archive.Catalog(h)
	if err != nil {
		log.Printf("archive cannot back a map view: %v", err)
		return subcommands.ExitFailure
	}
	for i := range catalog.Len() {
		fmt.Printf("scale %d: zoom %d %v\n", i, archive.ZoomOf(h, i), catalog.Describe(i))
	}
	return subcommands.ExitSuccess
}
