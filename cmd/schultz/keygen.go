package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/schultz-net/schultz-go/pkg/identity"
)

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, `schultz keygen - Write a new private key in PEM format

Usage:
  schultz keygen [flags]

Flags:
`)
		fs.PrintDefaults()
	}

	output := fs.String("o", "", "Output file (required)")
	scheme := fs.String("scheme", identity.DefaultScheme.String(), "Key scheme: ecdsa-p521, ecdsa-p256")
	force := fs.Bool("force", false, "Overwrite an existing file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitConfig
	}
	if *output == "" {
		fmt.Fprintln(stderr, "Error: output file (-o) required")
		fs.Usage()
		return exitConfig
	}

	s, err := identity.ParseScheme(*scheme)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfig
	}
	if !*force {
		if _, err := os.Stat(*output); err == nil {
			fmt.Fprintf(stderr, "Error: %s exists (use -force to overwrite)\n", *output)
			return exitConfig
		}
	}

	id, err := identity.Generate(s)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitRejected
	}
	if err := id.WriteKeyFile(*output); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitRejected
	}

	fmt.Fprintf(stdout, "Wrote %s key to %s\n", s, *output)
	fmt.Fprintf(stdout, "Fingerprint: %s\n", id.Fingerprint())
	return exitOK
}
