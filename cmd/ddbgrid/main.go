// ddbgrid serves the editable-table demo page over one DynamoDB table.
//
// # Usage
//
// Start the server with a config file:
//
//	ddbgrid --config ./ddbgrid.yaml --port 8080
//
// Run against a local badger-backed table instead of AWS:
//
//	ddbgrid --config ./ddbgrid.yaml --local --db ./data
//
// # Flags
//
//	-config string
//	    	path to the YAML config file (required)
//	-port int
//	    	HTTP port to listen on (default 8080)
//	-local
//	    	use the local badger store instead of AWS
//	-db string
//	    	path to the badger database (empty for in-memory)
//	-debug
//	    	enable debug logging
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mwestman/ddbgrid/webui"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to the YAML config file (required)")
		port       = flag.Int("port", 8080, "HTTP port to listen on")
		local      = flag.Bool("local", false, "use the local badger store instead of AWS")
		dbPath     = flag.String("db", "", "path to the badger database (empty for in-memory)")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "ddbgrid: --config flag is required")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  ddbgrid --config ./ddbgrid.yaml [--port 8080] [--local] [--db ./data]")
		os.Exit(1)
	}

	cfg, err := webui.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ddbgrid: %v\n", err)
		os.Exit(1)
	}
	if *local {
		cfg.Local.Enabled = true
	}
	if *dbPath != "" {
		cfg.Local.Path = *dbPath
	}

	server, err := webui.NewServer(context.Background(), cfg, *port)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ddbgrid: %v\n", err)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "ddbgrid: %v\n", err)
		os.Exit(1)
	}
}
