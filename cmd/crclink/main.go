package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dd0wney/crclink/pkg/app"
	"github.com/dd0wney/crclink/pkg/config"
	"github.com/dd0wney/crclink/pkg/session"
)

type CLI struct {
	app     *app.App
	ctx     context.Context
	state   session.State
	out     io.Writer
	scanner *bufio.Scanner
}

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	verbose := flag.Bool("v", false, "Write structured logs to stderr")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [command [args]]\n\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "Without a command an interactive prompt is started.")
		fmt.Fprintln(flag.CommandLine.Output())
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	opts := app.Options{
		Interactive: !*verbose,
		Console:     len(args) == 0 || args[0] == "console",
	}

	ctx, cancel := context.WithCancel(context.Background())
	a, err := app.New(ctx, cfg, opts)
	if err != nil {
		cancel()
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	cli := &CLI{
		app:     a,
		ctx:     ctx,
		state:   a.NewState(),
		out:     os.Stdout,
		scanner: bufio.NewScanner(os.Stdin),
	}

	code := 0
	if len(args) > 0 {
		if err := cli.executeCommand(args); err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			code = 1
		}
	} else {
		a.Serve()
		cli.run()
	}

	a.Close(context.Background())
	cancel()
	os.Exit(code)
}

func (cli *CLI) run() {
	fmt.Fprintf(cli.out, "CRC link console · %s\n", cli.app.Client.BaseURL())
	fmt.Fprintln(cli.out, "Type 'help' for available commands, 'exit' to quit")
	fmt.Fprintln(cli.out)

	cli.apply(session.RequestRefresh{})

	for {
		cli.pollConsole()
		fmt.Fprint(cli.out, "crclink> ")

		if !cli.scanner.Scan() {
			break
		}

		line := strings.TrimSpace(cli.scanner.Text())
		if line == "" {
			continue
		}

		args := strings.Fields(line)
		if args[0] == "exit" || args[0] == "quit" {
			fmt.Fprintln(cli.out, "👋 Goodbye!")
			return
		}

		if err := cli.executeCommand(args); err != nil {
			fmt.Fprintf(cli.out, "❌ %v\n", err)
		}
	}
}
