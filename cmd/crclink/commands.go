package main

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"time"

	"github.com/dd0wney/crclink/pkg/app"
	"github.com/dd0wney/crclink/pkg/audit"
	"github.com/dd0wney/crclink/pkg/console"
	"github.com/dd0wney/crclink/pkg/history"
	"github.com/dd0wney/crclink/pkg/logging"
	"github.com/dd0wney/crclink/pkg/selection"
	"github.com/dd0wney/crclink/pkg/session"
	"github.com/dd0wney/crclink/pkg/simulation"
	"github.com/dd0wney/crclink/pkg/topology"
)

// errReported marks a command whose failure is already in the operator log
var errReported = errors.New("command failed")

func (cli *CLI) executeCommand(args []string) error {
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "help":
		cli.printHelp()
		return nil
	case "nodes":
		return cli.nodes()
	case "select":
		return cli.selectPair(rest)
	case "clear":
		return cli.check(cli.apply(session.ClickBackground{}))
	case "simulate":
		return cli.simulate(rest)
	case "ensure":
		return cli.check(cli.apply(session.RequestEnsureNodes{}))
	case "failure":
		return cli.check(cli.apply(session.RequestToggleFailure{}))
	case "shutdown":
		return cli.shutdown(rest)
	case "console":
		return cli.console(rest)
	case "history":
		return cli.history(rest)
	case "audit":
		return cli.audit(rest)
	case "status":
		cli.printStatus()
		return nil
	case "log":
		for _, l := range cli.state.Lines() {
			fmt.Fprintln(cli.out, l)
		}
		return nil
	default:
		return fmt.Errorf("unknown command: %s (type 'help' for commands)", cmd)
	}
}

func (cli *CLI) printHelp() {
	fmt.Fprint(cli.out, `
Commands:
  nodes                                 Refresh and list nodes
  select <source> <destination>         Select a transmission pair
  clear                                 Clear the selection
  simulate [flags] [source destination] Run a transmission
      -data <bits> -key <bits> -error-type <none|single|double|odd|burst>
      -error-count <n> -delay <seconds> -loss <percent>
  ensure                                Ask the simulator to start its nodes
  failure                               Toggle simulated failure mode
  shutdown <id|source|destination>      Shut a node down
  console [-wait d] <command> [target]  Send a master console command
  history [limit]                       List recorded transmissions
  audit [-action a] [-status s] [-target t] [-since d] [limit]
                                        Show recent operator actions, newest first
  audit verify | audit stats            Verify or describe the audit file
  status                                Show selection and collaborator state
  log                                   Show the operator log, newest first
  exit                                  Quit
`)
}

// apply settles msg against the session and prints the log lines it added
func (cli *CLI) apply(msg session.Msg) []session.LogLine {
	before := cli.state.Log
	cli.state = cli.app.Runner.Settle(cli.ctx, cli.app.Core, cli.state, msg)
	cli.app.Observe(cli.state)

	added := appended(before, cli.state.Log)
	for _, l := range added {
		fmt.Fprintln(cli.out, l)
	}
	return added
}

// appended returns the lines of after that follow the last line of before.
// The log is capped, so a plain length comparison is not enough.
func appended(before, after []session.LogLine) []session.LogLine {
	if len(before) == 0 {
		return after
	}
	last := before[len(before)-1]
	for i := len(after) - 1; i >= 0; i-- {
		if after[i] == last {
			return after[i+1:]
		}
	}
	return after
}

// check fails when any added line is a warning or worse
func (cli *CLI) check(lines []session.LogLine) error {
	for _, l := range lines {
		if l.Level >= logging.WarnLevel {
			return errReported
		}
	}
	return nil
}

func (cli *CLI) ensureTopology() error {
	if cli.state.Registry.Len() > 0 {
		return nil
	}
	return cli.check(cli.apply(session.RequestRefresh{}))
}

func (cli *CLI) nodes() error {
	if err := cli.check(cli.apply(session.RequestRefresh{})); err != nil {
		return err
	}

	sel := cli.state.Selection.Selection()
	src, hasSrc := sel.Source()
	dst, hasDst := sel.Destination()

	fmt.Fprintf(cli.out, "%-8s %-10s %-16s %s\n", "ID", "STATUS", "POSITION", "ROLE")
	for _, n := range cli.state.Registry.Nodes() {
		role := ""
		switch {
		case hasSrc && n.ID == src:
			role = "source"
		case hasDst && n.ID == dst:
			role = "destination"
		}
		pos := fmt.Sprintf("(%.0f, %.0f)", n.Position.X, n.Position.Y)
		fmt.Fprintf(cli.out, "%-8d %-10s %-16s %s\n", n.ID, n.Status, pos, role)
	}
	fmt.Fprintf(cli.out, "\n%d node(s)\n", cli.state.Registry.Len())
	return nil
}

func (cli *CLI) selectPair(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: select <source> <destination>")
	}
	src, err := parseID(args[0])
	if err != nil {
		return err
	}
	dst, err := parseID(args[1])
	if err != nil {
		return err
	}
	if err := cli.ensureTopology(); err != nil {
		return err
	}

	if cli.state.Selection.State() != selection.Empty {
		cli.apply(session.ClickBackground{})
	}
	if err := cli.check(cli.apply(session.ClickNode{ID: src})); err != nil {
		return err
	}
	return cli.check(cli.apply(session.ClickNode{ID: dst}))
}

func (cli *CLI) simulate(args []string) error {
	defaults := cli.app.Config.Simulation

	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	fs.SetOutput(cli.out)
	data := fs.String("data", "", "Bit string to transmit")
	key := fs.String("key", "", "CRC generator key (default "+defaults.Key+")")
	errorType := fs.String("error-type", string(defaults.ErrorType), "Error model")
	errorCount := fs.String("error-count", "", "Bits to corrupt")
	delay := fs.String("delay", "", "Transmission delay in seconds")
	loss := fs.String("loss", "", "Packet loss percentage")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() > 0 {
		if err := cli.selectPair(fs.Args()); err != nil {
			return err
		}
	}

	msg := cli.app.Start(app.FormInput{
		Data:       *data,
		Key:        *key,
		ErrorCount: *errorCount,
		Delay:      *delay,
		PacketLoss: *loss,
		ErrorType:  simulation.ErrorType(*errorType),
	})
	if err := cli.check(cli.apply(msg)); err != nil {
		return err
	}
	if cli.state.LatestResult == nil {
		return errReported
	}

	res := *cli.state.LatestResult
	fmt.Fprintf(cli.out, "verdict: %s\n", simulation.Interpret(res))
	return nil
}

func (cli *CLI) shutdown(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: shutdown <id|source|destination>")
	}

	var role selection.Role
	switch args[0] {
	case "source":
		role = selection.RoleSource
	case "destination":
		role = selection.RoleDestination
	default:
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := cli.ensureTopology(); err != nil {
			return err
		}
		if cli.state.Selection.State() != selection.Empty {
			cli.apply(session.ClickBackground{})
		}
		if err := cli.check(cli.apply(session.ClickNode{ID: id})); err != nil {
			return err
		}
		role = selection.RoleSource
	}

	return cli.check(cli.apply(session.RequestShutdown{Role: role}))
}

func (cli *CLI) console(args []string) error {
	fs := flag.NewFlagSet("console", flag.ContinueOnError)
	fs.SetOutput(cli.out)
	wait := fs.Duration("wait", time.Second, "How long to wait for replies")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		return errors.New("usage: console [-wait d] <command> [target]")
	}

	target := console.TargetAll
	if fs.NArg() == 2 {
		target = fs.Arg(1)
	}

	if err := cli.check(cli.apply(session.SendConsoleCommand{Command: fs.Arg(0), Target: target})); err != nil {
		return err
	}
	cli.waitConsole(*wait)
	return nil
}

// waitConsole feeds master frames into the session until wait elapses
func (cli *CLI) waitConsole(wait time.Duration) {
	c := cli.app.Console
	if c == nil {
		return
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		select {
		case f, ok := <-c.Frames():
			if !ok {
				return
			}
			cli.apply(session.ConsoleMessage{Frame: f})
		case <-timer.C:
			return
		}
	}
}

// pollConsole applies frames that arrived while the prompt was idle
func (cli *CLI) pollConsole() {
	c := cli.app.Console
	if c == nil {
		return
	}
	for {
		select {
		case f, ok := <-c.Frames():
			if !ok {
				return
			}
			cli.apply(session.ConsoleMessage{Frame: f})
		default:
			return
		}
	}
}

func (cli *CLI) history(args []string) error {
	limit := cli.app.Config.History.Limit
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid limit: %s", args[0])
		}
		limit = n
	}

	entries, err := cli.app.History.List(cli.ctx, limit)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(cli.out, "No transmissions recorded")
		return nil
	}

	fmt.Fprintf(cli.out, "%-20s %-10s %-16s %-8s %-10s %s\n", "TIME", "ROUTE", "DATA", "KEY", "ERROR", "VERDICT")
	for _, e := range entries {
		cli.printEntry(e)
	}
	return nil
}

func (cli *CLI) printEntry(e history.Entry) {
	route := fmt.Sprintf("%d->%d", e.Request.SourceID, e.Request.DestinationID)
	errDesc := fmt.Sprintf("%s x%d", e.Request.ErrorParams.ErrorType, e.Request.ErrorParams.ErrorCount)
	fmt.Fprintf(cli.out, "%-20s %-10s %-16s %-8s %-10s %s\n",
		e.RecordedAt.Local().Format("2006-01-02 15:04:05"),
		route,
		truncate(e.Request.Data, 16),
		e.Request.Key,
		errDesc,
		e.Verdict,
	)
}

func (cli *CLI) audit(args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "verify":
			return cli.auditVerify()
		case "stats":
			return cli.auditStats()
		}
	}

	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	fs.SetOutput(cli.out)
	action := fs.String("action", "", "Only this action (simulate, ensure_nodes, toggle_failure, shutdown_node, console_command)")
	status := fs.String("status", "", "Only this outcome (success or failure)")
	target := fs.String("target", "", "Only this target (node id, src->dst or all)")
	since := fs.Duration("since", 0, "Only actions newer than this")
	if err := fs.Parse(args); err != nil {
		return err
	}

	limit := 20
	if fs.NArg() > 0 {
		n, err := strconv.Atoi(fs.Arg(0))
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid limit: %s", fs.Arg(0))
		}
		limit = n
	}

	filter := audit.Filter{
		Action: audit.Action(*action),
		Target: *target,
		Status: audit.Status(*status),
	}
	if filter.Status != "" && filter.Status != audit.StatusSuccess && filter.Status != audit.StatusFailure {
		return fmt.Errorf("invalid status: %s", *status)
	}
	if *since > 0 {
		start := time.Now().Add(-*since)
		filter.StartTime = &start
	}

	events := cli.app.Audit.GetRecentEvents(limit, &filter)
	if len(events) == 0 {
		fmt.Fprintln(cli.out, "No operator actions recorded")
		return nil
	}

	fmt.Fprintf(cli.out, "%-20s %-16s %-10s %-8s %s\n", "TIME", "ACTION", "TARGET", "STATUS", "ERROR")
	for _, e := range events {
		fmt.Fprintf(cli.out, "%-20s %-16s %-10s %-8s %s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Action,
			e.Target,
			e.Status,
			e.ErrorMessage,
		)
	}
	return nil
}

var errNoAuditFile = errors.New("no audit file: set audit.dir")

func (cli *CLI) auditVerify() error {
	path := cli.app.AuditFile()
	if path == "" {
		return errNoAuditFile
	}
	if _, err := audit.VerifyIntegrity(path); err != nil {
		return fmt.Errorf("audit file %s: %w", path, err)
	}
	fmt.Fprintf(cli.out, "%s: hash chain intact\n", path)
	return nil
}

func (cli *CLI) auditStats() error {
	stats, ok := cli.app.AuditStats()
	if !ok {
		return errNoAuditFile
	}
	fmt.Fprintf(cli.out, "Audit dir:     %s\n", cli.app.Config.Audit.Dir)
	fmt.Fprintf(cli.out, "Current file:  %s\n", stats.CurrentFile)
	fmt.Fprintf(cli.out, "Events:        %d (current file)\n", stats.TotalEvents)
	fmt.Fprintf(cli.out, "Files:         %d\n", stats.TotalFiles)
	fmt.Fprintf(cli.out, "Total size:    %d bytes\n", stats.TotalSize)
	fmt.Fprintf(cli.out, "Last rotation: %s\n", stats.LastRotation.Local().Format(time.RFC3339))
	return nil
}

func (cli *CLI) printStatus() {
	sel := cli.state.Selection.Selection()
	fmt.Fprintf(cli.out, "Collaborator: %s\n", cli.app.Client.BaseURL())
	fmt.Fprintf(cli.out, "Nodes:        %d\n", cli.state.Registry.Len())
	fmt.Fprintf(cli.out, "Selection:    %s\n", sel.State())
	if id, ok := sel.Source(); ok {
		fmt.Fprintf(cli.out, "  source:      %d\n", id)
	}
	if id, ok := sel.Destination(); ok {
		fmt.Fprintf(cli.out, "  destination: %d\n", id)
	}
	fmt.Fprintf(cli.out, "Failure mode: %t\n", cli.state.FailureMode)
	if !cli.state.LastRefresh.IsZero() {
		fmt.Fprintf(cli.out, "Refreshed:    %s\n", cli.state.LastRefresh.Local().Format(time.TimeOnly))
	}
	if err := cli.state.LastRefreshErr; err != nil {
		fmt.Fprintf(cli.out, "Last error:   %v\n", err)
	}
	fmt.Fprintf(cli.out, "Console:      %t\n", cli.app.Console != nil)
	if path := cli.app.AuditFile(); path != "" {
		fmt.Fprintf(cli.out, "Audit file:   %s\n", path)
	}
}

func parseID(s string) (topology.NodeID, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid node id %q", s)
	}
	return topology.NodeID(id), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
