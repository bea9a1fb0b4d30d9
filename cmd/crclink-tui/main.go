package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dd0wney/crclink/pkg/app"
	"github.com/dd0wney/crclink/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	noConsole := flag.Bool("no-console", false, "Do not connect to the master console")
	flag.Parse()

	if err := run(*configPath, !*noConsole); err != nil {
		log.Fatalf("Error running program: %v", err)
	}
}

func run(configPath string, withConsole bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, app.Options{Interactive: true, Console: withConsole})
	if err != nil {
		return fmt.Errorf("start console: %w", err)
	}
	defer a.Close(context.Background())

	a.Serve()

	p := tea.NewProgram(newModel(ctx, a), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}
