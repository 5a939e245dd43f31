package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	tea "github.com/charmbracelet/bubbletea"
)

type ConsoleConfig struct {
	APIBaseURL string        `env:"API_BASE_URL" envDefault:"http://localhost:8080"`
	Timeout    time.Duration `env:"API_TIMEOUT" envDefault:"60s"`
	StoryFile  string        `env:"STORY_FILE_PATH"`
	ScriptFile string        `env:"CSHARP_FILE_PATH"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func main() {
	cfg, err := env.ParseAs[ConsoleConfig]()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
	}

	if !testConnection(client, cfg.APIBaseURL) {
		fmt.Fprintf(os.Stderr, "Could not connect to API. Please ensure the API is running.\nTry: go run ./cmd/api\n")
		os.Exit(1)
	}

	ui := NewConsoleUI(&cfg, client)
	p := tea.NewProgram(ui,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	final, err := p.Run()
	if m, ok := final.(ConsoleUI); ok && m.conn != nil {
		_ = m.conn.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
