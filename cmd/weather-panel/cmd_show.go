package main

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/i474232898/weather-panel/internal/config"
	"github.com/i474232898/weather-panel/internal/weather"
	"github.com/i474232898/weather-panel/internal/weather/providers"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Fetch once and print every variable",
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	conn := cfg.Connection.WithDefaults()
	if err := conn.Validate(); err != nil {
		return err
	}

	provider := providers.NewOpenWeatherProvider(&http.Client{Timeout: cfg.Provider.HTTPTimeout}, cfg.Provider.BaseURL)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	doc, err := provider.FetchCurrent(ctx, conn.Location, conn.APIKey)
	if err != nil {
		return err
	}

	vars := weather.MapVariables(doc, weather.MapOptions{
		Units:    conn.Units,
		Timezone: conn.Timezone,
		Now:      time.Now(),
	})

	ids := make([]string, 0, len(vars))
	for id := range vars {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := cmd.OutOrStdout()
	for _, id := range ids {
		fmt.Fprintf(out, "%-14s %s\n", id, vars[id])
	}
	return nil
}
