package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/lankasat/lankasat-live/internal/adapter/floodapi"
	"github.com/lankasat/lankasat-live/internal/adapter/openweather"
	"github.com/lankasat/lankasat-live/internal/dashboard"
	"github.com/lankasat/lankasat-live/internal/relief"
	"github.com/spf13/cobra"
)

func addWatchCmd(rootCmd *cobra.Command) {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Continuously monitor weather, river levels, and the relief directory",
		Long: `Polls the gateway on the same cadence as the map UI panels (weather
every 10 minutes, flood and relief every 5) and prints each update.
Press Ctrl+C to stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			weatherPoller := dashboard.NewPoller(func(ctx context.Context, _ bool) (openweather.Summary, error) {
				return client.WeatherSummary(ctx)
			}, dashboard.WeatherPollInterval)
			floodPoller := dashboard.NewPoller(func(ctx context.Context, _ bool) (floodapi.Summary, error) {
				return client.FloodSummary(ctx)
			}, dashboard.FloodPollInterval)
			reliefPoller := dashboard.NewPoller(func(ctx context.Context, force bool) (relief.Directory, error) {
				return client.ReliefDirectory(ctx, force)
			}, dashboard.ReliefPollInterval)

			weatherPoller.Subscribe(func(s dashboard.PanelState[openweather.Summary]) {
				if !s.Loading && !s.Refreshing {
					printPanel(cmd, "weather", s.Err, s.LastUpdated, func() {
						cmd.Println(fmt.Sprintf("  flood risk %s, %d locations reporting rain",
							s.Data.FloodRisk.OverallRisk, s.Data.FloodRisk.LocationsWithRain))
					})
				}
			})
			floodPoller.Subscribe(func(s dashboard.PanelState[floodapi.Summary]) {
				if !s.Loading && !s.Refreshing {
					printPanel(cmd, "flood", s.Err, s.LastUpdated, func() {
						cmd.Println(fmt.Sprintf("  overall risk %s, %d critical, %d rising",
							s.Data.OverallRisk, len(s.Data.CriticalStations), s.Data.RisingCount))
					})
				}
			})
			reliefPoller.Subscribe(func(s dashboard.PanelState[relief.Directory]) {
				if !s.Loading && !s.Refreshing {
					printPanel(cmd, "relief", s.Err, s.LastUpdated, func() {
						cmd.Println(fmt.Sprintf("  %d organizations in %d categories",
							s.Data.TotalOrganizations, len(s.Data.Categories)))
					})
				}
			})

			cmd.Println("Watching gateway " + client.BaseURL() + ". Press Ctrl+C to stop.")
			weatherPoller.Start(ctx)
			floodPoller.Start(ctx)
			reliefPoller.Start(ctx)

			<-ctx.Done()
			weatherPoller.Stop()
			floodPoller.Stop()
			reliefPoller.Stop()
			return nil
		},
	}
	rootCmd.AddCommand(watchCmd)
}

func printPanel(cmd *cobra.Command, name string, err error, at time.Time, body func()) {
	if err != nil {
		cmd.PrintErrln(fmt.Sprintf("[%s] %s: update failed: %v", at.Format("15:04:05"), name, err))
		return
	}
	cmd.Println(fmt.Sprintf("[%s] %s:", at.Format("15:04:05"), name))
	body()
}
