package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lankasat/lankasat-live/internal/adapter/floodapi"
	"github.com/lankasat/lankasat-live/internal/adapter/groq"
	"github.com/lankasat/lankasat-live/internal/dashboard"
	"github.com/lankasat/lankasat-live/internal/layers"
	"github.com/lankasat/lankasat-live/internal/shelters"
	"github.com/spf13/cobra"
)

func addPanelCmds(rootCmd *cobra.Command) {
	rootCmd.AddCommand(
		layersCmd(),
		tileURLCmd(),
		weatherCmd(),
		floodCmd(),
		reliefCmd(),
		sheltersCmd(),
		chatCmd(),
	)
}

func layersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "layers",
		Short: "List the renderable satellite layers",
		RunE: run(func(ctx context.Context, cmd *cobra.Command) error {
			list, err := client.Layers(ctx)
			if err != nil {
				return err
			}
			for _, l := range list {
				cmd.Println(fmt.Sprintf("%-16s %-24s [%s] %s", l.ID, l.Name, l.Category, l.Description))
			}
			return nil
		}),
	}
}

func tileURLCmd() *cobra.Command {
	var layerID, date string

	cmd := &cobra.Command{
		Use:   "tile-url",
		Short: "Print the XYZ tile URL template for a layer and date",
		Long: `Dates outside the imagery archive are clamped: before 2017-01-01
to the archive start, future dates to today.`,
		RunE: run(func(_ context.Context, cmd *cobra.Command) error {
			if err := requireUnlocked(); err != nil {
				return err
			}
			if !layers.Exists(layerID) {
				return fmt.Errorf("unknown layer %q, see 'lankasat layers'", layerID)
			}
			sel := dashboard.NewSelection(client.BaseURL(), layerID)
			if date != "" {
				sel.SetDate(date)
			}
			state := sel.Current()
			cmd.Println(fmt.Sprintf("Layer: %s  Date: %s", state.LayerID, state.Date))
			cmd.Println(sel.TileTemplate())
			return nil
		}),
	}
	cmd.Flags().StringVarP(&layerID, "layer", "l", "S2_TRUE_COLOR", "Layer ID")
	cmd.Flags().StringVarP(&date, "date", "d", "", "Imagery date (YYYY-MM-DD, default today)")
	return cmd
}

func weatherCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "weather",
		Short: "Show the island-wide weather summary",
		RunE: run(func(ctx context.Context, cmd *cobra.Command) error {
			summary, err := client.WeatherSummary(ctx)
			if err != nil {
				return err
			}

			cmd.Println(fmt.Sprintf("Monsoon: %s (active: %v)", summary.MonsoonStatus.Season, summary.MonsoonStatus.Active))
			cmd.Println(fmt.Sprintf("Flood risk: %s (%d locations with rain, max %.1f mm/h at %s)",
				summary.FloodRisk.OverallRisk, summary.FloodRisk.LocationsWithRain,
				summary.FloodRisk.MaxRainfallMMPerHour, summary.FloodRisk.MaxRainfallLocation))

			ids := make([]string, 0, len(summary.Locations))
			for id := range summary.Locations {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				lw := summary.Locations[id]
				cmd.Println(fmt.Sprintf("  %-14s %5.1f°C  %3d%% humidity  %s",
					lw.Name, lw.Current.Temperature, lw.Current.Humidity, lw.Current.Description))
			}

			for _, alert := range summary.Alerts {
				cmd.Println(fmt.Sprintf("! [%s] %s", strings.ToUpper(alert.Severity), alert.Message))
			}
			return nil
		}),
	}
}

func floodCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flood",
		Short: "Show the river gauge flood summary",
		RunE: run(func(ctx context.Context, cmd *cobra.Command) error {
			summary, err := client.FloodSummary(ctx)
			if err != nil {
				return err
			}
			printFloodSummary(cmd, summary)
			return nil
		}),
	}
}

func printFloodSummary(cmd *cobra.Command, summary floodapi.Summary) {
	cmd.Println(fmt.Sprintf("Overall risk: %s (%d stations, %d rising)",
		summary.OverallRisk, summary.TotalStations, summary.RisingCount))

	printStations := func(label string, stations []floodapi.StationBrief) {
		if len(stations) == 0 {
			return
		}
		cmd.Println(label + ":")
		for _, st := range stations {
			level := "n/a"
			if st.WaterLevel != nil {
				level = fmt.Sprintf("%.2fm", *st.WaterLevel)
			}
			cmd.Println(fmt.Sprintf("  %-22s %-18s %s %s", st.Name, st.River, level, st.Trend))
		}
	}
	printStations("Critical stations", summary.CriticalStations)
	printStations("High-risk stations", summary.HighRiskStations)
}

func reliefCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "relief [query]",
		Short: "Show or search the flood relief directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if len(args) == 1 {
				result, err := client.ReliefSearch(ctx, args[0])
				if err != nil {
					return err
				}
				cmd.Println(fmt.Sprintf("%d organizations match %q:", result.Count, result.Query))
				for _, org := range result.Results {
					cmd.Println(fmt.Sprintf("  %-36s [%s] %s", org.OrganizationName, org.Category, org.OrgLink))
				}
				return nil
			}

			dir, err := client.ReliefDirectory(ctx, refresh)
			if err != nil {
				return err
			}
			cmd.Println(fmt.Sprintf("%d organizations (updated %s)", dir.TotalOrganizations, dir.LastUpdated))
			for _, category := range dir.Categories {
				orgs := dir.Data[category]
				cmd.Println(fmt.Sprintf("%s (%d):", category, len(orgs)))
				for _, org := range orgs {
					cmd.Println("  " + org.OrganizationName)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Bypass the gateway's directory cache")
	return cmd
}

func sheltersCmd() *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "shelters",
		Short: "List registered flood shelters",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := client.Shelters(cmd.Context(), status, limit, 0)
			if err != nil {
				return err
			}
			cmd.Println(fmt.Sprintf("%d shelters:", list.Total))
			for _, s := range list.Shelters {
				capacity := "?"
				if s.Capacity != nil {
					capacity = fmt.Sprintf("%d", *s.Capacity)
				}
				cmd.Println(fmt.Sprintf("  %-28s (%.4f, %.4f)  capacity %-5s %s", s.Name, s.Lat, s.Lon, capacity, s.Status))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (active|full|closed)")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum shelters to list")

	cmd.AddCommand(shelterAddCmd())
	return cmd
}

func shelterAddCmd() *cobra.Command {
	var in shelters.CreateInput
	var capacity int

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new shelter under the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !lock.CanRegisterShelters() {
				return fmt.Errorf("registering shelters requires a session: run 'lankasat login' or 'lankasat guest'")
			}
			if capacity > 0 {
				in.Capacity = &capacity
			}
			created, err := client.CreateShelter(cmd.Context(), in)
			if err != nil {
				return err
			}
			cmd.Println(fmt.Sprintf("Registered shelter %s (%s)", created.Name, created.ID))
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "Shelter name")
	cmd.Flags().Float64Var(&in.Lat, "lat", 0, "Latitude")
	cmd.Flags().Float64Var(&in.Lon, "lon", 0, "Longitude")
	cmd.Flags().StringVar(&in.Description, "description", "", "Description")
	cmd.Flags().StringVar(&in.Address, "address", "", "Street address")
	cmd.Flags().StringVar(&in.ContactPhone, "phone", "", "Contact phone")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "Capacity in persons")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	return cmd
}

func chatCmd() *cobra.Command {
	var layerID, date string

	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Ask the flood analyst assistant a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dash *groq.DashboardContext
			if layerID != "" {
				sel := dashboard.NewSelection(client.BaseURL(), layerID)
				if date != "" {
					sel.SetDate(date)
				}
				state := sel.Current()
				dash = &groq.DashboardContext{
					Layer:            state.LayerID,
					Date:             state.Date,
					LayerDescription: layers.Get(state.LayerID).Description,
				}
			}

			reply, err := client.Chat(cmd.Context(), args[0], dash, nil)
			if err != nil {
				return err
			}
			cmd.Println(reply)
			return nil
		},
	}
	cmd.Flags().StringVarP(&layerID, "layer", "l", "", "Layer the question refers to")
	cmd.Flags().StringVarP(&date, "date", "d", "", "Imagery date the question refers to")
	return cmd
}
