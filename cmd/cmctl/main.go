package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/cmctl/internal/automation"
	"github.com/san-kum/cmctl/internal/channel"
	"github.com/san-kum/cmctl/internal/config"
	"github.com/san-kum/cmctl/internal/models"
	"github.com/san-kum/cmctl/internal/storage"
	"github.com/san-kum/cmctl/internal/tui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	configFile string
	address    string
	logLevel   string
	dataDir    string
	product    string
	// send
	timeoutMs int
	// start
	pickerMode string
	poll       bool
	// poll
	theme string
	// ping
	count    int
	interval time.Duration
	// script
	noSave bool
	// config init
	preset string
)

// main registers the cmctl commands and exits with status 1 when the
// selected command fails.
func main() {
	rootCmd := &cobra.Command{
		Use:           "cmctl",
		Short:         "start and supervise simulations in a running GUI process",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "cmctl.yaml", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&address, "addr", "", "GUI process address (overrides remote.address)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides log.level)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "data directory (overrides data_dir)")
	rootCmd.PersistentFlags().StringVar(&product, "product", "", "product variant (overrides product)")

	sendCmd := &cobra.Command{
		Use:   "send [command] [args...]",
		Short: "send one command and print its result",
		Args:  cobra.MinimumNArgs(1),
		RunE:  sendCommand,
	}
	sendCmd.Flags().IntVar(&timeoutMs, "timeout-ms", -1, "-1 blocks, 0 does not wait, >0 bounds the wait")

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "resolve, prepare and start a model",
		Args:  cobra.NoArgs,
		RunE:  startModel,
	}
	startCmd.Flags().StringVar(&pickerMode, "picker", "", "model picker: line, tui or none (overrides picker.mode)")
	startCmd.Flags().BoolVar(&poll, "poll", false, "keep the liveness poller running during startup")

	pollCmd := &cobra.Command{
		Use:   "poll",
		Short: "monitor the engine running flag",
		Args:  cobra.NoArgs,
		RunE:  monitor,
	}
	pollCmd.Flags().StringVar(&theme, "theme", "cyberpunk", "color theme ("+strings.Join(tui.ThemeNames(), ", ")+")")

	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "measure command round trips",
		Args:  cobra.NoArgs,
		RunE:  ping,
	}
	pingCmd.Flags().IntVar(&count, "count", 10, "number of round trips")
	pingCmd.Flags().DurationVar(&interval, "interval", 200*time.Millisecond, "pause between round trips")

	scriptCmd := &cobra.Command{
		Use:   "script [scenario.yaml]",
		Short: "run a command scenario and record its transcript",
		Args:  cobra.ExactArgs(1),
		RunE:  runScript,
	}
	scriptCmd.Flags().BoolVar(&noSave, "no-save", false, "do not record the transcript")

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "list recorded transcripts",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "print a recorded transcript",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list declared models",
		Args:  cobra.NoArgs,
		RunE:  listModels,
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "print the effective configuration",
		Args:  cobra.NoArgs,
		RunE:  printConfig,
	}

	configGetCmd := &cobra.Command{
		Use:   "get [section] [key]",
		Short: "print one configuration value",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  getConfig,
	}

	configInitCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write a config file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  initConfig,
	}
	configInitCmd.Flags().StringVar(&preset, "preset", "", "start from a preset of the selected product")

	configCmd.AddCommand(configGetCmd, configInitCmd)

	presetsCmd := &cobra.Command{
		Use:   "presets [product]",
		Short: "list available presets for a product",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			products := models.Products()
			if len(args) > 0 {
				products = args
			}
			for _, p := range products {
				presets := config.ListPresets(p)
				if len(presets) == 0 {
					fmt.Printf("no presets for product: %s\n", p)
					continue
				}
				fmt.Printf("presets for %s:\n", p)
				for _, name := range presets {
					fmt.Printf("  %s\n", name)
				}
			}
			return nil
		},
	}

	rootCmd.AddCommand(sendCmd, startCmd, pollCmd, pingCmd, scriptCmd, runsCmd, showCmd, modelsCmd, configCmd, presetsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func sendCommand(cmd *cobra.Command, args []string) error {
	c, err := channel.ParseCommand(args[0], args[1:])
	if err != nil {
		return err
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	res := a.sess.Send(cmd.Context(), c, channel.TimeoutFromMillis(timeoutMs))
	if res.Value != "" {
		fmt.Println(res.Value)
	}
	if !res.OK() {
		return fmt.Errorf("%s: %w", channel.Format(c), res.Err())
	}
	return nil
}

func startModel(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	if poll {
		a.sess.StartPoller(cmd.Context())
	}

	out := a.machine().Run(cmd.Context())

	path := make([]string, len(out.Path))
	for i, s := range out.Path {
		path[i] = s.String()
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "path\t%s\n", strings.Join(path, " -> "))
	fmt.Fprintf(w, "model\t%s\n", out.ActivatedModel)
	if out.Fallback {
		fmt.Fprintf(w, "fallback\tyes\n")
	}
	if out.LastError != "" {
		fmt.Fprintf(w, "error\t%s\n", out.LastError)
	}
	if poll {
		fmt.Fprintf(w, "engine\t%s\n", runningLabel(a.sess.EngineRunning()))
	}
	return w.Flush()
}

func monitor(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	a.sess.StartPoller(cmd.Context())
	return tui.Run(cmd.Context(), a.sess, a.cfg.Remote.Address, tui.GetTheme(theme))
}

func ping(cmd *cobra.Command, args []string) error {
	if count <= 0 {
		return fmt.Errorf("count must be positive")
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	rtts := make([]float64, 0, count)
	failures := 0

	for i := 0; i < count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}

		start := time.Now()
		res := a.sess.Send(ctx, channel.Version{}, 2*time.Second)
		rtt := float64(time.Since(start).Microseconds()) / 1000

		if !res.OK() {
			failures++
			fmt.Printf("%d: %s %s\n", i+1, res.Status, res.Value)
			continue
		}
		rtts = append(rtts, rtt)
		fmt.Printf("%d: version=%s time=%.2fms\n", i+1, res.Value, rtt)
	}

	fmt.Println()
	if len(rtts) == 0 {
		return fmt.Errorf("no replies from %s", a.cfg.Remote.Address)
	}

	minRTT, maxRTT, sum := rtts[0], rtts[0], 0.0
	for _, v := range rtts {
		minRTT = min(minRTT, v)
		maxRTT = max(maxRTT, v)
		sum += v
	}

	if len(rtts) > 1 {
		graph := asciigraph.Plot(rtts,
			asciigraph.Height(10),
			asciigraph.Width(60),
			asciigraph.Caption("round trip (ms)"),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	fmt.Printf("%d sent, %d ok, %d failed\n", count, len(rtts), failures)
	fmt.Printf("min/avg/max = %.2f/%.2f/%.2f ms\n", minRTT, sum/float64(len(rtts)), maxRTT)
	return nil
}

func runScript(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	if scenario.Description != "" {
		fmt.Println(scenario.Description)
	}

	results, runErr := automation.RunScenario(cmd.Context(), scenario, a.sess, os.Stdout)
	fmt.Println()
	if err := printEntries(results); err != nil {
		return err
	}

	passed, failed := automation.Stats(results)
	fmt.Printf("\n%d passed, %d failed\n", passed, failed)

	if !noSave && len(results) > 0 {
		st := storage.New(a.cfg.DataDir)
		if err := st.Init(); err != nil {
			return err
		}
		name := scenario.Name
		if name == "" {
			name = strings.TrimSuffix(args[0], ".yaml")
		}
		runID, err := st.Save(storage.RunMetadata{Scenario: name, Address: a.cfg.Remote.Address}, results)
		if err != nil {
			return err
		}
		fmt.Printf("saved: %s\n", runID)
	}

	if runErr != nil {
		return runErr
	}
	if failed > 0 {
		return fmt.Errorf("%d step(s) failed", failed)
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	runs, err := storage.New(cfg.DataDir).List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tSTEPS\tPASSED\tFAILED\tELAPSED")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%.1fms\n",
			run.ID,
			run.Scenario,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Steps,
			run.Passed,
			run.Failed,
			run.Elapsed,
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st := storage.New(cfg.DataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	entries, err := st.LoadEntries(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n", meta.Scenario)
	fmt.Printf("address: %s\n\n", meta.Address)
	return printEntries(entries)
}

func printEntries(entries []storage.Entry) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tCOMMAND\tSTATUS\tVALUE\tTIME\tPASS")
	for _, e := range entries {
		mark := "ok"
		if !e.Passed {
			mark = "FAIL"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.2fms\t%s\n",
			e.Index, e.Command, e.Status, oneLine(e.Value), e.ElapsedMs, mark)
	}
	return w.Flush()
}

func listModels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	host := models.NewHost(cfg.Models, nil, nil)
	fallback := models.Fallback(cfg.Product)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tLOCKED\tLOADED\tNOTE")
	for _, d := range host.List() {
		note := ""
		switch {
		case d.Name == fallback:
			note = "placeholder (" + cfg.Product + ")"
		case models.IsFallback(d.Name):
			continue
		}
		fmt.Fprintf(w, "%s\t%t\t%t\t%s\n", d.Name, d.Locked, d.Loaded, note)
	}
	return w.Flush()
}

func printConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

func getConfig(cmd *cobra.Command, args []string) error {
	store, err := newStore()
	if err != nil {
		return err
	}
	section, key := "", args[0]
	if len(args) == 2 {
		section, key = args[0], args[1]
	}
	fmt.Println(store.Get(section, key))
	return nil
}

func initConfig(cmd *cobra.Command, args []string) error {
	path := configFile
	if len(args) > 0 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	cfg := config.DefaultConfig()
	if product != "" {
		cfg.Product = product
	}
	if preset != "" {
		p := config.GetPreset(cfg.Product, preset)
		if p == nil {
			return fmt.Errorf("unknown preset %q for %s", preset, cfg.Product)
		}
		copied := *p
		cfg = &copied
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func runningLabel(running bool) string {
	if running {
		return "running"
	}
	return "not running"
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 60 {
		return s[:57] + "..."
	}
	return s
}
