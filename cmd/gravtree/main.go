package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/gravtree/internal/distgrav"
	"github.com/san-kum/gravtree/internal/gconfig"
	"github.com/san-kum/gravtree/internal/gravlog"
	"github.com/san-kum/gravtree/internal/gravstore"
	"github.com/san-kum/gravtree/internal/gravtree"
	"github.com/san-kum/gravtree/internal/graviz"
	"github.com/san-kum/gravtree/internal/interaction"
	"github.com/san-kum/gravtree/internal/loadbalance"
	"github.com/san-kum/gravtree/internal/particle"
	"github.com/san-kum/gravtree/internal/scenario"
	"github.com/san-kum/gravtree/internal/simrank"
	"github.com/san-kum/gravtree/internal/splitter"
)

var (
	dataDir     string
	theta       float64
	minAccel    float64
	g           float64
	softening   float64
	maxExport   int
	splitKind   string
	numRanks    int
	lbDepth     int
	configFile  string
	presetGroup string
	presetName  string
	monitor     bool
)

// main is the entry point for the gravtree CLI; it registers the build,
// walk, bench, and ranks subcommands and executes the root command, the
// way cmd/dynsim/main.go builds rootCmd.
func main() {
	rootCmd := &cobra.Command{
		Use:   "gravtree",
		Short: "distributed Barnes-Hut gravity solver",
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".gravtree", "data directory")
	rootCmd.PersistentFlags().Float64Var(&theta, "theta", gconfig.DefaultTheta, "Barnes-Hut opening angle")
	rootCmd.PersistentFlags().Float64Var(&minAccel, "min-accel", gconfig.DefaultMinAccel, "acceleration-criterion threshold (0 disables)")
	rootCmd.PersistentFlags().Float64Var(&g, "g", gconfig.DefaultG, "gravitational constant")
	rootCmd.PersistentFlags().Float64Var(&softening, "softening", gconfig.DefaultSoftening, "Plummer softening length")
	rootCmd.PersistentFlags().IntVar(&maxExport, "max-export", gconfig.DefaultMaxExport, "export buffer capacity per round")
	rootCmd.PersistentFlags().StringVar(&splitKind, "split-kind", string(splitter.BarnesHutKind), "splitter: barnes-hut or acceleration")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&presetGroup, "preset-group", "", "preset group (serial or parallel)")
	rootCmd.PersistentFlags().StringVar(&presetName, "preset", "", "preset name within --preset-group")

	buildCmd := &cobra.Command{
		Use:   "build [scenario]",
		Short: "build the serial tree for a scenario and report its shape",
		Args:  cobra.ExactArgs(1),
		RunE:  runBuild,
	}

	walkCmd := &cobra.Command{
		Use:   "walk [scenario]",
		Short: "build and walk a scenario serially, printing accelerations",
		Args:  cobra.ExactArgs(1),
		RunE:  runWalk,
	}

	benchCmd := &cobra.Command{
		Use:   "bench [scenario]",
		Short: "benchmark a scenario and persist the result",
		Args:  cobra.ExactArgs(1),
		RunE:  runBench,
	}

	ranksCmd := &cobra.Command{
		Use:   "ranks [scenario]",
		Short: "run a scenario distributed across simulated ranks",
		Args:  cobra.ExactArgs(1),
		RunE:  runRanks,
	}
	ranksCmd.Flags().IntVar(&numRanks, "ranks", gconfig.DefaultNumRanks, "number of simulated ranks")
	ranksCmd.Flags().IntVar(&lbDepth, "lb-depth", gconfig.DefaultLoadBalanceDepth, "load-balance tree depth")
	ranksCmd.Flags().BoolVar(&monitor, "monitor", false, "show the live round monitor")

	presetsCmd := &cobra.Command{
		Use:   "presets [group]",
		Short: "list available configuration presets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := gconfig.ListPresets(args[0])
			if len(names) == 0 {
				fmt.Printf("no presets for group: %s\n", args[0])
				return nil
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list bench runs",
		RunE:  runList,
	}

	rootCmd.AddCommand(buildCmd, walkCmd, benchCmd, ranksCmd, presetsCmd, listCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfig layers defaults, an optional preset, an optional config
// file, and the CLI flags the user actually set, in that order -- the same
// precedence runSimulation uses in the teacher.
func resolveConfig(cmd *cobra.Command) (*gconfig.Config, error) {
	cfg := gconfig.DefaultConfig()

	if presetGroup != "" && presetName != "" {
		p := gconfig.GetPreset(presetGroup, presetName)
		if p == nil {
			return nil, fmt.Errorf("unknown preset %s/%s", presetGroup, presetName)
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := gconfig.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("theta") {
		cfg.Theta = theta
	}
	if cmd.Flags().Changed("min-accel") {
		cfg.MinAccel = minAccel
	}
	if cmd.Flags().Changed("g") {
		cfg.G = g
	}
	if cmd.Flags().Changed("softening") {
		cfg.Softening = softening
	}
	if cmd.Flags().Changed("max-export") {
		cfg.MaxExport = maxExport
	}
	if cmd.Flags().Changed("split-kind") {
		cfg.SplitKind = splitter.Kind(splitKind)
	}
	return cfg, nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	reg := scenario.NewRegistry()
	c, domainMin, domainMax, err := reg.Build(args[0])
	if err != nil {
		return err
	}

	tree, err := gravtree.New(c.Dim, 64)
	if err != nil {
		return err
	}
	if err := tree.BuildInDomain(c, domainMin, domainMax); err != nil {
		return err
	}

	fmt.Printf("scenario: %s\n", args[0])
	fmt.Printf("particles: %d\n", c.N())
	fmt.Printf("nodes used: %d\n", tree.Pool.Used())
	fmt.Printf("root width: %.6f\n", tree.Pool.Node(tree.Root).Width)
	return nil
}

func runWalk(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	reg := scenario.NewRegistry()
	c, domainMin, domainMax, err := reg.Build(args[0])
	if err != nil {
		return err
	}

	tree, err := gravtree.New(c.Dim, 64)
	if err != nil {
		return err
	}
	if err := tree.BuildInDomain(c, domainMin, domainMax); err != nil {
		return err
	}

	s, err := splitter.New(cfg.SplitKind, cfg.Theta, cfg.MinAccel, cfg.G)
	if err != nil {
		return err
	}
	ia := interaction.NewMonopole(cfg.G)
	ia.Softening = cfg.Softening

	tree.Walk(c, s, ia)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PARTICLE\tMASS\tACCELERATION")
	for i := 0; i < c.N(); i++ {
		fmt.Fprintf(w, "%d\t%.4f\t%v\n", i, c.Mass[i], accOf(c, i))
	}
	return w.Flush()
}

func accOf(c *particle.Container, i int) []float64 {
	a := make([]float64, c.Dim)
	for k := 0; k < c.Dim; k++ {
		a[k] = c.Acc[k][i]
	}
	return a
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	reg := scenario.NewRegistry()
	c, domainMin, domainMax, err := reg.Build(args[0])
	if err != nil {
		return err
	}

	tree, err := gravtree.New(c.Dim, 64)
	if err != nil {
		return err
	}
	start := time.Now()
	if err := tree.BuildInDomain(c, domainMin, domainMax); err != nil {
		return err
	}
	s, err := splitter.New(cfg.SplitKind, cfg.Theta, cfg.MinAccel, cfg.G)
	if err != nil {
		return err
	}
	ia := interaction.NewMonopole(cfg.G)
	ia.Softening = cfg.Softening
	tree.Walk(c, s, ia)
	elapsed := time.Since(start)

	st := gravstore.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	meta := gravstore.RunMetadata{
		Dim: c.Dim, Parallel: false, NumRanks: 1,
		SplitKind: string(cfg.SplitKind), Theta: cfg.Theta, MaxExport: cfg.MaxExport,
		Metrics: map[string]float64{"elapsed_ms": float64(elapsed.Milliseconds()), "particles": float64(c.N())},
	}
	runID, err := st.Save(args[0], meta, c)
	if err != nil {
		return err
	}

	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("elapsed: %v\n", elapsed)
	return plotBenchResult(st, runID)
}

func runRanks(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	gravlog.ConfigureDefault(logrus.InfoLevel)
	if !cmd.Flags().Changed("ranks") {
		numRanks = cfg.NumRanks
	}
	if !cmd.Flags().Changed("lb-depth") {
		lbDepth = cfg.LoadBalanceDepth
	}

	reg := scenario.NewRegistry()
	global, domainMin, domainMax, err := reg.Build(args[0])
	if err != nil {
		return err
	}

	lb, err := loadbalance.NewSimple(global.Dim, domainMin, domainMax, lbDepth, numRanks)
	if err != nil {
		return err
	}

	perRank, err := partitionByLoadBalance(lb, global, numRanks)
	if err != nil {
		return err
	}

	simCfg := simrank.Config{
		Dim: global.Dim, NumRanks: numRanks, SplitKind: cfg.SplitKind,
		Theta: cfg.Theta, MinAccel: cfg.MinAccel, G: cfg.G,
		MaxExport: cfg.MaxExport, InitialPoolCapacity: 64,
	}

	ctx := context.Background()
	if monitor {
		events := make(chan distgrav.RoundEvent, 64)
		errCh := make(chan error, 1)
		go func() {
			errCh <- simrank.RunWithEvents(ctx, simCfg, lb, perRank, cfg.Softening, events)
			close(events)
		}()
		if err := graviz.Run(graviz.NewMonitor(numRanks, events)); err != nil {
			return err
		}
		if err := <-errCh; err != nil {
			return err
		}
	} else if err := simrank.Run(ctx, simCfg, lb, perRank, cfg.Softening); err != nil {
		return err
	}

	for rank, c := range perRank {
		fmt.Printf("rank %d: %d particles\n", rank, c.N())
		for i := 0; i < c.N(); i++ {
			fmt.Printf("  particle %d: a=%v\n", i, accOf(c, i))
		}
	}
	return nil
}

// partitionByLoadBalance assigns every global particle its SFC key and
// groups particles by the load-balance leaf that key falls into, the
// precondition spec §6 assumes distgrav.Prepare's caller has already met.
func partitionByLoadBalance(lb *loadbalance.Simple, global *particle.Container, numRanks int) ([]*particle.Container, error) {
	keys := make([]uint64, global.N())
	perRankIdx := make([][]int, numRanks)
	for i := 0; i < global.N(); i++ {
		key := lb.Key(global.Position(i))
		keys[i] = key
		leaf, ok := lb.FindLeaf(key)
		if !ok {
			return nil, fmt.Errorf("gravtree: particle %d: key %d has no load-balance leaf", i, key)
		}
		perRankIdx[leaf.Rank] = append(perRankIdx[leaf.Rank], i)
	}

	perRank := make([]*particle.Container, numRanks)
	for rank, idxs := range perRankIdx {
		c, err := particle.New(global.Dim, len(idxs))
		if err != nil {
			return nil, err
		}
		c.Key = make([]uint64, len(idxs))
		for li, gi := range idxs {
			c.SetPosition(li, global.Position(gi))
			c.Mass[li] = global.Mass[gi]
			c.Key[li] = keys[gi]
		}
		perRank[rank] = c
	}
	return perRank, nil
}

func runList(cmd *cobra.Command, args []string) error {
	st := gravstore.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDIM\tPARALLEL\tRANKS\tTHETA\tTIME")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%d\t%v\t%d\t%.3f\t%s\n", r.ID, r.Dim, r.Parallel, r.NumRanks, r.Theta, r.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}
