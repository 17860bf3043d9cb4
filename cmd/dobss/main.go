// Compute the optimal mixed strategy for a leader committing to a patrol
// (or any other policy) against a follower of unknown type.
package main

import (
	"context"
	"flag"
	"math"
	"math/rand"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/golang/glog"

	"github.com/timpalpant/dobss"
	"github.com/timpalpant/dobss/internal/config"
	"github.com/timpalpant/dobss/internal/gamefile"
	"github.com/timpalpant/dobss/milp/bnb"
)

type loadedGame struct {
	doc  *gamefile.Document
	game *dobss.Game
}

func main() {
	configPath := flag.String("config", "", "YAML config file")
	output := flag.String("output", "", "Directory (or .zip archive) to save YAML reports to")
	lpDir := flag.String("lp", "", "Directory to write the MILP of each game to, in LP format")
	numSamples := flag.Int("samples", 0, "Number of leader actions to sample from each equilibrium")
	verify := flag.Bool("verify", false, "Check each equilibrium against the multiple-LPs method")
	baselineIter := flag.Int("baseline_iter", 0, "Fictitious play iterations for the no-commitment baseline")
	bigM := flag.Float64("big_m", 0, "Big-M constant (0 derives it from the payoffs)")
	timeLimit := flag.Duration("time_limit", 0, "Time limit per game (0 for none)")
	parallelism := flag.Int("parallelism", 0, "Number of games to solve concurrently")
	seed := flag.Int64("seed", 0, "Random seed for sampling and fictitious play")
	debugAddr := flag.String("debug_addr", "", "Address to serve pprof and expvar on (e.g. localhost:4123)")
	flag.Parse()

	if *debugAddr != "" {
		go http.ListenAndServe(*debugAddr, nil)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		glog.Fatal(err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "big_m":
			cfg.Solver.BigM = *bigM
		case "time_limit":
			cfg.Solver.TimeLimit = *timeLimit
		case "parallelism":
			cfg.Batch.Parallelism = *parallelism
		case "baseline_iter":
			cfg.Baseline.Iterations = *baselineIter
		case "seed":
			cfg.Seed = *seed
		}
	})
	if err := cfg.Validate(); err != nil {
		glog.Fatal(err)
	}

	if flag.NArg() == 0 {
		glog.Fatal("Usage: dobss [flags] game.yaml [game2.yaml ...]")
	}

	games := make([]loadedGame, flag.NArg())
	names := make([]string, flag.NArg())
	for i, path := range flag.Args() {
		games[i] = mustLoadGame(path)
		names[i] = games[i].doc.Name
	}
	jobs := make([]dobss.Job, len(games))
	for i, id := range gamefile.UniqueIDs(names) {
		jobs[i] = dobss.Job{ID: id, Game: games[i].game}
	}

	if *lpDir != "" {
		for i, g := range games {
			if err := writeLP(g, jobs[i].ID, *lpDir, cfg.Solver.BigM); err != nil {
				glog.Fatal(err)
			}
		}
	}

	engine := bnb.New(bnb.Options{
		Tolerance:            cfg.Solver.Tolerance,
		IntegralityTolerance: cfg.Solver.IntegralityTolerance,
		MaxNodes:             cfg.Solver.MaxNodes,
	})
	solver := dobss.NewSolver(engine,
		dobss.WithBigM(cfg.Solver.BigM),
		dobss.WithTimeLimit(cfg.Solver.TimeLimit),
		dobss.WithCache(cfg.Batch.CacheSize))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	glog.Infof("Solving %d games with parallelism %d", len(jobs), cfg.Batch.Parallelism)
	outcomes, err := solver.SolveAll(ctx, jobs, cfg.Batch.Parallelism)
	if err != nil {
		glog.Fatal(err)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	archive := strings.HasSuffix(*output, ".zip")
	var reports []*gamefile.Report
	failed := 0
	for i, outcome := range outcomes {
		if outcome.Err != nil {
			glog.Errorf("[%s] %+v", outcome.ID, outcome.Err)
			failed++
			continue
		}

		eq := outcome.Equilibrium
		glog.Infof("[%s] %v (%d nodes, %v)", outcome.ID, eq, eq.Nodes(), outcome.Elapsed)
		report := gamefile.NewReport(games[i].doc, games[i].game, eq)
		report.JobID = outcome.ID
		report.ElapsedSeconds = outcome.Elapsed.Seconds()

		if *numSamples > 0 {
			samples := make([]int, *numSamples)
			for k := range samples {
				samples[k] = eq.Strategy().Sample(rng)
			}
			report.AddSamples(games[i].doc, samples)
		}

		if *verify {
			expected, err := dobss.SolveByEnumeration(ctx, engine, games[i].game)
			if err != nil {
				glog.Errorf("[%s] verification failed: %v", outcome.ID, err)
				failed++
				continue
			}
			report.Verification = &gamefile.Verification{
				LeaderUtility: expected.LeaderUtility(),
				Agrees:        agrees(eq.LeaderUtility(), expected.LeaderUtility()),
			}
			if !report.Verification.Agrees {
				glog.Errorf("[%s] leader utility %v does not match multiple LPs %v",
					outcome.ID, eq.LeaderUtility(), expected.LeaderUtility())
				failed++
			}
		}

		if cfg.Baseline.Iterations > 0 {
			baseline := dobss.FictitiousPlayBaseline(games[i].game,
				cfg.Baseline.Iterations, cfg.Baseline.MixingLambda, rng)
			glog.Infof("[%s] Without commitment the leader gets %v (strategy %v)",
				outcome.ID, baseline.LeaderUtility, baseline.Leader)
			report.Baseline = &gamefile.BaselineReport{
				Iterations:      cfg.Baseline.Iterations,
				LeaderUtility:   baseline.LeaderUtility,
				CommitmentValue: eq.LeaderUtility() - baseline.LeaderUtility,
			}
		}

		if archive {
			reports = append(reports, report)
		} else if *output != "" {
			if err := saveReport(report, *output); err != nil {
				glog.Fatal(err)
			}
		}
	}

	if archive {
		glog.Infof("Saving %d reports to %v", len(reports), *output)
		if err := gamefile.SaveArchive(reports, *output); err != nil {
			glog.Fatal(err)
		}
	}

	glog.Flush()
	if failed > 0 {
		glog.Errorf("%d of %d games failed", failed, len(outcomes))
		glog.Flush()
		os.Exit(1)
	}
}

func mustLoadGame(path string) loadedGame {
	glog.Infof("Loading game from %v", path)
	doc, err := gamefile.Load(path)
	if err != nil {
		glog.Fatal(err)
	}

	g, err := doc.Game()
	if err != nil {
		glog.Fatalf("%s: %v", path, err)
	}

	return loadedGame{doc: doc, game: g}
}

func writeLP(g loadedGame, id, dir string, bigM float64) error {
	if err := os.MkdirAll(dir, 0777); err != nil {
		return err
	}

	f, err := dobss.Build(g.game, bigM)
	if err != nil {
		return err
	}

	filename := filepath.Join(dir, id+".lp")
	glog.Infof("Writing MILP with %d variables and %d constraints to %v",
		len(f.Problem.Variables), len(f.Problem.Constraints), filename)
	w, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := f.WriteLP(w, g.doc.Name); err != nil {
		return err
	}
	return w.Close()
}

func saveReport(report *gamefile.Report, dir string) error {
	if err := os.MkdirAll(dir, 0777); err != nil {
		return err
	}

	filename := filepath.Join(dir, report.Filename())
	glog.Infof("Saving report to %v", filename)
	return report.Save(filename)
}

func agrees(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6*math.Max(1, math.Abs(b))
}
