package gamefile

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/timpalpant/dobss"
)

// ActionProbability is one entry of the leader's mixed strategy.
type ActionProbability struct {
	Action      string  `yaml:"action"`
	Probability float64 `yaml:"probability"`
}

// FollowerReport is the response of one follower type.
type FollowerReport struct {
	Type        string  `yaml:"type"`
	Probability float64 `yaml:"probability"`
	Response    string  `yaml:"response"`
	// Utility is the type's expected payoff recomputed from the strategy.
	Utility float64 `yaml:"utility"`
	// Value is the best-response value reported by the solver.
	Value float64 `yaml:"value"`
}

// Verification compares the solution with the multiple-LPs method.
type Verification struct {
	LeaderUtility float64 `yaml:"leader_utility"`
	Agrees        bool    `yaml:"agrees"`
}

// BaselineReport is the leader's value without commitment.
type BaselineReport struct {
	Iterations      int     `yaml:"iterations"`
	LeaderUtility   float64 `yaml:"leader_utility"`
	CommitmentValue float64 `yaml:"commitment_value"`
}

// Report is the YAML summary of a solved game.
type Report struct {
	Game            string              `yaml:"game"`
	JobID           string              `yaml:"job_id,omitempty"`
	LeaderUtility   float64             `yaml:"leader_utility"`
	SolverObjective float64             `yaml:"solver_objective"`
	Nodes           int                 `yaml:"nodes"`
	ElapsedSeconds  float64             `yaml:"elapsed_seconds,omitempty"`
	Strategy        []ActionProbability `yaml:"strategy"`
	Followers       []FollowerReport    `yaml:"followers"`
	Samples         []string            `yaml:"samples,omitempty,flow"`
	Verification    *Verification       `yaml:"verification,omitempty"`
	Baseline        *BaselineReport     `yaml:"baseline,omitempty"`
}

// NewReport summarizes eq, using the action and type names of doc.
func NewReport(doc *Document, g *dobss.Game, eq *dobss.Equilibrium) *Report {
	s := eq.Strategy()
	r := &Report{
		Game:            doc.Name,
		LeaderUtility:   eq.LeaderUtility(),
		SolverObjective: eq.SolverObjective(),
		Nodes:           eq.Nodes(),
		Strategy:        make([]ActionProbability, s.Len()),
		Followers:       make([]FollowerReport, g.NumTypes()),
	}
	for i := range r.Strategy {
		r.Strategy[i] = ActionProbability{
			Action:      doc.LeaderActionName(i),
			Probability: s.Probability(i),
		}
	}
	for l := range r.Followers {
		r.Followers[l] = FollowerReport{
			Type:        doc.TypeName(l),
			Probability: g.Probability(l),
			Response:    doc.FollowerActionName(l, eq.Response(l)),
			Utility:     eq.FollowerUtility(l),
			Value:       eq.FollowerValue(l),
		}
	}
	return r
}

// AddSamples records the names of sampled leader actions.
func (r *Report) AddSamples(doc *Document, actions []int) {
	for _, i := range actions {
		r.Samples = append(r.Samples, doc.LeaderActionName(i))
	}
}

// Filename is the base name the report is saved under. It is derived
// from the job ID, falling back to the game name.
func (r *Report) Filename() string {
	if r.JobID != "" {
		return r.JobID + ".solution.yaml"
	}
	return r.Game + ".solution.yaml"
}

// UniqueIDs derives one job ID per game name. The first occurrence of a
// name keeps it; repeats are suffixed with their position in names.
func UniqueIDs(names []string) []string {
	taken := make(map[string]bool, len(names))
	for _, name := range names {
		taken[name] = true
	}

	ids := make([]string, len(names))
	used := make(map[string]bool, len(names))
	for i, name := range names {
		id := name
		if used[id] {
			id = fmt.Sprintf("%s.%d", name, i)
			for k := 1; taken[id] || used[id]; k++ {
				id = fmt.Sprintf("%s.%d.%d", name, i, k)
			}
		}
		used[id] = true
		ids[i] = id
	}
	return ids
}

// Write encodes the report as YAML.
func (r *Report) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return errors.Wrap(err, "encoding report")
	}
	return enc.Close()
}

// Save writes the report to path, compressed if path ends in .gz.
func (r *Report) Save(path string) error {
	return save(path, r.Write)
}
