// Package gamefile reads Bayesian Stackelberg games from YAML or JSON
// files, optionally gzip-compressed, and writes solution reports.
package gamefile

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	gzip "github.com/klauspost/pgzip"
	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/timpalpant/dobss"
)

//go:embed schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString("game.schema.json", schemaJSON)

// Type is one follower type: its prior probability and the payoff
// matrices indexed by [leader action][follower action].
type Type struct {
	Name            string      `yaml:"name,omitempty" json:"name,omitempty"`
	Probability     float64     `yaml:"probability" json:"probability"`
	ActionNames     []string    `yaml:"action_names,omitempty" json:"action_names,omitempty"`
	LeaderPayoffs   [][]float64 `yaml:"leader_payoffs,flow" json:"leader_payoffs"`
	FollowerPayoffs [][]float64 `yaml:"follower_payoffs,flow" json:"follower_payoffs"`
}

// Document is the on-disk representation of a game.
type Document struct {
	Name              string   `yaml:"name,omitempty" json:"name,omitempty"`
	LeaderActionNames []string `yaml:"leader_action_names,omitempty" json:"leader_action_names,omitempty"`
	Types             []Type   `yaml:"types" json:"types"`
}

// Load reads the game document at path. Files ending in .gz are
// decompressed first.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gzr, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: opening gzip stream", path)
		}
		defer gzr.Close()
		r = gzr
	}

	doc, err := Read(r)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	if doc.Name == "" {
		doc.Name = baseName(path)
	}
	return doc, nil
}

// Read parses a YAML or JSON game document and validates it against
// the game schema.
func Read(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parsing game")
	}
	// Round trip through JSON so the schema sees JSON types.
	js, err := json.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parsing game")
	}
	var instance interface{}
	if err := json.Unmarshal(js, &instance); err != nil {
		return nil, errors.Wrap(err, "parsing game")
	}
	if err := schema.Validate(instance); err != nil {
		return nil, errors.Wrap(err, "invalid game")
	}

	var doc Document
	if err := json.Unmarshal(js, &doc); err != nil {
		return nil, errors.Wrap(err, "decoding game")
	}
	if err := doc.checkNames(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *Document) checkNames() error {
	if len(d.Types) == 0 {
		return errors.New("game has no follower types")
	}
	n := len(d.Types[0].LeaderPayoffs)
	if len(d.LeaderActionNames) > 0 && len(d.LeaderActionNames) != n {
		return errors.Errorf("%d leader action names for %d leader actions",
			len(d.LeaderActionNames), n)
	}
	for l, t := range d.Types {
		if len(t.ActionNames) > 0 && len(t.LeaderPayoffs) > 0 && len(t.ActionNames) != len(t.LeaderPayoffs[0]) {
			return errors.Errorf("type %d: %d action names for %d actions",
				l, len(t.ActionNames), len(t.LeaderPayoffs[0]))
		}
	}
	return nil
}

// Game converts the document into a validated game.
func (d *Document) Game() (*dobss.Game, error) {
	if len(d.Types) == 0 {
		return nil, errors.New("game has no follower types")
	}

	n := len(d.Types[0].LeaderPayoffs)
	actions := make([]int, len(d.Types))
	probabilities := make([]float64, len(d.Types))
	leader := make([][][]float64, len(d.Types))
	follower := make([][][]float64, len(d.Types))
	for l, t := range d.Types {
		if len(t.LeaderPayoffs) > 0 {
			actions[l] = len(t.LeaderPayoffs[0])
		}
		probabilities[l] = t.Probability
		leader[l] = t.LeaderPayoffs
		follower[l] = t.FollowerPayoffs
	}

	return dobss.NewGame(n, actions, probabilities, leader, follower)
}

// FromGame returns the document describing g.
func FromGame(name string, g *dobss.Game) *Document {
	doc := &Document{Name: name, Types: make([]Type, g.NumTypes())}
	for l := range doc.Types {
		t := Type{
			Probability:     g.Probability(l),
			LeaderPayoffs:   make([][]float64, g.NumLeaderActions()),
			FollowerPayoffs: make([][]float64, g.NumLeaderActions()),
		}
		for i := range t.LeaderPayoffs {
			for j := 0; j < g.NumFollowerActions(l); j++ {
				t.LeaderPayoffs[i] = append(t.LeaderPayoffs[i], g.LeaderPayoff(l, i, j))
				t.FollowerPayoffs[i] = append(t.FollowerPayoffs[i], g.FollowerPayoff(l, i, j))
			}
		}
		doc.Types[l] = t
	}
	return doc
}

// Write encodes the document as YAML.
func (d *Document) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return err
	}
	return enc.Close()
}

// Save writes the document to path, compressed if path ends in .gz.
func (d *Document) Save(path string) error {
	return save(path, d.Write)
}

func save(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if !strings.HasSuffix(path, ".gz") {
		if err := write(f); err != nil {
			return err
		}
		return f.Close()
	}

	w := gzip.NewWriter(f)
	if err := write(w); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return f.Close()
}

// LeaderActionName returns the name of leader action i.
func (d *Document) LeaderActionName(i int) string {
	if i < len(d.LeaderActionNames) {
		return d.LeaderActionNames[i]
	}
	return fmt.Sprintf("action_%d", i)
}

// TypeName returns the name of follower type l.
func (d *Document) TypeName(l int) string {
	if d.Types[l].Name != "" {
		return d.Types[l].Name
	}
	return fmt.Sprintf("type_%d", l)
}

// FollowerActionName returns the name of action j of follower type l.
func (d *Document) FollowerActionName(l, j int) string {
	if names := d.Types[l].ActionNames; j < len(names) {
		return names[j]
	}
	return fmt.Sprintf("action_%d", j)
}

// baseName strips the directory and every extension from path.
func baseName(path string) string {
	name := filepath.Base(path)
	if i := strings.Index(name, "."); i > 0 {
		name = name[:i]
	}
	return name
}
