// Cfgdot builds a control-flow graph from a textual edge list and prints it
// in Graphviz format, with its weak topological order, or with its
// structural statistics.
//
// Input lines have the form "a b" for an edge from block a to block b, where
// a and b are integers. The smallest block is the entry, the largest the
// exit.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/bpfverify/verifier/analysis/wto"
	"github.com/bpfverify/verifier/cfg"
	"github.com/bpfverify/verifier/config"
)

var (
	simplifyFlag = flag.Bool("simplify", false, "Simplify the graph before printing")
	wtoFlag      = flag.Bool("wto", false, "Print the weak topological order instead of DOT")
	statsFlag    = flag.Bool("stats", false, "Print graph statistics instead of DOT")
)

func main() {
	flag.Parse()

	conf, err := config.Load(".")
	if err != nil {
		log.Fatal(err)
	}
	log.SetLevel(conf.LogLevel())

	in := os.Stdin
	if flag.NArg() == 1 {
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		in = f
	} else if flag.NArg() > 1 {
		fmt.Fprintln(flag.CommandLine.Output(), "Wrong number of arguments. Need at most one edge-list file.")
		flag.PrintDefaults()
		os.Exit(1)
	}

	g, err := readEdgeList(in)
	if err != nil {
		log.Fatal(err)
	}
	if *simplifyFlag || conf.Analysis.Simplify {
		g.Simplify()
	}

	switch {
	case *wtoFlag:
		fmt.Println(wto.New(g))
	case *statsFlag:
		m := cfg.CollectStats(g)
		for _, k := range cfg.StatsKeys(m) {
			fmt.Printf("%s: %d\n", k, m[k])
		}
	default:
		if err := cfg.WriteDot(os.Stdout, g); err != nil {
			log.Fatal(err)
		}
	}
}

func readEdgeList(f *os.File) (*cfg.CFG, error) {
	type edge struct{ from, to int }
	var edges []edge
	min, max := 0, 0
	first := true

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		var e edge
		if _, err := fmt.Sscanf(line, "%d %d", &e.from, &e.to); err != nil {
			return nil, fmt.Errorf("bad edge %q: %w", line, err)
		}
		edges = append(edges, e)
		for _, n := range []int{e.from, e.to} {
			if first || n < min {
				min = n
			}
			if first || n > max {
				max = n
			}
			first = false
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if first {
		return nil, fmt.Errorf("empty edge list")
	}

	g := cfg.New(cfg.Label{Index: min}, cfg.Label{Index: max})
	for _, e := range edges {
		g.Insert(cfg.Label{Index: e.from})
		g.Insert(cfg.Label{Index: e.to})
		g.Connect(cfg.Label{Index: e.from}, cfg.Label{Index: e.to})
	}
	return g, nil
}
