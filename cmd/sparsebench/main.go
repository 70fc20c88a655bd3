// Command sparsebench exercises a sparseindex.Index end to end: fill, get,
// write, clear, read, each timed, mirroring original_source/tools/bench.cc's
// <filename> <width> <factor> contract. It is explicitly outside the core
// (spec.md §1/§6.3) — a thin driver over the core's public surface.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/bits-and-blooms/bitset"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/colinmarc/sparsedb/blob"
	"github.com/colinmarc/sparsedb/clock"
	"github.com/colinmarc/sparsedb/rng"
	"github.com/colinmarc/sparsedb/sparseindex"
)

var benchSeed uint64 = 1234

var rootCmd = &cobra.Command{
	Use:   "sparsebench <filename> <width> <factor>",
	Short: "Benchmark the sparsedb sparse index against a blob file",
	Long: `sparsebench fills a SparseIndex of size 2^width with 2^width/factor
random-positioned entries, times the fill and lookup passes, writes the
index to filename, clears it, and times reading it back.`,
	Args: cobra.ExactArgs(3),
	RunE: runBench,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Fatal("sparsebench failed")
	}
}

func runBench(cmd *cobra.Command, args []string) error {
	filename := args[0]

	width, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid width: %w", err)
	}
	factor, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid factor: %w", err)
	}

	n := uint64(1) << width
	count := n / factor

	logrus.WithFields(logrus.Fields{
		"width":  width,
		"factor": factor,
		"n":      n,
	}).Info("starting sparsebench")

	idx := sparseindex.New[uint64](n)
	gen, err := rng.New(benchSeed)
	if err != nil {
		return err
	}

	seen := bitset.New(uint(n))

	watch := clock.New()
	for i := uint64(0); i < count; i++ {
		pos := gen.Uint64() % n
		idx.Insert(pos, i)
		seen.Set(uint(pos))
	}
	logrus.WithFields(logrus.Fields{
		"keys":            count,
		"seconds":         watch.Elapsed(),
		"distinctInserts": seen.Count(),
	}).Info("fill complete")
	if seen.Count() != uint(idx.NumNonEmpty()) {
		return fmt.Errorf("distinct draws %d != index population %d", seen.Count(), idx.NumNonEmpty())
	}

	watch.Reset()
	if err := gen.Seed(benchSeed); err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		idx.Get(gen.Uint64() % n)
	}
	logrus.WithFields(logrus.Fields{
		"keys":    count,
		"seconds": watch.Elapsed(),
	}).Info("get complete")

	b, err := blob.Open(filename, blob.OpenTruncate)
	if err != nil {
		return err
	}

	watch.Reset()
	if err := idx.Write(b); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"keys":    count,
		"seconds": watch.Elapsed(),
	}).Info("write complete")

	watch.Reset()
	idx.Clear()
	logrus.WithFields(logrus.Fields{
		"keys":    count,
		"seconds": watch.Elapsed(),
	}).Info("clear complete")

	if err := b.Close(); err != nil {
		return err
	}
	b, err = blob.Open(filename, blob.OpenReadWrite)
	if err != nil {
		return err
	}
	defer b.Close()

	watch.Reset()
	if err := idx.Read(b); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"keys":    count,
		"seconds": watch.Elapsed(),
	}).Info("read complete")

	return nil
}

func init() {
	if len(os.Args) == 1 {
		rootCmd.SetArgs([]string{"--help"})
	}
}
