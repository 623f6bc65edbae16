package influence

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/larkspur-bio/tfrank/internal/expression"
	"github.com/larkspur-bio/tfrank/internal/grn"
	"github.com/larkspur-bio/tfrank/internal/telemetry"
)

// ErrNoFactorOverlap indicates no transcription factor in the differential
// network has an expression record.
var ErrNoFactorOverlap = errors.New("no transcription factors shared between network and expression data")

// ErrNoUpregulated indicates no candidate factor is increasingly expressed.
var ErrNoUpregulated = errors.New("no increasingly expressed transcription factors found")

// scoreHeader is the column layout of the intermediate score table.
const scoreHeader = "factor\tdirectTargets\ttotalTargets\ttargetscore\tGscore\tfactor_fc\tpval\ttarget_fc"

// DefaultCutoff is the minimum combined, length-normalized path probability
// for a gene to count as reached.
const DefaultCutoff = 0.6

// Engine fans per-TF scoring out across a fixed worker pool. The graph and
// expression table are shared read-only; every score is a pure function of
// (TF, graph, table), so the pool needs no locking and the output is
// independent of worker count and completion order.
type Engine struct {
	Graph     *grn.Graph
	Table     *expression.Table
	Workers   int
	Cutoff    float64
	Logger    io.Writer
	Telemetry *telemetry.Emitter
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the worker pool size (minimum 1).
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.Workers = n
		}
	}
}

// WithCutoff sets the path probability cutoff.
func WithCutoff(c float64) Option {
	return func(e *Engine) { e.Cutoff = c }
}

// WithLogger sets the progress log writer.
func WithLogger(w io.Writer) Option {
	return func(e *Engine) { e.Logger = w }
}

// WithTelemetry attaches a telemetry emitter.
func WithTelemetry(t *telemetry.Emitter) Option {
	return func(e *Engine) { e.Telemetry = t }
}

// NewEngine creates an Engine over a differential network and expression
// table with production defaults: one worker, cutoff 0.6.
func NewEngine(g *grn.Graph, table *expression.Table, opts ...Option) *Engine {
	e := &Engine{
		Graph:   g,
		Table:   table,
		Workers: 1,
		Cutoff:  DefaultCutoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) logf(format string, args ...any) {
	if e.Logger != nil {
		fmt.Fprintf(e.Logger, format+"\n", args...)
	}
}

// candidates returns the IDs of scoreable factors in lexicographic name
// order: positive out-degree in the network, an expression record, and a
// positive signed fold change. The directional filter deliberately uses the
// signed fold change rather than the significance score.
func (e *Engine) candidates() ([]int32, error) {
	var tfs []int32
	for _, name := range e.Graph.SortedNames() {
		id, _ := e.Graph.Lookup(name)
		if e.Graph.OutDegree(id) > 0 {
			tfs = append(tfs, id)
		}
	}
	e.logf("differential network contains %d transcription factors", len(tfs))

	var withExpr []int32
	for _, id := range tfs {
		if e.Table.Has(e.Graph.Name(id)) {
			withExpr = append(withExpr, id)
		}
	}
	if len(withExpr) == 0 {
		return nil, ErrNoFactorOverlap
	}

	var up []int32
	for _, id := range withExpr {
		rec, _ := e.Table.Get(e.Graph.Name(id))
		if rec.RealFC > 0 {
			up = append(up, id)
		}
	}
	if len(up) == 0 {
		return nil, ErrNoUpregulated
	}
	e.logf("out of these, %d are increasingly expressed", len(up))
	return up, nil
}

// Run scores every candidate factor and writes the score table to path.
// The table is written to a temporary file and only renamed into place once
// every factor has been scored, so a failed run never leaves a partial
// table at the final path. Records are returned in the same order as the
// written rows (lexicographic by factor), regardless of worker count.
func (e *Engine) Run(path string) ([]ScoreRecord, error) {
	cands, err := e.candidates()
	if err != nil {
		return nil, err
	}

	ctx := newScoreContext(e.Graph, e.Table, e.Cutoff)
	records := make([]ScoreRecord, len(cands))

	if e.Workers <= 1 {
		for i, tf := range cands {
			rec, err := ctx.scoreTF(tf)
			if err != nil {
				return nil, err
			}
			records[i] = rec
			e.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindFactorScored, Factor: rec.Factor})
		}
	} else if err := e.runPool(ctx, cands, records); err != nil {
		return nil, err
	}

	if err := writeScores(records, path); err != nil {
		return nil, err
	}
	e.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindScoresWritten, Data: map[string]any{"factors": len(records), "path": path}})
	return records, nil
}

// runPool distributes candidate indices across the worker pool. Results are
// stored by index, so completion order cannot affect the output. Worker
// panics are contained and reported with remediation; scoring errors
// propagate unchanged.
func (e *Engine) runPool(ctx *scoreContext, cands []int32, records []ScoreRecord) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}
	failed := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstErr != nil
	}

	jobs := make(chan int)
	for w := 0; w < e.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if failed() {
					continue
				}
				if err := e.scoreOne(ctx, cands[i], &records[i]); err != nil {
					setErr(err)
				}
			}
		}()
	}
	for i := range cands {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return firstErr
}

// scoreOne runs a single scoring job, converting a worker panic into an
// error with retry guidance. Any failure specific to the pool machinery
// should not mask the underlying analysis: rerunning with --workers 1
// either reproduces the real error or completes serially.
func (e *Engine) scoreOne(ctx *scoreContext, tf int32, out *ScoreRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker pool failure scoring %s: %v; retrying with --workers 1 may help", ctx.graph.Name(tf), r)
		}
	}()
	rec, err := ctx.scoreTF(tf)
	if err != nil {
		return err
	}
	*out = rec
	e.Telemetry.Emit(telemetry.Event{Kind: telemetry.KindFactorScored, Factor: rec.Factor})
	return nil
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// writeScores writes the intermediate score table atomically: temp file in
// the destination directory, renamed into place on success, removed on any
// failure path.
func writeScores(records []ScoreRecord, path string) (err error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating score table: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, scoreHeader)
	for _, r := range records {
		cols := []string{
			r.Factor,
			strconv.Itoa(r.DirectTargets),
			strconv.Itoa(r.TotalTargets),
			formatFloat(r.TargetScore),
			formatFloat(r.GScore),
			formatFloat(r.FactorFC),
			formatFloat(r.PValue),
			formatFloat(r.TargetFCDelta),
		}
		fmt.Fprintln(w, strings.Join(cols, "\t"))
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("writing score table: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("closing score table: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("moving score table into place: %w", err)
	}
	return nil
}
