package features

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Mode selects training or inference semantics for Transform.
type Mode int

const (
	ModeTraining Mode = iota
	ModeInference
)

func (m Mode) String() string {
	switch m {
	case ModeTraining:
		return "training"
	case ModeInference:
		return "inference"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ErrMissingStatus is returned when a training batch has no loan_status field.
var ErrMissingStatus = errors.New("features: training batch has no loan_status field")

// Table is a dense feature table. Missing values are NaN. Labels is only
// populated in training mode and is parallel to Rows. Levels holds every
// observed level per categorical field, sorted, including a dropped baseline.
// Excluded names the identifier, leakage and outcome fields the input carried.
type Table struct {
	Columns  []string
	Rows     [][]float64
	Labels   []int
	Levels   map[string][]string
	Excluded []string
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return len(t.Rows) }

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column copies out column j.
func (t *Table) Column(j int) []float64 {
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[j]
	}
	return out
}

// DropColumns removes the named columns in place, keeping order.
func (t *Table) DropColumns(names map[string]bool) {
	if len(names) == 0 {
		return
	}
	keep := make([]int, 0, len(t.Columns))
	cols := make([]string, 0, len(t.Columns))
	for j, c := range t.Columns {
		if !names[c] {
			keep = append(keep, j)
			cols = append(cols, c)
		}
	}
	for i, row := range t.Rows {
		next := make([]float64, len(keep))
		for k, j := range keep {
			next[k] = row[j]
		}
		t.Rows[i] = next
	}
	t.Columns = cols
}

type columnBuilder struct {
	names  []string
	values [][]float64
}

func (b *columnBuilder) add(name string, vals []float64) {
	b.names = append(b.names, name)
	b.values = append(b.values, vals)
}

func (b *columnBuilder) table(n int, labels []int, levels map[string][]string) *Table {
	rows := make([][]float64, n)
	for i := range rows {
		row := make([]float64, len(b.names))
		for j := range b.names {
			row[j] = b.values[j][i]
		}
		rows[i] = row
	}
	return &Table{Columns: b.names, Rows: rows, Labels: labels, Levels: levels}
}

// Transform turns raw loan records into a numeric table.
//
// In training mode only rows with a terminal loan status survive, the label is
// derived from it, missing credit history is filled with the batch median and
// the lexicographically first level of every categorical is dropped. In
// inference mode every row is kept and every observed level gets a column;
// aligning to the persisted schema happens later.
//
// A catalog field produces columns only if at least one record carries it.
// Fields outside the catalog are typed from the data: in training a field is
// numeric when every non-empty value parses as a number and categorical
// otherwise. Inference emits both forms and lets alignment keep the one the
// schema has. Dropped and outcome fields never produce columns.
func Transform(records []Record, mode Mode) (*Table, error) {
	present := make(map[string]bool)
	for _, r := range records {
		for k := range r {
			present[k] = true
		}
	}

	var labels []int
	if mode == ModeTraining {
		if !present[StatusField] {
			return nil, ErrMissingStatus
		}
		kept := make([]Record, 0, len(records))
		for _, r := range records {
			label, ok := LabelFor(r.String(StatusField))
			if !ok {
				continue
			}
			kept = append(kept, r)
			labels = append(labels, label)
		}
		records = kept
	}

	n := len(records)
	b := &columnBuilder{}

	for _, f := range FieldsOfKind(KindNumeric) {
		if present[f] {
			b.add(f, floats(records, f))
		}
	}

	if present[TermField] {
		vals := make([]float64, n)
		for i, r := range records {
			vals[i] = ParseTerm(r.String(TermField))
		}
		b.add(TermField, vals)
	}

	if present[EmpLengthField] {
		vals := make([]float64, n)
		for i, r := range records {
			vals[i] = ParseEmpLength(r.String(EmpLengthField), mode == ModeTraining)
		}
		b.add(EmpLengthField, vals)
	}

	if present[IssueDateField] && present[EarliestCreditField] {
		vals := make([]float64, n)
		for i, r := range records {
			vals[i] = CreditHistoryDays(r.String(IssueDateField), r.String(EarliestCreditField))
		}
		if mode == ModeTraining {
			fillNaN(vals, Median(vals))
		}
		b.add(CreditHistoryColumn, vals)
	}

	observed := make(map[string][]string)
	for _, f := range FieldsOfKind(KindCategorical) {
		if present[f] {
			b.oneHot(f, strs(records, f), mode, observed)
		}
	}

	for _, f := range uncatalogued(present) {
		raw := strs(records, f)
		vals := floats(records, f)
		numeric := true
		for i, v := range raw {
			if v != "" && math.IsNaN(vals[i]) {
				numeric = false
				break
			}
		}
		if mode == ModeInference || numeric {
			b.add(f, vals)
		}
		if mode == ModeInference || !numeric {
			b.oneHot(f, raw, mode, observed)
		}
	}

	t := b.table(n, labels, observed)
	t.Excluded = excluded(present)
	return t, nil
}

// TransformOne is Transform in inference mode for a single record.
func TransformOne(r Record) *Table {
	t, _ := Transform([]Record{r}, ModeInference)
	return t
}

// oneHot adds one indicator column per level of field, dropping the first
// level in training mode.
func (b *columnBuilder) oneHot(field string, raw []string, mode Mode, observed map[string][]string) {
	levels := distinctLevels(raw)
	observed[field] = levels
	if mode == ModeTraining && len(levels) > 0 {
		levels = levels[1:]
	}
	for _, lvl := range levels {
		vals := make([]float64, len(raw))
		for i, v := range raw {
			if v == lvl {
				vals[i] = 1
			}
		}
		b.add(field+"_"+lvl, vals)
	}
}

func floats(records []Record, field string) []float64 {
	vals := make([]float64, len(records))
	for i, r := range records {
		vals[i] = r.Float(field)
	}
	return vals
}

func strs(records []Record, field string) []string {
	vals := make([]string, len(records))
	for i, r := range records {
		vals[i] = r.String(field)
	}
	return vals
}

// uncatalogued returns the present fields the catalog does not know, sorted.
func uncatalogued(present map[string]bool) []string {
	var out []string
	for f := range present {
		if _, ok := KindOf(f); !ok {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// excluded returns the present dropped and outcome fields in catalog order.
func excluded(present map[string]bool) []string {
	var out []string
	for _, kind := range []Kind{KindStatus, KindDropped} {
		for _, f := range FieldsOfKind(kind) {
			if present[f] {
				out = append(out, f)
			}
		}
	}
	return out
}

func distinctLevels(values []string) []string {
	seen := make(map[string]struct{})
	for _, v := range values {
		if v != "" {
			seen[v] = struct{}{}
		}
	}
	levels := make([]string, 0, len(seen))
	for v := range seen {
		levels = append(levels, v)
	}
	sort.Strings(levels)
	return levels
}

func fillNaN(vals []float64, with float64) {
	for i, v := range vals {
		if math.IsNaN(v) {
			vals[i] = with
		}
	}
}
