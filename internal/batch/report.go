package batch

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/facette/natsort"
	"golang.org/x/exp/constraints"
)

// Columns of the CSV report.
var Columns = []string{"name", "method", "status", "root", "lower", "upper", "iterations", "error"}

// CSV is a report body ordered naturally by its first column, so problem2
// sorts before problem10.
type CSV [][]string

func (data CSV) Less(i, j int) bool {
	return natsort.Compare(data[i][0], data[j][0])
}

func (data CSV) Len() int {
	return len(data)
}

func (data CSV) Swap(i, j int) {
	data[i], data[j] = data[j], data[i]
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Record is the CSV row of o. Columns the outcome has no value for are
// empty; an undefined bracket is written as NaN.
func (o Outcome) Record() []string {
	record := []string{o.Spec.Name, o.Spec.Method, o.Status(), "", "", "", "", ""}
	if o.Result != nil {
		record[3] = formatFloat(o.Result.Root)
		record[4] = formatFloat(o.Result.Lower)
		record[5] = formatFloat(o.Result.Upper)
		record[6] = strconv.Itoa(o.Result.Iterations)
	}
	if o.Err != nil {
		record[7] = o.Err.Error()
	}
	return record
}

// WriteCSV writes the header and one row per outcome in natural name
// order.
func WriteCSV(w io.Writer, outcomes []Outcome) error {
	data := make(CSV, len(outcomes))
	for i, o := range outcomes {
		data[i] = o.Record()
	}
	sort.Stable(data)

	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(data); err != nil {
		return err
	}
	return cw.Error()
}

// Summary aggregates a batch.
type Summary struct {
	Total          int
	Converged      int
	Failed         int
	Canceled       int
	MeanIterations float64
}

// Summarize counts outcomes by status. MeanIterations covers converged
// problems only.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	var iterations []int
	for _, o := range outcomes {
		switch o.Status() {
		case StatusConverged:
			s.Converged++
			iterations = append(iterations, o.Result.Iterations)
		case StatusCanceled:
			s.Canceled++
		default:
			s.Failed++
		}
	}
	s.MeanIterations = mean(iterations)
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("%d problems: %d converged, %d failed, %d canceled, %.1f iterations on average",
		s.Total, s.Converged, s.Failed, s.Canceled, s.MeanIterations)
}

type number interface {
	constraints.Float | constraints.Integer
}

func mean[T number](values []T) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum T
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}
