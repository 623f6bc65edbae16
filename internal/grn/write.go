package grn

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

var fullHeader = []string{
	"tf", "target", "weight",
	"weight_source", "weight_target",
	"tf_expr_diff", "tf_expr_source", "tf_expr_target",
	"tg_expr_diff", "tg_expr_source", "tg_expr_target",
	"wb_diff", "wb_source", "wb_target",
	"tf_act_diff", "tf_act_source", "tf_act_target",
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteTSV writes the differential network. Minimal mode writes
// tf/target/weight; extended mode writes the full 17-column table with raw
// and delta attribute values.
func (d *DiffResult) WriteTSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating diff network file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if d.extended {
		fmt.Fprintln(w, strings.Join(fullHeader, "\t"))
		for _, row := range d.Rows {
			dt := row.Detail
			cols := []string{
				row.TF, row.Target, formatFloat(row.Weight),
				formatFloat(dt.WeightSource), formatFloat(dt.WeightTarget),
				formatFloat(dt.TFExprDiff), formatFloat(dt.TFExprSource), formatFloat(dt.TFExprTarget),
				formatFloat(dt.TGExprDiff), formatFloat(dt.TGExprSource), formatFloat(dt.TGExprTarget),
				formatFloat(dt.WBDiff), formatFloat(dt.WBSource), formatFloat(dt.WBTarget),
				formatFloat(dt.ActDiff), formatFloat(dt.ActSource), formatFloat(dt.ActTarget),
			}
			fmt.Fprintln(w, strings.Join(cols, "\t"))
		}
	} else {
		fmt.Fprintln(w, "tf\ttarget\tweight")
		for _, row := range d.Rows {
			fmt.Fprintf(w, "%s\t%s\t%s\n", row.TF, row.Target, formatFloat(row.Weight))
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing diff network file: %w", err)
	}
	return nil
}
