package train

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"testing"

	"loan-risk/internal/cfg"
)

var loanHeader = []string{
	"id", "loan_amnt", "term", "int_rate", "emp_length", "grade", "home_ownership",
	"annual_inc", "dti", "issue_d", "earliest_cr_line", "mths_since_last_delinq",
	"loan_status", "total_pymnt",
}

var months = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// loanRows generates applications whose default odds rise with the interest
// rate and fall with income. About one row in ten has a non-terminal status.
func loanRows(n int, seed int64) [][]string {
	rng := rand.New(rand.NewSource(seed))
	grades := []string{"A", "B", "C", "D"}
	homes := []string{"RENT", "OWN", "MORTGAGE"}
	emp := []string{"< 1 year", "1 year", "3 years", "10+ years", "n/a"}

	rows := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		g := rng.Intn(len(grades))
		rate := 6 + 5*float64(g) + 3*rng.Float64()
		income := 30000 + rng.Float64()*90000
		logit := -4 + 0.25*(rate-6) - (income-60000)/40000 + 0.3*rng.NormFloat64()

		status := "Fully Paid"
		if rng.Float64() < 1/(1+math.Exp(-logit)) {
			status = "Charged Off"
		}
		if rng.Intn(10) == 0 {
			status = "Current"
		}
		delinq := ""
		if rng.Intn(4) == 0 {
			delinq = strconv.Itoa(rng.Intn(60))
		}
		term := "36 months"
		if rng.Intn(3) == 0 {
			term = "60 months"
		}

		rows = append(rows, []string{
			strconv.Itoa(i),
			strconv.Itoa(1000 + rng.Intn(30000)),
			term,
			fmt.Sprintf("%.2f%%", rate),
			emp[rng.Intn(len(emp))],
			grades[g],
			homes[rng.Intn(len(homes))],
			fmt.Sprintf("%.0f", income),
			fmt.Sprintf("%.2f", rng.Float64()*35),
			fmt.Sprintf("%s-%d", months[rng.Intn(12)], 2012+rng.Intn(5)),
			fmt.Sprintf("%s-%d", months[rng.Intn(12)], 1990+rng.Intn(15)),
			delinq,
			status,
			strconv.Itoa(rng.Intn(40000)),
		})
	}
	return rows
}

func writeLoanCSV(t *testing.T, path string, header []string, rows [][]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create csv: %v", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if err := w.WriteAll(rows); err != nil {
		t.Fatalf("write rows: %v", err)
	}
}

func fastTraining() cfg.TrainingSettings {
	s := cfg.DefaultTraining()
	s.SampleFraction = 1
	s.ChunkSize = 1000
	s.NEstimators = 15
	s.MaxDepth = 3
	return s
}
