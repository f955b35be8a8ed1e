//go:build ignore

package main

import (
	"compress/gzip"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"
)

var header = []string{
	"id", "loan_amnt", "funded_amnt", "term", "int_rate", "installment", "grade", "sub_grade",
	"emp_title", "emp_length", "home_ownership", "annual_inc", "verification_status", "issue_d",
	"loan_status", "purpose", "dti", "delinq_2yrs", "earliest_cr_line", "inq_last_6mths",
	"mths_since_last_delinq", "open_acc", "pub_rec", "revol_bal", "revol_util", "total_acc",
	"initial_list_status", "application_type", "mort_acc", "pub_rec_bankruptcies", "total_pymnt",
}

var (
	months   = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
	grades   = []string{"A", "B", "C", "D", "E", "F", "G"}
	homes    = []string{"RENT", "OWN", "MORTGAGE", "OTHER"}
	verified = []string{"Verified", "Source Verified", "Not Verified"}
	purposes = []string{"debt_consolidation", "credit_card", "home_improvement", "small_business", "car", "other"}
	emp      = []string{"< 1 year", "1 year", "2 years", "3 years", "5 years", "8 years", "10+ years", "n/a"}
	statuses = []string{"Current", "Late (31-120 days)", "In Grace Period"}
)

func main() {
	var (
		out  = flag.String("out", "data/loans.csv", "Output file (.gz compresses)")
		rows = flag.Int("rows", 50000, "Number of loans to generate")
		seed = flag.Int64("seed", 42, "Random seed")
	)
	flag.Parse()

	fmt.Printf("Generating %d sample loans...\n", *rows)
	fmt.Printf("  Output: %s\n", *out)
	fmt.Printf("  Seed: %d\n", *seed)

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("Failed to create output: %v", err)
	}
	defer f.Close()

	var w io.Writer = f
	if strings.HasSuffix(*out, ".gz") {
		gz := gzip.NewWriter(f)
		defer gz.Close()
		w = gz
	}

	defaults, err := generateLoans(csv.NewWriter(w), *rows, rand.New(rand.NewSource(*seed)))
	if err != nil {
		log.Fatalf("Failed to generate data: %v", err)
	}

	fmt.Printf("✓ Generated %d loans (%d charged off)\n", *rows, defaults)
}

// generateLoans writes applications whose default odds rise with grade,
// interest rate, debt-to-income and recent inquiries and fall with income.
func generateLoans(w *csv.Writer, n int, rng *rand.Rand) (int, error) {
	if err := w.Write(header); err != nil {
		return 0, err
	}

	defaults := 0
	for i := 0; i < n; i++ {
		g := min(len(grades)-1, int(math.Abs(rng.NormFloat64())*2))
		sub := 1 + rng.Intn(5)
		rate := 5.5 + 3.5*float64(g) + 0.6*float64(sub) + rng.Float64()
		amount := 1000 + 500*rng.Intn(69)
		term := 36
		if rng.Float64() < 0.25+0.05*float64(g) {
			term = 60
		}
		monthly := rate / 1200
		installment := float64(amount) * monthly / (1 - math.Pow(1+monthly, -float64(term)))
		income := math.Exp(10.9 + 0.5*rng.NormFloat64())
		dti := math.Max(0, 18+8*rng.NormFloat64())
		inq := rng.Intn(6)
		delinq := 0
		if rng.Float64() < 0.15 {
			delinq = 1 + rng.Intn(3)
		}
		revolUtil := math.Min(150, math.Max(0, 55+25*rng.NormFloat64()))

		logit := -3.2 + 0.12*(rate-10) + 0.025*(dti-18) + 0.1*float64(inq) -
			0.5*(math.Log(income)-10.9) + 0.3*float64(term-36)/24 + 0.2*float64(delinq)
		status := "Fully Paid"
		if rng.Float64() < 1/(1+math.Exp(-logit)) {
			status = "Charged Off"
			defaults++
		}
		if rng.Float64() < 0.08 {
			status = statuses[rng.Intn(len(statuses))]
		}

		issueYear := 2010 + rng.Intn(9)
		creditYear := issueYear - 3 - rng.Intn(25)

		lastDelinq := ""
		if delinq > 0 || rng.Float64() < 0.3 {
			lastDelinq = strconv.Itoa(rng.Intn(80))
		}

		row := []string{
			strconv.Itoa(1000000 + i),
			strconv.Itoa(amount),
			strconv.Itoa(amount),
			fmt.Sprintf(" %d months", term),
			fmt.Sprintf("%.2f%%", rate),
			fmt.Sprintf("%.2f", installment),
			grades[g],
			fmt.Sprintf("%s%d", grades[g], sub),
			"",
			emp[rng.Intn(len(emp))],
			homes[rng.Intn(len(homes))],
			fmt.Sprintf("%.0f", income),
			verified[rng.Intn(len(verified))],
			fmt.Sprintf("%s-%d", months[rng.Intn(12)], issueYear),
			status,
			purposes[rng.Intn(len(purposes))],
			fmt.Sprintf("%.2f", dti),
			strconv.Itoa(delinq),
			fmt.Sprintf("%s-%d", months[rng.Intn(12)], creditYear),
			strconv.Itoa(inq),
			lastDelinq,
			strconv.Itoa(3 + rng.Intn(25)),
			strconv.Itoa(rng.Intn(2)),
			strconv.Itoa(rng.Intn(60000)),
			fmt.Sprintf("%.1f%%", revolUtil),
			strconv.Itoa(5 + rng.Intn(50)),
			[]string{"w", "f"}[rng.Intn(2)],
			"Individual",
			strconv.Itoa(rng.Intn(6)),
			strconv.Itoa(rng.Intn(2)),
			fmt.Sprintf("%.2f", float64(amount)*(0.3+rng.Float64())),
		}
		if err := w.Write(row); err != nil {
			return defaults, err
		}
	}

	w.Flush()
	return defaults, w.Error()
}
