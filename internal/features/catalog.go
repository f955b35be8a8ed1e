package features

// Kind tells the transformer how a raw field is engineered.
type Kind int

const (
	KindNumeric Kind = iota
	KindTerm
	KindEmpLength
	KindDate
	KindCategorical
	KindStatus
	KindDropped
)

// FieldSpec describes one field of the loan application schema.
type FieldSpec struct {
	Name string
	Kind Kind
}

const (
	StatusField         = "loan_status"
	TermField           = "term"
	EmpLengthField      = "emp_length"
	IssueDateField      = "issue_d"
	EarliestCreditField = "earliest_cr_line"

	// LabelColumn is the derived training outcome, 1 for default.
	LabelColumn = "is_default"
	// CreditHistoryColumn is the engineered credit history length in days.
	CreditHistoryColumn = "credit_history_length"
)

// Catalog lists the loan-application fields with a known treatment. Order
// matters: it fixes the column order of every feature table. Fields outside
// the catalog follow it in name order.
var Catalog = []FieldSpec{
	{"loan_amnt", KindNumeric},
	{"funded_amnt", KindNumeric},
	{"funded_amnt_inv", KindNumeric},
	{"int_rate", KindNumeric},
	{"installment", KindNumeric},
	{"annual_inc", KindNumeric},
	{"dti", KindNumeric},
	{"delinq_2yrs", KindNumeric},
	{"inq_last_6mths", KindNumeric},
	{"mths_since_last_delinq", KindNumeric},
	{"open_acc", KindNumeric},
	{"pub_rec", KindNumeric},
	{"revol_bal", KindNumeric},
	{"revol_util", KindNumeric},
	{"total_acc", KindNumeric},
	{"mort_acc", KindNumeric},
	{"pub_rec_bankruptcies", KindNumeric},

	{TermField, KindTerm},
	{EmpLengthField, KindEmpLength},
	{IssueDateField, KindDate},
	{EarliestCreditField, KindDate},

	{"grade", KindCategorical},
	{"sub_grade", KindCategorical},
	{"home_ownership", KindCategorical},
	{"verification_status", KindCategorical},
	{"purpose", KindCategorical},
	{"initial_list_status", KindCategorical},
	{"application_type", KindCategorical},

	{StatusField, KindStatus},
	{LabelColumn, KindStatus},

	// identifiers and free text
	{"id", KindDropped},
	{"member_id", KindDropped},
	{"url", KindDropped},
	{"desc", KindDropped},
	{"title", KindDropped},
	{"emp_title", KindDropped},
	{"zip_code", KindDropped},
	{"addr_state", KindDropped},

	// only known once the loan outcome is known
	{"total_pymnt", KindDropped},
	{"total_pymnt_inv", KindDropped},
	{"total_rec_prncp", KindDropped},
	{"total_rec_int", KindDropped},
	{"total_rec_late_fee", KindDropped},
	{"recoveries", KindDropped},
	{"collection_recovery_fee", KindDropped},
	{"last_pymnt_d", KindDropped},
	{"last_pymnt_amnt", KindDropped},
	{"last_credit_pull_d", KindDropped},
	{"out_prncp", KindDropped},
	{"out_prncp_inv", KindDropped},
}

var (
	goodStatuses = map[string]bool{
		"Fully Paid": true,
		"Does not meet the credit policy. Status:Fully Paid": true,
	}
	badStatuses = map[string]bool{
		"Charged Off": true,
		"Default":     true,
		"Does not meet the credit policy. Status:Charged Off": true,
	}
)

// LabelFor maps a loan status to the binary outcome. ok is false for any
// status outside the two terminal sets.
func LabelFor(status string) (label int, ok bool) {
	switch {
	case badStatuses[status]:
		return 1, true
	case goodStatuses[status]:
		return 0, true
	default:
		return 0, false
	}
}

// FieldsOfKind lists catalog field names of the given kind in catalog order.
func FieldsOfKind(kind Kind) []string {
	var names []string
	for _, f := range Catalog {
		if f.Kind == kind {
			names = append(names, f.Name)
		}
	}
	return names
}

// KindOf returns the kind of a catalog field; ok is false for unknown fields.
func KindOf(field string) (Kind, bool) {
	for _, f := range Catalog {
		if f.Name == field {
			return f.Kind, true
		}
	}
	return 0, false
}
