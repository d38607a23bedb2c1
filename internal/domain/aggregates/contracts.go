package aggregates

// Contract records which rows an aggregate is the single writer of. Services and table
// repos may read these tables freely but must route every write through the owner.
type Contract struct {
	Name    string
	// Owns is the table whose row lifecycle (insert and status changes) the aggregate controls.
	Owns    string
	// Columns are counters on other tables the aggregate maintains, as "table.column".
	Columns []string
	Notes   string
}

type Aggregate interface {
	Contract() Contract
}

// Writes reports whether the contract claims table.column, either through Owns or Columns.
func (c Contract) Writes(table, column string) bool {
	if table == c.Owns {
		return true
	}
	for _, col := range c.Columns {
		if col == table+"."+column {
			return true
		}
	}
	return false
}

func Contracts() []Contract {
	return []Contract{
		EnrollmentLedgerContract,
		ProgressTrackerContract,
		PaymentRecordContract,
		RatingAggregatorContract,
	}
}
