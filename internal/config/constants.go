package config

const (
	// DefaultDatabasePath is the default path for the SQLite database
	DefaultDatabasePath = "./data/librarian.db"

	// DefaultMaxActiveBorrows is how many unreturned books one member may hold
	DefaultMaxActiveBorrows = 5

	// DefaultLoanPeriodDays is the number of days between borrowing and the due date
	DefaultLoanPeriodDays = 14

	// DefaultFinePerDay is charged for every calendar day a book is returned late
	DefaultFinePerDay = "0.50"
)
