package term

// Builders for the handful of commands the driver and its tooling issue
// themselves. The full command surface is expected to be assembled by
// callers with Op/OpWith.

// DB selects a database by name.
func DB(name string) Term {
	return Op(CodeDB, String(name))
}

// Table selects a table within a database selection.
func Table(db Term, name string) Term {
	return Op(CodeTable, db, String(name))
}

// Get fetches a single document by primary key.
func Get(table Term, key any) Term {
	return Op(CodeGet, table, Expr(key))
}

// DBCreate creates a database.
func DBCreate(name string) Term {
	return Op(CodeDBCreate, String(name))
}

// DBList lists database names.
func DBList() Term {
	return Op(CodeDBList)
}

// TableCreate creates a table within a database selection.
func TableCreate(db Term, name string) Term {
	return Op(CodeTableCreate, db, String(name))
}

// Insert inserts one document into a table selection.
func Insert(table Term, doc Term) Term {
	return Op(CodeInsert, table, doc)
}

// Changes opens a change feed on a selection.
func Changes(selection Term) Term {
	return Op(CodeChanges, selection)
}
