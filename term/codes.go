package term

// Code is a wire operator code. The set below covers the operators the
// driver itself needs plus the common data-definition and lookup
// commands; any other code can be passed to Op directly.
type Code int

const (
	CodeDatum     Code = 1
	CodeMakeArray Code = 2
	CodeMakeObj   Code = 3

	CodeVar         Code = 10
	CodeImplicitVar Code = 13

	CodeDB    Code = 14
	CodeTable Code = 15
	CodeGet   Code = 16

	CodeEq  Code = 17
	CodeNe  Code = 18
	CodeLt  Code = 19
	CodeLe  Code = 20
	CodeGt  Code = 21
	CodeGe  Code = 22
	CodeNot Code = 23
	CodeAdd Code = 24
	CodeSub Code = 25
	CodeMul Code = 26
	CodeDiv Code = 27
	CodeMod Code = 28

	CodePluck  Code = 33
	CodeMap    Code = 38
	CodeFilter Code = 39
	CodeCount  Code = 43

	CodeUpdate  Code = 53
	CodeDelete  Code = 54
	CodeReplace Code = 55
	CodeInsert  Code = 56

	CodeDBCreate    Code = 57
	CodeDBDrop      Code = 58
	CodeDBList      Code = 59
	CodeTableCreate Code = 60
	CodeTableDrop   Code = 61
	CodeTableList   Code = 62

	CodeGetAll  Code = 78
	CodeLimit   Code = 71
	CodeNow     Code = 103
	CodeChanges Code = 152
)
