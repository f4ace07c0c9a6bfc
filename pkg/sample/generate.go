package sample

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
)

// Columns are the columns of tables produced by Generate
var Columns = []string{"Id", "FirstName", "LastName", "Email", "City", "Company", "Score"}

// CreateTable returns a CREATE TABLE statement matching Generate's columns
func CreateTable(table string) string {
	return fmt.Sprintf("CREATE TABLE %s (Id INTEGER NOT NULL PRIMARY KEY, FirstName VARCHAR(40), "+
		"LastName VARCHAR(40), Email VARCHAR(80), City VARCHAR(40), Company VARCHAR(80), Score INTEGER)", table)
}

// Generate builds a single INSERT statement with rows tuples of fake
// people. The same seed always yields the same statement. Every tenth
// row gets an apostrophe in its last name so quoting is exercised.
func Generate(table string, rows int, seed uint64) string {
	faker := gofakeit.New(seed)

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES", table, strings.Join(Columns, ", "))
	for i := 1; i <= rows; i++ {
		lastName := faker.LastName()
		if i%10 == 0 {
			lastName = "O'" + lastName
		}
		if i > 1 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "\n    (%d, %s, %s, %s, %s, %s, %d)",
			i,
			quote(faker.FirstName()),
			quote(lastName),
			quote(faker.Email()),
			quote(faker.City()),
			quote(faker.Company()),
			faker.IntRange(0, 100))
	}
	return b.String()
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
