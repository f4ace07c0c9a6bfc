package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		stmt string
		want Kind
	}{
		{"CREATE ZONE IF NOT EXISTS Demo WITH REPLICAS=2", KindCreateZone},
		{"CREATE TABLE Foo (id INT)", KindCreateTable},
		{"create   table\tFoo (id INT)", KindCreateTable},
		{"CREATE INDEX idx_foo ON Foo (id)", KindCreateIndex},
		{"CREATE UNIQUE INDEX idx_foo ON Foo (id)", KindCreateIndex},
		{"DROP TABLE Foo", KindDrop},
		{"drop zone Demo", KindDrop},
		{"DROP INDEX idx_foo", KindDrop},
		{"insert into Foo values (1,2)", KindInsert},
		{"UPDATE Foo SET id = 2", KindUpdate},
		{"DELETE FROM Foo", KindDelete},
		{"SELECT * FROM Foo", KindSelect},
		{"  select 1", KindSelect},
		{"ALTER TABLE Foo ADD COLUMN x INT", KindOther},
		{"CREATE VIEW v AS SELECT 1", KindOther},
		{"", KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.stmt, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.stmt))
		})
	}
}

func TestKindIsSchema(t *testing.T) {
	schema := []Kind{KindCreateZone, KindCreateTable, KindCreateIndex, KindDrop}
	data := []Kind{KindInsert, KindUpdate, KindDelete, KindSelect, KindOther}

	for _, k := range schema {
		assert.True(t, k.IsSchema(), k.String())
	}
	for _, k := range data {
		assert.False(t, k.IsSchema(), k.String())
	}
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "DROP TABLE", Label("drop table Foo"))
	assert.Equal(t, "DROP ZONE", Label("DROP ZONE Demo"))
	assert.Equal(t, "DROP INDEX", Label("DROP  INDEX idx"))
	assert.Equal(t, "CREATE TABLE", Label("CREATE TABLE Foo (id INT)"))
	assert.Equal(t, "OTHER", Label("VACUUM"))
}

func TestPhases(t *testing.T) {
	stmts := []string{
		"INSERT INTO a VALUES (1)",
		"CREATE TABLE a (id INT)",
		"UPDATE a SET id = 2",
		"CREATE ZONE z",
		"DROP TABLE old",
		"SELECT 1",
	}

	schema, data := Phases(stmts)
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE ZONE z", "DROP TABLE old"}, schema)
	assert.Equal(t, []string{"INSERT INTO a VALUES (1)", "UPDATE a SET id = 2", "SELECT 1"}, data)
}

func TestScriptEndToEnd(t *testing.T) {
	raw := "-- comment\nCREATE TABLE Foo (id INT);\nINSERT INTO Foo (id) VALUES (1), (2), (3);\n"

	stmts := Split(raw)
	if assert.Len(t, stmts, 2) {
		assert.Equal(t, KindCreateTable, Classify(stmts[0]))
		assert.Equal(t, KindInsert, Classify(stmts[1]))
		assert.Equal(t, 3, CountRows(stmts[1]))

		batches := SplitBatch(stmts[1], 2)
		assert.Equal(t, []string{
			"INSERT INTO Foo (id) VALUES (1), (2)",
			"INSERT INTO Foo (id) VALUES (3)",
		}, batches)
		assert.Equal(t, 2, CountRows(batches[0]))
		assert.Equal(t, 1, CountRows(batches[1]))
	}
}
