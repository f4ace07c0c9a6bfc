// Package seeddb provides the database client demo scripts are loaded into:
// a SQLite database that also understands the catalog objects of a
// distributed SQL database.
//
// Features:
//   - Single-statement execution with typed errors
//   - Distribution zones (CREATE ZONE / DROP ZONE) kept in a catalog table
//   - CREATE TABLE ... [COLOCATE BY (...)] ZONE name, bound to the catalog
//   - Declarative tables from TableDef values or gorm-tagged structs
//   - Transactions with commit-or-rollback helpers
//
// Example usage:
//
//	db, err := seeddb.Open(seeddb.Config{DBPath: "music.db"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	err = db.CreateZone(ctx, seeddb.ZoneDef{Name: "Music", Replicas: 2})
//	if err != nil && !seeddb.IsAlreadyExists(err) {
//		log.Fatal(err)
//	}
//
//	_, err = db.ExecContext(ctx, "CREATE TABLE Artist (ArtistId INT PRIMARY KEY, Name VARCHAR) ZONE Music")
//	if err != nil && !seeddb.IsAlreadyExists(err) {
//		log.Fatal(err)
//	}
package seeddb
