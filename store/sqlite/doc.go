// Package sqlite provides a SQLite-backed store.MessageStore for single-node
// deployments and local development.
//
//	s, err := sqlite.NewSqliteMessageStore(sqlite.SqliteOptions{
//		Path: "./campusrag.db",
//	})
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
// The schema is created on open.
package sqlite
