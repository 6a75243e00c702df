// Package filekv is an embedded key/value store kept in a single file.
//
// A Store holds a nested document in memory, addressed by dot paths such as
// "server.http.port". Every Put and Remove updates the document at once and
// schedules a background write of the whole file. Writes run one at a time
// and go through a temp file and a backup, so a crash never leaves the
// file half written.
//
//	s, err := filekv.New(filekv.DefaultConfig("data/settings.json"))
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	if err := s.Put("server.port", 8080); err != nil {
//		return err
//	}
//	port, ok, err := s.Get("server.port")
//
// Get fails with ErrPathConflict when a scalar sits in the middle of the
// path; Lookup treats that case as a missing key. Drain waits until earlier
// mutations are on disk.
//
// A failed write halts the store. Later mutations return the failure, and
// the error is delivered through Errors and Config.OnFatal.
package filekv
