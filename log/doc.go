// Package log provides the leveled, printf-style logger used across campusrag.
//
// Components take a Logger in their constructor and fall back to the
// package-level default (see OrDefault). Two implementations are provided:
// DefaultLogger over the standard library and GologLogger over
// github.com/kataras/golog. Event names are dotted, for example
//
//	logger.Info("summary.updated uid=%s cid=%s mid=%s len=%d", uid, cid, mid, n)
//
// Use NoOpLogger to silence output in tests.
package log
