// Package aggregates defines the write boundaries of the marketplace core.
//
// Each contract owns a set of columns that no other code path may write, and reports
// failures as *Error values carrying a stable code and reason.
package aggregates
