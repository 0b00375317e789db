// Package borrowhistory implements the Borrow History query use case.
//
// It lists borrow records newest first, one page at a time, each with its derived view
// (overdue flag, days remaining or overdue, duration). Records can be filtered by user,
// stored status and the derived overdue state. Non-privileged actors only ever see their
// own records; asking for somebody else's fails with ErrForbidden.
package borrowhistory
