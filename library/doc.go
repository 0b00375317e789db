// Package library wires the lending features into one facade for the request layer.
//
// A Service owns the command and query handlers of library/features, wrapped with the observable
// wrappers of library/shared/shell/observable, and a notification.Dispatcher that runs after every
// successful return:
//
//	registry := notification.NewConnectionRegistry()
//	defer registry.Close()
//
//	service, err := library.NewService(store, registry, library.WithContextualLogger(logger))
//	record, err := service.OpenBorrow(ctx, userID, itemID, service.DefaultDueAt())
//	_, err = service.CloseBorrow(ctx, record.ID, lending.Actor{ID: userID})
//
// Closing a borrow commits first and dispatches afterward. Dispatch problems are logged by the
// dispatcher and never reach the caller of CloseBorrow.
package library
