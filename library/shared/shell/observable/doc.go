// Package observable provides wrappers that instrument command and query handlers
// with metrics, tracing and logging while the handlers keep only business logic.
//
// The wrappers are applied externally at wiring time:
//
//	coreHandler := openborrow.NewCommandHandler(store)
//
//	handler, err := observable.NewCommandWrapper[openborrow.Command, lending.BorrowRecord](
//		coreHandler,
//		observable.WithCommandMetrics[openborrow.Command, lending.BorrowRecord](metricsCollector),
//		observable.WithCommandTracing[openborrow.Command, lending.BorrowRecord](tracingCollector),
//	)
//
//	record, result, err := handler.Handle(ctx, command)
package observable
