// Package shell holds the infrastructure shared by the lending feature handlers:
// retry with exponential backoff on storage contention, the HandlerResult execution metadata,
// and the logging/metrics/tracing helpers used by the observable wrappers.
//
// In Domain-Driven Design or Hexagonal Architecture terminology, this would be
// called the 'infrastructure' layer.
package shell
