/*
Package domain contains the core domain models of the Stepwise wizard engine.

It defines the step contract that wizard authors implement, the immutable run
configuration and the mutable runtime state. The package is kept pure and
free of I/O so that the transition logic can be tested without any host,
following Hexagonal Architecture principles.

# Key Entities

  - StepDefinition: one page of a multi-step form (id, validator, visibility and skip predicates).
  - Config: the ordered step list, initial data and cancel policy of a run.
  - State: the runtime snapshot of a run (current step, data, completed, errors, attempted).
  - Completion: the plain payload handed to the host when a run completes.
*/
package domain
