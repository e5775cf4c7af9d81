// Package core defines the tracking domain model, the persistence and
// queue contracts the pipeline depends on, and the shared error
// envelope. Implementations live in sibling packages; core itself has
// no transport or storage dependencies.
package core
