// Package domain holds the shared data model of the workflow engine:
// workflow messages, operation and execution records, the error taxonomy,
// validation issues, audit events and the contracts the engine consumes
// from external collaborators (catalog provider, credential resolver,
// audit sink). It has no dependencies on other engine packages so every
// layer can import it freely.
package domain
