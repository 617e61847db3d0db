// Package types defines the shared data model for the codeatlas indexing
// pipeline: entities, parse results, file summaries, and relationship
// graph primitives. It has no dependencies on other codeatlas packages so
// every layer can exchange these values freely.
package types
