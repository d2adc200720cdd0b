// Package model defines the declarative workflow vocabulary: the Step
// contract and the Definition DAG that binds steps together through
// dependency edges. Definitions are mutable while being assembled and become
// immutable once sealed by the engine at registration time.
package model
