// Package domain defines the core domain types and interfaces.
//
// No implementation code lives here - just model types, sentinel errors,
// and the repository contracts consumed by the other packages. Keeping the
// interfaces here prevents circular imports between the adapters.
package domain
