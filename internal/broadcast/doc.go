// Package broadcast delivers live price updates to every admitted session.
//
// The Broadcaster takes a point-in-time snapshot from the registry and
// attempts delivery to each member; sessions whose write fails are pruned.
// ClientWriter owns all outbound traffic for a single connection.
package broadcast
