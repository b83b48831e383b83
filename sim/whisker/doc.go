// Package whisker implements the policy representation searched by the breeder.
//
// A WhiskerTree partitions the memory space (the small vector of network
// observations kept by each sender) into axis-aligned boxes. Every leaf is a
// Whisker that maps its box to an Action: how the congestion window evolves on
// each ack and how far apart sends must be.
//
// The tree supports the operations the search needs: Replace a leaf with a new
// action, Bisect a leaf into two children, Promote generations, and find the
// MostUsed leaf of a generation after an evaluation. Whisker equality is pure
// value equality on (domain, action), exposed as Key for memoization.
//
// Trees persist through Marshal/Unmarshal (protobuf wire format).
package whisker
