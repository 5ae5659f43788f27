// liveness.go - Liveness probe logic for the EmoChain node
package server

// NodeLiveness returns true once the node has a chain to serve. The chain
// handle only exists after genesis, so a live node always has height >= 0.
func (s *Server) NodeLiveness() bool {
	return s.chain != nil
}
