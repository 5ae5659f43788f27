// readiness.go - Readiness probe logic for the EmoChain node
package server

// NodeReadiness returns true if the chain is open and the stored tip is
// readable, meaning the node can serve reads and accept submissions.
func (s *Server) NodeReadiness() bool {
	if s.chain == nil || s.store == nil {
		return false
	}
	_, err := s.store.TipBlock()
	return err == nil
}
