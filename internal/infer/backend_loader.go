package infer

import "fmt"

// OpenBackend loads modelPath into a Backend ready to serve Run. The
// embedded tensor runtime (weight loading, device placement, graph
// construction) is an external collaborator this package only
// orchestrates around — see Backend's doc comment — so the concrete
// runtime adapter is wired in at the call site rather than here.
// OpenBackendFunc is nil until something registers a real adapter;
// callers get a clear error instead of a silently-fake backend.
var OpenBackendFunc func(modelPath string, ctxCap int) (Backend, error)

// OpenBackend loads modelPath through OpenBackendFunc, the seam a
// concrete embedded-runtime adapter registers itself into during
// program init.
func OpenBackend(modelPath string, ctxCap int) (Backend, error) {
	if OpenBackendFunc == nil {
		return nil, fmt.Errorf("infer: no backend adapter registered; build with a concrete embedded-runtime adapter wired into OpenBackendFunc")
	}
	return OpenBackendFunc(modelPath, ctxCap)
}
