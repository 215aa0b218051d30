package rpc

import "context"

// LocalTransport delivers requests to in-process servers. It runs several services
// inside one binary and backs the tests.
type LocalTransport struct {
	servers []*Server
}

// NewLocalTransport routes each pattern to the first server that handles it.
func NewLocalTransport(servers ...*Server) *LocalTransport {
	return &LocalTransport{servers: servers}
}

func (t *LocalTransport) Send(ctx context.Context, req Request) (Reply, error) {
	for _, srv := range t.servers {
		if !srv.Has(req.Pattern) {
			continue
		}

		done := make(chan Reply, 1)
		go func() {
			done <- srv.Dispatch(context.WithoutCancel(ctx), req)
		}()

		select {
		case rep := <-done:
			return rep, nil
		case <-ctx.Done():
			return Reply{}, contextError(ctx)
		}
	}
	return Reply{}, ErrNoResponder
}
