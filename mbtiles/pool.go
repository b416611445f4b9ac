package mbtiles

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
)

// connPool is a fixed-size pool of SQLite connections opened against the
// same file, generalizing teacher's single-mutex-guarded-handle pattern
// (bucket.go) to the bounded pool spec.md §4.7 calls for ("bounded
// connection pool, size = logical CPUs").
type connPool struct {
	path  string
	slots chan *sqlite.Conn
}

func openConnPool(path string, size int, flags sqlite.OpenFlags) (*connPool, error) {
	if size < 1 {
		size = 1
	}
	p := &connPool{path: path, slots: make(chan *sqlite.Conn, size)}
	for i := 0; i < size; i++ {
		conn, err := sqlite.OpenConn(path, flags)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to open connection %d/%d for %q: %w", i+1, size, path, err)
		}
		p.slots <- conn
	}
	return p, nil
}

// take blocks for a free connection until one is available or ctx is
// done.
func (p *connPool) take(ctx context.Context) (*sqlite.Conn, error) {
	select {
	case conn := <-p.slots:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *connPool) put(conn *sqlite.Conn) {
	p.slots <- conn
}

func (p *connPool) Close() error {
	close(p.slots)
	var firstErr error
	for conn := range p.slots {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
