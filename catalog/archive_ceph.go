//go:build ceph

/*
Copyright (C) 2026  Tau Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package catalog

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/ceph/go-ceph/rados"
)

// CephConfig names the storage.archive_* options relevant to the Ceph
// backend, gated behind the same `ceph` build tag the teacher uses for
// its RADOS-backed PersistenceEngine (storage/persistence-ceph.go).
type CephConfig struct {
	UserName    string
	ClusterName string
	Pool        string
}

// CephBackend uploads archived segments as whole RADOS objects, one per
// segment, keyed by the archive key.
type CephBackend struct {
	cfg CephConfig

	mu    sync.Mutex
	conn  *rados.Conn
	ioctx *rados.IOContext
}

// NewCephBackend constructs a backend that connects lazily on the first Put call.
func NewCephBackend(cfg CephConfig) *CephBackend {
	return &CephBackend{cfg: cfg}
}

func (b *CephBackend) ensureOpen() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ioctx != nil {
		return nil
	}

	conn, err := rados.NewConnWithClusterAndUser(b.cfg.ClusterName, b.cfg.UserName)
	if err != nil {
		return fmt.Errorf("archive: ceph conn: %w", err)
	}
	if err := conn.ReadDefaultConfigFile(); err != nil {
		return fmt.Errorf("archive: ceph config: %w", err)
	}
	if err := conn.Connect(); err != nil {
		return fmt.Errorf("archive: ceph connect: %w", err)
	}
	ioctx, err := conn.OpenIOContext(b.cfg.Pool)
	if err != nil {
		conn.Shutdown()
		return fmt.Errorf("archive: ceph open pool %s: %w", b.cfg.Pool, err)
	}
	b.conn = conn
	b.ioctx = ioctx
	return nil
}

// Put writes r as a whole RADOS object named key.
func (b *CephBackend) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	if err := b.ensureOpen(); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("archive: ceph read payload for %s: %w", key, err)
	}
	if err := b.ioctx.WriteFull(key, data); err != nil {
		return fmt.Errorf("archive: ceph write %s: %w", key, err)
	}
	return nil
}
