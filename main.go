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

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dc0d/onexit"

	"github.com/taudb/tau/actor"
	"github.com/taudb/tau/catalog"
	"github.com/taudb/tau/config"
	"github.com/taudb/tau/server"
)

func main() {
	log.SetFlags(log.Lmicroseconds)
	log.SetPrefix("tau: ")
	os.Exit(run())
}

// run wires config, catalog, actor pool, archiver, discovery watcher and
// the connection listener, then blocks until SIGINT/SIGTERM triggers a
// clean shutdown (spec.md §4.N, SPEC_FULL.md §6 "CLI").
func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("config: %v", err)
		return 1
	}

	catCfg := catalog.Config{
		CatalogCapacity:        cfg.ServerCatalogCapacity,
		MailboxCapacity:        cfg.ServerMailboxCapacity,
		SegmentCapacityDefault: int(cfg.StorageSegmentCapacityDefault),
		SegmentCapacityMax:     int(cfg.StorageSegmentCapacityMax),
		Backend:                backendFromConfig(cfg.StorageDefaultBackend),
		DataDir:                cfg.StorageDataDir,
		ActorPoolSize:          cfg.ServerActorPoolSize,
		ArchiveOnSeal:          cfg.StorageArchiveBackend != "none" && cfg.StorageArchiveBackend != "",
	}
	cat, err := catalog.New(catCfg)
	if err != nil {
		log.Printf("catalog: %v", err)
		return 1
	}

	if archiver := buildArchiver(cfg); archiver != nil {
		cat.AttachArchiver(archiver)
		onexit.Register(func() { archiver.Sync(context.Background()) })
		defer archiver.Sync(context.Background())
	}

	var stopWatch chan struct{}
	if catCfg.Backend == catalog.BackendFile && cfg.StorageDiscoveryWatch {
		stopWatch = make(chan struct{})
		go cat.WatchDiscovery(stopWatch)
	}

	pool := actor.NewPool(cat, catCfg.ActorPoolSize)
	cat.AttachPool(pool)
	cat.SetPoolRunning(true)

	ctx, cancel := context.WithCancel(context.Background())
	poolDone := make(chan error, 1)
	go func() { poolDone <- pool.Run(ctx) }()

	var token [server.TokenSize]byte
	copy(token[:], cfg.ServerCertificate)

	addr := fmt.Sprintf("%s:%d", cfg.ServerAddress, cfg.ServerPort)
	ln := server.NewListener(addr, cat, token, &server.Counters{})
	serveErr := make(chan error, 1)
	go func() { serveErr <- ln.Serve(ctx) }()

	log.Printf("listening on %s", addr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sig:
		log.Printf("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			log.Printf("listener: %v", err)
			cancel()
			return 1
		}
	}

	cancel()
	ln.Close()
	ln.Wait()
	if stopWatch != nil {
		close(stopWatch)
	}
	<-poolDone

	log.Printf("shutdown complete")
	return 0
}

func backendFromConfig(name string) catalog.Backend {
	if name == "file" {
		return catalog.BackendFile
	}
	return catalog.BackendSegment
}

// buildCephArchiver is non-nil only in binaries built with -tags ceph
// (see main_ceph.go), matching the teacher's own go:build-gated RADOS
// support in storage/persistence-ceph.go.
var buildCephArchiver func(region, pool string) *catalog.Archiver

func buildArchiver(cfg *config.Config) *catalog.Archiver {
	switch cfg.StorageArchiveBackend {
	case "s3":
		backend := catalog.NewS3Backend(catalog.S3Config{
			Region:   cfg.StorageArchiveRegion,
			Endpoint: cfg.StorageArchiveEndpoint,
			Bucket:   cfg.StorageArchiveBucket,
		})
		return catalog.NewArchiverWithCodec(backend, cfg.StorageArchivePrefix, catalog.Codec(cfg.StorageArchiveCodec))
	case "ceph":
		if buildCephArchiver == nil {
			log.Printf("storage.archive_backend=ceph requires a build with -tags ceph; archiving disabled")
			return nil
		}
		return buildCephArchiver(cfg.StorageArchiveRegion, cfg.StorageArchiveBucket)
	default:
		return nil
	}
}
