// Command mgindb-server runs the in-memory MginDB-compatible server with a
// write-ahead log, optionally mirrored to a GCS object.
package main

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/loganszeto/mgindb-go/internal/logger"
	"github.com/loganszeto/mgindb-go/internal/persistence"
	"github.com/loganszeto/mgindb-go/internal/protocol"
	"github.com/loganszeto/mgindb-go/internal/server"
	"github.com/loganszeto/mgindb-go/internal/stats"
	"github.com/loganszeto/mgindb-go/internal/store"
)

const defaultObject = "wal.log"

func main() {
	addr := flag.String("addr", "127.0.0.1:6446", "listen address")
	dataDir := flag.String("data_dir", "./data", "data directory")
	fsync := flag.Bool("fsync", false, "fsync on each write")
	username := flag.String("username", "", "required username")
	password := flag.String("password", "", "required password")
	welcome := flag.Bool("welcome", true, "greet sessions after login as the MginDB server does")
	bucket := flag.String("bucket", os.Getenv("MGINDB_BUCKET"), "GCS bucket mirroring the log")
	object := flag.String("object", defaultObject, "GCS object name")
	verbose := flag.BoolP("verbose", "v", false, "trace logging")
	flag.Parse()

	if *verbose {
		logger.EnableTrace()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatal("data dir: %v", err)
	}
	walPath := persistence.WALPath(*dataDir)

	walOpts := persistence.Options{Fsync: *fsync}
	opts := server.Options{
		Username: *username,
		Password: *password,
	}
	if *welcome {
		opts.Welcome = protocol.Welcome
	}
	if *bucket != "" {
		gcs, err := persistence.NewGCSMirror(ctx, *bucket, *object)
		if err != nil {
			logger.Fatal("gcs client: %v", err)
		}
		defer gcs.Close()
		if err := gcs.Download(ctx, walPath); err != nil {
			logger.Fatal("download wal: %v", err)
		}
		walOpts.Mirror = gcs
	}

	wal, err := persistence.OpenWAL(*dataDir, walOpts)
	if err != nil {
		logger.Fatal("open wal: %v", err)
	}
	defer wal.Close()

	st := store.NewMemTable()
	if err := persistence.Replay(walPath, st); err != nil {
		logger.Fatal("replay wal: %v", err)
	}

	srv := server.New(*addr, st, wal, stats.New(), opts)
	logger.Info("mgindb listening on %s", *addr)
	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Err("server error: %v", err)
	}
	logStats(srv.Stats())
}

func logStats(st *stats.Stats) {
	snap := st.Snapshot()
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		logger.Info("%s=%d", name, snap[name])
	}
}
