package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/groovydhruv/power-ups/pkg/audio/pcm"
	"github.com/groovydhruv/power-ups/pkg/cli"
	"github.com/groovydhruv/power-ups/pkg/history"
	"github.com/groovydhruv/power-ups/pkg/storage"
)

// openBucket builds the durable audio store of a context.
func openBucket(ctx context.Context, c *cli.Context) (*storage.Bucket, error) {
	sc := cli.StorageConfig{}
	if c.Storage != nil {
		sc = *c.Storage
	}
	switch sc.Kind {
	case "", "local":
		dir := sc.Dir
		if dir == "" {
			paths, err := cli.NewPaths()
			if err != nil {
				return nil, err
			}
			dir = paths.AudioDir(c.Name)
		}
		store, err := storage.NewLocal(dir)
		if err != nil {
			return nil, fmt.Errorf("local storage: %w", err)
		}
		base := sc.PublicBase
		if base == "" {
			base = "file://" + store.Root()
		}
		return storage.NewBucket(store, base), nil

	case "memory":
		return storage.NewBucket(storage.NewMemory(), "memory://walkie"), nil

	case "s3":
		if sc.Bucket == "" {
			return nil, errors.New("s3 storage: bucket is required")
		}
		var opts []func(*awsconfig.LoadOptions) error
		if sc.Region != "" {
			opts = append(opts, awsconfig.WithRegion(sc.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("s3 storage: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if sc.Endpoint != "" {
				o.BaseEndpoint = aws.String(sc.Endpoint)
				o.UsePathStyle = true
			}
		})
		base := sc.PublicBase
		if base == "" {
			base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", sc.Bucket, awsCfg.Region)
			if sc.Prefix != "" {
				base += "/" + sc.Prefix
			}
		}
		return storage.NewBucket(storage.NewS3(client, sc.Bucket, sc.Prefix), base), nil

	default:
		return nil, fmt.Errorf("unknown storage kind %q", sc.Kind)
	}
}

// openHistory opens the on-disk message history of a context.
func openHistory(c *cli.Context) (*history.Store, error) {
	paths, err := cli.NewPaths()
	if err != nil {
		return nil, err
	}
	dir, err := paths.Ensure(paths.HistoryDir(c.Name))
	if err != nil {
		return nil, err
	}
	db, err := history.NewBadger(history.BadgerOptions{Dir: dir})
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", dir, err)
	}
	return history.NewStore(db), nil
}

// openOutput returns where rendered audio goes: a raw PCM file, stdout for
// "-", or nowhere.
func openOutput(path string) (pcm.Writer, io.Closer, error) {
	switch path {
	case "":
		return pcm.Discard, nopCloser{}, nil
	case "-":
		return pcm.ChunkWriter(os.Stdout), nopCloser{}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return pcm.ChunkWriter(f), f, nil
}

// newRegistry returns a registry with the Go runtime collectors.
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// serveMetrics serves reg on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()
	slog.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
