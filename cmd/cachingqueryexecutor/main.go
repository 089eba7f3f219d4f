// Command cachingqueryexecutor wires a caching query executor against the
// in-memory reference collaborators and runs a handful of demonstration
// queries.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/onflow/cachingqueryexecutor/cacheplugin"
	"github.com/onflow/cachingqueryexecutor/codec"
	"github.com/onflow/cachingqueryexecutor/config"
	"github.com/onflow/cachingqueryexecutor/executor"
	"github.com/onflow/cachingqueryexecutor/keygen"
	"github.com/onflow/cachingqueryexecutor/tsquery"
)

type staticResult struct {
	payload string
}

func (r staticResult) Empty() bool { return r.payload == "" }

// echoDownstream is a reference executor.Downstream that fabricates a
// result from the query's ID, standing in for a real downstream executor.
type echoDownstream struct {
	log zerolog.Logger
}

func (d *echoDownstream) ExecuteQuery(ctx context.Context, query tsquery.Query, _ any, cb func(executor.DownstreamResult)) executor.Subscription {
	done := make(chan struct{})
	cancelled := make(chan struct{})

	go func() {
		select {
		case <-time.After(10 * time.Millisecond):
		case <-cancelled:
			return
		}

		select {
		case <-done:
			return
		default:
		}

		d.log.Info().Str("query_id", query.ID()).Msg("computed downstream result")
		cb(executor.DownstreamResult{Value: staticResult{payload: "computed:" + query.ID()}})
	}()

	var once sync.Once
	return cancelFunc(func() {
		once.Do(func() { close(cancelled) })
	})
}

type cancelFunc func()

func (f cancelFunc) Cancel() { f() }

type registry struct {
	plugin executor.CachePlugin
	codec  executor.Codec
}

func (r *registry) Plugin(name string) (executor.CachePlugin, bool) {
	if name != "lru" {
		return nil, false
	}
	return r.plugin, true
}

func (r *registry) Codec(name string) (executor.Codec, bool) {
	if name != "cbor" {
		return nil, false
	}
	return r.codec, true
}

func main() {
	simultaneous := flag.Bool("simultaneous", false, "race the cache lookup against the downstream query")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	plugin, err := cacheplugin.New(log, 1024)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build cache plugin")
	}
	defer plugin.Close()

	c := codec.New(
		func(r tsquery.Result) ([]byte, error) { return []byte(r.(staticResult).payload), nil },
		func(b []byte) (tsquery.Result, error) { return staticResult{payload: string(b)}, nil },
	)

	cfg := config.NewBuilder("demo-executor", "caching-query").
		Expiration(60000).
		MaxExpiration(120000).
		Simultaneous(*simultaneous).
		Build()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	node := &executor.Node{DefaultConfig: cfg, PluginName: "lru", CodecName: "cbor"}
	reg := &registry{plugin: plugin, codec: c}
	downstream := &echoDownstream{log: log}
	keyGen := keygen.New(cfg.ExecutorID, nil)

	metrics := executor.NoopCollector{}
	ex, err := executor.NewExecutor(log, metrics, node, reg, downstream, keyGen)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build executor")
	}
	defer ex.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		q := tsquery.NewQuery(fmt.Sprintf("demo-query-%d", i), 0, time.Now().UnixMilli(), nil)
		exec, err := ex.ExecuteQuery(ctx, q, nil)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to execute query")
		}

		result, err := exec.Future().Wait()
		if err != nil {
			log.Error().Err(err).Str("query_id", q.ID()).Msg("query failed")
			continue
		}
		log.Info().Str("query_id", q.ID()).Interface("result", result).Msg("query resolved")
	}
}
