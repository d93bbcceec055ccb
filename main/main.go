// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/leveldb"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/database/meterdb"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/transitionvm/version"
	"github.com/ava-labs/transitionvm/vm"
)

const (
	chainEndpoint   = "/ext/bc/" + vm.Name
	staticEndpoint  = "/ext/vm/" + vm.Name
	metricsEndpoint = "/ext/metrics"

	shutdownTimeout = 10 * time.Second
)

func main() {
	v, err := getViper()
	if err != nil {
		fmt.Printf("couldn't get config: %s\n", err)
		os.Exit(1)
	}
	// Print version and exit
	if v.GetBool(versionKey) {
		fmt.Printf("%s@%s\n", vm.Name, vm.Version)
		os.Exit(0)
	}

	p, err := getParams(v)
	if err != nil {
		fmt.Printf("couldn't get config: %s\n", err)
		os.Exit(1)
	}
	lvl, err := log.LvlFromString(p.logLevel)
	if err != nil {
		fmt.Printf("invalid log level: %s\n", err)
		os.Exit(1)
	}
	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(os.Stderr, log.TerminalFormat())))

	if err := run(p); err != nil {
		log.Error("node stopped", "error", err)
		os.Exit(1)
	}
}

func run(p *params) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	db, err := openDB(p, registry)
	if err != nil {
		return err
	}
	defer db.Close()

	factory := &vm.Factory{Registry: version.NewDefaultRegistry()}
	node := factory.New()
	if err := node.Initialize(db, p.genesis, p.config, registry); err != nil {
		return err
	}
	defer func() {
		if err := node.Shutdown(); err != nil {
			log.Error("error while shutting down", "error", err)
		}
	}()

	router, err := newRouter(node, factory.Registry, registry)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              p.httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("serving API", "addr", p.httpAddr, "chain", chainEndpoint, "static", staticEndpoint)
		serveErr <- server.ListenAndServe()
	}()

	var producerDone chan struct{}
	if p.blockInterval > 0 {
		producerDone = make(chan struct{})
		producer := newProducer(node, p.proposer, p.config.MaxBlockBytes)
		go func() {
			defer close(producerDone)
			producer.run(ctx, p.blockInterval)
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			stop()
			if producerDone != nil {
				<-producerDone
			}
			return err
		}
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	if producerDone != nil {
		<-producerDone
	}
	return err
}

func openDB(p *params, registry prometheus.Registerer) (database.Database, error) {
	switch p.dbType {
	case memdbType:
		return memdb.New(), nil
	case leveldbType:
		db, err := leveldb.New(path.Join(p.dbDir, vm.Name), nil, logging.NoLog{})
		if err != nil {
			return nil, err
		}
		meterDB, err := meterdb.New("leveldb", registry, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return meterDB, nil
	default:
		return nil, fmt.Errorf("%w %q", errUnknownDBType, p.dbType)
	}
}

// newRouter mounts the chain API, the static API and the metrics of [node].
func newRouter(node *vm.VM, versions version.Provider, gatherer prometheus.Gatherer) (*mux.Router, error) {
	router := mux.NewRouter()

	handlers, err := node.CreateHandlers()
	if err != nil {
		return nil, err
	}
	for extension, handler := range handlers {
		router.Handle(chainEndpoint+extension, handler)
	}

	staticHandlers, err := vm.CreateStaticHandlers(versions)
	if err != nil {
		return nil, err
	}
	for extension, handler := range staticHandlers {
		router.Handle(staticEndpoint+extension, handler)
	}

	router.Handle(metricsEndpoint, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return router, nil
}
