package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hanpama/graphcore/internal/cache"
	"github.com/hanpama/graphcore/internal/config"
	"github.com/hanpama/graphcore/internal/eventbus"
	"github.com/hanpama/graphcore/internal/executor"
	"github.com/hanpama/graphcore/internal/introspection"
	"github.com/hanpama/graphcore/internal/language"
	"github.com/hanpama/graphcore/internal/logging"
	"github.com/hanpama/graphcore/internal/metrics"
	"github.com/hanpama/graphcore/internal/operation"
	"github.com/hanpama/graphcore/internal/otel"
	"github.com/hanpama/graphcore/internal/persisted"
	"github.com/hanpama/graphcore/internal/pipeline"
	"github.com/hanpama/graphcore/internal/schema"
	"github.com/hanpama/graphcore/internal/server"
	"github.com/hanpama/graphcore/internal/validation"
)

const rootUsage = `graphcore - GraphQL request processing server & tools

USAGE:
  graphcore <command> [flags]

COMMANDS:
  serve            Run the HTTP GraphQL server
  validate         Validate a query document against a schema
  print-schema     Load SDL and print the normalized schema
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -config <file>                      YAML configuration file (default: $GRAPHCORE_CONFIG)
  -schema <file>                      GraphQL SDL file (overrides schema.path)
  -data <file>                        JSON root values for the static runtime (overrides schema.data)
  -server.addr <addr>                 HTTP listen address (overrides server.addr)
  -server.pretty                      Pretty-print JSON responses
  -server.metadata-header <name>      Forward HTTP header to gRPC metadata. Repeatable
  -introspection <bool>               Allow introspection queries
`

const validateUsage = `validate FLAGS:
  -schema <file>   GraphQL SDL file (required)
  -query <file>    Query document to validate (required)
  -max-errors N    Stop after N errors (default: 100)
`

const printSchemaUsage = `print-schema FLAGS:
  -schema <file>   GraphQL SDL file (required)
  -out  <file>     Write the schema to file (default: stdout)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("graphcore", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "serve":
		return cmdServe(cmdArgs)
	case "validate":
		return cmdValidate(os.Stdout, cmdArgs)
	case "print-schema":
		return cmdPrintSchema(os.Stdout, cmdArgs)
	case "help":
		return cmdHelp(os.Stdout, cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(w io.Writer, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(w, rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Fprint(w, serveUsage)
	case "validate":
		fmt.Fprint(w, validateUsage)
	case "print-schema":
		fmt.Fprint(w, printSchemaUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func loadSchema(name, path string) (*schema.Schema, error) {
	if path == "" {
		return nil, config.ErrNoSchema
	}
	sdl, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return schema.BuildFromSDL(name, string(sdl))
}

func cmdServe(args []string) error {
	var (
		configPath      string
		schemaPath      string
		dataPath        string
		addr            string
		pretty          bool
		metadataHeaders stringListFlag
	)
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&configPath, "config", "", "YAML configuration file")
	fs.StringVar(&schemaPath, "schema", "", "GraphQL SDL file")
	fs.StringVar(&dataPath, "data", "", "JSON root values")
	fs.StringVar(&addr, "server.addr", "", "HTTP listen address")
	fs.BoolVar(&pretty, "server.pretty", false, "Pretty-print JSON responses")
	fs.Var(&metadataHeaders, "server.metadata-header", "Forward HTTP header to gRPC metadata")
	introspection := fs.Bool("introspection", false, "Allow introspection queries")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "schema":
			cfg.Schema.Path = schemaPath
		case "data":
			cfg.Schema.Data = dataPath
		case "server.addr":
			cfg.Server.Addr = addr
		case "server.pretty":
			cfg.Server.Pretty = pretty
		case "server.metadata-header":
			cfg.Server.MetadataHeaders = metadataHeaders
		case "introspection":
			cfg.Execution.Introspection = *introspection
		}
	})

	logger, err := logging.FromConfig(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler, cleanup, err := buildHandler(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     handler,
		ReadTimeout: cfg.Server.ReadTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("GraphQL server listening", zap.String("addr", cfg.Server.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildHandler wires schema, runtime, storages, caches, pipeline and the
// HTTP handler from cfg.
func buildHandler(ctx context.Context, cfg *config.Config, logger *zap.Logger) (http.Handler, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (http.Handler, func(), error) {
		cleanup()
		return nil, nil, err
	}

	sch, err := loadSchema(cfg.Schema.Name, cfg.Schema.Path)
	if err != nil {
		return fail(fmt.Errorf("build schema: %w", err))
	}
	rt := executor.NewStaticRuntime(nil)
	if cfg.Schema.Data != "" {
		if rt, err = executor.LoadStaticRuntime(cfg.Schema.Data); err != nil {
			return fail(fmt.Errorf("load data: %w", err))
		}
	}

	bus := eventbus.New()
	eventbus.Use(bus)
	shutdown, err := otel.Setup(ctx, cfg.Telemetry, bus)
	if err != nil {
		return fail(fmt.Errorf("otel setup: %w", err))
	}
	closers = append(closers, func() { _ = shutdown(context.Background()) })

	hasher, err := pipeline.NewHashProvider(cfg.PersistedOperations.HashAlgorithm)
	if err != nil {
		return fail(err)
	}
	popts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithBus(bus),
		pipeline.WithHashProvider(hasher),
		pipeline.WithTimeout(cfg.Execution.Timeout),
		pipeline.WithIntrospection(cfg.Execution.Introspection),
		pipeline.WithAllowedOperations(cfg.Execution.OperationKinds()...),
		pipeline.WithBatchParallelism(cfg.Execution.BatchParallelism),
		pipeline.WithComplexity(&cfg.Complexity),
		pipeline.WithValidation(
			validation.WithMaxErrors(cfg.Validation.MaxErrors),
			validation.WithPoolSize(cfg.Validation.PoolSize),
			validation.WithCycleLimits(cfg.Validation.CycleDefaultMax, cfg.Validation.CycleMaxima),
		),
	}
	if cfg.Execution.IncludeExceptionDetails {
		popts = append(popts, pipeline.WithExceptionDetails())
	}
	if cfg.Execution.BatchFailFast {
		popts = append(popts, pipeline.WithBatchFailFast())
	}

	if cfg.Cache.DocumentCacheSize > 0 {
		docs, err := cache.NewDocuments(cfg.Cache.DocumentCacheSize)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, docs.Close)
		popts = append(popts, pipeline.WithDocumentCache(docs))
	}
	if cfg.Cache.OperationCacheSize > 0 {
		ops, err := cache.New[*operation.Prepared](cfg.Cache.OperationCacheSize)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, ops.Close)
		popts = append(popts, pipeline.WithOperationCache(ops))
	}

	if po := cfg.PersistedOperations; po.Enabled {
		storage, err := persisted.New(po.Config)
		if err != nil {
			return fail(fmt.Errorf("persisted operations: %w", err))
		}
		switch c := storage.(type) {
		case interface{ Close() error }:
			closers = append(closers, func() { _ = c.Close() })
		case interface{ Close() }:
			closers = append(closers, c.Close)
		}
		popts = append(popts, pipeline.WithStorage(storage))
		if po.OnlyPersisted {
			popts = append(popts, pipeline.WithOnlyPersisted())
		}
		if po.AllowWrites {
			popts = append(popts, pipeline.WithPersistWrites())
		}
	}

	// Introspection fields always resolve; the validator decides who may query them.
	p := pipeline.New(executor.New(introspection.Wrap(rt, sch), introspection.WithTypes(sch)), popts...)

	sopts := []server.Option{
		server.WithLogger(logger),
		server.WithBus(bus),
		server.WithGraphiQL(cfg.Server.GraphiQL),
		server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
	}
	if cfg.Server.Pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(cfg.Server.CORSOrigins...))
	}
	if len(cfg.Server.MetadataHeaders) > 0 {
		sopts = append(sopts, server.WithMetadataHeaders(cfg.Server.MetadataHeaders...))
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", server.New(p, sopts...))
	if cfg.Metrics.Enabled {
		m := metrics.New(nil)
		m.Register(bus)
		mux.Handle(cfg.Metrics.Path, m.Handler())
	}
	return mux, cleanup, nil
}

func cmdValidate(w io.Writer, args []string) error {
	var schemaPath, queryPath string
	maxErrors := 100
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&schemaPath, "schema", "", "GraphQL SDL file")
	fs.StringVar(&queryPath, "query", "", "Query document")
	fs.IntVar(&maxErrors, "max-errors", maxErrors, "Stop after N errors")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, validateUsage)
		return err
	}
	if schemaPath == "" || queryPath == "" {
		fmt.Fprint(os.Stderr, validateUsage)
		return fmt.Errorf("-schema and -query are required")
	}

	sch, err := loadSchema("default", schemaPath)
	if err != nil {
		return fmt.Errorf("build schema: %w", err)
	}
	src, err := os.ReadFile(queryPath)
	if err != nil {
		return err
	}
	doc, err := language.ParseQuery(string(src))
	if err != nil {
		return fmt.Errorf("parse %s: %w", queryPath, err)
	}

	v := validation.NewBuilder().
		Add(validation.DefaultRules()...).
		Build(validation.WithMaxErrors(maxErrors))
	res := v.Validate(sch, doc, nil, false)
	if !res.HasErrors() {
		fmt.Fprintln(w, "ok")
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res.Errors); err != nil {
		return err
	}
	return fmt.Errorf("%d validation error(s)", len(res.Errors))
}

func cmdPrintSchema(w io.Writer, args []string) error {
	var schemaPath, outFile string
	fs := flag.NewFlagSet("print-schema", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&schemaPath, "schema", "", "GraphQL SDL file")
	fs.StringVar(&outFile, "out", "", "Write the schema to file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, printSchemaUsage)
		return err
	}
	sch, err := loadSchema("default", schemaPath)
	if err != nil {
		fmt.Fprint(os.Stderr, printSchemaUsage)
		return fmt.Errorf("build schema: %w", err)
	}
	sdl := schema.Render(sch)
	if outFile == "" {
		_, err := fmt.Fprint(w, sdl)
		return err
	}
	return os.WriteFile(outFile, []byte(sdl), 0o644)
}
