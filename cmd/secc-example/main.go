// Command secc-example runs a reference SECC (Supply Equipment
// Communication Controller): a TCP listener that speaks the DIN SPEC
// 70121 / ISO 15118-2 / ISO 15118-20 common message catalogs to one EVCC
// per accepted connection, driving a secc.Handler over a length-prefixed
// frame transport and a CBOR stand-in codec.
//
// Usage:
//
//	secc-example --config secc.yaml --listen :15118
//
// Flags:
//
//	--config string    YAML configuration file (see pkg/config)
//	--listen string    address to listen on (default ":15118")
//	--evse-id string   overrides config's EVSEID
//	--log-file string  protolog event file, in addition to stderr
//	--announce         advertise the listener over mDNS (demonstration only)
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mash-protocol/mash-go/pkg/codec"
	seccconfig "github.com/mash-protocol/mash-go/pkg/config"
	"github.com/mash-protocol/mash-go/pkg/evse"
	"github.com/mash-protocol/mash-go/pkg/pemstore"
	"github.com/mash-protocol/mash-go/pkg/protolog"
	"github.com/mash-protocol/mash-go/pkg/secc"
	secc_din "github.com/mash-protocol/mash-go/pkg/secc/state/din"
	"github.com/mash-protocol/mash-go/pkg/secc/state/iso2"
	"github.com/mash-protocol/mash-go/pkg/secc/state/iso20"
	"github.com/mash-protocol/mash-go/pkg/transport"
)

var v = viper.New()

func main() {
	root := &cobra.Command{
		Use:   "secc-example",
		Short: "Reference SECC listener for DIN SPEC 70121 / ISO 15118-2/-20",
		RunE:  run,
	}

	flags := root.Flags()
	flags.String("config", "", "YAML configuration file")
	flags.String("listen", ":15118", "address to listen on")
	flags.String("evse-id", "", "overrides the configured EVSE identifier")
	flags.String("log-file", "", "protolog event file, appended in addition to stderr")
	flags.Bool("announce", false, "advertise the listener over mDNS (demonstration only)")

	if err := v.BindPFlags(flags); err != nil {
		log.Fatalf("secc-example: bind flags: %v", err)
	}
	v.SetEnvPrefix("SECC")
	v.AutomaticEnv()

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg := seccconfig.Default()
	if path := v.GetString("config"); path != "" {
		loaded, err := seccconfig.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if id := v.GetString("evse-id"); id != "" {
		cfg.EVSEID = id
	}

	logger, closeLogger, err := buildLogger(v.GetString("log-file"))
	if err != nil {
		return err
	}
	defer closeLogger()

	iso2Deps, dinDeps, iso20Deps, err := buildDeps(cfg)
	if err != nil {
		return err
	}

	addr := v.GetString("listen")
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("secc-example: listen %s: %w", addr, err)
	}
	defer ln.Close()
	log.Printf("secc-example: listening on %s (evse-id=%s, allow-pnc=%v)", addr, cfg.EVSEID, cfg.AllowPnC)

	if v.GetBool("announce") {
		ann, err := newAnnouncer(addr, cfg.EVSEID)
		if err != nil {
			log.Printf("secc-example: mDNS announce disabled: %v", err)
		} else {
			defer ann.shutdown()
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := secc.NewMemorySessionStore()
	go acceptLoop(ctx, ln, store, logger, iso2Deps, dinDeps, iso20Deps)

	<-ctx.Done()
	log.Println("secc-example: shutting down")
	return nil
}

func acceptLoop(ctx context.Context, ln net.Listener, store secc.SessionStore, logger protolog.Logger, iso2Deps iso2.Deps, dinDeps secc_din.Deps, iso20Deps iso20.Deps) {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("secc-example: accept: %v", err)
			continue
		}
		go serveConn(ctx, conn, store, logger, iso2Deps, dinDeps, iso20Deps)
	}
}

func serveConn(ctx context.Context, conn net.Conn, store secc.SessionStore, logger protolog.Logger, iso2Deps iso2.Deps, dinDeps secc_din.Deps, iso20Deps iso20.Deps) {
	defer conn.Close()

	_, isTLS := conn.(*tls.Conn)
	h := &secc.Handler{
		Transport:  transport.NewFramer(conn),
		Codec:      codec.CBORCodec{},
		Store:      store,
		Logger:     logger,
		RemoteAddr: conn.RemoteAddr().String(),
		IsTLS:      isTLS,
		ISO2Deps:   iso2Deps,
		DINDeps:    dinDeps,
		ISO20Deps:  iso20Deps,
	}

	log.Printf("secc-example: session start %s", h.RemoteAddr)
	if err := h.Run(ctx); err != nil {
		log.Printf("secc-example: session %s ended: %v", h.RemoteAddr, err)
	} else {
		log.Printf("secc-example: session %s ended cleanly", h.RemoteAddr)
	}
}

func buildLogger(logFile string) (protolog.Logger, func(), error) {
	console := consoleLogger{}
	if logFile == "" {
		return console, func() {}, nil
	}

	file, err := protolog.NewFileLogger(logFile)
	if err != nil {
		return nil, nil, fmt.Errorf("secc-example: open log file: %w", err)
	}
	return protolog.NewMultiLogger(console, file), func() { file.Close() }, nil
}

// consoleLogger prints a one-line summary of each event to the standard
// logger, standing in for a dashboard a real deployment would feed.
type consoleLogger struct{}

func (consoleLogger) Log(e protolog.Event) {
	switch e.Category {
	case protolog.CategoryMessage:
		if e.Message != nil {
			log.Printf("[%s] %s %s %s", e.SessionID, e.Direction, e.Message.RequestType, e.Message.ResponseCode)
		}
	case protolog.CategoryState:
		if e.StateChange != nil {
			log.Printf("[%s] state %s -> %s", e.SessionID, e.StateChange.OldState, e.StateChange.NewState)
		}
	case protolog.CategoryError:
		if e.Error != nil {
			log.Printf("[%s] error: %s", e.SessionID, e.Error.Message)
		}
	}
}

func buildDeps(cfg seccconfig.Config) (iso2.Deps, secc_din.Deps, iso20.Deps, error) {
	ctrl := evse.NewSimulated(cfg.EVSEID)

	iso2Deps := iso2.Deps{EVSE: ctrl, AllowPnC: cfg.AllowPnC}
	dinDeps := secc_din.Deps{EVSE: ctrl}
	iso20Deps := iso20.Deps{EVSE: ctrl}

	if !cfg.AllowPnC {
		return iso2Deps, dinDeps, iso20Deps, nil
	}

	v2gRoot, err := pemstore.LoadRootPool(cfg.V2GRootCertPath)
	if err != nil {
		return iso2.Deps{}, secc_din.Deps{}, iso20.Deps{}, err
	}
	moRoot, err := pemstore.LoadRootPool(cfg.MORootCertPath)
	if err != nil {
		return iso2.Deps{}, secc_din.Deps{}, iso20.Deps{}, err
	}
	cpsChain, err := pemstore.LoadChain(cfg.CPSCertChainPath)
	if err != nil {
		return iso2.Deps{}, secc_din.Deps{}, iso20.Deps{}, err
	}
	cpsKey, err := pemstore.LoadKey(cfg.CPSSigningKeyPath)
	if err != nil {
		return iso2.Deps{}, secc_din.Deps{}, iso20.Deps{}, err
	}

	iso2Deps.V2GRoot = v2gRoot
	iso2Deps.MORoot = moRoot
	iso2Deps.CPSCertChain = cpsChain
	iso2Deps.CPSSigningKey = cpsKey

	return iso2Deps, dinDeps, iso20Deps, nil
}
