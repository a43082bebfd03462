package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/signctl/internal/device"
	"github.com/muurk/signctl/internal/discovery"
	"github.com/muurk/signctl/internal/logging"
	"github.com/muurk/signctl/internal/server"
	"github.com/muurk/signctl/internal/version"
)

// Serve command flags
var (
	serveListen    string
	serveAdvertise bool
	serveInstance  string
	serveTLSCert   string
	serveTLSKey    string
)

var serveCmd = &cobra.Command{
	Use:   "serve [device...]",
	Short: "Supervise devices and serve the HTTP API",
	Long: `Keep a session with every enabled device in the configuration file and
expose them over HTTP.

  GET  /api/devices                  device list with session state
  GET  /api/{device}/status          latest heartbeat status
  GET  /api/{device}/configuration   sign configuration
  POST /api/{device}/{operation}     run a command
  GET  /api/ws                       websocket event feed

Naming devices supervises only those, including disabled ones.`,
	Example: `  # Serve every enabled device on the configured address
  signctl serve

  # Serve two devices on port 9000 and advertise over mDNS
  signctl serve gantry-north gantry-south --listen :9000 --advertise

  # Serve over HTTPS
  signctl serve --tls-cert api.crt --tls-key api.key`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "HTTP listen address (default from configuration, :8080)")
	serveCmd.Flags().BoolVar(&serveAdvertise, "advertise", false, "Advertise the gateway over mDNS")
	serveCmd.Flags().StringVar(&serveInstance, "instance", "", "mDNS instance name (default: host name)")
	serveCmd.Flags().StringVar(&serveTLSCert, "tls-cert", "", "PEM certificate; serve HTTPS (needs --tls-key)")
	serveCmd.Flags().StringVar(&serveTLSKey, "tls-key", "", "PEM private key for --tls-cert")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Serve logs to stderr at info unless told otherwise.
	if logLevel == "" && os.Getenv(logging.LogLevelEnvVar) == "" {
		if err := logging.Initialize("info"); err != nil {
			return err
		}
	}

	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	mgr, err := device.FromRegistry(reg, args...)
	if err != nil {
		return err
	}
	if len(mgr.Names()) == 0 {
		return fmt.Errorf("no enabled devices in %s; add one with 'signctl config add'", reg.Path())
	}

	listen := reg.Server.Listen
	if serveListen != "" {
		listen = serveListen
	}
	cfg := &server.Config{Listen: listen, CertPath: reg.Server.TLSCert, KeyPath: reg.Server.TLSKey}
	if serveTLSCert != "" || serveTLSKey != "" {
		cfg.CertPath, cfg.KeyPath = serveTLSCert, serveTLSKey
	}
	srv, err := server.New(cfg, mgr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = mgr.Run(ctx)
	}()

	errc := make(chan error, 1)
	go func() { errc <- srv.Start(ctx) }()

	if serveAdvertise || reg.Server.Advertise {
		wg.Add(1)
		go func() {
			defer wg.Done()
			advertise(ctx, srv, instanceName(reg.Server.Instance), mgr.Names())
		}()
	}

	err = <-errc
	cancel()
	wg.Wait()
	return err
}

// advertise registers the gateway once the server is listening and
// withdraws it when ctx is done.
func advertise(ctx context.Context, srv *server.Server, instance string, devices []string) {
	addr, err := srv.Addr(ctx)
	if err != nil {
		return
	}
	txt := append(discovery.GatewayTXT(version.Version, devices), "scheme="+srv.Scheme())
	ad, err := discovery.Advertise(instance, discovery.PortOf(addr), txt)
	if err != nil {
		logging.Warn("mDNS advertisement failed", zap.Error(err))
		return
	}
	<-ctx.Done()
	ad.Shutdown()
}

func instanceName(configured string) string {
	if serveInstance != "" {
		return serveInstance
	}
	if configured != "" {
		return configured
	}
	host, err := os.Hostname()
	if err != nil {
		return "signctl"
	}
	return "signctl on " + host
}
