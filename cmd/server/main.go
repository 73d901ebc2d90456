package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ebobo/cellular_go/pkg/cellmgmt"
	"github.com/ebobo/cellular_go/pkg/cellular"
	"github.com/ebobo/cellular_go/pkg/events"
	"github.com/ebobo/cellular_go/pkg/metrics"
	"github.com/ebobo/cellular_go/pkg/model"
	"github.com/ebobo/cellular_go/pkg/server"
	sqlitestore "github.com/ebobo/cellular_go/pkg/store/sqlite"
	"github.com/ebobo/cellular_go/pkg/usage"
	"github.com/ebobo/cellular_go/pkg/utility"
	"github.com/ebobo/cellular_go/pkg/watchdog"
)

var opt struct {
	HTTPAddr      string `short:"h" long:"http-addr" env:"HTTP_ADDR" default:":9090" description:"http listen address" required:"yes"`
	SqliteFile    string `long:"sqlite-file" env:"SQLITE_FILE" default:"cellular.db" description:"sqlite file"`
	SeedFile      string `long:"seed-file" env:"SEED_FILE" description:"YAML configuration stored on first start"`
	MonitFile     string `long:"monit-file" env:"MONIT_FILE" default:"/etc/monit/conf.d/keepalive" description:"monit keepalive check"`
	MonitService  string `long:"monit-service" env:"MONIT_SERVICE" default:"monit" description:"service restarted after the check changes"`
	CellMgmt      string `long:"cell-mgmt" env:"CELL_MGMT" default:"/usr/sbin/cell_mgmt" description:"cell_mgmt tool"`
	SSHHost       string `long:"ssh-host" env:"SSH_HOST" description:"run cell_mgmt on this gateway (host:port) instead of locally"`
	SSHUser       string `long:"ssh-user" env:"SSH_USER" default:"root" description:"gateway ssh user"`
	SSHPassword   string `long:"ssh-password" env:"SSH_PASSWORD" description:"gateway ssh password"`
	SNMPTarget    string `long:"snmp-target" env:"SNMP_TARGET" default:"127.0.0.1" description:"SNMP agent with the interface counters"`
	SNMPCommunity string `long:"snmp-community" env:"SNMP_COMMUNITY" default:"public" description:"SNMP community"`
	NATSURL       string `long:"nats-url" env:"NATS_URL" description:"message bus for network events, events are only logged when empty"`
	Simulate      bool   `long:"simulate" env:"SIMULATE" description:"simulate a cellular module"`
}

func main() {
	_, err := flags.ParseArgs(&opt, os.Args)
	if err != nil {
		log.Fatalf("error parsing flags: %v", err)
	}

	err = utility.MakeDirIfNotExists(filepath.Dir(opt.SqliteFile))
	if err != nil {
		log.Fatalf("error creating database directory: %v", err)
	}

	db, created, err := sqlitestore.New(opt.SqliteFile)
	if err != nil {
		log.Fatalf("error connect to sqlite: %v", err)
	}

	seed := model.DefaultConfig()
	if opt.SeedFile != "" {
		seed, err = model.LoadSeed(opt.SeedFile)
		if err != nil {
			log.Fatalf("error loading seed configuration: %v", err)
		}
	}
	if _, err := db.LoadOrSeedConfig(seed); err != nil {
		log.Fatalf("error loading cellular configuration: %v", err)
	}
	if !created {
		log.Println("db already exists")
	}

	var runner cellmgmt.Runner
	switch {
	case opt.Simulate:
		runner = cellmgmt.NewSimRunner("wwan0", "")
	case opt.SSHHost != "":
		sshRunner, err := cellmgmt.DialSSH(opt.SSHHost, opt.SSHUser, opt.SSHPassword, opt.CellMgmt)
		if err != nil {
			log.Fatalf("error connecting to gateway: %v", err)
		}
		defer sshRunner.Close()
		runner = sshRunner
	default:
		runner = cellmgmt.LocalRunner{Path: opt.CellMgmt}
	}
	cm := cellmgmt.New(runner)

	var sink cellular.EventSink = events.LogSink{}
	if opt.NATSURL != "" {
		natsSink, err := events.Connect(opt.NATSURL, "cellular")
		if err != nil {
			log.Fatalf("error connecting to message bus: %v", err)
		}
		defer natsSink.Close()
		sink = natsSink
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ctrl, err := cellular.New(cellular.Config{
		Store:      db,
		Modem:      cm,
		NewManager: cellmgmt.NewFactory(cm),
		NewUsage: func(dev string) cellular.UsageTracker {
			return usage.NewSNMPTracker(dev, opt.SNMPTarget, opt.SNMPCommunity)
		},
		Watchdog: watchdog.New(opt.MonitFile, opt.MonitService),
		Events:   sink,
		Metrics:  metrics.New(reg),
	})
	if err != nil {
		log.Fatalf("error creating cellular controller: %v", err)
	}
	ctrl.Start(context.Background())

	server := server.New(server.Config{
		HTTPListenAddr: opt.HTTPAddr,
		Cellular:       ctrl,
		Gatherer:       reg,
	})

	e := server.Start()
	if e != nil {
		log.Fatalf("error starting server: %v", e)
	}

	// Block forever
	// Capture Ctrl-C
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	server.Shutdown()
	ctrl.Shutdown()
	db.Close()
}
