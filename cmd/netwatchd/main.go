// Command netwatchd wires the monitoring engine's components into a
// runnable process: load configuration, build the persistence/notification
// sinks, start the Monitor Manager, and serve Prometheus metrics.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"netwatch/engine/config"
	"netwatch/engine/inventory"
	"netwatch/engine/manager"
	"netwatch/engine/notify"
	"netwatch/engine/probes"
	"netwatch/engine/processor"
	"netwatch/engine/storage"
	"netwatch/engine/telemetry/logging"
	"netwatch/engine/telemetry/metrics"
)

func main() {
	configPath := flag.String("config", "/etc/netwatch/config.yaml", "path to the engine configuration file")
	inventoryPath := flag.String("inventory", "/etc/netwatch/inventory.yaml", "path to the static inventory file")
	alertStatePath := flag.String("alert-state", "/var/lib/netwatch/alert_state.json", "path to the persisted alert-level state file")
	metricsAddr := flag.String("metrics-addr", ":9090", "address to serve /metrics on")
	flag.Parse()

	log := logging.New(slog.Default())

	cfgFile, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	inv, err := inventory.NewFileProvider(*inventoryPath)
	if err != nil {
		log.Error("failed to load inventory", "err", err)
		os.Exit(1)
	}

	coll := metrics.NewCollector("netwatch")

	fileSink := storage.NewFileSink(cfgFile.Logging.FilePath, cfgFile.Logging.Retention)
	influxSink := storage.NewInfluxSink(storage.Config{
		InfluxEnabled: cfgFile.InfluxDB.Enabled, InfluxURL: cfgFile.InfluxDB.URL,
		InfluxToken: cfgFile.InfluxDB.Token, InfluxOrg: cfgFile.InfluxDB.Org, InfluxBucket: cfgFile.InfluxDB.Bucket,
	})
	sink := storage.NewCompositeSink(fileSink, influxSink)

	pushover := notify.NewPushoverSink()
	if cfgFile.Pushover.Enabled {
		pushover.Configure(cfgFile.Pushover.Token, cfgFile.Pushover.UserKey)
	}

	alertStore := processor.NewAlertStore(*alertStatePath)
	proc := processor.New(alertStore, sink, pushover, nil, log, coll)

	icmpDriver := probes.NewICMPDriver()
	snmpDriver := probes.NewSNMPDriver()

	mgrCfg := manager.Config{
		TickInterval:          time.Second,
		SNMPCollectorInterval: time.Duration(cfgFile.Engine.SNMPCollectorIntervalSeconds * float64(time.Second)),
		MaxInFlight:           cfgFile.Engine.MaxInFlight,
		ProbeTimeout:          time.Duration(cfgFile.Engine.ProbeTimeoutSeconds * float64(time.Second)),
		ThrottlingEnabled:     cfgFile.Pushover.ThrottlingEnabled,
		AlertThreshold:        cfgFile.Pushover.AlertThreshold,
		AlertWindow:           time.Duration(cfgFile.Pushover.AlertWindow) * time.Second,
		MaintenanceMode:       cfgFile.Pushover.MaintenanceMode,
		DownMessageTemplate:   cfgFile.Pushover.MessageTemplate,
	}
	mgr := manager.New(mgrCfg, inv, icmpDriver, snmpDriver, sink, pushover, proc, log, coll)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watchConfigReloads(ctx, *configPath, sink, pushover, mgr, log)

	go serveMetrics(*metricsAddr, coll, log)

	log.Info("netwatchd starting", "config", *configPath, "inventory", *inventoryPath)
	if err := mgr.Run(ctx); err != nil && err != context.Canceled {
		log.Error("manager exited with error", "err", err)
	}
	_ = pushover.Close()
	_ = sink.Close()
}

func serveMetrics(addr string, coll *metrics.Collector, log logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", coll.Handler())
	log.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server stopped", "err", err)
	}
}

// watchConfigReloads hot-reloads the pushover/storage config subset without
// touching the Manager's scheduler or reachability bookkeeping (spec.md §9).
func watchConfigReloads(ctx context.Context, path string, sink storage.Sink, pushover *notify.PushoverSink, mgr *manager.Manager, log logging.Logger) {
	watcher, err := config.NewWatcher(path)
	if err != nil {
		log.Error("failed to start config watcher", "err", err)
		return
	}
	reloads, errs := watcher.Watch(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = watcher.Stop()
				return
			case f, ok := <-reloads:
				if !ok {
					return
				}
				log.Info("reloaded config")
				_ = sink.ReloadConfig(storage.Config{
					InfluxEnabled: f.InfluxDB.Enabled, InfluxURL: f.InfluxDB.URL,
					InfluxToken: f.InfluxDB.Token, InfluxOrg: f.InfluxDB.Org, InfluxBucket: f.InfluxDB.Bucket,
					FileEnabled: true, FilePath: f.Logging.FilePath, RetentionLines: f.Logging.Retention,
				})
				if f.Pushover.Enabled {
					pushover.Configure(f.Pushover.Token, f.Pushover.UserKey)
				}
				mgr.UpdateConfig(manager.Config{
					ThrottlingEnabled: f.Pushover.ThrottlingEnabled, AlertThreshold: f.Pushover.AlertThreshold,
					AlertWindow: time.Duration(f.Pushover.AlertWindow) * time.Second, MaintenanceMode: f.Pushover.MaintenanceMode,
					DownMessageTemplate: f.Pushover.MessageTemplate,
					SNMPCollectorInterval: time.Duration(f.Engine.SNMPCollectorIntervalSeconds * float64(time.Second)),
					MaxInFlight: f.Engine.MaxInFlight, ProbeTimeout: time.Duration(f.Engine.ProbeTimeoutSeconds * float64(time.Second)),
					TickInterval: time.Second,
				})
			case err, ok := <-errs:
				if !ok {
					return
				}
				log.Error("config reload failed", "err", err)
			}
		}
	}()
}
