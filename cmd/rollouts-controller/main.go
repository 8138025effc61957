package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
	"k8s.io/klog/v2"
	gatewayclientset "sigs.k8s.io/gateway-api/pkg/client/clientset/versioned"

	"github.com/kulta-io/kulta-rollouts/pkg/cdevents"
	rolloutclientset "github.com/kulta-io/kulta-rollouts/pkg/client/clientset/versioned"
	"github.com/kulta-io/kulta-rollouts/pkg/config"
	"github.com/kulta-io/kulta-rollouts/pkg/controller/rollout"
	"github.com/kulta-io/kulta-rollouts/pkg/leaderelection"
	"github.com/kulta-io/kulta-rollouts/pkg/metrics"
)

// flags mirrors config.Config one field at a time so pflag can bind
// directly to it; run() then layers an optional --config file on top
// of whatever the flags already set.
type flags struct {
	kubeconfig string
	configFile string
	cfg        config.Config
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.WithError(err).Fatal("rollouts-controller exited with an error")
	}
}

func newRootCommand() *cobra.Command {
	f := &flags{cfg: config.Default()}

	cmd := &cobra.Command{
		Use:   "rollouts-controller",
		Short: "Runs the progressive delivery controller for Rollout resources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.kubeconfig, "kubeconfig", defaultKubeconfigPath(), "Path to a kubeconfig file; omit to use in-cluster config")
	fs.StringVar(&f.configFile, "config", "", "Optional YAML config file overriding flag defaults")
	fs.StringVar(&f.cfg.Namespace, "namespace", f.cfg.Namespace, "Namespace to watch; empty watches all namespaces")
	fs.IntVar(&f.cfg.Workers, "workers", f.cfg.Workers, "Number of concurrent reconcile workers")
	fs.StringVar(&f.cfg.MetricsAddr, "metrics-addr", f.cfg.MetricsAddr, "Address the Prometheus metrics endpoint listens on")
	fs.BoolVar(&f.cfg.LeaderElect, "leader-elect", f.cfg.LeaderElect, "Enable leader election so only one replica reconciles at a time")
	fs.StringVar(&f.cfg.LeaseNamespace, "lease-namespace", f.cfg.LeaseNamespace, "Namespace holding the leader-election Lease")
	fs.StringVar(&f.cfg.CDEventsSinkURL, "cdevents-sink-url", f.cfg.CDEventsSinkURL, "HTTP endpoint receiving CDEvents; empty records events in-memory only")
	fs.BoolVar(&f.cfg.GatewayAPI, "gateway-api", f.cfg.GatewayAPI, "Enable Gateway API HTTPRoute traffic patching")

	goFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(goFlags)
	fs.AddGoFlagSet(goFlags)

	return cmd
}

// holderID identifies this replica to the leader-election Lease: the
// downward API's POD_NAME is preferred since, unlike HOSTNAME, it is
// guaranteed to match the pod's actual name under every container
// runtime; HOSTNAME and the kernel hostname are the fallbacks for
// environments that don't inject POD_NAME.
func holderID() string {
	if v := os.Getenv("POD_NAME"); v != "" {
		return v
	}
	if v := os.Getenv("HOSTNAME"); v != "" {
		return v
	}
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "rollouts-controller"
}

func defaultKubeconfigPath() string {
	if home := homedir.HomeDir(); home != "" {
		return filepath.Join(home, ".kube", "config")
	}
	return ""
}

func run(ctx context.Context, f *flags) error {
	cfg := f.cfg
	if f.configFile != "" {
		merged, err := config.LoadFile(f.configFile, cfg)
		if err != nil {
			return err
		}
		cfg = merged
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	restConfig, err := clientcmd.BuildConfigFromFlags("", f.kubeconfig)
	if err != nil {
		return fmt.Errorf("build kube client config: %w", err)
	}

	kubeClient, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return fmt.Errorf("build kubernetes client: %w", err)
	}
	rolloutClient, err := rolloutclientset.NewForConfig(restConfig)
	if err != nil {
		return fmt.Errorf("build rollout client: %w", err)
	}

	var gatewayClient gatewayclientset.Interface
	if cfg.GatewayAPI {
		gatewayClient, err = gatewayclientset.NewForConfig(restConfig)
		if err != nil {
			return fmt.Errorf("build gateway-api client: %w", err)
		}
	}

	leader := leaderelection.NewState()
	if cfg.LeaderElect {
		coordinator := leaderelection.New(kubeClient, leaderelection.Config{
			HolderID:       holderID(),
			LeaseNamespace: cfg.LeaseNamespace,
		}, leader)
		go coordinator.Run(ctx)
	} else {
		leader.SetLeader(true)
	}

	sink, err := buildSink(cfg.CDEventsSinkURL)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metricsRegistry := metrics.NewRegistry(reg)
	go serveMetrics(cfg.MetricsAddr, reg)

	reconciler := rollout.NewReconciler(kubeClient, rolloutClient, gatewayClient, leader, metricsRegistry, sink)
	ctrl := rollout.NewController(kubeClient, rolloutClient, gatewayClient, reconciler, cfg.Namespace)

	log.WithFields(log.Fields{
		"namespace":   cfg.Namespace,
		"workers":     cfg.Workers,
		"leaderElect": cfg.LeaderElect,
	}).Info("starting rollouts-controller")
	return ctrl.Run(ctx, cfg.Workers)
}

func buildSink(sinkURL string) (cdevents.Sink, error) {
	if sinkURL == "" {
		return cdevents.NewRecordingSink(), nil
	}
	return cdevents.NewHTTPSink(sinkURL)
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("metrics server exited")
	}
}
