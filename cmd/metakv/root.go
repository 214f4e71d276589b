package main

import (
	"context"
	"fmt"
	"os/signal"
	"sort"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/openobs/metakv/clog"
	"github.com/openobs/metakv/config"
	"github.com/openobs/metakv/connector"
	"github.com/openobs/metakv/metastore"
	"github.com/openobs/metakv/metrics"
)

const version = "0.1.0"

var (
	flagConfigPath string
	flagEndpoints  []string
	flagPrefix     string
	flagStartDt    int64
	flagWithPrefix bool
	flagMinDt      int64
	flagMaxDt      int64

	rootCmd = &cobra.Command{
		Use:   "metakv",
		Short: "cluster metadata coordination store",
		Long: `metakv is the cluster metadata coordination layer: a key-value
store over etcd with versioned entries, distributed locks and change
subscription.`,
		SilenceUsage: true,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of metakv",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("metakv v%s\n", version)
		},
	}

	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Read the latest value under a key",
		Args:  cobra.ExactArgs(1),
		RunE:  runGet,
	}

	putCmd = &cobra.Command{
		Use:   "put [key] [value]",
		Short: "Write a value, optionally versioned with --start-dt",
		Args:  cobra.ExactArgs(2),
		RunE:  runPut,
	}

	deleteCmd = &cobra.Command{
		Use:   "delete [key]",
		Short: "Delete a key, or a whole prefix with --with-prefix",
		Args:  cobra.ExactArgs(1),
		RunE:  runDelete,
	}

	listCmd = &cobra.Command{
		Use:   "list [prefix]",
		Short: "List all entries under a prefix",
		Args:  cobra.ExactArgs(1),
		RunE:  runList,
	}

	countCmd = &cobra.Command{
		Use:   "count [prefix]",
		Short: "Count keys under a prefix",
		Args:  cobra.ExactArgs(1),
		RunE:  runCount,
	}

	watchCmd = &cobra.Command{
		Use:   "watch [prefix]",
		Short: "Stream change events under a prefix until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatch,
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show backend storage statistics",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfigPath, "config", "c", "", "config file search path")
	rootCmd.PersistentFlags().StringSliceVar(&flagEndpoints, "endpoints", nil, "etcd endpoints, overrides config")
	rootCmd.PersistentFlags().StringVar(&flagPrefix, "prefix", "", "store prefix, overrides config")

	putCmd.Flags().Int64Var(&flagStartDt, "start-dt", 0, "version timestamp suffix for the key")
	deleteCmd.Flags().Int64Var(&flagStartDt, "start-dt", 0, "version timestamp suffix for the key")
	deleteCmd.Flags().BoolVar(&flagWithPrefix, "with-prefix", false, "delete every key under the given prefix")
	listCmd.Flags().Int64Var(&flagMinDt, "min-dt", 0, "lower bound of the start_dt filter")
	listCmd.Flags().Int64Var(&flagMaxDt, "max-dt", 0, "upper bound of the start_dt filter")

	rootCmd.AddCommand(versionCmd, getCmd, putCmd, deleteCmd, listCmd, countCmd, watchCmd, statsCmd)
}

// app CLI 的运行时依赖集合
type app struct {
	settings *config.Settings
	logger   clog.Logger
	conn     connector.EtcdConnector
	store    metastore.Store
}

func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.conn != nil {
		_ = a.conn.Close()
	}
}

func setup(ctx context.Context) (*app, error) {
	loaderCfg := &config.Config{}
	if flagConfigPath != "" {
		loaderCfg.Paths = []string{flagConfigPath}
	}
	loader, err := config.New(loaderCfg)
	if err != nil {
		return nil, err
	}
	if err := loader.Load(ctx); err != nil {
		return nil, err
	}
	settings, err := config.LoadSettings(loader)
	if err != nil {
		return nil, err
	}
	if len(flagEndpoints) > 0 {
		settings.Etcd.Endpoints = flagEndpoints
	}
	if flagPrefix != "" {
		settings.Etcd.Prefix = flagPrefix
	}

	logger, err := clog.New(&settings.Log)
	if err != nil {
		return nil, err
	}
	meter, err := metrics.New(&settings.Metrics)
	if err != nil {
		return nil, err
	}

	conn, err := connector.NewEtcd(&connector.EtcdConfig{
		Name:        "metakv",
		Endpoints:   settings.Etcd.Endpoints,
		Username:    settings.Etcd.Username,
		Password:    settings.Etcd.Password,
		CertAuth:    settings.Etcd.CertAuth,
		CAFile:      settings.Etcd.CAFile,
		CertFile:    settings.Etcd.CertFile,
		KeyFile:     settings.Etcd.KeyFile,
		DomainName:  settings.Etcd.DomainName,
		DialTimeout: settings.Etcd.ConnectTimeout,
	}, connector.WithLogger(logger), connector.WithMeter(meter))
	if err != nil {
		return nil, err
	}
	if err := conn.Connect(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	store, err := metastore.New(settings.Coordinator, conn, &metastore.Config{
		Prefix:          settings.Etcd.Prefix,
		CommandTimeout:  settings.Etcd.CommandTimeout,
		LockWaitTimeout: settings.Etcd.LockWaitTimeout,
		LoadPageSize:    settings.Etcd.LoadPageSize,
	}, metastore.WithLogger(logger), metastore.WithMeter(meter))
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &app{settings: settings, logger: logger, conn: conn, store: store}, nil
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	value, err := a.store.Get(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(string(value))
	return nil
}

func runPut(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	return a.store.Put(ctx, args[0], []byte(args[1]), flagStartDt)
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	return a.store.Delete(ctx, args[0], flagWithPrefix, flagStartDt)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if flagMinDt != 0 || flagMaxDt != 0 {
		values, err := a.store.ListValuesByStartDt(ctx, args[0], flagMinDt, flagMaxDt)
		if err != nil {
			return err
		}
		for _, v := range values {
			fmt.Printf("%d\t%s\n", v.StartDt, v.Value)
		}
		return nil
	}

	entries, err := a.store.List(ctx, args[0])
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s\t%s\n", k, entries[k])
	}
	return nil
}

func runCount(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	count, err := a.store.Count(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(count)
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	// 长驻会话才需要保活；单机模式或非 etcd 协调后端不启动
	if !a.settings.LocalMode && a.settings.Coordinator == config.CoordinatorEtcd {
		go func() {
			if err := metastore.KeepAliveSession(ctx, a.conn, &metastore.Config{
				Prefix:         a.settings.Etcd.Prefix,
				CommandTimeout: a.settings.Etcd.CommandTimeout,
			}, metastore.WithLogger(a.logger)); err != nil {
				a.logger.ErrorContext(ctx, "session keep alive stopped", clog.Error(err))
			}
		}()
	}

	session := uuid.New().String()[0:8]
	a.logger.InfoContext(ctx, "watch started",
		clog.String("session", session), clog.String("prefix", args[0]))

	ch, err := a.store.Watch(ctx, args[0])
	if err != nil {
		return err
	}
	for ev := range ch {
		fmt.Printf("%s\t%s\t%s\n", ev.Type, ev.Key, ev.Value)
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	stats, err := a.store.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("bytes_len\t%d\nkeys_count\t%d\n", stats.BytesLen, stats.KeysCount)
	return nil
}
