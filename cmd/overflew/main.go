package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/overflew/internal/profile"
	"github.com/hrygo/overflew/internal/version"
	"github.com/hrygo/overflew/server"
	"github.com/hrygo/overflew/store"
	"github.com/hrygo/overflew/store/db"
)

var (
	rootCmd = &cobra.Command{
		Use:   "overflew",
		Short: "AI personas that answer, vote and reply on a Q&A forum.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	populateCmd = &cobra.Command{
		Use:   "populate <question-id>",
		Short: "Run one auto-populate pass on a question and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			questionID, err := strconv.ParseInt(args[0], 10, 32)
			if err != nil {
				return errors.Errorf("invalid question id %q", args[0])
			}
			return runPopulate(cmd.Context(), int32(questionID))
		},
	}

	seedPersonasCmd = &cobra.Command{
		Use:   "seed-personas",
		Short: "Upsert the bundled AI personas",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeedPersonas(cmd.Context())
		},
	}
)

func init() {
	viper.SetDefault("mode", "demo")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8081)

	rootCmd.PersistentFlags().String("mode", "demo", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver, sqlite or postgres")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN)")
	rootCmd.PersistentFlags().Int("workers", 0, "number of queue workers (default from OVERFLEW_WORKERS)")
	rootCmd.PersistentFlags().Int("parallel-limit", 0, "maximum concurrent parallel jobs (default from OVERFLEW_PARALLEL_LIMIT)")

	for _, name := range []string{"mode", "addr", "port", "data", "driver", "dsn", "workers", "parallel-limit"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("overflew")
	viper.AutomaticEnv()
	if err := viper.BindEnv("parallel-limit", "OVERFLEW_PARALLEL_LIMIT"); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(populateCmd, seedPersonasCmd)
}

// loadProfile merges env configuration with flags; flags and OVERFLEW_* env win over defaults.
func loadProfile() (*profile.Profile, error) {
	p := &profile.Profile{
		Mode:   viper.GetString("mode"),
		Addr:   viper.GetString("addr"),
		Port:   viper.GetInt("port"),
		Data:   viper.GetString("data"),
		Driver: viper.GetString("driver"),
		DSN:    viper.GetString("dsn"),
	}
	p.FromEnv()
	if workers := viper.GetInt("workers"); workers > 0 {
		p.WorkerCount = workers
	}
	if limit := viper.GetInt("parallel-limit"); limit > 0 {
		p.ParallelLimit = limit
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.Version = version.GetCurrentVersion(p.Mode)
	return p, nil
}

func setupLogger(p *profile.Profile) {
	level := slog.LevelInfo
	if p.IsDev() {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// openStore loads the profile, opens the database and migrates it.
func openStore(ctx context.Context) (*profile.Profile, *store.Store, error) {
	p, err := loadProfile()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load profile")
	}
	setupLogger(p)

	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create db driver")
	}
	storeInstance := store.New(dbDriver, p)
	if err := storeInstance.Migrate(ctx); err != nil {
		_ = storeInstance.Close()
		return nil, nil, errors.Wrap(err, "failed to migrate")
	}
	return p, storeInstance, nil
}

func runServe(ctx context.Context) error {
	p, storeInstance, err := openStore(ctx)
	if err != nil {
		return err
	}
	s, err := server.NewServer(ctx, p, storeInstance)
	if err != nil {
		_ = storeInstance.Close()
		return errors.Wrap(err, "failed to create server")
	}
	if err := s.Start(ctx); err != nil {
		s.Shutdown(context.Background())
		return errors.Wrap(err, "failed to start server")
	}
	printGreetings(p)

	<-ctx.Done()
	s.Shutdown(context.Background())
	return nil
}

func runPopulate(ctx context.Context, questionID int32) error {
	p, storeInstance, err := openStore(ctx)
	if err != nil {
		return err
	}
	s, err := server.NewServer(ctx, p, storeInstance)
	if err != nil {
		_ = storeInstance.Close()
		return errors.Wrap(err, "failed to create server")
	}
	defer func() {
		s.Pool.Stop()
		_ = storeInstance.Close()
	}()

	result, err := s.Populate.Populate(ctx, questionID, true)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func runSeedPersonas(ctx context.Context) error {
	_, storeInstance, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer storeInstance.Close()

	personas, err := storeInstance.SeedPersonas(ctx)
	if err != nil {
		return err
	}
	for _, persona := range personas {
		fmt.Printf("%d\t%s\n", persona.ID, persona.Name)
	}
	return nil
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("overflew %s started successfully!\n", p.Version)
	fmt.Printf("Data directory: %s\n", p.Data)
	fmt.Printf("Database driver: %s\n", p.Driver)
	fmt.Printf("Mode: %s\n", p.Mode)
	if p.IsAIEnabled() {
		fmt.Printf("Completion model: %s\n", p.AIModel)
	} else {
		fmt.Println("Completion: disabled")
	}
	if p.Addr == "" {
		fmt.Printf("Server running on port %d\n", p.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", p.Addr, p.Port)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
